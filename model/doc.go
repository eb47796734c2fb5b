// Package model provides the intermediate representation (IR) for extracted
// document content.
//
// Every format parser produces a [Document]. A document is an ordered list
// of [Section] values (pages, slides, sheets, chapters), and each section
// holds [Element] values in reading order:
//
//	doc := model.NewDocument("report.pdf", "pdf")
//	sec := doc.AddSection("Introduction")
//	sec.Add(model.NewHeading("Introduction", 1))
//	sec.Add(model.NewText("Hello."))
//
// # Elements
//
// An [Element] is a tagged unit of content. Its Type selects which fields
// are meaningful:
//
//   - [ElementTypeText] - a paragraph or text block
//   - [ElementTypeHeading] - a heading with Level 1-6
//   - [ElementTypeList] - an ordered or unordered [List]
//   - [ElementTypeTable] - a [Table] with row/column spans
//   - [ElementTypeImage] - an embedded [Image]
//   - [ElementTypeRegion] - content the deterministic parsers could not read
//
// Each element records where it came from ([SourceDeterministic],
// [SourceOCR] or [SourceAI]) and a confidence between 0 and 1.
//
// # Tables
//
// [Table] supports spans, and exports through ToMarkdown and ToCSV.
// IsPerfect reports whether the table is a clean rectangular grid.
package model
