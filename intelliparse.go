// Package intelliparse extracts structured content from documents of many
// formats: PDF, DOCX, ODT, PPTX, XLSX, HTML, EPUB, plain text, Markdown,
// CSV, DXF/DWG drawings, images and archives of any of these.
//
// Every file is sniffed from its bytes, parsed into a [model.Document] of
// sections and elements in reading order, normalized, and optionally
// enriched by OCR and a multimodal AI model. A failure in one part of a
// file becomes a [Warning]; the rest of the document is still returned.
//
// Basic usage:
//
//	text, warnings, err := intelliparse.Open("document.pdf").Text(ctx)
//	if err != nil {
//	    // handle error
//	}
//	if len(warnings) > 0 {
//	    log.Println("Warnings:", intelliparse.FormatWarnings(warnings))
//	}
//
// With options:
//
//	md, _, err := intelliparse.Open("scan.pdf").
//	    Pages(1, 2, 3).
//	    WithAI(adapter).
//	    Markdown(ctx)
//
// For batches, build a [Pipeline] and call ExtractAll, which runs files in
// parallel under a bounded worker limit and per-file deadlines.
package intelliparse

// Open returns an Extractor for a file on disk. The file is read when a
// terminal operation runs.
//
// Example:
//
//	text, warnings, err := intelliparse.Open("document.pdf").Text(ctx)
func Open(filename string) *Extractor {
	return &Extractor{
		filename: filename,
		options:  defaultOptions(),
	}
}

// FromBytes returns an Extractor for a file already in memory. The name is
// used as a format hint and in results.
//
// Example:
//
//	md, _, err := intelliparse.FromBytes("upload.docx", body).Markdown(ctx)
func FromBytes(name string, data []byte) *Extractor {
	if data == nil {
		data = []byte{}
	}
	return &Extractor{
		name:    name,
		data:    data,
		options: defaultOptions(),
	}
}

// Must is a helper that wraps a call to a function returning (T, error)
// and panics if the error is non-nil. It is intended for use in scripts
// or tests where error handling would be cumbersome.
//
// Example:
//
//	doc := intelliparse.Must(pipeline.Schema(ctx, doc))
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}

// MustText is a helper that wraps a call to Text() or Markdown() and
// panics if the error is non-nil. It discards warnings and returns just the
// value.
//
// Example:
//
//	text := intelliparse.MustText(intelliparse.Open("document.pdf").Text(ctx))
func MustText[T any](val T, _ []Warning, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}
