// Package rag provides RAG (Retrieval-Augmented Generation) chunking and export
// functionality for LLM integration.
//
// This package prepares extracted document content for use with large language
// models by providing semantic chunking and export formats.
//
// # Chunking
//
// The [Chunker] splits documents into semantically meaningful chunks:
//
//	chunker := rag.NewChunker()
//	result, err := chunker.Chunk(document)
//
// Chunking respects document structure, avoiding splits in the middle of:
//   - Tables
//   - Lists
//   - Paragraphs
//   - Headings with their following content
//
// A titled section (a slide, a sheet, an EPUB chapter) always starts a new
// chunk; untitled sections such as PDF pages continue the current heading.
//
// # Chunk Metadata
//
// Each [Chunk] includes metadata for retrieval:
//
//   - Section numbers and heading path
//   - Content type (paragraph, table, list, image, region)
//   - The lowest confidence of the content, so OCR and AI text can be
//     filtered or down-weighted
//
// # Export Formats
//
// The [Exporter] writes chunks as JSON Lines, a JSON array, or Markdown.
package rag
