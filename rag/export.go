package rag

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ExportFormat defines the available export formats
type ExportFormat int

const (
	// ExportFormatJSONL exports as JSON Lines (one JSON object per line)
	ExportFormatJSONL ExportFormat = iota
	// ExportFormatJSON exports as a JSON array
	ExportFormatJSON
	// ExportFormatMarkdown exports one markdown block per chunk
	ExportFormatMarkdown
)

// String returns a human-readable representation of the export format
func (ef ExportFormat) String() string {
	switch ef {
	case ExportFormatJSONL:
		return "jsonl"
	case ExportFormatJSON:
		return "json"
	case ExportFormatMarkdown:
		return "markdown"
	default:
		return "unknown"
	}
}

// FileExtension returns the typical file extension for this format
func (ef ExportFormat) FileExtension() string {
	switch ef {
	case ExportFormatJSONL:
		return ".jsonl"
	case ExportFormatJSON:
		return ".json"
	case ExportFormatMarkdown:
		return ".md"
	default:
		return ".txt"
	}
}

// ExportConfig holds configuration options for export
type ExportConfig struct {
	// Format specifies the export format
	Format ExportFormat

	// IncludeMetadata includes chunk metadata in JSON formats
	IncludeMetadata bool

	// UseContextText exports TextWithContext instead of Text when present
	UseContextText bool

	// PrettyPrint enables pretty printing for JSON arrays
	PrettyPrint bool
}

// DefaultExportConfig returns sensible defaults for export configuration
func DefaultExportConfig() ExportConfig {
	return ExportConfig{
		Format:          ExportFormatJSONL,
		IncludeMetadata: true,
	}
}

// Exporter writes chunks in one of the export formats
type Exporter struct {
	config ExportConfig
}

// NewExporter creates an exporter with default configuration
func NewExporter() *Exporter {
	return &Exporter{config: DefaultExportConfig()}
}

// NewExporterWithConfig creates an exporter with custom configuration
func NewExporterWithConfig(config ExportConfig) *Exporter {
	return &Exporter{config: config}
}

// ExportedChunk is the serialized form of a chunk
type ExportedChunk struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata *ChunkMetadata `json:"metadata,omitempty"`
}

// Export writes chunks to w
func (e *Exporter) Export(chunks []*Chunk, w io.Writer) error {
	switch e.config.Format {
	case ExportFormatJSONL:
		return e.exportJSONL(chunks, w)
	case ExportFormatJSON:
		return e.exportJSON(chunks, w)
	case ExportFormatMarkdown:
		return e.exportMarkdown(chunks, w)
	default:
		return fmt.Errorf("unsupported export format: %v", e.config.Format)
	}
}

// ExportToString exports chunks and returns the result as a string
func (e *Exporter) ExportToString(chunks []*Chunk) (string, error) {
	var buf bytes.Buffer
	if err := e.Export(chunks, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (e *Exporter) prepareChunkForExport(chunk *Chunk) ExportedChunk {
	out := ExportedChunk{ID: chunk.ID, Text: chunk.Text}
	if e.config.UseContextText && chunk.TextWithContext != "" {
		out.Text = chunk.TextWithContext
	}
	if e.config.IncludeMetadata {
		meta := chunk.Metadata
		out.Metadata = &meta
	}
	return out
}

func (e *Exporter) exportJSONL(chunks []*Chunk, w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, chunk := range chunks {
		if err := enc.Encode(e.prepareChunkForExport(chunk)); err != nil {
			return fmt.Errorf("encoding chunk %s: %w", chunk.ID, err)
		}
	}
	return nil
}

func (e *Exporter) exportJSON(chunks []*Chunk, w io.Writer) error {
	out := make([]ExportedChunk, len(chunks))
	for i, chunk := range chunks {
		out[i] = e.prepareChunkForExport(chunk)
	}
	enc := json.NewEncoder(w)
	if e.config.PrettyPrint {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding chunks: %w", err)
	}
	return nil
}

func (e *Exporter) exportMarkdown(chunks []*Chunk, w io.Writer) error {
	for i, md := range toMarkdownChunks(chunks) {
		if i > 0 {
			if _, err := io.WriteString(w, "\n\n---\n\n"); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, md); err != nil {
			return err
		}
	}
	return nil
}

// ToJSONL exports the result as JSON Lines
func (r *ChunkResult) ToJSONL() (string, error) {
	return NewExporter().ExportToString(r.Chunks)
}

// ToJSON exports the result as a pretty-printed JSON array
func (r *ChunkResult) ToJSON() (string, error) {
	config := DefaultExportConfig()
	config.Format = ExportFormatJSON
	config.PrettyPrint = true
	return NewExporterWithConfig(config).ExportToString(r.Chunks)
}

// ToMarkdownChunks returns each chunk as a separate markdown string, headed
// by its section title.
func (r *ChunkResult) ToMarkdownChunks() []string {
	return toMarkdownChunks(r.Chunks)
}

func toMarkdownChunks(chunks []*Chunk) []string {
	out := make([]string, len(chunks))
	for i, chunk := range chunks {
		var sb strings.Builder
		if title := chunk.Metadata.SectionTitle; title != "" {
			level := chunk.Metadata.HeadingLevel
			if level < 1 {
				level = 1
			}
			sb.WriteString(strings.Repeat("#", min(level, 6)))
			sb.WriteString(" ")
			sb.WriteString(title)
			sb.WriteString("\n\n")
		}
		sb.WriteString(chunk.Text)
		out[i] = sb.String()
	}
	return out
}
