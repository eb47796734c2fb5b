package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tsawler/intelliparse"
	"github.com/tsawler/intelliparse/rag"
)

// Output formats.
const (
	outputJSON     = "json"
	outputMarkdown = "markdown"
	outputText     = "text"
	outputLLM      = "llm"
	outputChunks   = "chunks"
)

// jsonResult is an ExtractionResult with its error as text.
type jsonResult struct {
	*intelliparse.ExtractionResult
	Error string `json:"error,omitempty"`
}

// renderer turns results into output files or a stream.
type renderer struct {
	output  string
	chunker *rag.Chunker
}

func newRenderer(output string, chunkSize int) (*renderer, error) {
	r := &renderer{output: output}
	switch output {
	case outputJSON, outputMarkdown, outputText, outputLLM:
	case outputChunks:
		cfg := rag.DefaultChunkerConfig()
		if chunkSize > 0 {
			cfg.MaxChunkSize = chunkSize
			cfg.MinChunkSize = min(cfg.MinChunkSize, chunkSize/4)
			cfg.OverlapSize = min(cfg.OverlapSize, chunkSize/10)
		}
		r.chunker = rag.NewChunkerWithConfig(cfg)
	default:
		return nil, fmt.Errorf("unknown output %q: want json, markdown, text, llm or chunks", output)
	}
	return r, nil
}

func (r *renderer) extension() string {
	switch r.output {
	case outputJSON:
		return ".json"
	case outputMarkdown:
		return ".md"
	case outputChunks:
		return rag.ExportFormatJSONL.FileExtension()
	}
	return ".txt"
}

// render returns the output for one result. Failed results render only
// as JSON; other formats skip them and leave the report to the summary.
func (r *renderer) render(res *intelliparse.ExtractionResult) ([]byte, bool, error) {
	if r.output == outputJSON {
		b, err := json.MarshalIndent(jsonResult{ExtractionResult: res, Error: res.Error()}, "", "  ")
		return b, true, err
	}
	if res.Document == nil {
		return nil, false, nil
	}

	doc := res.Document
	switch r.output {
	case outputMarkdown:
		return []byte(doc.Markdown()), true, nil
	case outputText:
		return []byte(doc.Text()), true, nil
	case outputLLM:
		return []byte(doc.LLMDescribedText()), true, nil
	}

	chunks, err := r.chunker.Chunk(doc)
	if err != nil {
		return nil, false, fmt.Errorf("chunk %s: %w", res.Name, err)
	}
	out, err := chunks.ToJSONL()
	return []byte(out), true, err
}

// write streams every result to w. Several JSON results form one array;
// the text formats are separated by a header line per file.
func (r *renderer) write(w io.Writer, results []*intelliparse.ExtractionResult) error {
	if r.output == outputJSON && len(results) > 1 {
		all := make([]jsonResult, len(results))
		for i, res := range results {
			all[i] = jsonResult{ExtractionResult: res, Error: res.Error()}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(all)
	}

	multi := len(results) > 1 && r.output != outputChunks
	for _, res := range results {
		b, ok, err := r.render(res)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if multi {
			fmt.Fprintf(w, "==> %s <==\n", res.Name)
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
		if len(b) > 0 && b[len(b)-1] != '\n' {
			fmt.Fprintln(w)
		}
	}
	return nil
}

// writeFiles writes one file per result into dir. Names that collide get
// a numeric suffix.
func (r *renderer) writeFiles(dir string, results []*intelliparse.ExtractionResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	used := make(map[string]int)
	for _, res := range results {
		b, ok, err := r.render(res)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		name := outputName(res.Name, r.extension(), used)
		if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

// outputName replaces the input extension with ext.
func outputName(input, ext string, used map[string]int) string {
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		base = "output"
	}

	used[base]++
	if n := used[base]; n > 1 {
		base += "-" + strconv.Itoa(n)
	}
	return base + ext
}
