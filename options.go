package intelliparse

import (
	"log/slog"

	"github.com/tsawler/intelliparse/ocr"
	"github.com/tsawler/intelliparse/understand"
)

// ExtractOptions holds configuration for a fluent extraction.
type ExtractOptions struct {
	// Page selection (1-indexed), nil means all pages
	pages []int

	includeImageData bool
	includeNotes     bool

	ai       *understand.Adapter
	aiAssist bool
	ocr      ocr.Recognizer
	logger   *slog.Logger
}

// defaultOptions returns the default extraction options.
func defaultOptions() ExtractOptions {
	return ExtractOptions{
		pages:        nil,
		includeNotes: true,
	}
}

// clone creates a deep copy of ExtractOptions.
func (o ExtractOptions) clone() ExtractOptions {
	newOpts := o
	if o.pages != nil {
		newOpts.pages = make([]int, len(o.pages))
		copy(newOpts.pages, o.pages)
	}
	return newOpts
}

// config maps the options onto a pipeline configuration.
func (o ExtractOptions) config() Config {
	return Config{
		Logger:           o.logger,
		Pages:            o.pages,
		OCR:              o.ocr,
		AI:               o.ai,
		AIAssist:         o.aiAssist,
		IncludeImageData: o.includeImageData,
		IncludeNotes:     o.includeNotes,
	}
}
