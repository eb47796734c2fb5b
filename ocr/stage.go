package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tsawler/intelliparse/model"
)

// DefaultMinSide skips images too small to hold readable text.
const DefaultMinSide = 24

// regionConfidence is recorded on regions filled by OCR.
const regionConfidence = 0.6

// StageOptions configure Apply.
type StageOptions struct {
	// MinSide is the smallest width or height worth recognizing. Images
	// with unknown dimensions are always tried.
	MinSide int
	Logger  *slog.Logger
}

// StageResult reports what Apply did.
type StageResult struct {
	Calls    int
	Filled   int
	Warnings []Warning
}

// Warning is a failed recognition tied to a section.
type Warning struct {
	Section int
	Message string
}

// Apply runs rec over every image and region in doc that carries image
// data but no text yet. Recognized text goes to Image.OCRText; a region
// also takes it as its own text with SourceOCR. A failed call leaves the
// element untouched and is reported as a warning. Sections that change
// get their Markdown cleared so the normalizer rebuilds it.
func Apply(ctx context.Context, rec Recognizer, doc *model.Document, opts StageOptions) StageResult {
	var res StageResult
	if rec == nil || doc == nil {
		return res
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	minSide := opts.MinSide
	if minSide == 0 {
		minSide = DefaultMinSide
	}

	for _, sec := range doc.Sections {
		changed := false
		for _, el := range sec.Elements {
			if !wantsOCR(el, minSide) {
				continue
			}
			if err := ctx.Err(); err != nil {
				res.Warnings = append(res.Warnings, Warning{Section: sec.Number, Message: err.Error()})
				return res
			}
			res.Calls++
			text, err := rec.RecognizeImage(ctx, el.Image.Data)
			if err != nil {
				if errors.Is(err, ErrOCRNotEnabled) {
					res.Warnings = append(res.Warnings, Warning{Section: sec.Number, Message: err.Error()})
					return res
				}
				log.Debug("ocr failed", "section", sec.Number, "image", el.Image.Name, "error", err)
				res.Warnings = append(res.Warnings, Warning{
					Section: sec.Number,
					Message: fmt.Sprintf("image %s: %v", el.Image.Name, err),
				})
				continue
			}
			if text == "" {
				continue
			}
			el.Image.OCRText = text
			if el.Type == model.ElementTypeRegion {
				el.Text = text
				el.Source = model.SourceOCR
				el.Confidence = regionConfidence
			}
			res.Filled++
			changed = true
		}
		if changed {
			sec.Markdown = ""
		}
	}
	return res
}

func wantsOCR(el *model.Element, minSide int) bool {
	if el.Type != model.ElementTypeImage && el.Type != model.ElementTypeRegion {
		return false
	}
	img := el.Image
	if img == nil || len(img.Data) == 0 || img.HasText() || (el.Type == model.ElementTypeRegion && el.Text != "") {
		return false
	}
	if img.Width > 0 && img.Height > 0 && (img.Width < minSide || img.Height < minSide) {
		return false
	}
	return true
}
