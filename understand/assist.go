package understand

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tsawler/intelliparse/model"
)

// tableConfidenceFloor marks tables below it as worth rebuilding even when
// the grid is rectangular.
const tableConfidenceFloor = 0.8

// regionConfidence is recorded on regions transcribed by the model.
const regionConfidence = 0.7

// AssistOptions configure Assist.
type AssistOptions struct {
	DescribeImages bool
	Transcribe     bool
	RebuildTables  bool
	// CallTimeout bounds each task on top of the adapter timeout. Zero
	// leaves only the adapter timeout.
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// DefaultAssistOptions enables every task.
func DefaultAssistOptions() AssistOptions {
	return AssistOptions{DescribeImages: true, Transcribe: true, RebuildTables: true}
}

// AssistResult reports what Assist did.
type AssistResult struct {
	Calls    int
	Filled   int
	Warnings []Warning
}

// Warning is a failed model call tied to a section.
type Warning struct {
	Section int
	Message string
}

// Assist enriches doc in place. Regions without text are transcribed,
// images without any caption are described and imperfect or low
// confidence tables are rebuilt. A failed call leaves the element as it
// was and becomes a warning. Without a model Assist does nothing.
func Assist(ctx context.Context, a *Adapter, doc *model.Document, opts AssistOptions) AssistResult {
	var res AssistResult
	if a == nil || a.model == nil || doc == nil {
		return res
	}
	log := opts.Logger
	if log == nil {
		log = a.log
	}

	for _, sec := range doc.Sections {
		changed := false
		for _, el := range sec.Elements {
			task := assistTask(el, opts)
			if task == nil {
				continue
			}
			if err := ctx.Err(); err != nil {
				res.Warnings = append(res.Warnings, Warning{Section: sec.Number, Message: err.Error()})
				return res
			}
			res.Calls++
			if err := runTask(ctx, a, el, task, opts.CallTimeout); err != nil {
				log.Debug("ai assist failed", "section", sec.Number, "element", el.Type.String(), "error", err)
				res.Warnings = append(res.Warnings, Warning{Section: sec.Number, Message: err.Error()})
				if errors.Is(err, context.Canceled) {
					return res
				}
				continue
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

type taskFunc func(context.Context, *Adapter, *model.Element) error

func runTask(ctx context.Context, a *Adapter, el *model.Element, task taskFunc, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return task(ctx, a, el)
}

// assistTask picks the task for el, or nil when el needs no help.
func assistTask(el *model.Element, opts AssistOptions) taskFunc {
	switch el.Type {
	case model.ElementTypeRegion:
		if opts.Transcribe && el.Text == "" && el.Image != nil && len(el.Image.Data) > 0 {
			return transcribe
		}
	case model.ElementTypeImage:
		if opts.DescribeImages && el.Image != nil && len(el.Image.Data) > 0 && !el.Image.HasText() && el.Image.Alt == "" {
			return describe
		}
	case model.ElementTypeTable:
		if opts.RebuildTables && el.Table != nil && el.Table.RowCount() > 0 &&
			(!el.Table.IsPerfect() || el.Table.Confidence < tableConfidenceFloor) {
			return rebuild
		}
	}
	return nil
}

func transcribe(ctx context.Context, a *Adapter, el *model.Element) error {
	md, err := a.TranscribeRegion(ctx, el.Image)
	if err != nil {
		return err
	}
	el.Text = md
	el.Source = model.SourceAI
	el.Confidence = regionConfidence
	return nil
}

func describe(ctx context.Context, a *Adapter, el *model.Element) error {
	desc, err := a.DescribeImage(ctx, el.Image)
	if err != nil {
		return err
	}
	el.Image.Description = desc
	return nil
}

func rebuild(ctx context.Context, a *Adapter, el *model.Element) error {
	tbl, err := a.RebuildTable(ctx, el.Table)
	if err != nil {
		return err
	}
	if tbl.RowCount() == 0 {
		return fmt.Errorf("rebuilding table: model returned no rows")
	}
	el.Table = tbl
	el.Source = model.SourceAI
	el.Confidence = tbl.Confidence
	return nil
}
