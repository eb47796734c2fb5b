package intelliparse

import (
	"fmt"
	"strings"
)

// Stage names the pipeline step that produced a warning.
type Stage string

// Pipeline stages, in execution order.
const (
	StageSniff     Stage = "sniff"
	StageParse     Stage = "parse"
	StageNormalize Stage = "normalize"
	StageOCR       Stage = "ocr"
	StageAI        Stage = "ai"
	StageAssemble  Stage = "assemble"
)

// Warning is a non-fatal problem. Extraction went on, but part of the
// result may be missing or degraded.
type Warning struct {
	Stage Stage `json:"stage"`
	// Section is the 1-based section the warning concerns, or 0 for the
	// whole file.
	Section int    `json:"section,omitempty"`
	Message string `json:"message"`
}

// String renders the warning on one line.
func (w Warning) String() string {
	if w.Section > 0 {
		return fmt.Sprintf("[%s] section %d: %s", w.Stage, w.Section, w.Message)
	}
	return fmt.Sprintf("[%s] %s", w.Stage, w.Message)
}

// FormatWarnings renders warnings one per line for logs and terminals.
func FormatWarnings(warnings []Warning) string {
	if len(warnings) == 0 {
		return ""
	}
	lines := make([]string, len(warnings))
	for i, w := range warnings {
		lines[i] = w.String()
	}
	return strings.Join(lines, "\n")
}

func stringWarnings(stage Stage, msgs []string) []Warning {
	out := make([]Warning, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Warning{Stage: stage, Message: m})
	}
	return out
}
