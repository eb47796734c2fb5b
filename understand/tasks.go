package understand

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tsawler/intelliparse/model"
)

// maxSchemaInput caps the document text sent for schema inference, in
// runes.
const maxSchemaInput = 60000

const describeSystem = "You describe images found inside documents for readers who cannot see them. " +
	"Be factual and concise. Transcribe any visible text verbatim."

const describePrompt = "Describe this image in one short paragraph. " +
	"If it is a chart or diagram, state what it shows and its key values."

const transcribeSystem = "You transcribe scanned document regions into Markdown. " +
	"Preserve headings, lists and tables. Never add commentary."

const transcribePrompt = "Transcribe the content of this image as Markdown. " +
	"Reply with the Markdown only."

const tableSystem = "You repair tables extracted from documents. " +
	"Reply with a single Markdown pipe table and nothing else."

const tableTemplate = `The following table was extracted with errors: merged cells, ` +
	`split rows or misaligned columns. Rebuild it as a clean rectangular Markdown table ` +
	`with a header row. Keep every value; do not invent data.

%s`

const schemaSystem = "You are an AI assistant who is an expert in natural language processing " +
	"and especially named entity recognition."

const schemaTemplate = `Read the document below and define a schema for a knowledge graph of it.

Return strictly JSON format:
{
    "entities": ["EntityType", ...],
    "relations": ["RELATION_NAME", ...],
    "validation_schema": {"RELATION_NAME": ["EntityType", ...]}
}

Every relation must appear in validation_schema and every type it lists must be one of the entities.

<document>
%s
</document>`

// DescribeImage asks the model for a short description of img.
func (a *Adapter) DescribeImage(ctx context.Context, img *model.Image) (string, error) {
	if err := imageInput(img); err != nil {
		return "", err
	}
	out, err := a.Generate(ctx, Prompt{
		System: describeSystem,
		Text:   describePrompt,
		Images: []Blob{{MIME: img.MIME, Data: img.Data}},
	})
	if err != nil {
		return "", fmt.Errorf("describing image %s: %w", img.Name, err)
	}
	return nonEmpty(out)
}

// TranscribeRegion asks the model to read an unreadable region and
// returns its content as Markdown.
func (a *Adapter) TranscribeRegion(ctx context.Context, img *model.Image) (string, error) {
	if err := imageInput(img); err != nil {
		return "", err
	}
	out, err := a.Generate(ctx, Prompt{
		System: transcribeSystem,
		Text:   transcribePrompt,
		Images: []Blob{{MIME: img.MIME, Data: img.Data}},
	})
	if err != nil {
		return "", fmt.Errorf("transcribing region %s: %w", img.Name, err)
	}
	return nonEmpty(stripFence(out, "markdown", "md"))
}

// RebuildTable asks the model to repair t and parses the Markdown table it
// returns. The result carries the model's confidence of 0.9.
func (a *Adapter) RebuildTable(ctx context.Context, t *model.Table) (*model.Table, error) {
	if t == nil || t.RowCount() == 0 {
		return nil, fmt.Errorf("rebuilding table: empty table")
	}
	out, err := a.Generate(ctx, Prompt{
		System: tableSystem,
		Text:   fmt.Sprintf(tableTemplate, t.ToMarkdown()),
	})
	if err != nil {
		return nil, fmt.Errorf("rebuilding table: %w", err)
	}
	rebuilt, err := model.ParseMarkdownTable(stripFence(out, "markdown", "md"))
	if err != nil {
		return nil, fmt.Errorf("rebuilding table: %w", err)
	}
	rebuilt.Confidence = 0.9
	return rebuilt, nil
}

// ExtractSchema infers the entity and relation vocabulary of doc.
func (a *Adapter) ExtractSchema(ctx context.Context, doc *model.Document) (*model.Schema, error) {
	if doc == nil {
		return nil, fmt.Errorf("extracting schema: nil document")
	}
	text := truncateRunes(doc.Text(), maxSchemaInput)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("extracting schema: document has no text")
	}
	out, err := a.Generate(ctx, Prompt{
		System: schemaSystem,
		Text:   fmt.Sprintf(schemaTemplate, text),
	})
	if err != nil {
		return nil, fmt.Errorf("extracting schema: %w", err)
	}
	schema, err := ParseSchema(out)
	if err != nil {
		return nil, fmt.Errorf("extracting schema: %w", err)
	}
	return schema, nil
}

// ParseSchema decodes a schema reply, accepting code fences and prose
// around the JSON object, and validates it.
func ParseSchema(reply string) (*model.Schema, error) {
	clean := stripFence(reply, "json")
	if i, j := strings.IndexByte(clean, '{'), strings.LastIndexByte(clean, '}'); i >= 0 && j > i {
		clean = clean[i : j+1]
	}
	var s model.Schema
	if err := json.Unmarshal([]byte(clean), &s); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidSchema, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func imageInput(img *model.Image) error {
	if img == nil || len(img.Data) == 0 {
		return fmt.Errorf("image has no data")
	}
	return nil
}

func nonEmpty(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyResponse
	}
	return s, nil
}

// stripFence removes a surrounding ``` block, with or without one of the
// given language tags.
func stripFence(s string, langs ...string) string {
	clean := strings.TrimSpace(s)
	if !strings.HasPrefix(clean, "```") {
		return clean
	}
	clean = strings.TrimPrefix(clean, "```")
	for _, l := range langs {
		if strings.HasPrefix(clean, l) {
			clean = strings.TrimPrefix(clean, l)
			break
		}
	}
	clean = strings.TrimSuffix(clean, "```")
	return strings.TrimSpace(clean)
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
