package intelliparse_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tsawler/intelliparse"
	"github.com/tsawler/intelliparse/cache"
	"github.com/tsawler/intelliparse/understand"
	"github.com/tsawler/intelliparse/understand/gemini"
)

// These examples verify the README code samples compile correctly.
// They are not meant to be run as actual tests since they require files.

func Example_extractText() {
	ctx := context.Background()

	// Works with every supported format
	text, warnings, err := intelliparse.Open("document.pdf").Text(ctx)
	// text, warnings, err := intelliparse.Open("document.docx").Text(ctx)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(text)

	for _, w := range warnings {
		fmt.Println("Warning:", w.Message)
	}
}

func Example_extractWithOptions() {
	text, warnings, err := intelliparse.Open("deck.pptx").
		Pages(1, 2, 3). // Specific pages (PDF only)
		ExcludeNotes(). // Drop speaker notes (PPTX only)
		Text(context.Background())
	_ = text
	_ = warnings
	_ = err
}

func Example_extractMarkdown() {
	ctx := context.Background()

	// DOCX (preserves headings, lists, tables)
	markdown, warnings, err := intelliparse.Open("document.docx").Markdown(ctx)
	_ = markdown
	_ = warnings
	_ = err

	// Bytes from anywhere; the name is only a hint
	markdown, warnings, err = intelliparse.FromBytes("upload.bin", []byte("<p>hi</p>")).Markdown(ctx)
	_ = markdown
	_ = warnings
	_ = err
}

func Example_aiAssist() {
	ctx := context.Background()

	client, err := gemini.New(ctx, "") // reads GEMINI_API_KEY
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	adapter := understand.NewAdapter(client,
		understand.WithRateLimit(2, 1),
		understand.WithTimeout(time.Minute),
	)

	md, warnings, err := intelliparse.Open("scanned.pdf").WithAI(adapter).Markdown(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(md)
	fmt.Println(intelliparse.FormatWarnings(warnings))

	schema, _, err := intelliparse.Open("contract.docx").WithAI(adapter).Schema(ctx)
	_ = schema
	_ = err
}

func Example_batch() {
	results, err := cache.New[*intelliparse.ExtractionResult](256)
	if err != nil {
		log.Fatal(err)
	}

	cfg := intelliparse.DefaultConfig()
	cfg.Concurrency = 4
	cfg.FileTimeout = 2 * time.Minute
	cfg.Cache = results
	p := intelliparse.New(cfg)

	out := p.ExtractAll(context.Background(), []intelliparse.Input{
		{Name: "a.pdf", Data: []byte("%PDF-1.7 ...")},
		{Name: "b.zip", Data: []byte("PK...")},
	})
	for _, r := range out {
		if r.Err != nil {
			fmt.Println(r.Name, "failed:", r.Err)
			continue
		}
		fmt.Println(r.Name, r.Format, len(r.Document.Sections), "sections")
	}
}
