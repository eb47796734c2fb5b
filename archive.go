package intelliparse

import (
	"context"
	"fmt"
	"strings"

	"github.com/tsawler/intelliparse/archive"
	"github.com/tsawler/intelliparse/format"
	"github.com/tsawler/intelliparse/model"
)

// extractArchive reads the members of an archive and runs each through the
// pipeline one level deeper. Member documents are merged, in archive
// order, into the archive document; each member result is kept in
// Entries. A member that fails becomes a warning.
func (p *Pipeline) extractArchive(ctx context.Context, res *ExtractionResult, data []byte, depth int) {
	ar, err := archive.OpenBytes(res.Name, data, archive.WithLimits(p.cfg.Archive))
	if err != nil {
		res.Err = fmt.Errorf("failed to open %s: %w", res.Format, err)
		return
	}
	defer ar.Close()
	res.Warnings = append(res.Warnings, stringWarnings(StageParse, ar.Warnings())...)

	var docs []*model.Document
	for _, e := range ar.Entries() {
		if err := ctx.Err(); err != nil {
			res.warn(StageParse, 0, fmt.Sprintf("%s: %v", e.Name, err))
			break
		}
		if depth+1 > p.cfg.MaxArchiveDepth && format.Sniff(e.Name, e.Data).Format.IsArchive() {
			res.warn(StageParse, 0, fmt.Sprintf("%s: nested archive deeper than %d levels skipped", e.Name, p.cfg.MaxArchiveDepth))
			continue
		}

		member := p.extract(ctx, e.Name, e.Data, depth+1)
		res.Entries = append(res.Entries, member)
		res.Job.OCRCalls += member.Job.OCRCalls
		res.Job.AICalls += member.Job.AICalls
		if member.Err != nil {
			res.warn(StageParse, 0, fmt.Sprintf("%s: %v", e.Name, member.Err))
			continue
		}
		docs = append(docs, memberDocument(e.Name, member.Document))
	}

	doc := model.MergeDocuments(docs...)
	doc.Name, doc.Format = res.Name, res.Format.String()
	meta := ar.Metadata()
	meta.Title = doc.Metadata.Title
	doc.Metadata = meta
	res.Document = doc

	// members were enriched already; only order and text need rebuilding
	res.Warnings = append(res.Warnings, stringWarnings(StageNormalize, p.normalize(doc))...)
	p.assemble(res)
	res.Job.Pages = len(doc.Sections)
}

// memberDocument copies a member document for merging, so renumbering the
// archive leaves the entry result intact. Untitled sections take the
// member path, which keeps the origin of each section visible.
func memberDocument(name string, d *model.Document) *model.Document {
	c := copyDocument(d)
	for i, s := range c.Sections {
		if strings.TrimSpace(s.Title) != "" {
			continue
		}
		if len(c.Sections) == 1 {
			s.Title = name
		} else {
			s.Title = fmt.Sprintf("%s (%d)", name, i+1)
		}
	}
	return c
}
