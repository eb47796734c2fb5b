package rag

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tsawler/intelliparse/model"
)

// ChunkLevel represents the hierarchical level of a chunk
type ChunkLevel int

const (
	// ChunkLevelDocument represents the entire document as one chunk
	ChunkLevelDocument ChunkLevel = iota
	// ChunkLevelSection represents a section defined by headings
	ChunkLevelSection
	// ChunkLevelParagraph represents a single paragraph
	ChunkLevelParagraph
	// ChunkLevelSentence represents a single sentence (used for oversized paragraphs)
	ChunkLevelSentence
)

// String returns a human-readable representation of the chunk level
func (cl ChunkLevel) String() string {
	switch cl {
	case ChunkLevelDocument:
		return "document"
	case ChunkLevelSection:
		return "section"
	case ChunkLevelParagraph:
		return "paragraph"
	case ChunkLevelSentence:
		return "sentence"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (cl ChunkLevel) MarshalText() ([]byte, error) {
	return []byte(cl.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (cl *ChunkLevel) UnmarshalText(b []byte) error {
	for l := ChunkLevelDocument; l <= ChunkLevelSentence; l++ {
		if l.String() == string(b) {
			*cl = l
			return nil
		}
	}
	return fmt.Errorf("unknown chunk level %q", b)
}

// ChunkMetadata contains rich metadata about a chunk's context within the document
type ChunkMetadata struct {
	// DocumentName is the file the chunk came from
	DocumentName string `json:"document_name,omitempty"`

	// DocumentTitle is the title of the source document
	DocumentTitle string `json:"document_title,omitempty"`

	// SectionPath is the hierarchical path of headings (e.g., ["Chapter 1", "Introduction", "Overview"])
	SectionPath []string `json:"section_path,omitempty"`

	// SectionTitle is the immediate section heading (last element of SectionPath)
	SectionTitle string `json:"section_title,omitempty"`

	// HeadingLevel is the level of the current section (1-6, 0 if no heading)
	HeadingLevel int `json:"heading_level,omitempty"`

	// SectionStart is the first document section (page, slide, sheet) covered, 1-indexed
	SectionStart int `json:"section_start"`

	// SectionEnd is the last document section covered, 1-indexed
	SectionEnd int `json:"section_end"`

	// ChunkIndex is the position of this chunk in the document (0-indexed)
	ChunkIndex int `json:"chunk_index"`

	// TotalChunks is the total number of chunks in the document
	TotalChunks int `json:"total_chunks,omitempty"`

	// Level is the hierarchical level of this chunk
	Level ChunkLevel `json:"level"`

	// ElementTypes lists the types of elements contained (text, list, table, etc.)
	ElementTypes []string `json:"element_types,omitempty"`

	HasTable bool `json:"has_table,omitempty"`
	HasList  bool `json:"has_list,omitempty"`
	HasImage bool `json:"has_image,omitempty"`

	// Confidence is the lowest confidence of any element in the chunk
	Confidence float64 `json:"confidence"`

	// Sources lists the stages that produced the content
	Sources []model.Source `json:"sources,omitempty"`

	// OverlapChars is the length of the text repeated from the previous chunk
	OverlapChars int `json:"overlap_chars,omitempty"`

	// CharCount is the number of characters in the chunk text
	CharCount int `json:"char_count"`

	// WordCount is the number of words in the chunk text
	WordCount int `json:"word_count"`

	// EstimatedTokens is an estimated token count (chars/4 as rough approximation)
	EstimatedTokens int `json:"estimated_tokens"`
}

// Chunk represents a semantic unit of text extracted from a document for RAG
type Chunk struct {
	// ID is a unique identifier for this chunk
	ID string `json:"id"`

	// Text is the chunk content
	Text string `json:"text"`

	// TextWithContext is the text with section heading prepended for better retrieval
	TextWithContext string `json:"text_with_context,omitempty"`

	// Metadata contains rich contextual information
	Metadata ChunkMetadata `json:"metadata"`
}

// NewChunk creates a new chunk with the given text and metadata
func NewChunk(id, text string, metadata ChunkMetadata) *Chunk {
	// Calculate text statistics
	metadata.CharCount = utf8.RuneCountInString(text)
	metadata.WordCount = countWords(text)
	metadata.EstimatedTokens = metadata.CharCount / 4 // Rough approximation

	chunk := &Chunk{
		ID:       id,
		Text:     text,
		Metadata: metadata,
	}

	// Generate text with context
	chunk.TextWithContext = chunk.generateContextualText()

	return chunk
}

// generateContextualText creates text with the heading path prepended
func (c *Chunk) generateContextualText() string {
	prefix := c.GetSectionPathString()
	if prefix == "" {
		prefix = c.Metadata.SectionTitle
	}
	if prefix == "" {
		return c.Text
	}
	return fmt.Sprintf("[%s]\n\n%s", prefix, c.Text)
}

// GetSectionPathString returns the section path as a formatted string
func (c *Chunk) GetSectionPathString() string {
	if len(c.Metadata.SectionPath) == 0 {
		return ""
	}
	return strings.Join(c.Metadata.SectionPath, " > ")
}

// ChunkerConfig holds configuration options for the chunker
type ChunkerConfig struct {
	// MaxChunkSize is the hard limit for chunk size in characters
	// Chunks will be split at paragraph, then sentence boundaries if they exceed this.
	// Overlap is added on top of it.
	// Default: 2000
	MaxChunkSize int

	// MinChunkSize is the minimum size for a chunk in characters
	// Smaller chunks are merged into the previous chunk when it has room
	// Default: 100
	MinChunkSize int

	// OverlapSize is the most characters of trailing sentences repeated
	// from the previous chunk of the same section; 0 disables overlap
	// Default: 100
	OverlapSize int

	// PreserveTableCoherence keeps tables as atomic units in markdown form
	// Default: true
	PreserveTableCoherence bool

	// IncludeSectionContext prepends section heading to chunk text
	// Default: true
	IncludeSectionContext bool

	// SplitOnHeadings creates new chunks at heading boundaries
	// Default: true
	SplitOnHeadings bool

	// MinHeadingLevel is the minimum heading level to split on (1-6)
	// Lower numbers = split on fewer headings
	// Default: 3 (split on H1, H2, H3)
	MinHeadingLevel int

	// IDPrefix is a prefix for generated chunk IDs
	// Default: "chunk"
	IDPrefix string
}

// DefaultChunkerConfig returns sensible default configuration
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		MaxChunkSize:           2000,
		MinChunkSize:           100,
		OverlapSize:            100,
		PreserveTableCoherence: true,
		IncludeSectionContext:  true,
		SplitOnHeadings:        true,
		MinHeadingLevel:        3,
		IDPrefix:               "chunk",
	}
}

// Chunker performs semantic chunking of documents
type Chunker struct {
	config ChunkerConfig
}

// NewChunker creates a new chunker with default configuration
func NewChunker() *Chunker {
	return &Chunker{
		config: DefaultChunkerConfig(),
	}
}

// NewChunkerWithConfig creates a chunker with custom configuration. A
// non-positive MaxChunkSize takes the default.
func NewChunkerWithConfig(config ChunkerConfig) *Chunker {
	if config.MaxChunkSize <= 0 {
		config.MaxChunkSize = DefaultChunkerConfig().MaxChunkSize
	}
	if config.IDPrefix == "" {
		config.IDPrefix = "chunk"
	}
	return &Chunker{
		config: config,
	}
}

// ChunkResult contains the chunking output
type ChunkResult struct {
	// Chunks are the generated chunks in reading order
	Chunks []*Chunk

	// DocumentTitle is the document title if available
	DocumentTitle string

	// TotalSections is the number of document sections processed
	TotalSections int

	// Statistics about the chunking process
	Stats ChunkStats
}

// ChunkStats contains statistics about the chunking process
type ChunkStats struct {
	TotalChunks     int
	TotalCharacters int
	TotalWords      int
	TotalTokensEst  int
	AvgChunkSize    int
	MinChunkSize    int
	MaxChunkSize    int
	SectionChunks   int
	ParagraphChunks int
	SentenceChunks  int
}

// Chunk processes a document and returns semantic chunks
func (c *Chunker) Chunk(doc *model.Document) (*ChunkResult, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}

	result := &ChunkResult{
		Chunks:        make([]*Chunk, 0),
		DocumentTitle: doc.Metadata.Title,
		TotalSections: len(doc.Sections),
	}

	chunkIndex := 0
	for _, b := range c.buildBlocks(doc) {
		result.Chunks = append(result.Chunks, c.chunkBlock(doc, b, &chunkIndex)...)
	}

	// Calculate statistics
	result.Stats = c.calculateStats(result.Chunks)

	// Set total chunks in metadata
	for _, chunk := range result.Chunks {
		chunk.Metadata.TotalChunks = len(result.Chunks)
	}

	return result, nil
}

// block is a run of content under one heading
type block struct {
	Title        string
	HeadingLevel int
	Path         []string
	Content      []contentElement
}

// contentElement represents a piece of content within a block
type contentElement struct {
	Type       model.ElementType
	Text       string
	Section    int
	Confidence float64
	Source     model.Source
}

type heading struct {
	level int
	title string
}

// buildBlocks groups the elements of doc by heading. A titled section
// resets the heading path; an untitled one continues the current block.
func (c *Chunker) buildBlocks(doc *model.Document) []*block {
	var blocks []*block
	var current *block
	var stack []heading

	open := func(title string, level int) {
		path := make([]string, 0, len(stack))
		for _, h := range stack {
			path = append(path, h.title)
		}
		current = &block{Title: title, HeadingLevel: level, Path: path}
		blocks = append(blocks, current)
	}

	for _, sec := range doc.Sections {
		if title := strings.TrimSpace(sec.Title); title != "" {
			stack = []heading{{level: 0, title: title}}
			open(title, 0)
		} else if current == nil {
			open("", 0)
		}

		for _, el := range sec.Elements {
			if el.Type == model.ElementTypeHeading && c.config.SplitOnHeadings && el.Level <= c.config.MinHeadingLevel {
				// Pop stack until we find parent level
				for len(stack) > 0 && stack[len(stack)-1].level >= el.Level {
					stack = stack[:len(stack)-1]
				}
				stack = append(stack, heading{level: el.Level, title: el.Text})
				open(el.Text, el.Level)
				continue
			}

			text := c.elementText(el)
			if strings.TrimSpace(text) == "" {
				continue
			}
			current.Content = append(current.Content, contentElement{
				Type:       el.Type,
				Text:       text,
				Section:    sec.Number,
				Confidence: el.Confidence,
				Source:     el.Source,
			})
		}
	}
	return blocks
}

// elementText renders an element for a chunk. Tables and lists keep their
// markdown structure.
func (c *Chunker) elementText(el *model.Element) string {
	switch el.Type {
	case model.ElementTypeTable:
		if c.config.PreserveTableCoherence {
			return el.Markdown()
		}
	case model.ElementTypeList:
		return el.Markdown()
	}
	return el.PlainText()
}

// piece is chunk text before IDs and metadata are assigned
type piece struct {
	text    string
	elems   []contentElement
	level   ChunkLevel
	overlap int
}

// chunkBlock processes a block into chunks
func (c *Chunker) chunkBlock(doc *model.Document, b *block, chunkIndex *int) []*Chunk {
	pieces := c.splitBlock(b)
	pieces = c.mergeSmall(pieces)
	c.applyOverlap(pieces)

	chunks := make([]*Chunk, 0, len(pieces))
	for _, p := range pieces {
		chunks = append(chunks, c.createChunk(doc, b, p, *chunkIndex))
		*chunkIndex++
	}
	return chunks
}

// splitBlock keeps a block whole when it fits, else splits it at element
// boundaries, and splits oversized elements by sentences.
func (c *Chunker) splitBlock(b *block) []*piece {
	texts := make([]string, len(b.Content))
	for i, e := range b.Content {
		texts[i] = e.Text
	}
	whole := strings.Join(texts, "\n\n")
	if strings.TrimSpace(whole) == "" {
		return nil
	}
	if runeLen(whole) <= c.config.MaxChunkSize {
		return []*piece{{text: whole, elems: b.Content, level: ChunkLevelSection}}
	}

	var pieces []*piece
	var current *piece
	flush := func() {
		if current != nil && strings.TrimSpace(current.text) != "" {
			pieces = append(pieces, current)
		}
		current = nil
	}

	for _, elem := range b.Content {
		size := runeLen(elem.Text)

		// Handle oversized single elements
		if size > c.config.MaxChunkSize {
			flush()
			if elem.Type == model.ElementTypeTable && c.config.PreserveTableCoherence {
				pieces = append(pieces, &piece{text: elem.Text, elems: []contentElement{elem}, level: ChunkLevelParagraph})
				continue
			}
			for _, s := range c.splitBySentences(elem.Text) {
				pieces = append(pieces, &piece{text: s, elems: []contentElement{elem}, level: ChunkLevelSentence})
			}
			continue
		}

		// Check if adding this element would exceed max size
		if current != nil && runeLen(current.text)+2+size > c.config.MaxChunkSize {
			flush()
		}
		if current == nil {
			current = &piece{text: elem.Text, level: ChunkLevelParagraph}
		} else {
			current.text += "\n\n" + elem.Text
		}
		current.elems = append(current.elems, elem)
	}
	flush()
	return pieces
}

// splitBySentences packs sentences into pieces no longer than the max
// size. A single sentence longer than that is cut at the limit.
func (c *Chunker) splitBySentences(text string) []string {
	limit := c.config.MaxChunkSize
	var out []string
	var current strings.Builder
	currentLen := 0

	for _, sentence := range splitIntoSentences(text) {
		for _, part := range splitRunes(sentence, limit) {
			n := runeLen(part)
			if currentLen > 0 && currentLen+1+n > limit {
				out = append(out, current.String())
				current.Reset()
				currentLen = 0
			}
			if currentLen > 0 {
				current.WriteByte(' ')
				currentLen++
			}
			current.WriteString(part)
			currentLen += n
		}
	}
	if currentLen > 0 {
		out = append(out, current.String())
	}
	return out
}

// mergeSmall folds pieces under the minimum size into the previous piece
// when the result still fits.
func (c *Chunker) mergeSmall(pieces []*piece) []*piece {
	if len(pieces) < 2 || c.config.MinChunkSize <= 0 {
		return pieces
	}
	out := []*piece{pieces[0]}
	for _, p := range pieces[1:] {
		prev := out[len(out)-1]
		if runeLen(p.text) < c.config.MinChunkSize && runeLen(prev.text)+2+runeLen(p.text) <= c.config.MaxChunkSize {
			prev.text += "\n\n" + p.text
			prev.elems = append(prev.elems, p.elems...)
			if p.level < prev.level {
				prev.level = p.level
			}
			continue
		}
		out = append(out, p)
	}
	return out
}

// applyOverlap repeats the trailing sentences of each piece at the start of
// the next. Tables are never used as overlap.
func (c *Chunker) applyOverlap(pieces []*piece) {
	if c.config.OverlapSize <= 0 {
		return
	}
	for i := len(pieces) - 1; i > 0; i-- {
		prev := pieces[i-1]
		if last := prev.elems[len(prev.elems)-1]; last.Type == model.ElementTypeTable {
			continue
		}
		tail := tailSentences(prev.text, c.config.OverlapSize)
		if tail == "" {
			continue
		}
		sep := "\n\n"
		if pieces[i].level == ChunkLevelSentence && prev.level == ChunkLevelSentence {
			sep = " "
		}
		pieces[i].text = tail + sep + pieces[i].text
		pieces[i].overlap = runeLen(tail)
	}
}

// createChunk creates a new Chunk for a piece of a block
func (c *Chunker) createChunk(doc *model.Document, b *block, p *piece, index int) *Chunk {
	id := fmt.Sprintf("%s_%d", c.config.IDPrefix, index)

	metadata := ChunkMetadata{
		DocumentName:  doc.Name,
		DocumentTitle: doc.Metadata.Title,
		SectionTitle:  b.Title,
		HeadingLevel:  b.HeadingLevel,
		ChunkIndex:    index,
		Level:         p.level,
		OverlapChars:  p.overlap,
		Confidence:    1,
	}
	if len(b.Path) > 0 {
		metadata.SectionPath = slices.Clone(b.Path)
	}

	for i, e := range p.elems {
		if i == 0 {
			metadata.SectionStart = e.Section
		}
		metadata.SectionEnd = e.Section
		if t := e.Type.String(); !slices.Contains(metadata.ElementTypes, t) {
			metadata.ElementTypes = append(metadata.ElementTypes, t)
		}
		if e.Source != "" && !slices.Contains(metadata.Sources, e.Source) {
			metadata.Sources = append(metadata.Sources, e.Source)
		}
		if e.Confidence < metadata.Confidence {
			metadata.Confidence = e.Confidence
		}
		switch e.Type {
		case model.ElementTypeTable:
			metadata.HasTable = true
		case model.ElementTypeList:
			metadata.HasList = true
		case model.ElementTypeImage, model.ElementTypeRegion:
			metadata.HasImage = true
		}
	}

	chunk := NewChunk(id, p.text, metadata)
	if !c.config.IncludeSectionContext {
		chunk.TextWithContext = ""
	}
	return chunk
}

// calculateStats computes statistics about the chunks
func (c *Chunker) calculateStats(chunks []*Chunk) ChunkStats {
	stats := ChunkStats{
		TotalChunks:  len(chunks),
		MinChunkSize: -1,
	}

	for _, chunk := range chunks {
		stats.TotalCharacters += chunk.Metadata.CharCount
		stats.TotalWords += chunk.Metadata.WordCount
		stats.TotalTokensEst += chunk.Metadata.EstimatedTokens

		if stats.MinChunkSize < 0 || chunk.Metadata.CharCount < stats.MinChunkSize {
			stats.MinChunkSize = chunk.Metadata.CharCount
		}
		if chunk.Metadata.CharCount > stats.MaxChunkSize {
			stats.MaxChunkSize = chunk.Metadata.CharCount
		}

		switch chunk.Metadata.Level {
		case ChunkLevelSection:
			stats.SectionChunks++
		case ChunkLevelParagraph:
			stats.ParagraphChunks++
		case ChunkLevelSentence:
			stats.SentenceChunks++
		}
	}

	if len(chunks) > 0 {
		stats.AvgChunkSize = stats.TotalCharacters / len(chunks)
	}

	if stats.MinChunkSize < 0 {
		stats.MinChunkSize = 0
	}

	return stats
}

// Helper functions

// countWords counts the number of words in text
func countWords(text string) int {
	words := 0
	inWord := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			inWord = false
		} else if !inWord {
			inWord = true
			words++
		}
	}
	return words
}

// splitIntoSentences splits text into sentences
func splitIntoSentences(text string) []string {
	var sentences []string
	var current []rune

	runes := []rune(text)
	for i, r := range runes {
		current = append(current, r)

		if r != '.' && r != '!' && r != '?' {
			continue
		}
		// Not an end if glued to the next word ("e.g.x", "3.14")
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		// Skip if preceded by single capital letter (initials like "J.")
		if i > 0 && unicode.IsUpper(runes[i-1]) && (i < 2 || unicode.IsSpace(runes[i-2])) {
			continue
		}

		if sentence := strings.TrimSpace(string(current)); sentence != "" {
			sentences = append(sentences, sentence)
		}
		current = current[:0]
	}

	// Add any remaining text
	if remaining := strings.TrimSpace(string(current)); remaining != "" {
		sentences = append(sentences, remaining)
	}

	return sentences
}

// tailSentences returns the longest run of trailing sentences of text that
// fits in limit characters.
func tailSentences(text string, limit int) string {
	sentences := splitIntoSentences(text)
	start, size := len(sentences), 0
	for i := len(sentences) - 1; i >= 0; i-- {
		n := runeLen(sentences[i])
		if start < len(sentences) {
			n++
		}
		if size+n > limit {
			break
		}
		size += n
		start = i
	}
	if start == len(sentences) {
		return ""
	}
	return strings.Join(sentences[start:], " ")
}

// splitRunes cuts s into parts of at most n runes.
func splitRunes(s string, n int) []string {
	runes := []rune(s)
	if len(runes) <= n {
		return []string{s}
	}
	var parts []string
	for len(runes) > n {
		parts = append(parts, string(runes[:n]))
		runes = runes[n:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
