package chunking

import (
	"regexp"
	"sort"
	"strings"
)

// ChunkKind marks how a chunk was produced.
type ChunkKind string

const (
	KindSection   ChunkKind = "section"
	KindParagraph ChunkKind = "paragraph"
)

// Chunk is a bounded segment of document text with a computed relevance score.
// EnhancedLength >= OriginalLength always: overlap stitching only adds text.
type Chunk struct {
	Content        string    `json:"content"`
	Relevance      float64   `json:"relevance"`
	Kind           ChunkKind `json:"kind"`
	SourceDocId    string    `json:"source_doc_id,omitempty"`
	OriginalLength int       `json:"original_length"`
	EnhancedLength int       `json:"enhanced_length"`
}

// Config tunes the chunker. Zero values fall back to defaults.
type Config struct {
	MaxChunkSize             int     // max characters per chunk (default 25000)
	MinChunkLength           int     // chunks shorter than this are dropped (default 100)
	OverlapSize              int     // characters of neighbour context stitched on (default 1000)
	ScoreNormalizationFactor float64 // divisor weight per query word (default 10)
	Vocabulary               Vocabulary
}

const (
	defaultMaxChunkSize   = 25000
	defaultMinChunkLength = 100
	defaultOverlapSize    = 1000
	defaultScoreFactor    = 10

	// boilerplate drop threshold after normalization
	relevanceFloor = -0.5

	prevContextTag = "[previous context]\n"
	nextContextTag = "\n[next context]\n"
)

// Chunker splits documents into relevance-scored chunks.
type Chunker struct {
	cfg Config
}

func NewChunker(cfg Config) *Chunker {
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = defaultMaxChunkSize
	}
	if cfg.MinChunkLength <= 0 {
		cfg.MinChunkLength = defaultMinChunkLength
	}
	if cfg.OverlapSize <= 0 {
		cfg.OverlapSize = defaultOverlapSize
	}
	if cfg.ScoreNormalizationFactor <= 0 {
		cfg.ScoreNormalizationFactor = defaultScoreFactor
	}
	if cfg.Vocabulary.DisclaimerPatterns == nil && cfg.Vocabulary.BusinessPatterns == nil {
		cfg.Vocabulary = DefaultVocabulary()
	}
	cfg.Vocabulary.compile()
	return &Chunker{cfg: cfg}
}

// Structural split patterns, strongest signal first. The first class that
// yields more than one boundary wins.
var splitPatterns = []*regexp.Regexp{
	// Markdown-like headings
	regexp.MustCompile(`(?m)^#{1,6}[ \t]+\S.*$`),
	// Short ALL-CAPS lines (section titles in filings)
	regexp.MustCompile(`(?m)^[A-Z][A-Z0-9 ,&'()\-/.]{2,79}$`),
	// Numbered headers or short colon-terminated headers
	regexp.MustCompile(`(?m)^(?:\d+[.)][ \t]+\S.*|[A-Z][^\n:]{0,78}:)[ \t]*$`),
}

// SelectRelevantChunks splits content, scores each candidate against the
// query, filters boilerplate and stitches neighbour overlap onto survivors.
func (c *Chunker) SelectRelevantChunks(content, query string) []Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	if len(content) <= c.cfg.MaxChunkSize {
		return []Chunk{{
			Content:        content,
			Relevance:      c.CalculateRelevance(content, query),
			Kind:           KindSection,
			OriginalLength: len(content),
			EnhancedLength: len(content),
		}}
	}

	parts, kind := c.split(content)

	var candidates []Chunk
	for _, p := range parts {
		if len(p) < c.cfg.MinChunkLength {
			continue
		}
		candidates = append(candidates, Chunk{
			Content:        p,
			Relevance:      c.CalculateRelevance(p, query),
			Kind:           kind,
			OriginalLength: len(p),
			EnhancedLength: len(p),
		})
	}

	kept := make([]Chunk, 0, len(candidates))
	for _, ch := range candidates {
		if c.keep(ch.Content) && ch.Relevance > relevanceFloor {
			kept = append(kept, ch)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Relevance > kept[j].Relevance })

	// Never return empty for splittable content: fall back to the two
	// highest-scoring candidates when filtering removed everything.
	if len(kept) == 0 && len(candidates) > 0 {
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Relevance > candidates[j].Relevance
		})
		kept = candidates
		if len(kept) > 2 {
			kept = kept[:2]
		}
	}

	return c.StitchOverlap(kept)
}

// keep applies the vocabulary filter: business-heavy chunks survive,
// disclaimer-heavy chunks do not.
func (c *Chunker) keep(content string) bool {
	business := c.cfg.Vocabulary.BusinessCount(content)
	disclaimer := c.cfg.Vocabulary.DisclaimerCount(content)
	return business >= 2 || (business >= 1 && disclaimer < 3)
}

// split breaks content at structural boundaries, falling back to packed
// paragraphs when no heading pattern produces more than one segment.
func (c *Chunker) split(content string) ([]string, ChunkKind) {
	for _, re := range splitPatterns {
		locs := re.FindAllStringIndex(content, -1)
		if len(locs) > 1 {
			return splitAt(content, locs), KindSection
		}
	}
	return c.packParagraphs(content), KindParagraph
}

func splitAt(content string, locs [][]int) []string {
	var parts []string
	prev := 0
	for _, loc := range locs {
		if loc[0] > prev {
			parts = append(parts, strings.TrimSpace(content[prev:loc[0]]))
		}
		prev = loc[0]
	}
	parts = append(parts, strings.TrimSpace(content[prev:]))

	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

var paragraphSep = regexp.MustCompile(`\n[ \t]*\n`)

// packParagraphs joins blank-line delimited paragraphs into chunks not
// exceeding MaxChunkSize, breaking only at paragraph boundaries.
func (c *Chunker) packParagraphs(content string) []string {
	paragraphs := paragraphSep.Split(content, -1)

	var chunks []string
	var current strings.Builder
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(p)+2 > c.cfg.MaxChunkSize {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// StitchOverlap prepends the tail of the previous chunk and appends the head
// of the next chunk, in final order. Purely additive: recorded relevance and
// OriginalLength are untouched. Re-stitching an already stitched list is a
// no-op.
func (c *Chunker) StitchOverlap(chunks []Chunk) []Chunk {
	if len(chunks) < 2 {
		return chunks
	}

	originals := make([]string, len(chunks))
	for i, ch := range chunks {
		if strings.Contains(ch.Content, prevContextTag) || strings.Contains(ch.Content, nextContextTag) {
			return chunks
		}
		originals[i] = ch.Content
	}

	n := c.cfg.OverlapSize
	for i := range chunks {
		var b strings.Builder
		if i > 0 {
			prev := originals[i-1]
			if len(prev) > n {
				prev = prev[len(prev)-n:]
			}
			b.WriteString(prevContextTag)
			b.WriteString(prev)
			b.WriteString("\n")
		}
		b.WriteString(originals[i])
		if i < len(chunks)-1 {
			next := originals[i+1]
			if len(next) > n {
				next = next[:n]
			}
			b.WriteString(nextContextTag)
			b.WriteString(next)
		}
		chunks[i].Content = b.String()
		chunks[i].EnhancedLength = len(chunks[i].Content)
	}
	return chunks
}
