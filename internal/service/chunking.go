package service

import (
	"strings"
	"unicode"
)

// ChunkConfig controls how extracted document text is split for embedding.
type ChunkConfig struct {
	MaxChars int
	// MinChars is the earliest point a separator may end a chunk.
	MinChars int
	Overlap  int
	// Separators are tried in priority order; each level holds equivalent
	// boundaries and the last one inside the window wins.
	Separators [][]string
}

// DefaultChunkConfig provides the defaults used for document ingestion.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars: 1000,
		MinChars: 500,
		Overlap:  200,
		Separators: [][]string{
			{"\n\n"},
			{"\n"},
			{". ", "! ", "? "},
			{" "},
		},
	}
}

// Segment is one chunk with its rune offsets into the source text.
// Overlap is the number of leading runes shared with the previous segment.
type Segment struct {
	Index   int
	Start   int
	End     int
	Overlap int
	Text    string
}

// Chunker splits text into ordered, overlapping segments.
type Chunker struct {
	cfg        ChunkConfig
	separators [][][]rune
}

func NewChunker(cfg ChunkConfig) *Chunker {
	def := DefaultChunkConfig()
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = def.MaxChars
	}
	if cfg.MinChars <= 0 || cfg.MinChars >= cfg.MaxChars {
		cfg.MinChars = cfg.MaxChars / 2
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.MaxChars {
		cfg.Overlap = 0
	}
	if len(cfg.Separators) == 0 {
		cfg.Separators = def.Separators
	}

	levels := make([][][]rune, len(cfg.Separators))
	for i, level := range cfg.Separators {
		for _, sep := range level {
			if sep != "" {
				levels[i] = append(levels[i], []rune(sep))
			}
		}
	}
	return &Chunker{cfg: cfg, separators: levels}
}

// Split returns the chunk texts in document order.
func (c *Chunker) Split(text string) []string {
	segments := c.SplitSegments(text)
	out := make([]string, len(segments))
	for i, s := range segments {
		out[i] = s.Text
	}
	return out
}

// SplitSegments splits text without trimming, so segments are exact
// substrings and the input can be rebuilt by dropping each Overlap prefix.
func (c *Chunker) SplitSegments(text string) []Segment {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	n := len(runes)
	if n <= c.cfg.MaxChars {
		return []Segment{{Index: 0, Start: 0, End: n, Text: text}}
	}

	segments := make([]Segment, 0, n/(c.cfg.MaxChars-c.cfg.Overlap)+1)
	start, prevEnd := 0, 0
	for {
		end := start + c.cfg.MaxChars
		if end >= n {
			end = n
		} else {
			end = c.cut(runes, start, end)
		}

		segments = append(segments, Segment{
			Index:   len(segments),
			Start:   start,
			End:     end,
			Overlap: prevEnd - start,
			Text:    string(runes[start:end]),
		})
		if end == n {
			return segments
		}

		next := c.nextStart(runes, start, end)
		prevEnd = end
		start = next
	}
}

// cut finds where a chunk starting at start should end, given the hard limit.
func (c *Chunker) cut(runes []rune, start, limit int) int {
	floor := start + c.cfg.MinChars
	for _, level := range c.separators {
		best := -1
		for _, sep := range level {
			if p := lastBoundary(runes, sep, floor, limit); p > best {
				best = p
			}
		}
		if best > 0 {
			return best
		}
	}
	return limit
}

// lastBoundary returns the position just after the last occurrence of sep
// that ends in (floor, limit], or -1.
func lastBoundary(runes, sep []rune, floor, limit int) int {
	for p := limit - len(sep); p+len(sep) > floor && p >= 0; p-- {
		if hasRunesAt(runes, sep, p) {
			return p + len(sep)
		}
	}
	return -1
}

func hasRunesAt(runes, sep []rune, p int) bool {
	for i, r := range sep {
		if runes[p+i] != r {
			return false
		}
	}
	return true
}

// nextStart backs up by the overlap from end and moves forward to the
// first word start, so overlaps do not begin mid-word.
func (c *Chunker) nextStart(runes []rune, start, end int) int {
	next := end - c.cfg.Overlap
	if next <= start {
		return end
	}
	for q := next; q < end; q++ {
		if isWordStart(runes, q) {
			return q
		}
	}
	return next
}

func isWordStart(runes []rune, q int) bool {
	return q > 0 && unicode.IsSpace(runes[q-1]) && !unicode.IsSpace(runes[q])
}
