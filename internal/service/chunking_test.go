package service

import (
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rebuild(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(string([]rune(s.Text)[s.Overlap:]))
	}
	return b.String()
}

func sampleText(r *rand.Rand, words int) string {
	vocab := []string{"invoice", "tax", "policy", "coverage", "déductible", "the", "a", "of", "premium", "claim", "年度", "report"}
	var b strings.Builder
	for i := 0; i < words; i++ {
		b.WriteString(vocab[r.Intn(len(vocab))])
		switch r.Intn(20) {
		case 0:
			b.WriteString(".\n\n")
		case 1:
			b.WriteString("\n")
		case 2:
			b.WriteString(". ")
		default:
			b.WriteString(" ")
		}
	}
	return b.String()
}

func TestChunker_EmptyText(t *testing.T) {
	c := NewChunker(DefaultChunkConfig())

	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("   \n\t "))
}

func TestChunker_ShortTextSingleChunk(t *testing.T) {
	c := NewChunker(DefaultChunkConfig())

	text := strings.Repeat("x", 1000)
	chunks := c.Split(text)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])

	chunks = c.Split("Hello world.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "Hello world.", chunks[0])
}

func TestChunker_LosslessReconstruction(t *testing.T) {
	c := NewChunker(DefaultChunkConfig())
	r := rand.New(rand.NewSource(7))

	for i := 0; i < 50; i++ {
		text := sampleText(r, 200+r.Intn(2000))
		segments := c.SplitSegments(text)

		require.NotEmpty(t, segments)
		assert.Equal(t, text, rebuild(segments))
	}
}

func TestChunker_SegmentInvariants(t *testing.T) {
	cfg := DefaultChunkConfig()
	c := NewChunker(cfg)
	r := rand.New(rand.NewSource(11))
	text := sampleText(r, 3000)
	runes := []rune(text)

	segments := c.SplitSegments(text)
	require.Greater(t, len(segments), 1)

	for i, s := range segments {
		assert.Equal(t, i, s.Index)
		assert.LessOrEqual(t, utf8.RuneCountInString(s.Text), cfg.MaxChars)
		assert.Equal(t, string(runes[s.Start:s.End]), s.Text)
		if i == 0 {
			assert.Equal(t, 0, s.Start)
			assert.Equal(t, 0, s.Overlap)
			continue
		}
		prev := segments[i-1]
		assert.Greater(t, s.Start, prev.Start)
		assert.LessOrEqual(t, s.Overlap, cfg.Overlap)
		assert.GreaterOrEqual(t, s.Overlap, 0)
		assert.Equal(t, prev.End-s.Start, s.Overlap)
	}
	assert.Equal(t, len(runes), segments[len(segments)-1].End)
}

func TestChunker_PrefersParagraphBreaks(t *testing.T) {
	c := NewChunker(DefaultChunkConfig())

	first := strings.Repeat("alpha ", 120) // 720 runes
	second := strings.Repeat("beta ", 200)
	text := first + "\n\n" + second

	chunks := c.Split(text)

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.True(t, strings.HasSuffix(chunks[0], "\n\n"))
	assert.Equal(t, first+"\n\n", chunks[0])
}

func TestChunker_FallsBackToSentenceThenSpace(t *testing.T) {
	c := NewChunker(DefaultChunkConfig())

	sentence := strings.Repeat("word ", 140) + "end. "
	text := sentence + strings.Repeat("more ", 200)

	chunks := c.Split(text)

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.True(t, strings.HasSuffix(chunks[0], "end. "))
}

func TestChunker_HardCutWithoutSeparators(t *testing.T) {
	c := NewChunker(DefaultChunkConfig())

	text := strings.Repeat("x", 2500)
	segments := c.SplitSegments(text)

	require.Len(t, segments, 3)
	assert.Equal(t, 1000, segments[0].End)
	assert.Equal(t, 800, segments[1].Start)
	assert.Equal(t, text, rebuild(segments))
}

func TestChunker_OverlapStartsAtWord(t *testing.T) {
	c := NewChunker(DefaultChunkConfig())

	text := strings.Repeat("lorem ipsum ", 300)
	segments := c.SplitSegments(text)

	require.Greater(t, len(segments), 1)
	for _, s := range segments[1:] {
		assert.NotEqual(t, ' ', []rune(s.Text)[0])
		assert.Equal(t, ' ', []rune(text)[s.Start-1])
	}
}

func TestChunker_StableOrder(t *testing.T) {
	c := NewChunker(DefaultChunkConfig())
	text := sampleText(rand.New(rand.NewSource(3)), 1500)

	assert.Equal(t, c.Split(text), c.Split(text))
}
