package ingest

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
)

const pageSeparator = "\n\n"

// sentence endings, best first
var sentenceBreaks = []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}

type Span struct {
	Text  string
	Start int
	End   int
}

// Chunker is a greedy window splitter. Sizes are in bytes, cuts never split a rune.
type Chunker struct {
	Size    int
	Overlap int
}

func NewChunker() Chunker {
	return Chunker{Size: config.ChunkSize, Overlap: config.ChunkOverlap}
}

func (c Chunker) params() (int, int) {
	size := c.Size
	if size <= 0 {
		size = config.ChunkSize
	}
	overlap := c.Overlap
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 4
	}
	return size, overlap
}

// SplitText cuts text into windows of at most Size bytes. Each window ends at the
// last paragraph break, sentence end or whitespace in its second half (hard cut
// otherwise) and the next one starts Overlap bytes before that end.
func (c Chunker) SplitText(text string) []Span {
	size, overlap := c.params()

	var spans []Span
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else {
			end = breakPoint(text, start, end, size, overlap)
		}

		if strings.TrimSpace(text[start:end]) != "" {
			spans = append(spans, Span{Text: text[start:end], Start: start, End: end})
		}
		if end == len(text) {
			break
		}

		next := alignRune(text, end-overlap)
		if next <= start {
			next = end
		}
		start = next
	}
	return spans
}

func breakPoint(text string, start int, end int, size int, overlap int) int {
	lo := start + max(size/2, overlap+1)
	if lo >= end {
		return hardCut(text, start, end)
	}
	window := text[lo:end]

	if i := strings.LastIndex(window, "\n\n"); i >= 0 {
		return lo + i + 2
	}

	best := -1
	for _, sep := range sentenceBreaks {
		if i := strings.LastIndex(window, sep); i >= 0 && i+len(sep) > best {
			best = i + len(sep)
		}
	}
	if best > 0 {
		return lo + best
	}

	if i := strings.LastIndexFunc(window, unicode.IsSpace); i >= 0 {
		_, w := utf8.DecodeRuneInString(window[i:])
		return lo + i + w
	}
	return hardCut(text, start, end)
}

func hardCut(text string, start int, end int) int {
	cut := alignRune(text, end)
	if cut <= start {
		// a single rune wider than the window
		_, w := utf8.DecodeRuneInString(text[start:])
		return start + w
	}
	return cut
}

// alignRune moves i back to the start of the rune it falls in.
func alignRune(text string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(text) {
		return len(text)
	}
	for i > 0 && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

// PrepareChunks splits the concatenated page text and numbers the chunks in
// reading order. PageNum is the page the chunk starts on.
func (c Chunker) PrepareChunks(pages []docModel.Page, source string) []docModel.Chunk {
	var b strings.Builder
	pageStarts := make([]int, 0, len(pages))
	pageNums := make([]int, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p.Content) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(pageSeparator)
		}
		pageStarts = append(pageStarts, b.Len())
		pageNums = append(pageNums, p.Number)
		b.WriteString(p.Content)
	}

	spans := c.SplitText(b.String())
	chunks := make([]docModel.Chunk, 0, len(spans))
	page := 0
	for i, s := range spans {
		for page+1 < len(pageStarts) && pageStarts[page+1] <= s.Start {
			page++
		}
		chunks = append(chunks, docModel.Chunk{
			Text:     s.Text,
			Source:   source,
			Sequence: i,
			Offset:   s.Start,
			PageNum:  pageNums[page],
		})
	}
	return chunks
}

// JoinPages is the text PrepareChunks splits, used where a caller needs the
// whole document.
func JoinPages(pages []docModel.Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p.Content) != "" {
			parts = append(parts, p.Content)
		}
	}
	return strings.Join(parts, pageSeparator)
}
