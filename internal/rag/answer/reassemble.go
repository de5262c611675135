package answer

import (
	"strings"
	"unicode"
)

// Reassembler groups model tokens into readable fragments. The concatenation
// of everything it emits equals Normalize of the concatenated tokens.
type Reassembler struct {
	minFlush int
	pending  strings.Builder
	emitted  bool
}

func NewReassembler(minFlush int) *Reassembler {
	if minFlush < 1 {
		minFlush = 1
	}
	return &Reassembler{minFlush: minFlush}
}

// Push buffers a token and returns a fragment once the buffer is big enough or
// ends a sentence or line.
func (r *Reassembler) Push(token string) (string, bool) {
	r.pending.WriteString(token)
	body, _ := splitTrailingSpace(r.pending.String())
	if body == "" {
		return "", false
	}
	if len(body) < r.minFlush && !endsSegment(body) {
		return "", false
	}
	return r.emit(false)
}

// Flush returns whatever is left. Call it once at end of stream.
func (r *Reassembler) Flush() string {
	text, _ := r.emit(true)
	return text
}

func (r *Reassembler) emit(final bool) (string, bool) {
	body, rest := splitTrailingSpace(r.pending.String())
	r.pending.Reset()
	if !final {
		// trailing whitespace waits for the next token, it may precede punctuation
		r.pending.WriteString(rest)
	}

	text := collapse(body)
	if !r.emitted {
		text = strings.TrimLeftFunc(text, unicode.IsSpace)
	}
	if text == "" {
		return "", false
	}
	r.emitted = true
	return text, true
}

func endsSegment(s string) bool {
	if strings.Contains(s, "\n") {
		return true
	}
	switch s[len(s)-1] {
	case '.', '!', '?', ':', ';':
		return true
	}
	return false
}

func splitTrailingSpace(s string) (string, string) {
	body := strings.TrimRightFunc(s, unicode.IsSpace)
	return body, s[len(body):]
}

// Normalize collapses horizontal whitespace runs to one space, drops spaces in
// front of punctuation and line breaks, and trims the ends.
func Normalize(s string) string {
	return strings.TrimSpace(collapse(s))
}

func isHorizontalSpace(r rune) bool {
	return r != '\n' && unicode.IsSpace(r)
}

func attachesLeft(r rune) bool {
	switch r {
	case ',', '.', ';', ':', '!', '?', ')', '\n':
		return true
	}
	return false
}

func collapse(s string) string {
	runes := []rune(s)
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(runes); {
		if !isHorizontalSpace(runes[i]) {
			sb.WriteRune(runes[i])
			i++
			continue
		}
		j := i
		for j < len(runes) && isHorizontalSpace(runes[j]) {
			j++
		}
		if j < len(runes) && attachesLeft(runes[j]) {
			i = j
			continue
		}
		sb.WriteByte(' ')
		i = j
	}
	return sb.String()
}
