package chunk

import "strings"

// DefaultSeparators is the split priority: paragraph break, line break,
// space, then character-level fallback.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter recursively splits text on a priority list of separators and
// greedily merges the pieces into chunks of at most chunkSize characters,
// carrying overlap characters between consecutive chunks.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// NewSplitter creates a Splitter with the default separator priority.
func NewSplitter(chunkSize, overlap int) *Splitter {
	return &Splitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: DefaultSeparators,
	}
}

// Split returns the chunk texts for the given text, in document order.
// The same input always yields the same chunks.
func (s *Splitter) Split(text string) []string {
	if text == "" {
		return nil
	}
	return s.splitText(text, s.separators)
}

func (s *Splitter) splitText(text string, seps []string) []string {
	// Pick the first separator that occurs in the text; "" always matches.
	sep := ""
	var rest []string
	for i, cand := range seps {
		if cand == "" {
			sep = ""
			rest = nil
			break
		}
		if strings.Contains(text, cand) {
			sep = cand
			rest = seps[i+1:]
			break
		}
	}

	var final []string
	var pending []string
	for _, piece := range splitKeep(text, sep) {
		if len(piece) < s.chunkSize {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			final = append(final, s.merge(pending)...)
			pending = nil
		}
		if len(rest) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.splitText(piece, rest)...)
		}
	}
	if len(pending) > 0 {
		final = append(final, s.merge(pending)...)
	}
	return final
}

// splitKeep splits text by sep, keeping each separator attached to the piece
// that follows it so chunks remain exact substrings of the input. An empty
// separator splits into single runes.
func splitKeep(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// merge greedily packs pieces into chunks bounded by chunkSize, then walks
// back over the tail pieces to produce the configured overlap.
func (s *Splitter) merge(pieces []string) []string {
	var docs []string
	var cur []string
	total := 0

	emit := func() {
		if doc := strings.TrimSpace(strings.Join(cur, "")); doc != "" {
			docs = append(docs, doc)
		}
	}

	for _, p := range pieces {
		l := len(p)
		if total+l > s.chunkSize && len(cur) > 0 {
			emit()
			for total > s.overlap || (total+l > s.chunkSize && total > 0) {
				total -= len(cur[0])
				cur = cur[1:]
			}
		}
		cur = append(cur, p)
		total += l
	}
	emit()
	return docs
}
