package ingest

import "strings"

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 300
	// DefaultOverlap is how many trailing characters of a chunk seed
	// the next one.
	DefaultOverlap = 50
	// DefaultMinChunk is the smallest chunk emitted on its own.
	DefaultMinChunk = 50
)

// Chunk splits text into overlapping chunks on sentence boundaries.
// Sentences accumulate until the target size; a fragment shorter than
// minChunk is folded into the previous chunk instead of standing alone.
func Chunk(text string, chunkSize, overlap, minChunk int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultOverlap
	}
	if minChunk <= 0 {
		minChunk = DefaultMinChunk
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sentences := splitSentences(text)

	var (
		chunks  []string
		current strings.Builder
	)
	flush := func() {
		chunk := strings.TrimSpace(current.String())
		current.Reset()
		if chunk == "" {
			return
		}
		if len(chunk) < minChunk && len(chunks) > 0 {
			chunks[len(chunks)-1] += " " + chunk
			return
		}
		chunks = append(chunks, chunk)
	}

	for _, sentence := range sentences {
		if current.Len() > 0 && current.Len()+len(sentence)+1 > chunkSize {
			tail := overlapTail(strings.TrimSpace(current.String()), overlap)
			flush()
			if tail != "" {
				current.WriteString(tail)
				current.WriteByte(' ')
			}
		}
		current.WriteString(sentence)
		current.WriteByte(' ')
	}
	flush()

	return chunks
}

// splitSentences breaks text after sentence-ending punctuation.
func splitSentences(text string) []string {
	var (
		sentences []string
		start     int
	)
	runes := []rune(text)
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' && r != '\n' {
			continue
		}
		if i+1 < len(runes) && r != '\n' && runes[i+1] != ' ' && runes[i+1] != '\n' {
			continue
		}
		s := strings.TrimSpace(string(runes[start : i+1]))
		if s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// overlapTail returns the last n characters of chunk, snapped forward
// to a word boundary. Counted in runes so a multibyte character is
// never split.
func overlapTail(chunk string, n int) string {
	runes := []rune(chunk)
	if n <= 0 || len(runes) <= n {
		return ""
	}
	tail := string(runes[len(runes)-n:])
	if idx := strings.IndexByte(tail, ' '); idx >= 0 {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}
