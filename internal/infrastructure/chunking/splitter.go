package chunking

import "strings"

// Splitter cuts text into rune windows of ChunkSize, each starting Overlap
// runes before the end of the previous one.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := min(start+s.ChunkSize, len(runes))
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

const excerptGap = "\n[...]\n"

// Excerpt keeps at most budget runes of text. Long text is reduced to its
// opening and closing windows, where titles, parties and signature dates
// usually sit.
func Excerpt(text string, budget int) string {
	text = strings.TrimSpace(text)
	if budget <= 0 || len([]rune(text)) <= budget {
		return text
	}
	half := budget / 2
	if half == 0 {
		return string([]rune(text)[:budget])
	}
	chunks := NewSplitter(half, 0).Split(text)
	if len(chunks) == 1 {
		return chunks[0]
	}
	return chunks[0] + excerptGap + tail(text, half)
}

func tail(text string, n int) string {
	runes := []rune(text)
	return strings.TrimSpace(string(runes[len(runes)-n:]))
}
