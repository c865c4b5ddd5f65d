// Package textchunk splits long input into word-bounded pieces that fit a
// single translate-TTS request.
package textchunk

import (
	"strings"
	"unicode/utf8"
)

// Chunk is one request-sized slice of the input text.
type Chunk struct {
	Text    string
	Ordinal int
}

// Len reports the length of text in characters.
func Len(text string) int {
	return utf8.RuneCountInString(text)
}

// Count returns the number of whitespace-separated words in text.
func Count(text string) int {
	return len(strings.Fields(text))
}

// Split packs the words of text greedily into chunks. A word joins the current
// chunk only while the chunk plus a joining space plus the word stays strictly
// below maxLen characters. Words are never split, so a single word of maxLen
// characters or more becomes a chunk of its own.
func Split(text string, maxLen int) []Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var (
		chunks []Chunk
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if curLen == 0 {
			return
		}
		chunks = append(chunks, Chunk{Text: cur.String(), Ordinal: len(chunks)})
		cur.Reset()
		curLen = 0
	}

	for _, w := range words {
		wl := Len(w)
		if curLen > 0 && curLen+1+wl >= maxLen {
			flush()
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(w)
		curLen += wl
	}
	flush()
	return chunks
}
