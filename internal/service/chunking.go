package service

import (
	"strings"
)

// DefaultMaxChunkChars is the default chunk size for knowledge ingestion.
const DefaultMaxChunkChars = 1000

// Chunk splits text into ordered passages of at most maxLength characters.
// Sentences (terminated by '.', '!' or '?') are accumulated greedily; a
// sentence that alone exceeds maxLength falls back to accumulating
// whitespace-delimited words. A single word longer than maxLength is
// emitted whole, the only permitted overshoot. Empty or all-whitespace
// input yields no chunks.
func Chunk(text string, maxLength int) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxChunkChars
	}

	var chunks []string
	current := ""

	flush := func() {
		if current != "" {
			chunks = append(chunks, current)
			current = ""
		}
	}

	for _, sentence := range splitSentences(clean) {
		sentenceLen := len([]rune(sentence))

		if sentenceLen > maxLength {
			flush()
			chunks = append(chunks, chunkWords(sentence, maxLength)...)
			continue
		}

		if current == "" {
			current = sentence
			continue
		}

		if len([]rune(current))+1+sentenceLen > maxLength {
			flush()
			current = sentence
			continue
		}

		current += " " + sentence
	}

	flush()
	return chunks
}

// splitSentences cuts text at sentence terminators, keeping the terminator
// with its sentence.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder

	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
		}
	}

	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

func chunkWords(sentence string, maxLength int) []string {
	var chunks []string
	current := ""

	for _, word := range strings.Fields(sentence) {
		wordLen := len([]rune(word))

		if wordLen > maxLength {
			if current != "" {
				chunks = append(chunks, current)
				current = ""
			}
			chunks = append(chunks, word)
			continue
		}

		if current == "" {
			current = word
			continue
		}

		if len([]rune(current))+1+wordLen > maxLength {
			chunks = append(chunks, current)
			current = word
			continue
		}

		current += " " + word
	}

	if current != "" {
		chunks = append(chunks, current)
	}

	return chunks
}
