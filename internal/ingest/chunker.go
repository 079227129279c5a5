// Package ingest loads documents into the Qdrant collection read by the
// vector knowledge provider: text is split into overlapping chunks, embedded
// in batches and upserted with the payload fields the retriever expects.
package ingest

import (
	"strings"
	"unicode/utf8"
)

// ChunkerConfig configures the text chunker. Sizes are in runes.
type ChunkerConfig struct {
	ChunkSize    int
	ChunkOverlap int
	// Separator is tried before the built-in separators.
	Separator string
}

// DefaultChunkerConfig returns defaults sized for short knowledge passages.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{ChunkSize: 512, ChunkOverlap: 50}
}

// separators in priority order. Sentence ends cover both CJK and Latin
// punctuation; "" means a hard split by rune count.
var separators = []string{"\n\n", "\n", "。", "！", "？", ". ", "; ", " ", ""}

// Split splits text into chunks of at most ChunkSize runes, each starting
// with the last ChunkOverlap runes of the previous one. Blank text yields
// no chunks.
func Split(text string, cfg ChunkerConfig) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 512
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = 0
	}
	seps := separators
	if cfg.Separator != "" {
		seps = append([]string{cfg.Separator}, separators...)
	}
	return split(text, seps, cfg.ChunkSize, cfg.ChunkOverlap)
}

func split(text string, seps []string, size, overlap int) []string {
	if utf8.RuneCountInString(text) <= size {
		return []string{text}
	}

	var segments []string
	sep := ""
	for i, s := range seps {
		if s == "" {
			segments = splitByRunes(text, size-overlap)
			break
		}
		if parts := strings.Split(text, s); len(parts) > 1 {
			segments, sep = parts, s
			// A segment still longer than a chunk is split with the
			// remaining separators before merging.
			var fine []string
			for _, p := range parts {
				if utf8.RuneCountInString(p) > size {
					fine = append(fine, split(p, seps[i+1:], size-overlap, 0)...)
				} else {
					fine = append(fine, p)
				}
			}
			segments = fine
			break
		}
	}

	var chunks []string
	var current strings.Builder
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		n := utf8.RuneCountInString(current.String())
		if current.Len() > 0 && n+utf8.RuneCountInString(sep)+utf8.RuneCountInString(seg) > size {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			tail := overlapTail(current.String(), overlap)
			current.Reset()
			if tail != "" && utf8.RuneCountInString(tail)+utf8.RuneCountInString(sep)+utf8.RuneCountInString(seg) <= size {
				current.WriteString(tail)
				current.WriteString(sep)
			}
			current.WriteString(seg)
			continue
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(seg)
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}

// overlapTail returns the last n runes of s.
func overlapTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if n >= len(runes) {
		return s
	}
	return string(runes[len(runes)-n:])
}

func splitByRunes(text string, n int) []string {
	if n <= 0 {
		n = 1
	}
	runes := []rune(text)
	var segments []string
	for i := 0; i < len(runes); i += n {
		end := min(i+n, len(runes))
		segments = append(segments, string(runes[i:end]))
	}
	return segments
}
