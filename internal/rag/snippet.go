package rag

import "strings"

const (
	snippetWindowWords = 50
	snippetMaxChars    = 1500
	snippetLeftPad     = 50
)

// extractSnippet finds the window of content most relevant to query and
// returns a bounded excerpt around it. The scorer counts distinct query
// words present in a window, not occurrences, so a window repeating one
// query word fifty times scores the same as a window containing every
// query word once — preserved deliberately rather than "fixed".
func extractSnippet(content, query string) string {
	words := strings.Fields(content)
	queryWords := uniqueLower(strings.Fields(query))

	if len(words) == 0 || len(queryWords) == 0 {
		return prefixFallback(content)
	}

	bestIdx, bestScore := 0, -1
	windowSize := snippetWindowWords
	for start := 0; start < len(words); start++ {
		end := start + windowSize
		if end > len(words) {
			end = len(words)
		}
		score := distinctMatchCount(words[start:end], queryWords)
		if score > bestScore {
			bestScore = score
			bestIdx = start
		}
		if end == len(words) {
			break
		}
	}

	if bestScore <= 0 {
		return prefixFallback(content)
	}

	charOffset := wordStartCharOffset(content, words, bestIdx)
	start := charOffset - snippetLeftPad
	if start < 0 {
		start = 0
	}
	end := start + snippetMaxChars
	if end > len(content) {
		end = len(content)
	}

	return trimToWordBoundaries(content, start, end)
}

func distinctMatchCount(window []string, queryWords []string) int {
	lowerWindow := make([]string, len(window))
	for i, w := range window {
		lowerWindow[i] = strings.ToLower(w)
	}
	joined := strings.Join(lowerWindow, " ")

	count := 0
	for _, qw := range queryWords {
		if strings.Contains(joined, qw) {
			count++
		}
	}
	return count
}

func uniqueLower(words []string) []string {
	seen := make(map[string]bool, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		lw := strings.ToLower(w)
		if !seen[lw] {
			seen[lw] = true
			out = append(out, lw)
		}
	}
	return out
}

// wordStartCharOffset finds the character offset in content where the
// wordIdx-th whitespace-separated word begins.
func wordStartCharOffset(content string, words []string, wordIdx int) int {
	if wordIdx <= 0 {
		return 0
	}

	count := 0
	inWord := false
	for i, r := range content {
		isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if !isSpace && !inWord {
			inWord = true
			if count == wordIdx {
				return i
			}
			count++
		} else if isSpace {
			inWord = false
		}
	}
	return len(content)
}

func trimToWordBoundaries(content string, start, end int) string {
	leftTruncated := start > 0
	rightTruncated := end < len(content)

	for start > 0 && start < len(content) && !isSpaceByte(content[start-1]) && !isSpaceByte(content[start]) {
		start--
	}
	for end < len(content) && end > 0 && !isSpaceByte(content[end-1]) && !isSpaceByte(content[end]) {
		end++
	}
	if start < 0 {
		start = 0
	}
	if end > len(content) {
		end = len(content)
	}

	excerpt := strings.TrimSpace(content[start:end])
	if leftTruncated {
		excerpt = "..." + excerpt
	}
	if rightTruncated {
		excerpt = excerpt + "..."
	}
	return excerpt
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func prefixFallback(content string) string {
	if len(content) <= snippetMaxChars {
		return content
	}
	end := snippetMaxChars
	for end < len(content) && !isSpaceByte(content[end]) {
		end++
	}
	if end > len(content) {
		end = len(content)
	}
	return strings.TrimSpace(content[:end]) + "..."
}
