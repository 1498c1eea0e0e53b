package chunk

import "unicode/utf8"

// charsPerToken is the rough character-to-token ratio used by the built-in
// estimator. Real tokenizers vary per model; four characters per token is a
// workable approximation for code and prose.
const charsPerToken = 4

// EstimateTokens approximates the token count of one line.
// An empty line counts as zero tokens.
func EstimateTokens(line string) int {
	n := utf8.RuneCountInString(line)
	if n == 0 {
		return 0
	}
	return (n + charsPerToken - 1) / charsPerToken
}
