package keywords

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankedPhrases_SplitsAtStopWords(t *testing.T) {
	e := NewExtractor()

	phrases := e.RankedPhrases("the quick brown fox jumps over the lazy dog")
	require.NotEmpty(t, phrases)
	// "the" and "over" are stop words; multi-word runs survive intact.
	assert.Contains(t, phrases, "quick brown fox jumps")
	assert.Contains(t, phrases, "lazy dog")
	for _, p := range phrases {
		assert.NotContains(t, strings.Fields(p), "the")
	}
}

func TestRankedPhrases_LongerPhrasesRankHigher(t *testing.T) {
	e := NewExtractor()

	phrases := e.RankedPhrases("error handling in the authentication token refresh logic")
	require.NotEmpty(t, phrases)
	// Degree scoring favors longer co-occurring runs over lone words.
	assert.Equal(t, "authentication token refresh logic", phrases[0])
}

func TestRankedPhrases_StopWordOnlyTextYieldsNothing(t *testing.T) {
	e := NewExtractor()
	assert.Empty(t, e.RankedPhrases("the and of to was"))
}

func TestRankedPhrases_EmptyAndWhitespace(t *testing.T) {
	e := NewExtractor()
	assert.Empty(t, e.RankedPhrases(""))
	assert.Empty(t, e.RankedPhrases("   \n\t "))
}

func TestRankedPhrases_PunctuationBreaksPhrases(t *testing.T) {
	e := NewExtractor()

	phrases := e.RankedPhrases("parse json, validate schema")
	assert.Contains(t, phrases, "parse json")
	assert.Contains(t, phrases, "validate schema")
	assert.NotContains(t, phrases, "parse json validate schema")
}

func TestRankedPhrases_Lowercases(t *testing.T) {
	e := NewExtractor()

	phrases := e.RankedPhrases("Database Connection Pool")
	require.NotEmpty(t, phrases)
	assert.Equal(t, "database connection pool", phrases[0])
}

func TestRankedPhrases_DeduplicatesRepeats(t *testing.T) {
	e := NewExtractor()

	phrases := e.RankedPhrases("retry policy. retry policy. retry policy")
	count := 0
	for _, p := range phrases {
		if p == "retry policy" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRankedPhrases_KeepsIdentifierCharacters(t *testing.T) {
	e := NewExtractor()

	phrases := e.RankedPhrases("call get_user_by_id helper")
	assert.Contains(t, phrases, "call get_user_by_id helper")
}

func TestRankedPhrases_DeterministicOrder(t *testing.T) {
	e := NewExtractor()
	text := "token bucket rate limiter, sliding window rate limiter"

	first := e.RankedPhrases(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, e.RankedPhrases(text))
	}
}

func TestNewExtractorWithStopWords(t *testing.T) {
	e := NewExtractorWithStopWords([]string{"foo"})

	phrases := e.RankedPhrases("alpha foo beta")
	assert.Contains(t, phrases, "alpha")
	assert.Contains(t, phrases, "beta")
	assert.NotContains(t, phrases, "alpha foo beta")
}
