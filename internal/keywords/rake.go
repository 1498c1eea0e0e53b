// Package keywords extracts ranked salient phrases from free-form text
// using RAKE (Rapid Automatic Keyword Extraction).
//
// Candidate phrases are maximal runs of non-stop-words between stop words
// and phrase-breaking punctuation. Each word is scored by degree/frequency
// over the whole text; a phrase's score is the sum of its word scores.
// The stop-word list is Bleve's English list, so the extractor shares its
// vocabulary with the full-text index.
package keywords

import (
	"sort"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
)

// Extractor produces ranked keyword phrases. It is stateless per call and
// safe for concurrent use by multiple requests.
type Extractor struct {
	stopWords analysis.TokenMap
}

// NewExtractor creates an extractor backed by the English stop-word list.
func NewExtractor() *Extractor {
	tm := analysis.NewTokenMap()
	// The embedded list is well-formed; a load error would be a build defect.
	_ = tm.LoadBytes(en.EnglishStopWords)
	return &Extractor{stopWords: tm}
}

// NewExtractorWithStopWords creates an extractor with a custom stop-word set.
func NewExtractorWithStopWords(words []string) *Extractor {
	tm := analysis.NewTokenMap()
	for _, w := range words {
		tm.AddToken(strings.ToLower(w))
	}
	return &Extractor{stopWords: tm}
}

// phrase is a candidate keyword phrase with its accumulated score.
type phrase struct {
	text  string
	score float64
	order int // first-occurrence index, for deterministic tie-breaking
}

// RankedPhrases returns the candidate phrases of text ordered best-first.
// Very short or stop-word-only texts can legitimately yield an empty list.
func (e *Extractor) RankedPhrases(text string) []string {
	candidates := e.candidatePhrases(text)
	if len(candidates) == 0 {
		return nil
	}

	// Word co-occurrence statistics across all candidate phrases.
	freq := make(map[string]int)
	degree := make(map[string]int)
	for _, words := range candidates {
		for _, w := range words {
			freq[w]++
			degree[w] += len(words) - 1
		}
	}

	// score(w) = deg(w)/freq(w) where deg counts the word itself.
	wordScore := func(w string) float64 {
		return float64(degree[w]+freq[w]) / float64(freq[w])
	}

	seen := make(map[string]int)
	var phrases []phrase
	for _, words := range candidates {
		text := strings.Join(words, " ")
		score := 0.0
		for _, w := range words {
			score += wordScore(w)
		}
		if idx, ok := seen[text]; ok {
			if score > phrases[idx].score {
				phrases[idx].score = score
			}
			continue
		}
		seen[text] = len(phrases)
		phrases = append(phrases, phrase{text: text, score: score, order: len(phrases)})
	}

	sort.SliceStable(phrases, func(i, j int) bool {
		if phrases[i].score != phrases[j].score {
			return phrases[i].score > phrases[j].score
		}
		return phrases[i].order < phrases[j].order
	})

	ranked := make([]string, len(phrases))
	for i, p := range phrases {
		ranked[i] = p.text
	}
	return ranked
}

// candidatePhrases splits text into runs of non-stop-words. Stop words and
// any non-alphanumeric character other than intra-word hyphens, underscores,
// and apostrophes act as phrase boundaries. Words are lowercased.
func (e *Extractor) candidatePhrases(text string) [][]string {
	var phrases [][]string
	var current []string

	flush := func() {
		if len(current) > 0 {
			phrases = append(phrases, current)
			current = nil
		}
	}

	var word strings.Builder
	endWord := func() {
		if word.Len() == 0 {
			return
		}
		w := strings.ToLower(strings.Trim(word.String(), "-_'"))
		word.Reset()
		if w == "" {
			return
		}
		if e.stopWords[w] {
			flush()
			return
		}
		current = append(current, w)
	}

	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(r)
		case (r == '-' || r == '_' || r == '\'') && word.Len() > 0:
			word.WriteRune(r)
		case unicode.IsSpace(r):
			endWord()
		default:
			// Punctuation breaks the phrase, not just the word.
			endWord()
			flush()
		}
	}
	endWord()
	flush()

	return phrases
}
