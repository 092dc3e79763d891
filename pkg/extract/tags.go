package extract

import (
	"sort"
	"strings"
	"unicode"
)

type scoredPhrase struct {
	text  string
	score float64
}

// CandidateTags proposes up to max keyphrases for a text. Candidates are
// stopword-filtered unigrams and bigrams ranked by frequency, with bigrams
// weighted up so multi-word concepts win over their parts. Ordering is
// deterministic for a fixed input: score descending, then text ascending.
//
// The returned strings are normalized (lowercased, trimmed) but not yet
// resolved against existing tags; that is the matcher's job.
func (e Extractor) CandidateTags(text string, max int) []string {
	if max <= 0 {
		max = e.config.MaxCandidates
	}

	words := e.tokenize(text)
	if len(words) == 0 {
		return nil
	}

	counts := make(map[string]float64)
	for i, word := range words {
		counts[word]++
		if i+1 < len(words) {
			// Bigrams count double so "machine learning" outranks
			// "machine" and "learning" on their own.
			counts[word+" "+words[i+1]] += 2
		}
	}

	phrases := make([]scoredPhrase, 0, len(counts))
	for text, score := range counts {
		phrases = append(phrases, scoredPhrase{text: text, score: score})
	}

	sort.Slice(phrases, func(i, j int) bool {
		if phrases[i].score != phrases[j].score {
			return phrases[i].score > phrases[j].score
		}
		return phrases[i].text < phrases[j].text
	})

	if len(phrases) > max {
		phrases = phrases[:max]
	}

	candidates := make([]string, 0, len(phrases))
	for _, p := range phrases {
		candidates = append(candidates, p.text)
	}
	return candidates
}

// tokenize lowercases the text and keeps stopword-free words of at least
// MinWordLength letters.
func (e Extractor) tokenize(text string) []string {
	stopwords := make(map[string]bool)
	for _, w := range getStopwords() {
		stopwords[w] = true
	}
	for _, w := range e.config.CustomStopwords {
		stopwords[strings.ToLower(w)] = true
	}

	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var words []string
	for _, f := range fields {
		if len(f) < e.config.MinWordLength {
			continue
		}
		if stopwords[f] {
			continue
		}
		words = append(words, f)
	}
	return words
}

// Common English stopwords
func getStopwords() []string {
	return []string{
		"a", "about", "after", "all", "also", "an", "and", "any", "are", "as",
		"at", "be", "been", "but", "by", "can", "could", "did", "do", "does",
		"for", "from", "had", "has", "have", "he", "her", "his", "how", "if",
		"in", "into", "is", "it", "its", "may", "more", "most", "not", "of",
		"on", "one", "only", "or", "other", "our", "out", "over", "she", "so",
		"some", "such", "than", "that", "the", "their", "them", "then",
		"there", "these", "they", "this", "through", "to", "under", "up",
		"was", "we", "were", "what", "when", "where", "which", "who", "will",
		"with", "would", "you", "your",
	}
}
