package ml

import (
	"errors"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// DefaultStopWords is a short English stop list applied when training the
// vectorizer from the command line.
var DefaultStopWords = []string{
	"a", "about", "an", "and", "are", "as", "at", "be", "been", "but", "by", "can", "do", "for",
	"from", "had", "has", "have", "he", "her", "his", "how", "if", "in", "into", "is", "it", "its",
	"me", "my", "no", "not", "of", "on", "or", "our", "rt", "she", "so", "than", "that", "the",
	"their", "them", "then", "there", "these", "they", "this", "to", "up", "us", "was", "we",
	"were", "what", "when", "which", "who", "will", "with", "you", "your",
}

// Tokenize normalises text (NFKC, case folded) and splits it into tokens of
// at least two letters or digits.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	folded := cases.Fold().String(norm.NFKC.String(text))
	return tokenPattern.FindAllString(folded, -1)
}

// CountVectorizer maps raw text to token counts over a fixed vocabulary.
type CountVectorizer struct {
	Vocabulary  map[string]int `json:"vocabulary"`
	MaxFeatures int            `json:"max_features"`
	StopWords   []string       `json:"stop_words,omitempty"`

	stop map[string]struct{}
}

func NewCountVectorizer(maxFeatures int, stopWords []string) *CountVectorizer {
	v := &CountVectorizer{
		MaxFeatures: maxFeatures,
		StopWords:   append([]string(nil), stopWords...),
	}
	v.buildStopSet()
	return v
}

// Fit builds the vocabulary from docs. When MaxFeatures is positive only the
// terms with the highest document frequency are kept. Term indices follow
// alphabetical order.
func (v *CountVectorizer) Fit(docs []string) error {
	if len(docs) == 0 {
		return errors.New("no documents to fit")
	}
	v.buildStopSet()

	docFreq := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, token := range v.tokens(doc) {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			docFreq[token]++
		}
	}
	if len(docFreq) == 0 {
		return errors.New("empty vocabulary")
	}

	terms := make([]string, 0, len(docFreq))
	for term := range docFreq {
		terms = append(terms, term)
	}
	if v.MaxFeatures > 0 && len(terms) > v.MaxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if docFreq[terms[i]] != docFreq[terms[j]] {
				return docFreq[terms[i]] > docFreq[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:v.MaxFeatures]
	}
	sort.Strings(terms)

	v.Vocabulary = make(map[string]int, len(terms))
	for i, term := range terms {
		v.Vocabulary[term] = i
	}
	return nil
}

// Transform returns a dense count vector of width NumFeatures. Unknown
// tokens are ignored, so empty or out-of-vocabulary text yields all zeros.
func (v *CountVectorizer) Transform(text string) []float64 {
	vector := make([]float64, len(v.Vocabulary))
	for _, token := range v.tokens(text) {
		if idx, ok := v.Vocabulary[token]; ok {
			vector[idx]++
		}
	}
	return vector
}

func (v *CountVectorizer) TransformAll(docs []string) [][]float64 {
	vectors := make([][]float64, len(docs))
	for i, doc := range docs {
		vectors[i] = v.Transform(doc)
	}
	return vectors
}

func (v *CountVectorizer) NumFeatures() int {
	return len(v.Vocabulary)
}

// FeatureNames returns the vocabulary ordered by column index.
func (v *CountVectorizer) FeatureNames() []string {
	names := make([]string, len(v.Vocabulary))
	for term, idx := range v.Vocabulary {
		names[idx] = term
	}
	return names
}

func (v *CountVectorizer) tokens(text string) []string {
	tokens := Tokenize(text)
	if len(v.StopWords) == 0 {
		return tokens
	}
	stop := v.stop
	if stop == nil {
		stop = stopSet(v.StopWords)
	}
	kept := tokens[:0]
	for _, token := range tokens {
		if _, ok := stop[token]; ok {
			continue
		}
		kept = append(kept, token)
	}
	return kept
}

// buildStopSet must run before the vectorizer is shared between goroutines.
func (v *CountVectorizer) buildStopSet() {
	v.stop = stopSet(v.StopWords)
}

func stopSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		set[strings.ToLower(word)] = struct{}{}
	}
	return set
}
