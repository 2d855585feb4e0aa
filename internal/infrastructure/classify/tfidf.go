package classify

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// Vectorizer defaults shared by every text-feature strategy.
const (
	tfidfMaxFeatures = 60000
	tfidfNgramMin    = 1
	tfidfNgramMax    = 3
	tfidfMinDF       = 2
	tfidfMaxDF       = 0.8
)

var wordToken = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}]+`)

// SparseVector is one document in feature space. Indices are strictly
// increasing.
type SparseVector struct {
	Indices []int
	Values  []float64
}

// Dot multiplies two sparse vectors.
func (v SparseVector) Dot(other SparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.Indices) && j < len(other.Indices) {
		switch {
		case v.Indices[i] == other.Indices[j]:
			sum += v.Values[i] * other.Values[j]
			i++
			j++
		case v.Indices[i] < other.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// DotDense multiplies against a dense weight row.
func (v SparseVector) DotDense(weights []float64) float64 {
	var sum float64
	for i, idx := range v.Indices {
		if idx < len(weights) {
			sum += v.Values[i] * weights[idx]
		}
	}
	return sum
}

// At returns the value stored at a feature index, zero when absent.
func (v SparseVector) At(feature int) float64 {
	i := sort.SearchInts(v.Indices, feature)
	if i < len(v.Indices) && v.Indices[i] == feature {
		return v.Values[i]
	}
	return 0
}

// TFIDFVectorizer converts documents into l2-normalized sublinear
// TF-IDF vectors over word n-grams. Stopwords drop out of the token
// stream before n-grams form.
type TFIDFVectorizer struct {
	MaxFeatures int
	NgramMin    int
	NgramMax    int
	MinDF       int
	MaxDF       float64

	Vocabulary map[string]int
	IDF        []float64
}

func NewTFIDFVectorizer() *TFIDFVectorizer {
	return &TFIDFVectorizer{
		MaxFeatures: tfidfMaxFeatures,
		NgramMin:    tfidfNgramMin,
		NgramMax:    tfidfNgramMax,
		MinDF:       tfidfMinDF,
		MaxDF:       tfidfMaxDF,
	}
}

func (v *TFIDFVectorizer) tokenize(document string) []string {
	stop := stopWordSet()
	raw := wordToken.FindAllString(strings.ToLower(document), -1)
	tokens := raw[:0]
	for _, token := range raw {
		if _, isStop := stop[token]; !isStop {
			tokens = append(tokens, token)
		}
	}

	var grams []string
	for n := v.NgramMin; n <= v.NgramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			grams = append(grams, strings.Join(tokens[i:i+n], " "))
		}
	}
	return grams
}

// Fit learns the vocabulary and IDF weights, then returns the training
// matrix.
func (v *TFIDFVectorizer) Fit(documents []string) []SparseVector {
	termDF := make(map[string]int)
	termTotal := make(map[string]int)
	tokenized := make([][]string, len(documents))
	for i, document := range documents {
		grams := v.tokenize(document)
		tokenized[i] = grams
		seen := make(map[string]struct{}, len(grams))
		for _, gram := range grams {
			termTotal[gram]++
			if _, ok := seen[gram]; !ok {
				seen[gram] = struct{}{}
				termDF[gram]++
			}
		}
	}

	maxDF := int(v.MaxDF * float64(len(documents)))
	candidates := make([]string, 0, len(termDF))
	for term, df := range termDF {
		if df >= v.MinDF && df <= maxDF {
			candidates = append(candidates, term)
		}
	}
	// Keep the most frequent terms; ties break alphabetically so the
	// vocabulary is stable across runs.
	sort.Slice(candidates, func(i, j int) bool {
		if termTotal[candidates[i]] != termTotal[candidates[j]] {
			return termTotal[candidates[i]] > termTotal[candidates[j]]
		}
		return candidates[i] < candidates[j]
	})
	if len(candidates) > v.MaxFeatures {
		candidates = candidates[:v.MaxFeatures]
	}
	sort.Strings(candidates)

	v.Vocabulary = make(map[string]int, len(candidates))
	v.IDF = make([]float64, len(candidates))
	n := float64(len(documents))
	for i, term := range candidates {
		v.Vocabulary[term] = i
		v.IDF[i] = math.Log((1+n)/(1+float64(termDF[term]))) + 1
	}

	matrix := make([]SparseVector, len(documents))
	for i, grams := range tokenized {
		matrix[i] = v.vectorize(grams)
	}
	return matrix
}

// Transform vectorizes documents against the fitted vocabulary.
func (v *TFIDFVectorizer) Transform(documents []string) []SparseVector {
	matrix := make([]SparseVector, len(documents))
	for i, document := range documents {
		matrix[i] = v.vectorize(v.tokenize(document))
	}
	return matrix
}

// NumFeatures reports the fitted vocabulary size.
func (v *TFIDFVectorizer) NumFeatures() int { return len(v.Vocabulary) }

func (v *TFIDFVectorizer) vectorize(grams []string) SparseVector {
	counts := make(map[int]int)
	for _, gram := range grams {
		if idx, ok := v.Vocabulary[gram]; ok {
			counts[idx]++
		}
	}

	vec := SparseVector{
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for idx := range counts {
		vec.Indices = append(vec.Indices, idx)
	}
	sort.Ints(vec.Indices)

	var norm float64
	for _, idx := range vec.Indices {
		tf := 1 + math.Log(float64(counts[idx]))
		weight := tf * v.IDF[idx]
		vec.Values = append(vec.Values, weight)
		norm += weight * weight
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec.Values {
			vec.Values[i] /= norm
		}
	}
	return vec
}
