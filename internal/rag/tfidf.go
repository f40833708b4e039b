// internal/rag/tfidf.go
package rag

import (
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"gonum.org/v1/gonum/floats"
)

// Cache filenames under the rag directory. The .pkl suffix is kept for
// layout compatibility; the encoding is gob.
const (
	VectorsCacheFile = "vectors.pkl"
	TextsCacheFile   = "texts.pkl"
)

var stopwords = map[string]bool{
	// ru
	"и": true, "в": true, "на": true, "с": true, "по": true, "не": true,
	"что": true, "как": true, "мы": true, "он": true, "она": true,
	"они": true, "это": true, "был": true, "была": true, "было": true,
	"были": true, "но": true, "за": true, "из": true, "от": true,
	"к": true, "у": true, "же": true, "бы": true, "для": true,
	// en
	"the": true, "a": true, "an": true, "of": true, "to": true, "in": true,
	"on": true, "and": true, "is": true, "was": true, "were": true,
	"it": true, "at": true, "by": true, "for": true, "with": true,
	"that": true, "this": true, "as": true, "are": true,
}

// Tokenize lowercases and splits on non-letter/digit runes, dropping
// stopwords and single-rune tokens.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 2 || stopwords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// vectorizerState is the gob-serialised form of a trained vectoriser.
type vectorizerState struct {
	Vocabulary map[string]int
	IDF        []float64
	DocCount   int
}

// Vectorizer is a TF-IDF vectoriser trained lazily on first use and
// persisted to disk. Readers tolerate a stale or missing cache: training
// simply resumes from the corpus.
type Vectorizer struct {
	mu    sync.RWMutex
	state vectorizerState
}

// Trained reports whether Fit has run (or a cache was loaded).
func (v *Vectorizer) Trained() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state.DocCount > 0
}

// Fit trains vocabulary and idf weights over the corpus.
func (v *Vectorizer) Fit(corpus []string) {
	vocab := make(map[string]int)
	docFreq := make(map[string]int)

	for _, doc := range corpus {
		seen := make(map[string]bool)
		for _, tok := range Tokenize(doc) {
			if _, ok := vocab[tok]; !ok {
				vocab[tok] = len(vocab)
			}
			if !seen[tok] {
				seen[tok] = true
				docFreq[tok]++
			}
		}
	}

	idf := make([]float64, len(vocab))
	n := float64(len(corpus))
	for tok, idx := range vocab {
		// Smoothed idf, sklearn style: ln((1+n)/(1+df)) + 1.
		idf[idx] = math.Log((1+n)/(1+float64(docFreq[tok]))) + 1
	}

	v.mu.Lock()
	v.state = vectorizerState{Vocabulary: vocab, IDF: idf, DocCount: len(corpus)}
	v.mu.Unlock()
}

// Transform produces the l2-normalised tf-idf vector for text.
func (v *Vectorizer) Transform(text string) []float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()

	vec := make([]float64, len(v.state.Vocabulary))
	if len(vec) == 0 {
		return vec
	}

	for _, tok := range Tokenize(text) {
		if idx, ok := v.state.Vocabulary[tok]; ok {
			vec[idx]++
		}
	}
	for i := range vec {
		vec[i] *= v.state.IDF[i]
	}

	if norm := floats.Norm(vec, 2); norm > 0 {
		floats.Scale(1/norm, vec)
	}
	return vec
}

// CosineSimilarity of two equal-length vectors. Transform output is already
// l2-normalised, so this reduces to a dot product.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	return floats.Dot(a, b)
}

// Save writes the trained state to dir/VectorsCacheFile.
func (v *Vectorizer) Save(dir string) error {
	v.mu.RLock()
	state := v.state
	v.mu.RUnlock()

	f, err := os.Create(filepath.Join(dir, VectorsCacheFile))
	if err != nil {
		return fmt.Errorf("create vectorizer cache: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(&state); err != nil {
		return fmt.Errorf("encode vectorizer cache: %w", err)
	}
	return nil
}

// Load restores state from the cache file. A missing or corrupt cache is
// reported as an error and the vectoriser stays untrained.
func (v *Vectorizer) Load(dir string) error {
	f, err := os.Open(filepath.Join(dir, VectorsCacheFile))
	if err != nil {
		return err
	}
	defer f.Close()

	var state vectorizerState
	if err := gob.NewDecoder(f).Decode(&state); err != nil {
		return fmt.Errorf("decode vectorizer cache: %w", err)
	}

	v.mu.Lock()
	v.state = state
	v.mu.Unlock()
	return nil
}

// SaveTexts persists the candidate-text corpus alongside the vectoriser.
func SaveTexts(dir string, texts []string) error {
	f, err := os.Create(filepath.Join(dir, TextsCacheFile))
	if err != nil {
		return fmt.Errorf("create texts cache: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(texts); err != nil {
		return fmt.Errorf("encode texts cache: %w", err)
	}
	return nil
}

// LoadTexts restores the candidate-text corpus.
func LoadTexts(dir string) ([]string, error) {
	f, err := os.Open(filepath.Join(dir, TextsCacheFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var texts []string
	if err := gob.NewDecoder(f).Decode(&texts); err != nil {
		return nil, fmt.Errorf("decode texts cache: %w", err)
	}
	return texts, nil
}

// RankedIndex pairs a candidate index with its similarity score.
type RankedIndex struct {
	Index int
	Score float64
}

// Rank scores candidates against the query and returns the top-k indexes in
// descending score order.
func Rank(v *Vectorizer, query string, candidates []string, k int) []RankedIndex {
	if len(candidates) == 0 {
		return nil
	}

	queryVec := v.Transform(query)

	ranked := make([]RankedIndex, 0, len(candidates))
	for i, cand := range candidates {
		score := CosineSimilarity(queryVec, v.Transform(cand))
		ranked = append(ranked, RankedIndex{Index: i, Score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if k > 0 && k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked
}
