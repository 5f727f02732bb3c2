// Package bm25 ranks a small corpus of documents against a query using the
// Okapi BM25 scoring function (https://en.wikipedia.org/wiki/Okapi_BM25).
package bm25

import (
	"io"
	"log"
	"math"
	"strings"
)

// discardLogger is the default logger: writes nowhere until a caller opts
// in with WithLogger.
func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// Ranker holds the two BM25 free parameters. The zero value is not usable;
// construct with New.
type Ranker struct {
	k1     float64
	b      float64
	logger *log.Logger
}

// New returns a Ranker with the standard defaults (k1=1.2, b=0.75).
func New() Ranker {
	return Ranker{k1: 1.2, b: 0.75, logger: discardLogger()}
}

// NewWithParams returns a Ranker with custom k1/b, for callers that want to
// tune term-frequency saturation (k1) or length normalization (b).
func NewWithParams(k1, b float64) Ranker {
	return Ranker{k1: k1, b: b, logger: discardLogger()}
}

// WithLogger returns a copy of r that logs diagnostic messages (corpus
// size, timing-sensitive callers may want to know about) to l. The default
// discards everything.
func (r Ranker) WithLogger(l *log.Logger) Ranker {
	r.logger = l
	return r
}

// Score returns, for each document in corpus, its BM25 score against query
// (higher is better), in the same order as corpus.
//
// Matching is case-insensitive substring containment, not tokenized term
// matching: document/term frequency is counted via strings.Count over the
// lowercased document text, and a query term "matches" a document if
// strings.Contains reports true. This mirrors the ranking behavior this
// package is grounded on, which scores raw article excerpts rather than a
// token stream.
//
// The term-frequency-saturation denominator uses the canonical parenthesized
// form tf + k1*(1 - b + b*(docLen/avgLen)) rather than the unparenthesized
// grouping tf + k1*1 - b + b*(docLen/avgLen) found in the ranking code this
// package is grounded on. The IDF weight is ln((df + 0.5) / (N - df + 0.5)),
// where df is the number of documents containing the term and N the corpus
// size, so a term found in more documents receives a larger weight.
func (r Ranker) Score(query []string, corpus []string) []float64 {
	n := len(corpus)
	scores := make([]float64, n)
	if n == 0 || len(query) == 0 {
		return scores
	}

	r.logger.Printf("bm25: scoring %d documents against %d query terms", n, len(query))

	lowerCorpus := make([]string, n)
	docLen := make([]int, n)
	var totalLen int
	for i, doc := range corpus {
		ld := strings.ToLower(doc)
		lowerCorpus[i] = ld
		docLen[i] = strings.Count(ld, " ") + 1
		totalLen += docLen[i]
	}
	avgLen := float64(totalLen) / float64(n)

	lowerQuery := make([]string, len(query))
	for i, term := range query {
		lowerQuery[i] = strings.ToLower(term)
	}

	// Document frequency per query term: number of documents containing it
	// at least once (substring match).
	docFreqByTerm := make([]int, len(lowerQuery))
	for ti, term := range lowerQuery {
		count := 0
		for _, doc := range lowerCorpus {
			if strings.Contains(doc, term) {
				count++
			}
		}
		docFreqByTerm[ti] = count
	}

	for di, doc := range lowerCorpus {
		var total float64
		for ti, term := range lowerQuery {
			df := float64(docFreqByTerm[ti])
			idf := math.Log((df + 0.5) / (float64(n) - df + 0.5))

			tf := float64(strings.Count(doc, term))
			numerator := tf * (r.k1 + 1)
			denominator := tf + r.k1*(1-r.b+r.b*(float64(docLen[di])/avgLen))
			if denominator == 0 {
				continue
			}
			total += idf * (numerator / denominator)
		}
		scores[di] = total
	}

	return scores
}
