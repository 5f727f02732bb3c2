package bm25

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestScore_MoreOccurrencesScoreHigher verifies the monotonicity property:
// a document repeating the query term outranks one mentioning it once,
// all else equal.
func TestScore_MoreOccurrencesScoreHigher(t *testing.T) {
	r := New()
	corpus := []string{
		"the quick brown fox jumps over the lazy dog",
		"the quick quick quick fox fox fox runs and runs",
	}

	scores := r.Score([]string{"quick", "fox"}, corpus)
	require.Len(t, scores, 2)
	require.Greater(t, scores[1], scores[0])
}

// TestScore_CommonTermWeighsMoreThanRareTerm verifies that a term present
// in more documents contributes a larger IDF component, since the IDF is
// ln((df+0.5)/(N-df+0.5)).
func TestScore_CommonTermWeighsMoreThanRareTerm(t *testing.T) {
	r := New()
	corpus := []string{
		"apples are red and apples are sweet",
		"bananas are yellow and bananas are sweet",
		"cherries are red and cherries are small",
	}

	common := r.Score([]string{"sweet"}, corpus)
	rare := r.Score([]string{"small"}, corpus)

	// "sweet" occurs in 2 of 3 docs (idf ln(2.5/1.5) > 0), "small" in 1 of
	// 3 (idf ln(1.5/2.5) < 0); with equal tf and doc lengths the common
	// term's nonzero score exceeds the rare term's.
	require.Greater(t, common[0], rare[2])
}

// TestScore_EmptyInputsReturnZeroed verifies degenerate empty corpus/query
// inputs don't panic and return a correctly-sized zero slice.
func TestScore_EmptyInputsReturnZeroed(t *testing.T) {
	r := New()

	require.Equal(t, []float64{}, r.Score([]string{"x"}, nil))

	scores := r.Score(nil, []string{"a document"})
	require.Equal(t, []float64{0}, scores)
}

// TestScore_NoMatchIsZero verifies a document with none of the query terms
// scores exactly zero.
func TestScore_NoMatchIsZero(t *testing.T) {
	r := New()
	corpus := []string{"alpha beta gamma", "delta epsilon zeta"}

	scores := r.Score([]string{"omega"}, corpus)
	require.Equal(t, []float64{0, 0}, scores)
}
