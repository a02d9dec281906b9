package review

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLabelForScoreThresholds(t *testing.T) {
	t.Parallel()

	require.Equal(t, SentimentPositive, LabelForScore(0.3))
	require.Equal(t, SentimentPositive, LabelForScore(1))
	require.Equal(t, SentimentNeutral, LabelForScore(0.29))
	require.Equal(t, SentimentNeutral, LabelForScore(0))
	require.Equal(t, SentimentNeutral, LabelForScore(-0.29))
	require.Equal(t, SentimentNegative, LabelForScore(-0.3))
	require.Equal(t, SentimentNegative, LabelForScore(-1))
}

func TestLabelForScoreMonotonic(t *testing.T) {
	t.Parallel()

	order := map[SentimentLabel]int{
		SentimentNegative: 0,
		SentimentNeutral:  1,
		SentimentPositive: 2,
	}
	prev := -1.0
	for score := -1.0; score <= 1.0; score += 0.01 {
		require.GreaterOrEqual(t, order[LabelForScore(score)], order[LabelForScore(prev)])
		prev = score
	}
}
