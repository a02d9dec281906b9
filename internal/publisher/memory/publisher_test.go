package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ecomscope/review-pipeline/internal/review"
)

func TestPublishRecordsMessages(t *testing.T) {
	t.Parallel()

	p := New()
	event := review.CompletionEvent{RunID: "r1", ProductID: "p1", Success: true, ReviewCount: 12}

	id, err := p.Publish(context.Background(), "review-runs", event)
	require.NoError(t, err)
	require.Equal(t, "memory-1", id)

	msgs := p.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "review-runs", msgs[0].Topic)
	require.Equal(t, event, msgs[0].Payload)
}
