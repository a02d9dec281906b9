package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestObserversAreNoopsBeforeInit(t *testing.T) {
	// Must not panic when Init was never called.
	ObserveRun("succeeded")
	ObserveStrategyAttempt("api", "ok", 3)
	ObserveDuplicatesDropped(2)
	ObservePaceDelay("example.com", time.Second)
	IncActiveWorkers()
	DecActiveWorkers()
	ObserveHTTPRequest("GET", "/v1/report", 200, time.Millisecond)
}

func TestInitIdempotentAndHandler(t *testing.T) {
	Init()
	Init()
	require.NotNil(t, Handler())

	ObserveRun("failed")
	ObserveStrategyAttempt("embedded", "exhausted", 0)
	ObserveDuplicatesDropped(1)
	ObservePaceDelay("example.com", 10*time.Millisecond)
	IncActiveWorkers()
	DecActiveWorkers()
	ObserveHTTPRequest("POST", "/v1/acquire", 503, 5*time.Millisecond)
}

func TestCodeLabel(t *testing.T) {
	t.Parallel()

	require.Equal(t, "2xx", codeLabel(200))
	require.Equal(t, "3xx", codeLabel(302))
	require.Equal(t, "4xx", codeLabel(404))
	require.Equal(t, "5xx", codeLabel(500))
}
