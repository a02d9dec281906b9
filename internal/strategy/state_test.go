package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractStateBalancedBraces(t *testing.T) {
	t.Parallel()

	doc := []byte(`<html><script>
		window.__PRODUCT_DETAIL_APP_INITIAL_STATE__ = {"ratingSummary":{"reviews":[{"comment":"harika {gerçekten} \"süper\" ürün"}]}};
	</script></html>`)

	blob, err := ExtractState(doc, DefaultStateMarkers)
	require.NoError(t, err)
	require.Equal(t, byte('{'), blob[0])
	require.Equal(t, byte('}'), blob[len(blob)-1])

	records, err := ParsePayload(blob)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Contains(t, records[0].Text, "{gerçekten}")
}

func TestExtractStateTriesMarkersInOrder(t *testing.T) {
	t.Parallel()

	doc := []byte(`<script>window.__INITIAL_STATE__ = {"reviews":[{"text":"ok"}]};</script>`)
	blob, err := ExtractState(doc, DefaultStateMarkers)
	require.NoError(t, err)
	require.JSONEq(t, `{"reviews":[{"text":"ok"}]}`, string(blob))
}

func TestExtractStateMissingMarker(t *testing.T) {
	t.Parallel()

	_, err := ExtractState([]byte("<html>plain page</html>"), DefaultStateMarkers)
	require.Error(t, err)
}

func TestExtractStateUnbalancedObject(t *testing.T) {
	t.Parallel()

	_, err := ExtractState([]byte(`window.__STATE__ = {"a": {"b": 1}`), DefaultStateMarkers)
	require.Error(t, err)
}

func TestPageProbeRenderRequired(t *testing.T) {
	t.Parallel()

	probe := NewPageProbe(0)

	require.True(t, probe.RenderRequired(200, nil), "empty body")
	require.True(t, probe.RenderRequired(403, []byte("x")), "bot wall status")
	require.True(t, probe.RenderRequired(200, []byte(`<div>please solve this CAPTCHA</div>`)))
	require.True(t, probe.RenderRequired(200, []byte(`<div id="root"></div>`)), "spa shell")
	require.False(t, probe.RenderRequired(500, []byte("oops")), "server errors are retried, not rendered")
	require.False(t, probe.RenderRequired(200, []byte(`<html><body><p>Kumaşı çok kaliteli</p></body></html>`)))
}

func TestPageProbeScriptDensity(t *testing.T) {
	t.Parallel()

	probe := NewPageProbe(4096)
	scriptHeavy := []byte(`<html><script>var s = "................................................";</script><p>x</p></html>`)
	require.True(t, probe.RenderRequired(200, scriptHeavy))
}
