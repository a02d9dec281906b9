package dedup

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ecomscope/review-pipeline/internal/hash/sha256"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "Harika ÜRÜN", "harika urun"},
		{"collapse whitespace", "  çok\t\tiyi \n paket ", "cok iyi paket"},
		{"diacritics folded", "Kumaşı çok kaliteli", "kumasi cok kaliteli"},
		{"empty", "   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestAdmitCollapsesEquivalentText(t *testing.T) {
	t.Parallel()

	d := New(sha256.New())

	key1, fresh, err := d.Admit("Kumaşı çok kaliteli")
	require.NoError(t, err)
	require.True(t, fresh)

	// Same review surfaced by a second strategy with different casing
	// and spacing must collapse to the first.
	key2, fresh, err := d.Admit("  kumaşı  ÇOK kaliteli ")
	require.NoError(t, err)
	require.False(t, fresh)
	require.Equal(t, key1, key2)

	_, fresh, err = d.Admit("bedeni küçük geldi")
	require.NoError(t, err)
	require.True(t, fresh)
	require.Equal(t, 2, d.Count())
}
