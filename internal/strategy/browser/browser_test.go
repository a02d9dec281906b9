package browser

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ecomscope/review-pipeline/internal/review"
)

type fakeSession struct {
	navigateErr error
	evaluate    func(expr string) ([]byte, error)
	html        string
	htmlErr     error
	closed      bool
}

func (f *fakeSession) Navigate(context.Context, string) error { return f.navigateErr }

func (f *fakeSession) Evaluate(_ context.Context, expr string) ([]byte, error) {
	if f.evaluate == nil {
		return []byte("null"), nil
	}
	return f.evaluate(expr)
}

func (f *fakeSession) HTML(context.Context) (string, error) { return f.html, f.htmlErr }

func (f *fakeSession) Close() { f.closed = true }

type fakeFactory struct {
	session *fakeSession
	err     error
}

func (f *fakeFactory) NewSession(context.Context) (Session, error) {
	return f.session, f.err
}

var ref = review.ProductReference{
	ID:        "p1",
	SourceURL: "https://www.example.com/marka/elbise-p-123456",
}

func TestAttemptReadsScriptState(t *testing.T) {
	t.Parallel()

	state := `{"ratingSummary":{"reviews":[{"comment":"harika ürün","rate":5}]}}`
	session := &fakeSession{evaluate: func(expr string) ([]byte, error) {
		if strings.Contains(expr, "__PRODUCT_DETAIL_APP_INITIAL_STATE__") {
			// Evaluate returns the JSON encoding of the stringified state.
			return []byte(fmt.Sprintf("%q", state)), nil
		}
		return []byte("null"), nil
	}}

	s := New(Config{}, &fakeFactory{session: session}, nil, nil)
	res, err := s.Attempt(context.Background(), ref, review.Constraints{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	require.Equal(t, "harika ürün", res.Records[0].Text)
	require.True(t, session.closed)
}

func TestAttemptFallsBackToDOM(t *testing.T) {
	t.Parallel()

	session := &fakeSession{
		html: `<html><body>
			<div class="review-card"><span class="user-name">A** B**</span>
				<div class="comment-text">Kumaşı çok kaliteli</div></div>
			<div class="review-card"><div class="comment-text">Bedeni dar</div></div>
		</body></html>`,
	}

	s := New(Config{}, &fakeFactory{session: session}, nil, nil)
	res, err := s.Attempt(context.Background(), ref, review.Constraints{})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	require.Equal(t, "Kumaşı çok kaliteli", res.Records[0].Text)
	require.Equal(t, "A** B**", res.Records[0].Author)
}

func TestAttemptDOMRecordsStayOnRatingScale(t *testing.T) {
	t.Parallel()

	session := &fakeSession{
		html: `<html><body><div class="comment-text">Rengi soluk geldi</div></body></html>`,
	}

	s := New(Config{}, &fakeFactory{session: session}, nil, nil)
	res, err := s.Attempt(context.Background(), ref, review.Constraints{})
	require.NoError(t, err)
	require.NotEmpty(t, res.Records)
	for _, rec := range res.Records {
		require.GreaterOrEqual(t, rec.Rating, 1)
		require.LessOrEqual(t, rec.Rating, 5)
	}
}

func TestAttemptFallsBackToInPageAPI(t *testing.T) {
	t.Parallel()

	payload := `{"reviews":[{"text":"fena değil","rating":3}]}`
	session := &fakeSession{
		html: "<html><body>no reviews here</body></html>",
		evaluate: func(expr string) ([]byte, error) {
			if strings.Contains(expr, "fetch(") {
				require.Contains(t, expr, "productId=123456")
				return []byte(fmt.Sprintf("%q", payload)), nil
			}
			return []byte("null"), nil
		},
	}

	s := New(Config{
		Endpoints: []string{"https://api.example.com/review?productId={productId}&page={page}"},
	}, &fakeFactory{session: session}, nil, nil)

	res, err := s.Attempt(context.Background(), ref, review.Constraints{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	require.Equal(t, "fena değil", res.Records[0].Text)
}

func TestAttemptExhaustedWhenEverythingFails(t *testing.T) {
	t.Parallel()

	session := &fakeSession{html: "<html><body>empty</body></html>"}
	s := New(Config{}, &fakeFactory{session: session}, nil, nil)

	res, err := s.Attempt(context.Background(), ref, review.Constraints{})
	require.NoError(t, err)
	require.True(t, res.Exhausted)
	require.False(t, res.Fatal)
}

func TestAttemptFatalWithoutExternalID(t *testing.T) {
	t.Parallel()

	s := New(Config{}, &fakeFactory{session: &fakeSession{}}, nil, nil)
	res, err := s.Attempt(context.Background(), review.ProductReference{
		ID:        "p1",
		SourceURL: "https://www.example.com/kadin/elbise",
	}, review.Constraints{})
	require.NoError(t, err)
	require.True(t, res.Fatal)
}

func TestAttemptExhaustedWhenSessionUnavailable(t *testing.T) {
	t.Parallel()

	s := New(Config{}, &fakeFactory{err: fmt.Errorf("no browser")}, nil, nil)
	res, err := s.Attempt(context.Background(), ref, review.Constraints{})
	require.NoError(t, err)
	require.True(t, res.Exhausted)
}

func TestAttemptHonorsMaxRecords(t *testing.T) {
	t.Parallel()

	session := &fakeSession{
		html: `<html><body>
			<div class="comment-text">bir</div>
			<div class="comment-text">iki</div>
			<div class="comment-text">üç</div>
		</body></html>`,
	}
	s := New(Config{}, &fakeFactory{session: session}, nil, nil)

	res, err := s.Attempt(context.Background(), ref, review.Constraints{MaxRecords: 2})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
}
