package review

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Strategy is a pluggable retrieval method for obtaining raw reviews for
// one product. Attempts must be retry-safe and must not mutate shared
// state beyond the returned result; pacing is delegated to the Pacer.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, ref ProductReference, constraints Constraints) (StrategyResult, error)
}

// Pacer blocks before outbound calls to keep request pacing within the
// configured envelope for an endpoint.
type Pacer interface {
	Pace(ctx context.Context, endpoint string) error
}

// Analyzer converts raw review text into analysis attributes.
type Analyzer interface {
	Analyze(text string) Analysis
}

// Analysis is the output of a single Analyze call.
type Analysis struct {
	SentimentScore  float64
	SentimentLabel  SentimentLabel
	Confidence      float64
	KeyPhrases      []string
	PurchaseReasons []string
	Pros            []string
	Cons            []string
	BehaviorType    string
}

// ReviewStore persists analyzed review sets with full-replace semantics:
// a successful run's set entirely supersedes the prior set for the
// product, in one transaction boundary.
type ReviewStore interface {
	ReplaceReviews(ctx context.Context, productID string, reviews []AnalyzedReview) error
	ListReviews(ctx context.Context, productID string) ([]AnalyzedReview, error)
	DeleteProduct(ctx context.Context, productID string) error
}

// ProductStore resolves product references owned by the external catalog.
type ProductStore interface {
	GetProduct(ctx context.Context, productID string) (ProductReference, error)
}

// RunStore persists acquisition run metadata.
type RunStore interface {
	CreateRun(ctx context.Context, run Run) error
	UpdateRunStatus(ctx context.Context, runID string, status RunStatus, result RunResult) error
	GetRun(ctx context.Context, runID string) (Run, error)
}

// BlobStore archives raw acquisition payloads and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes run completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Queue provides enqueue/dequeue semantics for acquisition requests.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Hasher computes digests for deduplication.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
