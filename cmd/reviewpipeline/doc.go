// Package main hosts the review pipeline service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, acquisition, and reporting endpoints. Acquisition
//     requests create a run record, then either enqueue a queue item for the worker pool or (with ?wait=true) drive
//     the orchestrator inline.
//   - Dispatcher & queue: runs flow through a bounded in-memory queue sized by acquisition.queue_depth and are fanned
//     out to a fixed worker pool sized by acquisition.concurrency. Context cancellation stops workers cleanly on
//     shutdown.
//   - Acquisition pipeline: the orchestrator tries retrieval strategies in priority order (structured API, embedded
//     page state, browser automation, external process), deduplicates after each merge, stops early once the target
//     record count is reached, and never persists anything for a run that acquired zero records.
//   - Persistence & fanout: the analyzed review set replaces the product's prior set in one transaction (Postgres via
//     pgx, or the in-memory store for development). Raw payloads are archived to the configured BlobStore
//     (memory/local/GCS) and a compact Pub/Sub completion event is published when a topic is configured.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides structured logging; Prometheus
//     metrics are exported via the metrics middleware and /metrics handler.
//
// Operational notes:
//   - Concurrency model: bounded queue + fixed worker pool; concurrent requests for the same product share one
//     in-flight run via singleflight. Browser sessions have their own semaphore inside the renderer.
//   - Pacing: every outbound request waits on a jittered delay plus a per-host token bucket; transient failures are
//     retried with exponential backoff and a per-run circuit breaker caps consecutive strategy failures.
//   - Shutdown: the process reacts to SIGINT/SIGTERM, drains the HTTP server, and cancels workers. A run that is past
//     acquisition finishes its persistence even while the service drains.
//
// Quick checklist:
//   - Configure env vars with the REVIEWPIPE_ prefix (REVIEWPIPE_SERVER_PORT, REVIEWPIPE_SOURCE_ENDPOINTS,
//     REVIEWPIPE_DB_DSN, REVIEWPIPE_STORAGE_BACKEND, ...) or pass -config config.yaml.
//   - Run locally: go run ./cmd/reviewpipeline -config config.yaml. Without a DSN the service keeps reviews in memory
//     and resolves products from the config catalog.
package main
