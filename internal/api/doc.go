// Package api hosts the HTTP server, middleware, and REST handlers for
// operator access. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/products/{product_id}/acquire for acquisition runs.
//   - GET /v1/products/{product_id}/report for the aggregate review report.
package api
