// Package api hosts the read-only HTTP report service. Notable routes:
//   - GET /healthz and /readyz for probes; /readyz includes scheduler state.
//   - GET /metrics for Prometheus scraping.
//   - GET /pipelines, /pipelines/{name} and /pipelines/{name}/download for
//     the per-pipeline completion tables.
package api
