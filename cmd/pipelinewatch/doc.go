// Command pipelinewatch scans configured data-processing pipelines on a
// fixed interval, keeps one completion table per pipeline, and serves those
// tables over HTTP.
//
// Usage:
//
//	pipelinewatch -config config.yaml
//
// Every config key can be overridden from the environment with the
// PIPELINEWATCH_ prefix, e.g. PIPELINEWATCH_DB_DSN.
package main
