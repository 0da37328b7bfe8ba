// Package metrics records cachebuild step and run measurements.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics collection never needs nil checks:
//
//	orch := build.NewOrchestrator(deps).WithRecorder(metrics.NewPrometheusRecorder(reg))
//
// PrometheusRecorder registers its collectors on the supplied registry. Short-lived
// runs push that registry to a Pushgateway when they finish (Push); the schedule
// daemon serves it over HTTP instead (HTTPHandler).
package metrics
