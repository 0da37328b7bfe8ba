// Package build runs one cache-mode validation end to end.
//
// An Orchestrator provisions a pool and container, applies the mode's container
// attributes, mounts and starts the filesystem client, then executes the
// assembled pipeline step by step. The first step that does not succeed ends the
// run: diagnostics are collected once and a single classified error names the
// cache mode and interception library. Resources are torn down afterwards unless
// the request asks to keep them on failure.
//
// All execution paths (CLI run, matrix, schedule daemon) go through Runner.
package build
