// Package cachemode holds the fixed table of dfuse caching policies exercised by
// the build harness.
//
// A Mode names a policy; Catalog.Resolve turns it into an immutable Profile carrying
// the container attributes to apply, the client-side cache toggles, and the
// multiplier applied to build step timeouts. Unknown modes and interception
// libraries are reported as classified configuration errors before any remote work.
package cachemode
