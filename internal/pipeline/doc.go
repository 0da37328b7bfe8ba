// Package pipeline assembles the ordered remote command sequence that checks out,
// prepares and builds the source tree on the mounted filesystem.
//
// The sequence is fixed: later steps rely on the side effects of earlier ones (the
// clone must precede the build, the cache eviction must follow the dependency build).
// Every Step is self-contained: its Script carries the full environment export so no
// shell state is assumed between steps.
package pipeline
