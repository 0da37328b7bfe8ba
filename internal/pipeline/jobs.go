package pipeline

import "git.home.luguber.info/inful/cachebuild/internal/cachemode"

// JobCount returns the build parallelism for the host class and library.
func JobCount(constrained bool, lib cachemode.InterceptionLibrary) int {
	switch {
	case constrained && lib.IsPIL4DFS():
		// crashed previously with 6 * 2
		return 5 * 2
	case constrained:
		return 6 * 2
	default:
		return 6 * 5
	}
}
