package cachemode

import (
	"strings"

	ferrors "git.home.luguber.info/inful/cachebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/cachebuild/internal/foundation/normalization"
)

// InterceptionLibrary is an optional I/O interception library preloaded into every
// remote command. The zero value means no library.
type InterceptionLibrary string

const (
	NoLibrary InterceptionLibrary = ""
	IOIL      InterceptionLibrary = "libioil.so"
	PIL4DFS   InterceptionLibrary = "libpil4dfs.so"
)

var libraryNormalizer = normalization.NewNormalizer("interception library", map[string]InterceptionLibrary{
	"libioil.so":    IOIL,
	"libpil4dfs.so": PIL4DFS,
}, map[string]InterceptionLibrary{
	"ioil":    IOIL,
	"pil4dfs": PIL4DFS,
})

// ParseInterceptionLibrary converts user input into an InterceptionLibrary.
// Empty input and "none" select no library.
func ParseInterceptionLibrary(raw string) (InterceptionLibrary, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "none":
		return NoLibrary, nil
	}
	lib, err := libraryNormalizer.NormalizeWithError(raw)
	if err != nil {
		return NoLibrary, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid interception library").
			Fatal().
			WithContext("library", raw).
			Build()
	}
	return lib, nil
}

// Selected reports whether a library is in use.
func (l InterceptionLibrary) Selected() bool { return l != NoLibrary }

// IsPIL4DFS reports whether l is the pil4dfs variant, which needs extra
// environment and lower parallelism.
func (l InterceptionLibrary) IsPIL4DFS() bool { return l == PIL4DFS }
