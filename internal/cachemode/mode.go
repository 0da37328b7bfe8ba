package cachemode

import (
	ferrors "git.home.luguber.info/inful/cachebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/cachebuild/internal/foundation/normalization"
)

// Mode identifies a dfuse caching policy. Exactly one mode is active per run.
type Mode string

const (
	WriteBack    Mode = "writeback"
	WriteThrough Mode = "writethrough"
	Metadata     Mode = "metadata"
	Data         Mode = "data"
	NoCache      Mode = "nocache"
)

// Modes lists every mode in catalog order.
func Modes() []Mode {
	return []Mode{WriteBack, WriteThrough, Metadata, Data, NoCache}
}

var modeNormalizer = normalization.NewNormalizer("cache mode", map[string]Mode{
	"writeback":    WriteBack,
	"writethrough": WriteThrough,
	"metadata":     Metadata,
	"data":         Data,
	"nocache":      NoCache,
}, map[string]Mode{
	"wb":       WriteBack,
	"wt":       WriteThrough,
	"no-cache": NoCache,
})

// ParseMode converts user input into a Mode.
func ParseMode(raw string) (Mode, error) {
	m, err := modeNormalizer.NormalizeWithError(raw)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryConfig, "invalid cache mode").
			Fatal().
			WithContext("mode", raw).
			Build()
	}
	return m, nil
}

// String implements fmt.Stringer.
func (m Mode) String() string { return string(m) }
