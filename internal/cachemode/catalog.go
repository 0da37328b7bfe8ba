package cachemode

import (
	ferrors "git.home.luguber.info/inful/cachebuild/internal/foundation/errors"
)

// Container attribute names understood by dfuse.
const (
	AttrDataCache   = "dfuse-data-cache"
	AttrAttrTime    = "dfuse-attr-time"
	AttrDentryTime  = "dfuse-dentry-time"
	AttrNDentryTime = "dfuse-ndentry-time"
)

const (
	// cacheTime is longer than any run so cached entries never expire mid-build.
	cacheTime     = "2d"
	dataCacheTime = "1m"
	disabled      = "0"
	dataCacheOff  = "off"
)

// Attribute is a single container attribute applied before the client starts.
type Attribute struct {
	Name  string
	Value string
}

// Profile is the resolved, immutable policy for one mode.
type Profile struct {
	mode                Mode
	attributes          [4]Attribute
	disableWriteback    bool
	disableCaching      bool
	buildTimeMultiplier int
}

// Mode returns the mode the profile was resolved for.
func (p Profile) Mode() Mode { return p.mode }

// Attributes returns the container attributes in application order.
func (p Profile) Attributes() []Attribute {
	out := make([]Attribute, len(p.attributes))
	copy(out, p.attributes[:])
	return out
}

// AttributeMap returns the container attributes keyed by name.
func (p Profile) AttributeMap() map[string]string {
	out := make(map[string]string, len(p.attributes))
	for _, a := range p.attributes {
		out[a.Name] = a.Value
	}
	return out
}

// DisableWriteback reports whether the client must run write-through.
func (p Profile) DisableWriteback() bool { return p.disableWriteback }

// DisableCaching reports whether all client caching is turned off.
func (p Profile) DisableCaching() bool { return p.disableCaching }

// BuildTimeMultiplier scales the baseline build step timeout.
func (p Profile) BuildTimeMultiplier() int { return p.buildTimeMultiplier }

type policy struct {
	dataCache        string
	entryTime        string
	disableWriteback bool
	disableCaching   bool
	multiplier       int
	// ilMultiplier replaces multiplier when an interception library is selected.
	ilMultiplier int
}

var policies = map[Mode]policy{
	WriteBack:    {dataCache: dataCacheTime, entryTime: cacheTime, multiplier: 1, ilMultiplier: 1},
	WriteThrough: {dataCache: dataCacheTime, entryTime: cacheTime, disableWriteback: true, multiplier: 1, ilMultiplier: 2},
	Metadata:     {dataCache: dataCacheTime, entryTime: cacheTime, disableWriteback: true, multiplier: 1, ilMultiplier: 1},
	Data:         {dataCache: dataCacheTime, entryTime: disabled, disableWriteback: true, multiplier: 2, ilMultiplier: 2},
	NoCache:      {dataCache: dataCacheOff, entryTime: disabled, disableWriteback: true, disableCaching: true, multiplier: 4, ilMultiplier: 4},
}

// Catalog resolves modes to profiles. The zero value is ready to use.
type Catalog struct{}

// Resolve returns the profile for mode. The interception library only affects the
// timeout multiplier of writethrough. Values outside Modes() yield a config error.
func (Catalog) Resolve(mode Mode, lib InterceptionLibrary) (Profile, error) {
	pol, ok := policies[mode]
	if !ok {
		return Profile{}, ferrors.ConfigError("invalid cache mode").
			WithContext("mode", string(mode)).
			Build()
	}

	multiplier := pol.multiplier
	if lib.Selected() {
		multiplier = pol.ilMultiplier
	}

	return Profile{
		mode: mode,
		attributes: [4]Attribute{
			{Name: AttrDataCache, Value: pol.dataCache},
			{Name: AttrAttrTime, Value: pol.entryTime},
			{Name: AttrDentryTime, Value: pol.entryTime},
			{Name: AttrNDentryTime, Value: pol.entryTime},
		},
		disableWriteback:    pol.disableWriteback,
		disableCaching:      pol.disableCaching,
		buildTimeMultiplier: multiplier,
	}, nil
}
