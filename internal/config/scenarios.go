package config

import (
	"sort"
	"strings"

	"git.home.luguber.info/inful/cachebuild/internal/cachemode"
	ferrors "git.home.luguber.info/inful/cachebuild/internal/foundation/errors"
)

// ScenarioConfig is a user-defined scenario as written in YAML.
type ScenarioConfig struct {
	Name        string `yaml:"name"`
	Mode        string `yaml:"mode"`
	Library     string `yaml:"library,omitempty"`
	Constrained *bool  `yaml:"constrained,omitempty"`
}

// Scenario is a named combination of cache mode, interception library and host
// class.
type Scenario struct {
	Name    string
	Mode    cachemode.Mode
	Library cachemode.InterceptionLibrary
	// Constrained forces constrained-host behavior regardless of hosts.constrained.
	Constrained bool
}

var builtinScenarios = []Scenario{
	{Name: "wb", Mode: cachemode.WriteBack},
	{Name: "wt", Mode: cachemode.WriteThrough},
	{Name: "wt_il", Mode: cachemode.WriteThrough, Library: cachemode.IOIL, Constrained: true},
	// Runs with caching disabled; pil4dfs is unstable over the cached modes.
	{Name: "wt_pil4dfs", Mode: cachemode.NoCache, Library: cachemode.PIL4DFS, Constrained: true},
	{Name: "metadata", Mode: cachemode.Metadata},
	{Name: "data", Mode: cachemode.Data},
	{Name: "nocache", Mode: cachemode.NoCache},
}

// BuiltinScenarioNames lists the built-in scenarios in their default matrix order.
func BuiltinScenarioNames() []string {
	names := make([]string, len(builtinScenarios))
	for i, s := range builtinScenarios {
		names[i] = s.Name
	}
	return names
}

// AllScenarios returns built-in scenarios followed by user-defined ones. A user
// scenario with a built-in name replaces it in place.
func (c *Config) AllScenarios() ([]Scenario, error) {
	out := append([]Scenario(nil), builtinScenarios...)
	index := make(map[string]int, len(out))
	for i, s := range out {
		index[s.Name] = i
	}

	for _, sc := range c.CustomScenarios {
		s, err := sc.resolve(c.Hosts.Constrained)
		if err != nil {
			return nil, err
		}
		if i, ok := index[s.Name]; ok {
			out[i] = s
			continue
		}
		index[s.Name] = len(out)
		out = append(out, s)
	}
	return out, nil
}

// Scenario looks up a scenario by name.
func (c *Config) Scenario(name string) (Scenario, error) {
	all, err := c.AllScenarios()
	if err != nil {
		return Scenario{}, err
	}
	key := strings.ToLower(strings.TrimSpace(name))
	for _, s := range all {
		if s.Name == key {
			return s, nil
		}
	}
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = s.Name
	}
	sort.Strings(names)
	return Scenario{}, ferrors.ConfigError("unknown scenario").
		WithContext("scenario", name).
		WithContext("valid", strings.Join(names, ",")).
		Build()
}

// MatrixScenarios resolves the configured matrix in order.
func (c *Config) MatrixScenarios() ([]Scenario, error) {
	out := make([]Scenario, 0, len(c.Matrix))
	for _, name := range c.Matrix {
		s, err := c.Scenario(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (sc ScenarioConfig) resolve(defaultConstrained bool) (Scenario, error) {
	name := strings.ToLower(strings.TrimSpace(sc.Name))
	if name == "" {
		return Scenario{}, ferrors.ConfigError("scenario name is required").Build()
	}
	mode, err := cachemode.ParseMode(sc.Mode)
	if err != nil {
		return Scenario{}, err
	}
	lib, err := cachemode.ParseInterceptionLibrary(sc.Library)
	if err != nil {
		return Scenario{}, err
	}
	constrained := defaultConstrained
	if sc.Constrained != nil {
		constrained = *sc.Constrained
	}
	return Scenario{Name: name, Mode: mode, Library: lib, Constrained: constrained}, nil
}
