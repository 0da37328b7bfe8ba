package remoteenv

import "os"

// Source is read-only access to the invoking process environment.
type Source interface {
	LookupEnv(key string) (string, bool)
}

// OSSource reads the real process environment.
type OSSource struct{}

// LookupEnv implements Source.
func (OSSource) LookupEnv(key string) (string, bool) { return os.LookupEnv(key) }

// MapSource is a fixed environment, used by tests and the plan command.
type MapSource map[string]string

// LookupEnv implements Source.
func (m MapSource) LookupEnv(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}
