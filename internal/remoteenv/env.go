// Package remoteenv assembles the environment every remote pipeline command runs with.
package remoteenv

import (
	"fmt"
	"strings"
)

// Env is an insertion-ordered set of environment assignments. Setting an existing
// variable replaces its value without moving it.
type Env struct {
	keys   []string
	values map[string]string
}

// Set assigns value to key.
func (e *Env) Set(key, value string) {
	if e.values == nil {
		e.values = make(map[string]string)
	}
	if _, ok := e.values[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.values[key] = value
}

// Get returns the value of key.
func (e Env) Get(key string) (string, bool) {
	v, ok := e.values[key]
	return v, ok
}

// Keys returns the variable names in insertion order.
func (e Env) Keys() []string {
	out := make([]string, len(e.keys))
	copy(out, e.keys)
	return out
}

// Len returns the number of variables.
func (e Env) Len() int { return len(e.keys) }

// Map returns a copy of the assignments.
func (e Env) Map() map[string]string {
	out := make(map[string]string, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}

// Exports renders the assignments as shell export statements joined by ';'.
// Values are emitted verbatim so references such as $PATH expand remotely.
func (e Env) Exports() string {
	parts := make([]string, 0, len(e.keys))
	for _, k := range e.keys {
		parts = append(parts, fmt.Sprintf("export %s=%s", k, e.values[k]))
	}
	return strings.Join(parts, ";")
}
