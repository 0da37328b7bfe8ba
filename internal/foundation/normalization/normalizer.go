package normalization

import (
	"fmt"
	"sort"
	"strings"
)

// Normalizer provides type-safe string-to-enum normalization with error handling.
// Several spellings may map to the same value; Names reports canonical spellings only.
type Normalizer[T comparable] struct {
	enumName    string
	validValues map[string]T
	names       []string
}

// NewNormalizer creates a normalizer for the named enum. canonical maps the
// canonical spelling of each value; aliases adds alternative spellings.
func NewNormalizer[T comparable](enumName string, canonical map[string]T, aliases map[string]T) *Normalizer[T] {
	values := make(map[string]T, len(canonical)+len(aliases))
	names := make([]string, 0, len(canonical))

	for k, v := range canonical {
		key := normalize(k)
		values[key] = v
		names = append(names, key)
	}
	for k, v := range aliases {
		values[normalize(k)] = v
	}

	sort.Strings(names)

	return &Normalizer[T]{
		enumName:    enumName,
		validValues: values,
		names:       names,
	}
}

// Lookup converts raw to the enum value, reporting whether it was recognized.
func (n *Normalizer[T]) Lookup(raw string) (T, bool) {
	v, ok := n.validValues[normalize(raw)]
	return v, ok
}

// NormalizeWithError converts raw to the enum value or describes the valid options.
func (n *Normalizer[T]) NormalizeWithError(raw string) (T, error) {
	if v, ok := n.Lookup(raw); ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q, valid options: %v", n.enumName, raw, n.names)
}

// Names returns the sorted canonical spellings.
func (n *Normalizer[T]) Names() []string {
	out := make([]string, len(n.names))
	copy(out, n.names)
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
