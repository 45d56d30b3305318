package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrKeyNotFound is returned by Store.Get for keys absent from every layer.
// A read-time miss is never fatal; only the load phase aborts the process.
var ErrKeyNotFound = errors.New("configuration key not found")

var sensitiveKeyWords = []string{"password", "pwd", "secret", "token", "connectionstring", "credential"}

// Layer is one ordered configuration source. Layers passed later to
// NewStore take precedence over earlier ones, so the caller spells out the
// merge order (local < vault) as an explicit construction step.
type Layer struct {
	Name   string
	Values map[string]string
}

// Store is the merged, read-only mapping from hierarchical key to value.
// It is built once at startup and never written afterwards, so it is safe
// for concurrent reads without locking.
type Store struct {
	values map[string]string
	source map[string]string // key -> layer name, for observability
}

func NewStore(layers ...Layer) *Store {
	s := &Store{
		values: make(map[string]string),
		source: make(map[string]string),
	}
	for _, layer := range layers {
		for k, v := range layer.Values {
			s.values[k] = v
			s.source[k] = layer.Name
		}
	}
	return s
}

// Get returns the value for key, or ErrKeyNotFound. The error carries the
// key for context and unwraps to ErrKeyNotFound.
func (s *Store) Get(key string) (string, error) {
	v, ok := s.values[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	return v, nil
}

// Lookup is the comma-ok form of Get.
func (s *Store) Lookup(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Source returns the name of the layer that supplied key, if any.
func (s *Store) Source(key string) (string, bool) {
	src, ok := s.source[key]
	return src, ok
}

// Keys returns every merged key in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) Len() int {
	return len(s.values)
}

// Redacted returns a copy of the mapping with values under sensitive keys
// masked, suitable for startup logging.
func (s *Store) Redacted() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		if isSensitiveKey(k) {
			out[k] = "***REDACTED***"
		} else {
			out[k] = v
		}
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, w := range sensitiveKeyWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
