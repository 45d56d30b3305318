package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePrecedence(t *testing.T) {
	testCases := []struct {
		name     string
		local    map[string]string
		vault    map[string]string
		key      string
		expected string
	}{
		{
			"Local Only Key Returns Local Value",
			map[string]string{"Secrets:ConnectionString": "local-cs"},
			map[string]string{},
			"Secrets:ConnectionString", "local-cs",
		},
		{
			"Vault Overrides Local",
			map[string]string{"Secrets:ConnectionString": "local-cs"},
			map[string]string{"Secrets:ConnectionString": "vault-cs"},
			"Secrets:ConnectionString", "vault-cs",
		},
		{
			"Vault Only Key",
			map[string]string{},
			map[string]string{"Secrets:ApiKey": "k"},
			"Secrets:ApiKey", "k",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewStore(
				Layer{Name: "local", Values: tc.local},
				Layer{Name: "vault", Values: tc.vault},
			)
			v, err := s.Get(tc.key)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, v)
		})
	}
}

func TestStoreAbsentKey(t *testing.T) {
	s := NewStore(Layer{Name: "local", Values: map[string]string{"A": "1"}})

	_, err := s.Get("Missing:Key")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKeyNotFound))

	_, ok := s.Lookup("Missing:Key")
	assert.False(t, ok)
}

func TestStoreSource(t *testing.T) {
	s := NewStore(
		Layer{Name: "local", Values: map[string]string{"A": "1", "B": "1"}},
		Layer{Name: "vault", Values: map[string]string{"B": "2"}},
	)

	src, ok := s.Source("A")
	require.True(t, ok)
	assert.Equal(t, "local", src)

	src, ok = s.Source("B")
	require.True(t, ok)
	assert.Equal(t, "vault", src)

	_, ok = s.Source("C")
	assert.False(t, ok)
}

func TestStoreKeysSorted(t *testing.T) {
	s := NewStore(Layer{Name: "l", Values: map[string]string{"b": "2", "a": "1", "c": "3"}})
	assert.Equal(t, []string{"a", "b", "c"}, s.Keys())
	assert.Equal(t, 3, s.Len())
}

func TestStoreRedacted(t *testing.T) {
	s := NewStore(Layer{Name: "l", Values: map[string]string{
		"Secrets:ConnectionString": "Server=db;Password=p;",
		"Secrets:DbPassword":       "hunter2",
		"Vault:Address":            "https://demo.vault.azure.net/",
	}})

	redacted := s.Redacted()
	assert.Equal(t, "***REDACTED***", redacted["Secrets:ConnectionString"])
	assert.Equal(t, "***REDACTED***", redacted["Secrets:DbPassword"])
	assert.Equal(t, "https://demo.vault.azure.net/", redacted["Vault:Address"])
}
