package secrets

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	testCases := []struct {
		name        string
		remoteDelim string
		localDelim  string
		input       string
		expected    string
		expectErr   error
	}{
		{"Colon Convention Basic", "--", ":", "Secrets--ConnectionString", "Secrets:ConnectionString", nil},
		{"Colon Convention Deep Nesting", "--", ":", "Secrets--Db--Primary--Password", "Secrets:Db:Primary:Password", nil},
		{"Colon Convention No Delimiter", "--", ":", "StandaloneKey", "StandaloneKey", nil},
		{"Dot Convention Basic", "-", ".", "Secrets-ConnectionString", "Secrets.ConnectionString", nil},
		{"Dot Convention Deep Nesting", "-", ".", "a-b-c", "a.b.c", nil},
		{"Jdbc Suffix", "--", ":", "Secrets--ConnectionString--JDBC", "Secrets:ConnectionString:JDBC", nil},
		{"Empty Key", "--", ":", "", "", ErrKeyTranslationAmbiguous},
		{"Literal Local Delimiter Collision", "--", ":", "Secrets:Already", "", ErrKeyTranslationAmbiguous},
		{"Literal Dot Collision", "-", ".", "Secrets.Already", "", ErrKeyTranslationAmbiguous},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewKeyTranslator(tc.remoteDelim, tc.localDelim)
			actual, err := tr.Translate(tc.input)
			if tc.expectErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.expectErr), "expected %v, got %v", tc.expectErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestTranslateRoundTrip(t *testing.T) {
	testCases := []struct {
		name        string
		remoteDelim string
		localDelim  string
		remote      string
	}{
		{"Colon Convention", "--", ":", "Secrets--ConnectionString"},
		{"Dot Convention", "-", ".", "Secrets-ConnectionString"},
		{"No Delimiter", "--", ":", "Flat"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewKeyTranslator(tc.remoteDelim, tc.localDelim)
			local, err := tr.Translate(tc.remote)
			require.NoError(t, err)
			assert.Equal(t, tc.remote, tr.Untranslate(local))
		})
	}
}
