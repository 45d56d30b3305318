package secrets

import (
	"fmt"
	"strings"
)

// KeyTranslator rewrites remote secret names into local hierarchical keys.
// Vault naming rules forbid the hierarchy delimiter (':' or '.'), so remote
// names use a flat convention: "Secrets--ConnectionString" becomes
// "Secrets:ConnectionString" under the colon convention, and
// "Secrets-ConnectionString" becomes "Secrets.ConnectionString" under the
// single-dash one.
type KeyTranslator struct {
	RemoteDelimiter string
	LocalDelimiter  string
}

func NewKeyTranslator(remoteDelim, localDelim string) *KeyTranslator {
	return &KeyTranslator{RemoteDelimiter: remoteDelim, LocalDelimiter: localDelim}
}

// Translate maps one remote key to its local hierarchical key. Every
// occurrence of the remote delimiter is replaced left to right; there is no
// escaping, so a remote key that already contains the local delimiter would
// collide with a translated key and is rejected as ambiguous.
func (t *KeyTranslator) Translate(remote string) (string, error) {
	if remote == "" {
		return "", fmt.Errorf("%w: empty remote key", ErrKeyTranslationAmbiguous)
	}
	if strings.Contains(remote, t.LocalDelimiter) {
		return "", fmt.Errorf("%w: remote key %q contains the local delimiter %q literally",
			ErrKeyTranslationAmbiguous, remote, t.LocalDelimiter)
	}
	return strings.ReplaceAll(remote, t.RemoteDelimiter, t.LocalDelimiter), nil
}

// Untranslate is the inverse mapping, used when a local key has to be
// looked up remotely by name. It is exact because Translate rejects inputs
// that would make the substitution lossy.
func (t *KeyTranslator) Untranslate(local string) string {
	return strings.ReplaceAll(local, t.LocalDelimiter, t.RemoteDelimiter)
}
