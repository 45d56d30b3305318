package secrets

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Load-phase error taxonomy. Every one of these is fatal to startup: the
// process must not begin serving with a partially loaded secret set.
var (
	// ErrCredentialUnavailable: neither the ambient managed identity nor an
	// explicit service-principal credential could be resolved.
	ErrCredentialUnavailable = errors.New("no usable credential")

	// ErrVaultUnreachable: network, DNS or timeout failure talking to the
	// vault endpoint.
	ErrVaultUnreachable = errors.New("vault unreachable")

	// ErrAuthenticationRejected: the vault rejected the credential or the
	// access policy does not grant the required permission.
	ErrAuthenticationRejected = errors.New("authentication rejected by vault")

	// ErrSecretNotFound: an explicitly named secret does not exist.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrKeyTranslationAmbiguous: a remote key cannot be mapped to exactly
	// one local hierarchical key.
	ErrKeyTranslationAmbiguous = errors.New("ambiguous key translation")
)

// classifyStatus maps an HTTP status from a vault response onto the error
// taxonomy, wrapping cause so the original SDK error stays inspectable.
func classifyStatus(status int, cause error) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrAuthenticationRejected, cause)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %v", ErrSecretNotFound, cause)
	default:
		return fmt.Errorf("vault request failed (status %d): %w", status, cause)
	}
}

// isTransportError reports whether err looks like a failure to reach the
// vault at all, as opposed to a response the vault actually sent.
func isTransportError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
