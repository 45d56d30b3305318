package secrets

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"go.uber.org/zap"

	"github.com/arwahdevops/kvprobe/internal/config"
)

// vaultScope is the token audience requested when probing a credential.
const vaultScope = "https://vault.azure.net/.default"

// Credential is the identity resolved once at startup and held for the
// process lifetime.
type Credential struct {
	Mode  config.CredentialMode // managed-identity or service-principal
	Token azcore.TokenCredential
}

// Resolver picks the credential path explicitly instead of relying on SDK
// auto-detection: the ambient managed identity is probed with a bounded
// timeout, and only on failure does resolution fall back to the
// service-principal values supplied out-of-band. The chosen path is logged
// and reported, and CREDENTIAL_MODE can pin either path for testing.
type Resolver struct {
	cfg *config.Config
	log *zap.Logger

	// Constructor and probe seams, replaced in tests.
	newManagedIdentity  func() (azcore.TokenCredential, error)
	newServicePrincipal func(tenantID, clientID, clientSecret string) (azcore.TokenCredential, error)
	probeScope          string
}

func NewResolver(cfg *config.Config, baseLogger *zap.Logger) *Resolver {
	return &Resolver{
		cfg: cfg,
		log: baseLogger.Named("credential-resolver"),
		newManagedIdentity: func() (azcore.TokenCredential, error) {
			return azidentity.NewManagedIdentityCredential(nil)
		},
		newServicePrincipal: func(tenantID, clientID, clientSecret string) (azcore.TokenCredential, error) {
			return azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
		},
		probeScope: vaultScope,
	}
}

// Resolve returns the process credential. With CREDENTIAL_MODE=auto the
// ambient identity is attempted first; managed-identity and
// service-principal pin one path and fail hard if it is unavailable.
func (r *Resolver) Resolve(ctx context.Context) (*Credential, error) {
	mode := r.cfg.CredentialMode

	if mode == config.CredentialAuto || mode == config.CredentialManagedIdentity {
		cred, err := r.resolveAmbient(ctx)
		if err == nil {
			r.log.Info("Using ambient managed identity credential")
			return &Credential{Mode: config.CredentialManagedIdentity, Token: cred}, nil
		}
		if mode == config.CredentialManagedIdentity {
			return nil, fmt.Errorf("%w: managed identity pinned by CREDENTIAL_MODE but unreachable: %v",
				ErrCredentialUnavailable, err)
		}
		r.log.Warn("Ambient managed identity unavailable, falling back to service principal",
			zap.Duration("probe_timeout", r.cfg.CredentialProbeTimeout),
			zap.Error(err))
	}

	if !r.cfg.HasServicePrincipal() {
		return nil, fmt.Errorf("%w: ambient identity unreachable and AZURE_TENANT_ID/AZURE_CLIENT_ID/AZURE_CLIENT_SECRET are not all set",
			ErrCredentialUnavailable)
	}

	cred, err := r.newServicePrincipal(r.cfg.AzureTenantID, r.cfg.AzureClientID, r.cfg.AzureClientSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: building service-principal credential: %v", ErrCredentialUnavailable, err)
	}

	r.log.Info("Using service-principal credential",
		zap.String("tenant_id", r.cfg.AzureTenantID),
		zap.String("client_id", r.cfg.AzureClientID),
	)
	return &Credential{Mode: config.CredentialServicePrincipal, Token: cred}, nil
}

// resolveAmbient constructs the managed identity credential and verifies it
// can actually mint a token. The probe runs under its own deadline so a
// missing metadata endpoint fails fast instead of hanging startup.
func (r *Resolver) resolveAmbient(ctx context.Context) (azcore.TokenCredential, error) {
	cred, err := r.newManagedIdentity()
	if err != nil {
		return nil, fmt.Errorf("constructing managed identity credential: %w", err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, r.cfg.CredentialProbeTimeout)
	defer cancel()

	if _, err := cred.GetToken(probeCtx, policy.TokenRequestOptions{Scopes: []string{r.probeScope}}); err != nil {
		return nil, fmt.Errorf("managed identity token probe failed: %w", err)
	}
	return cred, nil
}
