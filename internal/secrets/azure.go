package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/arwahdevops/kvprobe/internal/config"
)

// azureSecretAPI is the slice of the azsecrets client the provider uses for
// individual fetches; tests substitute a fake.
type azureSecretAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// AzureProvider implements Provider for Azure Key Vault. With no
// SECRET_NAMES configured it enumerates every enabled secret in the vault;
// otherwise it fetches exactly the named secrets and a miss is fatal.
type AzureProvider struct {
	cfg        *config.Config
	client     azureSecretAPI
	listNames  func(ctx context.Context) ([]string, error)
	translator *KeyTranslator
	logger     *zap.Logger
}

func NewAzureProvider(cfg *config.Config, cred *Credential, baseLogger *zap.Logger) (*AzureProvider, error) {
	log := baseLogger.Named("azure-keyvault")
	if cfg.VaultBackend != config.BackendAzure {
		log.Info("Azure Key Vault provider is disabled via configuration.")
		return &AzureProvider{cfg: cfg, logger: log}, nil
	}

	vaultURL := cfg.VaultURL()
	log.Info("Initializing Azure Key Vault provider",
		zap.String("vault_url", vaultURL),
		zap.String("credential_mode", string(cred.Mode)),
	)

	client, err := azsecrets.NewClient(vaultURL, cred.Token, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}

	p := &AzureProvider{
		cfg:        cfg,
		client:     client,
		translator: NewKeyTranslator(cfg.RemoteDelimiter, cfg.LocalDelimiter),
		logger:     log,
	}
	p.listNames = func(ctx context.Context) ([]string, error) {
		return listEnabledSecrets(ctx, client)
	}
	return p, nil
}

func (p *AzureProvider) Name() string { return "azure-keyvault" }

func (p *AzureProvider) IsEnabled() bool {
	return p.cfg != nil && p.cfg.VaultBackend == config.BackendAzure && p.client != nil
}

// Fetch lists and retrieves the configured secrets, translating each remote
// name to its local hierarchical key. Per-secret failures are aggregated so
// the log shows everything wrong with the vault at once.
func (p *AzureProvider) Fetch(ctx context.Context) ([]Entry, error) {
	if !p.IsEnabled() {
		return nil, fmt.Errorf("Azure Key Vault provider is not enabled or not initialized")
	}

	names := p.cfg.SecretNames
	if len(names) == 0 {
		var err error
		names, err = p.listNames(ctx)
		if err != nil {
			return nil, classifyAzureError(err)
		}
		p.logger.Info("Enumerated secrets from vault", zap.Int("count", len(names)))
	}

	entries := make([]Entry, 0, len(names))
	var fetchErrs error
	for _, name := range names {
		resp, err := p.client.GetSecret(ctx, name, "", nil)
		if err != nil {
			fetchErrs = multierr.Append(fetchErrs,
				fmt.Errorf("secret %q: %w", name, classifyAzureError(err)))
			continue
		}
		if resp.Value == nil {
			fetchErrs = multierr.Append(fetchErrs,
				fmt.Errorf("secret %q has no value", name))
			continue
		}

		key, err := p.translator.Translate(name)
		if err != nil {
			fetchErrs = multierr.Append(fetchErrs, err)
			continue
		}

		entries = append(entries, Entry{Key: key, Value: *resp.Value, Source: p.Name()})
		p.logger.Debug("Fetched secret",
			zap.String("remote_name", name),
			zap.String("local_key", key),
		)
	}
	if fetchErrs != nil {
		return nil, fetchErrs
	}
	return entries, nil
}

// listEnabledSecrets walks the list pager and returns the names of every
// enabled secret.
func listEnabledSecrets(ctx context.Context, client *azsecrets.Client) ([]string, error) {
	var names []string
	pager := client.NewListSecretPropertiesPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing secrets: %w", err)
		}
		for _, item := range page.Value {
			if item.ID == nil {
				continue
			}
			if item.Attributes != nil && item.Attributes.Enabled != nil && !*item.Attributes.Enabled {
				continue
			}
			names = append(names, item.ID.Name())
		}
	}
	return names, nil
}

// classifyAzureError maps azcore response errors and transport failures
// onto the load-phase taxonomy.
func classifyAzureError(err error) error {
	if err == nil {
		return nil
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return classifyStatus(respErr.StatusCode, err)
	}
	if isTransportError(err) {
		return fmt.Errorf("%w: %v", ErrVaultUnreachable, err)
	}
	// Credential failures surface from GetToken inside the SDK pipeline.
	var authErr *azidentity.AuthenticationFailedError
	if errors.As(err, &authErr) {
		return fmt.Errorf("%w: %v", ErrAuthenticationRejected, err)
	}
	return fmt.Errorf("%w: %v", ErrVaultUnreachable, err)
}
