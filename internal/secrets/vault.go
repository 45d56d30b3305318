package secrets

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"

	"github.com/arwahdevops/kvprobe/internal/config"
)

// kvAPI is the slice of the Vault KV v2 client the provider uses; tests
// substitute a fake.
type kvAPI interface {
	Get(ctx context.Context, secretPath string) (*vault.KVSecret, error)
}

// VaultProvider implements Provider for HashiCorp Vault. It reads a single
// KV v2 secret and exposes every key of its data as one config entry, with
// remote names translated the same way as for the Azure backend.
type VaultProvider struct {
	kv         kvAPI
	cfg        *config.Config
	translator *KeyTranslator
	logger     *zap.Logger
}

func NewVaultProvider(cfg *config.Config, baseLogger *zap.Logger) (*VaultProvider, error) {
	log := baseLogger.Named("hashicorp-vault")
	if cfg.VaultBackend != config.BackendHashicorp {
		log.Info("HashiCorp Vault provider is disabled via configuration.")
		return &VaultProvider{cfg: cfg, logger: log}, nil
	}

	log.Info("Initializing HashiCorp Vault provider",
		zap.String("address", cfg.VaultAddr),
		zap.String("mount", cfg.VaultMount),
		zap.String("secret_path", cfg.VaultSecretPath),
	)

	vConfig := vault.DefaultConfig()
	vConfig.Address = cfg.VaultAddr
	vConfig.Timeout = 10 * time.Second

	tlsConfig := &vault.TLSConfig{
		CACert:   cfg.VaultCACert,
		Insecure: cfg.VaultSkipVerify,
	}
	if err := vConfig.ConfigureTLS(tlsConfig); err != nil {
		return nil, fmt.Errorf("failed to configure Vault TLS: %w", err)
	}

	client, err := vault.NewClient(vConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	if cfg.VaultToken != "" {
		log.Info("Using Vault token authentication")
		client.SetToken(cfg.VaultToken)
	} else {
		log.Warn("Vault backend is selected, but no VAULT_TOKEN provided and other auth methods are not implemented yet.")
	}

	return &VaultProvider{
		kv:         client.KVv2(cfg.VaultMount),
		cfg:        cfg,
		translator: NewKeyTranslator(cfg.RemoteDelimiter, cfg.LocalDelimiter),
		logger:     log,
	}, nil
}

func (p *VaultProvider) Name() string { return "hashicorp-vault" }

func (p *VaultProvider) IsEnabled() bool {
	return p.cfg != nil && p.cfg.VaultBackend == config.BackendHashicorp && p.kv != nil
}

// Fetch reads the configured KV v2 path and translates each data key into a
// local config entry. Non-string values are rejected rather than coerced.
func (p *VaultProvider) Fetch(ctx context.Context) ([]Entry, error) {
	if !p.IsEnabled() {
		return nil, fmt.Errorf("HashiCorp Vault provider is not enabled or not initialized")
	}

	log := p.logger.With(zap.String("vault_path", p.cfg.VaultSecretPath))
	log.Info("Reading secret from Vault KV v2")

	secret, err := p.kv.Get(ctx, p.cfg.VaultSecretPath)
	if err != nil {
		return nil, classifyVaultError(err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: secret data at %q is empty", ErrSecretNotFound, p.cfg.VaultSecretPath)
	}

	// Deterministic order keeps collision errors stable across runs.
	remoteKeys := make([]string, 0, len(secret.Data))
	for k := range secret.Data {
		remoteKeys = append(remoteKeys, k)
	}
	sort.Strings(remoteKeys)

	entries := make([]Entry, 0, len(remoteKeys))
	for _, remote := range remoteKeys {
		raw := secret.Data[remote]
		value, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("value for key %q at %q is not a string (got %T)",
				remote, p.cfg.VaultSecretPath, raw)
		}

		key, err := p.translator.Translate(remote)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: key, Value: value, Source: p.Name()})
		log.Debug("Fetched secret key",
			zap.String("remote_name", remote),
			zap.String("local_key", key),
		)
	}
	return entries, nil
}

// classifyVaultError maps hashicorp client errors onto the load-phase
// taxonomy.
func classifyVaultError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, vault.ErrSecretNotFound) {
		return fmt.Errorf("%w: %v", ErrSecretNotFound, err)
	}
	var respErr *vault.ResponseError
	if errors.As(err, &respErr) {
		return classifyStatus(respErr.StatusCode, err)
	}
	if isTransportError(err) {
		return fmt.Errorf("%w: %v", ErrVaultUnreachable, err)
	}
	return fmt.Errorf("%w: %v", ErrVaultUnreachable, err)
}
