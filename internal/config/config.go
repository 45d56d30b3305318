package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v8"
)

type VaultBackend string

const (
	BackendAzure     VaultBackend = "azure"     // Azure Key Vault via azidentity/azsecrets
	BackendHashicorp VaultBackend = "hashicorp" // HashiCorp Vault KV v2, token auth
	BackendNone      VaultBackend = "none"      // Local configuration only
)

type CredentialMode string

const (
	CredentialAuto             CredentialMode = "auto"
	CredentialManagedIdentity  CredentialMode = "managed-identity"
	CredentialServicePrincipal CredentialMode = "service-principal"
)

type Config struct {
	// Secret backend selection
	VaultBackend VaultBackend `env:"VAULT_BACKEND" envDefault:"azure"`

	// Azure Key Vault
	AzureVaultName string   `env:"AZURE_KEYVAULT_NAME"`
	AzureVaultURL  string   `env:"AZURE_KEYVAULT_URL"` // Takes precedence over AZURE_KEYVAULT_NAME
	SecretNames    []string `env:"SECRET_NAMES" envSeparator:","`

	// Service-principal credentials, consulted only when the ambient
	// managed identity is unreachable (or CREDENTIAL_MODE forces it).
	AzureTenantID     string `env:"AZURE_TENANT_ID"`
	AzureClientID     string `env:"AZURE_CLIENT_ID"`
	AzureClientSecret string `env:"AZURE_CLIENT_SECRET"`

	CredentialMode         CredentialMode `env:"CREDENTIAL_MODE" envDefault:"auto"`
	CredentialProbeTimeout time.Duration  `env:"CREDENTIAL_PROBE_TIMEOUT" envDefault:"5s"`

	// HashiCorp Vault
	VaultAddr       string `env:"VAULT_ADDR"`
	VaultToken      string `env:"VAULT_TOKEN"`
	VaultMount      string `env:"VAULT_MOUNT" envDefault:"secret"`
	VaultSecretPath string `env:"VAULT_SECRET_PATH"`
	VaultCACert     string `env:"VAULT_CACERT"`
	VaultSkipVerify bool   `env:"VAULT_SKIP_VERIFY" envDefault:"false"`

	// Key translation. Remote secret names cannot contain the local
	// hierarchy delimiter, so the vault side uses a flat convention
	// (Secrets--ConnectionString) that is rewritten on load.
	RemoteDelimiter     string `env:"KEY_REMOTE_DELIMITER" envDefault:"--"`
	LocalDelimiter      string `env:"KEY_LOCAL_DELIMITER" envDefault:":"`
	ConnectionStringKey string `env:"CONNECTION_STRING_KEY" envDefault:"Secrets:ConnectionString"`

	// Local fallback connection string, lowest precedence layer.
	DatabaseURL string `env:"DATABASE_URL"`

	// Database
	DBDialect       string        `env:"DB_DIALECT" envDefault:"postgres"`
	MaxRetries      int           `env:"MAX_RETRIES" envDefault:"3"`
	RetryInterval   time.Duration `env:"RETRY_INTERVAL" envDefault:"5s"`
	ConnPoolSize    int           `env:"CONN_POOL_SIZE" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"1h"`

	// HTTP
	ListenPort         int  `env:"LISTEN_PORT" envDefault:"8080"`
	MetricsPort        int  `env:"METRICS_PORT" envDefault:"9091"`
	ProbeRedactSecrets bool `env:"PROBE_REDACT_SECRETS" envDefault:"true"`

	// Observability & Debugging
	EnableJsonLogging bool `env:"ENABLE_JSON_LOGGING" envDefault:"false"`
	EnablePprof       bool `env:"ENABLE_PPROF" envDefault:"false"`
	DebugMode         bool `env:"DEBUG_MODE" envDefault:"false"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{}); err != nil {
		return nil, fmt.Errorf("config parsing error: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// VaultURL returns the Azure Key Vault endpoint. AZURE_KEYVAULT_URL wins;
// otherwise the URL is derived from the vault name.
func (c *Config) VaultURL() string {
	if c.AzureVaultURL != "" {
		return c.AzureVaultURL
	}
	if c.AzureVaultName != "" {
		return fmt.Sprintf("https://%s.vault.azure.net/", c.AzureVaultName)
	}
	return ""
}

// HasServicePrincipal reports whether all three service-principal values
// were supplied out-of-band.
func (c *Config) HasServicePrincipal() bool {
	return c.AzureTenantID != "" && c.AzureClientID != "" && c.AzureClientSecret != ""
}

func validateConfig(cfg *Config) error {
	switch cfg.VaultBackend {
	case BackendAzure, BackendHashicorp, BackendNone:
	default:
		return fmt.Errorf("invalid vault backend: %s. Valid options: %s, %s, %s",
			cfg.VaultBackend, BackendAzure, BackendHashicorp, BackendNone)
	}

	switch cfg.CredentialMode {
	case CredentialAuto, CredentialManagedIdentity, CredentialServicePrincipal:
	default:
		return fmt.Errorf("invalid credential mode: %s. Valid options: %s, %s, %s",
			cfg.CredentialMode, CredentialAuto, CredentialManagedIdentity, CredentialServicePrincipal)
	}

	if cfg.VaultBackend == BackendAzure && cfg.VaultURL() == "" {
		return fmt.Errorf("vault backend is %s, but neither AZURE_KEYVAULT_URL nor AZURE_KEYVAULT_NAME is set", BackendAzure)
	}
	if cfg.VaultBackend == BackendHashicorp {
		if cfg.VaultAddr == "" {
			return fmt.Errorf("vault backend is %s, but VAULT_ADDR is not set", BackendHashicorp)
		}
		if cfg.VaultSecretPath == "" {
			return fmt.Errorf("vault backend is %s, but VAULT_SECRET_PATH is not set", BackendHashicorp)
		}
	}

	if cfg.RemoteDelimiter == "" || cfg.LocalDelimiter == "" {
		return fmt.Errorf("key delimiters must be non-empty (remote=%q, local=%q)",
			cfg.RemoteDelimiter, cfg.LocalDelimiter)
	}
	if cfg.RemoteDelimiter == cfg.LocalDelimiter {
		return fmt.Errorf("remote and local key delimiters must differ (both %q)", cfg.RemoteDelimiter)
	}
	if cfg.ConnectionStringKey == "" {
		return fmt.Errorf("connection string key must not be empty")
	}

	validatePort := func(port int, name string) error {
		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid %s port: %d", name, port)
		}
		return nil
	}
	if err := validatePort(cfg.ListenPort, "listen"); err != nil {
		return err
	}
	if err := validatePort(cfg.MetricsPort, "metrics"); err != nil {
		return err
	}
	if cfg.ListenPort == cfg.MetricsPort {
		return fmt.Errorf("listen port and metrics port must differ (both %d)", cfg.ListenPort)
	}

	switch strings.ToLower(cfg.DBDialect) {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid DB dialect: %s. Valid options: mysql, postgres, sqlite", cfg.DBDialect)
	}

	if cfg.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if cfg.ConnPoolSize <= 0 {
		return fmt.Errorf("connection pool size must be positive")
	}
	if cfg.CredentialProbeTimeout <= 0 {
		return fmt.Errorf("credential probe timeout must be positive")
	}

	return nil
}
