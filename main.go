package main

import (
	"context"
	"errors"
	"flag"
	stdlog "log"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/arwahdevops/kvprobe/internal/config"
	"github.com/arwahdevops/kvprobe/internal/db"
	"github.com/arwahdevops/kvprobe/internal/logger"
	"github.com/arwahdevops/kvprobe/internal/metrics"
	"github.com/arwahdevops/kvprobe/internal/secrets"
	"github.com/arwahdevops/kvprobe/internal/server"
)

var (
	listenPortOverride     int
	vaultBackendOverride   string
	credentialModeOverride string
)

func main() {
	flag.IntVar(&listenPortOverride, "listen-port", 0, "Override LISTEN_PORT (must be > 0)")
	flag.StringVar(&vaultBackendOverride, "vault-backend", "", "Override VAULT_BACKEND (azure, hashicorp, none)")
	flag.StringVar(&credentialModeOverride, "credential-mode", "", "Override CREDENTIAL_MODE (auto, managed-identity, service-principal)")
	flag.Parse()

	// 1. Load environment variables (.env overrides)
	if err := godotenv.Overload(".env"); err != nil {
		stdlog.Printf("Warning: Could not load .env file: %v. Relying on environment variables.\n", err)
	}

	// 2. Initial config loading to get logger settings
	preCfg := &struct {
		EnableJsonLogging bool `env:"ENABLE_JSON_LOGGING" envDefault:"false"`
		DebugMode         bool `env:"DEBUG_MODE" envDefault:"false"`
	}{}
	if err := env.Parse(preCfg); err != nil {
		stdlog.Fatalf("Failed to parse pre-configuration for logger: %v", err)
	}

	// 3. Initialize Zap logger
	if err := logger.Init(preCfg.DebugMode, preCfg.EnableJsonLogging); err != nil {
		stdlog.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Log.Sync() }()

	// 4. Load and validate full configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal("Configuration loading error from environment", zap.Error(err))
	}
	applyCliOverrides(cfg)
	logLoadedConfig(cfg)

	// 5. Setup context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 6. Initialize metrics store
	metricsStore := metrics.NewStore()

	// 7. Resolve the credential and load secrets. Any failure here is
	// fatal: the listener must not start with a partial secret set.
	vaultValues := loadVaultValues(ctx, cfg, metricsStore)

	// 8. Build the merged configuration store, local sources first so the
	// vault layer takes precedence.
	store := config.NewStore(
		localLayer(cfg),
		config.Layer{Name: "vault", Values: vaultValues},
	)
	logger.Log.Info("Configuration store assembled", zap.Int("keys", store.Len()))
	if cfg.DebugMode {
		for k, v := range store.Redacted() {
			src, _ := store.Source(k)
			logger.Log.Debug("Config entry", zap.String("key", k), zap.String("value", v), zap.String("source", src))
		}
	}

	// 9. Connect to the database with retry
	dsn, err := store.Get(cfg.ConnectionStringKey)
	if err != nil {
		logger.Log.Fatal("No connection string available: neither the vault nor local configuration supplied it",
			zap.String("key", cfg.ConnectionStringKey), zap.Error(err))
	}
	conn, err := connectDBWithRetry(ctx, cfg, dsn, metricsStore)
	if err != nil {
		logger.Log.Fatal("Failed to establish database connection", zap.Error(err))
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Log.Error("Error closing database connection", zap.Error(err))
		}
	}()

	if err := conn.Optimize(cfg.ConnPoolSize, cfg.ConnMaxLifetime); err != nil {
		logger.Log.Warn("Failed to optimize DB connection pool", zap.Error(err))
	}

	// 10. Serve until shutdown
	metricsStore.Up.Set(1)
	srv := server.New(cfg, store, conn, metricsStore, logger.Log)
	srv.Run(ctx)
	metricsStore.Up.Set(0)

	logger.Log.Info("Shutdown complete. Exiting.")
}

// loadVaultValues resolves the credential, builds the configured provider
// and performs the one-time secret load. Returns an empty map when the
// backend is "none".
func loadVaultValues(ctx context.Context, cfg *config.Config, metricsStore *metrics.Store) map[string]string {
	var provider secrets.Provider

	switch cfg.VaultBackend {
	case config.BackendNone:
		logger.Log.Info("Vault backend disabled; using local configuration only")
		return map[string]string{}

	case config.BackendAzure:
		cred, err := secrets.NewResolver(cfg, logger.Log).Resolve(ctx)
		if err != nil {
			metricsStore.SecretLoadErrorsTotal.WithLabelValues("azure-keyvault", "credential").Inc()
			logger.Log.Fatal("Credential resolution failed", zap.Error(err))
		}
		metricsStore.CredentialPath.WithLabelValues(string(cred.Mode)).Set(1)

		provider, err = secrets.NewAzureProvider(cfg, cred, logger.Log)
		if err != nil {
			logger.Log.Fatal("Failed to initialize Azure Key Vault provider", zap.Error(err))
		}

	case config.BackendHashicorp:
		var err error
		provider, err = secrets.NewVaultProvider(cfg, logger.Log)
		if err != nil {
			logger.Log.Fatal("Failed to initialize HashiCorp Vault provider", zap.Error(err))
		}
	}

	start := time.Now()
	values, err := secrets.Load(ctx, provider, logger.Log)
	if err != nil {
		metricsStore.SecretLoadErrorsTotal.WithLabelValues(provider.Name(), loadErrorReason(err)).Inc()
		logger.Log.Fatal("Secret loading failed; refusing to start with a partial secret set",
			zap.String("provider", provider.Name()),
			zap.Error(err))
	}
	metricsStore.SecretLoadDuration.Observe(time.Since(start).Seconds())
	metricsStore.SecretsLoadedTotal.WithLabelValues(provider.Name()).Add(float64(len(values)))
	return values
}

func loadErrorReason(err error) string {
	switch {
	case errors.Is(err, secrets.ErrVaultUnreachable):
		return "unreachable"
	case errors.Is(err, secrets.ErrAuthenticationRejected):
		return "auth_rejected"
	case errors.Is(err, secrets.ErrSecretNotFound):
		return "not_found"
	case errors.Is(err, secrets.ErrKeyTranslationAmbiguous):
		return "key_translation"
	default:
		return "other"
	}
}

// localLayer collects the non-vault configuration values that live under
// the same hierarchical namespace as the fetched secrets.
func localLayer(cfg *config.Config) config.Layer {
	values := make(map[string]string)
	if cfg.DatabaseURL != "" {
		values[cfg.ConnectionStringKey] = cfg.DatabaseURL
	}
	if url := cfg.VaultURL(); url != "" {
		values["Vault"+cfg.LocalDelimiter+"Address"] = url
	} else if cfg.VaultAddr != "" {
		values["Vault"+cfg.LocalDelimiter+"Address"] = cfg.VaultAddr
	}
	return config.Layer{Name: "local", Values: values}
}

// applyCliOverrides applies CLI flag values on top of the parsed config.
func applyCliOverrides(cfg *config.Config) {
	if listenPortOverride > 0 {
		logger.Log.Info("Overriding LISTEN_PORT with CLI flag",
			zap.Int("env_value", cfg.ListenPort), zap.Int("cli_value", listenPortOverride))
		cfg.ListenPort = listenPortOverride
	}
	if vaultBackendOverride != "" {
		backend := config.VaultBackend(vaultBackendOverride)
		switch backend {
		case config.BackendAzure, config.BackendHashicorp, config.BackendNone:
			logger.Log.Info("Overriding VAULT_BACKEND with CLI flag",
				zap.String("env_value", string(cfg.VaultBackend)), zap.String("cli_value", vaultBackendOverride))
			cfg.VaultBackend = backend
		default:
			logger.Log.Warn("Invalid value provided for -vault-backend flag, ignoring override.",
				zap.String("invalid_value", vaultBackendOverride))
		}
	}
	if credentialModeOverride != "" {
		mode := config.CredentialMode(credentialModeOverride)
		switch mode {
		case config.CredentialAuto, config.CredentialManagedIdentity, config.CredentialServicePrincipal:
			logger.Log.Info("Overriding CREDENTIAL_MODE with CLI flag",
				zap.String("env_value", string(cfg.CredentialMode)), zap.String("cli_value", credentialModeOverride))
			cfg.CredentialMode = mode
		default:
			logger.Log.Warn("Invalid value provided for -credential-mode flag, ignoring override.",
				zap.String("invalid_value", credentialModeOverride))
		}
	}
}

// logLoadedConfig records the final configuration in use, with secret
// presence flags instead of secret values.
func logLoadedConfig(cfg *config.Config) {
	logger.Log.Info("Final configuration in use",
		zap.String("vault_backend", string(cfg.VaultBackend)),
		zap.String("azure_vault_url", cfg.VaultURL()),
		zap.Strings("secret_names", cfg.SecretNames),
		zap.String("credential_mode", string(cfg.CredentialMode)),
		zap.Duration("credential_probe_timeout", cfg.CredentialProbeTimeout),
		zap.Bool("service_principal_present", cfg.HasServicePrincipal()),
		zap.String("vault_addr", cfg.VaultAddr),
		zap.Bool("vault_token_present", cfg.VaultToken != ""),
		zap.String("vault_mount", cfg.VaultMount),
		zap.String("vault_secret_path", cfg.VaultSecretPath),
		zap.String("remote_delimiter", cfg.RemoteDelimiter),
		zap.String("local_delimiter", cfg.LocalDelimiter),
		zap.String("connection_string_key", cfg.ConnectionStringKey),
		zap.Bool("database_url_present", cfg.DatabaseURL != ""),
		zap.String("db_dialect", cfg.DBDialect),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("retry_interval", cfg.RetryInterval),
		zap.Int("conn_pool_size", cfg.ConnPoolSize),
		zap.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
		zap.Int("listen_port", cfg.ListenPort),
		zap.Int("metrics_port", cfg.MetricsPort),
		zap.Bool("probe_redact_secrets", cfg.ProbeRedactSecrets),
		zap.Bool("json_logging", cfg.EnableJsonLogging),
		zap.Bool("enable_pprof", cfg.EnablePprof),
		zap.Bool("debug_mode", cfg.DebugMode),
	)
}

// connectDBWithRetry opens the database connection with a bounded retry
// loop: wait, connect, ping, give up after MAX_RETRIES.
func connectDBWithRetry(ctx context.Context, cfg *config.Config, dsn string, metricsStore *metrics.Store) (*db.Connector, error) {
	gl := logger.GetGormLogger()
	var lastErr error

	for i := 0; i <= cfg.MaxRetries; i++ {
		if i > 0 {
			logger.Log.Warn("Retrying database connection",
				zap.Int("attempt", i+1),
				zap.Int("max_attempts", cfg.MaxRetries+1),
				zap.Duration("wait_interval", cfg.RetryInterval),
				zap.NamedError("previous_error", lastErr))
			timer := time.NewTimer(cfg.RetryInterval)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}

		attemptStart := time.Now()
		conn, err := db.New(cfg.DBDialect, dsn, gl)
		if err != nil {
			metricsStore.DBConnectionErrorsTotal.Inc()
			lastErr = err
			continue
		}

		if err := conn.Ping(ctx); err != nil {
			metricsStore.DBConnectionErrorsTotal.Inc()
			lastErr = err
			_ = conn.Close()
			continue
		}

		logger.Log.Info("Database connection successful",
			zap.String("dialect", cfg.DBDialect),
			zap.Duration("connect_duration", time.Since(attemptStart)))
		return conn, nil
	}

	return nil, lastErr
}
