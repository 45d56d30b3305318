package secrets

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arwahdevops/kvprobe/internal/config"
)

type fakeAzureAPI struct {
	secrets map[string]string
	errs    map[string]error
}

func (f *fakeAzureAPI) GetSecret(ctx context.Context, name, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	if err, ok := f.errs[name]; ok {
		return azsecrets.GetSecretResponse{}, err
	}
	v, ok := f.secrets[name]
	if !ok {
		return azsecrets.GetSecretResponse{}, &azcore.ResponseError{StatusCode: http.StatusNotFound}
	}
	return azsecrets.GetSecretResponse{Secret: azsecrets.Secret{Value: &v}}, nil
}

func newTestAzureProvider(cfg *config.Config, api *fakeAzureAPI, names []string, listErr error) *AzureProvider {
	return &AzureProvider{
		cfg:        cfg,
		client:     api,
		translator: NewKeyTranslator(cfg.RemoteDelimiter, cfg.LocalDelimiter),
		logger:     zap.NewNop(),
		listNames: func(ctx context.Context) ([]string, error) {
			return names, listErr
		},
	}
}

func azureTestConfig() *config.Config {
	return &config.Config{
		VaultBackend:    config.BackendAzure,
		AzureVaultName:  "demo-vault",
		RemoteDelimiter: "--",
		LocalDelimiter:  ":",
	}
}

func TestAzureFetch(t *testing.T) {
	t.Run("Enumerates And Translates", func(t *testing.T) {
		cfg := azureTestConfig()
		api := &fakeAzureAPI{secrets: map[string]string{
			"Secrets--ConnectionString": "Server=db;User=u;Password=p;",
			"Secrets--ApiKey":           "k",
		}}
		p := newTestAzureProvider(cfg, api, []string{"Secrets--ConnectionString", "Secrets--ApiKey"}, nil)

		entries, err := p.Fetch(context.Background())
		require.NoError(t, err)

		byKey := map[string]string{}
		for _, e := range entries {
			byKey[e.Key] = e.Value
		}
		assert.Equal(t, map[string]string{
			"Secrets:ConnectionString": "Server=db;User=u;Password=p;",
			"Secrets:ApiKey":           "k",
		}, byKey)
	})

	t.Run("Named Fetch Restricts Enumeration", func(t *testing.T) {
		cfg := azureTestConfig()
		cfg.SecretNames = []string{"Secrets--ConnectionString"}
		api := &fakeAzureAPI{secrets: map[string]string{
			"Secrets--ConnectionString": "cs",
			"Secrets--Other":            "x",
		}}
		p := newTestAzureProvider(cfg, api, nil, errors.New("list must not be called"))

		entries, err := p.Fetch(context.Background())
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "Secrets:ConnectionString", entries[0].Key)
	})

	t.Run("Named Secret Missing", func(t *testing.T) {
		cfg := azureTestConfig()
		cfg.SecretNames = []string{"Secrets--Nope"}
		p := newTestAzureProvider(cfg, &fakeAzureAPI{}, nil, nil)

		_, err := p.Fetch(context.Background())
		assert.True(t, errors.Is(err, ErrSecretNotFound), "got: %v", err)
	})

	t.Run("Forbidden Is AuthenticationRejected", func(t *testing.T) {
		cfg := azureTestConfig()
		cfg.SecretNames = []string{"Secrets--ConnectionString"}
		api := &fakeAzureAPI{errs: map[string]error{
			"Secrets--ConnectionString": &azcore.ResponseError{StatusCode: http.StatusForbidden},
		}}
		p := newTestAzureProvider(cfg, api, nil, nil)

		_, err := p.Fetch(context.Background())
		assert.True(t, errors.Is(err, ErrAuthenticationRejected), "got: %v", err)
	})

	t.Run("List Timeout Is VaultUnreachable", func(t *testing.T) {
		cfg := azureTestConfig()
		p := newTestAzureProvider(cfg, &fakeAzureAPI{}, nil, context.DeadlineExceeded)

		_, err := p.Fetch(context.Background())
		assert.True(t, errors.Is(err, ErrVaultUnreachable), "got: %v", err)
	})

	t.Run("Ambiguous Remote Name", func(t *testing.T) {
		cfg := azureTestConfig()
		api := &fakeAzureAPI{secrets: map[string]string{"Bad:Name": "v"}}
		p := newTestAzureProvider(cfg, api, []string{"Bad:Name"}, nil)

		_, err := p.Fetch(context.Background())
		assert.True(t, errors.Is(err, ErrKeyTranslationAmbiguous), "got: %v", err)
	})

	t.Run("Disabled Provider", func(t *testing.T) {
		cfg := azureTestConfig()
		cfg.VaultBackend = config.BackendNone
		p := newTestAzureProvider(cfg, &fakeAzureAPI{}, nil, nil)

		_, err := p.Fetch(context.Background())
		assert.Error(t, err)
	})
}

func TestClassifyAzureError(t *testing.T) {
	testCases := []struct {
		name     string
		input    error
		expected error
	}{
		{"Unauthorized", &azcore.ResponseError{StatusCode: http.StatusUnauthorized}, ErrAuthenticationRejected},
		{"Forbidden", &azcore.ResponseError{StatusCode: http.StatusForbidden}, ErrAuthenticationRejected},
		{"Not Found", &azcore.ResponseError{StatusCode: http.StatusNotFound}, ErrSecretNotFound},
		{"Deadline", context.DeadlineExceeded, ErrVaultUnreachable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := classifyAzureError(tc.input)
			assert.True(t, errors.Is(err, tc.expected), "got: %v", err)
		})
	}
}
