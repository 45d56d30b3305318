package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/arwahdevops/kvprobe/internal/config"
	"github.com/arwahdevops/kvprobe/internal/db"
	"github.com/arwahdevops/kvprobe/internal/logger"
	"github.com/arwahdevops/kvprobe/internal/metrics"
	"github.com/arwahdevops/kvprobe/internal/server"
)

const postgresImage = "postgres:13-alpine"

type testDBInstance struct {
	Container testcontainers.Container
	DSN       string
	Username  string
}

// startPostgresContainer starts a PostgreSQL container for the test and
// returns a ready-to-use DSN.
func startPostgresContainer(ctx context.Context, t *testing.T) *testDBInstance {
	t.Helper()
	dbName := "probedb"
	dbUser := "probeuser"
	dbPassword := "probepass"

	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       dbName,
			"POSTGRES_USER":     dbUser,
			"POSTGRES_PASSWORD": dbPassword,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %s", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %s", err)
	}
	mappedPort, err := container.MappedPort(ctx, nat.Port("5432/tcp"))
	if err != nil {
		t.Fatalf("Failed to get mapped port: %s", err)
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable connect_timeout=10",
		host, mappedPort.Port(), dbUser, dbPassword, dbName)
	return &testDBInstance{Container: container, DSN: dsn, Username: dbUser}
}

func TestProbeEndpointAgainstPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping container-based test in -short mode")
	}

	ctx := context.Background()
	require.NoError(t, logger.Init(false, false))

	instance := startPostgresContainer(ctx, t)

	conn, err := db.New("postgres", instance.DSN, logger.GetGormLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.Optimize(5, time.Hour))
	require.NoError(t, conn.Ping(ctx))

	user, err := conn.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, instance.Username, user)

	cfg := &config.Config{
		ConnectionStringKey: "Secrets:ConnectionString",
		ProbeRedactSecrets:  false,
		ListenPort:          8080,
		MetricsPort:         9091,
	}
	store := config.NewStore(
		config.Layer{Name: "vault", Values: map[string]string{
			"Secrets:ConnectionString": instance.DSN,
		}},
	)
	srv := server.New(cfg, store, conn, metrics.NewStore(), zap.NewNop())

	rec := httptest.NewRecorder()
	srv.APIHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/User", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		ConnectionString string `json:"connectionString"`
		Result           string `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, instance.DSN, body.ConnectionString)
	assert.Equal(t, instance.Username, body.Result)
}
