package knowledge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPostgresStoreAgainstContainer(t *testing.T) {
	if testing.Short() {
		t.Skip("container test")
	}
	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "mtrr",
			"POSTGRES_PASSWORD": "mtrr",
			"POSTGRES_DB":       "knowledge",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = cont.Terminate(context.Background()) })
	host, err := cont.Host(ctx)
	require.NoError(t, err)
	port, err := cont.MappedPort(ctx, "5432")
	require.NoError(t, err)

	s, err := NewPostgresStore(PostgresConfig{
		Host: host, Port: port.Int(), User: "mtrr", Password: "mtrr", DBName: "knowledge",
	})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}
