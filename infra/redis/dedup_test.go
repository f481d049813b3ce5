package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/mtrr/core/dedup"
)

func TestRedisKeyLayout(t *testing.T) {
	k := dedup.Key{Kind: dedup.KindTask, MissionID: 3, VehicleID: 2, Subtype: 5, SeqOp: 9, Status: 2, HasStatus: true}
	assert.Equal(t, "mtrr:dedup:3:task:3:2:5:9:2", redisKey(k))
}

func startRedis(ctx context.Context, t *testing.T) string {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = cont.Terminate(context.Background()) })
	host, err := cont.Host(ctx)
	require.NoError(t, err)
	port, err := cont.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestDeduplicatorAgainstRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("container test")
	}
	ctx := context.Background()
	addr := startRedis(ctx, t)
	client, err := NewClient(ctx, Config{Addr: addr})
	require.NoError(t, err)
	d := NewDeduplicator(client, time.Minute)
	defer func() { _ = d.Close() }()

	k := dedup.Key{Kind: dedup.KindTask, MissionID: 1, VehicleID: 2, Subtype: 4, SeqOp: 1, Status: 1, HasStatus: true}
	other := dedup.Key{Kind: dedup.KindEvent, MissionID: 2, VehicleID: 2, SeqOp: 1}

	fresh, err := d.Record(ctx, k)
	require.NoError(t, err)
	assert.True(t, fresh)
	fresh, err = d.Record(ctx, k)
	require.NoError(t, err)
	assert.False(t, fresh)
	_, err = d.Record(ctx, other)
	require.NoError(t, err)

	require.NoError(t, d.Reset(ctx, 1))
	seen, err := d.Seen(ctx, k)
	require.NoError(t, err)
	assert.False(t, seen)
	seen, err = d.Seen(ctx, other)
	require.NoError(t, err)
	assert.True(t, seen)
}
