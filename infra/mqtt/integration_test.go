package mqtt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/mtrr/core/codec"
	"github.com/kilianp07/mtrr/core/model"
	coremqtt "github.com/kilianp07/mtrr/core/mqtt"
	"github.com/kilianp07/mtrr/infra/logger"
)

func startMosquitto(ctx context.Context, t *testing.T) string {
	t.Helper()
	conf := "listener 1883\nallow_anonymous true\npersistence false\n"
	path := filepath.Join(t.TempDir(), "mosquitto.conf")
	if err := os.WriteFile(path, []byte(conf), 0o644); err != nil {
		t.Fatalf("write conf: %v", err)
	}
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{{
			HostFilePath:      path,
			ContainerFilePath: "/mosquitto/config/mosquitto.conf",
			FileMode:          0o644,
		}},
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("mosquitto container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = cont.Terminate(context.Background()) })
	host, err := cont.Host(ctx)
	require.NoError(t, err)
	port, err := cont.MappedPort(ctx, "1883")
	require.NoError(t, err)
	return fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

func TestPahoClientAgainstMosquitto(t *testing.T) {
	if testing.Short() {
		t.Skip("container test")
	}
	ctx := context.Background()
	broker := startMosquitto(ctx, t)

	vehicle := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("vehicle-2"))
	if tok := vehicle.Connect(); tok.Wait() && tok.Error() != nil {
		t.Skipf("broker not reachable: %v", tok.Error())
	}
	defer vehicle.Disconnect(100)

	frames := make(chan model.Frame, 1)
	tok := vehicle.Subscribe(coremqtt.TaskTopic(coremqtt.ChannelIP, 2), 1, func(_ paho.Client, m paho.Message) {
		f, err := codec.Unmarshal(m.Payload())
		if err == nil {
			frames <- f
		}
	})
	require.True(t, tok.WaitTimeout(5*time.Second))
	require.NoError(t, tok.Error())

	cli, err := NewPahoClient(Config{Broker: broker})
	require.NoError(t, err)
	defer cli.Disconnect()

	rep := &recReporter{}
	require.NoError(t, NewRouter(ctx, rep, logger.NopLogger{}).Bind(cli))

	sent := model.Frame{Type: codec.TypeTask, Subtype: codec.TaskWait, VehicleID: 2, SeqOp: 3}
	require.NoError(t, cli.Publish(ctx, coremqtt.TaskTopic(coremqtt.ChannelIP, 2), sent))
	select {
	case got := <-frames:
		assert.Equal(t, sent, got)
	case <-time.After(5 * time.Second):
		t.Fatalf("task frame not received")
	}

	vehicle.Publish(coremqtt.ReportTaskTopic(coremqtt.ChannelIP), 1, false,
		[]byte(`{"mission_id":1,"type":1,"subtype":11,"vid":2,"seq_op":3,"status":1}`)).Wait()
	require.Eventually(t, func() bool {
		rep.mu.Lock()
		defer rep.mu.Unlock()
		return len(rep.calls) == 1 && rep.calls[0] == "task"
	}, 5*time.Second, 20*time.Millisecond)
}
