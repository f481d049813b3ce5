package factory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type store struct {
	path string
}

type storeConf struct {
	Path    string        `json:"path"`
	Retries int           `json:"retries"`
	Timeout time.Duration `json:"timeout"`
}

func TestRegistryCreate(t *testing.T) {
	reg := NewRegistry[*store]()
	err := reg.Register("file", func(conf map[string]any) (*store, error) {
		var c storeConf
		if err := Decode(conf, &c); err != nil {
			return nil, err
		}
		return &store{path: c.Path}, nil
	})
	require.NoError(t, err)

	inst, err := reg.Create(ModuleConfig{Type: "file", Conf: map[string]any{"path": "mtrr.db"}})
	require.NoError(t, err)
	if inst.path != "mtrr.db" {
		t.Fatalf("expected mtrr.db got %s", inst.path)
	}
	assert.Equal(t, []string{"file"}, reg.Names())
}

func TestRegistryErrors(t *testing.T) {
	reg := NewRegistry[int]()
	require.NoError(t, reg.Register("x", func(map[string]any) (int, error) { return 1, nil }))
	assert.Error(t, reg.Register("x", func(map[string]any) (int, error) { return 2, nil }))
	assert.Error(t, reg.Register("y", nil))

	_, err := reg.Create(ModuleConfig{Type: "z"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "known: [x]")
}

func TestDecodeWeakTypes(t *testing.T) {
	var c storeConf
	err := Decode(map[string]any{"path": "p", "retries": "3", "timeout": "1500ms"}, &c)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Retries)
	assert.Equal(t, 1500*time.Millisecond, c.Timeout)
}
