package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8, cfg.Kernel.MaxThreads)
	assert.Equal(t, time.Millisecond, cfg.Kernel.TickPeriod)
	assert.True(t, cfg.Host.Console)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
kernel:
  max_threads: 4
  stack_slab_size: 512
  tick_period: 10ms
  preempt: true
host:
  headless: true
  ticks: 100
demo:
  items: 32
`))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Kernel.MaxThreads)
	assert.Equal(t, 512, cfg.Kernel.StackSlabSize)
	assert.Equal(t, 10*time.Millisecond, cfg.Kernel.TickPeriod)
	assert.True(t, cfg.Kernel.Preempt)
	assert.Equal(t, 16, cfg.Kernel.StepBudget, "unset fields keep defaults")
	assert.True(t, cfg.Host.Headless)
	assert.Equal(t, uint64(100), cfg.Host.Ticks)
	assert.Equal(t, 60, cfg.Host.Hz)
	assert.Equal(t, 32, cfg.Demo.Items)

	kc := cfg.KernelConfig()
	assert.Equal(t, 4, kc.MaxThreads)
	assert.Equal(t, 10*time.Millisecond, kc.TickPeriod)
	assert.True(t, kc.Preempt)
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":    "kernel:\n  max_thread: 4\n",
		"too many":       "kernel:\n  max_threads: 300\n",
		"zero budget":    "kernel:\n  step_budget: 0\n",
		"bad duration":   "kernel:\n  tick_period: soon\n",
		"stack too big":  "kernel:\n  stack_slab_size: 128\ndemo:\n  main_stack: 256\n",
		"zero hz":        "host:\n  hz: 0\n",
		"negative slabs": "kernel:\n  stack_slabs: -1\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sparkthreads.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host:\n  hz: 120\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.Host.Hz)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
