// Package config loads the runtime configuration of the host binary.
//
// A YAML file supplies the base values; command line flags applied by main
// override individual fields afterwards.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"sparkthreads/kernel"
)

// Kernel mirrors the sizing fields of kernel.Config.
type Kernel struct {
	MaxThreads    int           `yaml:"max_threads"`
	StackSlabSize int           `yaml:"stack_slab_size"`
	StackSlabs    int           `yaml:"stack_slabs"`
	TickPeriod    time.Duration `yaml:"tick_period"`
	StepBudget    int           `yaml:"step_budget"`
	Preempt       bool          `yaml:"preempt"`
}

// Host selects and tunes the host runner.
type Host struct {
	Headless bool   `yaml:"headless"`
	Hz       int    `yaml:"hz"`
	Ticks    uint64 `yaml:"ticks"`
	Virtual  bool   `yaml:"virtual"`
	Console  bool   `yaml:"console"`
	Monitor  bool   `yaml:"monitor"`
}

// Demo sizes the threads of the built-in demo.
type Demo struct {
	MainStack   uint16 `yaml:"main_stack"`
	WorkerStack uint16 `yaml:"worker_stack"`
	// Items stops the producer after that many items; 0 produces forever.
	Items int `yaml:"items"`
}

type Config struct {
	Kernel Kernel `yaml:"kernel"`
	Host   Host   `yaml:"host"`
	Demo   Demo   `yaml:"demo"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	d := kernel.DefaultConfig()
	return Config{
		Kernel: Kernel{
			MaxThreads:    d.MaxThreads,
			StackSlabSize: d.StackSlabSize,
			StackSlabs:    d.StackSlabs,
			TickPeriod:    d.TickPeriod,
			StepBudget:    d.StepBudget,
		},
		Host: Host{
			Hz:      60,
			Console: true,
			Monitor: true,
		},
		Demo: Demo{
			MainStack:   256,
			WorkerStack: 256,
		},
	}
}

// Load reads a YAML file on top of Default. Unknown keys are an error.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(b []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the kernel would otherwise clamp silently.
func (c Config) Validate() error {
	k := c.Kernel
	switch {
	case k.MaxThreads < 1 || k.MaxThreads > 255:
		return fmt.Errorf("kernel.max_threads %d out of range 1..255", k.MaxThreads)
	case k.StackSlabSize < 1 || k.StackSlabSize > 65535:
		return fmt.Errorf("kernel.stack_slab_size %d out of range 1..65535", k.StackSlabSize)
	case k.StackSlabs < 0:
		return fmt.Errorf("kernel.stack_slabs %d is negative", k.StackSlabs)
	case k.TickPeriod <= 0:
		return fmt.Errorf("kernel.tick_period %s must be positive", k.TickPeriod)
	case k.StepBudget < 1:
		return fmt.Errorf("kernel.step_budget %d must be at least 1", k.StepBudget)
	case c.Host.Hz < 1:
		return fmt.Errorf("host.hz %d must be at least 1", c.Host.Hz)
	case int(c.Demo.MainStack) > k.StackSlabSize || int(c.Demo.WorkerStack) > k.StackSlabSize:
		return fmt.Errorf("demo stacks (%d, %d) exceed kernel.stack_slab_size %d",
			c.Demo.MainStack, c.Demo.WorkerStack, k.StackSlabSize)
	case c.Demo.MainStack == 0 || c.Demo.WorkerStack == 0:
		return errors.New("demo stacks must be non-zero")
	}
	return nil
}

// KernelConfig converts the file values to a kernel.Config. Interrupts, Log
// and OnPanic are left for the caller.
func (c Config) KernelConfig() kernel.Config {
	return kernel.Config{
		MaxThreads:    c.Kernel.MaxThreads,
		StackSlabSize: c.Kernel.StackSlabSize,
		StackSlabs:    c.Kernel.StackSlabs,
		TickPeriod:    c.Kernel.TickPeriod,
		StepBudget:    c.Kernel.StepBudget,
		Preempt:       c.Kernel.Preempt,
	}
}
