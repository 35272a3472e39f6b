//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"sparkthreads/app"
	"sparkthreads/hal"
	"sparkthreads/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "YAML config file.")
	headless := flag.Bool("headless", false, "Run without a window.")
	hz := flag.Int("hz", 0, "Host loop rate in headless mode.")
	ticks := flag.Uint64("ticks", 0, "Stop after N host iterations in headless mode (0 = run forever).")
	threads := flag.Int("threads", 0, "Thread table capacity.")
	preempt := flag.Bool("preempt", false, "Return to the host loop on every tick.")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "headless":
			cfg.Host.Headless = *headless
		case "hz":
			cfg.Host.Hz = *hz
		case "ticks":
			cfg.Host.Ticks = *ticks
		case "threads":
			cfg.Kernel.MaxThreads = *threads
		case "preempt":
			cfg.Kernel.Preempt = *preempt
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	var sys *app.System
	newApp := func(h hal.HAL) func() error {
		s, err := app.New(h, app.Config{
			Kernel:    cfg.KernelConfig(),
			MainStack: cfg.Demo.MainStack,
			Demo: app.DemoConfig{
				WorkerStack: cfg.Demo.WorkerStack,
				Items:       cfg.Demo.Items,
			},
			Console:  cfg.Host.Console && !cfg.Host.Headless,
			Monitor:  cfg.Host.Monitor && !cfg.Host.Headless,
			KeepOpen: !cfg.Host.Headless,
		})
		if err != nil {
			return func() error { return err }
		}
		sys = s
		return s.Step
	}
	defer func() {
		if sys != nil {
			_ = sys.Close()
		}
	}()

	var err error
	if cfg.Host.Headless {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		err = hal.RunHeadless(ctx, newApp, hal.HeadlessConfig{
			Enabled: true,
			Hz:      cfg.Host.Hz,
			Ticks:   cfg.Host.Ticks,
			Virtual: cfg.Host.Virtual,
		})
	} else {
		err = hal.RunWindow(newApp)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, app.ErrQuit) {
		return nil
	}
	return err
}
