//go:build tinygo

package main

import (
	"sparkthreads/app"
	"sparkthreads/hal"
	"sparkthreads/kernel"
)

func main() {
	app.Run(hal.New(), app.Config{
		Kernel:    kernel.DefaultConfig(),
		MainStack: 256,
	})
}
