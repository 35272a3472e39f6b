//go:build !tinygo && !cgo

package hal

import "errors"

// RunWindow needs ebiten, which needs cgo; use -headless instead.
func RunWindow(_ func(h HAL) func() error) error {
	return errors.New("window mode requires cgo (build with CGO_ENABLED=1 or run with -headless)")
}
