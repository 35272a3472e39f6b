package app

import (
	"fmt"
	"image/color"
	"strings"
	"unicode/utf8"

	"sparkthreads/hal"
	"sparkthreads/kernel"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

const panicLine = 10

// panicHandler returns the kernel's OnPanic hook: it logs the panic with its
// stack and paints a panic screen. It runs inside the kernel's critical
// section and must not call back into the kernel.
func panicHandler(h hal.HAL, log hal.Logger) func(kernel.PanicInfo) {
	return func(info kernel.PanicInfo) {
		lines := panicLines(info)
		if log != nil {
			for _, line := range lines {
				log.WriteLineString(line)
			}
		}
		if disp := h.Display(); disp != nil {
			if fb := disp.Framebuffer(); fb != nil {
				drawPanic(fb, lines)
			}
		}
	}
}

func panicLines(info kernel.PanicInfo) []string {
	lines := []string{
		"sparkthreads panic:",
		fmt.Sprintf("thread: %s", info.Thread),
		fmt.Sprintf("panic: %v", info.Value),
	}
	if len(info.Stack) == 0 {
		return append(lines, "stack: unavailable")
	}
	lines = append(lines, "stack:")
	for _, line := range strings.Split(string(info.Stack), "\n") {
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func drawPanic(fb hal.Framebuffer, lines []string) {
	fb.ClearRGB(0xA0, 0, 0)
	d := newRegion(fb, 0, 0, fb.Width(), fb.Height())
	font := &proggy.TinySZ8pt7b
	fg := color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

	_, cw := tinyfont.LineWidth(font, "0")
	cols := 1
	if cw > 0 && fb.Width() >= int(cw) {
		cols = fb.Width() / int(cw)
	}

	y := int16(panicLine)
	_, maxY := d.Size()
	for _, line := range lines {
		for len(line) > 0 && y <= maxY {
			chunk, rest := takeRunes(line, cols)
			tinyfont.WriteLine(d, font, 0, y, chunk, fg)
			y += panicLine
			line = strings.TrimLeft(rest, " \t")
		}
	}
	_ = fb.Present()
}

func takeRunes(s string, n int) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	i, count := 0, 0
	for i < len(s) && count < n {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		count++
	}
	return s[:i], s[i:]
}
