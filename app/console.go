package app

import (
	"sync"

	"sparkthreads/hal"

	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"
)

// console mirrors log lines onto a tinyterm terminal at the bottom of the
// screen. Lines are queued by WriteLine* from any context and rendered by
// flush from the host loop.
type console struct {
	out    hal.Logger
	region fbRegion
	buf    *scrollBuffer
	term   *tinyterm.Terminal

	mu      sync.Mutex
	pending []string
}

func newConsole(out hal.Logger, region fbRegion) *console {
	w, h := region.Size()
	buf := newScrollBuffer(int(w), int(h))
	term := tinyterm.NewTerminal(buf)
	term.Configure(&tinyterm.Config{
		Font:       &proggy.TinySZ8pt7b,
		FontHeight: 10,
		FontOffset: 6,
	})
	return &console{out: out, region: region, buf: buf, term: term}
}

func (c *console) WriteLineString(s string) {
	if c.out != nil {
		c.out.WriteLineString(s)
	}
	c.mu.Lock()
	c.pending = append(c.pending, s)
	c.mu.Unlock()
}

func (c *console) WriteLineBytes(b []byte) { c.WriteLineString(string(b)) }

// flush renders queued lines and reports whether anything changed.
func (c *console) flush() bool {
	c.mu.Lock()
	lines := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(lines) == 0 {
		return false
	}
	for _, s := range lines {
		_, _ = c.term.Write([]byte("\r\n" + s))
	}
	c.buf.flush(c.region)
	return true
}
