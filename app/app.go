// Package app boots the threading kernel on a HAL and runs it from the
// host loop.
package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"sparkthreads/hal"
	"sparkthreads/internal/buildinfo"
	"sparkthreads/kernel"
)

// ErrQuit is returned by Step when the user asks to leave.
var ErrQuit = errors.New("app: quit")

// Config wires the kernel and the screen.
type Config struct {
	Kernel kernel.Config

	// Main is the first thread. Nil runs the built-in demo.
	Main      kernel.StartRoutine
	MainArg   any
	MainStack uint16
	Demo      DemoConfig

	// Console mirrors the kernel log onto the bottom of the screen.
	Console bool
	// Monitor draws the thread table at the top of the screen and enables
	// the keyboard controls.
	Monitor bool
	// KeepOpen makes Step report a kernel failure once and then return nil,
	// leaving the panic screen up.
	KeepOpen bool
}

const monitorHeight = 120

// System is a booted kernel plus the host-side plumbing around it.
type System struct {
	h     hal.HAL
	k     *kernel.Kernel
	log   hal.Logger
	con   *console
	mon   *monitor
	fb    hal.Framebuffer
	ticks <-chan uint64
	keys  <-chan hal.KeyEvent

	period   time.Duration
	keepOpen bool
	halted   error
	drawn    uint64

	// tickStop ends tickLoop; nil when ticks are drained by Step.
	tickStop chan struct{}
	tickWG   sync.WaitGroup
	closing  sync.Once
}

// New creates the kernel and boots the main thread. The first dispatch
// happens on the first Step.
func New(h hal.HAL, cfg Config) (*System, error) {
	s := &System{h: h, log: h.Logger(), keepOpen: cfg.KeepOpen}
	if disp := h.Display(); disp != nil {
		s.fb = disp.Framebuffer()
	}
	if t := h.Time(); t != nil {
		s.ticks = t.Ticks()
	}

	if s.fb != nil && cfg.Monitor {
		s.mon = &monitor{region: newRegion(s.fb, 0, 0, s.fb.Width(), monitorHeight)}
		if in := h.Input(); in != nil && in.Keyboard() != nil {
			s.keys = in.Keyboard().Events()
		}
	}
	if s.fb != nil && cfg.Console {
		top := 0
		if s.mon != nil {
			top = monitorHeight
		}
		s.con = newConsole(s.log, newRegion(s.fb, 0, top, s.fb.Width(), s.fb.Height()-top))
		s.log = s.con
	}
	if s.fb != nil && (s.mon != nil || s.con != nil) {
		s.fb.ClearRGB(0, 0, 0)
	}

	s.logf("%s", buildinfo.Banner())

	kc := cfg.Kernel
	if kc.Interrupts == nil {
		kc.Interrupts = h.Interrupts()
	}
	if kc.Log == nil {
		kc.Log = s.log
	}
	if kc.OnPanic == nil {
		kc.OnPanic = panicHandler(h, s.log)
	}
	s.k = kernel.New(kc)
	s.period = s.k.Config().TickPeriod

	main, arg := cfg.Main, cfg.MainArg
	if main == nil {
		main = newDemo(cfg.Demo, s.log, h.LED()).main
	}
	stack := cfg.MainStack
	if stack == 0 {
		stack = 256
	}
	if _, err := s.k.Boot(main, arg, stack); err != nil {
		_ = s.k.Close()
		return nil, fmt.Errorf("app: boot: %w", err)
	}

	if kc.Preempt && s.ticks != nil {
		s.tickStop = make(chan struct{})
		s.tickWG.Add(1)
		go s.tickLoop()
	}
	return s, nil
}

// Kernel returns the running kernel.
func (s *System) Kernel() *kernel.Kernel { return s.k }

// Step runs one host loop iteration: it feeds pending ticks and key events
// to the kernel, runs the ready threads and redraws the screen.
func (s *System) Step() error {
	if s.halted != nil {
		if s.keepOpen {
			return nil
		}
		return s.halted
	}

	if s.tickStop == nil {
		s.drainTicks()
	}
	if err := s.handleKeys(); err != nil {
		return err
	}
	if err := s.k.Step(); err != nil {
		s.halted = err
		s.logf("app: halted: %v", err)
		if s.keepOpen {
			return nil
		}
		return err
	}
	s.draw()
	return nil
}

// Close stops the tick feed and every thread.
func (s *System) Close() error {
	s.closing.Do(func() {
		if s.tickStop != nil {
			close(s.tickStop)
			s.tickWG.Wait()
		}
	})
	return s.k.Close()
}

// drainTicks converts the newest HAL tick (one per millisecond) to kernel
// ticks.
func (s *System) drainTicks() {
	var seq uint64
	for {
		select {
		case seq = <-s.ticks:
		default:
			if seq != 0 {
				s.k.Tick(s.kernelTick(seq))
			}
			return
		}
	}
}

// tickLoop feeds HAL ticks to the kernel as they arrive, so a tick that
// lands while a thread runs sends the kernel back to the host.
func (s *System) tickLoop() {
	defer s.tickWG.Done()
	for {
		select {
		case seq := <-s.ticks:
			s.k.Tick(s.kernelTick(seq))
		case <-s.tickStop:
			return
		}
	}
}

func (s *System) kernelTick(seq uint64) uint64 {
	return uint64(time.Duration(seq) * time.Millisecond / s.period)
}

func (s *System) handleKeys() error {
	for {
		var ev hal.KeyEvent
		select {
		case ev = <-s.keys:
		default:
			return nil
		}
		if !ev.Press || s.mon == nil {
			continue
		}
		switch ev.Code {
		case hal.KeyUp:
			s.mon.move(-1)
		case hal.KeyDown:
			s.mon.move(1)
		case hal.KeyEnter:
			s.togglePause()
		case hal.KeyDelete:
			if id, ok := s.mon.selected(); ok {
				s.report("destroy", id, s.k.Destroy(id))
			}
		case hal.KeyEscape:
			return ErrQuit
		}
	}
}

func (s *System) togglePause() {
	id, ok := s.mon.selected()
	if !ok {
		return
	}
	for _, ti := range s.k.Threads() {
		if ti.ID != id {
			continue
		}
		if ti.State == kernel.StatePaused {
			s.report("resume", id, s.k.Resume(id))
		} else {
			s.report("pause", id, s.k.Pause(id))
		}
		return
	}
}

func (s *System) report(op string, id kernel.ThreadID, err error) {
	if err != nil {
		s.logf("app: %s %s: %v", op, id, err)
		return
	}
	s.logf("app: %s %s", op, id)
}

func (s *System) draw() {
	dirty := false
	if s.mon != nil {
		if now := s.k.Now(); now != s.drawn || s.drawn == 0 {
			s.drawn = now
			s.mon.refresh(s.k)
			dirty = true
		}
	}
	if s.con != nil && s.con.flush() {
		dirty = true
	}
	if dirty {
		_ = s.fb.Present()
	}
}

func (s *System) logf(format string, args ...any) {
	if s.log != nil {
		s.log.WriteLineString(fmt.Sprintf(format, args...))
	}
}

// Run boots the system and drives it forever (TinyGo entrypoint).
func Run(h hal.HAL, cfg Config) {
	s, err := New(h, cfg)
	if err != nil {
		h.Logger().WriteLineString(err.Error())
		select {}
	}
	for {
		if err := s.Step(); err != nil {
			select {}
		}
		time.Sleep(time.Millisecond)
	}
}
