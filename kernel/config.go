package kernel

import (
	"sync"
	"time"
)

const (
	maxThreadsLimit = 255
	maxStackSize    = 1<<16 - 1

	defaultMaxThreads    = 8
	defaultStackSlabSize = 1024
	defaultStepBudget    = 16
	defaultTickPeriod    = time.Millisecond
)

// Logger writes newline-delimited log lines. hal.Logger satisfies it.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

// Interrupts suppresses preemption for the duration of a critical section.
//
// Restore may be called from a different goroutine than the matching
// Disable: a context switch hands the critical section to the resumed thread.
type Interrupts interface {
	Disable() uintptr
	Restore(state uintptr)
}

// Config sizes the kernel. All pools are allocated once, in New.
type Config struct {
	// MaxThreads is the TCB pool capacity (1..255).
	MaxThreads int
	// StackSlabSize is the size of one arena slab and so the largest stack
	// a thread may request.
	StackSlabSize int
	// StackSlabs is the number of slabs in the arena. Defaults to MaxThreads.
	StackSlabs int
	// TickPeriod is the host tick duration used to convert Sleep milliseconds.
	TickPeriod time.Duration
	// StepBudget caps the number of thread dispatches per Step before
	// control goes back to the host loop.
	StepBudget int
	// Preempt makes Tick request a return to the host at the running
	// thread's next suspension point.
	Preempt bool

	Interrupts Interrupts
	Log        Logger
	// OnPanic is invoked at most once, on the first thread panic. It must
	// not call into the kernel.
	OnPanic func(PanicInfo)
}

// DefaultConfig returns the configuration used for zero fields.
func DefaultConfig() Config {
	return Config{
		MaxThreads:    defaultMaxThreads,
		StackSlabSize: defaultStackSlabSize,
		StackSlabs:    defaultMaxThreads,
		TickPeriod:    defaultTickPeriod,
		StepBudget:    defaultStepBudget,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxThreads <= 0 {
		c.MaxThreads = defaultMaxThreads
	}
	if c.MaxThreads > maxThreadsLimit {
		c.MaxThreads = maxThreadsLimit
	}
	if c.StackSlabSize <= 0 {
		c.StackSlabSize = defaultStackSlabSize
	}
	if c.StackSlabSize > maxStackSize {
		c.StackSlabSize = maxStackSize
	}
	if c.StackSlabs <= 0 {
		c.StackSlabs = c.MaxThreads
	}
	if c.TickPeriod <= 0 {
		c.TickPeriod = defaultTickPeriod
	}
	if c.StepBudget <= 0 {
		c.StepBudget = defaultStepBudget
	}
	if c.Interrupts == nil {
		c.Interrupts = NewCriticalSection()
	}
	return c
}

// CriticalSection is the host stand-in for the interrupt mask: a mutex
// shared by every goroutine that can enter the kernel. It is the default
// Interrupts and what the host HALs hand out. It does not nest, and Restore
// may run on a different goroutine than the Disable it pairs with.
type CriticalSection struct {
	mu sync.Mutex
}

// NewCriticalSection returns an unlocked critical section.
func NewCriticalSection() *CriticalSection {
	return &CriticalSection{}
}

func (c *CriticalSection) Disable() uintptr {
	c.mu.Lock()
	return 0
}

func (c *CriticalSection) Restore(uintptr) {
	c.mu.Unlock()
}
