package kernel

import "fmt"

// Kernel is one scheduler instance: TCB table, stack arena, ready and sleep
// queues. Every operation runs inside the Interrupts critical section.
//
// The host event loop drives it by calling Tick and Step. Between Step calls
// no thread runs.
type Kernel struct {
	cfg Config
	irq Interrupts
	log Logger

	arena *stackArena
	table tcbTable
	ready threadQueue
	sleep threadQueue

	host    *execContext
	current *tcb

	now      uint64
	budget   int
	preempt  bool
	switches uint64

	panicErr *PanicInfo
	closed   bool

	// st is the state returned by the latest Disable.
	st uintptr
}

// New creates a kernel instance. Zero config fields take DefaultConfig values.
func New(cfg Config) *Kernel {
	cfg = cfg.withDefaults()
	return &Kernel{
		cfg:   cfg,
		irq:   cfg.Interrupts,
		log:   cfg.Log,
		arena: newStackArena(cfg.StackSlabSize, cfg.StackSlabs),
		table: newTCBTable(cfg.MaxThreads),
		host:  newHostContext(),
	}
}

// Config returns the effective configuration.
func (k *Kernel) Config() Config { return k.cfg }

// Step runs threads until control comes back to the host: the ready queue
// drains, the dispatch budget is spent or a preemption tick arrives.
func (k *Kernel) Step() error {
	st := k.disable()
	if err := k.hostErr(); err != nil {
		k.irq.Restore(st)
		return err
	}
	if k.current != nil {
		k.fatal(st, "step", k.current.id, "called from a thread")
	}
	k.budget = k.cfg.StepBudget
	k.preempt = false
	next := k.nextReady()
	if next == nil {
		k.irq.Restore(st)
		return nil
	}
	k.dispatch(next)
	k.switchTo(k.host, next.exec)
	err := k.hostErr()
	k.irq.Restore(st)
	return err
}

// Tick advances the kernel clock to now and wakes every sleeper that is due,
// soonest first. Values that would move the clock backwards are ignored.
func (k *Kernel) Tick(now uint64) {
	st := k.disable()
	if now > k.now {
		k.now = now
	}
	for t := k.sleep.head; t != nil && t.wake <= k.now; t = k.sleep.head {
		k.sleep.pop()
		t.state = StateReady
		k.ready.push(t)
	}
	if k.cfg.Preempt && k.current != nil {
		k.preempt = true
	}
	k.irq.Restore(st)
}

// Now returns the last tick passed to Tick.
func (k *Kernel) Now() uint64 {
	st := k.disable()
	now := k.now
	k.irq.Restore(st)
	return now
}

// InPanicMode reports whether a thread has panicked.
func (k *Kernel) InPanicMode() bool {
	st := k.disable()
	p := k.panicErr != nil
	k.irq.Restore(st)
	return p
}

// Close tears down every thread, whatever it holds, and stops the kernel.
// It must be called from the host.
func (k *Kernel) Close() error {
	st := k.disable()
	if k.closed {
		k.irq.Restore(st)
		return nil
	}
	if k.current != nil {
		k.fatal(st, "close", k.current.id, "called from a thread")
	}
	k.closed = true

	var doomed []*execContext
	for i := range k.table.slots {
		t := &k.table.slots[i]
		if t.state == StateUnused {
			continue
		}
		if ec := t.exec; ec != nil && ec.started && !ec.exited {
			ec.killed = true
			doomed = append(doomed, ec)
		}
		if t.stack.valid() {
			_ = k.arena.release(t.stack)
		}
		t.held = 0
		_ = k.table.release(t)
	}
	k.ready = threadQueue{}
	k.sleep = threadQueue{}
	k.logf("kernel: closed, %d threads stopped", len(doomed))
	k.irq.Restore(st)

	for _, ec := range doomed {
		ec.kill()
	}
	return nil
}

func (k *Kernel) hostErr() error {
	if k.closed {
		return ErrClosed
	}
	if k.panicErr != nil {
		return k.panicErr
	}
	return nil
}

// usable reports why lifecycle operations are refused, if they are.
func (k *Kernel) usable() error {
	if k.closed {
		return ErrClosed
	}
	if k.panicErr != nil {
		return ErrPanicked
	}
	return nil
}

func (k *Kernel) enterPanic(id ThreadID, r any) {
	if k.panicErr != nil {
		return
	}
	info := &PanicInfo{Thread: id, Value: r, Stack: captureStack()}
	k.panicErr = info
	k.tryLogf("kernel: panic in %s: %v", id, r)
	if k.cfg.OnPanic != nil {
		swallow(func() { k.cfg.OnPanic(*info) })
	}
}

// fatal reports caller misuse. It leaves the critical section and panics.
func (k *Kernel) fatal(st uintptr, op string, id ThreadID, reason string) {
	err := &FatalError{Op: op, Thread: id, Reason: reason}
	k.tryLogf("kernel: %v", err)
	k.irq.Restore(st)
	panic(err)
}

// disable enters the critical section and records the prior state, so a
// panic raised inside the section can still leave it.
func (k *Kernel) disable() uintptr {
	st := k.irq.Disable()
	k.st = st
	return st
}

// logf writes one log line from inside the critical section. If the logger
// panics the section is released before the panic moves on.
func (k *Kernel) logf(format string, args ...any) {
	if k.log == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			k.irq.Restore(k.st)
			panic(r)
		}
	}()
	k.log.WriteLineString(fmt.Sprintf(format, args...))
}

// tryLogf is logf for paths that must not unwind: thread exit, panic mode
// and fatal errors. Logger panics are dropped.
func (k *Kernel) tryLogf(format string, args ...any) {
	if k.log == nil {
		return
	}
	swallow(func() { k.log.WriteLineString(fmt.Sprintf(format, args...)) })
}

func swallow(fn func()) {
	defer func() { _ = recover() }()
	fn()
}
