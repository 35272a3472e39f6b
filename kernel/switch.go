package kernel

import "runtime"

// execContext is a saved execution context: a goroutine parked on a binary
// semaphore. Posting true resumes it where it suspended; posting false
// unwinds it. Only this file touches the semaphore.
type execContext struct {
	wake chan bool
	done chan struct{}

	ctx   *Context
	start StartRoutine
	arg   any

	started bool
	killed  bool
	exited  bool
}

func newExecContext(c *Context, start StartRoutine, arg any) *execContext {
	return &execContext{
		wake:  make(chan bool, 1),
		done:  make(chan struct{}),
		ctx:   c,
		start: start,
		arg:   arg,
	}
}

func newHostContext() *execContext {
	return &execContext{wake: make(chan bool, 1), done: make(chan struct{}), started: true}
}

func (ec *execContext) park() {
	if !<-ec.wake {
		runtime.Goexit()
	}
}

// kill unwinds a parked context and waits for it to finish. The caller must
// not hold the critical section.
func (ec *execContext) kill() {
	ec.wake <- false
	<-ec.done
}

// activate transfers the critical section to ec and lets it run. A context
// that never ran starts at the trampoline.
func (k *Kernel) activate(ec *execContext) {
	if !ec.started {
		ec.started = true
		go k.trampoline(ec)
		return
	}
	ec.wake <- true
}

// switchTo saves the running context into from and resumes to. It returns
// when from is resumed, with the critical section held on its behalf.
func (k *Kernel) switchTo(from, to *execContext) {
	if from == to {
		return
	}
	k.switches++
	k.activate(to)
	from.park()
}

// trampoline is the first resume point of every thread.
func (k *Kernel) trampoline(ec *execContext) {
	defer func() {
		k.exit(ec, recover())
	}()
	k.irq.Restore(0)
	ec.start(ec.ctx, ec.arg)
}

// exit runs when a thread's goroutine ends: normal return, self-destroy,
// kill or panic.
func (k *Kernel) exit(ec *execContext, r any) {
	st := k.disable()
	ec.exited = true
	close(ec.done)
	if ec.killed {
		k.irq.Restore(st)
		return
	}

	c := ec.ctx
	t := c.t
	live := t.id == c.id && t.state != StateUnused
	if r == nil && live && t.held > 0 {
		r = &FatalError{Op: "exit", Thread: c.id, Reason: "start routine returned holding mutexes"}
	}
	if r != nil {
		k.enterPanic(c.id, r)
		k.current = nil
		k.activate(k.host)
		return
	}
	if live {
		k.teardown(st, t)
		k.tryLogf("thread: exit %s", c.id)
	}
	k.handoff()
}

// handoff passes control on from a context that is going away.
func (k *Kernel) handoff() {
	next := k.nextReady()
	if next == nil {
		k.current = nil
		k.activate(k.host)
		return
	}
	k.dispatch(next)
	k.activate(next.exec)
}
