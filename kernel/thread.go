package kernel

import (
	"fmt"
	"runtime"
)

// Create starts a new thread running start(ctx, arg) on a stack of
// stackSize bytes and stores its handle in *id. The thread is queued Ready
// and first runs on a later dispatch.
//
// Returns ErrAlready if *id names an active thread (which is left alone) and
// ErrFail when the TCB table or the stack arena cannot satisfy the request.
func (k *Kernel) Create(id *ThreadID, start StartRoutine, arg any, stackSize uint16) error {
	if id == nil || start == nil {
		return fmt.Errorf("%w: create: nil thread id or start routine", ErrFail)
	}

	st := k.disable()
	if err := k.usable(); err != nil {
		k.irq.Restore(st)
		return fmt.Errorf("%w: create: %w", ErrFail, err)
	}
	if _, ok := k.table.lookup(*id); ok {
		k.logf("thread: create %s: already active", *id)
		k.irq.Restore(st)
		return fmt.Errorf("%w: create %s", ErrAlready, *id)
	}
	t, err := k.table.acquire()
	if err != nil {
		k.logf("thread: create: %v", err)
		k.irq.Restore(st)
		return fmt.Errorf("%w: create: %w", ErrFail, err)
	}
	region, err := k.arena.allocate(int(stackSize))
	if err != nil {
		_ = k.table.release(t)
		k.logf("thread: create: %v", err)
		k.irq.Restore(st)
		return fmt.Errorf("%w: create: %w", ErrFail, err)
	}

	t.stack = region
	c := &Context{k: k, t: t, id: t.id}
	t.exec = newExecContext(c, start, arg)
	k.ready.push(t)
	*id = t.id
	k.logf("thread: create %s stack=%d", t.id, stackSize)
	k.irq.Restore(st)
	return nil
}

// Boot creates the application's first thread.
func (k *Kernel) Boot(main StartRoutine, arg any, stackSize uint16) (ThreadID, error) {
	var id ThreadID
	if err := k.Create(&id, main, arg, stackSize); err != nil {
		return 0, err
	}
	st := k.disable()
	k.logf("kernel: boot %s", id)
	k.irq.Restore(st)
	return id, nil
}

// Destroy tears a thread down: it leaves its queue, its stack returns to the
// arena and its handle goes stale. A thread that owns mutexes is refused
// with ErrBusy and left untouched.
//
// Destroying the calling thread does not return.
func (k *Kernel) Destroy(id ThreadID) error {
	st := k.disable()
	t, ok := k.table.lookup(id)
	if !ok {
		k.irq.Restore(st)
		return fmt.Errorf("%w: destroy %s: no such thread", ErrFail, id)
	}
	if t.held > 0 {
		k.logf("thread: destroy %s: holds %d mutexes", id, t.held)
		k.irq.Restore(st)
		return fmt.Errorf("%w: destroy %s: %w", ErrBusy, id, errHoldsMutex)
	}

	self := t == k.current
	ec := t.exec
	k.teardown(st, t)
	k.logf("thread: destroy %s", id)
	if self {
		k.irq.Restore(st)
		runtime.Goexit()
	}
	doomed := ec != nil && ec.started && !ec.exited
	if doomed {
		ec.killed = true
	}
	k.irq.Restore(st)
	if doomed {
		ec.kill()
	}
	return nil
}

// Pause suspends a thread until Resume. Pausing the calling thread returns
// once it has been resumed and dispatched again.
//
// Returns ErrBusy if the thread owns mutexes and ErrFail if it is unknown or
// blocked on a mutex.
func (k *Kernel) Pause(id ThreadID) error {
	st := k.disable()
	t, ok := k.table.lookup(id)
	if !ok {
		k.irq.Restore(st)
		return fmt.Errorf("%w: pause %s: no such thread", ErrFail, id)
	}
	err := k.pause(t)
	if err != nil {
		k.logf("thread: %v", err)
	}
	k.irq.Restore(st)
	return err
}

// Resume makes a paused thread Ready again.
func (k *Kernel) Resume(id ThreadID) error {
	st := k.disable()
	t, ok := k.table.lookup(id)
	if !ok {
		k.irq.Restore(st)
		return fmt.Errorf("%w: resume %s: no such thread", ErrFail, id)
	}
	err := k.resume(t)
	k.irq.Restore(st)
	return err
}

// Sleep suspends the running thread for at least milli milliseconds,
// rounded up to whole ticks. Zero yields once.
func (k *Kernel) Sleep(milli uint32) error {
	st := k.disable()
	cur := k.current
	if cur == nil {
		k.irq.Restore(st)
		return fmt.Errorf("%w: sleep: %w", ErrFail, errNotThread)
	}
	k.sleepCurrent(cur, k.ticksFor(milli))
	k.irq.Restore(st)
	return nil
}

// Yield moves the running thread to the back of the ready queue. It is a
// no-op on the host.
func (k *Kernel) Yield() {
	st := k.disable()
	if cur := k.current; cur != nil {
		k.yieldCurrent(cur)
	}
	k.irq.Restore(st)
}

// Current returns the running thread, if any.
func (k *Kernel) Current() (ThreadID, bool) {
	st := k.disable()
	defer k.irq.Restore(st)
	if k.current == nil {
		return 0, false
	}
	return k.current.id, true
}

// Active reports whether id names a live thread.
func (k *Kernel) Active(id ThreadID) bool {
	st := k.disable()
	defer k.irq.Restore(st)
	_, ok := k.table.lookup(id)
	return ok
}
