package kernel

import "fmt"

// Context provides thread-local access to kernel operations. Each thread
// receives its own Context as the first argument of its start routine.
//
// Once the thread is destroyed the Context is stale: its operations fail
// with ErrFail and leave the scheduler alone.
type Context struct {
	k  *Kernel
	t  *tcb
	id ThreadID
}

// ID returns the thread's handle.
func (c *Context) ID() ThreadID { return c.id }

// Kernel returns the kernel the thread runs on.
func (c *Context) Kernel() *Kernel { return c.k }

// Stack returns the thread's private stack region. Its length is the size
// requested at Create.
func (c *Context) Stack() []byte {
	st := c.k.disable()
	defer c.k.irq.Restore(st)
	if c.t.id != c.id || c.t.state == StateUnused {
		return nil
	}
	return c.k.arena.bytes(c.t.stack)
}

// Now returns the kernel tick.
func (c *Context) Now() uint64 { return c.k.Now() }

// Yield lets every other ready thread run once before the caller continues.
func (c *Context) Yield() error {
	st, t, err := c.enter("yield")
	if err != nil {
		return err
	}
	c.k.yieldCurrent(t)
	c.k.irq.Restore(st)
	return nil
}

// Sleep suspends the thread for at least milli milliseconds. Zero yields once.
func (c *Context) Sleep(milli uint32) error {
	return c.SleepTicks(c.k.ticksFor(milli))
}

// SleepTicks suspends the thread until the kernel clock reaches now+ticks.
func (c *Context) SleepTicks(ticks uint64) error {
	st, t, err := c.enter("sleep")
	if err != nil {
		return err
	}
	c.k.sleepCurrent(t, ticks)
	c.k.irq.Restore(st)
	return nil
}

// Pause suspends the thread until another context resumes it.
func (c *Context) Pause() error { return c.k.Pause(c.id) }

// Exit destroys the calling thread. It only returns, with ErrBusy, while the
// thread owns mutexes.
func (c *Context) Exit() error { return c.k.Destroy(c.id) }

// enter opens a critical section on behalf of the thread. It fails for a
// stale Context; use from any context other than the thread itself is fatal.
func (c *Context) enter(op string) (uintptr, *tcb, error) {
	k := c.k
	st := k.disable()
	t := c.t
	if t.id != c.id || t.state == StateUnused {
		k.irq.Restore(st)
		return 0, nil, fmt.Errorf("%w: %s %s: %w", ErrFail, op, c.id, errStale)
	}
	if k.current != t {
		k.fatal(st, op, c.id, "called outside its own thread")
	}
	return st, t, nil
}
