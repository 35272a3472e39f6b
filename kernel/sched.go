package kernel

import (
	"fmt"
	"math"
)

// The functions in this file run inside the critical section. Those that
// suspend the running thread return once it runs again, still inside it.

func (k *Kernel) dispatch(t *tcb) {
	t.state = StateRunning
	k.current = t
}

// nextReady pops the ready head unless control is due back at the host.
func (k *Kernel) nextReady() *tcb {
	if k.budget <= 0 || k.preempt {
		return nil
	}
	t := k.ready.pop()
	if t != nil {
		k.budget--
	}
	return t
}

// reschedule switches from the running thread, which has already moved
// itself out of Running, to the next ready thread or to the host.
func (k *Kernel) reschedule(cur *tcb) {
	next := k.nextReady()
	if next == nil {
		k.current = nil
		k.switchTo(cur.exec, k.host)
		return
	}
	k.dispatch(next)
	k.switchTo(cur.exec, next.exec)
}

func (k *Kernel) yieldCurrent(cur *tcb) {
	cur.state = StateReady
	k.ready.push(cur)
	k.reschedule(cur)
}

func (k *Kernel) blockCurrentOn(cur *tcb, m *Mutex) {
	cur.state = StateBlockedOnMutex
	cur.blockedOn = m
	m.waiters.push(cur)
	k.reschedule(cur)
}

func (k *Kernel) sleepCurrent(cur *tcb, ticks uint64) {
	if ticks == 0 {
		k.yieldCurrent(cur)
		return
	}
	cur.wake = math.MaxUint64
	if ticks < math.MaxUint64-k.now {
		cur.wake = k.now + ticks
	}
	cur.state = StateSleeping
	k.sleep.insertByWake(cur)
	k.reschedule(cur)
}

// pause parks t until resume. Pausing the running thread switches away.
func (k *Kernel) pause(t *tcb) error {
	if t.held > 0 {
		return fmt.Errorf("%w: pause %s: holds %d mutexes", ErrBusy, t.id, t.held)
	}
	switch t.state {
	case StatePaused:
		return nil
	case StateReady:
		k.ready.remove(t)
	case StateSleeping:
		k.sleep.remove(t)
	case StateRunning:
		if t != k.current {
			return fmt.Errorf("%w: pause %s: not running here", ErrFail, t.id)
		}
	default:
		return fmt.Errorf("%w: pause %s: %s", ErrFail, t.id, t.state)
	}
	t.state = StatePaused
	if t == k.current {
		k.reschedule(t)
	}
	return nil
}

func (k *Kernel) resume(t *tcb) error {
	if t.state != StatePaused {
		return fmt.Errorf("%w: resume %s: %s", ErrFail, t.id, t.state)
	}
	t.state = StateReady
	k.ready.push(t)
	return nil
}

// unqueue removes t from whichever queue holds it.
func (k *Kernel) unqueue(t *tcb) {
	switch t.state {
	case StateReady:
		k.ready.remove(t)
	case StateSleeping:
		k.sleep.remove(t)
	case StateBlockedOnMutex:
		if t.blockedOn != nil {
			t.blockedOn.waiters.remove(t)
		}
	}
	t.blockedOn = nil
}

// teardown releases t's stack and slot. t must hold no mutexes.
func (k *Kernel) teardown(st uintptr, t *tcb) {
	k.unqueue(t)
	if err := k.arena.release(t.stack); err != nil {
		k.fatal(st, "destroy", t.id, err.Error())
	}
	if t == k.current {
		k.current = nil
	}
	_ = k.table.release(t)
}

func (k *Kernel) ticksFor(milli uint32) uint64 {
	d := uint64(milli) * 1_000_000
	p := uint64(k.cfg.TickPeriod)
	return (d + p - 1) / p
}
