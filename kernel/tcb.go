package kernel

import "fmt"

// ThreadID is an opaque thread handle: a TCB slot index plus the slot's
// generation at creation time. The zero value is unbound. A handle goes
// stale when its thread is destroyed, even if the slot is reused.
type ThreadID uint32

func makeThreadID(slot int, gen uint32) ThreadID {
	return ThreadID(gen<<8 | uint32(slot))
}

func (id ThreadID) slot() int    { return int(id & 0xff) }
func (id ThreadID) gen() uint32  { return uint32(id >> 8) }
func (id ThreadID) IsZero() bool { return id == 0 }

func (id ThreadID) String() string {
	if id == 0 {
		return "t-"
	}
	return fmt.Sprintf("t%d.%d", id.slot(), id.gen())
}

// State is the scheduling state of a thread.
type State uint8

const (
	StateUnused State = iota
	StateReady
	StateRunning
	StateBlockedOnMutex
	StateSleeping
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateUnused:
		return "unused"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateBlockedOnMutex:
		return "blocked"
	case StateSleeping:
		return "sleeping"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// StartRoutine is a thread's entry point.
type StartRoutine func(ctx *Context, arg any)

// tcb is a thread control block.
type tcb struct {
	id    ThreadID
	slot  int
	gen   uint32
	state State

	exec  *execContext
	stack stackRegion
	start StartRoutine
	arg   any
	ctx   *Context

	wake      uint64
	held      int
	blockedOn *Mutex

	// next links the tcb into the one queue it occupies.
	next *tcb
}

type tcbTable struct {
	slots  []tcb
	active int
}

func newTCBTable(n int) tcbTable {
	tt := tcbTable{slots: make([]tcb, n)}
	for i := range tt.slots {
		tt.slots[i].slot = i
	}
	return tt
}

// acquire claims an unused slot under a fresh generation. The slot starts
// out Ready but unqueued; the caller finishes initializing it.
func (tt *tcbTable) acquire() (*tcb, error) {
	for i := range tt.slots {
		t := &tt.slots[i]
		if t.state != StateUnused {
			continue
		}
		t.gen++
		if t.gen >= 1<<24 {
			t.gen = 1
		}
		t.id = makeThreadID(i, t.gen)
		t.state = StateReady
		tt.active++
		return t, nil
	}
	return nil, errNoSlot
}

// release resets a slot to Unused. A thread that owns mutexes is left as is.
func (tt *tcbTable) release(t *tcb) error {
	if t.held > 0 {
		return fmt.Errorf("%w: %s holds %d", errHoldsMutex, t.id, t.held)
	}
	if t.state == StateUnused {
		return nil
	}
	*t = tcb{slot: t.slot, gen: t.gen, id: t.id}
	tt.active--
	return nil
}

func (tt *tcbTable) lookup(id ThreadID) (*tcb, bool) {
	if id.IsZero() || id.slot() >= len(tt.slots) {
		return nil, false
	}
	t := &tt.slots[id.slot()]
	if t.state == StateUnused || t.id != id {
		return nil, false
	}
	return t, true
}
