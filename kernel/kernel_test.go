package kernel

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"
)

type lineLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *lineLog) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, s)
}

func (l *lineLog) WriteLineBytes(b []byte) { l.WriteLineString(string(b)) }

func (l *lineLog) contains(sub string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.lines {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func newTestKernel(t *testing.T, cfg Config) *Kernel {
	t.Helper()
	k := New(cfg)
	t.Cleanup(func() { _ = k.Close() })
	return k
}

func mustCreate(t *testing.T, k *Kernel, start StartRoutine) ThreadID {
	t.Helper()
	var id ThreadID
	if err := k.Create(&id, start, nil, 64); err != nil {
		t.Fatalf("Create() err = %v, want nil", err)
	}
	return id
}

func mustStep(t *testing.T, k *Kernel) {
	t.Helper()
	if err := k.Step(); err != nil {
		t.Fatalf("Step() err = %v, want nil", err)
	}
}

func stateOf(t *testing.T, k *Kernel, id ThreadID) State {
	t.Helper()
	for _, info := range k.Threads() {
		if info.ID == id {
			return info.State
		}
	}
	return StateUnused
}

// stepWithin runs Step and fails the test if control does not come back
// to the host in time.
func stepWithin(t *testing.T, k *Kernel, d time.Duration) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- k.Step() }()
	select {
	case err := <-done:
		return err
	case <-time.After(d):
		t.Fatalf("Step() did not return within %v", d)
		return nil
	}
}

// parkForever sleeps until the kernel is closed.
func parkForever(ctx *Context, _ any) {
	for {
		_ = ctx.SleepTicks(1 << 40)
	}
}

func TestCreateBeyondCapacity(t *testing.T) {
	k := newTestKernel(t, Config{MaxThreads: 2, StackSlabSize: 64})

	var a, b, c ThreadID
	if err := k.Create(&a, parkForever, nil, 64); err != nil {
		t.Fatalf("Create(A) err = %v", err)
	}
	if err := k.Create(&b, parkForever, nil, 64); err != nil {
		t.Fatalf("Create(B) err = %v", err)
	}
	err := k.Create(&c, parkForever, nil, 64)
	if !errors.Is(err, ErrFail) {
		t.Fatalf("Create(C) err = %v, want FAIL", err)
	}
	if !c.IsZero() {
		t.Fatalf("Create(C) wrote id %s on failure", c)
	}
	if got := k.Stats().Threads; got != 2 {
		t.Fatalf("active threads = %d, want 2", got)
	}
	if stateOf(t, k, a) != StateReady || stateOf(t, k, b) != StateReady {
		t.Fatalf("existing threads disturbed by failed create")
	}

	if err := k.Destroy(a); err != nil {
		t.Fatalf("Destroy(A) err = %v", err)
	}
	if err := k.Create(&c, parkForever, nil, 64); err != nil {
		t.Fatalf("Create(C) after destroy err = %v", err)
	}
	if k.Active(a) {
		t.Fatalf("handle of destroyed A still active")
	}
}

func TestCreateArenaExhausted(t *testing.T) {
	k := newTestKernel(t, Config{MaxThreads: 4, StackSlabSize: 64, StackSlabs: 1})

	mustCreate(t, k, parkForever)
	var id ThreadID
	if err := k.Create(&id, parkForever, nil, 64); !errors.Is(err, ErrFail) {
		t.Fatalf("Create() err = %v, want FAIL", err)
	}
	if err := k.Create(&id, parkForever, nil, 65); !errors.Is(err, ErrFail) {
		t.Fatalf("Create(oversized) err = %v, want FAIL", err)
	}
	if got := k.Stats().Threads; got != 1 {
		t.Fatalf("active threads = %d, want 1 (slot must be returned)", got)
	}
}

func TestCreateAlreadyActive(t *testing.T) {
	k := newTestKernel(t, Config{})

	id := mustCreate(t, k, parkForever)
	mustStep(t, k)
	before := k.Threads()

	same := id
	err := k.Create(&same, parkForever, nil, 64)
	if !errors.Is(err, ErrAlready) {
		t.Fatalf("Create(active id) err = %v, want EALREADY", err)
	}
	if same != id {
		t.Fatalf("id rewritten to %s", same)
	}
	after := k.Threads()
	if len(after) != len(before) || after[0] != before[0] {
		t.Fatalf("threads = %+v, want %+v", after, before)
	}
}

func TestCreateNilArgs(t *testing.T) {
	k := newTestKernel(t, Config{})
	if err := k.Create(nil, parkForever, nil, 64); !errors.Is(err, ErrFail) {
		t.Fatalf("Create(nil id) err = %v, want FAIL", err)
	}
	var id ThreadID
	if err := k.Create(&id, nil, nil, 64); !errors.Is(err, ErrFail) {
		t.Fatalf("Create(nil start) err = %v, want FAIL", err)
	}
}

func TestThreadRunsWithArgAndStack(t *testing.T) {
	k := newTestKernel(t, Config{StackSlabSize: 256})

	var gotArg any
	var stackLen int
	var self ThreadID
	var id ThreadID
	err := k.Create(&id, func(ctx *Context, arg any) {
		gotArg = arg
		stackLen = len(ctx.Stack())
		self = ctx.ID()
	}, "hello", 200)
	if err != nil {
		t.Fatalf("Create() err = %v", err)
	}
	mustStep(t, k)

	if gotArg != "hello" || stackLen != 200 || self != id {
		t.Fatalf("thread saw arg=%v stack=%d id=%s, want hello 200 %s", gotArg, stackLen, self, id)
	}
	if k.Active(id) {
		t.Fatalf("returned thread still active")
	}
	if s := k.Stats(); s.Threads != 0 || s.SlabsUsed != 0 {
		t.Fatalf("stats after exit = %+v, want no threads and no slabs", s)
	}
}

func TestRoundRobinOrder(t *testing.T) {
	k := newTestKernel(t, Config{})

	var trace []string
	worker := func(name string) StartRoutine {
		return func(ctx *Context, _ any) {
			for i := 0; i < 3; i++ {
				trace = append(trace, fmt.Sprintf("%s%d", name, i))
				_ = ctx.Yield()
			}
		}
	}
	mustCreate(t, k, worker("a"))
	mustCreate(t, k, worker("b"))
	mustCreate(t, k, worker("c"))
	mustStep(t, k)

	want := "a0 b0 c0 a1 b1 c1 a2 b2 c2"
	if got := strings.Join(trace, " "); got != want {
		t.Fatalf("trace = %q, want %q", got, want)
	}
}

func TestStepBudgetReturnsToHost(t *testing.T) {
	k := newTestKernel(t, Config{StepBudget: 3})

	n := 0
	mustCreate(t, k, func(ctx *Context, _ any) {
		for {
			n++
			_ = ctx.Yield()
		}
	})
	mustStep(t, k)
	if n != 3 {
		t.Fatalf("iterations after first Step = %d, want 3", n)
	}
	mustStep(t, k)
	if n != 6 {
		t.Fatalf("iterations after second Step = %d, want 6", n)
	}
}

func TestPreemptTickReturnsToHost(t *testing.T) {
	k := newTestKernel(t, Config{StepBudget: 100, Preempt: true})

	n := 0
	mustCreate(t, k, func(ctx *Context, _ any) {
		for {
			n++
			ctx.Kernel().Tick(uint64(n))
			_ = ctx.Yield()
		}
	})
	mustStep(t, k)
	if n != 1 {
		t.Fatalf("iterations per Step with preemption = %d, want 1", n)
	}
	mustStep(t, k)
	if n != 2 {
		t.Fatalf("iterations after second Step = %d, want 2", n)
	}
}

func TestStepWithoutThreads(t *testing.T) {
	k := newTestKernel(t, Config{})
	mustStep(t, k)
	if _, ok := k.Current(); ok {
		t.Fatalf("Current() reports a thread on the host")
	}
}

func TestSleepOrdering(t *testing.T) {
	k := newTestKernel(t, Config{})

	var woke []string
	sleeper := func(name string, ticks uint64) StartRoutine {
		return func(ctx *Context, _ any) {
			_ = ctx.SleepTicks(ticks)
			woke = append(woke, fmt.Sprintf("%s@%d", name, ctx.Now()))
		}
	}
	a := mustCreate(t, k, sleeper("a", 10))
	b := mustCreate(t, k, sleeper("b", 5))
	mustStep(t, k)

	if stateOf(t, k, a) != StateSleeping || stateOf(t, k, b) != StateSleeping {
		t.Fatalf("threads not sleeping: %+v", k.Threads())
	}

	k.Tick(5)
	if stateOf(t, k, b) != StateReady {
		t.Fatalf("B state at tick 5 = %s, want ready", stateOf(t, k, b))
	}
	if stateOf(t, k, a) != StateSleeping {
		t.Fatalf("A state at tick 5 = %s, want sleeping", stateOf(t, k, a))
	}
	mustStep(t, k)

	k.Tick(11)
	mustStep(t, k)

	want := "b@5 a@11"
	if got := strings.Join(woke, " "); got != want {
		t.Fatalf("wake order = %q, want %q", got, want)
	}
}

func TestSleepSameTickWakesInWakeOrder(t *testing.T) {
	k := newTestKernel(t, Config{})

	var woke []string
	sleeper := func(name string, ticks uint64) StartRoutine {
		return func(ctx *Context, _ any) {
			_ = ctx.SleepTicks(ticks)
			woke = append(woke, name)
		}
	}
	mustCreate(t, k, sleeper("a", 10))
	mustCreate(t, k, sleeper("b", 5))
	mustCreate(t, k, sleeper("c", 5))
	mustStep(t, k)

	k.Tick(20)
	mustStep(t, k)

	if got := strings.Join(woke, " "); got != "b c a" {
		t.Fatalf("wake order = %q, want %q", got, "b c a")
	}
}

func TestTickIsMonotonic(t *testing.T) {
	k := newTestKernel(t, Config{})
	k.Tick(10)
	k.Tick(4)
	if got := k.Now(); got != 10 {
		t.Fatalf("Now() = %d, want 10", got)
	}
}

func TestSleepPastEndOfClockSaturates(t *testing.T) {
	k := newTestKernel(t, Config{})
	k.Tick(5)

	id := mustCreate(t, k, func(ctx *Context, _ any) {
		_ = ctx.SleepTicks(math.MaxUint64)
	})
	mustStep(t, k)
	for _, info := range k.Threads() {
		if info.ID == id && info.Wake != math.MaxUint64 {
			t.Fatalf("wake tick = %d, want %d", info.Wake, uint64(math.MaxUint64))
		}
	}

	k.Tick(6)
	mustStep(t, k)
	if got := stateOf(t, k, id); got != StateSleeping {
		t.Fatalf("state after Tick(6) = %s, want %s", got, StateSleeping)
	}
	k.Tick(math.MaxUint64)
	if got := stateOf(t, k, id); got != StateReady {
		t.Fatalf("state at end of clock = %s, want %s", got, StateReady)
	}
}

func TestSleepMillisecondsRoundsUpToTicks(t *testing.T) {
	k := newTestKernel(t, Config{TickPeriod: 10 * time.Millisecond})

	var wake uint64
	id := mustCreate(t, k, func(ctx *Context, _ any) {
		_ = ctx.Sleep(15)
	})
	mustStep(t, k)
	for _, info := range k.Threads() {
		if info.ID == id {
			wake = info.Wake
		}
	}
	if wake != 2 {
		t.Fatalf("wake tick = %d, want 2", wake)
	}
}

func TestSleepZeroYieldsOnce(t *testing.T) {
	k := newTestKernel(t, Config{})

	var trace []string
	mustCreate(t, k, func(ctx *Context, _ any) {
		trace = append(trace, "a0")
		_ = ctx.Sleep(0)
		trace = append(trace, "a1")
	})
	mustCreate(t, k, func(ctx *Context, _ any) {
		trace = append(trace, "b0")
	})
	mustStep(t, k)

	if got := strings.Join(trace, " "); got != "a0 b0 a1" {
		t.Fatalf("trace = %q, want %q", got, "a0 b0 a1")
	}
}

func TestSleepFromHostFails(t *testing.T) {
	k := newTestKernel(t, Config{})
	if err := k.Sleep(10); !errors.Is(err, ErrFail) {
		t.Fatalf("Sleep() on host err = %v, want FAIL", err)
	}
	k.Yield()
}

func TestKernelLevelSleepAndYield(t *testing.T) {
	k := newTestKernel(t, Config{})

	var trace []string
	mustCreate(t, k, func(ctx *Context, _ any) {
		k := ctx.Kernel()
		trace = append(trace, "a0")
		k.Yield()
		trace = append(trace, "a1")
		if err := k.Sleep(3); err != nil {
			trace = append(trace, err.Error())
		}
		trace = append(trace, "a2")
	})
	mustCreate(t, k, func(ctx *Context, _ any) {
		trace = append(trace, "b0")
	})
	mustStep(t, k)
	k.Tick(3)
	mustStep(t, k)

	if got := strings.Join(trace, " "); got != "a0 b0 a1 a2" {
		t.Fatalf("trace = %q, want %q", got, "a0 b0 a1 a2")
	}
}

func TestLogLines(t *testing.T) {
	log := &lineLog{}
	k := newTestKernel(t, Config{MaxThreads: 1, Log: log})

	id := mustCreate(t, k, parkForever)
	var other ThreadID
	_ = k.Create(&other, parkForever, nil, 64)
	if !log.contains("thread: create " + id.String()) {
		t.Fatalf("missing create line in %v", log.lines)
	}
	if !log.contains("thread table full") {
		t.Fatalf("missing refusal line in %v", log.lines)
	}
}
