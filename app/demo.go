package app

import (
	"fmt"

	"sparkthreads/hal"
	"sparkthreads/kernel"
)

// DemoConfig sizes the built-in demo.
type DemoConfig struct {
	WorkerStack uint16
	// Items stops the producer after that many items; 0 runs forever.
	Items int
	// OnConsume, if set, sees every item in the order it was consumed.
	OnConsume func(v int)
}

const ringSize = 8

// ring is a bounded FIFO shared by the producer and the consumer.
type ring struct {
	mu   kernel.Mutex
	buf  [ringSize]int
	head int
	n    int
}

func (r *ring) push(v int) bool {
	if r.n == len(r.buf) {
		return false
	}
	r.buf[(r.head+r.n)%len(r.buf)] = v
	r.n++
	return true
}

func (r *ring) pop() (int, bool) {
	if r.n == 0 {
		return 0, false
	}
	v := r.buf[r.head]
	r.head = (r.head + 1) % len(r.buf)
	r.n--
	return v, true
}

// demo is the default boot routine: a producer and a consumer sharing a
// mutex-protected ring, a busy worker that a pauser thread suspends and
// resumes, and an LED heartbeat.
type demo struct {
	cfg DemoConfig
	log kernel.Logger
	led hal.LED

	ring   ring
	worker kernel.ThreadID
	work   uint64
}

func newDemo(cfg DemoConfig, log kernel.Logger, led hal.LED) *demo {
	if cfg.WorkerStack == 0 {
		cfg.WorkerStack = 256
	}
	return &demo{cfg: cfg, log: log, led: led}
}

func (d *demo) logf(format string, args ...any) {
	if d.log != nil {
		d.log.WriteLineString(fmt.Sprintf(format, args...))
	}
}

func (d *demo) main(ctx *kernel.Context, _ any) {
	k := ctx.Kernel()
	spawn := func(name string, start kernel.StartRoutine) kernel.ThreadID {
		var id kernel.ThreadID
		if err := k.Create(&id, start, nil, d.cfg.WorkerStack); err != nil {
			d.logf("demo: start %s: %v", name, err)
			return 0
		}
		d.logf("demo: %s is %s", name, id)
		return id
	}

	spawn("producer", d.producer)
	spawn("consumer", d.consumer)
	d.worker = spawn("worker", d.busy)
	if !d.worker.IsZero() {
		spawn("pauser", d.pauser)
	}
	if d.led != nil {
		spawn("heartbeat", d.heartbeat)
	}
}

func (d *demo) producer(ctx *kernel.Context, _ any) {
	for v := 1; d.cfg.Items == 0 || v <= d.cfg.Items; v++ {
		for {
			if err := ctx.Lock(&d.ring.mu); err != nil {
				return
			}
			ok := d.ring.push(v)
			_ = ctx.Unlock(&d.ring.mu)
			if ok {
				break
			}
			_ = ctx.Sleep(5)
		}
		_ = ctx.Sleep(20)
	}
	d.logf("producer: done after %d items", d.cfg.Items)
}

func (d *demo) consumer(ctx *kernel.Context, _ any) {
	consumed := 0
	for {
		if err := ctx.Lock(&d.ring.mu); err != nil {
			return
		}
		v, ok := d.ring.pop()
		_ = ctx.Unlock(&d.ring.mu)
		if !ok {
			_ = ctx.Sleep(30)
			continue
		}
		consumed++
		if d.cfg.OnConsume != nil {
			d.cfg.OnConsume(v)
		}
		if v%10 == 0 {
			d.logf("consumer: got %d", v)
		}
		if d.cfg.Items > 0 && consumed == d.cfg.Items {
			d.logf("consumer: done")
			return
		}
	}
}

func (d *demo) busy(ctx *kernel.Context, _ any) {
	for {
		d.work++
		if d.work%64 == 0 {
			_ = ctx.Sleep(10)
			continue
		}
		_ = ctx.Yield()
	}
}

func (d *demo) pauser(ctx *kernel.Context, _ any) {
	k := ctx.Kernel()
	for {
		_ = ctx.Sleep(2000)
		if err := k.Pause(d.worker); err != nil {
			d.logf("pauser: pause %s: %v", d.worker, err)
			return
		}
		d.logf("pauser: paused %s at %d", d.worker, d.work)
		_ = ctx.Sleep(1000)
		if err := k.Resume(d.worker); err != nil {
			d.logf("pauser: resume %s: %v", d.worker, err)
			return
		}
		d.logf("pauser: resumed %s", d.worker)
	}
}

func (d *demo) heartbeat(ctx *kernel.Context, _ any) {
	for {
		d.led.High()
		_ = ctx.Sleep(100)
		d.led.Low()
		_ = ctx.Sleep(900)
	}
}
