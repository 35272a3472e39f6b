package kernel

// ThreadInfo is a snapshot of one active thread.
type ThreadInfo struct {
	ID        ThreadID
	State     State
	StackSize int
	Held      int
	// Wake is the wake-up tick of a sleeping thread.
	Wake uint64
}

// Stats is a snapshot of kernel resource usage.
type Stats struct {
	Threads    int
	Capacity   int
	Ready      int
	Sleeping   int
	SlabsUsed  int
	Slabs      int
	StackBytes int
	Switches   uint64
	Now        uint64
}

// Threads returns every active thread in slot order.
func (k *Kernel) Threads() []ThreadInfo {
	st := k.disable()
	defer k.irq.Restore(st)

	out := make([]ThreadInfo, 0, k.table.active)
	for i := range k.table.slots {
		t := &k.table.slots[i]
		if t.state == StateUnused {
			continue
		}
		info := ThreadInfo{ID: t.id, State: t.state, StackSize: t.stack.size, Held: t.held}
		if t.state == StateSleeping {
			info.Wake = t.wake
		}
		out = append(out, info)
	}
	return out
}

// Stats returns current resource usage.
func (k *Kernel) Stats() Stats {
	st := k.disable()
	defer k.irq.Restore(st)
	return Stats{
		Threads:    k.table.active,
		Capacity:   len(k.table.slots),
		Ready:      k.ready.n,
		Sleeping:   k.sleep.n,
		SlabsUsed:  k.arena.inUse,
		Slabs:      k.arena.slabs,
		StackBytes: k.arena.requested,
		Switches:   k.switches,
		Now:        k.now,
	}
}
