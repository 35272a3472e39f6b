package kernel

// Mutex is a binary lock owned by at most one thread. Waiters are handed
// ownership in the order they blocked. The zero value is unlocked.
//
// A Mutex must only be used with threads of a single Kernel.
type Mutex struct {
	owner   *tcb
	waiters threadQueue
}

// Lock acquires m for the calling thread, blocking while another thread
// owns it. Locking a mutex the caller already owns is fatal.
func (c *Context) Lock(m *Mutex) error {
	st, t, err := c.enter("lock")
	if err != nil {
		return err
	}
	k := c.k
	if m == nil {
		k.fatal(st, "lock", t.id, "nil mutex")
	}
	switch m.owner {
	case nil:
		m.owner = t
		t.held++
	case t:
		k.fatal(st, "lock", t.id, "mutex already owned by caller")
	default:
		// Unlock hands ownership over before making t Ready.
		k.blockCurrentOn(t, m)
	}
	k.irq.Restore(st)
	return nil
}

// TryLock acquires m if it is free and reports whether it did.
func (c *Context) TryLock(m *Mutex) bool {
	st, t, err := c.enter("trylock")
	if err != nil {
		return false
	}
	if m == nil {
		c.k.fatal(st, "trylock", t.id, "nil mutex")
	}
	ok := m.owner == nil
	if ok {
		m.owner = t
		t.held++
	}
	c.k.irq.Restore(st)
	return ok
}

// Unlock releases m. The longest-waiting thread, if any, becomes the owner
// and is queued Ready; the caller keeps running. Unlocking a mutex the
// caller does not own is fatal.
func (c *Context) Unlock(m *Mutex) error {
	st, t, err := c.enter("unlock")
	if err != nil {
		return err
	}
	k := c.k
	if m == nil {
		k.fatal(st, "unlock", t.id, "nil mutex")
	}
	if m.owner != t {
		k.fatal(st, "unlock", t.id, "mutex not owned by caller")
	}
	t.held--
	if w := m.waiters.pop(); w != nil {
		w.blockedOn = nil
		w.held++
		w.state = StateReady
		m.owner = w
		k.ready.push(w)
	} else {
		m.owner = nil
	}
	k.irq.Restore(st)
	return nil
}

// Owner returns the thread owning m, if any.
func (k *Kernel) Owner(m *Mutex) (ThreadID, bool) {
	st := k.disable()
	defer k.irq.Restore(st)
	if m.owner == nil {
		return 0, false
	}
	return m.owner.id, true
}

// Waiters returns the threads blocked on m, longest waiting first.
func (k *Kernel) Waiters(m *Mutex) []ThreadID {
	st := k.disable()
	defer k.irq.Restore(st)
	var ids []ThreadID
	for t := m.waiters.head; t != nil; t = t.next {
		ids = append(ids, t.id)
	}
	return ids
}
