package kernel

// threadQueue is an intrusive FIFO of TCBs linked through tcb.next.
type threadQueue struct {
	head *tcb
	tail *tcb
	n    int
}

func (q *threadQueue) empty() bool { return q.head == nil }

func (q *threadQueue) push(t *tcb) {
	t.next = nil
	if q.tail == nil {
		q.head = t
	} else {
		q.tail.next = t
	}
	q.tail = t
	q.n++
}

func (q *threadQueue) pop() *tcb {
	t := q.head
	if t == nil {
		return nil
	}
	q.head = t.next
	if q.head == nil {
		q.tail = nil
	}
	t.next = nil
	q.n--
	return t
}

// remove unlinks t and reports whether it was queued.
func (q *threadQueue) remove(t *tcb) bool {
	var prev *tcb
	for cur := q.head; cur != nil; prev, cur = cur, cur.next {
		if cur != t {
			continue
		}
		if prev == nil {
			q.head = cur.next
		} else {
			prev.next = cur.next
		}
		if q.tail == cur {
			q.tail = prev
		}
		cur.next = nil
		q.n--
		return true
	}
	return false
}

// insertByWake keeps the queue ordered by tcb.wake. A new entry goes after
// every entry with the same wake tick, so ties keep insertion order.
func (q *threadQueue) insertByWake(t *tcb) {
	var prev *tcb
	cur := q.head
	for cur != nil && cur.wake <= t.wake {
		prev, cur = cur, cur.next
	}
	t.next = cur
	if prev == nil {
		q.head = t
	} else {
		prev.next = t
	}
	if cur == nil {
		q.tail = t
	}
	q.n++
}
