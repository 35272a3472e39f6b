package kernel

import (
	"errors"
	"testing"
)

func TestStackArena_AllocateRelease(t *testing.T) {
	a := newStackArena(128, 3)

	r1, err := a.allocate(64)
	if err != nil {
		t.Fatalf("allocate(64): %v", err)
	}
	r2, err := a.allocate(128)
	if err != nil {
		t.Fatalf("allocate(128): %v", err)
	}
	if r1.slab == r2.slab {
		t.Fatalf("both regions on slab %d", r1.slab)
	}
	if a.inUse != 2 || a.requested != 192 {
		t.Fatalf("inUse %d requested %d, want 2 and 192", a.inUse, a.requested)
	}

	if err := a.release(r1); err != nil {
		t.Fatalf("release: %v", err)
	}
	if a.inUse != 1 || a.requested != 128 {
		t.Fatalf("inUse %d requested %d, want 1 and 128", a.inUse, a.requested)
	}

	r3, err := a.allocate(32)
	if err != nil {
		t.Fatalf("allocate(32): %v", err)
	}
	if r3.slab != r1.slab {
		t.Fatalf("got slab %d, want lowest free slab %d", r3.slab, r1.slab)
	}
}

func TestStackArena_Exhausted(t *testing.T) {
	a := newStackArena(64, 2)

	for i := 0; i < 2; i++ {
		if _, err := a.allocate(64); err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
	}
	if _, err := a.allocate(1); !errors.Is(err, errArenaExhausted) {
		t.Fatalf("allocate on full arena err = %v, want %v", err, errArenaExhausted)
	}
	if a.inUse != 2 {
		t.Fatalf("inUse = %d, want 2", a.inUse)
	}
}

func TestStackArena_SizeBounds(t *testing.T) {
	a := newStackArena(64, 2)

	for _, n := range []int{0, 65} {
		if _, err := a.allocate(n); !errors.Is(err, errStackSize) {
			t.Fatalf("allocate(%d) err = %v, want %v", n, err, errStackSize)
		}
	}
	if a.inUse != 0 {
		t.Fatalf("inUse = %d, want 0", a.inUse)
	}
}

func TestStackArena_DoubleRelease(t *testing.T) {
	a := newStackArena(64, 2)

	r, err := a.allocate(16)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := a.release(r); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := a.release(r); !errors.Is(err, errDoubleRelease) {
		t.Fatalf("second release err = %v, want %v", err, errDoubleRelease)
	}
	if err := a.release(stackRegion{}); !errors.Is(err, errDoubleRelease) {
		t.Fatalf("zero region release err = %v, want %v", err, errDoubleRelease)
	}
	if a.inUse != 0 {
		t.Fatalf("inUse = %d, want 0", a.inUse)
	}
}

func TestStackArena_RegionsDoNotAlias(t *testing.T) {
	a := newStackArena(32, 2)

	r1, err := a.allocate(16)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	r2, err := a.allocate(32)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	b1 := a.bytes(r1)
	if len(b1) != 16 || cap(b1) != 16 {
		t.Fatalf("region len %d cap %d, want 16 and 16", len(b1), cap(b1))
	}
	for i := range b1 {
		b1[i] = 0xAA
	}
	for i, v := range a.bytes(r2) {
		if v != 0 {
			t.Fatalf("neighbouring region byte %d = %#x", i, v)
		}
	}

	if err := a.release(r1); err != nil {
		t.Fatalf("release: %v", err)
	}
	r3, err := a.allocate(32)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	for i, v := range a.bytes(r3) {
		if v != 0 {
			t.Fatalf("reused slab byte %d = %#x, want cleared", i, v)
		}
	}
}

func TestStackArena_ManySlabs(t *testing.T) {
	const slabs = 130
	a := newStackArena(8, slabs)

	seen := make(map[int]bool)
	for i := 0; i < slabs; i++ {
		r, err := a.allocate(8)
		if err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
		if seen[r.slab] {
			t.Fatalf("slab %d handed out twice", r.slab)
		}
		seen[r.slab] = true
	}
	if _, err := a.allocate(8); !errors.Is(err, errArenaExhausted) {
		t.Fatalf("allocate past capacity err = %v, want %v", err, errArenaExhausted)
	}
}
