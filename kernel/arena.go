package kernel

import (
	"fmt"
	"math/bits"
)

// stackRegion is one thread's stack memory: a prefix of a single slab.
// The zero value is "no region".
type stackRegion struct {
	slab int
	size int
}

func (r stackRegion) valid() bool { return r.size > 0 }

// stackArena is a fixed pool of equally sized slabs carved from one
// allocation. Used slabs are tracked in a bitmap; there is no
// fragmentation because every region occupies exactly one slab.
type stackArena struct {
	mem      []byte
	slabSize int
	slabs    int
	used     []uint64

	inUse     int
	requested int
}

func newStackArena(slabSize, slabs int) *stackArena {
	return &stackArena{
		mem:      make([]byte, slabSize*slabs),
		slabSize: slabSize,
		slabs:    slabs,
		used:     make([]uint64, (slabs+63)/64),
	}
}

func (a *stackArena) allocate(size int) (stackRegion, error) {
	if size <= 0 || size > a.slabSize {
		return stackRegion{}, fmt.Errorf("%w: %d (slab %d)", errStackSize, size, a.slabSize)
	}
	for w, word := range a.used {
		free := ^word
		if free == 0 {
			continue
		}
		slab := w*64 + bits.TrailingZeros64(free)
		if slab >= a.slabs {
			break
		}
		a.used[w] |= 1 << uint(slab%64)
		a.inUse++
		a.requested += size
		clear(a.slice(slab, a.slabSize))
		return stackRegion{slab: slab, size: size}, nil
	}
	return stackRegion{}, errArenaExhausted
}

func (a *stackArena) release(r stackRegion) error {
	if !r.valid() || r.slab < 0 || r.slab >= a.slabs {
		return fmt.Errorf("%w: slab %d", errDoubleRelease, r.slab)
	}
	w, bit := r.slab/64, uint64(1)<<uint(r.slab%64)
	if a.used[w]&bit == 0 {
		return fmt.Errorf("%w: slab %d", errDoubleRelease, r.slab)
	}
	a.used[w] &^= bit
	a.inUse--
	a.requested -= r.size
	return nil
}

// bytes returns the region's memory. The slice capacity ends at the region,
// so appends can never spill into a neighbouring slab.
func (a *stackArena) bytes(r stackRegion) []byte {
	if !r.valid() {
		return nil
	}
	return a.slice(r.slab, r.size)
}

func (a *stackArena) slice(slab, n int) []byte {
	off := slab * a.slabSize
	return a.mem[off : off+n : off+n]
}
