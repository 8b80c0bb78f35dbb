package pcm

import (
	"log/slog"
	"sync"
)

var sizeClasses = [...]int{64, 256, 1024, SmallSpaceThreshold}

// PoolAllocator serves small blocks from size-classed sync.Pools.
// It is safe for concurrent use.
type PoolAllocator struct {
	pools [len(sizeClasses)]sync.Pool
	limit int

	mu          sync.Mutex
	outstanding int
	allocs      int
	frees       int
}

// NewPoolAllocator creates an allocator; a positive limit caps the bytes
// handed out and not yet freed, beyond which SmallAlloc returns nil.
func NewPoolAllocator(limit int) *PoolAllocator {
	a := &PoolAllocator{limit: limit}
	for i, size := range sizeClasses {
		size := size
		a.pools[i].New = func() any {
			b := make([]byte, size)
			return &b
		}
	}
	slog.Debug("pool allocator created", "limit_bytes", limit)
	return a
}

func classFor(size int) int {
	for i, c := range sizeClasses {
		if size <= c {
			return i
		}
	}
	return -1
}

func (a *PoolAllocator) SmallAlloc(size int) []byte {
	if size < 0 {
		return nil
	}
	class := classFor(size)
	if class < 0 {
		slog.Warn("small allocation above threshold", "size_bytes", size, "threshold", SmallSpaceThreshold)
		return nil
	}

	a.mu.Lock()
	if a.limit > 0 && a.outstanding+sizeClasses[class] > a.limit {
		outstanding := a.outstanding
		a.mu.Unlock()
		slog.Warn("small allocator exhausted",
			"size_bytes", size,
			"outstanding_bytes", outstanding,
			"limit_bytes", a.limit)
		return nil
	}
	a.outstanding += sizeClasses[class]
	a.allocs++
	a.mu.Unlock()

	bp := a.pools[class].Get().(*[]byte)
	block := (*bp)[:size]
	clear(block)
	return block
}

func (a *PoolAllocator) SmallFree(block []byte) {
	if block == nil {
		return
	}
	class := -1
	for i, c := range sizeClasses {
		if cap(block) == c {
			class = i
			break
		}
	}
	if class < 0 {
		slog.Warn("freeing block not owned by pool allocator", "cap_bytes", cap(block))
		return
	}

	a.mu.Lock()
	a.outstanding -= sizeClasses[class]
	a.frees++
	a.mu.Unlock()

	full := block[:cap(block)]
	a.pools[class].Put(&full)
}

// Outstanding returns the bytes currently allocated and not freed
func (a *PoolAllocator) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outstanding
}

// Counts returns the number of successful allocations and frees
func (a *PoolAllocator) Counts() (allocs, frees int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocs, a.frees
}
