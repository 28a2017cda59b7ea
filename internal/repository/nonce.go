package repository

import (
	"context"
	"math"
	"sync/atomic"
)

// maxNonceIndexes is the size of the uint32 index space.
const maxNonceIndexes = uint64(math.MaxUint32) + 1

// CursorSink persists the allocator high-water mark. Implementations must
// never lower a value they stored before: concurrent allocations may persist
// out of order.
type CursorSink interface {
	PersistNonceCursor(ctx context.Context, next uint64) error
}

// CursorSinkFunc adapts a function to CursorSink.
type CursorSinkFunc func(ctx context.Context, next uint64) error

func (f CursorSinkFunc) PersistNonceCursor(ctx context.Context, next uint64) error {
	return f(ctx, next)
}

// NonceAllocator hands out contiguous, never repeating ranges of nonce
// indexes. A range is reserved by a single atomic add before anything is
// persisted; a range whose persistence fails is burned and never returned.
type NonceAllocator struct {
	next atomic.Uint64
	sink CursorSink
}

// NewNonceAllocator starts issuing at next. sink may be nil for stores that
// keep nothing across restarts.
func NewNonceAllocator(next uint64, sink CursorSink) *NonceAllocator {
	a := &NonceAllocator{sink: sink}
	a.next.Store(next)
	return a
}

func (a *NonceAllocator) Allocate(ctx context.Context, count int) ([]uint32, error) {
	if count < 0 {
		return nil, internalf("negative nonce count %d", count)
	}
	if count == 0 {
		return []uint32{}, nil
	}
	end := a.next.Add(uint64(count))
	start := end - uint64(count)
	if end > maxNonceIndexes {
		return nil, internalf("nonce index space exhausted at %d", start)
	}
	if a.sink != nil {
		if err := a.sink.PersistNonceCursor(ctx, end); err != nil {
			return nil, MapError("persist nonce cursor", err)
		}
	}
	out := make([]uint32, count)
	for i := range out {
		out[i] = uint32(start + uint64(i))
	}
	return out, nil
}

// Next returns the first index that has not been reserved yet.
func (a *NonceAllocator) Next() uint64 {
	return a.next.Load()
}
