// Package mmappool implements a pool of off-heap byte slices, backed by anonymous memory-mapped regions.
//
// Off-heap memory is never moved or collected by the Go runtime, so a slice from the pool
// may be handed to native code that keeps a pointer into it after the call returns.
package mmappool

import (
	"log/slog"
	"sync/atomic"

	"github.com/edsrzf/mmap-go"
)

type Mempool struct {
	mmaps      chan mmap.MMap
	elemSize   int
	NumCreated atomic.Int32
	// NumOversized counts regions mapped for requests larger than elemSize
	NumOversized atomic.Int32
	log          *slog.Logger
}

// New creates a new memory pool of max size `poolsize` which keeps regions of capacity `elemsize`.
// The pool is lazily populated whenever a byte slice is requested.
// poolsize*elemsize the upper bound of memory that will not be freed up until [Free] is called.
func New(elemSize, poolSize int, logger *slog.Logger) *Mempool {
	if elemSize < 8 {
		panic("illegal elemSize for mempool")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ch := make(chan mmap.MMap, poolSize)
	return &Mempool{mmaps: ch, elemSize: elemSize, log: logger}
}

// Get returns a byte slice of length n. Requests up to the element size are served from the pool
// (or by mapping a new element if none is idle); bigger requests get a dedicated region that is
// unmapped when it is returned with [Put]. The caller is responsible for calling [Put].
// Not doing so will result in a memory leak.
// If creating an off-heap chunk of memory fails, nil and the error are returned.
// Slices returned by Get must not be resliced regarding the lower bound, nor grown.
func (m *Mempool) Get(n int) ([]byte, error) {
	if n < 0 {
		n = 0
	}
	if n > m.elemSize {
		m.NumOversized.Add(1)
		b, err := mmap.MapRegion(nil, n, mmap.RDWR, mmap.ANON, 0)
		if err != nil {
			return nil, err
		}
		m.log.Debug("mapped oversized buffer", "size", n, "elemSize", m.elemSize)
		return b[:n], nil
	}
	select {
	case b := <-m.mmaps:
		return b[:n], nil
	default:
		b, err := mmap.MapRegion(nil, m.elemSize, mmap.RDWR, mmap.ANON, 0)
		created := m.NumCreated.Add(1)
		if err != nil {
			m.NumCreated.Add(-1)
			return nil, err
		}
		if created > int32(m.PoolSize()) {
			m.log.Warn("Number of byte slices allocated is bigger than pool size. This might indicate a memory leak.", "created", created, "poolSize", m.PoolSize())
		}
		return b[:n], nil
	}
}

// Put returns a byte slice to the pool. Oversized regions, and regions arriving while
// all slots are taken, are unmapped.
func (m *Mempool) Put(b []byte) {
	if b == nil {
		return
	}
	full := mmap.MMap(b[:cap(b)])
	if cap(b) != m.elemSize {
		err := full.Unmap()
		m.log.Debug("oversized buffer unmapped", "cap", cap(b), "err", err)
		return
	}
	clear(full)
	select {
	case m.mmaps <- full:
		m.log.Debug("buffer returned to pool", "len", len(b), "cap", cap(b))
	default:
		err := full.Unmap()
		m.log.Debug("buffer was unmapped because pool was full", "len", len(b), "cap", cap(b), "err", err)
	}
}

// CurrentSize reports the number of allocated byte slices ready to use.
func (m *Mempool) CurrentSize() int {
	return len(m.mmaps)
}

// PoolSize returns the size of the pool
func (m *Mempool) PoolSize() int {
	return cap(m.mmaps)
}

// ElemSize returns the capacity of each pooled element.
func (m *Mempool) ElemSize() int {
	return m.elemSize
}

// Free releases every mmap in the pool.
// Calling [Get] after calling [Free] will allocate new mmaps.
// Free reports errors when the pool's elements were not actually mmaps.
func (m *Mempool) Free() []error {
	errs := make([]error, 0, m.CurrentSize())
	for {
		select {
		case b := <-m.mmaps:
			if err := b.Unmap(); err != nil {
				errs = append(errs, err)
			}
		default:
			return errs
		}
	}
}
