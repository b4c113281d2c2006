// Package optimization provides tiered buffer pooling for streaming
// artifact writes, so large uploads and downloads don't churn the
// allocator on every request.
package optimization

import "sync"

// BufferPool pools byte slices of a single fixed size.
type BufferPool struct {
	pool sync.Pool
	size int
}

// NewBufferPool creates a pool that hands out buffers of exactly size bytes.
func NewBufferPool(size int) *BufferPool {
	return &BufferPool{
		size: size,
		pool: sync.Pool{
			New: func() interface{} {
				return make([]byte, size)
			},
		},
	}
}

// Get retrieves a buffer from the pool.
func (bp *BufferPool) Get() []byte {
	return bp.pool.Get().([]byte)
}

// Put returns a buffer to the pool. Buffers of the wrong size are discarded.
func (bp *BufferPool) Put(buffer []byte) {
	if len(buffer) != bp.size {
		return
	}
	bp.pool.Put(buffer)
}

// ObjectPools groups the buffer pools used across artifact I/O paths.
type ObjectPools struct {
	Small  *BufferPool // 4KB - probe/exit-code reads, JSON bodies
	Medium *BufferPool // 32KB - original/compressed artifact copies
	Large  *BufferPool // 256KB - ZIP archive streaming
}

// NewObjectPools builds the standard tiered set.
func NewObjectPools() *ObjectPools {
	return &ObjectPools{
		Small:  NewBufferPool(4 * 1024),
		Medium: NewBufferPool(32 * 1024),
		Large:  NewBufferPool(256 * 1024),
	}
}

// GetBuffer returns the smallest pooled buffer at least sizeHint bytes,
// along with a release function to return it to its pool.
func (op *ObjectPools) GetBuffer(sizeHint int) ([]byte, func()) {
	var pool *BufferPool
	switch {
	case sizeHint <= 4*1024:
		pool = op.Small
	case sizeHint <= 32*1024:
		pool = op.Medium
	default:
		pool = op.Large
	}

	buffer := pool.Get()
	return buffer, func() { pool.Put(buffer) }
}

var (
	globalPools *ObjectPools
	poolsOnce   sync.Once
)

// GetGlobalPools returns the process-wide pool set, initializing it on
// first use.
func GetGlobalPools() *ObjectPools {
	poolsOnce.Do(func() {
		globalPools = NewObjectPools()
	})
	return globalPools
}
