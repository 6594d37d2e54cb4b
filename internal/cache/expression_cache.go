package cache

import (
	"crypto/sha256"
	"sync/atomic"

	"github.com/inoxlang/evalx/internal/utils"
	"github.com/tidwall/tinylru"
)

const DEFAULT_CAPACITY = 1024

// An ExpressionCache caches compiled sub-expressions by (context fingerprint, source code) pair,
// the least recently used entries are evicted when the capacity is reached.
type ExpressionCache[T any] struct {
	entries tinylru.LRU
	hits    atomic.Int64
	misses  atomic.Int64
}

func NewExpressionCache[T any](capacity int) *ExpressionCache[T] {
	if capacity <= 0 {
		capacity = DEFAULT_CAPACITY
	}
	c := &ExpressionCache[T]{}
	c.entries.Resize(capacity)
	return c
}

func key(fingerprint, sourceCode string) [32]byte {
	h := sha256.New()
	h.Write(utils.StringAsBytes(fingerprint))
	h.Write([]byte{0})
	h.Write(utils.StringAsBytes(sourceCode))

	var sum [32]byte
	h.Sum(sum[:0])
	return sum
}

func (c *ExpressionCache[T]) Get(fingerprint, sourceCode string) (*T, bool) {
	v, ok := c.entries.Get(key(fingerprint, sourceCode))
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return v.(*T), true
}

func (c *ExpressionCache[T]) Put(fingerprint, sourceCode string, value *T) {
	c.entries.Set(key(fingerprint, sourceCode), value)
}

func (c *ExpressionCache[T]) Delete(fingerprint, sourceCode string) {
	c.entries.Delete(key(fingerprint, sourceCode))
}

func (c *ExpressionCache[T]) Len() int {
	return c.entries.Len()
}

// Stats returns the number of hits and misses since the creation of the cache.
func (c *ExpressionCache[T]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
