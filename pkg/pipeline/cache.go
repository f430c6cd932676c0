// Package pipeline provides the per-client interceptor cache
package pipeline

import (
	"reflect"
	"sync"
)

// Cache holds one shared instance per interceptor type. Entries are created
// lazily, never evicted, and live as long as the owning client.
type Cache[S any] struct {
	mu    sync.Mutex
	items map[reflect.Type]Interceptor[S]
}

// NewCache creates an empty cache
func NewCache[S any]() *Cache[S] {
	return &Cache[S]{items: make(map[reflect.Type]Interceptor[S])}
}

// GetOrCreate returns the cached instance of T, constructing it with new(T) on
// first use. Every call for the same T returns the identical pointer. The lock
// covers only lookup and insertion; the returned handle is used without it.
func GetOrCreate[T any, S any, PT interface {
	*T
	Interceptor[S]
}](c *Cache[S]) PT {
	key := reflect.TypeFor[T]()

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.items[key]; ok {
		return existing.(PT)
	}

	instance := PT(new(T))
	c.items[key] = instance
	return instance
}

// Warmup constructs T ahead of the first call
func Warmup[T any, S any, PT interface {
	*T
	Interceptor[S]
}](c *Cache[S]) {
	GetOrCreate[T, S, PT](c)
}

// Len returns the number of cached instances
func (c *Cache[S]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
