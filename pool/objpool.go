// File: pool/objpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import "sync"

// SyncPool is a typed sync.Pool.
type SyncPool[T any] struct {
	pool *sync.Pool
}

// NewSyncPool creates a pool that calls creator when empty.
func NewSyncPool[T any](creator func() T) *SyncPool[T] {
	return &SyncPool[T]{
		pool: &sync.Pool{New: func() any { return creator() }},
	}
}

func (sp *SyncPool[T]) Get() T { return sp.pool.Get().(T) }

func (sp *SyncPool[T]) Put(obj T) { sp.pool.Put(obj) }
