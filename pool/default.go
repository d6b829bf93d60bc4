// File: pool/default.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"sync"
)

var (
	defaultOnce sync.Once
	defaultPool *PacketPool
)

// Default returns a process-wide PacketPool so all components share one set
// of counters and recycled buffers unless configured otherwise.
func Default() *PacketPool {
	defaultOnce.Do(func() {
		defaultPool = NewPacketPool()
	})
	return defaultPool
}
