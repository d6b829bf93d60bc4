// File: control/debug.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Named gauges evaluated on demand. The engine publishes socket, thread and
// pool gauges here; the CLI logs them around a run.

package control

import (
	"sort"
	"sync"
)

// DebugProbes maps gauge names to the functions that read them.
type DebugProbes struct {
	mu     sync.RWMutex
	gauges map[string]func() any
}

func NewDebugProbes() *DebugProbes {
	return &DebugProbes{gauges: make(map[string]func() any)}
}

// RegisterProbe adds or replaces the gauge name.
func (dp *DebugProbes) RegisterProbe(name string, read func() any) {
	dp.mu.Lock()
	dp.gauges[name] = read
	dp.mu.Unlock()
}

// DumpState evaluates every gauge once. Gauges run under the registry's read
// lock and must not register new ones.
func (dp *DebugProbes) DumpState() map[string]any {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	state := make(map[string]any, len(dp.gauges))
	for name, read := range dp.gauges {
		state[name] = read()
	}
	return state
}

// Names lists gauge names in lexical order.
func (dp *DebugProbes) Names() []string {
	dp.mu.RLock()
	names := make([]string, 0, len(dp.gauges))
	for name := range dp.gauges {
		names = append(names, name)
	}
	dp.mu.RUnlock()
	sort.Strings(names)
	return names
}
