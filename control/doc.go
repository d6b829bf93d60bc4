// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime counters and debug introspection for hioload-ut engines.
//
// Provides concurrent-safe primitives including:
//   - Named int64 counters with snapshot export
//   - Debug probe registration and state dumps
//   - Platform probes (CPU count, descriptor limits)
package control
