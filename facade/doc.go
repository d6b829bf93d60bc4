// Package facade
// Author: momentics <momentics@gmail.com>
//
// Blocking-style socket calls for cooperative user threads.
//
// An Engine bridges user threads scheduled by core/concurrency and a
// single-threaded, callback-driven api.Reactor. A socket is either a listener
// or a connection; both are reached through an opaque Handle. Accept,
// Connect and Receive suspend the calling user thread until the reactor's
// callbacks make progress possible. Everything runs on one logical thread of
// control, so no locks are taken.
//
// Typical use:
//
//	e, _ := facade.New(r, nil, nil)
//	ln, _ := e.Listen(api.TCP("127.0.0.1:7000"))
//	e.Spawn(func(ctx context.Context) {
//		conn, err := e.Accept(ctx, ln, 0, nil)
//		...
//	})
//	_ = e.RunForever()
package facade
