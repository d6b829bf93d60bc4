// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the single-threaded, callback-driven I/O reactor
// behind the hioload-ut socket facade. On Linux it multiplexes non-blocking
// sockets with epoll(7) and interrupts a blocking poll through an eventfd.
// Other platforms get a stub that reports api.ErrNotSupported.
package reactor
