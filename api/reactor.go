// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the abstract interface for the callback-driven I/O reactor and the
// stream abstraction it hands out for connected descriptors.

package api

// AcceptCallback receives a freshly accepted raw descriptor.
type AcceptCallback func(fd int)

// ConnectCallback reports the outcome of an asynchronous connect. On success
// fd is the established descriptor and err is nil; on failure fd is -1.
type ConnectCallback func(fd int, err error)

// PacketCallback delivers one decoded packet. The packet is only valid for the
// duration of the callback; keep a Clone to retain it.
type PacketCallback func(s Stream, p Packet)

// DisconnectCallback reports the end of a stream. It is invoked exactly once
// per associated stream, after the descriptor has been closed.
type DisconnectCallback func(s Stream, err error)

// Reactor is a single-threaded event multiplexer. All callbacks run inside
// RunOnce, on the goroutine that calls it.
type Reactor interface {
	// Claim binds the reactor to one engine. A second Claim fails with
	// ErrAlreadyInitialized.
	Claim() error

	// Socket creates a raw non-blocking stream socket suitable for addr.
	Socket(addr Address) (int, error)

	// Listen binds fd to addr, starts listening and registers cb for every
	// inbound connection.
	Listen(fd int, addr Address, cb AcceptCallback) error

	// LocalAddr returns the address a descriptor is bound to.
	LocalAddr(fd int) (Address, error)

	// Connect starts a non-blocking connect to addr. A non-nil error means the
	// attempt failed immediately and cb will never run. pending == false
	// means cb already ran before Connect returned.
	Connect(addr Address, cb ConnectCallback) (pending bool, err error)

	// CloseFD closes a raw descriptor owned by the caller.
	CloseFD(fd int) error

	// NewStream wraps a connected descriptor. The stream owns fd and dec from
	// here on.
	NewStream(fd int, bufferSize int, dec Decoder) (Stream, error)

	// RunOnce performs one poll iteration, waiting for events when block is
	// true and returning immediately otherwise.
	RunOnce(block bool) error

	// Wakeup interrupts a blocking RunOnce. Safe to call from any goroutine.
	Wakeup() error

	// Close releases the reactor and every descriptor it still owns.
	Close() error
}

// Stream is a connected descriptor with framing.
type Stream interface {
	// Associate starts delivering packets and the disconnect notification.
	Associate(onPacket PacketCallback, onDisconnect DisconnectCallback) error

	// Send queues p for writing. Ownership of p passes to the stream, also on
	// failure.
	Send(p Packet) error

	// Close requests an orderly close: pending output is flushed, then the
	// disconnect callback runs on a later poll step.
	Close() error

	// UserData returns the opaque back-reference set with SetUserData.
	UserData() any

	// SetUserData stores an opaque back-reference.
	SetUserData(v any)

	// Fd returns the underlying descriptor, -1 once closed.
	Fd() int
}
