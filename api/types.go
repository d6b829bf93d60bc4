// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and constants.

package api

const (
	NetworkTCP  = "tcp" // contains both ipv4 and ipv6
	NetworkTCP4 = "tcp4"
	NetworkTCP6 = "tcp6"
	NetworkUNIX = "unix"
)

// Address names a stream endpoint, e.g. {Network: "tcp", Address: "127.0.0.1:7000"}.
type Address struct {
	Network string
	Address string
}

// TCP is a shortcut for a "tcp" Address.
func TCP(hostport string) Address {
	return Address{Network: NetworkTCP, Address: hostport}
}

func (a Address) String() string {
	if a.Network == "" {
		return a.Address
	}
	return a.Network + "://" + a.Address
}

// SocketKind tells the two faces of a socket facade apart.
type SocketKind int

const (
	KindListener SocketKind = iota + 1
	KindConnection
)

func (k SocketKind) String() string {
	switch k {
	case KindListener:
		return "listener"
	case KindConnection:
		return "connection"
	default:
		return "unknown"
	}
}

// CloseState enumerates the close progress of a socket. It only moves forward.
type CloseState int

const (
	StateOpen CloseState = iota
	StateClosingRequested
	StateClosed
)

func (s CloseState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosingRequested:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
