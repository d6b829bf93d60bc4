//go:build linux

// File: reactor/sockaddr_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"fmt"
	"net"

	"github.com/momentics/hioload-ut/api"
	"golang.org/x/sys/unix"
)

// sockaddr resolves addr into a unix.Sockaddr and the socket domain to use.
// An empty host binds the IPv4 wildcard unless the network is tcp6.
func sockaddr(addr api.Address) (unix.Sockaddr, int, error) {
	network := addr.Network
	if network == "" {
		network = api.NetworkTCP
	}
	switch network {
	case api.NetworkUNIX:
		return &unix.SockaddrUnix{Name: addr.Address}, unix.AF_UNIX, nil
	case api.NetworkTCP, api.NetworkTCP4, api.NetworkTCP6:
	default:
		return nil, 0, fmt.Errorf("network %q: %w", addr.Network, api.ErrNotSupported)
	}

	ta, err := net.ResolveTCPAddr(network, addr.Address)
	if err != nil {
		return nil, 0, fmt.Errorf("resolve %s: %w", addr, err)
	}
	ip4 := ta.IP.To4()
	if network == api.NetworkTCP6 || (ip4 == nil && ta.IP != nil) {
		sa := &unix.SockaddrInet6{Port: ta.Port}
		copy(sa.Addr[:], ta.IP.To16())
		return sa, unix.AF_INET6, nil
	}
	sa := &unix.SockaddrInet4{Port: ta.Port}
	copy(sa.Addr[:], ip4)
	return sa, unix.AF_INET, nil
}

// sockaddrString renders a peer address for logs.
func sockaddrString(sa unix.Sockaddr) string {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return (&net.TCPAddr{IP: sa.Addr[:], Port: sa.Port}).String()
	case *unix.SockaddrInet6:
		return (&net.TCPAddr{IP: sa.Addr[:], Port: sa.Port}).String()
	case *unix.SockaddrUnix:
		return sa.Name
	default:
		return ""
	}
}
