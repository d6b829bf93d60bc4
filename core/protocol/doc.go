// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Implements the wire decoders that cut raw stream bytes into packets for
// hioload-ut streams.
//
// Includes:
//   - Length-prefixed framing (4-byte big-endian length + payload)
//   - WebSocket-style binary frames (RFC 6455 header layout, masking on input)
//   - Raw chunk passthrough, one packet per read
//
// Every decoder allocates packets from a pool.PacketPool and enforces a
// maximum packet size to bound memory per connection.
package protocol
