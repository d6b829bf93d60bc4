// Package pool
// Author: momentics <momentics@gmail.com>
//
// Packet memory layer for hioload-ut.
// Packets are carved from reusable byte buffers and every allocation/release is
// counted, so leaks show up as a non-zero InUse in PacketPool.Stats.
// See packetpool.go for implementation details.
package pool
