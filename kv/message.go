// File: kv/message.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package kv

import (
	"errors"
	"fmt"

	"github.com/momentics/hioload-ut/api"
	"github.com/momentics/hioload-ut/pool"
	"github.com/vmihailenco/msgpack/v5"
)

// Wire schema version; bump when Request or Response change shape.
const schemaVersion uint8 = 1

// Op names a request type.
type Op uint8

const (
	OpGet Op = iota + 1
	OpSet
	OpDel
	OpPing
)

func (o Op) String() string {
	switch o {
	case OpGet:
		return "GET"
	case OpSet:
		return "SET"
	case OpDel:
		return "DEL"
	case OpPing:
		return "PING"
	default:
		return fmt.Sprintf("OP(%d)", uint8(o))
	}
}

// Errors reported by the service.
var (
	ErrNotFound      = errors.New("kv: key not found")
	ErrBadRequest    = errors.New("kv: malformed request")
	ErrSchemaVersion = errors.New("kv: unsupported schema version")
)

// Request is one client command.
type Request struct {
	Version uint8  `msgpack:"v"`
	ID      uint64 `msgpack:"id"`
	Op      Op     `msgpack:"op"`
	Key     string `msgpack:"k,omitempty"`
	Value   []byte `msgpack:"val,omitempty"`
}

// Response answers the request with the same ID.
type Response struct {
	Version uint8  `msgpack:"v"`
	ID      uint64 `msgpack:"id"`
	Found   bool   `msgpack:"found"`
	Value   []byte `msgpack:"val,omitempty"`
	Err     string `msgpack:"err,omitempty"`
}

// encode marshals v into a packet from pp.
func encode(pp *pool.PacketPool, v any) (api.Packet, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("kv encode: %w", err)
	}
	return pp.FromBytes(b), nil
}

// decode unmarshals p into v and releases p.
func decode(p api.Packet, v any) error {
	defer p.Release()
	if err := msgpack.Unmarshal(p.Bytes(), v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}
