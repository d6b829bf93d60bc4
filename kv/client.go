// File: kv/client.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/momentics/hioload-ut/api"
	"github.com/momentics/hioload-ut/facade"
	"github.com/momentics/hioload-ut/pool"
)

// Client issues one request at a time over a single connection. Methods must
// be called from a user thread.
type Client struct {
	e    *facade.Engine
	conn facade.Handle
	pool *pool.PacketPool
	next uint64
}

// Dial connects to a server at addr.
func Dial(ctx context.Context, e *facade.Engine, addr api.Address, pp *pool.PacketPool) (*Client, error) {
	if pp == nil {
		pp = pool.Default()
	}
	conn, err := e.Connect(ctx, addr, 0, nil)
	if err != nil {
		return nil, err
	}
	return &Client{e: e, conn: conn, pool: pp}, nil
}

// Get returns the value of key or ErrNotFound.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := c.do(ctx, Request{Op: OpGet, Key: key})
	if err != nil {
		return nil, err
	}
	if !resp.Found {
		return nil, fmt.Errorf("get %q: %w", key, ErrNotFound)
	}
	return resp.Value, nil
}

// Set stores value under key.
func (c *Client) Set(ctx context.Context, key string, value []byte) error {
	_, err := c.do(ctx, Request{Op: OpSet, Key: key, Value: value})
	return err
}

// Del removes key and reports whether it existed.
func (c *Client) Del(ctx context.Context, key string) (bool, error) {
	resp, err := c.do(ctx, Request{Op: OpDel, Key: key})
	if err != nil {
		return false, err
	}
	return resp.Found, nil
}

// Ping round-trips payload through the server.
func (c *Client) Ping(ctx context.Context, payload []byte) ([]byte, error) {
	resp, err := c.do(ctx, Request{Op: OpPing, Value: payload})
	if err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	err := c.e.Close(c.conn)
	if errors.Is(err, api.ErrAlreadyClosing) {
		return nil
	}
	return err
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	c.next++
	req.ID = c.next
	req.Version = schemaVersion
	p, err := encode(c.pool, &req)
	if err != nil {
		return nil, err
	}
	if err := c.e.Send(c.conn, p); err != nil {
		return nil, fmt.Errorf("%s: %w", req.Op, err)
	}
	in, err := c.e.Receive(ctx, c.conn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Op, err)
	}
	var resp Response
	if err := decode(in, &resp); err != nil {
		return nil, err
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("%s: response id %d for request %d: %w", req.Op, resp.ID, req.ID, ErrBadRequest)
	}
	if resp.Err != "" {
		return nil, fmt.Errorf("%s: server: %s", req.Op, resp.Err)
	}
	return &resp, nil
}
