// File: api/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Common error types and error handling utilities for hioload-ut.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrInvalidHandle      = errors.New("invalid handle")
	ErrNotInThread        = errors.New("not called from a user thread")
	ErrWrongKind          = errors.New("operation not supported by socket kind")
	ErrAlreadyClosing     = errors.New("socket already closing")
	ErrListenerClosed     = errors.New("listener closed")
	ErrResourceExhausted  = errors.New("resource exhausted")
	ErrNilReactor         = errors.New("nil reactor")
	ErrAlreadyInitialized = errors.New("reactor already bound to an engine")
	ErrSchedulerClosed    = errors.New("scheduler is closed")
	ErrStaleWaiter        = errors.New("waiter already woken or retired")
	ErrThreadGone         = errors.New("thread can no longer be resumed")
	ErrStreamClosed       = errors.New("stream is closed")
	ErrLocalClose         = errors.New("connection closed locally")
	ErrPacketTooLarge     = errors.New("packet exceeds maximum size")
	ErrNotSupported       = errors.New("operation not supported")
	ErrReactorClosed      = errors.New("reactor is closed")
)

// ConnectError reports a failed asynchronous connect.
type ConnectError struct {
	Addr Address
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// DisconnectError is returned by Receive once the buffered packets of a
// closed connection have been drained.
type DisconnectError struct {
	Err error
}

func (e *DisconnectError) Error() string {
	if e.Err == nil {
		return "disconnected"
	}
	return "disconnected: " + e.Err.Error()
}

func (e *DisconnectError) Unwrap() error { return e.Err }
