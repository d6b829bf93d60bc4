// Package kv
// Author: momentics <momentics@gmail.com>
//
// A small key-value service built on the facade: every request and response
// is one msgpack document carried in one packet. Server and client code is
// written in plain blocking style and runs in user threads.
package kv
