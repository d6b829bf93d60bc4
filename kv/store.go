// File: kv/store.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package kv

import "sort"

// Store is an in-memory map. It is only touched from user threads of one
// engine and therefore takes no locks.
type Store struct {
	data map[string][]byte
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Get returns the value stored under key.
func (s *Store) Get(key string) ([]byte, bool) {
	v, ok := s.data[key]
	return v, ok
}

// Set stores a copy of value under key.
func (s *Store) Set(key string, value []byte) {
	s.data[key] = append([]byte(nil), value...)
}

// Del removes key and reports whether it existed.
func (s *Store) Del(key string) bool {
	_, ok := s.data[key]
	delete(s.data, key)
	return ok
}

// Len returns the number of keys.
func (s *Store) Len() int { return len(s.data) }

// Keys returns the sorted keys.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
