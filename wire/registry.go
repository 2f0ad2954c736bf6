// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"errors"
	"reflect"
	"sync"
)

// ErrAlreadyRegistered is returned by Registry.Register when either the
// type tag or the concrete packet type was already bound.
var ErrAlreadyRegistered = errors.New("wire: packet id or type already registered")

// Registry is a write-once bijection between a 32-bit type tag and a
// (packet type, factory) pair. Concurrent lookups are safe; concurrent
// registration is safe but registering the same id or type twice fails.
type Registry struct {
	mu     sync.RWMutex
	byID   map[uint32]Factory
	byType map[reflect.Type]uint32
}

// NewRegistry returns an empty packet registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[uint32]Factory),
		byType: make(map[reflect.Type]uint32),
	}
}

// Register binds id to factory. It fails if id is already bound, or if
// the concrete type factory() produces is already bound to a different
// id.
func (r *Registry) Register(id uint32, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; ok {
		return ErrAlreadyRegistered
	}
	typ := reflect.TypeOf(factory())
	if _, ok := r.byType[typ]; ok {
		return ErrAlreadyRegistered
	}
	r.byID[id] = factory
	r.byType[typ] = id
	return nil
}

// New constructs a fresh Packet for id via its registered factory.
func (r *Registry) New(id uint32) (Packet, bool) {
	r.mu.RLock()
	f, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return f(), true
}

// IDOf returns the type tag a packet value was registered under.
func (r *Registry) IDOf(p Packet) (uint32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byType[reflect.TypeOf(p)]
	return id, ok
}
