// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package netid names peers, connection types, and server types, and
// validates them against each other per the data model's feature
// compatibility rules.
package netid

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrFeatureMismatch reports that a connection type or server type was
// resolved against a NetworkID whose feature set cannot support it.
var ErrFeatureMismatch = errors.New("netid: feature mismatch")

// ErrPrecondition is the sentinel PreconditionError wraps; match it with
// errors.Is to detect any netid resolution failure regardless of op or
// state, the same sentinel-plus-typed-error shape netmgr.PreconditionError
// uses for its own precondition failures.
var ErrPrecondition = errors.New("netid: precondition failed")

// PreconditionError reports a connection-type or server-type resolution
// attempted against a NetworkID whose features can't support it. It
// always wraps ErrFeatureMismatch, so callers can match either the
// broad ErrPrecondition sentinel or the narrower ErrFeatureMismatch one.
type PreconditionError struct {
	Op    string
	State string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("netid: %s: %s", e.Op, e.State)
}

func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

func (e *PreconditionError) Unwrap() error { return ErrFeatureMismatch }

// Feature is a capability a NetworkID may carry.
type Feature uint8

const (
	FeatureInternal Feature = 1 << iota
	FeatureNetwork
	FeatureBind
	FeatureConnect
)

// FeatureSet is a bitmask of Feature values.
type FeatureSet uint8

func (fs FeatureSet) Has(f Feature) bool { return fs&FeatureSet(f) != 0 }

// NetworkID names a peer.
type NetworkID struct {
	ID       uuid.UUID
	Features FeatureSet
}

// New returns a NetworkID with a freshly generated identifier.
func New(features FeatureSet) NetworkID {
	return NetworkID{ID: uuid.New(), Features: features}
}

func (n NetworkID) String() string { return n.ID.String() }

// ConnectionType distinguishes the transport used by a Connection.
type ConnectionType uint8

const (
	// ConnectionDefault is unresolved: the type is determined later,
	// e.g. once a transport adapter binds to the connection.
	ConnectionDefault ConnectionType = iota
	ConnectionInternal
	ConnectionTCP
	ConnectionUDP
)

func (c ConnectionType) String() string {
	switch c {
	case ConnectionInternal:
		return "internal"
	case ConnectionTCP:
		return "tcp"
	case ConnectionUDP:
		return "udp"
	default:
		return "default"
	}
}

func (c ConnectionType) requiredFeature() (Feature, bool) {
	switch c {
	case ConnectionInternal:
		return FeatureInternal, true
	case ConnectionTCP, ConnectionUDP:
		return FeatureNetwork, true
	default:
		return 0, false
	}
}

// ServerType distinguishes the kind of server a manager runs.
type ServerType uint8

const (
	ServerInternal ServerType = iota
	ServerTCP
	ServerUDP
	ServerCombined
)

// ServerMode distinguishes whether a server's I/O loop blocks the
// calling goroutine or drives a non-blocking selector/retry loop
// instead, the second axis spec.md's data model names alongside
// ServerType ("each with a blocking/non-blocking variant").
type ServerMode uint8

const (
	ServerBlocking ServerMode = iota
	ServerNonBlocking
)

func (m ServerMode) String() string {
	if m == ServerNonBlocking {
		return "non-blocking"
	}
	return "blocking"
}

func (s ServerType) String() string {
	switch s {
	case ServerInternal:
		return "internal"
	case ServerTCP:
		return "tcp"
	case ServerUDP:
		return "udp"
	case ServerCombined:
		return "combined"
	default:
		return "unknown"
	}
}

// requiredFeatures reports the FeatureSet st needs regardless of mode:
// blocking and non-blocking servers of the same type place identical
// demands on the NetworkID's features, mode only changes how the
// server's I/O loop is driven once resolution succeeds.
func (s ServerType) requiredFeatures() FeatureSet {
	switch s {
	case ServerInternal:
		return FeatureSet(FeatureInternal | FeatureBind)
	case ServerTCP, ServerUDP:
		return FeatureSet(FeatureNetwork | FeatureBind)
	case ServerCombined:
		return FeatureSet(FeatureNetwork | FeatureInternal | FeatureBind)
	default:
		return 0
	}
}

// ResolveConnection validates a ConnectionType against id's features.
// ConnectionDefault always resolves successfully; it carries no
// requirement of its own until a transport adapter narrows it.
func ResolveConnection(id NetworkID, ct ConnectionType) error {
	want, ok := ct.requiredFeature()
	if !ok {
		return nil
	}
	if !id.Features.Has(want) {
		return &PreconditionError{
			Op: "resolve-connection",
			State: fmt.Sprintf("connection type %s requires feature %d, id %s has %#x",
				ct, want, id, id.Features),
		}
	}
	return nil
}

// ResolveServer validates a ServerType/ServerMode pair against id's
// features. Only the features requiredFeatures lists are checked;
// FeatureConnect is never required, and mode does not change the
// check.
func ResolveServer(id NetworkID, st ServerType, mode ServerMode) error {
	want := st.requiredFeatures()
	if id.Features&want != want {
		return &PreconditionError{
			Op: "resolve-server",
			State: fmt.Sprintf("server type %s (%s) requires features %#x, id %s has %#x",
				st, mode, want, id, id.Features),
		}
	}
	return nil
}
