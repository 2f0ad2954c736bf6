// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netmgr

import (
	"errors"
	"fmt"
)

// ErrPrecondition is the sentinel PreconditionError wraps; match it
// with errors.Is to detect any precondition failure regardless of op
// or state.
var ErrPrecondition = errors.New("netmgr: precondition failed")

// ErrQueueFull reports a dropped packet after a handler queue
// rejection went uncancelled.
var ErrQueueFull = errors.New("netmgr: handler queue full")

// ErrTransport reports a connection closure caused by a transport
// failure.
var ErrTransport = errors.New("netmgr: transport failure")

// PreconditionError reports an operation attempted from the wrong
// state. No function in this module returns it: conn.Connection.Open,
// handler.TypedHandler.Register and Manager.SendTo report their
// wrong-state cases as a false result.
type PreconditionError struct {
	Op    string
	State string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("netmgr: %s: invalid state %s", e.Op, e.State)
}

func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }
