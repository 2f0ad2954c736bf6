// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package event

import (
	"sync"

	"go.uber.org/zap"
)

// Dispatcher wraps an Accessor with a source-description supplier used
// for log context, and serializes posts one at a time per dispatcher —
// handlers are invoked directly, with no task handoff unless a handler
// elects its own asynchrony.
type Dispatcher struct {
	mu       sync.Mutex
	accessor *Accessor
	source   func() string
	log      *zap.Logger
}

// NewDispatcher returns a Dispatcher over accessor. source, if non-nil,
// supplies a short description of the event's origin for log lines
// (e.g. a connection's remote id). A nil logger is treated as
// zap.NewNop().
func NewDispatcher(accessor *Accessor, source func() string, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{accessor: accessor, source: source, log: log}
}

// Register adds h to the dispatcher's accessor.
func (d *Dispatcher) Register(h Handler, p Priority, receiveCancelled bool) {
	d.accessor.Register(h, p, receiveCancelled)
}

// Post serializes delivery of e through the dispatcher's accessor.
func (d *Dispatcher) Post(e *Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	cancelled := d.accessor.Post(e)
	if d.log.Core().Enabled(zap.DebugLevel) {
		src := ""
		if d.source != nil {
			src = d.source()
		}
		d.log.Debug("event posted", zap.String("source", src), zap.Bool("cancelled", cancelled))
	}
	return cancelled
}

// PostParameterless synthesizes an Event with no payload and the given
// cancellability, and posts it — the variant for pure signal events (e.g.
// "connection opened").
func (d *Dispatcher) PostParameterless(cancellable bool) bool {
	return d.Post(NewEvent(cancellable))
}

// Param1Event carries one payload value alongside the base Event.
type Param1Event[A any] struct {
	*Event
	Arg A
}

// PostParam1 synthesizes a Param1Event carrying arg just before
// posting, the single-parameter builder variant.
func PostParam1[A any](d *Dispatcher, cancellable bool, arg A) *Param1Event[A] {
	ev := &Param1Event[A]{Event: NewEvent(cancellable), Arg: arg}
	ev.Event.payload = ev
	d.Post(ev.Event)
	return ev
}

// Param2Event carries two payload values alongside the base Event.
type Param2Event[A, B any] struct {
	*Event
	Arg1 A
	Arg2 B
}

// PostParam2 synthesizes a Param2Event carrying arg1/arg2 just before
// posting, the two-parameter builder variant.
func PostParam2[A, B any](d *Dispatcher, cancellable bool, arg1 A, arg2 B) *Param2Event[A, B] {
	ev := &Param2Event[A, B]{Event: NewEvent(cancellable), Arg1: arg1, Arg2: arg2}
	ev.Event.payload = ev
	d.Post(ev.Event)
	return ev
}
