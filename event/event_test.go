// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package event_test

import (
	"testing"

	"code.hybscloud.com/netcore/event"
)

func TestPostDispatchesInPriorityDescendingOrder(t *testing.T) {
	a := event.NewAccessor()
	var order []string
	a.Register(event.HandlerFunc(func(*event.Event) { order = append(order, "low") }), event.PriorityLow, true)
	a.Register(event.HandlerFunc(func(*event.Event) { order = append(order, "highest") }), event.PriorityHighest, true)
	a.Register(event.HandlerFunc(func(*event.Event) { order = append(order, "normal") }), event.PriorityNormal, true)

	a.Post(event.NewEvent(false))

	want := []string{"highest", "normal", "low"}
	if len(order) != len(want) {
		t.Fatalf("got %v want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v want %v", order, want)
		}
	}
}

func TestCancelledEventSkipsNonOptInHandlers(t *testing.T) {
	a := event.NewAccessor()
	var ranOptOut, ranOptIn bool
	a.Register(event.HandlerFunc(func(e *event.Event) {
		_ = e.SetCancelled(true)
	}), event.PriorityHighest, true)
	a.Register(event.HandlerFunc(func(*event.Event) { ranOptOut = true }), event.PriorityNormal, false)
	a.Register(event.HandlerFunc(func(*event.Event) { ranOptIn = true }), event.PriorityLow, true)

	cancelled := a.Post(event.NewEvent(true))

	if !cancelled {
		t.Fatal("expected event to end cancelled")
	}
	if ranOptOut {
		t.Fatal("expected non-opt-in handler to be skipped once cancelled")
	}
	if !ranOptIn {
		t.Fatal("expected opt-in handler to still run")
	}
}

func TestSetCancelledOnNonCancellableEventErrors(t *testing.T) {
	e := event.NewEvent(false)
	if err := e.SetCancelled(true); err != event.ErrNotCancellable {
		t.Fatalf("got %v, want ErrNotCancellable", err)
	}
}

func TestPostParam1CarriesPayload(t *testing.T) {
	a := event.NewAccessor()
	var got string
	a.Register(event.HandlerFunc(func(*event.Event) {}), event.PriorityNormal, true)
	d := event.NewDispatcher(a, nil, nil)
	ev := event.PostParam1(d, false, "payload")
	got = ev.Arg
	if got != "payload" {
		t.Fatalf("got %q", got)
	}
}
