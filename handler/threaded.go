// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package handler

import (
	"context"

	"go.uber.org/zap"

	"code.hybscloud.com/netcore/event"
	"code.hybscloud.com/netcore/wire"
)

type queueEntry struct {
	packet wire.Packet
	ctx    Context
}

// ThreadPacketHandler isolates a delegate handler from the I/O thread
// with a bounded queue and a dedicated worker goroutine. HandlePacket
// offers with a non-blocking send: on a full queue it posts a cancellable rejection
// event instead of blocking, the Go-idiomatic rendering of "bounded
// queue with a reject-on-full policy" (a buffered channel plus
// select/default, the same pattern a connectionless UDP listener uses
// for best-effort fan-out to its monitor channels).
type ThreadPacketHandler struct {
	delegate PacketHandler
	queue    chan queueEntry
	rejected *event.Accessor
	log      *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewThreadPacketHandler starts a worker goroutine draining a queue of
// capacity cap and forwarding each entry to delegate. A nil logger is
// treated as zap.NewNop().
func NewThreadPacketHandler(cap int, delegate PacketHandler, log *zap.Logger) *ThreadPacketHandler {
	if log == nil {
		log = zap.NewNop()
	}
	if cap <= 0 {
		cap = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &ThreadPacketHandler{
		delegate: delegate,
		queue:    make(chan queueEntry, cap),
		rejected: event.NewAccessor(),
		log:      log,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go h.run(ctx)
	return h
}

// OnRejected registers a handler for the overflow rejection event.
func (h *ThreadPacketHandler) OnRejected(fn func(e *event.Event), p event.Priority, receiveCancelled bool) {
	h.rejected.Register(event.HandlerFunc(fn), p, receiveCancelled)
}

// HandlePacket offers (p, ctx) to the queue without blocking. On
// overflow it posts a cancellable rejection event: if any handler
// cancels it, the drop is logged at debug, else at warning.
func (h *ThreadPacketHandler) HandlePacket(p wire.Packet, ctx Context) {
	select {
	case h.queue <- queueEntry{packet: p, ctx: ctx}:
	default:
		ev := event.NewEvent(true)
		cancelled := h.rejected.Post(ev)
		if cancelled {
			h.log.Debug("handler: queue overflow, packet dropped (rejection cancelled)")
		} else {
			h.log.Warn("handler: queue overflow, packet dropped")
		}
	}
}

// run is the worker's daemon loop: it ends cleanly on Stop, without
// dropping an entry already dequeued and in progress.
func (h *ThreadPacketHandler) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case e := <-h.queue:
			h.delegate.HandlePacket(e.packet, e.ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals the worker to end after finishing any in-progress
// entry, and waits for it to exit.
func (h *ThreadPacketHandler) Stop() {
	h.cancel()
	<-h.done
}
