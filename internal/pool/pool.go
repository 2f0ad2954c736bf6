// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pool implements the decoder pool (C5): for connectionless
// transports where a single receive socket multiplexes many peers, it
// owns the stateful per-peer accumulators, keyed by remote address,
// acquiring one on each inbound datagram and returning it to a free
// list once quiescent. Grounded on the single-mutex,
// map-keyed-by-address pattern a connectionless UDP listener uses to
// fan one socket out to many logical peers.
package pool

import (
	"sync"

	"code.hybscloud.com/netcore/internal/accum"
)

type entry struct {
	acc      *accum.Accumulator
	refcount int32
}

// Pool multiplexes accumulators by remote address string (e.g. a
// net.Addr.String() or netip.AddrPort.String()).
type Pool struct {
	mu             sync.Mutex
	bound          map[string]*entry
	free           []*accum.Accumulator
	newAccumulator func() *accum.Accumulator
}

// New returns an empty Pool. newAccumulator mints a fresh Accumulator
// whenever neither a bound entry nor a free one is available for an
// address.
func New(newAccumulator func() *accum.Accumulator) *Pool {
	return &Pool{
		bound:          make(map[string]*entry),
		newAccumulator: newAccumulator,
	}
}

// Decode ingests data on behalf of addr: if addr is already bound, its
// accumulator resumes; else a free accumulator is rebound, or a fresh
// one is created. The whole sequence — acquire, ingest, release — runs
// under the pool's single mutex, so a single accumulator is never
// driven by two goroutines at once. After releasing, an accumulator
// that has both a zero refcount and is back at its initial state is
// returned to the free list; one that is mid-frame stays bound so the
// next datagram from the same peer resumes decoding.
func (p *Pool) Decode(addr string, data []byte, adapter accum.Adapter) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.bound[addr]
	if !ok {
		e = &entry{acc: p.take()}
		p.bound[addr] = e
	}

	e.refcount++
	e.acc.Ingest(data, adapter)
	e.refcount--
	if e.refcount < 0 {
		panic("pool: refcount underflow for address " + addr)
	}

	if e.refcount == 0 && e.acc.IsDone() {
		delete(p.bound, addr)
		p.free = append(p.free, e.acc)
	}
}

// take pops a free accumulator, or mints a new one. A popped entry is
// not reset: a freed entry is only ever appended when already IsDone.
func (p *Pool) take() *accum.Accumulator {
	if n := len(p.free); n > 0 {
		acc := p.free[n-1]
		p.free = p.free[:n-1]
		return acc
	}
	return p.newAccumulator()
}

// Len reports the number of currently bound (in-flight or mid-frame)
// peer addresses.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.bound)
}

// FreeLen reports the number of accumulators parked on the free list.
func (p *Pool) FreeLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Stats aggregates the resync/unknown-packet/invalid-frame counters
// across every accumulator this pool has ever bound, bound or free.
func (p *Pool) Stats() accum.Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	var total accum.Stats
	for _, e := range p.bound {
		s := e.acc.Stats()
		total.Resyncs += s.Resyncs
		total.UnknownPackets += s.UnknownPackets
		total.InvalidFrames += s.InvalidFrames
	}
	for _, acc := range p.free {
		s := acc.Stats()
		total.Resyncs += s.Resyncs
		total.UnknownPackets += s.UnknownPackets
		total.InvalidFrames += s.InvalidFrames
	}
	return total
}
