// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package netio provides the non-blocking read/write retry idiom used by
// netmgr's stream transports: an underlying io.Reader/io.Writer may signal
// iox.ErrWouldBlock instead of blocking, and the caller retries according
// to a configured wait policy.
package netio

import (
	"errors"
	"io"
	"runtime"
	"time"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock means "no progress possible without waiting". Re-exposed
// from iox so callers outside this package need not import it directly.
var ErrWouldBlock = iox.ErrWouldBlock

// ErrMore means "this completion is usable and more completions follow".
var ErrMore = iox.ErrMore

// RetryPolicy controls how Retrier reacts to ErrWouldBlock.
//
//	negative: non-blocking, return ErrWouldBlock immediately
//	zero:     cooperative blocking, yield and retry
//	positive: cooperative blocking, sleep for the duration and retry
type RetryPolicy time.Duration

// Retrier wraps a reader and writer with the wait-and-retry loop netmgr's
// transports use to drive non-blocking sockets as if they were blocking,
// without ever parking a goroutine in the runtime scheduler for longer
// than the configured policy allows.
type Retrier struct {
	rd     io.Reader
	wr     io.Writer
	policy RetryPolicy
}

// New returns a Retrier around r and w using policy for both directions.
// Either r or w may be nil if only one direction is used.
func New(r io.Reader, w io.Writer, policy RetryPolicy) *Retrier {
	return &Retrier{rd: r, wr: w, policy: policy}
}

// waitOnce sleeps or yields once according to policy, reporting whether
// the caller should retry.
func (rt *Retrier) waitOnce() bool {
	if rt.policy < 0 {
		return false
	}
	if rt.policy == 0 {
		runtime.Gosched()
		return true
	}
	time.Sleep(time.Duration(rt.policy))
	return true
}

// ReadOnce reads into p, retrying across ErrWouldBlock according to the
// configured policy. It returns as soon as any progress (n>0) is made,
// or when the underlying reader returns a non-ErrWouldBlock error.
func (rt *Retrier) ReadOnce(p []byte) (n int, err error) {
	if rt.rd == nil {
		return 0, errors.New("netio: nil reader")
	}
	for {
		n, err = rt.rd.Read(p)
		if len(p) != 0 && n == 0 && err == nil {
			return 0, io.ErrNoProgress
		}
		if n > 0 {
			return n, err
		}
		if !errors.Is(err, ErrWouldBlock) {
			return n, err
		}
		if !rt.waitOnce() {
			return n, err
		}
	}
}

// WriteOnce writes p, retrying across ErrWouldBlock according to the
// configured policy.
func (rt *Retrier) WriteOnce(p []byte) (n int, err error) {
	if rt.wr == nil {
		return 0, errors.New("netio: nil writer")
	}
	for {
		n, err = rt.wr.Write(p)
		if len(p) != 0 && n == 0 && err == nil {
			return 0, io.ErrShortWrite
		}
		if n > 0 {
			return n, err
		}
		if !errors.Is(err, ErrWouldBlock) {
			return n, err
		}
		if !rt.waitOnce() {
			return n, err
		}
	}
}

// ReadFull reads until len(p) bytes have arrived. An ErrWouldBlock or
// ErrMore that arrives together with the last bytes counts as success;
// one that arrives before p is full is returned with the count read so
// far. It returns io.ErrUnexpectedEOF if the reader reaches EOF after
// some but not all of p is filled, and io.EOF if nothing was read.
func (rt *Retrier) ReadFull(p []byte) (n int, err error) {
	for n < len(p) {
		rn, re := rt.ReadOnce(p[n:])
		n += rn
		if re != nil {
			if errors.Is(re, ErrWouldBlock) || errors.Is(re, ErrMore) {
				if n == len(p) {
					return n, nil
				}
				return n, re
			}
			if re == io.EOF && n > 0 {
				return n, io.ErrUnexpectedEOF
			}
			return n, re
		}
	}
	return n, nil
}

// WriteFull writes until all of p is written. An ErrWouldBlock or
// ErrMore that arrives together with the last bytes counts as success;
// one that arrives earlier is returned with the count written so far.
func (rt *Retrier) WriteFull(p []byte) (n int, err error) {
	for n < len(p) {
		wn, we := rt.WriteOnce(p[n:])
		n += wn
		if we != nil {
			if errors.Is(we, ErrWouldBlock) || errors.Is(we, ErrMore) {
				if n == len(p) {
					return n, nil
				}
				return n, we
			}
			return n, we
		}
	}
	return n, nil
}
