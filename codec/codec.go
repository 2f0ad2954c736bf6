// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package codec implements the encode pipeline (C6), the dual of
// package accum: it takes a typed value and a wire.Format, produces a
// length-known buffer, optionally deflates it when at or above a
// configured size threshold, and prepends the 4-byte format tag.
package codec

import (
	"context"
	"encoding/binary"

	"golang.org/x/sync/semaphore"

	"code.hybscloud.com/netcore/wire"
)

// ErrBodyTooShort is returned when a compression-eligible format's
// encoded output is shorter than the fixed innerTag+length header it
// must carry.
var ErrBodyTooShort = errBodyTooShort{}

type errBodyTooShort struct{}

func (errBodyTooShort) Error() string { return "codec: encoded body shorter than packet header" }

// Pipeline wires a Compressor/Decompressor pair and a compression-size
// threshold around the format catalogue. compressionSize of -1 disables
// compression entirely, matching the config surface's documented
// sentinel.
type Pipeline struct {
	compressionSize int
	compressor      *Compressor
	decompressor    *Decompressor
	encodeSem       *semaphore.Weighted
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCompressionSize sets the minimum packet-bearing payload size (in
// bytes) at which compression kicks in. -1 disables compression.
func WithCompressionSize(n int) Option {
	return func(p *Pipeline) { p.compressionSize = n }
}

// WithEncoderThreadPool bounds concurrent EncodeAsync offload to at
// most n in-flight goroutines. n<=0 disables offload (EncodeAsync runs
// synchronously on the caller's goroutine).
func WithEncoderThreadPool(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.encodeSem = semaphore.NewWeighted(int64(n))
		} else {
			p.encodeSem = nil
		}
	}
}

// NewPipeline returns a Pipeline with compression disabled and no
// encoder thread pool by default.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{compressionSize: -1}
	for _, opt := range opts {
		opt(p)
	}
	if p.compressionSize >= 0 {
		p.compressor = NewCompressor()
		p.decompressor = NewDecompressor()
	}
	return p
}

// Decompressor exposes the pipeline's inflater so package accum can
// unwrap compressed frames using the exact same codec this Pipeline
// encoded them with.
func (p *Pipeline) Decompressor() *Decompressor { return p.decompressor }

// Close releases the pipeline's native compression/decompression
// resources. A Pipeline with compression disabled has nothing to
// release.
func (p *Pipeline) Close() error {
	if p.decompressor == nil {
		return nil
	}
	return p.decompressor.r.Close()
}

// Encode produces the full frame (outer 4-byte tag plus format
// payload, compression applied when eligible and over threshold),
// ready to write to a transport.
func (p *Pipeline) Encode(f wire.Format, data any, suggestedSize int) ([]byte, error) {
	raw, err := f.Encode(data, suggestedSize)
	if err != nil {
		return nil, err
	}

	if !f.SupportsCompression() || p.compressionSize < 0 {
		out := make([]byte, 4+len(raw))
		copy(out, f.Tag().String())
		copy(out[4:], raw)
		return out, nil
	}

	if len(raw) < 8 {
		return nil, ErrBodyTooShort
	}
	typeID := raw[0:4]
	body := raw[8:]

	var wrapped []byte
	if len(body) >= p.compressionSize {
		compressed, cerr := p.compressor.Deflate(body)
		if cerr != nil {
			return nil, cerr
		}
		wrapped = make([]byte, 4+len(compressed))
		binary.LittleEndian.PutUint32(wrapped[0:4], uint32(len(body)))
		copy(wrapped[4:], compressed)
	} else {
		wrapped = make([]byte, 4+len(body))
		binary.LittleEndian.PutUint32(wrapped[0:4], 0)
		copy(wrapped[4:], body)
	}

	out := make([]byte, 4+4+4+len(wrapped))
	copy(out, f.Tag().String())
	copy(out[4:8], typeID)
	binary.LittleEndian.PutUint32(out[8:12], uint32(len(wrapped)))
	copy(out[12:], wrapped)
	return out, nil
}

// EncodeResult carries the outcome of an offloaded Encode call.
type EncodeResult struct {
	Frame []byte
	Err   error
}

// EncodeAsync runs Encode on a worker bounded by the pipeline's encoder
// thread pool (see WithEncoderThreadPool), returning a channel that
// receives exactly one EncodeResult. When no thread pool is
// configured, Encode runs synchronously and the result channel is
// already populated on return.
func (p *Pipeline) EncodeAsync(ctx context.Context, f wire.Format, data any, suggestedSize int) <-chan EncodeResult {
	ch := make(chan EncodeResult, 1)
	if p.encodeSem == nil {
		frame, err := p.Encode(f, data, suggestedSize)
		ch <- EncodeResult{Frame: frame, Err: err}
		return ch
	}
	if err := p.encodeSem.Acquire(ctx, 1); err != nil {
		ch <- EncodeResult{Err: err}
		return ch
	}
	go func() {
		defer p.encodeSem.Release(1)
		frame, err := p.Encode(f, data, suggestedSize)
		ch <- EncodeResult{Frame: frame, Err: err}
	}()
	return ch
}
