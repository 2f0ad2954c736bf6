// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netmgr

import "time"

// Options configures a Manager. It is supplied once at construction
// and treated as immutable afterward: the core never mutates it and
// never reloads it from a file or watcher.
type Options struct {
	UseHandlerThread bool
	HandlerQueueSize int

	PacketBufferInitialSize int

	ConnectionCheckTimeout time.Duration // <0 disables
	GlobalConnectionCheck  bool
	GlobalCheckInterval    time.Duration

	CompressionSize int // <0 disables

	UseEncoderThreadPool  bool
	EncoderThreadPoolSize int
	UseDecoderThreadPool  bool
	DecoderThreadPoolSize int

	DatagramPacketSize int
}

var defaultOptions = Options{
	UseHandlerThread:        false,
	HandlerQueueSize:        256,
	PacketBufferInitialSize: 256,
	ConnectionCheckTimeout:  -1,
	GlobalConnectionCheck:   false,
	GlobalCheckInterval:     5 * time.Second,
	CompressionSize:         -1,
	UseEncoderThreadPool:    false,
	EncoderThreadPoolSize:   4,
	UseDecoderThreadPool:    false,
	DecoderThreadPoolSize:   4,
	DatagramPacketSize:      2048,
}

// Option mutates an Options value at construction time.
type Option func(*Options)

// WithHandlerThread routes incoming packets through a single bounded
// worker thread instead of calling handlers inline on the I/O thread.
func WithHandlerThread() Option {
	return func(o *Options) { o.UseHandlerThread = true }
}

// WithHandlerQueueSize sets the bounded queue capacity used when
// WithHandlerThread is set.
func WithHandlerQueueSize(n int) Option {
	return func(o *Options) { o.HandlerQueueSize = n }
}

// WithPacketBufferInitialSize sets the initial capacity of each
// accumulator's growable buffer.
func WithPacketBufferInitialSize(n int) Option {
	return func(o *Options) { o.PacketBufferInitialSize = n }
}

// WithConnectionCheckTimeout sets how long an outstanding CHCK may go
// unanswered before the connection escalates to closing. Negative
// disables the timeout.
func WithConnectionCheckTimeout(d time.Duration) Option {
	return func(o *Options) { o.ConnectionCheckTimeout = d }
}

// WithGlobalConnectionCheck starts a periodic ticker that calls Tick on
// every open connection, at the given interval.
func WithGlobalConnectionCheck(interval time.Duration) Option {
	return func(o *Options) {
		o.GlobalConnectionCheck = true
		o.GlobalCheckInterval = interval
	}
}

// WithCompressionSize sets the minimum packet-bearing payload size (in
// bytes) at which compression is applied. Negative disables
// compression entirely.
func WithCompressionSize(n int) Option {
	return func(o *Options) { o.CompressionSize = n }
}

// WithEncoderThreadPool bounds the pipeline's EncodeAsync offload to n
// in-flight encodes. Connections encode with the synchronous
// Pipeline.Encode, so their sends are not offloaded.
func WithEncoderThreadPool(n int) Option {
	return func(o *Options) {
		o.UseEncoderThreadPool = true
		o.EncoderThreadPoolSize = n
	}
}

// WithDecoderThreadPool sets UseDecoderThreadPool and
// DecoderThreadPoolSize. No component reads them: decoding and dispatch
// always run on the goroutine that ingests the bytes.
func WithDecoderThreadPool(n int) Option {
	return func(o *Options) {
		o.UseDecoderThreadPool = true
		o.DecoderThreadPoolSize = n
	}
}

// WithDatagramPacketSize sets the size of the buffer UDPTransport.Serve
// reads each datagram into; one buffer serves every peer of a
// transport.
func WithDatagramPacketSize(n int) Option {
	return func(o *Options) { o.DatagramPacketSize = n }
}

// snapshot builds an immutable Options value from defaultOptions plus
// opts, the "one-way builder to immutable snapshot" the rest of the
// core's configurable surfaces follow.
func snapshot(opts []Option) Options {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
