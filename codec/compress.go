// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codec

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"
)

// Compressor deflates packet-bearing frame bodies above the configured
// compression threshold. Stateful and, per the resource model,
// single-threaded by convention: callers must not share one instance
// across goroutines.
type Compressor struct {
	buf bytes.Buffer
	w   *flate.Writer
}

// NewCompressor returns a Compressor ready for repeated use.
func NewCompressor() *Compressor {
	w, _ := flate.NewWriter(nil, flate.DefaultCompression)
	return &Compressor{w: w}
}

// Deflate compresses b, returning a fresh slice the caller owns.
func (c *Compressor) Deflate(b []byte) ([]byte, error) {
	c.buf.Reset()
	c.w.Reset(&c.buf)
	if _, err := c.w.Write(b); err != nil {
		return nil, err
	}
	if err := c.w.Close(); err != nil {
		return nil, err
	}
	out := make([]byte, c.buf.Len())
	copy(out, c.buf.Bytes())
	return out, nil
}

// Decompressor inflates deflate bytes produced by a Compressor back
// into an exact-size target, asserting the decoded length matches the
// caller-supplied uncompressed length. Stateful, single-threaded by
// convention, matching Compressor.
type Decompressor struct {
	rc flate.Resetter
	r  io.ReadCloser
}

// NewDecompressor returns a Decompressor ready for repeated use.
func NewDecompressor() *Decompressor {
	r := flate.NewReader(bytes.NewReader(nil))
	return &Decompressor{r: r, rc: r.(flate.Resetter)}
}

// Inflate decompresses compressed into exactly uncompressedLen bytes,
// implementing the accum.Decompressor contract.
func (d *Decompressor) Inflate(compressed []byte, uncompressedLen int) ([]byte, error) {
	if err := d.rc.Reset(bytes.NewReader(compressed), nil); err != nil {
		return nil, err
	}
	out := make([]byte, uncompressedLen)
	if _, err := io.ReadFull(d.r, out); err != nil {
		return nil, err
	}
	var extra [1]byte
	if n, _ := d.r.Read(extra[:]); n != 0 {
		return nil, io.ErrShortBuffer
	}
	return out, nil
}
