package websocket

import (
	"bytes"

	"github.com/klauspost/compress/flate"
)

// Deflater is a thin contract over a raw (header-less) DEFLATE compressor.
// This package never reimplements the compressor itself — only the
// inflater is hand-written — so this wraps klauspost/compress/flate, a
// drop-in replacement for the standard library's own raw DEFLATE writer.
//
// The underlying flate.Writer is created once and kept alive across calls
// to CompressMessage, which is why client_no_context_takeover can only be
// advisory: this wrapper has no access to the compressor's internal
// sliding window, so it cannot force it to forget prior messages.
// PerMessageDeflate's plaintext-length gate exists specifically to route
// around that limitation.
type Deflater struct {
	buf *bytes.Buffer
	w   *flate.Writer
}

// NewDeflater returns a Deflater at the given compression level (one of
// the flate.* level constants, or flate.DefaultCompression).
func NewDeflater(level int) (*Deflater, error) {
	buf := &bytes.Buffer{}
	w, err := flate.NewWriter(buf, level)
	if err != nil {
		return nil, newIOError("deflate.NewDeflater", err)
	}
	return &Deflater{buf: buf, w: w}, nil
}

// CompressMessage writes plain through the persistent compressor and
// returns exactly the bytes produced by flushing it to a deterministic
// block boundary (a Z_SYNC_FLUSH equivalent), with the compressor's
// dictionary left intact for the next message.
func (d *Deflater) CompressMessage(plain []byte) ([]byte, error) {
	d.buf.Reset()
	if _, err := d.w.Write(plain); err != nil {
		return nil, newIOError("deflate.CompressMessage", err)
	}
	if err := d.w.Flush(); err != nil {
		return nil, newIOError("deflate.CompressMessage", err)
	}
	out := make([]byte, d.buf.Len())
	copy(out, d.buf.Bytes())
	return out, nil
}

// Close releases the underlying compressor. Call it once, when the
// connection that owns this Deflater tears down.
func (d *Deflater) Close() error {
	return d.w.Close()
}
