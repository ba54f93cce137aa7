package websocket

import "fmt"

// deflateTerminator is the 4-byte tail RFC 7692 §7.2.2 defines as the
// boundary marker every permessage-deflate payload implicitly ends with:
// an empty, non-final stored DEFLATE block. The compressor strips it
// before sending; the decompressor always re-appends it before inflating.
var deflateTerminator = [4]byte{0x00, 0x00, 0xff, 0xff}

// PMDParams holds the recognized permessage-deflate negotiated
// parameters. Any other extension parameter key fails negotiation; that
// parsing happens in the opening handshake, not here.
type PMDParams struct {
	ServerNoContextTakeover bool
	// ClientNoContextTakeover is accepted but only advisory in this
	// implementation: see the Deflater doc comment. The plaintext-length
	// gate in Compress is what actually keeps outbound back-references
	// within the agreed window.
	ClientNoContextTakeover bool
	ServerMaxWindowBits     int // 8..15, default 15
	ClientMaxWindowBits     int // 8..15, default 15
}

// DefaultPMDParams returns the parameter set implied by a bare
// "permessage-deflate" negotiation with no parameters.
func DefaultPMDParams() PMDParams {
	return PMDParams{ServerMaxWindowBits: 15, ClientMaxWindowBits: 15}
}

func (p PMDParams) serverWindowSize() int { return 1 << uint(p.ServerMaxWindowBits) }
func (p PMDParams) clientWindowSize() int { return 1 << uint(p.ClientMaxWindowBits) }

// PerMessageDeflate implements message-level (de)compression for RFC 7692:
// terminator append/strip, sliding-window retention, context-takeover
// policy, and the client-side compressibility gate.
type PerMessageDeflate struct {
	params   PMDParams
	window   *ByteArray // inbound sliding window, allocated lazily
	deflater *Deflater
}

// NewPerMessageDeflate constructs the adapter with the given negotiated
// parameters and compression level for the outbound compressor.
func NewPerMessageDeflate(params PMDParams, level int) (*PerMessageDeflate, error) {
	if params.ServerMaxWindowBits == 0 {
		params.ServerMaxWindowBits = 15
	}
	if params.ClientMaxWindowBits == 0 {
		params.ClientMaxWindowBits = 15
	}
	if params.ServerMaxWindowBits < 8 || params.ServerMaxWindowBits > 15 {
		return nil, fmt.Errorf("websocket: server_max_window_bits out of range [8,15]: %d", params.ServerMaxWindowBits)
	}
	if params.ClientMaxWindowBits < 8 || params.ClientMaxWindowBits > 15 {
		return nil, fmt.Errorf("websocket: client_max_window_bits out of range [8,15]: %d", params.ClientMaxWindowBits)
	}
	d, err := NewDeflater(level)
	if err != nil {
		return nil, err
	}
	return &PerMessageDeflate{params: params, deflater: d}, nil
}

// Close releases the outbound compressor.
func (p *PerMessageDeflate) Close() error { return p.deflater.Close() }

// Decompress implements the RFC 7692 §7.2.2 decompression algorithm:
//  1. Append 00 00 FF FF to the compressed payload.
//  2. Run inflate, appending into the persistent sliding-window buffer.
//  3. The emitted message is the slice of that buffer written during this call.
//  4. Shrink the buffer to server_window_size + 1024.
//  5. If server_no_context_takeover, clear the buffer.
func (p *PerMessageDeflate) Decompress(compressed []byte) ([]byte, error) {
	if p.window == nil {
		p.window = NewByteArray(nil)
	}
	tagged := make([]byte, 0, len(compressed)+4)
	tagged = append(tagged, compressed...)
	tagged = append(tagged, deflateTerminator[:]...)
	input := NewByteArray(tagged)

	start := p.window.Len()
	if err := Inflate(input, 0, p.window); err != nil {
		return nil, newDecompressionError("permessagedeflate.Decompress", err)
	}

	emitted := make([]byte, p.window.Len()-start)
	copy(emitted, p.window.Bytes()[start:])

	p.window.Shrink(p.params.serverWindowSize() + 1024)
	if p.params.ServerNoContextTakeover {
		p.window = NewByteArray(nil)
	}
	return emitted, nil
}

// Compress implements the RFC 7692 §7.2.1 compression algorithm. It
// returns the bytes to place on the wire and whether RSV1 should be set
// on the first frame of the resulting message (false when the gate
// declines and the message is emitted in plain form).
func (p *PerMessageDeflate) Compress(plain []byte) (payload []byte, compressed bool, err error) {
	// Gate: compress only if the client's negotiated window is the full
	// 32 KiB, or the plaintext is shorter than the negotiated window —
	// since this wrapper's compressor does not expose its internal
	// window, a longer plaintext could produce back-references beyond
	// what was agreed.
	clientWindow := p.params.clientWindowSize()
	if !(clientWindow == 32768 || len(plain) < clientWindow) {
		return plain, false, nil
	}

	raw, err := p.deflater.CompressMessage(plain)
	if err != nil {
		return nil, false, err
	}

	ba := NewByteArray(raw)
	result, err := WalkBlocks(ba, 0)
	if err != nil {
		return nil, false, newDecompressionError("permessagedeflate.Compress", err)
	}

	if result.LastBlockWasEmptyStored {
		// The compressor's own flush produced the RFC 7692 terminator
		// block; since it is exactly 4 bytes (LEN=0, NLEN=0xffff) after
		// byte alignment, stripping it removes precisely "00 00 ff ff".
		out := ba.Bytes()
		if len(out) < 4 {
			return nil, false, newDecompressionError("permessagedeflate.Compress", fmt.Errorf("stored terminator block shorter than 4 bytes"))
		}
		return out[:len(out)-4], true, nil
	}

	// The flush did not end in an empty stored block (e.g. a short
	// Huffman-only tail). Append BFINAL=0, BTYPE=00 (three 0 bits) at the
	// current cursor and pad to a byte boundary, yielding a new empty
	// block terminator without actually writing LEN/NLEN — the receiver
	// always re-appends "00 00 ff ff" unconditionally in Decompress, so
	// no further bytes are needed here. BFINAL is deliberately left 0
	// even though this is the last block ever written for this message:
	// some servers reject BFINAL=1 mid-stream, and this behavior must
	// not be "fixed".
	appendEmptyBlockTerminator(ba, result.EndBit)
	return ba.Bytes(), true, nil
}

// appendEmptyBlockTerminator grows a to cover a 3-bit all-zero block
// header (BFINAL=0, BTYPE=00) starting at cursor, padded to the next byte
// boundary. Trailing bits of a DEFLATE bitstream are conventionally zero,
// so no bit needs to be explicitly set — only the buffer's length must
// reach the aligned boundary.
func appendEmptyBlockTerminator(a *ByteArray, cursor bitCursor) bitCursor {
	end := cursor + 3
	aligned := AlignByte(end)
	needed := int(aligned / 8)
	for a.Len() < needed {
		a.PutByte(0)
	}
	return aligned
}
