package websocket

// Package-level RFC 1951 §3.2.5 tables: base value and number of extra
// bits for each length code (257-285) and distance code (0-29).
var lengthBase = [29]int{
	3, 4, 5, 6, 7, 8, 9, 10, 11, 13,
	15, 17, 19, 23, 27, 31, 35, 43, 51, 59,
	67, 83, 99, 115, 131, 163, 195, 227, 258,
}
var lengthExtraBits = [29]int{
	0, 0, 0, 0, 0, 0, 0, 0, 1, 1,
	1, 1, 2, 2, 2, 2, 3, 3, 3, 3,
	4, 4, 4, 4, 5, 5, 5, 5, 0,
}
var distanceBase = [30]int{
	1, 2, 3, 4, 5, 7, 9, 13, 17, 25,
	33, 49, 65, 97, 129, 193, 257, 385, 513, 769,
	1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577,
}
var distanceExtraBits = [30]int{
	0, 0, 0, 0, 1, 1, 2, 2, 3, 3,
	4, 4, 5, 5, 6, 6, 7, 7, 8, 8,
	9, 9, 10, 10, 11, 11, 12, 12, 13, 13,
}

// codeLengthOrder is the order in which code-length-code lengths appear in
// a dynamic Huffman block header (RFC 1951 §3.2.7).
var codeLengthOrder = [19]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

const endOfBlock = 256

// blockType values (RFC 1951 §3.2.3).
const (
	btypeStored = 0
	btypeFixed  = 1
	btypeDynamic = 2
	btypeReserved = 3
)

// readDynamicTables parses a dynamic-Huffman block header starting at
// cursor (just after BFINAL/BTYPE) and returns the literal/length and
// distance decoders, per RFC 1951 §3.2.7.
func readDynamicTables(a *ByteArray, cursor bitCursor) (lit, dist *Huffman, next bitCursor, err error) {
	var hlit, hdist, hclen uint32
	hlit, cursor = a.ReadBitsLE(cursor, 5)
	hdist, cursor = a.ReadBitsLE(cursor, 5)
	hclen, cursor = a.ReadBitsLE(cursor, 4)
	numLit := int(hlit) + 257
	numDist := int(hdist) + 1
	numCLen := int(hclen) + 4

	clLengths := make([]int, 19)
	for i := 0; i < numCLen; i++ {
		var v uint32
		v, cursor = a.ReadBitsLE(cursor, 3)
		clLengths[codeLengthOrder[i]] = int(v)
	}
	clHuffman := NewHuffman(clLengths)

	allLengths := make([]int, numLit+numDist)
	for i := 0; i < len(allLengths); {
		sym, next2, derr := clHuffman.Decode(a, cursor)
		if derr != nil {
			return nil, nil, cursor, derr
		}
		cursor = next2
		switch {
		case sym < 16:
			allLengths[i] = sym
			i++
		case sym == 16: // Copy the previous code length 3-6 times.
			if i == 0 {
				return nil, nil, cursor, newFormatError("inflate.readDynamicTables", CloseUnconformed, ErrInvalidPayloadLength)
			}
			var rep uint32
			rep, cursor = a.ReadBitsLE(cursor, 2)
			count := int(rep) + 3
			prev := allLengths[i-1]
			for j := 0; j < count && i < len(allLengths); j++ {
				allLengths[i] = prev
				i++
			}
		case sym == 17: // Repeat a code length of 0 for 3-10 times.
			var rep uint32
			rep, cursor = a.ReadBitsLE(cursor, 3)
			count := int(rep) + 3
			for j := 0; j < count && i < len(allLengths); j++ {
				allLengths[i] = 0
				i++
			}
		case sym == 18: // Repeat a code length of 0 for 11-138 times.
			var rep uint32
			rep, cursor = a.ReadBitsLE(cursor, 7)
			count := int(rep) + 11
			for j := 0; j < count && i < len(allLengths); j++ {
				allLengths[i] = 0
				i++
			}
		}
	}
	lit = NewHuffman(allLengths[:numLit])
	dist = NewHuffman(allLengths[numLit:])
	return lit, dist, cursor, nil
}

// decodeBlockData decodes the data phase of a fixed or dynamic Huffman
// block starting at cursor, per RFC 1951 §3.2.3. sink receives literal
// bytes and back-reference copies; it may be a no-op (BlockWalker) or an
// appending ByteArray (Inflater).
func decodeBlockData(a *ByteArray, cursor bitCursor, lit, dist *Huffman, sink blockSink) (next bitCursor, err error) {
	for {
		sym, n, derr := lit.Decode(a, cursor)
		if derr != nil {
			return cursor, derr
		}
		cursor = n
		switch {
		case sym < 256:
			sink.literal(byte(sym))
		case sym == endOfBlock:
			return cursor, nil
		default:
			idx := sym - 257
			if idx < 0 || idx >= len(lengthBase) {
				return cursor, newFormatError("inflate.decodeBlockData", CloseUnconformed, ErrInvalidPayloadLength)
			}
			length := lengthBase[idx]
			if eb := lengthExtraBits[idx]; eb > 0 {
				var extra uint32
				extra, cursor = a.ReadBitsLE(cursor, eb)
				length += int(extra)
			}
			dsym, n2, derr2 := dist.Decode(a, cursor)
			if derr2 != nil {
				return cursor, derr2
			}
			cursor = n2
			if dsym < 0 || dsym >= len(distanceBase) {
				return cursor, newFormatError("inflate.decodeBlockData", CloseUnconformed, ErrInvalidPayloadLength)
			}
			distance := distanceBase[dsym]
			if eb := distanceExtraBits[dsym]; eb > 0 {
				var extra uint32
				extra, cursor = a.ReadBitsLE(cursor, eb)
				distance += int(extra)
			}
			if err := sink.copy(length, distance); err != nil {
				return cursor, err
			}
		}
	}
}

// blockSink receives the structural events of a DEFLATE data phase,
// shared between the Inflater (which materializes bytes) and the
// BlockWalker (which only tracks position).
type blockSink interface {
	literal(b byte)
	copy(length, distance int) error
}

// outputSink is a blockSink that appends to an output ByteArray. Each
// back-reference byte is resolved against the buffer's length at the
// moment it is copied, so a distance shorter than the run length
// naturally repeats the already-copied bytes: a length-5, distance-2
// back-reference after "X,Y" produces "X,Y,X,Y,X".
type outputSink struct {
	out *ByteArray
}

func (s *outputSink) literal(b byte) { s.out.PutByte(b) }

func (s *outputSink) copy(length, distance int) error {
	for i := 0; i < length; i++ {
		pos := s.out.Len() - distance
		if pos < 0 {
			return newFormatError("inflate.copy", CloseUnconformed, ErrInvalidPayloadLength)
		}
		s.out.PutByte(s.out.GetByte(pos))
	}
	return nil
}

// Inflate decompresses a raw (header-less) RFC 1951 DEFLATE stream starting
// at bit offset startBit in input, appending decompressed bytes to output.
// It reads blocks until one with BFINAL=1 is consumed, or the input is
// exhausted — the latter is treated as end-of-stream too, since some
// servers truncate the final empty block.
func Inflate(input *ByteArray, startBit bitCursor, output *ByteArray) error {
	cursor := startBit
	sink := &outputSink{out: output}

	for {
		if cursor >= input.BitLen() {
			return nil // Input exhausted without an explicit final block: treat as done.
		}
		var finalBit int
		finalBit, cursor = input.ReadBit(cursor)
		var btype uint32
		btype, cursor = input.ReadBitsLE(cursor, 2)

		var err error
		cursor, err = inflateOneBlock(input, cursor, int(btype), sink)
		if err != nil {
			return err
		}
		if finalBit == 1 {
			return nil
		}
		if cursor >= input.BitLen() {
			return nil
		}
	}
}

func inflateOneBlock(input *ByteArray, cursor bitCursor, btype int, sink blockSink) (bitCursor, error) {
	switch btype {
	case btypeStored:
		cursor = AlignByte(cursor)
		byteOff := int(cursor / 8)
		if byteOff+4 > input.Len() {
			return cursor, newFormatError("inflate.stored", CloseUnconformed, ErrInsufficientData)
		}
		length := int(input.GetByte(byteOff)) | int(input.GetByte(byteOff+1))<<8
		// NLEN (byteOff+2, byteOff+3) is not verified.
		byteOff += 4
		if byteOff+length > input.Len() {
			return cursor, newFormatError("inflate.stored", CloseUnconformed, ErrInsufficientData)
		}
		for i := 0; i < length; i++ {
			sink.literal(input.GetByte(byteOff + i))
		}
		return bitCursor(8 * (byteOff + length)), nil

	case btypeFixed:
		return decodeBlockData(input, cursor, FixedLiteralHuffman(), FixedDistanceHuffman(), sink)

	case btypeDynamic:
		lit, dist, next, err := readDynamicTables(input, cursor)
		if err != nil {
			return next, err
		}
		return decodeBlockData(input, next, lit, dist, sink)

	default: // btypeReserved
		return cursor, newFormatError("inflate.block", CloseUnconformed, ErrBadBlockType)
	}
}
