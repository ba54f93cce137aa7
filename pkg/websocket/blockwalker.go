package websocket

// nullSink is a blockSink that discards all structural events. It drives
// the same block-by-block traversal as Inflate but produces no output,
// used by BlockWalker to locate block boundaries without allocating.
type nullSink struct{}

func (nullSink) literal(byte)         {}
func (nullSink) copy(int, int) error  { return nil }

// WalkResult reports what BlockWalker found about the last block it
// visited.
type WalkResult struct {
	// LastBlockFinalBitPos is the absolute bit position of the BFINAL bit
	// of the last block visited, valid only if SawFinalBlock is true.
	LastBlockFinalBitPos bitCursor
	// SawFinalBlock is true if a block with BFINAL=1 was observed (and its
	// bit has already been cleared to 0 as a side effect).
	SawFinalBlock bool
	// LastBlockWasEmptyStored is true if the last block visited was a
	// BTYPE=00 (stored) block with LEN=0.
	LastBlockWasEmptyStored bool
	// EndBit is the bit position immediately after the last block visited.
	EndBit bitCursor
}

// WalkBlocks traverses every DEFLATE block in input starting at startBit,
// the same way Inflate does, but produces no decompressed output. It is
// used to locate where a compressor's output ends and whether the final
// block is a zero-length stored block, which PerMessageDeflate needs in
// order to comply with RFC 7692 §7.2.1.
//
// As a side effect, whenever a block with BFINAL=1 is observed, that bit
// is cleared to 0 in the underlying buffer: some servers reject BFINAL=1
// appearing mid-stream.
func WalkBlocks(input *ByteArray, startBit bitCursor) (WalkResult, error) {
	var result WalkResult
	cursor := startBit
	sink := nullSink{}

	for {
		if cursor >= input.BitLen() {
			result.EndBit = cursor
			return result, nil
		}
		finalBitPos := cursor
		var finalBit int
		finalBit, cursor = input.ReadBit(cursor)
		var btype uint32
		btype, cursor = input.ReadBitsLE(cursor, 2)

		storedLen, isStored := -1, btype == btypeStored
		var byteOffAfterHeader int
		if isStored {
			byteOffAfterHeader = int(AlignByte(cursor) / 8)
		}

		var err error
		cursor, err = inflateOneBlock(input, cursor, int(btype), sink)
		if err != nil {
			return result, err
		}

		result.LastBlockWasEmptyStored = false
		if isStored {
			storedLen = int(input.GetByte(byteOffAfterHeader)) | int(input.GetByte(byteOffAfterHeader+1))<<8
			result.LastBlockWasEmptyStored = storedLen == 0
		}

		if finalBit == 1 {
			input.ClearBit(finalBitPos)
			result.SawFinalBlock = true
			result.LastBlockFinalBitPos = finalBitPos
		}
		result.EndBit = cursor

		if finalBit == 1 || cursor >= input.BitLen() {
			return result, nil
		}
	}
}
