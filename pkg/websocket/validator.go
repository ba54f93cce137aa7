package websocket

// ValidatorMode selects how strictly FrameValidator enforces RFC 6455.
type ValidatorMode int

const (
	// Strict enforces reserved-bit and unknown-opcode checks.
	Strict ValidatorMode = iota
	// Extended skips the reserved-bit and unknown-opcode checks, for
	// interop with servers that set extension bits this client did not
	// negotiate.
	Extended
)

// FrameValidator applies the inbound frame checks RFC 6455 requires
// before a frame is handed to ReaderTask for dispatch. It tracks whether
// a fragmented message accumulator is currently open, since that
// determines which opcodes are legal next.
type FrameValidator struct {
	mode               ValidatorMode
	permessageDeflate  bool // whether RSV1 may mean "compressed" on a first frame
	continuationOpen   bool
}

// NewFrameValidator constructs a validator. permessageDeflate should be
// true when the connection negotiated the extension, which relaxes the
// RSV1 check for the first frame of a data message.
func NewFrameValidator(mode ValidatorMode, permessageDeflate bool) *FrameValidator {
	return &FrameValidator{mode: mode, permessageDeflate: permessageDeflate}
}

// Validate checks f against RFC 6455's framing rules and updates the
// fragmentation tracking state. It must be called, in order, on every
// inbound frame before dispatch.
func (v *FrameValidator) Validate(f Frame) error {
	if v.mode == Strict {
		if f.Rsv2 || f.Rsv3 {
			return newFormatError("validator.Validate", CloseUnconformed, ErrUnexpectedReservedBit)
		}
		if f.Rsv1 {
			firstFrameOfMessage := !v.continuationOpen && (f.Opcode == OpText || f.Opcode == OpBinary)
			if !v.permessageDeflate || !firstFrameOfMessage {
				return newFormatError("validator.Validate", CloseUnconformed, ErrUnexpectedReservedBit)
			}
		}
		if !f.Opcode.known() {
			return newFormatError("validator.Validate", CloseUnconformed, ErrUnknownOpcode)
		}
	}

	if f.Masked {
		return newFormatError("validator.Validate", CloseUnconformed, ErrFrameMasked)
	}

	if f.Opcode.IsControl() {
		if !f.Fin {
			return newFormatError("validator.Validate", CloseUnconformed, ErrFragmentedControlFrame)
		}
		if len(f.Payload) > 125 {
			return newFormatError("validator.Validate", CloseUnconformed, ErrTooLongControlFramePayload)
		}
		return nil // Control frames may interleave; they don't affect accumulator state.
	}

	switch f.Opcode {
	case OpContinuation:
		if !v.continuationOpen {
			return newFormatError("validator.Validate", CloseUnconformed, ErrUnexpectedContinuationFrame)
		}
		if f.Fin {
			v.continuationOpen = false
		}
	case OpText, OpBinary:
		if v.continuationOpen {
			return newFormatError("validator.Validate", CloseUnconformed, ErrContinuationNotClosed)
		}
		if !f.Fin {
			v.continuationOpen = true
		}
	}
	return nil
}
