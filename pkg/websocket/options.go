package websocket

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Options configures a ConnectionManager. The zero value is not valid;
// use NewOptions, which applies the documented defaults before any
// OptionFunc runs.
type Options struct {
	ValidatorMode ValidatorMode `yaml:"validator_mode"`

	// CloseDelay bounds how long ReaderTask waits, after it has sent or
	// received a close frame, for the peer's own close frame before the
	// transport is torn down regardless.
	CloseDelay time.Duration `yaml:"close_delay"`

	// MaxQueuedDataFrames bounds the outbound queue's data-frame
	// back-pressure (0 = unbounded). Control frames always bypass it.
	MaxQueuedDataFrames int `yaml:"max_queued_data_frames"`

	// AutoFlush, when true, makes WriterTask flush after every frame
	// instead of only at the FlushThreshold cadence and on control frames.
	AutoFlush bool `yaml:"auto_flush"`

	// FlushThreshold is the target time a data frame may sit written-but-
	// unflushed before the writer flushes anyway (default: 1s).
	FlushThreshold time.Duration `yaml:"flush_threshold"`

	// TolerateMissingCloseFrame, when true, makes ReaderTask end cleanly on
	// a transport EOF outside the CLOSING state instead of closing with
	// CloseAbnormal. An EOF during CLOSING always ends it cleanly.
	TolerateMissingCloseFrame bool `yaml:"tolerate_missing_close_frame"`

	// MaxFramePayload bounds a single frame's payload length (0 = apply
	// DefaultMaxFramePayload). ReadFrame rejects anything larger with an
	// Oversize close before allocating a payload buffer.
	MaxFramePayload int64 `yaml:"max_frame_payload"`

	// MaxMessagePayload bounds the reassembled size of a fragmented
	// message (0 = unbounded). Exceeding it closes with Oversize rather
	// than letting an unbounded number of continuation frames grow the
	// accumulator without limit.
	MaxMessagePayload int64 `yaml:"max_message_payload"`

	PMD            PMDParams `yaml:"permessage_deflate"`
	PMDEnabled     bool      `yaml:"permessage_deflate_enabled"`
	DeflateLevel   int       `yaml:"deflate_level"`
}

// DefaultOptions returns the baseline configuration before any
// OptionFunc is applied.
func DefaultOptions() Options {
	return Options{
		ValidatorMode:        Strict,
		CloseDelay:           5 * time.Second,
		MaxQueuedDataFrames:  256,
		AutoFlush:            false,
		FlushThreshold:       time.Second,
		MaxFramePayload:      DefaultMaxFramePayload,
		MaxMessagePayload:    64 << 20,
		PMD:                  DefaultPMDParams(),
		PMDEnabled:           false,
		DeflateLevel:         -1, // flate.DefaultCompression
	}
}

// OptionFunc mutates an Options in place. Options compose left to right,
// each overriding whatever earlier ones set.
type OptionFunc func(*Options)

// NewOptions builds an Options starting from DefaultOptions and applying
// opts in order.
func NewOptions(opts ...OptionFunc) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithValidatorMode overrides the reserved-bit/opcode strictness.
func WithValidatorMode(mode ValidatorMode) OptionFunc {
	return func(o *Options) { o.ValidatorMode = mode }
}

// WithCloseDelay overrides how long the reader waits for the peer's close
// frame after initiating or observing a close handshake.
func WithCloseDelay(d time.Duration) OptionFunc {
	return func(o *Options) { o.CloseDelay = d }
}

// WithMaxQueuedDataFrames overrides the outbound back-pressure bound.
func WithMaxQueuedDataFrames(n int) OptionFunc {
	return func(o *Options) { o.MaxQueuedDataFrames = n }
}

// WithAutoFlush enables a flush after every queued frame.
func WithAutoFlush(enabled bool) OptionFunc {
	return func(o *Options) { o.AutoFlush = enabled }
}

// WithFlushThreshold overrides the writer's maximum flush latency.
func WithFlushThreshold(d time.Duration) OptionFunc {
	return func(o *Options) { o.FlushThreshold = d }
}

// WithTolerateMissingCloseFrame relaxes the EOF handling outside CLOSING.
func WithTolerateMissingCloseFrame(tolerate bool) OptionFunc {
	return func(o *Options) { o.TolerateMissingCloseFrame = tolerate }
}

// WithMaxFramePayload overrides the per-frame payload bound ReadFrame
// enforces.
func WithMaxFramePayload(n int64) OptionFunc {
	return func(o *Options) { o.MaxFramePayload = n }
}

// WithMaxMessagePayload overrides the reassembled-message size bound.
func WithMaxMessagePayload(n int64) OptionFunc {
	return func(o *Options) { o.MaxMessagePayload = n }
}

// WithPermessageDeflate enables permessage-deflate with the given
// negotiated parameters and compression level.
func WithPermessageDeflate(params PMDParams, level int) OptionFunc {
	return func(o *Options) {
		o.PMDEnabled = true
		o.PMD = params
		o.DeflateLevel = level
	}
}

// LoadOptions reads a YAML document from r and overlays it onto
// DefaultOptions. A field absent from the document keeps its default.
func LoadOptions(r io.Reader) (Options, error) {
	o := DefaultOptions()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&o); err != nil && err != io.EOF {
		return Options{}, newIOError("options.LoadOptions", err)
	}
	return o, nil
}

// optionsYAML mirrors Options but spells durations as strings
// ("3s", "500ms"), the form operators actually write in a YAML file.
// UnmarshalYAML decodes into this shape and converts.
type optionsYAML struct {
	ValidatorMode             ValidatorMode `yaml:"validator_mode"`
	CloseDelay                string        `yaml:"close_delay"`
	MaxQueuedDataFrames       int           `yaml:"max_queued_data_frames"`
	AutoFlush                 bool          `yaml:"auto_flush"`
	FlushThreshold            string        `yaml:"flush_threshold"`
	TolerateMissingCloseFrame bool          `yaml:"tolerate_missing_close_frame"`
	MaxFramePayload           int64         `yaml:"max_frame_payload"`
	MaxMessagePayload         int64         `yaml:"max_message_payload"`
	PMD                       PMDParams     `yaml:"permessage_deflate"`
	PMDEnabled                bool          `yaml:"permessage_deflate_enabled"`
	DeflateLevel              int           `yaml:"deflate_level"`
}

// UnmarshalYAML lets Options decode duration fields as "3s"-style strings
// instead of raw nanosecond counts, starting from DefaultOptions so that
// any field the document omits keeps its default.
func (o *Options) UnmarshalYAML(value *yaml.Node) error {
	def := DefaultOptions()
	raw := optionsYAML{
		ValidatorMode:             def.ValidatorMode,
		CloseDelay:                def.CloseDelay.String(),
		MaxQueuedDataFrames:       def.MaxQueuedDataFrames,
		AutoFlush:                 def.AutoFlush,
		FlushThreshold:            def.FlushThreshold.String(),
		TolerateMissingCloseFrame: def.TolerateMissingCloseFrame,
		MaxFramePayload:           def.MaxFramePayload,
		MaxMessagePayload:         def.MaxMessagePayload,
		PMD:                       def.PMD,
		PMDEnabled:                def.PMDEnabled,
		DeflateLevel:              def.DeflateLevel,
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	closeDelay, err := time.ParseDuration(raw.CloseDelay)
	if err != nil {
		return fmt.Errorf("websocket: invalid close_delay %q: %w", raw.CloseDelay, err)
	}
	flushThreshold, err := time.ParseDuration(raw.FlushThreshold)
	if err != nil {
		return fmt.Errorf("websocket: invalid flush_threshold %q: %w", raw.FlushThreshold, err)
	}

	o.ValidatorMode = raw.ValidatorMode
	o.CloseDelay = closeDelay
	o.MaxQueuedDataFrames = raw.MaxQueuedDataFrames
	o.AutoFlush = raw.AutoFlush
	o.FlushThreshold = flushThreshold
	o.TolerateMissingCloseFrame = raw.TolerateMissingCloseFrame
	o.MaxFramePayload = raw.MaxFramePayload
	o.MaxMessagePayload = raw.MaxMessagePayload
	o.PMD = raw.PMD
	o.PMDEnabled = raw.PMDEnabled
	o.DeflateLevel = raw.DeflateLevel
	return nil
}
