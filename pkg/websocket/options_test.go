package websocket

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultOptions(t *testing.T) {
	o := DefaultOptions()
	if o.ValidatorMode != Strict {
		t.Errorf("ValidatorMode = %v, want Strict", o.ValidatorMode)
	}
	if o.FlushThreshold != time.Second {
		t.Errorf("FlushThreshold = %v, want 1s", o.FlushThreshold)
	}
	if o.PMDEnabled {
		t.Error("PMDEnabled = true, want false by default")
	}
}

func TestNewOptionsAppliesFuncsInOrder(t *testing.T) {
	o := NewOptions(
		WithValidatorMode(Extended),
		WithCloseDelay(2*time.Second),
		WithAutoFlush(true),
		WithMaxQueuedDataFrames(10),
	)
	if o.ValidatorMode != Extended {
		t.Errorf("ValidatorMode = %v, want Extended", o.ValidatorMode)
	}
	if o.CloseDelay != 2*time.Second {
		t.Errorf("CloseDelay = %v, want 2s", o.CloseDelay)
	}
	if !o.AutoFlush {
		t.Error("AutoFlush = false, want true")
	}
	if o.MaxQueuedDataFrames != 10 {
		t.Errorf("MaxQueuedDataFrames = %d, want 10", o.MaxQueuedDataFrames)
	}
}

func TestWithPermessageDeflate(t *testing.T) {
	params := PMDParams{ServerNoContextTakeover: true, ServerMaxWindowBits: 10, ClientMaxWindowBits: 10}
	o := NewOptions(WithPermessageDeflate(params, 5))
	if !o.PMDEnabled {
		t.Fatal("PMDEnabled = false, want true")
	}
	if o.PMD != params {
		t.Errorf("PMD = %+v, want %+v", o.PMD, params)
	}
	if o.DeflateLevel != 5 {
		t.Errorf("DeflateLevel = %d, want 5", o.DeflateLevel)
	}
}

func TestLoadOptionsOverlaysYAML(t *testing.T) {
	yamlDoc := `
validator_mode: 1
close_delay: 3s
auto_flush: true
`
	o, err := LoadOptions(strings.NewReader(yamlDoc))
	if err != nil {
		t.Fatalf("LoadOptions() error: %v", err)
	}
	if o.ValidatorMode != Extended {
		t.Errorf("ValidatorMode = %v, want Extended", o.ValidatorMode)
	}
	if o.CloseDelay != 3*time.Second {
		t.Errorf("CloseDelay = %v, want 3s", o.CloseDelay)
	}
	if !o.AutoFlush {
		t.Error("AutoFlush = false, want true")
	}
	// Fields absent from the document keep the default.
	if o.MaxQueuedDataFrames != DefaultOptions().MaxQueuedDataFrames {
		t.Errorf("MaxQueuedDataFrames = %d, want default", o.MaxQueuedDataFrames)
	}
}

func TestLoadOptionsEmptyDocumentKeepsDefaults(t *testing.T) {
	o, err := LoadOptions(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadOptions() error: %v", err)
	}
	if o != DefaultOptions() {
		t.Errorf("LoadOptions(empty) = %+v, want defaults %+v", o, DefaultOptions())
	}
}
