package log

import (
	"bytes"
	"testing"
	"time"
)

func TestEventCBORRoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456789, time.UTC)
	code := 4011
	original := Event{
		Timestamp: ts,
		SessionID: "abc12345-def6-7890-abcd-ef1234567890",
		Direction: DirectionIn,
		Category:  CategoryError,
		Address:   "ws://192.168.1.100:4455",
		Error:     &ErrorEventData{Message: "session invalidated", Code: &code, Context: "read"},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if !decoded.Timestamp.Equal(ts) {
		t.Errorf("Timestamp: got %v, want %v (nanoseconds must survive)", decoded.Timestamp, ts)
	}
	if decoded.Address != original.Address {
		t.Errorf("Address: got %q, want %q", decoded.Address, original.Address)
	}
	if decoded.Error == nil || decoded.Error.Code == nil || *decoded.Error.Code != code {
		t.Errorf("Error: got %+v", decoded.Error)
	}
	if decoded.Message != nil || decoded.StateChange != nil || decoded.Control != nil {
		t.Error("unset payloads should decode as nil")
	}
}

func TestMessageEventSetPayload(t *testing.T) {
	t.Run("small", func(t *testing.T) {
		var m MessageEvent
		m.SetPayload([]byte(`{"a":1}`))
		if m.Truncated || string(m.Payload) != `{"a":1}` {
			t.Errorf("got %q truncated=%v", m.Payload, m.Truncated)
		}
	})

	t.Run("large", func(t *testing.T) {
		var m MessageEvent
		big := bytes.Repeat([]byte("x"), MaxPayloadSize+10)
		m.SetPayload(big)
		if !m.Truncated || len(m.Payload) != MaxPayloadSize {
			t.Errorf("len=%d truncated=%v", len(m.Payload), m.Truncated)
		}
	})
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
		ok   bool
	}{
		{"message", CategoryMessage, true},
		{"CONTROL", CategoryControl, true},
		{"State", CategoryState, true},
		{"error", CategoryError, true},
		{"frame", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseCategory(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseCategory(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestMultiLoggerFansOut(t *testing.T) {
	a := &recordingLogger{}
	b := &recordingLogger{}
	m := NewMultiLogger(a, nil, b)

	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}
	m.Log(Event{SessionID: "s"})
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("events: a=%d b=%d, want 1 each", len(a.events), len(b.events))
	}
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopLogger); !ok {
		t.Error("OrNoop(nil) should return NoopLogger")
	}
	r := &recordingLogger{}
	if OrNoop(r) != Logger(r) {
		t.Error("OrNoop should return non-nil logger unchanged")
	}
}

type recordingLogger struct {
	events []Event
}

func (r *recordingLogger) Log(e Event) { r.events = append(r.events, e) }
