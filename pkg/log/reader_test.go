package log

import (
	"io"
	"path/filepath"
	"testing"
	"time"
)

func createTestCapture(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.dlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test capture: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var read []Event
	for {
		event, err := r.Next()
		if err == io.EOF {
			return read
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		read = append(read, event)
	}
}

func TestReaderIteratesEvents(t *testing.T) {
	path := createTestCapture(t, []Event{
		{Timestamp: time.Now(), SessionID: "sess-1", Direction: DirectionOut, Category: CategoryMessage},
		{Timestamp: time.Now(), SessionID: "sess-2", Direction: DirectionIn, Category: CategoryMessage},
		{Timestamp: time.Now(), SessionID: "sess-3", Direction: DirectionLocal, Category: CategoryState},
	})

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	read := readAll(t, reader)
	if len(read) != 3 {
		t.Fatalf("got %d events, want 3", len(read))
	}
	if read[0].SessionID != "sess-1" {
		t.Errorf("first event SessionID = %q, want %q", read[0].SessionID, "sess-1")
	}
	if read[2].SessionID != "sess-3" {
		t.Errorf("last event SessionID = %q, want %q", read[2].SessionID, "sess-3")
	}
}

func TestReaderHandlesEmptyFile(t *testing.T) {
	path := createTestCapture(t, nil)

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	if event, err := reader.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got err=%v, event=%+v", err, event)
	}
}

func TestReaderFilters(t *testing.T) {
	base := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: base.Add(-time.Hour), SessionID: "A", Direction: DirectionOut, Category: CategoryMessage,
			Message: &MessageEvent{Type: MessageTypeRequest, Name: "GetSceneList"}},
		{Timestamp: base, SessionID: "B", Direction: DirectionIn, Category: CategoryMessage,
			Message: &MessageEvent{Type: MessageTypeEvent, Name: "CurrentProgramSceneChanged"}},
		{Timestamp: base.Add(time.Minute), SessionID: "A", Direction: DirectionLocal, Category: CategoryState,
			StateChange: &StateChangeEvent{NewState: "connected"}},
		{Timestamp: base.Add(time.Hour), SessionID: "A", Direction: DirectionIn, Category: CategoryError,
			Error: &ErrorEventData{Message: "boom"}},
	}
	path := createTestCapture(t, events)

	in := DirectionIn
	state := CategoryState
	start := base
	end := base.Add(time.Hour)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"session", Filter{SessionID: "A"}, 3},
		{"direction", Filter{Direction: &in}, 2},
		{"category", Filter{Category: &state}, 1},
		{"name", Filter{Name: "GetSceneList"}, 1},
		{"time range", Filter{TimeStart: &start, TimeEnd: &end}, 2},
		{"combined", Filter{SessionID: "A", Direction: &in}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, err := NewFilteredReader(path, tt.filter)
			if err != nil {
				t.Fatalf("NewFilteredReader failed: %v", err)
			}
			defer reader.Close()

			read := readAll(t, reader)
			if len(read) != tt.want {
				t.Errorf("got %d events, want %d", len(read), tt.want)
			}
			for _, e := range read {
				if !tt.filter.Matches(e) {
					t.Errorf("event %+v does not match filter", e)
				}
			}
		})
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "missing.dlog")); err == nil {
		t.Error("expected error for missing file")
	}
}
