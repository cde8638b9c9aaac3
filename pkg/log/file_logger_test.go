package log

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestFileLoggerCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "show"+FileExtension)

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("capture file was not created")
	}
	if logger.Path() != path {
		t.Errorf("Path() = %q, want %q", logger.Path(), path)
	}
}

func TestFileLoggerWritesCBOR(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.dlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	msg := &MessageEvent{Type: MessageTypeRequest, OpCode: 6, RequestID: "req-1", Name: "GetSceneList"}
	msg.SetPayload([]byte(`{"requestType":"GetSceneList"}`))
	logger.Log(Event{
		Timestamp: time.Now(),
		SessionID: "sess-123",
		Direction: DirectionOut,
		Category:  CategoryMessage,
		Message:   msg,
	})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read capture file: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}

	if decoded.SessionID != "sess-123" {
		t.Errorf("SessionID: got %q, want %q", decoded.SessionID, "sess-123")
	}
	if decoded.Message == nil {
		t.Fatal("Message is nil")
	}
	if decoded.Message.Name != "GetSceneList" {
		t.Errorf("Message.Name: got %q, want %q", decoded.Message.Name, "GetSceneList")
	}
	if !bytes.Equal(decoded.Message.Payload, msg.Payload) {
		t.Errorf("Message.Payload: got %q, want %q", decoded.Message.Payload, msg.Payload)
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.dlog")

	for _, id := range []string{"sess-1", "sess-2"} {
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("NewFileLogger failed: %v", err)
		}
		logger.Log(Event{Timestamp: time.Now(), SessionID: id, Category: CategoryState})
		logger.Close()
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	events, err := DecodeAll(f)
	if err != nil {
		t.Fatalf("DecodeAll failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].SessionID != "sess-1" || events[1].SessionID != "sess-2" {
		t.Errorf("unexpected order: %q, %q", events[0].SessionID, events[1].SessionID)
	}
}

func TestFileLoggerThreadSafe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.dlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	const numGoroutines = 10
	const eventsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				logger.Log(Event{
					Timestamp: time.Now(),
					SessionID: "sess-" + string(rune('A'+id)),
					Direction: DirectionIn,
					Category:  CategoryMessage,
				})
			}
		}(i)
	}
	wg.Wait()

	written, dropped := logger.Stats()
	logger.Close()

	if written != numGoroutines*eventsPerGoroutine || dropped != 0 {
		t.Errorf("Stats() = (%d, %d), want (%d, 0)", written, dropped, numGoroutines*eventsPerGoroutine)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read capture file: %v", err)
	}
	events, err := DecodeAll(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeAll failed: %v", err)
	}
	if len(events) != numGoroutines*eventsPerGoroutine {
		t.Errorf("expected %d events, got %d", numGoroutines*eventsPerGoroutine, len(events))
	}
}

func TestFileLoggerIgnoresLogAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.dlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger.Close()
	logger.Log(Event{Timestamp: time.Now()})

	if err := logger.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("file size = %d, want 0", info.Size())
	}
}
