// Package commands implements the livedeck-log CLI commands.
package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/livedeck/livedeck-go/pkg/log"
)

// timestampLayout is used for every event header.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Direction *log.Direction
	Category  *log.Category
	Name      string
}

func (f ViewFilter) logFilter() log.Filter {
	return log.Filter{
		Direction: f.Direction,
		Category:  f.Category,
		Name:      f.Name,
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [session:id] DIRECTION Type
	ts := event.Timestamp.UTC().Format(timestampLayout)
	session := shortenSessionID(event.SessionID)
	if session == "" {
		session = "-"
	}

	fmt.Fprintf(w, "%s [session:%s] %-5s %s\n", ts, session, event.Direction.String(), typeLabel(event))

	switch {
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Control != nil:
		if event.Control.CloseCode != nil {
			fmt.Fprintf(w, "  Code: %d\n", *event.Control.CloseCode)
		}
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}
	if event.Address != "" {
		fmt.Fprintf(w, "  Address: %s\n", event.Address)
	}

	fmt.Fprintln(w) // Blank line between events
}

// typeLabel names the payload kind of an event.
func typeLabel(event log.Event) string {
	switch {
	case event.Message != nil:
		return event.Message.Type.String()
	case event.StateChange != nil:
		return "STATE"
	case event.Control != nil:
		return event.Control.Type.String()
	case event.Error != nil:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// shortenSessionID returns the first 8 characters of the session ID.
func shortenSessionID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatMessageDetails(w io.Writer, msg *log.MessageEvent) {
	if msg.Name != "" {
		fmt.Fprintf(w, "  Name: %s (op %d)\n", msg.Name, msg.OpCode)
	} else {
		fmt.Fprintf(w, "  Op: %d\n", msg.OpCode)
	}
	if msg.RequestID != "" {
		fmt.Fprintf(w, "  RequestID: %s\n", msg.RequestID)
	}

	if msg.Type == log.MessageTypeResponse {
		if msg.Result != nil {
			fmt.Fprintf(w, "  Result: %t", *msg.Result)
			if msg.StatusCode != nil {
				fmt.Fprintf(w, " (%d)", *msg.StatusCode)
			}
			fmt.Fprintln(w)
		}
		if msg.Comment != "" {
			fmt.Fprintf(w, "  Comment: %s\n", msg.Comment)
		}
		if msg.Latency != nil {
			fmt.Fprintf(w, "  Latency: %s\n", formatDuration(*msg.Latency))
		}
	}

	if len(msg.Payload) > 0 {
		fmt.Fprintf(w, "  Payload: %s", msg.Payload)
		if msg.Truncated {
			fmt.Fprint(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %d\n", *err.Code)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseDirectionFlag parses a direction string from command-line flag (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	case "local":
		return log.DirectionLocal, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in, out, or local)", s)
	}
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	c, ok := log.ParseCategory(s)
	if !ok {
		return 0, fmt.Errorf("invalid category: %s (must be message, control, state, or error)", s)
	}
	return c, nil
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.logFilter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}
}
