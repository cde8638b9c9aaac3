package commands

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/livedeck/livedeck-go/pkg/log"
)

// Stats holds aggregate statistics about a capture file.
type Stats struct {
	TotalEvents       int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Sessions          map[string]*SessionStats
	Requests          map[string]*RequestStats
	StateChanges      int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// SessionStats holds statistics for a single transport session.
type SessionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Address   string
	CloseCode *int
}

// RequestStats holds response statistics for one request type.
type RequestStats struct {
	Count        int
	Failed       int
	TotalLatency time.Duration
	MaxLatency   time.Duration
}

// AverageLatency returns the mean round trip of the counted responses.
func (r *RequestStats) AverageLatency() time.Duration {
	if r.Count == 0 {
		return 0
	}
	return r.TotalLatency / time.Duration(r.Count)
}

func newStats() *Stats {
	return &Stats{
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Sessions:          make(map[string]*SessionStats),
		Requests:          make(map[string]*RequestStats),
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	if event.SessionID != "" {
		session, ok := s.Sessions[event.SessionID]
		if !ok {
			session = &SessionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
			s.Sessions[event.SessionID] = session
		}
		session.Events++
		if event.Timestamp.After(session.LastSeen) {
			session.LastSeen = event.Timestamp
		}
		if session.Address == "" {
			session.Address = event.Address
		}
		if event.Control != nil && event.Control.CloseCode != nil {
			session.CloseCode = event.Control.CloseCode
		}
	}

	if msg := event.Message; msg != nil && msg.Type == log.MessageTypeResponse && msg.Name != "" {
		req, ok := s.Requests[msg.Name]
		if !ok {
			req = &RequestStats{}
			s.Requests[msg.Name] = req
		}
		req.Count++
		if msg.Result != nil && !*msg.Result {
			req.Failed++
		}
		if msg.Latency != nil {
			req.TotalLatency += *msg.Latency
			req.MaxLatency = max(req.MaxLatency, *msg.Latency)
		}
	}

	if event.StateChange != nil {
		s.StateChanges++
	}
	if event.Error != nil {
		s.Errors++
	}
}

// RunStats analyzes the capture file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := newStats()
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== livedeck Capture Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryControl, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut, log.DirectionLocal} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Sessions: %d\n", len(stats.Sessions))
	if len(stats.Sessions) > 0 {
		type sessionInfo struct {
			id    string
			stats *SessionStats
		}
		sessions := make([]sessionInfo, 0, len(stats.Sessions))
		for id, ss := range stats.Sessions {
			sessions = append(sessions, sessionInfo{id, ss})
		}
		slices.SortFunc(sessions, func(a, b sessionInfo) int {
			return a.stats.FirstSeen.Compare(b.stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, s := range sessions {
			duration := s.stats.LastSeen.Sub(s.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenSessionID(s.id), s.stats.Events, duration)
			if s.stats.Address != "" {
				fmt.Fprintf(w, "           Address: %s\n", s.stats.Address)
			}
			if s.stats.CloseCode != nil {
				fmt.Fprintf(w, "           Closed: %d\n", *s.stats.CloseCode)
			}
		}
	}

	if len(stats.Requests) > 0 {
		names := make([]string, 0, len(stats.Requests))
		for name := range stats.Requests {
			names = append(names, name)
		}
		slices.SortFunc(names, func(a, b string) int {
			if c := cmp.Compare(stats.Requests[b].Count, stats.Requests[a].Count); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})

		fmt.Fprintln(w)
		fmt.Fprintln(w, "Requests:")
		for _, name := range names {
			r := stats.Requests[name]
			fmt.Fprintf(w, "  %-28s %4d  avg %s  max %s", name, r.Count,
				formatDuration(r.AverageLatency()), formatDuration(r.MaxLatency))
			if r.Failed > 0 {
				fmt.Fprintf(w, "  failed %d", r.Failed)
			}
			fmt.Fprintln(w)
		}
	}

	if stats.StateChanges > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "State Changes: %d\n", stats.StateChanges)
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
