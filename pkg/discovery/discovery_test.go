package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringsToTXTRecords(t *testing.T) {
	txt := StringsToTXTRecords([]string{"path=/obs", "tls=1", "auth", "=ignored", "note=a=b"})

	assert.Equal(t, TXTRecordMap{
		"path": "/obs",
		"tls":  "1",
		"auth": "",
		"note": "a=b",
	}, txt)
}

func TestTargetURL(t *testing.T) {
	tests := []struct {
		name   string
		target Target
		want   string
	}{
		{
			name:   "ipv4 preferred",
			target: Target{Port: 4455, Addresses: []string{"fe80::1", "192.168.1.20"}},
			want:   "ws://192.168.1.20:4455/",
		},
		{
			name:   "ipv6 bracketed",
			target: Target{Port: 4455, Addresses: []string{"fd00::7"}},
			want:   "ws://[fd00::7]:4455/",
		},
		{
			name:   "host name fallback",
			target: Target{Host: "studio.local.", Port: 4455},
			want:   "ws://studio.local:4455/",
		},
		{
			name:   "tls and path",
			target: Target{Port: 443, Addresses: []string{"10.0.0.2"}, TLS: true, Path: "/obs"},
			want:   "wss://10.0.0.2:443/obs",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.target.URL()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("no address", func(t *testing.T) {
		_, err := Target{Port: 4455}.URL()
		assert.ErrorIs(t, err, ErrNoAddress)
	})
}

func TestSightingTarget(t *testing.T) {
	s := sighting{
		Instance: "Studio A",
		Host:     "studio-a.local.",
		Port:     4455,
		Addrs:    []string{"192.168.1.20"},
		Text:     []string{"path=obs", "auth=1"},
	}

	got := s.target()

	assert.Equal(t, Target{
		Instance:     "Studio A",
		Host:         "studio-a.local.",
		Port:         4455,
		Addresses:    []string{"192.168.1.20"},
		Path:         "/obs",
		AuthRequired: true,
	}, got)
}

func TestAddressHelpers(t *testing.T) {
	merged := mergeAddresses([]string{"a", "b"}, []string{"b", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, merged)

	assert.Equal(t, []string{"a", "c"}, removeAddresses(merged, []string{"b", "x"}))
	assert.Empty(t, removeAddresses([]string{"a"}, []string{"a"}))
}

func TestAggregate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	entries := make(chan sighting)
	removed := make(chan sighting)
	out := make(chan Target, 10)
	done := make(chan struct{})
	go func() {
		aggregate(ctx, entries, removed, out)
		close(done)
	}()

	studio := sighting{Instance: "Studio", Port: 4455, Addrs: []string{"192.168.1.20"}}
	entries <- studio
	// Same instance seen on a second interface.
	entries <- sighting{Instance: "Studio", Port: 4455, Addrs: []string{"fe80::20"}}
	entries <- sighting{Instance: "", Addrs: []string{"10.0.0.1"}}
	entries <- sighting{Instance: "Booth", Port: 4456, Addrs: []string{"192.168.1.30"}}

	// Studio disappears from both interfaces, then comes back.
	removed <- sighting{Instance: "Studio", Addrs: []string{"192.168.1.20"}}
	removed <- sighting{Instance: "Studio", Addrs: []string{"fe80::20"}}
	entries <- studio

	close(entries)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("aggregate did not stop after entries closed")
	}

	var names []string
	for tgt := range out {
		names = append(names, tgt.Instance)
	}
	assert.Equal(t, []string{"Studio", "Booth", "Studio"}, names)
}

func TestBrowserConfigDefaults(t *testing.T) {
	b := NewBrowser(BrowserConfig{Interface: "eth9"}, nil)

	assert.Equal(t, ServiceType, b.config.Service)
	assert.Equal(t, Domain, b.config.Domain)
	assert.Equal(t, BrowseTimeout, b.config.Timeout)
	assert.Equal(t, "eth9", b.config.Interface)

	b.Stop()
}
