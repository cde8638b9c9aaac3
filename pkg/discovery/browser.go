package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// Service is the DNS-SD service type. Default: ServiceType.
	Service string

	// Domain is the browse domain. Default: Domain.
	Domain string

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// Timeout bounds Find. Default: BrowseTimeout.
	Timeout time.Duration
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Service: ServiceType,
		Domain:  Domain,
		Timeout: BrowseTimeout,
	}
}

func (c BrowserConfig) withDefaults() BrowserConfig {
	d := DefaultBrowserConfig()
	if c.Service == "" {
		c.Service = d.Service
	}
	if c.Domain == "" {
		c.Domain = d.Domain
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}

// Browser browses for mixers using zeroconf.
type Browser struct {
	config BrowserConfig
	logger *slog.Logger

	mu      sync.Mutex
	cancels map[int]context.CancelFunc
	next    int
}

// NewBrowser creates a browser.
func NewBrowser(config BrowserConfig, logger *slog.Logger) *Browser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Browser{
		config:  config.withDefaults(),
		logger:  logger.With("component", "discovery"),
		cancels: make(map[int]context.CancelFunc),
	}
}

// Browse reports each mixer the first time it is seen. The channel is
// closed when ctx ends or Stop is called.
func (b *Browser) Browse(ctx context.Context) (<-chan Target, error) {
	ctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	id := b.next
	b.next++
	b.cancels[id] = cancel
	b.mu.Unlock()

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)
	sightings := make(chan sighting)
	gone := make(chan sighting)
	out := make(chan Target)

	go func() {
		defer func() {
			b.mu.Lock()
			delete(b.cancels, id)
			b.mu.Unlock()
			cancel()
		}()
		aggregate(ctx, sightings, gone, out)
	}()
	go forward(ctx, entries, sightings)
	go forward(ctx, removed, gone)

	go func() {
		err := zeroconf.Browse(ctx, b.config.Service, b.config.Domain, entries, removed, b.browserOptions()...)
		if err != nil && ctx.Err() == nil {
			b.logger.Warn("browse failed", "service", b.config.Service, "error", err)
			cancel()
		}
	}()

	b.logger.Debug("browsing", "service", b.config.Service, "domain", b.config.Domain)
	return out, nil
}

// Find browses for the configured timeout, or until ctx ends, and returns
// every mixer seen, sorted by instance name.
func (b *Browser) Find(ctx context.Context) ([]Target, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	found, err := b.Browse(ctx)
	if err != nil {
		return nil, fmt.Errorf("browse %s: %w", b.config.Service, err)
	}
	targets := []Target{}
	for t := range found {
		targets = append(targets, t)
	}
	slices.SortFunc(targets, func(x, y Target) int {
		return strings.Compare(x.Instance, y.Instance)
	})
	return targets, nil
}

// Stop cancels every running browse.
func (b *Browser) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, cancel := range b.cancels {
		cancel()
		delete(b.cancels, id)
	}
}

// browserOptions returns zeroconf client options based on config.
func (b *Browser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err != nil {
			b.logger.Warn("unknown interface, browsing on all", "interface", b.config.Interface, "error", err)
			return nil
		}
		opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
	}
	return opts
}

// sighting is one mDNS answer, independent of the zeroconf types.
type sighting struct {
	Instance string
	Host     string
	Port     uint16
	Addrs    []string
	Text     []string
}

func fromEntry(entry *zeroconf.ServiceEntry) sighting {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return sighting{
		Instance: entry.Instance,
		Host:     entry.HostName,
		Port:     uint16(entry.Port),
		Addrs:    addrs,
		Text:     entry.Text,
	}
}

func forward(ctx context.Context, in <-chan *zeroconf.ServiceEntry, out chan<- sighting) {
	for {
		select {
		case entry, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- fromEntry(entry):
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s sighting) target() Target {
	t := Target{
		Instance:  s.Instance,
		Host:      s.Host,
		Port:      s.Port,
		Addresses: slices.Clone(s.Addrs),
		Path:      "/",
	}
	applyTXT(&t, StringsToTXTRecords(s.Text))
	return t
}

// aggregate merges sightings by instance name and emits each instance once
// while it has at least one address. An instance whose addresses all
// disappear is forgotten and reported again when it returns.
func aggregate(ctx context.Context, entries, removed <-chan sighting, out chan<- Target) {
	defer close(out)

	known := make(map[string]*Target)
	for {
		select {
		case s, ok := <-entries:
			if !ok {
				return
			}
			if s.Instance == "" {
				continue
			}
			if existing, found := known[s.Instance]; found {
				existing.Addresses = mergeAddresses(existing.Addresses, s.Addrs)
				continue
			}
			t := s.target()
			known[s.Instance] = &t
			select {
			case out <- t:
			case <-ctx.Done():
				return
			}

		case s, ok := <-removed:
			if !ok {
				removed = nil
				continue
			}
			if existing, found := known[s.Instance]; found {
				existing.Addresses = removeAddresses(existing.Addresses, s.Addrs)
				if len(existing.Addresses) == 0 {
					delete(known, s.Instance)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}
