// Package statecache memoizes the aggregate mixer state shown by the
// control panel.
//
// Assembling a Snapshot takes five requests. The result is kept for a short
// TTL and dropped whenever the mixer reports a change that could make it
// wrong.
package statecache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/livedeck/livedeck-go/pkg/obs"
	"github.com/livedeck/livedeck-go/pkg/transport"
)

// DefaultTTL is how long a snapshot is served without refetching.
const DefaultTTL = 2 * time.Second

// DefaultFillTimeout bounds a fetch shared by concurrent callers.
const DefaultFillTimeout = 10 * time.Second

// InvalidatingEvents are the mixer events that drop the cached snapshot.
var InvalidatingEvents = []string{
	obs.EventCurrentProgramSceneChanged,
	obs.EventSceneListChanged,
	obs.EventInputCreated,
	obs.EventInputRemoved,
	obs.EventInputNameChanged,
	obs.EventStreamStateChanged,
	obs.EventRecordStateChanged,
	obs.EventSceneItemEnableStateChanged,
}

// Caller sends one request to the mixer.
type Caller interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// Installer registers permanent event listeners.
type Installer interface {
	Install(event string, fn transport.Handler)
}

// Source is one item of the current scene.
type Source struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Kind    string `json:"kind,omitempty"`
	Enabled bool   `json:"enabled"`
}

// Snapshot is the merged view of the mixer state.
type Snapshot struct {
	CurrentScene string    `json:"currentScene"`
	Scenes       []string  `json:"scenes"`
	Streaming    bool      `json:"streaming"`
	Recording    bool      `json:"recording"`
	Sources      []Source  `json:"sources"`
	CapturedAt   time.Time `json:"capturedAt"`
}

// EmptySnapshot is returned when the state cannot be fetched. Every field
// is populated; slices are empty, not nil.
func EmptySnapshot() Snapshot {
	return Snapshot{
		Scenes:  []string{},
		Sources: []Source{},
	}
}

// EnabledSources returns the names of the visible sources, in scene order.
func (s Snapshot) EnabledSources() []string {
	names := []string{}
	for _, src := range s.Sources {
		if src.Enabled {
			names = append(names, src.Name)
		}
	}
	return names
}

func (s Snapshot) clone() Snapshot {
	s.Scenes = slices.Clone(s.Scenes)
	s.Sources = slices.Clone(s.Sources)
	return s
}

// Option customizes a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// Cache holds at most one snapshot.
type Cache struct {
	caller      Caller
	ttl         time.Duration
	fillTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
	group       singleflight.Group

	mu    sync.Mutex
	entry *Snapshot
	gen   uint64
}

// New creates an empty cache. A ttl of zero or less selects DefaultTTL.
func New(caller Caller, ttl time.Duration, logger *slog.Logger, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		caller:      caller,
		ttl:         ttl,
		fillTimeout: DefaultFillTimeout,
		logger:      logger.With("component", "statecache"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach installs the invalidation listeners on the hub.
func (c *Cache) Attach(hub Installer) {
	for _, event := range InvalidatingEvents {
		hub.Install(event, func(transport.Event) {
			c.logger.Debug("invalidated", "event", event)
			c.Invalidate()
		})
	}
	// A new session may follow an outage of any length.
	hub.Install(transport.EventIdentified, func(transport.Event) {
		c.logger.Debug("invalidated", "event", transport.EventIdentified)
		c.Invalidate()
	})
}

// Invalidate drops the cached snapshot. A fetch already running is not
// stored when it completes.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.entry = nil
	c.gen++
	c.mu.Unlock()
}

// Cached returns the stored snapshot without fetching.
func (c *Cache) Cached() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil {
		return Snapshot{}, false
	}
	return c.entry.clone(), true
}

// FullState returns the cached snapshot while it is younger than the TTL
// and fetches a fresh one otherwise. Concurrent callers share one fetch.
// On failure the cache is invalidated and EmptySnapshot returned.
func (c *Cache) FullState(ctx context.Context) Snapshot {
	c.mu.Lock()
	if c.entry != nil && c.now().Sub(c.entry.CapturedAt) < c.ttl {
		snap := c.entry.clone()
		c.mu.Unlock()
		return snap
	}
	c.mu.Unlock()

	// The fetch outlives any one caller; each caller still stops waiting
	// when its own ctx ends.
	ch := c.group.DoChan("full", func() (any, error) {
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fillTimeout)
		defer cancel()
		return c.fill(fillCtx)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			c.logger.Warn("fetching state failed", "error", res.Err, "shared", res.Shared)
			return EmptySnapshot()
		}
		return res.Val.(Snapshot).clone()
	case <-ctx.Done():
		c.logger.Debug("state request abandoned", "error", ctx.Err())
		return EmptySnapshot()
	}
}

func (c *Cache) fill(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	snap, err := c.fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.entry = nil
		c.gen++
		return Snapshot{}, err
	}
	if c.gen == gen {
		stored := snap.clone()
		c.entry = &stored
	}
	return snap, nil
}

func (c *Cache) fetch(ctx context.Context) (Snapshot, error) {
	snap := EmptySnapshot()
	var (
		current obs.CurrentSceneResponse
		items   obs.SceneItemListResponse
		scenes  obs.SceneListResponse
		stream  obs.OutputStatusResponse
		record  obs.OutputStatusResponse
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := c.get(ctx, obs.GetCurrentProgramScene, nil, &current); err != nil {
			return err
		}
		params := map[string]any{"sceneName": current.CurrentProgramSceneName}
		return c.get(ctx, obs.GetSceneItemList, params, &items)
	})
	g.Go(func() error {
		return c.get(ctx, obs.GetSceneList, nil, &scenes)
	})
	g.Go(func() error {
		return c.get(ctx, obs.GetStreamStatus, nil, &stream)
	})
	g.Go(func() error {
		return c.get(ctx, obs.GetRecordStatus, nil, &record)
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	snap.CurrentScene = current.CurrentProgramSceneName
	// The mixer lists scenes from the highest index down.
	for i := len(scenes.Scenes) - 1; i >= 0; i-- {
		snap.Scenes = append(snap.Scenes, scenes.Scenes[i].SceneName)
	}
	snap.Streaming = stream.OutputActive
	snap.Recording = record.OutputActive
	for _, it := range items.SceneItems {
		snap.Sources = append(snap.Sources, Source{
			ID:      it.SceneItemID,
			Name:    it.SourceName,
			Kind:    it.InputKind,
			Enabled: it.SceneItemEnabled,
		})
	}
	snap.CapturedAt = c.now()
	return snap, nil
}

func (c *Cache) get(ctx context.Context, method string, params any, out any) error {
	data, err := c.caller.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", method, err)
	}
	return nil
}
