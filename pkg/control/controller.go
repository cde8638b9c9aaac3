// Package control is the single entry point the control panel talks to.
//
// New wires one transport, one connection manager and one state cache
// together. The returned Controller is passed to whatever needs the mixer;
// there is no package-level instance.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/livedeck/livedeck-go/pkg/connection"
	"github.com/livedeck/livedeck-go/pkg/log"
	"github.com/livedeck/livedeck-go/pkg/obs"
	"github.com/livedeck/livedeck-go/pkg/statecache"
	"github.com/livedeck/livedeck-go/pkg/transport"
)

// Config collects the settings of every wired component.
type Config struct {
	Connection connection.Config
	Transport  transport.Config
	CacheTTL   time.Duration
}

// DefaultConfig returns the defaults of every component.
func DefaultConfig() Config {
	return Config{
		Connection: connection.DefaultConfig(),
		Transport:  transport.DefaultConfig(),
		CacheTTL:   statecache.DefaultTTL,
	}
}

// Option customizes New.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	notifier  connection.Notifier
	capture   log.Logger
	transport transport.Transport
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithNotifier sets the user-visible error sink.
func WithNotifier(n connection.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithCapture records protocol traffic and status changes.
func WithCapture(capture log.Logger) Option {
	return func(o *options) { o.capture = capture }
}

// WithTransport replaces the obs-websocket client, mainly for tests.
func WithTransport(t transport.Transport) Option {
	return func(o *options) { o.transport = t }
}

// Controller exposes the connection lifecycle, the generic Call primitive,
// the cached state and the mixer operations the panel uses.
type Controller struct {
	manager *connection.Manager
	cache   *statecache.Cache
	logger  *slog.Logger
}

// New builds the component graph.
func New(cfg Config, opts ...Option) *Controller {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	capture := log.OrNoop(o.capture)

	t := o.transport
	if t == nil {
		t = transport.NewClient(cfg.Transport,
			transport.WithLogger(o.logger),
			transport.WithCapture(capture),
		)
	}

	m := connection.NewManager(t, cfg.Connection,
		connection.WithLogger(o.logger),
		connection.WithNotifier(o.notifier),
		connection.WithCapture(capture),
	)
	cache := statecache.New(m, cfg.CacheTTL, o.logger)
	cache.Attach(m.Hub())

	return &Controller{
		manager: m,
		cache:   cache,
		logger:  o.logger.With("component", "control"),
	}
}

// Manager returns the connection manager.
func (c *Controller) Manager() *connection.Manager {
	return c.manager
}

// Connect connects to the mixer at address.
func (c *Controller) Connect(ctx context.Context, address, password string) error {
	c.logger.Info("connecting", "address", address, "auth", password != "")
	return c.manager.Connect(ctx, connection.ConnectOptions{Address: address, Password: password})
}

// Reconnect connects again with the last address and password.
func (c *Controller) Reconnect(ctx context.Context) error {
	return c.manager.Reconnect(ctx)
}

// Disconnect closes the connection and stops reconnecting.
func (c *Controller) Disconnect() error {
	c.cache.Invalidate()
	return c.manager.Disconnect()
}

// Status returns the connection status.
func (c *Controller) Status() connection.Status {
	return c.manager.Status()
}

// LastError returns the error behind the latest connection failure.
func (c *Controller) LastError() error {
	return c.manager.LastError()
}

// AddStatusListener subscribes fn to status changes.
func (c *Controller) AddStatusListener(fn func(connection.Status)) func() {
	return c.manager.AddStatusListener(fn)
}

// On subscribes fn to a mixer event.
func (c *Controller) On(event string, fn transport.Handler) transport.ListenerID {
	return c.manager.Hub().On(event, fn)
}

// Off removes a subscription made with On.
func (c *Controller) Off(id transport.ListenerID) {
	c.manager.Hub().Off(id)
}

// Subscribe is On returning an unsubscribe function.
func (c *Controller) Subscribe(event string, fn transport.Handler) func() {
	return c.manager.Hub().Subscribe(event, fn)
}

// Call sends an arbitrary request.
func (c *Controller) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return c.manager.Call(ctx, method, params)
}

// FullState returns the merged mixer state, cached for a short while.
func (c *Controller) FullState(ctx context.Context) statecache.Snapshot {
	return c.cache.FullState(ctx)
}

// Version returns the mixer and plugin versions.
func (c *Controller) Version(ctx context.Context) (obs.VersionResponse, error) {
	var v obs.VersionResponse
	err := c.callInto(ctx, obs.GetVersion, nil, &v)
	return v, err
}

// SceneList returns the scene names in display order and the scene on
// program.
func (c *Controller) SceneList(ctx context.Context) (scenes []string, current string, err error) {
	var resp obs.SceneListResponse
	if err := c.callInto(ctx, obs.GetSceneList, nil, &resp); err != nil {
		return nil, "", err
	}
	scenes = make([]string, 0, len(resp.Scenes))
	for i := len(resp.Scenes) - 1; i >= 0; i-- {
		scenes = append(scenes, resp.Scenes[i].SceneName)
	}
	return scenes, resp.CurrentProgramSceneName, nil
}

// SetCurrentScene puts scene on program.
func (c *Controller) SetCurrentScene(ctx context.Context, scene string) error {
	_, err := c.manager.Call(ctx, obs.SetCurrentProgramScene, map[string]any{"sceneName": scene})
	return err
}

// StartStream starts streaming.
func (c *Controller) StartStream(ctx context.Context) error {
	_, err := c.manager.Call(ctx, obs.StartStream, nil)
	return err
}

// StopStream stops streaming.
func (c *Controller) StopStream(ctx context.Context) error {
	_, err := c.manager.Call(ctx, obs.StopStream, nil)
	return err
}

// ToggleStream flips streaming and reports whether it is now active.
func (c *Controller) ToggleStream(ctx context.Context) (bool, error) {
	var resp obs.ToggleResponse
	err := c.callInto(ctx, obs.ToggleStream, nil, &resp)
	return resp.OutputActive, err
}

// StartRecord starts recording.
func (c *Controller) StartRecord(ctx context.Context) error {
	_, err := c.manager.Call(ctx, obs.StartRecord, nil)
	return err
}

// StopRecord stops recording.
func (c *Controller) StopRecord(ctx context.Context) error {
	_, err := c.manager.Call(ctx, obs.StopRecord, nil)
	return err
}

// ToggleRecord flips recording and reports whether it is now active.
func (c *Controller) ToggleRecord(ctx context.Context) (bool, error) {
	var resp obs.ToggleResponse
	err := c.callInto(ctx, obs.ToggleRecord, nil, &resp)
	return resp.OutputActive, err
}

// SetSourceEnabled shows or hides source in scene. An empty scene means
// the scene on program.
func (c *Controller) SetSourceEnabled(ctx context.Context, scene, source string, enabled bool) error {
	if scene == "" {
		var cur obs.CurrentSceneResponse
		if err := c.callInto(ctx, obs.GetCurrentProgramScene, nil, &cur); err != nil {
			return err
		}
		scene = cur.CurrentProgramSceneName
	}

	var item obs.SceneItemIDResponse
	err := c.callInto(ctx, obs.GetSceneItemID, map[string]any{
		"sceneName":  scene,
		"sourceName": source,
	}, &item)
	if err != nil {
		return err
	}

	_, err = c.manager.Call(ctx, obs.SetSceneItemEnabled, map[string]any{
		"sceneName":        scene,
		"sceneItemId":      item.SceneItemID,
		"sceneItemEnabled": enabled,
	})
	return err
}

func (c *Controller) callInto(ctx context.Context, method string, params any, out any) error {
	data, err := c.manager.Call(ctx, method, params)
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
