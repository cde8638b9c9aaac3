package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/livedeck/livedeck-go/pkg/log"
	"github.com/livedeck/livedeck-go/pkg/transport"
)

// Queue defaults.
const (
	// DefaultStaleAfter is how long a command may wait for a connection.
	DefaultStaleAfter = 30 * time.Second

	// DefaultReplayBatchSize is how many queued commands are sent at once
	// after reconnecting.
	DefaultReplayBatchSize = 10

	// DefaultAttemptTimeout bounds a single automatic reconnect attempt.
	DefaultAttemptTimeout = 15 * time.Second
)

// Config configures a Manager.
type Config struct {
	Policy          Policy
	StaleAfter      time.Duration
	ReplayBatchSize int
	AttemptTimeout  time.Duration
}

// DefaultConfig returns the manager defaults.
func DefaultConfig() Config {
	return Config{
		Policy:          DefaultPolicy(),
		StaleAfter:      DefaultStaleAfter,
		ReplayBatchSize: DefaultReplayBatchSize,
		AttemptTimeout:  DefaultAttemptTimeout,
	}
}

func (c Config) withDefaults() Config {
	c.Policy = c.Policy.withDefaults()
	if c.StaleAfter <= 0 {
		c.StaleAfter = DefaultStaleAfter
	}
	if c.ReplayBatchSize < 1 {
		c.ReplayBatchSize = DefaultReplayBatchSize
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = DefaultAttemptTimeout
	}
	return c
}

// ConnectOptions is where and how to connect. The manager keeps them only
// while it should reconnect on its own.
type ConnectOptions struct {
	Address  string
	Password string
}

// Option customizes a Manager.
type Option func(*Manager)

// WithLogger sets the operational logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithNotifier sets the user-visible error sink.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithCapture records status transitions to a protocol capture.
func WithCapture(capture log.Logger) Option {
	return func(m *Manager) {
		m.capture = log.OrNoop(capture)
	}
}

// WithClock replaces time.Now for queue staleness checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager owns the connection lifecycle, the retry timer and the command
// queue. All state lives behind one mutex; listener fan-out, transport
// calls and command settlement happen outside it.
type Manager struct {
	cfg       Config
	transport transport.Transport
	hub       *Hub
	listeners *statusListeners
	logger    *slog.Logger
	notifier  Notifier
	capture   log.Logger
	now       func() time.Time

	mu         sync.Mutex
	status     Status
	opts       *ConnectOptions
	failures   int
	retryTimer *time.Timer
	retryGen   uint64
	queue      commandQueue
	replaying  bool
	inflight   map[uint64]*command
	nextID     uint64
	lastErr    error
}

// NewManager creates a disconnected manager driving t and installs its
// lifecycle listeners on the hub.
func NewManager(t transport.Transport, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:       cfg.withDefaults(),
		transport: t,
		hub:       NewHub(t),
		logger:    slog.Default(),
		capture:   log.NoopLogger{},
		now:       time.Now,
		inflight:  make(map[uint64]*command),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "connection")
	m.listeners = newStatusListeners(m.logger)

	m.hub.Install(transport.EventIdentified, func(transport.Event) {
		m.handleIdentified()
	})
	m.hub.Install(transport.EventConnectionClosed, func(ev transport.Event) {
		m.handleConnectionLost(ev.Code, fmt.Errorf("%w: closed with code %d", ErrTransport, ev.Code))
	})
	m.hub.Install(transport.EventConnectionError, func(ev transport.Event) {
		m.handleConnectionLost(0, fmt.Errorf("%w: %w", ErrTransport, ev.Err))
	})
	return m
}

// Hub returns the event hub.
func (m *Manager) Hub() *Hub {
	return m.hub
}

// Status returns the current status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// LastError returns the error behind the latest failure, or nil after a
// successful identification.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Address returns the stored target address, or "" when none is stored.
func (m *Manager) Address() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.opts == nil {
		return ""
	}
	return m.opts.Address
}

// Failures returns the consecutive failed attempts since the last success.
func (m *Manager) Failures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures
}

// QueueLen returns the number of commands waiting for a connection.
func (m *Manager) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.len()
}

// InFlight returns the number of dispatched commands awaiting a response.
func (m *Manager) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inflight)
}

// AddStatusListener registers fn for every status transition and returns
// its unsubscribe function.
func (m *Manager) AddStatusListener(fn func(Status)) func() {
	return m.listeners.add(fn)
}

// effects are the side effects of a state change, applied after the lock
// is released.
type effects struct {
	reject    []*command
	rejectErr error
	lost      []*command
	lostErr   error
	notify    string
	close     bool
	replay    bool
}

func (m *Manager) apply(fx effects) error {
	m.listeners.flush()

	for _, c := range fx.reject {
		c.settle(nil, fmt.Errorf("%s: %w", c.method, fx.rejectErr))
	}
	for _, c := range fx.lost {
		c.settle(nil, fmt.Errorf("%s: %w", c.method, fx.lostErr))
	}
	if fx.notify != "" {
		m.notify(fx.notify)
	}
	if fx.replay {
		go m.replay()
	}
	if fx.close {
		if err := m.transport.Disconnect(); err != nil {
			return fmt.Errorf("disconnect: %w", err)
		}
	}
	return nil
}

// setStatusLocked records a transition and queues the listener
// notification. Same-state transitions are ignored.
func (m *Manager) setStatusLocked(to Status, reason string) bool {
	from := m.status
	if from == to {
		return false
	}
	m.status = to
	m.listeners.enqueue(to)

	m.logger.Info("status changed", "from", from.String(), "to", to.String(), "reason", reason)
	m.capture.Log(log.Event{
		Timestamp: m.now(),
		Direction: log.DirectionLocal,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: from.String(),
			NewState: to.String(),
			Reason:   reason,
		},
	})
	return true
}

// Connect starts connecting with opts. It is a no-op while connecting,
// connected or reconnecting. A failed first attempt is returned, and the
// manager keeps retrying in the background unless the failure is final.
func (m *Manager) Connect(ctx context.Context, opts ConnectOptions) error {
	if opts.Address == "" {
		return errors.New("connect: address is required")
	}

	m.mu.Lock()
	if m.status.accepting() {
		m.mu.Unlock()
		return nil
	}
	o := opts
	m.opts = &o
	m.failures = 0
	m.lastErr = nil
	m.setStatusLocked(StatusConnecting, "connect")
	m.mu.Unlock()
	m.listeners.flush()

	return m.attempt(ctx, o)
}

// Reconnect connects again with the stored options after the manager gave
// up. It fails with ErrNoConnectOptions once they were cleared.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	if m.opts == nil {
		m.mu.Unlock()
		return ErrNoConnectOptions
	}
	opts := *m.opts
	m.mu.Unlock()
	return m.Connect(ctx, opts)
}

// Disconnect stops reconnecting, clears the stored options, rejects every
// pending command and closes the transport.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	m.opts = nil
	m.failures = 0
	m.stopRetryLocked()
	m.setStatusLocked(StatusDisconnected, "disconnect")
	fx := effects{
		reject:    m.queue.drain(),
		rejectErr: ErrDisconnected,
		lost:      m.takeInflightLocked(),
		lostErr:   ErrDisconnected,
		close:     true,
	}
	m.mu.Unlock()

	return m.apply(fx)
}

// attempt runs one transport connect and routes its outcome.
func (m *Manager) attempt(ctx context.Context, opts ConnectOptions) error {
	err := m.transport.Connect(ctx, opts.Address, opts.Password)
	if err != nil {
		m.handleAttemptFailure(err)
		if cause := closeCause(closeCode(err)); cause != nil {
			return fmt.Errorf("connect %s: %w: %w", opts.Address, cause, err)
		}
		return fmt.Errorf("connect %s: %w: %w", opts.Address, ErrTransport, err)
	}

	// Identified was emitted before Connect returned. A Disconnect that
	// raced the handshake has already closed the new session.
	m.mu.Lock()
	status := m.status
	m.mu.Unlock()
	if status == StatusDisconnected || status == StatusError {
		return fmt.Errorf("connect %s: %w", opts.Address, ErrDisconnected)
	}
	return nil
}

func (m *Manager) handleAttemptFailure(err error) {
	m.mu.Lock()
	if m.status != StatusConnecting {
		// Superseded by Disconnect.
		m.mu.Unlock()
		return
	}

	var fx effects
	m.lastErr = err
	if cause := closeCause(closeCode(err)); cause != nil {
		m.failLocked(cause, &fx)
	} else {
		m.failures++
		m.logger.Warn("connect attempt failed", "attempt", m.failures, "error", err)
		if m.cfg.Policy.Exhausted(m.failures) {
			m.failLocked(fmt.Errorf("%w after %d attempts", ErrRetriesExhausted, m.failures), &fx)
		} else {
			m.setStatusLocked(StatusReconnecting, err.Error())
			m.scheduleRetryLocked()
		}
	}
	m.mu.Unlock()

	_ = m.apply(fx)
}

func (m *Manager) handleIdentified() {
	var fx effects

	m.mu.Lock()
	switch m.status {
	case StatusConnecting, StatusReconnecting:
		m.failures = 0
		m.lastErr = nil
		m.stopRetryLocked()
		m.setStatusLocked(StatusConnected, "identified")
		if !m.replaying && m.queue.len() > 0 {
			m.replaying = true
			fx.replay = true
		}
	case StatusDisconnected, StatusError:
		// A handshake finished after Disconnect; drop the session.
		m.logger.Info("closing session identified after disconnect")
		fx.close = true
	}
	m.mu.Unlock()

	if err := m.apply(fx); err != nil {
		m.logger.Warn("closing late session failed", "error", err)
	}
}

func (m *Manager) handleConnectionLost(code int, err error) {
	m.mu.Lock()
	if m.status != StatusConnected {
		m.mu.Unlock()
		return
	}

	fx := effects{lost: m.takeInflightLocked(), lostErr: ErrConnectionLost}
	m.lastErr = err
	if cause := closeCause(code); cause != nil {
		m.failLocked(cause, &fx)
	} else {
		m.logger.Warn("connection lost", "code", code, "error", err)
		m.setStatusLocked(StatusReconnecting, err.Error())
		m.scheduleRetryLocked()
	}
	m.mu.Unlock()

	_ = m.apply(fx)
}

// failLocked enters the error state, dropping the retry timer and every
// queued command.
func (m *Manager) failLocked(cause error, fx *effects) {
	m.stopRetryLocked()
	m.lastErr = cause
	m.setStatusLocked(StatusError, cause.Error())

	fx.reject = m.queue.drain()
	fx.rejectErr = cause
	if fx.lostErr == nil {
		fx.lost = append(fx.lost, m.takeInflightLocked()...)
		fx.lostErr = ErrConnectionLost
	}

	switch {
	case errors.Is(cause, ErrAuthFailed):
		m.opts = nil
		fx.notify = "Authentication failed: check the mixer password and connect again"
	case errors.Is(cause, ErrRetriesExhausted):
		fx.notify = fmt.Sprintf("Connection failed after %d attempts: reconnect manually", m.failures)
	default:
		fx.notify = fmt.Sprintf("Connection closed by the mixer: %v", cause)
	}
	m.logger.Error("connection failed", "error", cause)
}

func (m *Manager) scheduleRetryLocked() {
	if m.retryTimer != nil || m.status != StatusReconnecting || m.opts == nil {
		return
	}
	attempt := m.failures + 1
	delay := m.cfg.Policy.Delay(attempt)
	m.retryGen++
	gen := m.retryGen
	m.retryTimer = time.AfterFunc(delay, func() { m.retry(gen) })
	m.logger.Info("reconnect scheduled", "attempt", attempt, "delay", delay)
}

func (m *Manager) stopRetryLocked() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	m.retryGen++
}

func (m *Manager) retry(gen uint64) {
	m.mu.Lock()
	if gen != m.retryGen || m.status != StatusReconnecting || m.opts == nil {
		m.mu.Unlock()
		return
	}
	m.retryTimer = nil
	opts := *m.opts
	m.setStatusLocked(StatusConnecting, "retry")
	m.mu.Unlock()
	m.listeners.flush()

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.AttemptTimeout)
	defer cancel()
	if err := m.attempt(ctx, opts); err != nil {
		m.logger.Debug("reconnect attempt failed", "error", err)
	}
}

// RetryPending reports whether a reconnect timer is armed.
func (m *Manager) RetryPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retryTimer != nil
}

func (m *Manager) takeInflightLocked() []*command {
	if len(m.inflight) == 0 {
		return nil
	}
	cmds := make([]*command, 0, len(m.inflight))
	for _, c := range m.inflight {
		cmds = append(cmds, c)
	}
	m.inflight = make(map[uint64]*command)
	return cmds
}

// Call sends a command to the mixer. While connected it is dispatched at
// once; while connecting or reconnecting it waits in the queue; otherwise it
// fails with ErrNotConnected. Ending ctx abandons the wait.
func (m *Manager) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	m.mu.Lock()
	status := m.status
	if !status.accepting() {
		m.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", method, ErrNotConnected)
	}

	m.nextID++
	cmd := newCommand(ctx, m.nextID, method, params, m.now())
	if status == StatusConnected && !m.replaying {
		m.inflight[cmd.id] = cmd
		m.mu.Unlock()
		m.dispatch(cmd)
		return cmd.result()
	}
	m.queue.push(cmd)
	m.mu.Unlock()

	m.logger.Debug("command queued", "method", method, "status", status.String())

	select {
	case <-cmd.done:
	case <-ctx.Done():
		m.mu.Lock()
		m.queue.remove(cmd.id)
		m.mu.Unlock()
		cmd.settle(nil, fmt.Errorf("%s: %w", method, ctx.Err()))
	}
	return cmd.result()
}

func (m *Manager) dispatch(cmd *command) {
	if cmd.settled() {
		m.mu.Lock()
		delete(m.inflight, cmd.id)
		m.mu.Unlock()
		return
	}

	data, err := m.transport.Call(cmd.ctx, cmd.method, cmd.params)

	m.mu.Lock()
	delete(m.inflight, cmd.id)
	m.mu.Unlock()

	if err == nil {
		cmd.settle(data, nil)
		return
	}

	err = wrapCallError(cmd.method, err)
	if cmd.settle(nil, err) && !errors.Is(err, context.Canceled) {
		m.notify(fmt.Sprintf("%s failed: %v", cmd.method, err))
	}
}

func wrapCallError(method string, err error) error {
	var re *transport.RequestError
	if errors.As(err, &re) {
		return &CommandRejectedError{Method: method, Code: re.Code, Comment: re.Comment, Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", method, err)
	}
	if errors.Is(err, transport.ErrClosed) {
		// The session ended under the request.
		return fmt.Errorf("%s: %w: %w", method, ErrConnectionLost, err)
	}
	return fmt.Errorf("%s: %w: %w", method, ErrTransport, err)
}

// replay drains the queue after identification. Commands that waited longer
// than StaleAfter are rejected; the rest go out in concurrent batches, each
// batch awaited before the next. Commands queued meanwhile are picked up by
// the next loop iteration, after the ones already draining.
func (m *Manager) replay() {
	for {
		m.mu.Lock()
		if m.status != StatusConnected {
			m.replaying = false
			m.mu.Unlock()
			return
		}
		cmds := m.queue.drain()
		if len(cmds) == 0 {
			m.replaying = false
			m.mu.Unlock()
			return
		}
		live, stale := splitStale(cmds, m.now(), m.cfg.StaleAfter)
		m.mu.Unlock()

		for _, c := range stale {
			c.settle(nil, fmt.Errorf("%s: %w", c.method, ErrCommandTimeout))
		}
		m.logger.Info("replaying queued commands", "count", len(live), "expired", len(stale))

		for i, batch := range batches(live, m.cfg.ReplayBatchSize) {
			m.mu.Lock()
			if m.status != StatusConnected {
				rest := live[i*m.cfg.ReplayBatchSize:]
				cause := m.abandonReplayLocked(rest)
				m.mu.Unlock()
				if cause != nil {
					for _, c := range rest {
						c.settle(nil, fmt.Errorf("%s: %w", c.method, cause))
					}
				}
				return
			}
			for _, c := range batch {
				m.inflight[c.id] = c
			}
			m.mu.Unlock()

			var g errgroup.Group
			for _, c := range batch {
				g.Go(func() error {
					m.dispatch(c)
					return nil
				})
			}
			_ = g.Wait()
		}
	}
}

// abandonReplayLocked ends a replay interrupted by leaving connected. While
// a reconnect is underway the unsent commands go back to the head of the
// queue and nil is returned; otherwise the queue was already drained and
// the returned error must reject them.
func (m *Manager) abandonReplayLocked(rest []*command) error {
	m.replaying = false
	switch m.status {
	case StatusConnecting, StatusReconnecting:
		m.queue.prepend(rest)
		return nil
	case StatusError:
		if m.lastErr != nil {
			return m.lastErr
		}
		return ErrConnectionLost
	default:
		return ErrDisconnected
	}
}

func (m *Manager) notify(msg string) {
	m.logger.Warn("notify", "message", msg)
	if m.notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("notifier panicked", "panic", r)
		}
	}()
	m.notifier.Notify(msg)
}
