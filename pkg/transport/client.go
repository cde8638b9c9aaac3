package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/livedeck/livedeck-go/pkg/log"
)

// Client defaults.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultRequestTimeout   = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
)

// Config configures the obs-websocket client.
type Config struct {
	HandshakeTimeout time.Duration
	RequestTimeout   time.Duration
	WriteTimeout     time.Duration
	KeepAlive        KeepAliveConfig

	// EventSubscriptions is the Identify event bitmask. Zero selects all
	// non-high-volume events.
	EventSubscriptions uint32
}

// DefaultConfig returns the client defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout:   DefaultHandshakeTimeout,
		RequestTimeout:     DefaultRequestTimeout,
		WriteTimeout:       DefaultWriteTimeout,
		KeepAlive:          DefaultKeepAliveConfig(),
		EventSubscriptions: EventSubscriptionAll,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.EventSubscriptions == 0 {
		c.EventSubscriptions = d.EventSubscriptions
	}
	return c
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithLogger sets the operational logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCapture sets the protocol capture sink.
func WithCapture(capture log.Logger) ClientOption {
	return func(c *Client) {
		c.capture = log.OrNoop(capture)
	}
}

// Client is a Transport over gorilla/websocket.
type Client struct {
	Emitter

	cfg     Config
	logger  *slog.Logger
	capture log.Logger

	mu         sync.Mutex
	sess       *session
	cancelDial context.CancelFunc
}

// NewClient creates an unconnected client.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	c := &Client{
		cfg:     cfg.withDefaults(),
		logger:  slog.Default(),
		capture: log.NoopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type response struct {
	data json.RawMessage
	err  error
}

type pendingRequest struct {
	method string
	sent   time.Time
	ch     chan response
}

// session is one identified websocket connection.
type session struct {
	id      string
	address string
	conn    *websocket.Conn
	ka      *KeepAlive
	logger  *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]*pendingRequest

	manual   atomic.Bool
	timedOut atomic.Bool
}

// Connect dials address and performs the Hello/Identify handshake.
func (c *Client) Connect(ctx context.Context, address, password string) error {
	c.mu.Lock()
	if c.sess != nil || c.cancelDial != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancelDial = cancel
	c.mu.Unlock()

	s, err := c.handshake(ctx, address, password)

	c.mu.Lock()
	c.cancelDial = nil
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		c.mu.Unlock()
		cancel()
		if s != nil {
			_ = s.conn.Close()
		}
		c.captureError(address, err, "handshake")
		return err
	}
	c.sess = s
	c.mu.Unlock()
	cancel()

	c.captureState(s, "connecting", "identified", "")
	s.logger.Info("session identified")

	// Nothing is read before Identified is delivered, so a close that races
	// the handshake always reaches listeners after it.
	c.Emit(Event{Name: EventIdentified})

	c.mu.Lock()
	current := c.sess == s
	c.mu.Unlock()
	if !current {
		// An Identified listener already disconnected.
		return nil
	}
	s.ka.Start(context.Background())
	go c.readLoop(s)
	return nil
}

func (c *Client) handshake(ctx context.Context, address, password string) (*session, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
		Subprotocols:     []string{Subprotocol},
		Proxy:            websocket.DefaultDialer.Proxy,
	}
	conn, _, err := dialer.DialContext(ctx, address, nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}

	id := uuid.NewString()
	s := &session{
		id:      id,
		address: address,
		conn:    conn,
		logger:  c.logger.With("session_id", id, "address", address),
		pending: make(map[string]*pendingRequest),
	}

	// Closing the socket unblocks a pending read when ctx ends.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.HandshakeTimeout))

	var hello helloData
	if err := c.readOp(s, OpHello, &hello); err != nil {
		return s, handshakeError(ctx, err)
	}

	identify := identifyData{
		RPCVersion:         RPCVersion,
		EventSubscriptions: c.cfg.EventSubscriptions,
	}
	if hello.Authentication != nil {
		identify.Authentication = AuthResponse(password, hello.Authentication.Salt, hello.Authentication.Challenge)
	}
	if err := c.write(s, OpIdentify, identify); err != nil {
		return s, handshakeError(ctx, err)
	}

	var identified identifiedData
	if err := c.readOp(s, OpIdentified, &identified); err != nil {
		return s, handshakeError(ctx, err)
	}

	_ = conn.SetReadDeadline(time.Time{})
	s.ka = NewKeepAlive(c.cfg.KeepAlive, s.ping(c.cfg.WriteTimeout), func() {
		s.logger.Warn("keep-alive timeout, dropping session")
		s.timedOut.Store(true)
		_ = s.conn.Close()
	})
	conn.SetPongHandler(func(data string) error {
		if seq, ok := decodePingPayload(data); ok {
			s.ka.PongReceived(seq)
		}
		return nil
	})
	s.logger.Debug("handshake complete",
		"obs_websocket_version", hello.OBSWebSocketVersion,
		"rpc_version", identified.NegotiatedRPCVersion)
	return s, nil
}

func handshakeError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return &CloseError{Code: ce.Code, Reason: ce.Text}
	}
	return fmt.Errorf("handshake: %w", err)
}

// readOp reads the next message and requires it to carry op.
func (c *Client) readOp(s *session, op OpCode, v any) error {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode %s: %w", op, err)
	}
	c.captureMessage(s, log.DirectionIn, log.MessageTypeHandshake, int(env.Op), "", env.Op.String(), data)
	if env.Op != op {
		return fmt.Errorf("%w: got %s, want %s", ErrUnexpectedMessage, env.Op, op)
	}
	if err := json.Unmarshal(env.D, v); err != nil {
		return fmt.Errorf("decode %s: %w", op, err)
	}
	return nil
}

func (c *Client) write(s *session, op OpCode, d any) error {
	data, err := json.Marshal(outgoing{Op: op, D: d})
	if err != nil {
		return fmt.Errorf("encode %s: %w", op, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}

	switch op {
	case OpIdentify:
		c.captureMessage(s, log.DirectionOut, log.MessageTypeHandshake, int(op), "", op.String(), data)
	case OpRequest:
		req := d.(requestData)
		c.captureMessage(s, log.DirectionOut, log.MessageTypeRequest, int(op), req.RequestID, req.RequestType, data)
	}
	return nil
}

func (s *session) ping(timeout time.Duration) func(seq uint32) error {
	return func(seq uint32) error {
		return s.conn.WriteControl(websocket.PingMessage, encodePingPayload(seq), time.Now().Add(timeout))
	}
}

func (c *Client) readLoop(s *session) {
	defer s.ka.Stop()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			c.sessionEnded(s, err)
			return
		}
		c.handleMessage(s, data)
	}
}

func (c *Client) handleMessage(s *session, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Warn("dropping undecodable message", "error", err)
		return
	}

	switch env.Op {
	case OpEvent:
		var ev eventData
		if err := json.Unmarshal(env.D, &ev); err != nil {
			s.logger.Warn("dropping undecodable event", "error", err)
			return
		}
		c.captureMessage(s, log.DirectionIn, log.MessageTypeEvent, int(env.Op), "", ev.EventType, data)
		c.Emit(Event{Name: ev.EventType, Data: ev.EventData})

	case OpRequestResponse:
		var resp requestResponseData
		if err := json.Unmarshal(env.D, &resp); err != nil {
			s.logger.Warn("dropping undecodable response", "error", err)
			return
		}
		c.captureResponse(s, resp, data)
		s.resolve(resp)

	default:
		s.logger.Debug("ignoring message", "op", env.Op.String())
	}
}

func (s *session) register(id, method string) *pendingRequest {
	p := &pendingRequest{method: method, sent: time.Now(), ch: make(chan response, 1)}
	s.mu.Lock()
	s.pending[id] = p
	s.mu.Unlock()
	return p
}

func (s *session) unregister(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

func (s *session) resolve(resp requestResponseData) {
	s.mu.Lock()
	p, ok := s.pending[resp.RequestID]
	delete(s.pending, resp.RequestID)
	s.mu.Unlock()

	if !ok {
		s.logger.Debug("response for unknown request", "request_id", resp.RequestID)
		return
	}
	if !resp.RequestStatus.Result {
		p.ch <- response{err: &RequestError{
			Method:  p.method,
			Code:    resp.RequestStatus.Code,
			Comment: resp.RequestStatus.Comment,
		}}
		return
	}
	p.ch <- response{data: resp.ResponseData}
}

func (s *session) failPending(err error) {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[string]*pendingRequest)
	s.mu.Unlock()

	for _, p := range pending {
		p.ch <- response{err: err}
	}
}

func (c *Client) sessionEnded(s *session, err error) {
	c.mu.Lock()
	if c.sess == s {
		c.sess = nil
	}
	c.mu.Unlock()

	_ = s.conn.Close()
	s.failPending(ErrClosed)

	if s.manual.Load() {
		return
	}

	var ce *websocket.CloseError
	switch {
	case errors.As(err, &ce):
		code := ce.Code
		c.capture.Log(log.Event{
			Timestamp: time.Now(),
			SessionID: s.id,
			Direction: log.DirectionIn,
			Category:  log.CategoryControl,
			Address:   s.address,
			Control:   &log.ControlEvent{Type: log.ControlClose, CloseCode: &code},
		})
		s.logger.Info("session closed by mixer", "code", code, "reason", ce.Text)
		c.captureState(s, "identified", "closed", CloseCodeText(code))
		c.Emit(Event{Name: EventConnectionClosed, Code: code, Reason: ce.Text})

	case s.timedOut.Load():
		c.captureError(s.address, ErrKeepAliveTimeout, "keep-alive")
		c.Emit(Event{Name: EventConnectionError, Err: ErrKeepAliveTimeout})

	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			err = fmt.Errorf("%w: %w", ErrKeepAliveTimeout, err)
		}
		s.logger.Warn("session lost", "error", err)
		c.captureError(s.address, err, "read")
		c.Emit(Event{Name: EventConnectionError, Err: err})
	}
}

// Call sends a request and waits for the mixer's response.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	s := c.sess
	c.mu.Unlock()
	if s == nil {
		return nil, ErrNotConnected
	}

	id := uuid.NewString()
	p := s.register(id, method)

	if err := c.write(s, OpRequest, requestData{RequestType: method, RequestID: id, RequestData: params}); err != nil {
		s.unregister(id)
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	timer := time.NewTimer(c.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case r := <-p.ch:
		return r.data, r.err
	case <-ctx.Done():
		s.unregister(id)
		return nil, ctx.Err()
	case <-timer.C:
		s.unregister(id)
		return nil, fmt.Errorf("%s: %w", method, ErrRequestTimeout)
	}
}

// Disconnect closes the session, or aborts a handshake in progress.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	s := c.sess
	c.sess = nil
	cancel := c.cancelDial
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if s == nil {
		return nil
	}

	s.manual.Store(true)
	s.ka.Stop()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteTimeout))
	err := s.conn.Close()
	s.failPending(ErrClosed)

	c.captureState(s, "identified", "closed", "disconnect")
	s.logger.Info("session closed")
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// Connected reports whether a session is identified.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess != nil
}

// SessionID returns the current session ID, or "" when disconnected.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return ""
	}
	return c.sess.id
}

// Latency returns the last keep-alive round trip of the current session.
func (c *Client) Latency() time.Duration {
	c.mu.Lock()
	s := c.sess
	c.mu.Unlock()
	if s == nil || s.ka == nil {
		return 0
	}
	return s.ka.Latency()
}

func (c *Client) captureMessage(s *session, dir log.Direction, typ log.MessageType, op int, requestID, name string, data []byte) {
	msg := &log.MessageEvent{Type: typ, OpCode: op, RequestID: requestID, Name: name}
	msg.SetPayload(data)
	c.capture.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Direction: dir,
		Category:  log.CategoryMessage,
		Address:   s.address,
		Message:   msg,
	})
}

func (c *Client) captureResponse(s *session, resp requestResponseData, data []byte) {
	result := resp.RequestStatus.Result
	code := resp.RequestStatus.Code
	msg := &log.MessageEvent{
		Type:       log.MessageTypeResponse,
		OpCode:     int(OpRequestResponse),
		RequestID:  resp.RequestID,
		Name:       resp.RequestType,
		Result:     &result,
		StatusCode: &code,
		Comment:    resp.RequestStatus.Comment,
	}
	s.mu.Lock()
	if p, ok := s.pending[resp.RequestID]; ok {
		latency := time.Since(p.sent)
		msg.Latency = &latency
	}
	s.mu.Unlock()
	msg.SetPayload(data)
	c.capture.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Direction: log.DirectionIn,
		Category:  log.CategoryMessage,
		Address:   s.address,
		Message:   msg,
	})
}

func (c *Client) captureState(s *session, from, to, reason string) {
	c.capture.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Direction: log.DirectionLocal,
		Category:  log.CategoryState,
		Address:   s.address,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySession,
			OldState: from,
			NewState: to,
			Reason:   reason,
		},
	})
}

func (c *Client) captureError(address string, err error, op string) {
	data := &log.ErrorEventData{Message: err.Error(), Context: op}
	var ce *CloseError
	if errors.As(err, &ce) {
		code := ce.Code
		data.Code = &code
	}
	c.capture.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionLocal,
		Category:  log.CategoryError,
		Address:   address,
		Error:     data,
	})
}

var _ Transport = (*Client)(nil)
