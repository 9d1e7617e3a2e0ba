package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrAuthenticationFailed means the server rejected the bot token during the
// handshake. Retrying cannot help; the process should surface this instead
// of treating it like a network blip.
var ErrAuthenticationFailed = errors.New("gateway: authentication failed, check the bot token")

// transport is the slice of *websocket.Conn the session needs. Tests swap
// in a scripted fake.
type transport interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// DialFunc establishes the message-framed transport to the gateway URL.
type DialFunc func(ctx context.Context, url string) (transport, error)

func wsDial(ctx context.Context, url string) (transport, error) {
	header := http.Header{}
	header.Add("accept-encoding", "zlib")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// SessionConfig carries the tunables of a Session.
type SessionConfig struct {
	GatewayURL       string
	Intents          int
	HandshakeTimeout time.Duration
	DispatchWorkers  int
	BackoffBase      time.Duration
	BackoffMax       time.Duration
	// ResumableCloseCodes decides which server close codes keep the session
	// eligible for resume. Policy, not protocol: deployments may widen or
	// narrow it.
	ResumableCloseCodes map[int]bool
	RateLimiterOpts     []RateLimiterConfigOpt
	Dial                DialFunc
	// TransitionHook observes every state change. Nil outside of tests and
	// diagnostics.
	TransitionHook func(from, to State, in Input)
}

func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		GatewayURL:          "wss://gateway.discord.gg",
		Intents:             IntentGuildMessages | IntentDirectMessages | IntentMessageContent,
		HandshakeTimeout:    30 * time.Second,
		DispatchWorkers:     4,
		BackoffBase:         time.Second,
		BackoffMax:          2 * time.Minute,
		ResumableCloseCodes: defaultResumableCloseCodes,
		Dial:                wsDial,
	}
}

type SessionOpt func(config *SessionConfig)

func (c *SessionConfig) Apply(opts []SessionOpt) {
	for _, opt := range opts {
		opt(c)
	}
}

func WithGatewayURL(url string) SessionOpt {
	return func(config *SessionConfig) { config.GatewayURL = url }
}

func WithIntents(intents int) SessionOpt {
	return func(config *SessionConfig) { config.Intents = intents }
}

func WithHandshakeTimeout(d time.Duration) SessionOpt {
	return func(config *SessionConfig) { config.HandshakeTimeout = d }
}

func WithDispatchWorkers(n int) SessionOpt {
	return func(config *SessionConfig) { config.DispatchWorkers = n }
}

func WithBackoff(base, max time.Duration) SessionOpt {
	return func(config *SessionConfig) { config.BackoffBase = base; config.BackoffMax = max }
}

func WithResumableCloseCodes(codes map[int]bool) SessionOpt {
	return func(config *SessionConfig) { config.ResumableCloseCodes = codes }
}

func WithDial(dial DialFunc) SessionOpt {
	return func(config *SessionConfig) { config.Dial = dial }
}

func WithTransitionHook(hook func(from, to State, in Input)) SessionOpt {
	return func(config *SessionConfig) { config.TransitionHook = hook }
}

// Session is the gateway connection: it owns the transport, drives the
// lifecycle state machine, and feeds dispatch events to the dispatcher.
// One Session per bot process.
type Session struct {
	config     SessionConfig
	token      string
	dispatcher *Dispatcher
	backoff    *Backoff

	// RateLimiter also serializes the write path: Wait/Unlock bracket every
	// outbound frame, so the heartbeat goroutine and the read loop never
	// interleave writes.
	rateLimiter RateLimiter
	socketMutex sync.Mutex

	mu               sync.RWMutex
	state            State
	conn             transport
	monitor          *heartbeatMonitor
	sessionID        string
	resumeGatewayURL string
	awaitingFirstAck bool
	decodeStrikes    int

	sequence atomic.Int64

	dispatchCh chan dispatchJob
	workers    sync.WaitGroup

	shutdown     chan struct{}
	shutdownOnce sync.Once
}

type dispatchJob struct {
	event string
	data  json.RawMessage
}

// NewSession wires a session for the given bot token. It does not connect;
// call Run.
func NewSession(token string, dispatcher *Dispatcher, opts ...SessionOpt) *Session {
	config := DefaultSessionConfig()
	config.Apply(opts)

	return &Session{
		config:      *config,
		token:       token,
		dispatcher:  dispatcher,
		backoff:     NewBackoff(config.BackoffBase, config.BackoffMax),
		rateLimiter: NewRateLimiter(config.RateLimiterOpts...),
		shutdown:    make(chan struct{}),
	}
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SessionID reports the server-assigned session identifier, empty until the
// first successful handshake and after a full restart.
func (s *Session) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// Sequence reports the last-known dispatch sequence number.
func (s *Session) Sequence() int64 {
	return s.sequence.Load()
}

// apply feeds one input to the state machine. Inputs with no transition
// defined for the current state are ignored.
func (s *Session) apply(in Input) bool {
	s.mu.Lock()
	from := s.state
	next, ok := Next(from, in)
	if ok {
		s.state = next
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	slog.Debug("session state change", "from", from, "to", next, "input", in)
	if s.config.TransitionHook != nil {
		s.config.TransitionHook(from, next, in)
	}
	return true
}

// Run connects and services the session until ctx is cancelled, Close is
// called, or a fatal error occurs. All recoverable errors are retried
// internally with backoff; only fatal ones (bad token, cancellation) are
// returned.
func (s *Session) Run(ctx context.Context) error {
	s.startWorkers()
	defer s.stopWorkers()

	for {
		err := s.runOnce(ctx)

		if errors.Is(err, ErrAuthenticationFailed) {
			s.Close()
			return err
		}
		if ctx.Err() != nil {
			s.Close()
			return ctx.Err()
		}
		select {
		case <-s.shutdown:
			return nil
		default:
		}

		if err != nil {
			slog.Warn("gateway connection lost", "err", err, "state", s.State())
		}

		delay := s.backoff.NextDelay()
		slog.Info("reconnecting to gateway", "delay", delay, "resumable", s.SessionID() != "")

		select {
		case <-ctx.Done():
			s.Close()
			return ctx.Err()
		case <-s.shutdown:
			return nil
		case <-time.After(delay):
		}
	}
}

// runOnce performs one dial, handshake, and read loop. It returns when the
// transport dies or the session is shut down. The state on return is either
// Resuming (recoverable, session retained), Disconnected (recoverable,
// fresh start), or Closing/Disconnected via shutdown.
func (s *Session) runOnce(ctx context.Context) error {
	resuming := s.State() == StateResuming
	if !resuming && !s.apply(InputConnect) {
		return fmt.Errorf("gateway: cannot connect from state %s", s.State())
	}

	dialCtx, cancel := context.WithTimeout(ctx, s.config.HandshakeTimeout)
	conn, err := s.config.Dial(dialCtx, s.gatewayURL())
	cancel()
	if err != nil {
		s.apply(InputTransportLost)
		return fmt.Errorf("gateway: dial: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.decodeStrikes = 0
	s.awaitingFirstAck = true
	s.mu.Unlock()
	s.rateLimiter.Reset()

	if !resuming {
		s.apply(InputTransportUp)
	}

	// AwaitingHello has a bounded wait of its own.
	conn.SetReadDeadline(time.Now().Add(s.config.HandshakeTimeout))
	hello, err := s.readHello(conn)
	if err != nil {
		s.retireTransport(conn)
		s.apply(InputTransportLost)
		return err
	}

	interval := time.Duration(hello.HeartbeatInterval) * time.Millisecond
	monitor := newHeartbeatMonitor(interval, s.sendHeartbeat, s.onStale)
	s.mu.Lock()
	s.monitor = monitor
	s.mu.Unlock()

	if !resuming {
		s.apply(InputHello)
	}

	if err := s.sendHandshake(ctx); err != nil {
		s.retireTransport(conn)
		s.apply(InputTransportLost)
		return err
	}

	go monitor.run()
	defer monitor.Stop()

	return s.listen(ctx, conn)
}

// readHello consumes the first inbound frame, which must be hello.
func (s *Session) readHello(conn transport) (*helloData, error) {
	messageType, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("gateway: read hello: %w", err)
	}
	e, err := DecodeEvent(messageType, data)
	if err != nil {
		return nil, err
	}
	if e.Operation != OpHello {
		return nil, fmt.Errorf("gateway: expected hello, got opcode %d", e.Operation)
	}
	var h helloData
	if err := json.Unmarshal(e.RawData, &h); err != nil {
		return nil, &DecodeError{Cause: err}
	}
	if h.HeartbeatInterval <= 0 {
		return nil, &DecodeError{Cause: fmt.Errorf("hello without heartbeat interval")}
	}
	return &h, nil
}

// sendHandshake sends resume when a session identifier is held, identify
// otherwise.
func (s *Session) sendHandshake(ctx context.Context) error {
	s.mu.RLock()
	sessionID := s.sessionID
	s.mu.RUnlock()

	if sessionID == "" {
		return s.sendIdentify(ctx)
	}
	return s.sendResume(ctx, sessionID)
}

func (s *Session) sendIdentify(ctx context.Context) error {
	var identify Identify
	identify.Token = s.token
	identify.Intents = s.config.Intents
	identify.Properties.OS = runtime.GOOS
	identify.Properties.Browser = "pedantic"
	identify.Properties.Device = "pedantic"

	return s.send(ctx, identifyPayload{OpIdentify, identify})
}

func (s *Session) sendResume(ctx context.Context, sessionID string) error {
	p := resumePayload{}
	p.Op = OpResume
	p.Data.Token = s.token
	p.Data.SessionID = sessionID
	p.Data.Sequence = s.sequence.Load()

	return s.send(ctx, p)
}

func (s *Session) sendHeartbeat() error {
	return s.send(context.Background(), heartbeatPayload{OpHeartbeat, s.sequence.Load()})
}

// listen is the inbound frame loop. It returns when the transport fails or
// the session decided to move on (reconnect, invalid session escalation,
// shutdown).
func (s *Session) listen(ctx context.Context, conn transport) error {
	for {
		s.mu.RLock()
		established := s.state == StateReady
		sameConn := s.conn == conn
		s.mu.RUnlock()

		if !sameConn {
			return nil
		}

		// Identifying/Resuming must not wait forever for the server's
		// answer; once Ready, reads block indefinitely.
		if established {
			conn.SetReadDeadline(time.Time{})
		} else {
			conn.SetReadDeadline(time.Now().Add(s.config.HandshakeTimeout))
		}

		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return s.onReadError(conn, err)
		}

		event, err := DecodeEvent(messageType, data)
		if err != nil {
			if s.onDecodeError(conn, err) {
				return nil
			}
			continue
		}

		if done, err := s.handleEvent(ctx, conn, event); done || err != nil {
			return err
		}
	}
}

// handleEvent routes one decoded frame. done reports that the connection is
// finished and the caller should stop reading from it.
func (s *Session) handleEvent(ctx context.Context, conn transport, event *Event) (done bool, err error) {
	s.mu.Lock()
	s.decodeStrikes = 0
	monitor := s.monitor
	s.mu.Unlock()

	switch event.Operation {
	case OpHeartbeat:
		// Server requested an immediate beat.
		if err := s.sendHeartbeat(); err != nil {
			return true, s.onReadError(conn, err)
		}

	case OpHeartbeatAck:
		if monitor != nil {
			monitor.ack()
		}
		s.mu.Lock()
		stable := s.awaitingFirstAck && s.state == StateReady
		if stable {
			s.awaitingFirstAck = false
		}
		s.mu.Unlock()
		// Handshake complete plus one acknowledged heartbeat: the
		// connection counts as stably running.
		if stable {
			s.backoff.RecordSuccess()
		}

	case OpReconnect:
		slog.Info("server requested reconnect")
		s.retireTransportWithCode(conn, websocket.CloseServiceRestart)
		s.apply(InputReconnect)
		return true, nil

	case OpInvalidSession:
		var resumable bool
		_ = json.Unmarshal(event.RawData, &resumable)
		if resumable {
			s.retireTransport(conn)
			s.apply(InputReconnect)
			return true, nil
		}
		slog.Warn("session invalidated by server, identifying from scratch")
		s.clearSession()
		s.apply(InputResumeRejected)
		if err := s.sendIdentify(ctx); err != nil {
			return true, s.onReadError(conn, err)
		}

	case OpDispatch:
		s.handleDispatch(event)
	}

	return false, nil
}

func (s *Session) handleDispatch(event *Event) {
	s.advanceSequence(event.Sequence)

	switch event.Type {
	case EventReady:
		var ready Ready
		if err := json.Unmarshal(event.RawData, &ready); err != nil {
			slog.Error("malformed READY payload", "err", err)
			return
		}
		s.mu.Lock()
		s.sessionID = ready.SessionID
		if ready.ResumeGatewayURL != "" {
			s.resumeGatewayURL = ready.ResumeGatewayURL
		}
		s.mu.Unlock()
		s.apply(InputEstablished)
		slog.Info("gateway session established",
			"user", ready.User.Username, "session_id", ready.SessionID)

	case EventResumed:
		s.apply(InputEstablished)
		slog.Info("gateway session resumed", "sequence", s.sequence.Load())
	}

	select {
	case s.dispatchCh <- dispatchJob{event.Type, event.RawData}:
	case <-s.shutdown:
	}
}

// advanceSequence stores seq unless it would move the sequence backwards.
func (s *Session) advanceSequence(seq int64) {
	for {
		current := s.sequence.Load()
		if seq <= current {
			return
		}
		if s.sequence.CompareAndSwap(current, seq) {
			return
		}
	}
}

// onDecodeError drops the offending frame; three consecutive strikes force
// a reconnect (session retained when the policy allows resuming). Reports
// whether the connection was retired.
func (s *Session) onDecodeError(conn transport, err error) bool {
	s.mu.Lock()
	s.decodeStrikes++
	strikes := s.decodeStrikes
	s.mu.Unlock()

	slog.Warn("dropping malformed frame", "err", err, "strikes", strikes)
	if strikes < 3 {
		return false
	}

	slog.Warn("three consecutive malformed frames, forcing reconnect")
	s.retireTransportWithCode(conn, websocket.CloseProtocolError)
	if !s.apply(InputReconnect) {
		s.apply(InputTransportLost)
	}
	return true
}

// onReadError classifies a dead transport: authentication failures are
// fatal, recognized resumable close codes (and plain transport errors with
// a held session) go to the resume path, everything else restarts clean.
func (s *Session) onReadError(conn transport, err error) error {
	select {
	case <-s.shutdown:
		return nil
	default:
	}

	s.retireTransport(conn)

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		if closeErr.Code == CloseAuthenticationFailed {
			return fmt.Errorf("%w: %s", ErrAuthenticationFailed, closeErr.Text)
		}
		if !s.config.ResumableCloseCodes[closeErr.Code] {
			s.clearSession()
			s.apply(InputTransportLost)
			return fmt.Errorf("gateway: closed with code %d: %s", closeErr.Code, closeErr.Text)
		}
	}

	if s.SessionID() != "" {
		if !s.apply(InputReconnect) {
			s.apply(InputTransportLost)
		}
	} else {
		s.apply(InputTransportLost)
	}
	return fmt.Errorf("gateway: read: %w", err)
}

// onStale handles a heartbeat that was never acknowledged: the connection
// is considered dead and the session takes the resume path.
func (s *Session) onStale() {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return
	}

	s.retireTransportWithCode(conn, websocket.CloseGoingAway)
	if !s.apply(InputReconnect) {
		s.apply(InputTransportLost)
	}
}

// clearSession forgets the resume credentials; the next handshake must be a
// full identify.
func (s *Session) clearSession() {
	s.mu.Lock()
	s.sessionID = ""
	s.resumeGatewayURL = ""
	s.mu.Unlock()
	s.sequence.Store(0)
}

func (s *Session) gatewayURL() string {
	s.mu.RLock()
	base := s.config.GatewayURL
	if s.sessionID != "" && s.resumeGatewayURL != "" {
		base = s.resumeGatewayURL
	}
	s.mu.RUnlock()
	return fmt.Sprintf("%s/?v=%s&encoding=json", base, gatewayVersion)
}

// retireTransport closes conn and, if it is still the live transport,
// detaches it and stops the heartbeat monitor. A reconnect never runs two
// transports at once.
func (s *Session) retireTransport(conn transport) {
	s.retireTransportWithCode(conn, websocket.CloseNormalClosure)
}

func (s *Session) retireTransportWithCode(conn transport, closeCode int) {
	s.mu.Lock()
	live := s.conn == conn
	monitor := s.monitor
	if live {
		s.conn = nil
		s.monitor = nil
	}
	s.mu.Unlock()

	if live && monitor != nil {
		monitor.Stop()
	}

	s.socketMutex.Lock()
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(closeCode, ""))
	s.socketMutex.Unlock()
	conn.Close()
}

// Close shuts the session down: heartbeat stopped, transport closed, state
// Disconnected, in that order. Safe from any state, including mid-handshake,
// and safe to call more than once.
func (s *Session) Close() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)

		s.apply(InputShutdown)

		s.mu.Lock()
		conn := s.conn
		monitor := s.monitor
		s.conn = nil
		s.monitor = nil
		s.mu.Unlock()

		if monitor != nil {
			monitor.Stop()
		}
		if conn != nil {
			s.socketMutex.Lock()
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			s.socketMutex.Unlock()
			conn.Close()
		}

		s.apply(InputClosed)
	})
}

// send serializes one outbound frame through the rate limiter and the
// socket mutex. Every producer (heartbeat timer, handshake, immediate
// heartbeat requests) goes through here; nothing else writes to the
// transport.
func (s *Session) send(ctx context.Context, v any) error {
	data, err := EncodePayload(v)
	if err != nil {
		return err
	}

	s.socketMutex.Lock()
	defer s.socketMutex.Unlock()

	if err := s.rateLimiter.Wait(ctx); err != nil {
		return err
	}
	defer s.rateLimiter.Unlock()

	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return errors.New("gateway: no live transport")
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) startWorkers() {
	s.dispatchCh = make(chan dispatchJob, 16)
	for i := 0; i < s.config.DispatchWorkers; i++ {
		s.workers.Add(1)
		go func() {
			defer s.workers.Done()
			for job := range s.dispatchCh {
				s.dispatcher.Dispatch(job.event, job.data)
			}
		}()
	}
}

func (s *Session) stopWorkers() {
	close(s.dispatchCh)
	s.workers.Wait()
}
