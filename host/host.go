// Package host is the application-facing interface to a running host
// image-editing application.
//
// A Host owns one connection at a time. Requests are correlated with
// their responses by message id; transport failure or close rejects every
// pending request at once. Pixel acquisition is serialized across the
// whole connection because the host cannot attribute interleaved pixel
// responses.
package host

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/justapithecus/pixport/ipc"
	"github.com/justapithecus/pixport/log"
	"github.com/justapithecus/pixport/metrics"
	"github.com/justapithecus/pixport/protocol"
	"github.com/justapithecus/pixport/types"
)

// DefaultMultiMessageTimeout is the watchdog window of multi-part calls.
const DefaultMultiMessageTimeout = 5 * time.Second

// State is the connection lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosing
	StateClosed
	// StateDestroyed is terminal and reachable from any state.
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config describes how to reach the host.
type Config struct {
	// Mode selects socket (encrypted) or pipe (trusted) transport.
	Mode types.TransportMode
	// Address and Port locate the host in socket mode.
	Address string
	Port    int
	// Password keys payload encryption in socket mode.
	Password string
	// PipeIn and PipeOut are inherited descriptors in pipe mode.
	PipeIn  uintptr
	PipeOut uintptr
	// DialTimeout bounds the socket connect. Zero means no timeout.
	DialTimeout time.Duration
	// KeepAlive sends a periodic keep-alive when positive.
	KeepAlive time.Duration
	// MultiMessageTimeout is the watchdog window for multi-part calls.
	// Zero means DefaultMultiMessageTimeout.
	MultiMessageTimeout time.Duration
}

// Endpoint renders the configured endpoint for logs.
func (c Config) Endpoint() string {
	if c.Mode == types.TransportPipe {
		return ipc.PipeEndpoint(c.PipeIn, c.PipeOut)
	}
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// Dialer opens the byte stream to the host.
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *log.Logger) Option {
	return func(h *Host) { h.logger = l }
}

// WithCollector records request and transport counters.
func WithCollector(c *metrics.Collector) Option {
	return func(h *Host) { h.collector = c }
}

// WithDialer replaces the transport derived from Config.
func WithDialer(d Dialer) Option {
	return func(h *Host) { h.dialer = d }
}

// WithRecorder captures every plaintext payload of the next connection.
func WithRecorder(r *ipc.Recorder) Option {
	return func(h *Host) { h.recorder = r }
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(h *Host) { h.meta.SessionID = id }
}

// Host is the application-facing façade over one host connection.
type Host struct {
	cfg       Config
	meta      types.SessionMeta
	logger    *log.Logger
	collector *metrics.Collector
	dialer    Dialer
	recorder  *ipc.Recorder

	mu    sync.Mutex
	state State
	sess  *session

	// pixmapMu serializes pixel acquisition.
	pixmapMu sync.Mutex

	events eventRegistry
}

// New creates a disconnected Host.
func New(cfg Config, opts ...Option) *Host {
	if cfg.Mode == "" {
		cfg.Mode = types.TransportSocket
	}
	if cfg.Port == 0 {
		cfg.Port = ipc.DefaultPort
	}
	if cfg.MultiMessageTimeout == 0 {
		cfg.MultiMessageTimeout = DefaultMultiMessageTimeout
	}
	h := &Host{
		cfg:    cfg,
		meta:   types.SessionMeta{SessionID: uuid.NewString(), Endpoint: cfg.Endpoint(), Mode: cfg.Mode},
		logger: log.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.dialer == nil {
		h.dialer = h.defaultDialer
	}
	h.events.init()
	return h
}

// Meta returns the session identity.
func (h *Host) Meta() types.SessionMeta {
	return h.meta
}

// State returns the current lifecycle state.
func (h *Host) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Host) defaultDialer(ctx context.Context) (io.ReadWriteCloser, error) {
	if h.cfg.Mode == types.TransportPipe {
		return ipc.OpenPipe(h.cfg.PipeIn, h.cfg.PipeOut)
	}
	return ipc.DialTCP(ctx, h.cfg.Address, h.cfg.Port, h.cfg.DialTimeout)
}

// Connect opens the transport and, in socket mode, derives the payload
// key. Either failure leaves the Host Closed. Connect is permitted from
// Disconnected and Closed; event subscriptions do not survive a reconnect.
func (h *Host) Connect(ctx context.Context) error {
	h.mu.Lock()
	switch h.state {
	case StateDestroyed:
		h.mu.Unlock()
		return ErrDestroyed
	case StateDisconnected, StateClosed:
	default:
		h.mu.Unlock()
		return ErrBusy
	}
	h.state = StateConnecting
	h.mu.Unlock()

	fail := func(err error) error {
		h.setState(StateClosed)
		h.logger.Error("connect failed", map[string]any{"endpoint": h.meta.Endpoint, "error": err.Error()})
		return err
	}

	rwc, err := h.dialer(ctx)
	if err != nil {
		return fail(fmt.Errorf("connect %s: %w", h.meta.Endpoint, err))
	}

	opts := []protocol.Option{
		protocol.WithLogger(h.logger),
		protocol.WithCollector(h.collector),
		protocol.WithRecorder(h.recorder),
	}
	if h.cfg.Mode == types.TransportSocket {
		cipher, err := ipc.NewCipher(h.cfg.Password)
		if err != nil {
			_ = rwc.Close()
			return fail(fmt.Errorf("derive payload key: %w", err))
		}
		opts = append(opts, protocol.WithCipher(cipher))
	}

	s := &session{
		host: h,
		corr: NewCorrelator(h.collector, h.logger),
		done: make(chan struct{}),
		wake: make(chan struct{}, 1),
	}
	s.client = protocol.NewClient(rwc, s, opts...)

	h.mu.Lock()
	if h.state == StateDestroyed {
		h.mu.Unlock()
		_ = rwc.Close()
		return ErrDestroyed
	}
	h.sess = s
	h.state = StateConnected
	h.mu.Unlock()

	h.events.reset()
	s.start(h.cfg.KeepAlive)
	h.logger.Info("connected", map[string]any{"endpoint": h.meta.Endpoint, "mode": string(h.cfg.Mode)})
	return nil
}

// Close shuts the connection down gracefully and waits for its
// goroutines. Pending requests are rejected. Must not be called from an
// event listener.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.state != StateConnected {
		h.mu.Unlock()
		return nil
	}
	h.state = StateClosing
	s := h.sess
	h.mu.Unlock()

	err := s.client.Close()
	s.wait()

	h.mu.Lock()
	if h.state != StateDestroyed {
		h.state = StateClosed
	}
	h.mu.Unlock()
	return err
}

// Destroy tears the Host down from any state. Every later call fails with
// ErrDestroyed. Must not be called from an event listener.
func (h *Host) Destroy() {
	h.mu.Lock()
	h.state = StateDestroyed
	s := h.sess
	h.mu.Unlock()

	if s != nil {
		_ = s.client.Close()
		s.wait()
	}
}

// Done returns a channel closed when the current connection ends, or nil
// if there is none.
func (h *Host) Done() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sess == nil {
		return nil
	}
	return h.sess.done
}

// Err returns the error that ended the current connection, if any.
func (h *Host) Err() error {
	h.mu.Lock()
	s := h.sess
	h.mu.Unlock()
	if s == nil {
		return nil
	}
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Pending returns the number of in-flight requests.
func (h *Host) Pending() int {
	h.mu.Lock()
	s := h.sess
	h.mu.Unlock()
	if s == nil {
		return 0
	}
	return s.corr.Pending()
}

// SendKeepAlive sends one keep-alive.
func (h *Host) SendKeepAlive() error {
	s, err := h.active()
	if err != nil {
		return err
	}
	_, err = s.client.SendKeepAlive(s.corr.Busy)
	return err
}

func (h *Host) setState(st State) {
	h.mu.Lock()
	if h.state != StateDestroyed {
		h.state = st
	}
	h.mu.Unlock()
}

// sessionClosed moves to Closed unless s has been superseded or the Host
// destroyed.
func (h *Host) sessionClosed(s *session) {
	h.mu.Lock()
	if h.sess == s && h.state != StateDestroyed {
		h.state = StateClosed
	}
	h.mu.Unlock()
}

func (h *Host) active() (*session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.state {
	case StateDestroyed:
		return nil, ErrDestroyed
	case StateConnected:
		return h.sess, nil
	default:
		return nil, ErrNotConnected
	}
}

// call sends script and waits for the parts described by expect.
func (h *Host) call(ctx context.Context, script string, expect Expect) (*Response, error) {
	s, err := h.active()
	if err != nil {
		return nil, err
	}
	id, err := s.client.NextID(s.corr.Busy)
	if err != nil {
		return nil, err
	}
	op, err := s.corr.Register(id, expect)
	if err != nil {
		return nil, err
	}
	if err := s.client.Send(id, protocol.TypeScriptResult, []byte(script)); err != nil {
		s.corr.Cancel(id, err)
	}
	return s.corr.Wait(ctx, op)
}

// session is the state of one connection.
type session struct {
	host   *Host
	client *protocol.Client
	corr   *Correlator

	done chan struct{}
	err  error
	wg   sync.WaitGroup

	mu    sync.Mutex
	queue []*protocol.HostEvent
	wake  chan struct{}
}

func (s *session) start(keepAlive time.Duration) {
	s.client.Start()
	s.wg.Add(1)
	go s.eventLoop()
	if keepAlive > 0 {
		s.wg.Add(1)
		go s.keepAliveLoop(keepAlive)
	}
}

// wait blocks until the transport and the session goroutines exit.
func (s *session) wait() {
	s.client.Wait()
	s.wg.Wait()
}

// HandleMessage routes a decoded message.
func (s *session) HandleMessage(msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.HostEvent:
		s.mu.Lock()
		s.queue = append(s.queue, m)
		s.mu.Unlock()
		select {
		case s.wake <- struct{}{}:
		default:
		}
	case *protocol.KeepAlive:
		s.host.logger.Debug("keep-alive acknowledged", map[string]any{"id": m.ID})
	case *protocol.ErrorMessage:
		if !s.corr.Deliver(m) {
			s.host.logger.Warn("host error for unknown request", map[string]any{"id": m.ID, "error": m.Text})
		}
	case *protocol.ScriptResult, *protocol.PixelBuffer, *protocol.ColorProfile:
		if !s.corr.Deliver(m) {
			s.host.logger.Debug("dropped uncorrelated message", map[string]any{"id": m.MessageID()})
		}
	default:
		s.host.logger.Warn("unhandled message", map[string]any{"id": msg.MessageID(), "type": fmt.Sprintf("%T", msg)})
	}
}

// HandleProtocolError is logged by the client; the connection survives.
func (s *session) HandleProtocolError(error) {}

// HandleClose rejects every pending request with the terminating error.
func (s *session) HandleClose(cause error) {
	err := cause
	if err == nil {
		err = ipc.ErrClosed
	}
	s.corr.RejectAll(err)
	s.err = err
	close(s.done)

	s.host.sessionClosed(s)
	s.host.logger.Info("connection closed", map[string]any{"cause": errString(cause)})
}

func (s *session) eventLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.wake:
		case <-s.done:
			return
		}
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			ev := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()

			s.host.events.dispatch(ev)
		}
	}
}

func (s *session) keepAliveLoop(every time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := s.client.SendKeepAlive(s.corr.Busy); err != nil {
				s.host.logger.Warn("keep-alive failed", map[string]any{"error": err.Error()})
			}
		case <-s.done:
			return
		}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
