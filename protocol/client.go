package protocol

import (
	"io"

	"github.com/justapithecus/pixport/ipc"
	"github.com/justapithecus/pixport/log"
	"github.com/justapithecus/pixport/metrics"
)

// Handler receives decoded traffic from a Client. All calls are made from
// the transport's reader goroutine, in arrival order. Implementations must
// not block on a reply from the same Client.
type Handler interface {
	// HandleMessage is called for every decoded message.
	HandleMessage(msg Message)
	// HandleProtocolError is called for messages that could not be
	// decoded. The connection stays up.
	HandleProtocolError(err error)
	// HandleClose is called exactly once when the transport shuts down.
	// cause is the terminating *ipc.TransportError, or nil for a clean close.
	HandleClose(cause error)
}

// Client encodes requests and decodes replies for one host connection.
type Client struct {
	conn      *ipc.Conn
	handler   Handler
	cipher    *ipc.Cipher
	recorder  *ipc.Recorder
	logger    *log.Logger
	collector *metrics.Collector
	ids       IDAllocator
	connOpts  []ipc.ConnOption
}

// Option configures a Client.
type Option func(*Client)

// WithCipher encrypts outgoing and decrypts incoming payloads.
// Omit for trusted pipe transports.
func WithCipher(c *ipc.Cipher) Option {
	return func(cl *Client) { cl.cipher = c }
}

// WithRecorder captures every plaintext payload in both directions.
func WithRecorder(r *ipc.Recorder) Option {
	return func(cl *Client) { cl.recorder = r }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *log.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// WithCollector records protocol and transport counters.
func WithCollector(c *metrics.Collector) Option {
	return func(cl *Client) { cl.collector = c }
}

// WithConnOptions passes options through to the underlying ipc.Conn.
func WithConnOptions(opts ...ipc.ConnOption) Option {
	return func(cl *Client) { cl.connOpts = append(cl.connOpts, opts...) }
}

// NewClient wraps rwc. Call Start to begin exchanging messages.
func NewClient(rwc io.ReadWriteCloser, handler Handler, opts ...Option) *Client {
	c := &Client{handler: handler, logger: log.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	connOpts := append([]ipc.ConnOption{ipc.WithCollector(c.collector)}, c.connOpts...)
	c.conn = ipc.NewConn(rwc, (*connHandler)(c), connOpts...)
	return c
}

// Start launches the transport goroutines.
func (c *Client) Start() {
	c.conn.Start()
}

// Close shuts the transport down. The Handler still receives HandleClose.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Wait blocks until the transport goroutines have exited.
func (c *Client) Wait() {
	c.conn.Wait()
}

// Done is closed once the transport has begun shutting down.
func (c *Client) Done() <-chan struct{} {
	return c.conn.Done()
}

// NextID allocates a message id, skipping ids for which busy is true.
func (c *Client) NextID(busy func(uint32) bool) (uint32, error) {
	return c.ids.Next(busy)
}

// ResetIDs makes the next allocated id follow last.
func (c *Client) ResetIDs(last uint32) {
	c.ids.Reset(last)
}

// Send encodes and queues one message with an id from NextID.
func (c *Client) Send(id uint32, typ MessageType, body []byte) error {
	payload := EncodePayload(id, typ, body)
	if err := c.recorder.Record(ipc.DirectionOut, payload); err != nil {
		c.logger.Warn("failed to record payload", map[string]any{"id": id, "error": err.Error()})
	}
	if c.cipher != nil {
		payload = c.cipher.Encrypt(payload)
	}
	return c.conn.Send(payload)
}

// SendCommand sends script for evaluation under a fresh id.
func (c *Client) SendCommand(script string) (uint32, error) {
	id, err := c.NextID(nil)
	if err != nil {
		return 0, err
	}
	return id, c.Send(id, TypeScriptResult, []byte(script))
}

// SendKeepAlive sends a keep-alive under a fresh id, skipping ids for
// which busy is true so the keep-alive never shares an id with a
// pending request.
func (c *Client) SendKeepAlive(busy func(uint32) bool) (uint32, error) {
	id, err := c.NextID(busy)
	if err != nil {
		return 0, err
	}
	return id, c.Send(id, TypeKeepAlive, nil)
}

// connHandler adapts Client to ipc.Handler without exporting the methods.
type connHandler Client

func (h *connHandler) HandleFrame(payload []byte) {
	c := (*Client)(h)

	if c.cipher != nil {
		plain, err := c.cipher.Decrypt(payload)
		if err != nil {
			c.protocolError(&ProtocolError{Kind: ProtocolErrorCipher, Msg: "decrypt payload", Err: err})
			return
		}
		payload = plain
	}
	if err := c.recorder.Record(ipc.DirectionIn, payload); err != nil {
		c.logger.Warn("failed to record payload", map[string]any{"error": err.Error()})
	}

	msg, valueErr, err := Decode(payload)
	if err != nil {
		c.protocolError(err)
		return
	}
	if valueErr != nil {
		c.logger.Debug("script result is not JSON", map[string]any{
			"id":    msg.MessageID(),
			"error": valueErr.Error(),
		})
	}
	if _, ok := msg.(*HostEvent); ok {
		c.collector.IncHostEvents()
	}
	c.handler.HandleMessage(msg)
}

func (h *connHandler) HandleError(err error) {
	c := (*Client)(h)
	c.logger.Error("transport failed", map[string]any{"error": err.Error()})
}

func (h *connHandler) HandleClose(cause error) {
	c := (*Client)(h)
	if err := c.recorder.Close(); err != nil {
		c.logger.Warn("failed to close recording", map[string]any{"error": err.Error()})
	}
	c.handler.HandleClose(cause)
}

func (c *Client) protocolError(err error) {
	c.collector.IncProtocolErrors()
	c.logger.Warn("dropped undecodable message", map[string]any{"error": err.Error()})
	c.handler.HandleProtocolError(err)
}
