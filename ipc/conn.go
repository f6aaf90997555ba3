package ipc

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"

	"github.com/justapithecus/pixport/metrics"
)

// Handler receives connection events. All calls are made from the single
// reader goroutine, so frames are delivered strictly in arrival order and
// HandleError always precedes HandleClose.
type Handler interface {
	// HandleFrame is called for every frame with a zero status.
	HandleFrame(payload []byte)
	// HandleError is called once with the error that terminated the
	// connection. Not called for a clean local close or peer EOF.
	HandleError(err error)
	// HandleClose is called exactly once, last. cause is nil for a clean close.
	HandleClose(cause error)
}

// Conn frames outgoing payloads and reassembles incoming ones on top of a
// byte stream. Outgoing frames are queued and written by a dedicated
// goroutine in Send order; Send never drops or reorders.
type Conn struct {
	rwc       io.ReadWriteCloser
	handler   Handler
	reasm     *Reassembler
	readSize  int
	collector *metrics.Collector

	mu     sync.Mutex
	queue  [][]byte
	shut   bool
	cause  error
	wake   chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
	starts sync.Once
}

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithBufferSize sets the initial receive buffer capacity.
func WithBufferSize(n int) ConnOption {
	return func(c *Conn) {
		c.reasm = NewReassembler(n)
	}
}

// WithReadSize sets the size of individual stream reads.
func WithReadSize(n int) ConnOption {
	return func(c *Conn) {
		if n > 0 {
			c.readSize = n
		}
	}
}

// WithCollector records frame and byte counters.
func WithCollector(col *metrics.Collector) ConnOption {
	return func(c *Conn) {
		c.collector = col
	}
}

// NewConn wraps rwc. Call Start to begin reading and writing.
func NewConn(rwc io.ReadWriteCloser, handler Handler, opts ...ConnOption) *Conn {
	c := &Conn{
		rwc:      rwc,
		handler:  handler,
		reasm:    NewReassembler(DefaultBufferSize),
		readSize: 32 * 1024,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the reader and writer goroutines. Idempotent.
func (c *Conn) Start() {
	c.starts.Do(func() {
		c.wg.Add(2)
		go c.readLoop()
		go c.writeLoop()
	})
}

// Send frames payload with a zero status and queues it for writing.
func (c *Conn) Send(payload []byte) error {
	frame := EncodeFrame(0, payload)

	c.mu.Lock()
	if c.shut {
		c.mu.Unlock()
		return ErrClosed
	}
	c.queue = append(c.queue, frame)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// Close shuts the connection down. Pending queued frames are discarded.
// The handler still receives HandleClose from the reader goroutine.
func (c *Conn) Close() error {
	return c.shutdown(nil)
}

// Done is closed once shutdown has begun.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the reader and writer goroutines have exited.
// Must not be called from a Handler method.
func (c *Conn) Wait() {
	c.wg.Wait()
}

// shutdown records the first cause and closes the stream. Later calls
// are no-ops and return nil.
func (c *Conn) shutdown(cause error) error {
	c.mu.Lock()
	if c.shut {
		c.mu.Unlock()
		return nil
	}
	c.shut = true
	c.cause = cause
	c.queue = nil
	c.mu.Unlock()

	close(c.done)
	return c.rwc.Close()
}

func (c *Conn) terminalCause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cause
}

func (c *Conn) readLoop() {
	defer c.wg.Done()

	buf := make([]byte, c.readSize)
	for {
		n, err := c.rwc.Read(buf)
		if n > 0 {
			if ferr := c.reasm.Feed(buf[:n], c.dispatch); ferr != nil {
				_ = c.shutdown(ferr)
				break
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) ||
				errors.Is(err, os.ErrClosed) {
				_ = c.shutdown(nil)
			} else {
				_ = c.shutdown(&TransportError{Kind: TransportErrorIO, Msg: "read failed", Err: err})
			}
			break
		}
	}

	cause := c.terminalCause()
	if cause != nil {
		c.collector.IncTransportErrors()
		c.handler.HandleError(cause)
	}
	c.handler.HandleClose(cause)
}

func (c *Conn) dispatch(f Frame) error {
	if f.Status != 0 {
		return &TransportError{
			Kind:   TransportErrorStatus,
			Msg:    "host reported communication failure",
			Status: f.Status,
		}
	}
	c.collector.IncFramesIn(HeaderSize + len(f.Payload))
	c.handler.HandleFrame(f.Payload)
	return nil
}

func (c *Conn) writeLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.wake:
		case <-c.done:
			return
		}

		for {
			c.mu.Lock()
			if c.shut || len(c.queue) == 0 {
				c.mu.Unlock()
				break
			}
			next := c.queue[0]
			c.queue[0] = nil
			c.queue = c.queue[1:]
			c.mu.Unlock()

			if _, err := c.rwc.Write(next); err != nil {
				_ = c.shutdown(&TransportError{Kind: TransportErrorIO, Msg: "write failed", Err: err})
				return
			}
			c.collector.IncFramesOut(len(next))
		}
	}
}
