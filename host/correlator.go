package host

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/justapithecus/pixport/log"
	"github.com/justapithecus/pixport/metrics"
	"github.com/justapithecus/pixport/protocol"
)

// Part is one kind of response part a request may wait for.
type Part int

const (
	// PartResult is the ScriptResult reply.
	PartResult Part = iota
	// PartProfile is the ColorProfile reply.
	PartProfile
	// PartPixels is the PixelBuffer reply.
	PartPixels

	numParts
)

func (p Part) String() string {
	switch p {
	case PartResult:
		return "result"
	case PartProfile:
		return "profile"
	case PartPixels:
		return "pixels"
	default:
		return fmt.Sprintf("part(%d)", int(p))
	}
}

// OpState is the lifecycle of a pending operation.
type OpState int

const (
	OpPending OpState = iota
	OpPartiallyResolved
	OpResolved
	OpRejected
)

// Expect is the completion predicate of an operation: the set of parts
// that must arrive. Parts not expected are treated as already delivered.
type Expect struct {
	Result  bool
	Profile bool
	Pixels  bool
	// Watchdog, when positive, rejects the operation with a TimeoutError
	// if no part arrives within Watchdog of the previous one. The timer is
	// armed by the first part. Repeated parts are dropped rather than
	// failing the operation, since the host may send more parts than asked.
	Watchdog time.Duration
}

func (e Expect) wants(p Part) bool {
	switch p {
	case PartResult:
		return e.Result
	case PartProfile:
		return e.Profile
	case PartPixels:
		return e.Pixels
	}
	return false
}

// Response is the aggregate of an operation's parts.
type Response struct {
	Result  *protocol.ScriptResult
	Profile []byte
	Pixels  []byte
}

// Operation is a handle to one in-flight request.
type Operation struct {
	id     uint32
	expect Expect
	state  OpState
	got    [numParts]bool
	resp   Response
	err    error
	timer  *time.Timer
	done   chan struct{}
}

// ID returns the message id the operation is keyed by.
func (o *Operation) ID() uint32 { return o.id }

// Done is closed once the operation settles.
func (o *Operation) Done() <-chan struct{} { return o.done }

func (o *Operation) complete() bool {
	for _, g := range o.got {
		if !g {
			return false
		}
	}
	return true
}

func (o *Operation) received() []Part {
	var parts []Part
	for p := Part(0); p < numParts; p++ {
		if o.expect.wants(p) && o.got[p] {
			parts = append(parts, p)
		}
	}
	return parts
}

// Correlator maps message ids to pending operations and settles them as
// response parts arrive. Safe for concurrent use.
type Correlator struct {
	mu        sync.Mutex
	ops       map[uint32]*Operation
	closed    error
	collector *metrics.Collector
	logger    *log.Logger
}

// NewCorrelator creates an empty Correlator. A nil logger discards.
func NewCorrelator(collector *metrics.Collector, logger *log.Logger) *Correlator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Correlator{ops: make(map[uint32]*Operation), collector: collector, logger: logger}
}

// Busy reports whether id belongs to a pending operation.
func (c *Correlator) Busy(id uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.ops[id]
	return ok
}

// Pending returns the number of unsettled operations.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ops)
}

// Register creates a pending operation for id. Must be called before the
// request is sent. Fails once RejectAll has run.
func (c *Correlator) Register(id uint32, expect Expect) (*Operation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed != nil {
		return nil, c.closed
	}
	if _, ok := c.ops[id]; ok {
		return nil, fmt.Errorf("message id %d already in flight", id)
	}
	op := &Operation{id: id, expect: expect, done: make(chan struct{})}
	for p := Part(0); p < numParts; p++ {
		op.got[p] = !expect.wants(p)
	}
	c.ops[id] = op
	c.collector.IncRequestsSent()
	return op, nil
}

// Deliver routes a correlated message to its operation. Returns false if
// msg is not correlated or no operation is pending for its id.
func (c *Correlator) Deliver(msg protocol.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	op, ok := c.ops[msg.MessageID()]
	if !ok {
		return false
	}

	var part Part
	switch m := msg.(type) {
	case *protocol.ErrorMessage:
		c.rejectLocked(op, &ScriptError{ID: m.ID, Message: m.Text})
		return true
	case *protocol.ScriptResult:
		part = PartResult
	case *protocol.ColorProfile:
		part = PartProfile
	case *protocol.PixelBuffer:
		part = PartPixels
	default:
		return false
	}

	if !op.expect.wants(part) {
		c.rejectLocked(op, &UnexpectedResponseError{
			ID:  op.id,
			Msg: fmt.Sprintf("%s part was not requested", part),
		})
		return true
	}
	if op.got[part] {
		if op.expect.Watchdog > 0 {
			c.logger.Warn("dropping repeated response part", map[string]any{"id": op.id, "part": part.String()})
			return true
		}
		c.rejectLocked(op, &UnexpectedResponseError{
			ID:  op.id,
			Msg: fmt.Sprintf("%s part arrived twice", part),
		})
		return true
	}

	switch m := msg.(type) {
	case *protocol.ScriptResult:
		op.resp.Result = m
	case *protocol.ColorProfile:
		op.resp.Profile = m.Data
	case *protocol.PixelBuffer:
		op.resp.Pixels = m.Data
	}
	op.got[part] = true

	if op.complete() {
		c.resolveLocked(op)
		return true
	}
	op.state = OpPartiallyResolved
	if op.expect.Watchdog > 0 {
		c.armLocked(op)
	}
	return true
}

// armLocked starts or restarts the watchdog for op.
func (c *Correlator) armLocked(op *Operation) {
	if op.timer != nil {
		op.timer.Stop()
	}
	op.timer = time.AfterFunc(op.expect.Watchdog, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.ops[op.id] != op {
			return
		}
		c.rejectLocked(op, &TimeoutError{ID: op.id, Window: op.expect.Watchdog, Received: op.received()})
	})
}

// Cancel rejects the operation for id with err if it is still pending.
func (c *Correlator) Cancel(id uint32, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if op, ok := c.ops[id]; ok {
		c.rejectLocked(op, err)
	}
}

// RejectAll fails every pending operation with err and makes later
// Register calls fail with it too.
func (c *Correlator) RejectAll(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed == nil {
		c.closed = err
	}
	for _, op := range c.ops {
		c.rejectLocked(op, err)
	}
}

// Wait blocks until op settles or ctx is done. A cancelled wait removes
// the operation; the host may still answer, and that answer is dropped.
func (c *Correlator) Wait(ctx context.Context, op *Operation) (*Response, error) {
	select {
	case <-op.done:
	case <-ctx.Done():
		c.Cancel(op.id, ctx.Err())
		<-op.done
	}
	if op.err != nil {
		return nil, op.err
	}
	return &op.resp, nil
}

func (c *Correlator) resolveLocked(op *Operation) {
	c.settleLocked(op)
	op.state = OpResolved
	c.collector.IncRequestsResolved()
	close(op.done)
}

func (c *Correlator) rejectLocked(op *Operation, err error) {
	c.settleLocked(op)
	op.state = OpRejected
	op.err = err
	if IsTimeoutError(err) {
		c.collector.IncRequestsTimedOut()
	} else {
		c.collector.IncRequestsRejected()
	}
	close(op.done)
}

func (c *Correlator) settleLocked(op *Operation) {
	delete(c.ops, op.id)
	if op.timer != nil {
		op.timer.Stop()
	}
}
