// Package metrics provides per-session metrics collection.
//
// The Collector accumulates counters for one host session and the export
// runs made over it. It is a leaf package with no internal dependencies.
// All increment methods are nil-receiver safe so callers may pass a nil
// *Collector to disable collection.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all metrics.
type Snapshot struct {
	// Transport
	FramesIn        int64
	FramesOut       int64
	BytesIn         int64
	BytesOut        int64
	TransportErrors int64

	// Protocol
	ProtocolErrors int64
	HostEvents     int64

	// Requests
	RequestsSent     int64
	RequestsResolved int64
	RequestsRejected int64
	RequestsTimedOut int64
	RequestsPending  int64

	// Export
	PixmapsFetched   int64
	PixmapBytes      int64
	PixmapsRepaired  int64
	OutputsEncoded   int64
	OutputsFailed    int64
	SinkWriteSuccess int64
	SinkWriteFailure int64

	// Dimensions (informational, set at construction)
	SessionID      string
	Mode           string
	Encoder        string
	StorageBackend string
}

// Collector accumulates metrics for one session.
// Thread-safe via sync.Mutex.
type Collector struct {
	mu sync.Mutex

	framesIn        int64
	framesOut       int64
	bytesIn         int64
	bytesOut        int64
	transportErrors int64

	protocolErrors int64
	hostEvents     int64

	requestsSent     int64
	requestsResolved int64
	requestsRejected int64
	requestsTimedOut int64

	pixmapsFetched   int64
	pixmapBytes      int64
	pixmapsRepaired  int64
	outputsEncoded   int64
	outputsFailed    int64
	sinkWriteSuccess int64
	sinkWriteFailure int64

	sessionID      string
	mode           string
	encoder        string
	storageBackend string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(sessionID, mode, encoder, storageBackend string) *Collector {
	return &Collector{
		sessionID:      sessionID,
		mode:           mode,
		encoder:        encoder,
		storageBackend: storageBackend,
	}
}

func (c *Collector) add(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// --- Transport ---

// IncFramesIn records one received frame of size bytes.
func (c *Collector) IncFramesIn(size int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesIn++
	c.bytesIn += int64(size)
	c.mu.Unlock()
}

// IncFramesOut records one written frame of size bytes.
func (c *Collector) IncFramesOut(size int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesOut++
	c.bytesOut += int64(size)
	c.mu.Unlock()
}

// IncTransportErrors records a connection-terminating failure.
func (c *Collector) IncTransportErrors() {
	if c == nil {
		return
	}
	c.add(&c.transportErrors, 1)
}

// --- Protocol ---

// IncProtocolErrors records a non-fatal protocol decode failure.
func (c *Collector) IncProtocolErrors() {
	if c == nil {
		return
	}
	c.add(&c.protocolErrors, 1)
}

// IncHostEvents records a host-originated event.
func (c *Collector) IncHostEvents() {
	if c == nil {
		return
	}
	c.add(&c.hostEvents, 1)
}

// --- Requests ---
// Sent minus resolved, rejected and timed out is the pending gauge.

// IncRequestsSent records a correlated request.
func (c *Collector) IncRequestsSent() {
	if c == nil {
		return
	}
	c.add(&c.requestsSent, 1)
}

// IncRequestsResolved records a request that completed.
func (c *Collector) IncRequestsResolved() {
	if c == nil {
		return
	}
	c.add(&c.requestsResolved, 1)
}

// IncRequestsRejected records a request that failed (other than timeout).
func (c *Collector) IncRequestsRejected() {
	if c == nil {
		return
	}
	c.add(&c.requestsRejected, 1)
}

// IncRequestsTimedOut records a watchdog expiry.
func (c *Collector) IncRequestsTimedOut() {
	if c == nil {
		return
	}
	c.add(&c.requestsTimedOut, 1)
}

// --- Export ---

// IncPixmapsFetched records an acquired pixmap of size bytes.
func (c *Collector) IncPixmapsFetched(size int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.pixmapsFetched++
	c.pixmapBytes += int64(size)
	c.mu.Unlock()
}

// IncPixmapsRepaired records a pixmap padded to document size.
func (c *Collector) IncPixmapsRepaired() {
	if c == nil {
		return
	}
	c.add(&c.pixmapsRepaired, 1)
}

// IncOutputsEncoded records a successfully encoded output.
func (c *Collector) IncOutputsEncoded() {
	if c == nil {
		return
	}
	c.add(&c.outputsEncoded, 1)
}

// IncOutputsFailed records an output that failed to compose, encode or store.
func (c *Collector) IncOutputsFailed() {
	if c == nil {
		return
	}
	c.add(&c.outputsFailed, 1)
}

// IncSinkWriteSuccess records a successful sink write.
func (c *Collector) IncSinkWriteSuccess() {
	if c == nil {
		return
	}
	c.add(&c.sinkWriteSuccess, 1)
}

// IncSinkWriteFailure records a failed sink write.
func (c *Collector) IncSinkWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.sinkWriteFailure, 1)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		FramesIn:        c.framesIn,
		FramesOut:       c.framesOut,
		BytesIn:         c.bytesIn,
		BytesOut:        c.bytesOut,
		TransportErrors: c.transportErrors,

		ProtocolErrors: c.protocolErrors,
		HostEvents:     c.hostEvents,

		RequestsSent:     c.requestsSent,
		RequestsResolved: c.requestsResolved,
		RequestsRejected: c.requestsRejected,
		RequestsTimedOut: c.requestsTimedOut,
		RequestsPending:  c.requestsSent - c.requestsResolved - c.requestsRejected - c.requestsTimedOut,

		PixmapsFetched:   c.pixmapsFetched,
		PixmapBytes:      c.pixmapBytes,
		PixmapsRepaired:  c.pixmapsRepaired,
		OutputsEncoded:   c.outputsEncoded,
		OutputsFailed:    c.outputsFailed,
		SinkWriteSuccess: c.sinkWriteSuccess,
		SinkWriteFailure: c.sinkWriteFailure,

		SessionID:      c.sessionID,
		Mode:           c.mode,
		Encoder:        c.encoder,
		StorageBackend: c.storageBackend,
	}
}
