package ipc

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/pixport/types"
)

// Direction of a recorded payload.
type Direction string

const (
	// DirectionIn is a payload received from the host.
	DirectionIn Direction = "in"
	// DirectionOut is a payload sent to the host.
	DirectionOut Direction = "out"
)

// Record is one plaintext payload captured from a session.
type Record struct {
	Version   string    `msgpack:"v"`
	SessionID string    `msgpack:"session_id"`
	Seq       int64     `msgpack:"seq"`
	Direction Direction `msgpack:"dir"`
	Ts        string    `msgpack:"ts"`
	Payload   []byte    `msgpack:"payload"`
}

// Recorder appends session payloads to a stream as length-prefixed
// msgpack records. Safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	w         *bufio.Writer
	closer    io.Closer
	sessionID string
	seq       int64
	now       func() time.Time
}

// NewRecorder writes records to w. If w is an io.Closer, Close closes it.
func NewRecorder(w io.Writer, sessionID string) *Recorder {
	r := &Recorder{w: bufio.NewWriter(w), sessionID: sessionID, now: time.Now}
	if c, ok := w.(io.Closer); ok {
		r.closer = c
	}
	return r
}

// Record appends one payload. A nil Recorder discards.
func (r *Recorder) Record(dir Direction, payload []byte) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	body, err := msgpack.Marshal(&Record{
		Version:   types.RecordingVersion,
		SessionID: r.sessionID,
		Seq:       r.seq,
		Direction: dir,
		Ts:        r.now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(body)))
	if _, err := r.w.Write(prefix[:]); err != nil {
		return err
	}
	_, err = r.w.Write(body)
	return err
}

// Close flushes buffered records and closes the underlying writer.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.w.Flush(); err != nil {
		return err
	}
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// RecordReader reads records written by a Recorder.
type RecordReader struct {
	reader io.Reader
}

// NewRecordReader creates a reader over a recording stream.
func NewRecordReader(r io.Reader) *RecordReader {
	return &RecordReader{reader: r}
}

// Next returns the next record, or io.EOF at a clean end of stream.
// A truncated record is reported as io.ErrUnexpectedEOF.
func (d *RecordReader) Next() (*Record, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(d.reader, lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read record length: %w", err)
	}

	size := binary.BigEndian.Uint32(lengthBuf[:])
	if size > MaxFrameSize {
		return nil, fmt.Errorf("record size %d exceeds maximum %d", size, MaxFrameSize)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(d.reader, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read record body: %w", err)
	}

	var rec Record
	if err := msgpack.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}
