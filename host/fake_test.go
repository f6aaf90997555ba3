package host

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/justapithecus/pixport/ipc"
	"github.com/justapithecus/pixport/protocol"
	"github.com/justapithecus/pixport/types"
)

// request is one message received by the fake host.
type request struct {
	ID   uint32
	Type protocol.MessageType
	Body string
}

// fakeHost plays the host application on the far end of a net.Pipe.
type fakeHost struct {
	t        *testing.T
	conn     net.Conn
	cipher   *ipc.Cipher
	requests chan request
	wmu      sync.Mutex
	done     chan struct{}
}

func newFakeHost(t *testing.T, conn net.Conn, cipher *ipc.Cipher) *fakeHost {
	t.Helper()
	f := &fakeHost{
		t:        t,
		conn:     conn,
		cipher:   cipher,
		requests: make(chan request, 256),
		done:     make(chan struct{}),
	}
	go f.readLoop()
	return f
}

func (f *fakeHost) readLoop() {
	defer close(f.done)
	reasm := ipc.NewReassembler(1024)
	buf := make([]byte, 4096)
	for {
		n, err := f.conn.Read(buf)
		if n > 0 {
			_ = reasm.Feed(buf[:n], func(fr ipc.Frame) error {
				payload := fr.Payload
				if f.cipher != nil {
					plain, err := f.cipher.Decrypt(payload)
					if err != nil {
						return err
					}
					payload = plain
				}
				hdr, body, err := protocol.ParseHeader(payload)
				if err != nil {
					return err
				}
				f.requests <- request{ID: hdr.ID, Type: hdr.Type, Body: string(body)}
				return nil
			})
		}
		if err != nil {
			return
		}
	}
}

func (f *fakeHost) next() request {
	f.t.Helper()
	select {
	case r := <-f.requests:
		return r
	case <-time.After(5 * time.Second):
		f.t.Fatal("timed out waiting for request")
		return request{}
	}
}

func (f *fakeHost) send(id uint32, typ protocol.MessageType, body []byte) {
	f.t.Helper()
	payload := protocol.EncodePayload(id, typ, body)
	if f.cipher != nil {
		payload = f.cipher.Encrypt(payload)
	}
	f.writeRaw(ipc.EncodeFrame(0, payload))
}

func (f *fakeHost) writeRaw(b []byte) {
	f.t.Helper()
	f.wmu.Lock()
	defer f.wmu.Unlock()
	if _, err := f.conn.Write(b); err != nil {
		f.t.Errorf("fake host write: %v", err)
	}
}

func (f *fakeHost) reply(id uint32, text string) {
	f.t.Helper()
	f.send(id, protocol.TypeScriptResult, []byte(text))
}

func (f *fakeHost) close() {
	_ = f.conn.Close()
	<-f.done
}

// newTestHost connects a Host in pipe mode to a fake host.
func newTestHost(t *testing.T, cfg Config, opts ...Option) (*Host, *fakeHost) {
	t.Helper()
	local, remote := net.Pipe()
	if cfg.Mode == "" {
		cfg.Mode = types.TransportPipe
	}

	var cipher *ipc.Cipher
	if cfg.Mode == types.TransportSocket {
		var err error
		if cipher, err = ipc.NewCipher(cfg.Password); err != nil {
			t.Fatalf("NewCipher: %v", err)
		}
	}

	dial := func(context.Context) (io.ReadWriteCloser, error) { return local, nil }
	h := New(cfg, append([]Option{WithDialer(dial)}, opts...)...)
	f := newFakeHost(t, remote, cipher)
	if err := h.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		h.Destroy()
		f.close()
	})
	return h, f
}

// result carries an asynchronous call's outcome.
type result[T any] struct {
	val T
	err error
}

func async[T any](fn func() (T, error)) <-chan result[T] {
	ch := make(chan result[T], 1)
	go func() {
		v, err := fn()
		ch <- result[T]{v, err}
	}()
	return ch
}

func await[T any](t *testing.T, ch <-chan result[T]) (T, error) {
	t.Helper()
	select {
	case r := <-ch:
		return r.val, r.err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for call")
		var zero T
		return zero, nil
	}
}

func waitPending(t *testing.T, h *Host, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for h.Pending() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Pending = %d, want %d", h.Pending(), n)
		}
		time.Sleep(time.Millisecond)
	}
}
