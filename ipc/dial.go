package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// DefaultPort is the host application's default remote-connection port.
const DefaultPort = 49494

// DialTCP connects to the host application at host:port.
func DialTCP(ctx context.Context, host string, port int, timeout time.Duration) (net.Conn, error) {
	if port <= 0 {
		port = DefaultPort
	}
	d := net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &TransportError{Kind: TransportErrorIO, Msg: "dial " + addr, Err: err}
	}
	return conn, nil
}

// PipePair joins an inherited read pipe and write pipe into one stream.
type PipePair struct {
	r *os.File
	w *os.File
}

// OpenPipe wraps two inherited file descriptors. inFD carries bytes from
// the host, outFD carries bytes to it. Both are switched to non-blocking
// mode so Close interrupts a pending Read or Write.
func OpenPipe(inFD, outFD uintptr) (*PipePair, error) {
	if inFD == 0 || outFD == 0 {
		return nil, errors.New("pipe mode requires non-zero in and out descriptors")
	}
	for _, fd := range []uintptr{inFD, outFD} {
		if err := setNonblock(fd); err != nil {
			return nil, fmt.Errorf("pipe descriptor %d: %w", fd, err)
		}
	}
	r := os.NewFile(inFD, "pixport-in")
	w := os.NewFile(outFD, "pixport-out")
	if r == nil || w == nil {
		return nil, fmt.Errorf("invalid pipe descriptors %d,%d", inFD, outFD)
	}
	return &PipePair{r: r, w: w}, nil
}

// NewPipePair builds a PipePair from already open files.
func NewPipePair(r, w *os.File) *PipePair {
	return &PipePair{r: r, w: w}
}

func (p *PipePair) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *PipePair) Write(b []byte) (int, error) { return p.w.Write(b) }

// Close closes both ends and returns the first error.
func (p *PipePair) Close() error {
	werr := p.w.Close()
	rerr := p.r.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// PipeEndpoint renders descriptors for session metadata.
func PipeEndpoint(inFD, outFD uintptr) string {
	return fmt.Sprintf("fd:%d,%d", inFD, outFD)
}
