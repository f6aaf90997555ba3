//go:build unix

package ipc

import (
	"io"
	"os"
	"syscall"
	"testing"
	"time"
)

// dupFD hands out a private copy of f's descriptor, the way a parent
// process passes pipe ends to a child. Fd puts f into blocking mode.
func dupFD(t *testing.T, f *os.File) uintptr {
	t.Helper()
	fd, err := syscall.Dup(int(f.Fd()))
	if err != nil {
		t.Fatalf("dup: %v", err)
	}
	return uintptr(fd)
}

func TestOpenPipe_CloseInterruptsPendingRead(t *testing.T) {
	hostOut, clientIn, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	clientOut, hostIn, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	inFD, outFD := dupFD(t, hostOut), dupFD(t, hostIn)
	_ = hostOut.Close()
	_ = hostIn.Close()
	defer clientIn.Close()
	defer clientOut.Close()

	pp, err := OpenPipe(inFD, outFD)
	if err != nil {
		t.Fatalf("OpenPipe: %v", err)
	}
	h := newRecordingHandler()
	c := NewConn(pp, h)
	c.Start()

	if _, err := clientIn.Write(AppendFrame(nil, 0, []byte("hello"))); err != nil {
		t.Fatalf("write: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		h.mu.Lock()
		n := len(h.frames)
		h.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("frame not delivered over pipe")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := c.Send([]byte("ping")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	buf := make([]byte, HeaderSize+4)
	if _, err := io.ReadFull(clientOut, buf); err != nil {
		t.Fatalf("read from client side: %v", err)
	}

	// The reader is now parked in Read with nothing left to deliver.
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case cause := <-h.closed:
		if cause != nil {
			t.Errorf("close cause = %v, want nil", cause)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("HandleClose not delivered after Close")
	}
	c.Wait()
}
