package cmd

import (
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/justapithecus/pixport/ipc"
	"github.com/justapithecus/pixport/protocol"
	"github.com/justapithecus/pixport/types"
)

const testPassword = "secret"

// reply is one message the fake host sends back.
type reply struct {
	typ  protocol.MessageType
	body []byte
}

func result(text string) reply { return reply{typ: protocol.TypeScriptResult, body: []byte(text)} }

// fakeHost serves the encrypted socket protocol on a loopback port and
// answers every script with respond.
type fakeHost struct {
	t       *testing.T
	ln      net.Listener
	cipher  *ipc.Cipher
	respond func(script string) []reply

	mu      sync.Mutex
	scripts []string
	wg      sync.WaitGroup
}

func newFakeHost(t *testing.T, respond func(script string) []reply) *fakeHost {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	cipher, err := ipc.NewCipher(testPassword)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	f := &fakeHost{t: t, ln: ln, cipher: cipher, respond: respond}
	f.wg.Add(1)
	go f.acceptLoop()
	t.Cleanup(func() {
		_ = ln.Close()
		f.wg.Wait()
	})
	return f
}

func (f *fakeHost) port() string {
	return strconv.Itoa(f.ln.Addr().(*net.TCPAddr).Port)
}

// args returns the connection flags for this host.
func (f *fakeHost) args() []string {
	return []string{"--host", "127.0.0.1", "--port", f.port(), "--password", testPassword}
}

func (f *fakeHost) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.scripts...)
}

func (f *fakeHost) acceptLoop() {
	defer f.wg.Done()
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		f.wg.Add(1)
		go f.serve(conn)
	}
}

func (f *fakeHost) serve(conn net.Conn) {
	defer f.wg.Done()
	defer func() { _ = conn.Close() }()

	reasm := ipc.NewReassembler(1024)
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			ferr := reasm.Feed(buf[:n], func(fr ipc.Frame) error {
				plain, err := f.cipher.Decrypt(fr.Payload)
				if err != nil {
					return err
				}
				hdr, body, err := protocol.ParseHeader(plain)
				if err != nil {
					return err
				}
				if hdr.Type == protocol.TypeKeepAlive {
					return f.send(conn, hdr.ID, result(protocol.StillAlive))
				}
				f.mu.Lock()
				f.scripts = append(f.scripts, string(body))
				f.mu.Unlock()
				for _, r := range f.respond(string(body)) {
					if err := f.send(conn, hdr.ID, r); err != nil {
						return err
					}
				}
				return nil
			})
			if ferr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (f *fakeHost) send(conn net.Conn, id uint32, r reply) error {
	payload := f.cipher.Encrypt(protocol.EncodePayload(id, r.typ, r.body))
	_, err := conn.Write(ipc.EncodeFrame(0, payload))
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

var layerIDPattern = regexp.MustCompile(`"layerId":(\d+)`)

// documentHost answers like a host with one 2x1 document holding layers
// 10 and 11. Pixmaps are opaque gray at the layer id's value.
func documentHost(script string) []reply {
	switch {
	case strings.Contains(script, "ids of all open documents"):
		return []reply{result(`[3]`)}
	case strings.Contains(script, "file path of a document"):
		return []reply{result(`/art/hero.psd`)}
	case strings.Contains(script, "JSON description of a document"):
		return []reply{result(`{"id":3,"file":"/art/hero.psd","bounds":{"top":0,"left":0,"right":2,"bottom":1},` +
			`"layers":[{"id":10,"name":"rough","type":"layer","visible":true},{"id":11,"name":"metal","type":"layer","visible":true}]}`)}
	case strings.Contains(script, "Streams one layer"):
		m := layerIDPattern.FindStringSubmatch(script)
		v, _ := strconv.Atoi(m[1])
		pm := &types.Pixmap{
			Width: 2, Height: 1, RowBytes: 8, ChannelCount: 4, BitsPerChannel: 8,
			Pixels: []byte{255, byte(v), byte(v), byte(v), 255, byte(v), byte(v), byte(v)},
		}
		return []reply{
			{typ: protocol.TypePixelBuffer, body: protocol.EncodePixmap(pm)},
			result(`{"bounds":{"top":0,"left":0,"right":2,"bottom":1}}`),
		}
	case strings.Contains(script, "throw"):
		return []reply{{typ: protocol.TypeError, body: []byte("Error 8800: boom")}}
	default:
		return []reply{result(`2`)}
	}
}
