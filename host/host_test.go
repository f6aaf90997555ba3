package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/justapithecus/pixport/ipc"
	"github.com/justapithecus/pixport/protocol"
	"github.com/justapithecus/pixport/types"
)

func TestHost_EvalScript(t *testing.T) {
	h, f := newTestHost(t, Config{})

	ch := async(func() (any, error) {
		return h.EvalScript(context.Background(), "params.a + 1", map[string]any{"a": 1})
	})

	req := f.next()
	if req.Type != protocol.TypeScriptResult {
		t.Errorf("Type = %v, want script_result", req.Type)
	}
	if want := "var params = {\"a\":1};\nparams.a + 1"; req.Body != want {
		t.Errorf("Body = %q, want %q", req.Body, want)
	}
	f.reply(req.ID, "2")

	got, err := await(t, ch)
	if err != nil {
		t.Fatalf("EvalScript: %v", err)
	}
	if got != float64(2) {
		t.Errorf("EvalScript = %#v, want 2", got)
	}
}

func TestHost_EvalScriptError(t *testing.T) {
	h, f := newTestHost(t, Config{})

	ch := async(func() (any, error) { return h.EvalScript(context.Background(), "bad(", nil) })
	req := f.next()
	f.send(req.ID, protocol.TypeError, []byte("SyntaxError"))

	_, err := await(t, ch)
	if !IsScriptError(err) {
		t.Fatalf("err = %v, want ScriptError", err)
	}
	var se *ScriptError
	errors.As(err, &se)
	if se.ID != req.ID || se.Message != "SyntaxError" {
		t.Errorf("ScriptError = %+v", se)
	}
	if h.State() != StateConnected {
		t.Errorf("State = %v, want connected", h.State())
	}
}

func TestHost_EncryptedSession(t *testing.T) {
	h, f := newTestHost(t, Config{Mode: types.TransportSocket, Password: "hunter2"})

	ch := async(func() (any, error) { return h.EvalScript(context.Background(), "app.version", nil) })
	req := f.next()
	if req.Body != "app.version" {
		t.Errorf("Body = %q", req.Body)
	}
	f.reply(req.ID, `"25.0"`)

	got, err := await(t, ch)
	if err != nil || got != "25.0" {
		t.Errorf("EvalScript = %#v, %v", got, err)
	}
}

func TestHost_GetPixmapBoundsOnly(t *testing.T) {
	h, f := newTestHost(t, Config{})

	ch := async(func() (*PixmapResult, error) {
		return h.GetPixmap(context.Background(), 1, LayerID(42), PixmapSettings{BoundsOnly: true})
	})

	req := f.next()
	for _, want := range []string{`"documentId":1`, `"layerId":42`, `"boundsOnly":true`, `"scaleX":1`, `"maxDimension":10000`} {
		if !strings.Contains(req.Body, want) {
			t.Errorf("request missing %s: %s", want, req.Body)
		}
	}
	f.reply(req.ID, `{"bounds":{"top":0,"left":0,"right":10,"bottom":10}}`)

	got, err := await(t, ch)
	if err != nil {
		t.Fatalf("GetPixmap: %v", err)
	}
	want := types.Bounds{Top: 0, Left: 0, Right: 10, Bottom: 10}
	if got.Bounds != want {
		t.Errorf("Bounds = %+v, want %+v", got.Bounds, want)
	}
	if got.Pixmap != nil {
		t.Errorf("Pixmap = %+v, want nil", got.Pixmap)
	}
}

func TestHost_GetPixmapPartsInAnyOrder(t *testing.T) {
	h, f := newTestHost(t, Config{})

	ch := async(func() (*PixmapResult, error) {
		return h.GetPixmap(context.Background(), 1, LayerID(7), PixmapSettings{GetICCProfileData: true})
	})
	req := f.next()

	pm := &types.Pixmap{Width: 1, Height: 1, RowBytes: 4, ChannelCount: 4, BitsPerChannel: 8, Pixels: []byte{255, 9, 8, 7}}
	f.send(req.ID, protocol.TypePixelBuffer, protocol.EncodePixmap(pm))
	f.send(req.ID, protocol.TypeColorProfile, []byte("icc"))
	f.reply(req.ID, `{"bounds":{"top":2,"left":3,"right":4,"bottom":3}}`)

	got, err := await(t, ch)
	if err != nil {
		t.Fatalf("GetPixmap: %v", err)
	}
	if got.Pixmap == nil || got.Pixmap.Width != 1 || string(got.Pixmap.Pixels) != string(pm.Pixels) {
		t.Fatalf("Pixmap = %+v", got.Pixmap)
	}
	if got.Pixmap.Bounds != (types.Bounds{Top: 2, Left: 3, Right: 4, Bottom: 3}) {
		t.Errorf("Pixmap.Bounds = %+v", got.Pixmap.Bounds)
	}
	if string(got.ICCProfile) != "icc" || string(got.Pixmap.ICCProfile) != "icc" {
		t.Errorf("ICCProfile = %q", got.ICCProfile)
	}
}

func TestHost_GetPixmapUnexpectedPart(t *testing.T) {
	h, f := newTestHost(t, Config{})

	ch := async(func() (*PixmapResult, error) {
		return h.GetPixmap(context.Background(), 1, LayerID(7), PixmapSettings{BoundsOnly: true})
	})
	req := f.next()
	f.send(req.ID, protocol.TypePixelBuffer, make([]byte, protocol.PixmapHeaderSize))

	if _, err := await(t, ch); !IsUnexpectedResponse(err) {
		t.Errorf("err = %v, want UnexpectedResponseError", err)
	}
}

func TestHost_GetPixmapMissingBounds(t *testing.T) {
	h, f := newTestHost(t, Config{})

	ch := async(func() (*PixmapResult, error) {
		return h.GetPixmap(context.Background(), 1, LayerID(7), PixmapSettings{BoundsOnly: true})
	})
	req := f.next()
	f.reply(req.ID, `{"nope":true}`)

	if _, err := await(t, ch); !IsUnexpectedResponse(err) {
		t.Errorf("err = %v, want UnexpectedResponseError", err)
	}
}

func TestHost_GetPixmapSerialized(t *testing.T) {
	h, f := newTestHost(t, Config{})

	first := async(func() (*PixmapResult, error) {
		return h.GetPixmap(context.Background(), 1, LayerID(1), PixmapSettings{BoundsOnly: true})
	})
	req1 := f.next()
	second := async(func() (*PixmapResult, error) {
		return h.GetPixmap(context.Background(), 1, LayerID(2), PixmapSettings{BoundsOnly: true})
	})

	select {
	case r := <-f.requests:
		t.Fatalf("second pixmap request %d sent before first settled", r.ID)
	case <-time.After(50 * time.Millisecond):
	}

	f.reply(req1.ID, `{"bounds":{"top":0,"left":0,"right":1,"bottom":1}}`)
	if _, err := await(t, first); err != nil {
		t.Fatalf("first: %v", err)
	}
	req2 := f.next()
	if !strings.Contains(req2.Body, `"layerId":2`) {
		t.Errorf("second request = %q", req2.Body)
	}
	f.reply(req2.ID, `{"bounds":{"top":0,"left":0,"right":1,"bottom":1}}`)
	if _, err := await(t, second); err != nil {
		t.Fatalf("second: %v", err)
	}
}

func TestHost_TransportErrorRejectsAllPending(t *testing.T) {
	h, f := newTestHost(t, Config{})

	a := async(func() (any, error) { return h.EvalScript(context.Background(), "a", nil) })
	b := async(func() (any, error) { return h.EvalScript(context.Background(), "b", nil) })
	f.next()
	f.next()
	waitPending(t, h, 2)

	f.writeRaw(ipc.EncodeFrame(-1, nil))

	_, errA := await(t, a)
	_, errB := await(t, b)
	if !ipc.IsTransportError(errA) {
		t.Fatalf("errA = %v, want TransportError", errA)
	}
	if errA != errB {
		t.Errorf("errA = %v, errB = %v, want the same error", errA, errB)
	}
	<-h.Done()
	if h.State() != StateClosed {
		t.Errorf("State = %v, want closed", h.State())
	}
	if h.Err() != errA {
		t.Errorf("Err = %v, want %v", h.Err(), errA)
	}
	if _, err := h.EvalScript(context.Background(), "c", nil); err != ErrNotConnected {
		t.Errorf("after close: err = %v, want ErrNotConnected", err)
	}
}

func TestHost_CloseRejectsPending(t *testing.T) {
	h, f := newTestHost(t, Config{})

	a := async(func() (any, error) { return h.EvalScript(context.Background(), "a", nil) })
	f.next()
	waitPending(t, h, 1)

	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := await(t, a); err != ipc.ErrClosed {
		t.Errorf("err = %v, want ErrClosed", err)
	}
	if h.State() != StateClosed {
		t.Errorf("State = %v, want closed", h.State())
	}
}

func TestHost_IDsUniqueWhilePending(t *testing.T) {
	h, f := newTestHost(t, Config{})
	const n = 20

	var calls []<-chan result[any]
	for i := 0; i < n; i++ {
		script := fmt.Sprintf(`"q%d"`, i)
		calls = append(calls, async(func() (any, error) { return h.EvalScript(context.Background(), script, nil) }))
	}

	seen := make(map[uint32]bool)
	var reqs []request
	for i := 0; i < n; i++ {
		r := f.next()
		if r.ID == 0 || r.ID >= protocol.IDModulus {
			t.Errorf("id %d out of range", r.ID)
		}
		if seen[r.ID] {
			t.Errorf("duplicate in-flight id %d", r.ID)
		}
		seen[r.ID] = true
		reqs = append(reqs, r)
	}
	for i := len(reqs) - 1; i >= 0; i-- {
		f.reply(reqs[i].ID, reqs[i].Body)
	}

	for i, ch := range calls {
		got, err := await(t, ch)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if want := fmt.Sprintf("q%d", i); got != want {
			t.Errorf("call %d = %v, want %s", i, got, want)
		}
	}
}

func TestHost_KeepAliveSkipsPendingID(t *testing.T) {
	h, f := newTestHost(t, Config{})

	call := async(func() (any, error) { return h.EvalScript(context.Background(), `"x"`, nil) })
	req := f.next()
	waitPending(t, h, 1)

	h.mu.Lock()
	s := h.sess
	h.mu.Unlock()
	s.client.ResetIDs(req.ID - 1)

	if err := h.SendKeepAlive(); err != nil {
		t.Fatalf("SendKeepAlive: %v", err)
	}
	ka := f.next()
	if ka.Type != protocol.TypeKeepAlive {
		t.Fatalf("type = %v, want keep-alive", ka.Type)
	}
	if ka.ID == req.ID {
		t.Errorf("keep-alive reused pending id %d", req.ID)
	}

	f.reply(req.ID, req.Body)
	if got, err := await(t, call); err != nil || got != "x" {
		t.Errorf("EvalScript = %v, %v", got, err)
	}
}

func TestHost_LayerShapeWatchdog(t *testing.T) {
	h, f := newTestHost(t, Config{MultiMessageTimeout: 30 * time.Millisecond})

	ch := async(func() (*Shape, error) { return h.GetLayerShape(context.Background(), 1, 5) })
	req := f.next()
	f.reply(req.ID, `{"path":[]}`)

	_, err := await(t, ch)
	if !IsTimeoutError(err) {
		t.Fatalf("err = %v, want TimeoutError", err)
	}
	if h.State() != StateConnected {
		t.Errorf("State = %v, want connected", h.State())
	}
}

func TestHost_LayerShapeComplete(t *testing.T) {
	h, f := newTestHost(t, Config{MultiMessageTimeout: time.Second})

	ch := async(func() (*Shape, error) { return h.GetLayerShape(context.Background(), 1, 5) })
	req := f.next()
	f.reply(req.ID, `{"path":[1]}`)
	f.send(req.ID, protocol.TypePixelBuffer, protocol.EncodePixmap(&types.Pixmap{Width: 1, Height: 1, RowBytes: 4, Pixels: []byte{255, 0, 0, 0}}))

	got, err := await(t, ch)
	if err != nil {
		t.Fatalf("GetLayerShape: %v", err)
	}
	if got.Mask == nil || got.Mask.Width != 1 {
		t.Errorf("Mask = %+v", got.Mask)
	}
}

func TestHost_LayerShapeRepeatedResult(t *testing.T) {
	h, f := newTestHost(t, Config{MultiMessageTimeout: time.Second})

	ch := async(func() (*Shape, error) { return h.GetLayerShape(context.Background(), 1, 5) })
	req := f.next()
	f.reply(req.ID, `{"path":[1]}`)
	f.reply(req.ID, `{"path":[2]}`)
	f.send(req.ID, protocol.TypePixelBuffer, protocol.EncodePixmap(&types.Pixmap{Width: 1, Height: 1, RowBytes: 4, Pixels: []byte{255, 0, 0, 0}}))

	got, err := await(t, ch)
	if err != nil {
		t.Fatalf("GetLayerShape: %v", err)
	}
	if fmt.Sprint(got.Path) != "map[path:[1]]" {
		t.Errorf("Path = %v, want the first result", got.Path)
	}
}

func TestHost_GetDocumentInfo(t *testing.T) {
	h, f := newTestHost(t, Config{})

	ch := async(func() (*types.DocumentInfo, error) { return h.GetDocumentInfo(context.Background(), 0, nil) })
	req := f.next()
	if !strings.Contains(req.Body, `"compInfo":true`) || !strings.Contains(req.Body, `"getPathData":false`) {
		t.Errorf("flags not defaulted: %s", req.Body)
	}
	f.reply(req.ID, `{"id":3,"file":"/tmp/a.psd","bounds":{"top":0,"left":0,"right":4,"bottom":2},`+
		`"layers":[{"id":10,"type":"layerSection","visible":true,"layers":[{"id":11,"type":"layer"}]}],"extra":1}`)

	info, err := await(t, ch)
	if err != nil {
		t.Fatalf("GetDocumentInfo: %v", err)
	}
	if info.ID != 3 || info.Width() != 4 || info.Height() != 2 {
		t.Errorf("info = %+v", info)
	}
	if l := info.FindLayer(11); l == nil || l.Type != "layer" {
		t.Errorf("FindLayer(11) = %+v", l)
	}
	if info.Raw["extra"] != float64(1) {
		t.Errorf("Raw = %v", info.Raw)
	}
}

func TestHost_GetOpenDocumentIDsAndPath(t *testing.T) {
	h, f := newTestHost(t, Config{})

	ids := async(func() ([]int, error) { return h.GetOpenDocumentIDs(context.Background()) })
	req := f.next()
	f.reply(req.ID, `[1,5]`)
	got, err := await(t, ids)
	if err != nil || len(got) != 2 || got[1] != 5 {
		t.Errorf("GetOpenDocumentIDs = %v, %v", got, err)
	}

	path := async(func() (string, error) { return h.GetDocumentPath(context.Background(), 5) })
	req = f.next()
	f.reply(req.ID, `/Users/me/art.psd`)
	p, err := await(t, path)
	if err != nil || p != "/Users/me/art.psd" {
		t.Errorf("GetDocumentPath = %q, %v", p, err)
	}
}

func TestHost_SubscriptionDedupAndDispatch(t *testing.T) {
	h, f := newTestHost(t, Config{})

	var mu sync.Mutex
	var got []string
	events := make(chan struct{}, 4)
	listen := func(tag string) EventListener {
		return func(ev *protocol.HostEvent) {
			mu.Lock()
			got = append(got, fmt.Sprintf("%s:%v", tag, ev.Value))
			mu.Unlock()
			events <- struct{}{}
		}
	}

	first := async(func() (ListenerID, error) { return h.OnEvent(context.Background(), "imageChanged", listen("a")) })
	req := f.next()
	if !strings.Contains(req.Body, `"events":["imageChanged"]`) {
		t.Errorf("subscribe body = %q", req.Body)
	}
	f.reply(req.ID, "")
	if _, err := await(t, first); err != nil {
		t.Fatalf("OnEvent: %v", err)
	}

	if _, err := h.OnEvent(context.Background(), "imageChanged", listen("b")); err != nil {
		t.Fatalf("second OnEvent: %v", err)
	}
	select {
	case r := <-f.requests:
		t.Fatalf("duplicate subscription sent: %q", r.Body)
	default:
	}

	f.reply(0, "imageChanged\r7")
	<-events
	<-events

	mu.Lock()
	defer mu.Unlock()
	if strings.Join(got, ",") != "a:7,b:7" {
		t.Errorf("dispatch = %v, want [a:7 b:7]", got)
	}
}

func TestHost_SubscriptionFailureUnwinds(t *testing.T) {
	h, f := newTestHost(t, Config{})

	called := make(chan string, 4)
	failed := async(func() (ListenerID, error) {
		return h.OnEvent(context.Background(), "toolChanged", func(*protocol.HostEvent) { called <- "failed" })
	})
	req := f.next()
	f.send(req.ID, protocol.TypeError, []byte("no such event"))
	if _, err := await(t, failed); !IsScriptError(err) {
		t.Fatalf("err = %v, want ScriptError", err)
	}
	if h.Subscribed("toolChanged") {
		t.Error("event marked subscribed after failure")
	}

	retry := async(func() (ListenerID, error) {
		return h.OnEvent(context.Background(), "toolChanged", func(*protocol.HostEvent) { called <- "ok" })
	})
	req = f.next()
	f.reply(req.ID, "")
	if _, err := await(t, retry); err != nil {
		t.Fatalf("retry: %v", err)
	}

	f.reply(0, "toolChanged\r\"brush\"")
	select {
	case who := <-called:
		if who != "ok" {
			t.Errorf("listener %q called, want ok", who)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("listener not called")
	}
	select {
	case who := <-called:
		t.Errorf("unexpected extra call from %q", who)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHost_ConcurrentSubscribeWaitsForInFlight(t *testing.T) {
	h, f := newTestHost(t, Config{})

	first := async(func() (struct{}, error) {
		return struct{}{}, h.SubscribeToEvents(context.Background(), "imageChanged")
	})
	req := f.next()

	second := async(func() (struct{}, error) {
		return struct{}{}, h.SubscribeToEvents(context.Background(), "imageChanged")
	})
	select {
	case r := <-second:
		t.Fatalf("second subscriber returned %v before the host answered", r.err)
	case r := <-f.requests:
		t.Fatalf("duplicate subscription sent: %q", r.Body)
	case <-time.After(20 * time.Millisecond):
	}
	if h.Subscribed("imageChanged") {
		t.Error("event reported subscribed before the host answered")
	}

	f.reply(req.ID, "")
	if _, err := await(t, first); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := await(t, second); err != nil {
		t.Fatalf("second: %v", err)
	}
	if !h.Subscribed("imageChanged") {
		t.Error("event not subscribed")
	}
}

func TestHost_ConcurrentSubscribeRetriesAfterFailure(t *testing.T) {
	h, f := newTestHost(t, Config{})

	first := async(func() (struct{}, error) {
		return struct{}{}, h.SubscribeToEvents(context.Background(), "toolChanged")
	})
	req := f.next()
	second := async(func() (struct{}, error) {
		return struct{}{}, h.SubscribeToEvents(context.Background(), "toolChanged")
	})
	time.Sleep(20 * time.Millisecond)

	f.send(req.ID, protocol.TypeError, []byte("busy"))
	if _, err := await(t, first); !IsScriptError(err) {
		t.Fatalf("first err = %v, want ScriptError", err)
	}

	retry := f.next()
	if retry.ID == req.ID {
		t.Errorf("retry reused id %d", req.ID)
	}
	if !strings.Contains(retry.Body, `"events":["toolChanged"]`) {
		t.Errorf("retry body = %q", retry.Body)
	}
	f.reply(retry.ID, "")
	if _, err := await(t, second); err != nil {
		t.Fatalf("second: %v", err)
	}
	if !h.Subscribed("toolChanged") {
		t.Error("event not subscribed after retry")
	}
}

func TestHost_SubscribeWaitHonoursContext(t *testing.T) {
	h, f := newTestHost(t, Config{})

	first := async(func() (struct{}, error) {
		return struct{}{}, h.SubscribeToEvents(context.Background(), "imageChanged")
	})
	req := f.next()

	ctx, cancel := context.WithCancel(context.Background())
	second := async(func() (struct{}, error) {
		return struct{}{}, h.SubscribeToEvents(ctx, "imageChanged")
	})
	cancel()
	if _, err := await(t, second); !errors.Is(err, context.Canceled) {
		t.Errorf("second err = %v, want context.Canceled", err)
	}

	f.reply(req.ID, "")
	if _, err := await(t, first); err != nil {
		t.Fatalf("first: %v", err)
	}
}

func TestHost_ContextCancel(t *testing.T) {
	h, f := newTestHost(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())

	ch := async(func() (any, error) { return h.EvalScript(ctx, "slow()", nil) })
	req := f.next()
	cancel()

	if _, err := await(t, ch); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if h.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", h.Pending())
	}
	f.reply(req.ID, "late")
}

func TestHost_Lifecycle(t *testing.T) {
	h := New(Config{Mode: types.TransportPipe, PipeIn: 3, PipeOut: 4})
	if h.State() != StateDisconnected {
		t.Errorf("State = %v, want disconnected", h.State())
	}
	if _, err := h.EvalScript(context.Background(), "x", nil); err != ErrNotConnected {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
	if h.Meta().Endpoint != "fd:3,4" || h.Meta().SessionID == "" {
		t.Errorf("Meta = %+v", h.Meta())
	}

	h.Destroy()
	if h.State() != StateDestroyed {
		t.Errorf("State = %v, want destroyed", h.State())
	}
	if err := h.Connect(context.Background()); err != ErrDestroyed {
		t.Errorf("Connect after Destroy = %v, want ErrDestroyed", err)
	}
	if _, err := h.EvalScript(context.Background(), "x", nil); err != ErrDestroyed {
		t.Errorf("err = %v, want ErrDestroyed", err)
	}
}

type closeRecorder struct {
	io.ReadWriter
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestHost_ConnectKeyDerivationFailure(t *testing.T) {
	rwc := &closeRecorder{}
	h := New(Config{Mode: types.TransportSocket, Address: "127.0.0.1"},
		WithDialer(func(context.Context) (io.ReadWriteCloser, error) { return rwc, nil }))

	if err := h.Connect(context.Background()); err == nil {
		t.Fatal("Connect without password should fail")
	}
	if h.State() != StateClosed {
		t.Errorf("State = %v, want closed", h.State())
	}
	if !rwc.closed {
		t.Error("stream not closed after failed connect")
	}
}

func TestHost_ConnectDialFailure(t *testing.T) {
	h := New(Config{Mode: types.TransportPipe},
		WithDialer(func(context.Context) (io.ReadWriteCloser, error) { return nil, errors.New("refused") }))

	if err := h.Connect(context.Background()); err == nil || !strings.Contains(err.Error(), "refused") {
		t.Errorf("Connect = %v, want refused", err)
	}
	if h.State() != StateClosed {
		t.Errorf("State = %v, want closed", h.State())
	}
}
