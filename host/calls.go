package host

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/justapithecus/pixport/protocol"
	"github.com/justapithecus/pixport/scripts"
	"github.com/justapithecus/pixport/types"
)

// EvalScript evaluates script on the host with params assigned to the
// global "params". Returns the reply parsed as JSON, or its text for
// literal and non-JSON replies. A host evaluation failure is a *ScriptError.
func (h *Host) EvalScript(ctx context.Context, script string, params any) (any, error) {
	res, err := h.evalResult(ctx, script, params)
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}

func (h *Host) evalResult(ctx context.Context, script string, params any) (*protocol.ScriptResult, error) {
	src, err := scripts.WithParams(script, params)
	if err != nil {
		return nil, err
	}
	resp, err := h.call(ctx, src, Expect{Result: true})
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// PixmapResult is the outcome of GetPixmap.
type PixmapResult struct {
	Bounds types.Bounds
	// Pixmap is nil for bounds-only requests.
	Pixmap *types.Pixmap
	// ICCProfile is set when the request asked for profile data.
	ICCProfile []byte
	// Meta is the full reply describing the pixmap.
	Meta map[string]any
}

// GetPixmap renders the selected layers of a document. Calls are
// serialized: a request is not sent until the previous one has settled.
func (h *Host) GetPixmap(ctx context.Context, documentID int, layer LayerSpec, settings PixmapSettings) (*PixmapResult, error) {
	settings = settings.withDefaults()

	h.pixmapMu.Lock()
	defer h.pixmapMu.Unlock()

	script, err := scripts.Build(scripts.GetLayerPixmap, settings.params(documentID, layer))
	if err != nil {
		return nil, err
	}
	resp, err := h.call(ctx, script, settings.expect())
	if err != nil {
		return nil, err
	}

	meta, ok := resp.Result.Value.(map[string]any)
	if !ok {
		return nil, &UnexpectedResponseError{ID: resp.Result.ID, Msg: "pixmap description is not an object"}
	}
	rawBounds, ok := meta["bounds"]
	if !ok {
		return nil, &UnexpectedResponseError{ID: resp.Result.ID, Msg: "pixmap description has no bounds"}
	}
	out := &PixmapResult{Meta: meta, ICCProfile: resp.Profile}
	if err := decodeValue(rawBounds, &out.Bounds); err != nil {
		return nil, &UnexpectedResponseError{ID: resp.Result.ID, Msg: err.Error()}
	}
	if settings.BoundsOnly {
		return out, nil
	}

	pm, err := protocol.ParsePixmap(resp.Pixels)
	if err != nil {
		return nil, err
	}
	pm.Bounds = out.Bounds
	pm.ICCProfile = resp.Profile
	out.Pixmap = pm
	h.collector.IncPixmapsFetched(len(pm.Pixels))
	return out, nil
}

// GetDocumentInfo describes a document. documentID 0 selects the active
// document; nil flags selects DefaultDocumentInfoFlags.
func (h *Host) GetDocumentInfo(ctx context.Context, documentID int, flags *DocumentInfoFlags) (*types.DocumentInfo, error) {
	f := DefaultDocumentInfoFlags()
	if flags != nil {
		f = *flags
	}
	script, err := scripts.Build(scripts.GetDocumentInfo, map[string]any{"documentId": documentID, "flags": f})
	if err != nil {
		return nil, err
	}
	resp, err := h.call(ctx, script, Expect{Result: true})
	if err != nil {
		return nil, err
	}

	raw, ok := resp.Result.Value.(map[string]any)
	if !ok {
		return nil, &UnexpectedResponseError{ID: resp.Result.ID, Msg: "document description is not an object"}
	}
	var info types.DocumentInfo
	if err := decodeValue(raw, &info); err != nil {
		return nil, &UnexpectedResponseError{ID: resp.Result.ID, Msg: err.Error()}
	}
	info.Raw = raw
	return &info, nil
}

// GetOpenDocumentIDs lists the ids of all open documents.
func (h *Host) GetOpenDocumentIDs(ctx context.Context) ([]int, error) {
	script, err := scripts.Load(scripts.GetOpenDocumentIDs)
	if err != nil {
		return nil, err
	}
	res, err := h.evalResult(ctx, script, nil)
	if err != nil {
		return nil, err
	}
	if res.Text == "" || res.Text == protocol.NoValue {
		return nil, nil
	}
	var ids []int
	if err := decodeValue(res.Value, &ids); err != nil {
		return nil, &UnexpectedResponseError{ID: res.ID, Msg: err.Error()}
	}
	return ids, nil
}

// GetDocumentPath returns the file path of a document, or "" if it has
// never been saved.
func (h *Host) GetDocumentPath(ctx context.Context, documentID int) (string, error) {
	script, err := scripts.Load(scripts.GetDocumentPath)
	if err != nil {
		return "", err
	}
	res, err := h.evalResult(ctx, script, map[string]any{"documentId": documentID})
	if err != nil {
		return "", err
	}
	if s, ok := res.Value.(string); ok {
		if s == protocol.NoValue {
			return "", nil
		}
		return s, nil
	}
	return res.Text, nil
}

// Shape is the vector outline of a layer and its rasterized mask.
type Shape struct {
	Path any
	Mask *types.Pixmap
}

// GetLayerShape fetches a layer's shape. The host answers in several
// parts whose count varies by version, so the call fails with a
// *TimeoutError if the parts stall for longer than the multi-message window.
func (h *Host) GetLayerShape(ctx context.Context, documentID, layerID int) (*Shape, error) {
	script, err := scripts.Build(scripts.GetLayerShape, map[string]any{"documentId": documentID, "layerId": layerID})
	if err != nil {
		return nil, err
	}
	resp, err := h.call(ctx, script, Expect{Result: true, Pixels: true, Watchdog: h.cfg.MultiMessageTimeout})
	if err != nil {
		return nil, err
	}
	mask, err := protocol.ParsePixmap(resp.Pixels)
	if err != nil {
		return nil, err
	}
	return &Shape{Path: resp.Result.Value, Mask: mask}, nil
}

// decodeValue converts a generic JSON value into out.
func decodeValue(v, out any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("re-encode reply: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}
