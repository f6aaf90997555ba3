package protocol

import (
	"encoding/binary"
	"reflect"
	"testing"
)

func TestEncodePayload_Layout(t *testing.T) {
	got := EncodePayload(0x00ABCDEF, TypeScriptResult, []byte("x"))
	want := []byte{
		0, 0, 0, 1,
		0x00, 0xAB, 0xCD, 0xEF,
		0, 0, 0, 2,
		'x',
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("EncodePayload = %v, want %v", got, want)
	}
}

func TestDecode_ScriptResults(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantValue any
		wantErr   bool
	}{
		{"object", `{"a":1}`, map[string]any{"a": float64(1)}, false},
		{"number", `42`, float64(42), false},
		{"empty literal", "", "", false},
		{"no value literal", NoValue, NoValue, false},
		{"still alive literal", StillAlive, StillAlive, false},
		{"plain text", "hello world", "hello world", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, valueErr, err := Decode(EncodePayload(7, TypeScriptResult, []byte(tt.body)))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			res, ok := msg.(*ScriptResult)
			if !ok {
				t.Fatalf("message = %T, want *ScriptResult", msg)
			}
			if res.ID != 7 {
				t.Errorf("ID = %d, want 7", res.ID)
			}
			if res.Text != tt.body {
				t.Errorf("Text = %q, want %q", res.Text, tt.body)
			}
			if !reflect.DeepEqual(res.Value, tt.wantValue) {
				t.Errorf("Value = %#v, want %#v", res.Value, tt.wantValue)
			}
			if (valueErr != nil) != tt.wantErr {
				t.Errorf("valueErr = %v, wantErr %v", valueErr, tt.wantErr)
			}
		})
	}
}

func TestDecode_HostEvent(t *testing.T) {
	msg, valueErr, err := Decode(EncodePayload(3, TypeScriptResult, []byte("imageChanged\r{\"id\":5}")))
	if err != nil || valueErr != nil {
		t.Fatalf("Decode: %v / %v", err, valueErr)
	}
	ev, ok := msg.(*HostEvent)
	if !ok {
		t.Fatalf("message = %T, want *HostEvent", msg)
	}
	if ev.Name != "imageChanged" {
		t.Errorf("Name = %q, want imageChanged", ev.Name)
	}
	if !reflect.DeepEqual(ev.Value, map[string]any{"id": float64(5)}) {
		t.Errorf("Value = %#v", ev.Value)
	}
}

func TestDecode_ThreePartsIsNotAnEvent(t *testing.T) {
	msg, _, err := Decode(EncodePayload(3, TypeScriptResult, []byte("a\rb\rc")))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, ok := msg.(*ScriptResult); !ok {
		t.Errorf("message = %T, want *ScriptResult", msg)
	}
}

func TestDecode_BinaryAndControlTypes(t *testing.T) {
	data := []byte{1, 2, 3}

	msg, _, _ := Decode(EncodePayload(9, TypePixelBuffer, data))
	if pb, ok := msg.(*PixelBuffer); !ok || !reflect.DeepEqual(pb.Data, data) {
		t.Errorf("pixel buffer = %#v", msg)
	}
	msg, _, _ = Decode(EncodePayload(9, TypeColorProfile, data))
	if cp, ok := msg.(*ColorProfile); !ok || !reflect.DeepEqual(cp.Data, data) {
		t.Errorf("color profile = %#v", msg)
	}
	msg, _, _ = Decode(EncodePayload(9, TypeError, []byte("boom")))
	if em, ok := msg.(*ErrorMessage); !ok || em.Text != "boom" {
		t.Errorf("error message = %#v", msg)
	}
	msg, _, _ = Decode(EncodePayload(9, TypeKeepAlive, nil))
	if ka, ok := msg.(*KeepAlive); !ok || ka.ID != 9 {
		t.Errorf("keep alive = %#v", msg)
	}
}

func TestDecode_ProtocolErrors(t *testing.T) {
	badVersion := EncodePayload(1, TypeScriptResult, nil)
	binary.BigEndian.PutUint32(badVersion[0:4], 2)

	tests := []struct {
		name    string
		payload []byte
		kind    ProtocolErrorKind
	}{
		{"short", []byte{0, 0, 0, 1}, ProtocolErrorDecode},
		{"version", badVersion, ProtocolErrorVersion},
		{"type", EncodePayload(1, MessageType(5), nil), ProtocolErrorType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.payload)
			pe, ok := err.(*ProtocolError)
			if !ok {
				t.Fatalf("err = %v, want *ProtocolError", err)
			}
			if pe.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", pe.Kind, tt.kind)
			}
			if !IsProtocolError(err) {
				t.Error("IsProtocolError = false")
			}
		})
	}
}
