// Package scripts holds the host-side scripts pixport sends for evaluation.
//
// Scripts are opaque to pixport: they are embedded at build time and sent
// verbatim after a parameter preamble that assigns a JSON value to the
// global "params".
package scripts

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Script names.
const (
	GetLayerPixmap        = "getLayerPixmap"
	GetDocumentInfo       = "getDocumentInfo"
	GetOpenDocumentIDs    = "getOpenDocumentIDs"
	GetDocumentPath       = "getDocumentPath"
	NetworkEventSubscribe = "networkEventSubscribe"
	GetLayerShape         = "getLayerShape"
)

//go:embed jsx/*.jsx
var embedded embed.FS

// Load returns the source of the named script.
func Load(name string) (string, error) {
	data, err := embedded.ReadFile("jsx/" + name + ".jsx")
	if err != nil {
		return "", fmt.Errorf("unknown script %q: %w", name, err)
	}
	return string(data), nil
}

// Names lists the embedded scripts in sorted order.
func Names() []string {
	entries, _ := embedded.ReadDir("jsx")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".jsx"))
	}
	sort.Strings(names)
	return names
}

// Checksum returns the SHA256 of all embedded scripts, for version reports.
func Checksum() string {
	h := sha256.New()
	for _, name := range Names() {
		src, _ := Load(name)
		h.Write([]byte(name))
		h.Write([]byte(src))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// WithParams prepends "var params = <json>;" to script.
// A nil params yields script unchanged.
func WithParams(script string, params any) (string, error) {
	if params == nil {
		return script, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode script params: %w", err)
	}
	var b strings.Builder
	b.Grow(len(data) + len(script) + 16)
	b.WriteString("var params = ")
	b.Write(data)
	b.WriteString(";\n")
	b.WriteString(script)
	return b.String(), nil
}

// Build loads the named script and prepends params.
func Build(name string, params any) (string, error) {
	src, err := Load(name)
	if err != nil {
		return "", err
	}
	return WithParams(src, params)
}
