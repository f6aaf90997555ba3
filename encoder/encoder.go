// Package encoder turns composited ARGB buffers into image files.
//
// Two backends exist: External drives an ImageMagick-compatible converter
// as a subprocess, streaming raw pixels to its stdin; Native encodes in
// process. ToFile and ToBuffer work with either and clean up partially
// written files on failure.
package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/justapithecus/pixport/iox"
	"github.com/justapithecus/pixport/types"
)

// Image is a packed row-major ARGB buffer.
type Image struct {
	Pixels []byte
	Width  int
	Height int
}

// Validate checks that the buffer matches the geometry.
func (img Image) Validate() error {
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", img.Width, img.Height)
	}
	if want := img.Width * img.Height * types.BytesPerPixel; len(img.Pixels) != want {
		return fmt.Errorf("image buffer has %d bytes, want %d", len(img.Pixels), want)
	}
	return nil
}

// Backend encodes one image for a target into w.
type Backend interface {
	Encode(ctx context.Context, img Image, target types.ExportTarget, w io.Writer) error
	// Name identifies the backend in logs and metrics.
	Name() string
}

// Options are shared by all backends.
type Options struct {
	// TGARLE enables run-length compression of TGA output.
	TGARLE bool
}

// ErrStderr marks a conversion that wrote diagnostics to stderr.
var ErrStderr = errors.New("converter wrote to stderr")

// EncodingError fails a single output.
type EncodingError struct {
	// Path is the destination file, empty for in-memory output.
	Path string
	// Stderr is the converter's diagnostic output, if any.
	Stderr string
	Err    error
}

func (e *EncodingError) Error() string {
	dest := e.Path
	if dest == "" {
		dest = "buffer"
	}
	if e.Stderr != "" {
		return fmt.Sprintf("encode %s: %v: %s", dest, e.Err, e.Stderr)
	}
	return fmt.Sprintf("encode %s: %v", dest, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// IsEncodingError returns true if err is or wraps an *EncodingError.
func IsEncodingError(err error) bool {
	var ee *EncodingError
	return errors.As(err, &ee)
}

// ToFile encodes img into path. A partially written file is removed.
func ToFile(ctx context.Context, b Backend, img Image, target types.ExportTarget, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return &EncodingError{Path: path, Err: err}
	}
	if err := b.Encode(ctx, img, target, f); err != nil {
		iox.DiscardErr(iox.RemoveFunc(f))
		return withPath(err, path)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return &EncodingError{Path: path, Err: err}
	}
	return nil
}

// ToBuffer encodes img into memory.
func ToBuffer(ctx context.Context, b Backend, img Image, target types.ExportTarget) ([]byte, error) {
	var buf bytes.Buffer
	if err := b.Encode(ctx, img, target, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func withPath(err error, path string) error {
	var ee *EncodingError
	if errors.As(err, &ee) {
		cp := *ee
		cp.Path = path
		return &cp
	}
	return &EncodingError{Path: path, Err: err}
}

// New returns the backend named by name: "external" (default) or "native".
// command is the converter invocation for the external backend.
func New(name string, command []string, opts Options) (Backend, error) {
	switch name {
	case "", BackendExternal:
		if len(command) == 0 {
			command = []string{DefaultExecutable}
		}
		return &External{Command: command, Options: opts}, nil
	case BackendNative:
		return &Native{Options: opts}, nil
	default:
		return nil, fmt.Errorf("unknown encoder backend %q", name)
	}
}
