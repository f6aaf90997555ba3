package encoder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/justapithecus/pixport/types"
)

// Backend names.
const (
	BackendExternal = "external"
	BackendNative   = "native"
)

// DefaultExecutable is the converter invoked when none is configured.
const DefaultExecutable = "convert"

// External encodes by running an ImageMagick-compatible converter.
type External struct {
	// Command is the executable followed by any leading arguments,
	// e.g. ["magick"] or ["convert"].
	Command []string
	Options Options
}

// Name implements Backend.
func (e *External) Name() string { return BackendExternal }

// Encode streams img to the converter's stdin and its stdout to w.
// Anything written to stderr fails the conversion even on a zero exit.
func (e *External) Encode(ctx context.Context, img Image, t types.ExportTarget, w io.Writer) error {
	if err := img.Validate(); err != nil {
		return &EncodingError{Err: err}
	}
	if len(e.Command) == 0 {
		return &EncodingError{Err: fmt.Errorf("no converter configured")}
	}

	args := append(append([]string(nil), e.Command[1:]...), Args(img, t, e.Options)...)
	cmd := exec.CommandContext(ctx, e.Command[0], args...)
	cmd.Stdin = bytes.NewReader(img.Pixels)
	cmd.Stdout = w
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &EncodingError{Stderr: strings.TrimSpace(stderr.String()), Err: fmt.Errorf("run %s: %w", e.Command[0], err)}
	}
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		return &EncodingError{Stderr: msg, Err: ErrStderr}
	}
	return nil
}
