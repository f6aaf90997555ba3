package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/pixport/cli/config"
	"github.com/justapithecus/pixport/cli/render"
)

// sessionFunc is the body of a host-facing command.
type sessionFunc func(ctx context.Context, cfg *config.Config, s *session, r *render.Renderer) error

// withSession resolves configuration, connects, runs fn and disconnects.
// Interrupts cancel ctx. The returned error carries the exit code.
func withSession(c *cli.Context, labels sessionLabels, fn sessionFunc) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return exit(&usageError{err: err})
	}
	cfg, err := resolveConfig(c)
	if err != nil {
		return exit(err)
	}
	return runSession(c, cfg, r, labels, fn)
}

func runSession(c *cli.Context, cfg *config.Config, r *render.Renderer, labels sessionLabels, fn sessionFunc) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, cfg, labels, c.String("record"))
	if err != nil {
		return exit(err)
	}
	err = fn(ctx, cfg, s, r)
	if cerr := s.Close(); cerr != nil {
		s.logger.Warn("session close failed", map[string]any{"error": cerr.Error()})
	}
	return exit(err)
}
