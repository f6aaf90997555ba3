package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/justapithecus/pixport/cli/config"
	"github.com/justapithecus/pixport/host"
	"github.com/justapithecus/pixport/ipc"
	"github.com/justapithecus/pixport/log"
	"github.com/justapithecus/pixport/metrics"
	"github.com/justapithecus/pixport/types"
)

// session is one connected host plus the ambient machinery around it.
type session struct {
	host      *host.Host
	logger    *log.Logger
	collector *metrics.Collector
	recorder  *ipc.Recorder
	server    *http.Server
}

// sessionLabels are the metric dimensions that depend on the command.
type sessionLabels struct {
	encoder string
	storage string
}

// openSession connects to the host described by cfg. The returned
// session must be closed.
func openSession(ctx context.Context, cfg *config.Config, labels sessionLabels, recordPath string) (*session, error) {
	hc := hostConfig(cfg.Host)
	meta := types.SessionMeta{SessionID: uuid.NewString(), Endpoint: hc.Endpoint(), Mode: hc.Mode}

	logger := log.NewLogger(&meta)
	if cfg.Log.Level != "" {
		if err := logger.SetLevel(cfg.Log.Level); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
		}
	}

	s := &session{
		logger:    logger,
		collector: metrics.NewCollector(meta.SessionID, string(meta.Mode), labels.encoder, labels.storage),
	}
	opts := []host.Option{
		host.WithSessionID(meta.SessionID),
		host.WithLogger(logger),
		host.WithCollector(s.collector),
	}

	if recordPath != "" {
		f, err := os.OpenFile(recordPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open recording: %w", err)
		}
		s.recorder = ipc.NewRecorder(f, meta.SessionID)
		opts = append(opts, host.WithRecorder(s.recorder))
	}

	if cfg.Metrics.Addr != "" {
		if err := s.serveMetrics(cfg.Metrics.Addr); err != nil {
			_ = s.recorder.Close()
			return nil, err
		}
	}

	s.host = host.New(hc, opts...)
	if err := s.host.Connect(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) serveMetrics(addr string) error {
	handler, err := metrics.Handler(s.collector)
	if err != nil {
		return fmt.Errorf("metrics handler: %w", err)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("metrics server stopped", map[string]any{"addr": addr, "error": err.Error()})
		}
	}()
	s.logger.Info("serving metrics", map[string]any{"addr": ln.Addr().String()})
	return nil
}

// Close disconnects and releases everything the session opened.
func (s *session) Close() error {
	var errs []error
	if s.host != nil {
		errs = append(errs, s.host.Close())
	}
	if s.recorder != nil {
		errs = append(errs, s.recorder.Close())
	}
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		errs = append(errs, s.server.Shutdown(ctx))
		cancel()
	}
	_ = s.logger.Sync()
	return errors.Join(errs...)
}
