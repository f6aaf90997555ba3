package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pixport.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	t.Setenv("PIXPORT_TEST_PW", "s3cret")
	path := writeTemp(t, `host:
  address: 10.0.0.5
  port: 49500
  password: ${PIXPORT_TEST_PW}
  keep_alive: 30s
  multi_message_timeout: 2s
  dial_timeout: 3s
encoder:
  backend: native
  executable: magick
  parallel: 8
  tga_rle: true
storage:
  backend: s3
  path: assets/exports
  region: eu-west-1
  endpoint: http://minio:9000
  s3_path_style: true
adapter:
  type: webhook
  url: https://hooks.example.com/pixport
  headers:
    Authorization: Bearer token123
  timeout: 10s
  retries: 2
log:
  level: debug
metrics:
  addr: 127.0.0.1:9108
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Host.Address != "10.0.0.5" || cfg.Host.Port != 49500 || cfg.Host.Password != "s3cret" {
		t.Errorf("Host = %+v", cfg.Host)
	}
	if cfg.Host.KeepAlive.Duration != 30*time.Second || cfg.Host.MultiMessageTimeout.Duration != 2*time.Second {
		t.Errorf("Host durations = %v, %v", cfg.Host.KeepAlive, cfg.Host.MultiMessageTimeout)
	}
	if cfg.Encoder.Backend != "native" || cfg.Encoder.Parallel != 8 || !cfg.Encoder.TGARLE {
		t.Errorf("Encoder = %+v", cfg.Encoder)
	}
	if cfg.Storage.Backend != "s3" || !cfg.Storage.S3PathStyle {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 2 {
		t.Errorf("Adapter.Retries = %v, want 2", cfg.Adapter.Retries)
	}
	if cfg.Adapter.Headers["Authorization"] != "Bearer token123" {
		t.Errorf("Adapter.Headers = %v", cfg.Adapter.Headers)
	}
	if cfg.Log.Level != "debug" || cfg.Metrics.Addr != "127.0.0.1:9108" {
		t.Errorf("Log/Metrics = %+v / %+v", cfg.Log, cfg.Metrics)
	}
}

func TestLoad_EmptyAndCommentsOnly(t *testing.T) {
	for _, content := range []string{"", "   \n\n", "# nothing here\n"} {
		cfg, err := Load(writeTemp(t, content))
		if err != nil {
			t.Fatalf("Load(%q) error = %v", content, err)
		}
		if cfg.Host.Address != "" || cfg.Adapter.Retries != nil {
			t.Errorf("Load(%q) = %+v, want zero config", content, cfg)
		}
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantSub string
	}{
		{"invalid yaml", "host: [", "invalid YAML"},
		{"unknown key", "hots:\n  port: 1\n", "invalid YAML"},
		{"unknown nested key", "host:\n  prot: 1\n", "invalid YAML"},
		{"bad duration", "host:\n  keep_alive: soon\n", "invalid duration"},
		{"storage without path", "storage:\n  backend: fs\n", "storage.path"},
		{"unknown storage", "storage:\n  backend: ftp\n  path: x\n", "storage.backend"},
		{"adapter without url", "adapter:\n  type: redis\n", "adapter.url"},
		{"unknown encoder", "encoder:\n  backend: gimp\n", "encoder.backend"},
		{"half a pipe", "host:\n  pipe:\n    in_fd: 3\n", "host.pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTemp(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantSub)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Load() error = %v, want not found", err)
	}
}

func TestLoad_RetriesZeroDistinctFromNil(t *testing.T) {
	cfg, err := Load(writeTemp(t, "adapter:\n  type: webhook\n  url: http://x\n  retries: 0\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 0 {
		t.Errorf("Retries = %v, want explicit 0", cfg.Adapter.Retries)
	}
}

func TestPipeConfig_Enabled(t *testing.T) {
	if (PipeConfig{}).Enabled() {
		t.Error("zero PipeConfig enabled")
	}
	if !(PipeConfig{InFD: 3, OutFD: 4}).Enabled() {
		t.Error("PipeConfig{3,4} not enabled")
	}
}
