package config

import (
	"errors"
	"fmt"
	"time"
)

// Config represents a pixport.yaml configuration file.
// All values are optional and act as defaults for command flags.
// Flags always override config values.
type Config struct {
	Host    HostConfig    `yaml:"host"`
	Encoder EncoderConfig `yaml:"encoder"`
	Storage StorageConfig `yaml:"storage"`
	Adapter AdapterConfig `yaml:"adapter"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// HostConfig selects and tunes the connection to the host application.
type HostConfig struct {
	Address  string     `yaml:"address"`
	Port     int        `yaml:"port"`
	Password string     `yaml:"password"`
	Pipe     PipeConfig `yaml:"pipe"`
	// KeepAlive is the keep-alive interval; zero disables it.
	KeepAlive           Duration `yaml:"keep_alive"`
	MultiMessageTimeout Duration `yaml:"multi_message_timeout"`
	DialTimeout         Duration `yaml:"dial_timeout"`
}

// PipeConfig names inherited file descriptors. Both non-zero selects
// pipe mode.
type PipeConfig struct {
	InFD  int `yaml:"in_fd"`
	OutFD int `yaml:"out_fd"`
}

// Enabled reports whether pipe mode is configured.
func (p PipeConfig) Enabled() bool { return p.InFD != 0 && p.OutFD != 0 }

// EncoderConfig selects the output encoder.
type EncoderConfig struct {
	// Backend is "external" or "native".
	Backend    string `yaml:"backend"`
	Executable string `yaml:"executable"`
	Parallel   int    `yaml:"parallel"`
	TGARLE     bool   `yaml:"tga_rle"`
}

// StorageConfig selects where encoded outputs go. An empty backend writes
// each output to its target path.
type StorageConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AdapterConfig configures export completion notifications.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	// Retries is nil when unset so that an explicit 0 is distinguishable.
	Retries *int `yaml:"retries,omitempty"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// MetricsConfig enables Prometheus exposition when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Storage and adapter names accepted in config files.
var (
	storageBackends = map[string]bool{"": true, "fs": true, "s3": true}
	adapterTypes    = map[string]bool{"": true, "webhook": true, "redis": true}
	encoderBackends = map[string]bool{"": true, "external": true, "native": true}
)

// Validate checks enumerated fields and cross-field requirements.
func (c *Config) Validate() error {
	var errs []error
	if !storageBackends[c.Storage.Backend] {
		errs = append(errs, fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend))
	}
	if c.Storage.Backend != "" && c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required when storage.backend is set"))
	}
	if !adapterTypes[c.Adapter.Type] {
		errs = append(errs, fmt.Errorf("adapter.type: unknown adapter %q", c.Adapter.Type))
	}
	if c.Adapter.Type != "" && c.Adapter.URL == "" {
		errs = append(errs, errors.New("adapter.url is required when adapter.type is set"))
	}
	if !encoderBackends[c.Encoder.Backend] {
		errs = append(errs, fmt.Errorf("encoder.backend: unknown backend %q", c.Encoder.Backend))
	}
	if c.Encoder.Parallel < 0 {
		errs = append(errs, fmt.Errorf("encoder.parallel must be >= 0, got %d", c.Encoder.Parallel))
	}
	if c.Host.Port < 0 || c.Host.Port > 65535 {
		errs = append(errs, fmt.Errorf("host.port out of range: %d", c.Host.Port))
	}
	if (c.Host.Pipe.InFD == 0) != (c.Host.Pipe.OutFD == 0) {
		errs = append(errs, errors.New("host.pipe needs both in_fd and out_fd"))
	}
	return errors.Join(errs...)
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
