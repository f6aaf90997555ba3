package cmd

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/pixport/cli/config"
	"github.com/justapithecus/pixport/host"
	"github.com/justapithecus/pixport/ipc"
	"github.com/justapithecus/pixport/types"
)

// resolveConfig loads --config when given and applies every flag the
// user set on top of it. The merged result is validated; every failure
// is a usage error.
func resolveConfig(c *cli.Context) (*config.Config, error) {
	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, &usageError{err: err}
		}
		cfg = loaded
	}
	applyFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, &usageError{err: err}
	}
	return cfg, nil
}

func applyFlags(c *cli.Context, cfg *config.Config) {
	setString(c, "host", &cfg.Host.Address)
	setInt(c, "port", &cfg.Host.Port)
	setString(c, "password", &cfg.Host.Password)
	setInt(c, "pipe-in", &cfg.Host.Pipe.InFD)
	setInt(c, "pipe-out", &cfg.Host.Pipe.OutFD)
	setDuration(c, "dial-timeout", &cfg.Host.DialTimeout.Duration)
	setDuration(c, "keep-alive", &cfg.Host.KeepAlive.Duration)
	setDuration(c, "multi-message-timeout", &cfg.Host.MultiMessageTimeout.Duration)
	setString(c, "log-level", &cfg.Log.Level)
	setString(c, "metrics-addr", &cfg.Metrics.Addr)

	setString(c, "encoder", &cfg.Encoder.Backend)
	setString(c, "converter", &cfg.Encoder.Executable)
	setInt(c, "parallel", &cfg.Encoder.Parallel)
	if c.IsSet("tga-rle") {
		cfg.Encoder.TGARLE = c.Bool("tga-rle")
	}

	setString(c, "storage-backend", &cfg.Storage.Backend)
	setString(c, "storage-path", &cfg.Storage.Path)
	setString(c, "storage-region", &cfg.Storage.Region)
	setString(c, "storage-endpoint", &cfg.Storage.Endpoint)
	if c.IsSet("storage-path-style") {
		cfg.Storage.S3PathStyle = c.Bool("storage-path-style")
	}

	setString(c, "adapter", &cfg.Adapter.Type)
	setString(c, "adapter-url", &cfg.Adapter.URL)
	setString(c, "adapter-channel", &cfg.Adapter.Channel)
	setDuration(c, "adapter-timeout", &cfg.Adapter.Timeout.Duration)
	if c.IsSet("adapter-retries") {
		n := c.Int("adapter-retries")
		cfg.Adapter.Retries = &n
	}
}

func setString(c *cli.Context, name string, dst *string) {
	if c.IsSet(name) {
		*dst = c.String(name)
	}
}

func setInt(c *cli.Context, name string, dst *int) {
	if c.IsSet(name) {
		*dst = c.Int(name)
	}
}

func setDuration(c *cli.Context, name string, dst *time.Duration) {
	if c.IsSet(name) {
		*dst = c.Duration(name)
	}
}

// hostConfig maps the host section onto a host.Config. Pipe descriptors
// take precedence over the socket address.
func hostConfig(hc config.HostConfig) host.Config {
	out := host.Config{
		Mode:                types.TransportSocket,
		Address:             hc.Address,
		Port:                hc.Port,
		Password:            hc.Password,
		DialTimeout:         hc.DialTimeout.Duration,
		KeepAlive:           hc.KeepAlive.Duration,
		MultiMessageTimeout: hc.MultiMessageTimeout.Duration,
	}
	if out.Address == "" {
		out.Address = "127.0.0.1"
	}
	if out.Port == 0 {
		out.Port = ipc.DefaultPort
	}
	if hc.Pipe.Enabled() {
		out.Mode = types.TransportPipe
		out.PipeIn = uintptr(hc.Pipe.InFD)
		out.PipeOut = uintptr(hc.Pipe.OutFD)
	}
	return out
}
