// Package cmd provides CLI commands for the pixport binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// TUIFlag opens the interactive view of read-only commands.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Show an interactive view (info, manifest, subscribe)",
	}

	// ConfigFlag points at a pixport.yaml file whose values act as flag
	// defaults.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to pixport.yaml",
		EnvVars: []string{"PIXPORT_CONFIG"},
	}
)

// ReadOnlyFlags returns the flags of commands that never contact the host.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{FormatFlag}
}

// HostFlags returns the flags of every command that connects to the host.
func HostFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		ConfigFlag,
		&cli.StringFlag{
			Name:  "host",
			Usage: "Host application address (default 127.0.0.1)",
		},
		&cli.IntFlag{
			Name:  "port",
			Usage: "Host application port (default 49494)",
		},
		&cli.StringFlag{
			Name:    "password",
			Usage:   "Remote connection password (socket mode)",
			EnvVars: []string{"PIXPORT_PASSWORD"},
		},
		&cli.IntFlag{
			Name:  "pipe-in",
			Usage: "Inherited descriptor carrying host output (pipe mode)",
		},
		&cli.IntFlag{
			Name:  "pipe-out",
			Usage: "Inherited descriptor carrying host input (pipe mode)",
		},
		&cli.DurationFlag{
			Name:  "dial-timeout",
			Usage: "Socket connect timeout",
		},
		&cli.DurationFlag{
			Name:  "keep-alive",
			Usage: "Keep-alive interval (0 disables)",
		},
		&cli.DurationFlag{
			Name:  "multi-message-timeout",
			Usage: "Watchdog window for multi-part replies",
		},
		&cli.StringFlag{
			Name:  "record",
			Usage: "Append every payload of the session to a recording file",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "Serve Prometheus metrics on this address (e.g. :9090)",
		},
	}
}

// documentFlag selects a document; 0 is the active one.
var documentFlag = &cli.IntFlag{
	Name:    "document",
	Aliases: []string{"d"},
	Usage:   "Document id (0 selects the active document)",
}

// exportFlags configure encoding, storage and notifications.
func exportFlags() []cli.Flag {
	return []cli.Flag{
		documentFlag,
		&cli.StringFlag{
			Name:     "targets",
			Aliases:  []string{"t"},
			Usage:    "Path to a JSON or YAML list of export targets",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "encoder",
			Usage: "Encoder backend: external or native",
		},
		&cli.StringFlag{
			Name:  "converter",
			Usage: "External converter command (default convert)",
		},
		&cli.IntFlag{
			Name:  "parallel",
			Usage: "Outputs encoded at once (default 4)",
		},
		&cli.BoolFlag{
			Name:  "tga-rle",
			Usage: "Run-length encode TGA outputs",
		},
		&cli.StringFlag{
			Name:  "storage-backend",
			Usage: "Store outputs in fs or s3 instead of writing target paths",
		},
		&cli.StringFlag{
			Name:  "storage-path",
			Usage: "Storage root (fs: directory, s3: bucket/prefix)",
		},
		&cli.StringFlag{
			Name:  "storage-region",
			Usage: "AWS region for the s3 backend",
		},
		&cli.StringFlag{
			Name:  "storage-endpoint",
			Usage: "Endpoint override for S3-compatible providers",
		},
		&cli.BoolFlag{
			Name:  "storage-path-style",
			Usage: "Use path-style S3 addressing",
		},
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Completion notifications: webhook or redis",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Webhook URL or redis:// URL",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis channel (default pixport:export_completed)",
		},
		&cli.DurationFlag{
			Name:  "adapter-timeout",
			Usage: "Per-publish timeout",
		},
		&cli.IntFlag{
			Name:  "adapter-retries",
			Usage: "Publish retries after the first attempt",
		},
	}
}
