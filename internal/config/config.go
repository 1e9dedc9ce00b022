// Package config holds the server configuration. Values come from CLI
// flags, with INVENTORYD_* environment variables as fallback.
package config

import (
	"path/filepath"
	"time"

	"github.com/paularlott/cli"
)

// Config holds the application configuration
type Config struct {
	DataDir    string
	ListenAddr string
	UploadDir  string

	// Model server settings.
	OllamaURL string
	AIModel   string

	// Import session lifecycle.
	SessionTTL    time.Duration
	SweepSchedule string

	// Optional JSON file overriding the column detection patterns.
	PatternFile string

	Workers int
}

// GetFlags returns the server command's flags.
func GetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:         "data-dir",
			Usage:        "Directory for databases and uploads",
			DefaultValue: "./data",
			EnvVars:      []string{"INVENTORYD_DATA_DIR"},
		},
		&cli.StringFlag{
			Name:         "listen-addr",
			Usage:        "Address to listen on",
			DefaultValue: ":8080",
			EnvVars:      []string{"INVENTORYD_LISTEN_ADDR"},
		},
		&cli.StringFlag{
			Name:         "upload-dir",
			Usage:        "Directory for uploaded workbooks (defaults to <data-dir>/uploads)",
			DefaultValue: "",
			EnvVars:      []string{"INVENTORYD_UPLOAD_DIR"},
		},
		&cli.StringFlag{
			Name:         "ollama-url",
			Usage:        "Base URL of the local model server",
			DefaultValue: "http://localhost:11434",
			EnvVars:      []string{"INVENTORYD_OLLAMA_URL"},
		},
		&cli.StringFlag{
			Name:         "ai-model",
			Usage:        "Default model for categorization and analysis",
			DefaultValue: "llama3.2",
			EnvVars:      []string{"INVENTORYD_AI_MODEL"},
		},
		&cli.StringFlag{
			Name:         "session-ttl",
			Usage:        "How long import sessions live without being confirmed",
			DefaultValue: "1h",
			EnvVars:      []string{"INVENTORYD_SESSION_TTL"},
		},
		&cli.StringFlag{
			Name:         "sweep-schedule",
			Usage:        "Cron schedule for the expired-session sweep",
			DefaultValue: "*/15 * * * *",
			EnvVars:      []string{"INVENTORYD_SWEEP_SCHEDULE"},
		},
		&cli.StringFlag{
			Name:         "pattern-file",
			Usage:        "JSON file overriding column detection patterns",
			DefaultValue: "",
			EnvVars:      []string{"INVENTORYD_PATTERN_FILE"},
		},
		&cli.IntFlag{
			Name:         "workers",
			Usage:        "Worker pool size for parse and import jobs",
			DefaultValue: 4,
			EnvVars:      []string{"INVENTORYD_WORKERS"},
		},
	}
}

// Load builds the configuration from the command's resolved flags.
func Load(cmd *cli.Command) *Config {
	cfg := &Config{
		DataDir:       cmd.GetString("data-dir"),
		ListenAddr:    cmd.GetString("listen-addr"),
		UploadDir:     cmd.GetString("upload-dir"),
		OllamaURL:     cmd.GetString("ollama-url"),
		AIModel:       cmd.GetString("ai-model"),
		SweepSchedule: cmd.GetString("sweep-schedule"),
		PatternFile:   cmd.GetString("pattern-file"),
		Workers:       cmd.GetInt("workers"),
	}

	if cfg.UploadDir == "" {
		cfg.UploadDir = filepath.Join(cfg.DataDir, "uploads")
	}

	ttl, err := time.ParseDuration(cmd.GetString("session-ttl"))
	if err != nil || ttl <= 0 {
		ttl = time.Hour
	}
	cfg.SessionTTL = ttl

	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	return cfg
}
