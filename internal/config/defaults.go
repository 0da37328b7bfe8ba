package config

import (
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/cachebuild/internal/pipeline"
)

func applyDefaults(cfg *Config) {
	if cfg.Transport.Type == "" {
		cfg.Transport.Type = TransportSSH
	}
	if cfg.Transport.SSH.Port == 0 {
		cfg.Transport.SSH.Port = 22
	}
	if cfg.Transport.SSH.DialTimeout <= 0 {
		cfg.Transport.SSH.DialTimeout = 30 * time.Second
	}
	if len(cfg.Hosts.Admin) == 0 && len(cfg.Hosts.Clients) > 0 {
		cfg.Hosts.Admin = cfg.Hosts.Clients[:1]
	}
	if cfg.DAOS.PoolSize == "" {
		cfg.DAOS.PoolSize = "80G"
	}
	if cfg.DAOS.LabelPrefix == "" {
		cfg.DAOS.LabelPrefix = "cachebuild"
	}
	if cfg.DAOS.AdminTimeout <= 0 {
		cfg.DAOS.AdminTimeout = 2 * time.Minute
	}
	if cfg.Source.URL == "" {
		cfg.Source.URL = pipeline.DefaultSourceURL
	}
	if len(cfg.Matrix) == 0 {
		cfg.Matrix = BuiltinScenarioNames()
	}
	if cfg.History.Path == "" {
		cfg.History.Path = defaultHistoryPath()
	}
	if cfg.Events.Subject == "" {
		cfg.Events.Subject = "cachebuild.events"
	}
	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = "cachebuild"
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = ":9464"
	}
	if cfg.Schedule.Cron == "" {
		cfg.Schedule.Cron = "0 2 * * *"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
}

func defaultHistoryPath() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "cachebuild", "history.db")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "cachebuild", "history.db")
	}
	return filepath.Join(os.TempDir(), "cachebuild-history.db")
}
