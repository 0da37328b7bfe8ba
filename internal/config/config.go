// Package config loads the cachebuild YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/cachebuild/internal/foundation/errors"
)

// Version is the only configuration schema version accepted.
const Version = "1.0"

// Config is the root configuration document.
type Config struct {
	Version         string           `yaml:"version"`
	Hosts           HostsConfig      `yaml:"hosts"`
	Transport       TransportConfig  `yaml:"transport"`
	DAOS            DAOSConfig       `yaml:"daos"`
	Source          SourceConfig     `yaml:"source"`
	Run             RunConfig        `yaml:"run"`
	CustomScenarios []ScenarioConfig `yaml:"scenarios,omitempty"`
	// Matrix names the scenarios run by `matrix` and the schedule daemon.
	Matrix   []string       `yaml:"matrix,omitempty"`
	History  HistoryConfig  `yaml:"history"`
	Events   EventsConfig   `yaml:"events"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// HostsConfig names the machines a run touches.
type HostsConfig struct {
	Clients []string `yaml:"clients"`
	// Admin hosts run dmg/daos management commands; defaults to the first client.
	Admin []string `yaml:"admin,omitempty"`
	// Constrained marks the clients as resource-limited (VMs).
	Constrained bool `yaml:"constrained"`
}

// TransportType selects how commands reach hosts.
type TransportType string

const (
	TransportSSH   TransportType = "ssh"
	TransportLocal TransportType = "local"
)

// TransportConfig configures remote execution.
type TransportConfig struct {
	Type TransportType `yaml:"type"`
	SSH  SSHConfig     `yaml:"ssh"`
	// OutputTailBytes bounds the captured output per host and command.
	OutputTailBytes int `yaml:"output_tail_bytes,omitempty"`
}

// SSHConfig configures the SSH transport.
type SSHConfig struct {
	User                  string        `yaml:"user"`
	Port                  int           `yaml:"port"`
	KeyFile               string        `yaml:"key_file"`
	KnownHostsFile        string        `yaml:"known_hosts_file"`
	InsecureIgnoreHostKey bool          `yaml:"insecure_ignore_host_key"`
	DialTimeout           time.Duration `yaml:"dial_timeout"`
}

// DAOSConfig configures storage provisioning.
type DAOSConfig struct {
	// Prefix is the install prefix for interception libraries; DAOS_PREFIX is used when empty.
	Prefix       string        `yaml:"prefix,omitempty"`
	PoolSize     string        `yaml:"pool_size"`
	LabelPrefix  string        `yaml:"label_prefix"`
	AdminTimeout time.Duration `yaml:"admin_timeout"`
}

// SourceConfig identifies the repository built over the mount.
type SourceConfig struct {
	URL string `yaml:"url"`
	Ref string `yaml:"ref,omitempty"`
	// ResolveRevision looks up the commit Ref points to before each run.
	ResolveRevision bool `yaml:"resolve_revision"`
}

// RunConfig holds per-run behavior.
type RunConfig struct {
	// KeepOnFailure leaves the mount, container and pool in place after a failed run.
	KeepOnFailure bool `yaml:"keep_on_failure"`
	// Namespace overrides the mount directory template.
	Namespace string `yaml:"namespace,omitempty"`
}

// HistoryConfig configures the SQLite run history.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// EventsConfig configures NATS event publication.
type EventsConfig struct {
	NATSURL   string `yaml:"nats_url,omitempty"`
	Subject   string `yaml:"subject"`
	JetStream bool   `yaml:"jetstream"`
}

// MetricsConfig configures Prometheus export.
type MetricsConfig struct {
	// Pushgateway receives metrics at the end of every run when set.
	Pushgateway string `yaml:"pushgateway,omitempty"`
	Job         string `yaml:"job"`
	// Listen is the address the schedule daemon serves /metrics on.
	Listen string `yaml:"listen,omitempty"`
}

// ScheduleConfig configures the schedule daemon.
type ScheduleConfig struct {
	Cron string `yaml:"cron"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Load reads, expands, normalizes and validates the configuration at path.
// .env files are loaded first so ${VAR} references can use them.
func Load(path string) (*Config, error) {
	LoadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.ConfigError("configuration file not found").WithContext("path", path).Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read config file").Fatal().WithContext("path", path).Build()
	}

	return Parse(data)
}

// Parse decodes a configuration document.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to parse config").Fatal().Build()
	}

	if cfg.Version != Version {
		return nil, ferrors.ConfigError(fmt.Sprintf("unsupported configuration version: %q (expected %s)", cfg.Version, Version)).Build()
	}

	if err := normalize(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration for a single local node with defaults applied.
func Default() *Config {
	cfg := &Config{
		Version:   Version,
		Hosts:     HostsConfig{Clients: []string{"localhost"}},
		Transport: TransportConfig{Type: TransportLocal},
	}
	applyDefaults(cfg)
	return cfg
}

// Init writes an example configuration file.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.ConfigError("configuration file already exists (use --force to overwrite)").WithContext("path", path).Build()
	}
	return os.WriteFile(path, []byte(exampleConfig), 0o600)
}

const exampleConfig = `version: "1.0"

hosts:
  clients: [client-1, client-2]
  admin: [server-1]
  constrained: false

transport:
  type: ssh
  ssh:
    user: ${USER}
    key_file: ${HOME}/.ssh/id_ed25519

daos:
  pool_size: 80G

source:
  url: https://github.com/daos-stack/daos.git
  ref: master
  resolve_revision: true

matrix: [wb, wt, wt_il, wt_pil4dfs, metadata, data, nocache]

history:
  enabled: true
  path: ${HOME}/.local/state/cachebuild/history.db

metrics:
  pushgateway: ""

schedule:
  cron: "0 2 * * *"

logging:
  level: info
  format: text
`
