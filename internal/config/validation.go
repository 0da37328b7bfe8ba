package config

import (
	"fmt"
	"strings"

	ferrors "git.home.luguber.info/inful/cachebuild/internal/foundation/errors"
)

// Validate checks a normalized configuration.
func Validate(cfg *Config) error {
	var problems []string

	if len(cfg.Hosts.Clients) == 0 {
		problems = append(problems, "hosts.clients must list at least one host")
	}
	if cfg.Transport.Type == TransportLocal && len(cfg.Hosts.Clients) > 1 {
		problems = append(problems, "transport.type local supports a single client host")
	}
	if cfg.Transport.SSH.Port < 1 || cfg.Transport.SSH.Port > 65535 {
		problems = append(problems, fmt.Sprintf("transport.ssh.port %d out of range", cfg.Transport.SSH.Port))
	}
	if cfg.Transport.OutputTailBytes < 0 {
		problems = append(problems, "transport.output_tail_bytes must not be negative")
	}
	if ns := cfg.Run.Namespace; ns != "" && !strings.HasPrefix(ns, "/") {
		problems = append(problems, "run.namespace must be an absolute path")
	}
	if cfg.History.Enabled && cfg.History.Path == "" {
		problems = append(problems, "history.path is required when history is enabled")
	}

	if _, err := cfg.MatrixScenarios(); err != nil {
		return err
	}

	if len(problems) > 0 {
		return ferrors.ValidationError("configuration validation failed").
			WithContext("problems", strings.Join(problems, "; ")).
			Build()
	}
	return nil
}
