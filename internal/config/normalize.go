package config

import (
	"strings"

	ferrors "git.home.luguber.info/inful/cachebuild/internal/foundation/errors"
)

// normalize case-folds enumerations; empty values are left for defaults.
func normalize(cfg *Config) error {
	if cfg.Logging.Level != "" {
		v, err := logLevelNormalizer.NormalizeWithError(string(cfg.Logging.Level))
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "logging.level").Fatal().Build()
		}
		cfg.Logging.Level = v
	}
	if cfg.Logging.Format != "" {
		v, err := logFormatNormalizer.NormalizeWithError(string(cfg.Logging.Format))
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "logging.format").Fatal().Build()
		}
		cfg.Logging.Format = v
	}
	if cfg.Transport.Type != "" {
		v, err := transportNormalizer.NormalizeWithError(string(cfg.Transport.Type))
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "transport.type").Fatal().Build()
		}
		cfg.Transport.Type = v
	}

	cfg.Hosts.Clients = trimAll(cfg.Hosts.Clients)
	cfg.Hosts.Admin = trimAll(cfg.Hosts.Admin)
	for i, name := range cfg.Matrix {
		cfg.Matrix[i] = strings.ToLower(strings.TrimSpace(name))
	}
	return nil
}

func trimAll(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
