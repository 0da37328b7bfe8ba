package config

import (
	"log/slog"

	"github.com/joho/godotenv"
)

var envFiles = []string{".env", ".env.local"}

// LoadEnvFiles loads .env and .env.local when present. Variables already set in
// the process environment are never overridden.
func LoadEnvFiles() {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err == nil {
			slog.Debug("Loaded environment variables", "file", f)
		}
	}
}
