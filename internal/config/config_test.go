package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/cachebuild/internal/cachemode"
	ferrors "git.home.luguber.info/inful/cachebuild/internal/foundation/errors"
)

const minimal = `
version: "1.0"
hosts:
  clients: [c1, " c2 "]
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, []string{"c1", "c2"}, cfg.Hosts.Clients)
	assert.Equal(t, []string{"c1"}, cfg.Hosts.Admin)
	assert.Equal(t, TransportSSH, cfg.Transport.Type)
	assert.Equal(t, 22, cfg.Transport.SSH.Port)
	assert.Equal(t, 30*time.Second, cfg.Transport.SSH.DialTimeout)
	assert.Equal(t, "https://github.com/daos-stack/daos.git", cfg.Source.URL)
	assert.Equal(t, BuiltinScenarioNames(), cfg.Matrix)
	assert.Equal(t, LogLevelInfo, cfg.Logging.Level)
	assert.Equal(t, LogFormatText, cfg.Logging.Format)
	assert.Equal(t, "cachebuild.events", cfg.Events.Subject)
	assert.Equal(t, "0 2 * * *", cfg.Schedule.Cron)
	assert.NotEmpty(t, cfg.History.Path)
}

func TestParse_FullDocument(t *testing.T) {
	t.Setenv("CB_TEST_USER", "builder")
	doc := `
version: "1.0"
hosts:
  clients: [vm-1]
  admin: [srv-1]
  constrained: true
transport:
  type: SSH
  ssh:
    user: ${CB_TEST_USER}
    port: 2222
    dial_timeout: 5s
daos:
  prefix: /opt/daos
  pool_size: 10G
matrix: [WT_IL, nocache, mine]
scenarios:
  - name: mine
    mode: wb
    library: pil4dfs
logging:
  level: WARNING
  format: json
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "builder", cfg.Transport.SSH.User)
	assert.Equal(t, 2222, cfg.Transport.SSH.Port)
	assert.Equal(t, 5*time.Second, cfg.Transport.SSH.DialTimeout)
	assert.Equal(t, []string{"srv-1"}, cfg.Hosts.Admin)
	assert.Equal(t, "/opt/daos", cfg.DAOS.Prefix)
	assert.Equal(t, LogLevelWarn, cfg.Logging.Level)
	assert.Equal(t, LogFormatJSON, cfg.Logging.Format)

	matrix, err := cfg.MatrixScenarios()
	require.NoError(t, err)
	require.Len(t, matrix, 3)
	assert.Equal(t, "wt_il", matrix[0].Name)
	assert.Equal(t, Scenario{Name: "mine", Mode: cachemode.WriteBack, Library: cachemode.PIL4DFS, Constrained: true}, matrix[2])
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		category ferrors.ErrorCategory
	}{
		{"bad yaml", "version: [", ferrors.CategoryConfig},
		{"wrong version", "version: \"2.0\"\nhosts: {clients: [a]}", ferrors.CategoryConfig},
		{"no clients", "version: \"1.0\"", ferrors.CategoryValidation},
		{"bad log level", "version: \"1.0\"\nhosts: {clients: [a]}\nlogging: {level: loud}", ferrors.CategoryConfig},
		{"bad transport", "version: \"1.0\"\nhosts: {clients: [a]}\ntransport: {type: telnet}", ferrors.CategoryConfig},
		{"local multi host", "version: \"1.0\"\nhosts: {clients: [a, b]}\ntransport: {type: local}", ferrors.CategoryValidation},
		{"unknown matrix entry", "version: \"1.0\"\nhosts: {clients: [a]}\nmatrix: [turbo]", ferrors.CategoryConfig},
		{"bad scenario mode", "version: \"1.0\"\nhosts: {clients: [a]}\nscenarios: [{name: x, mode: fast}]", ferrors.CategoryConfig},
		{"relative namespace", "version: \"1.0\"\nhosts: {clients: [a]}\nrun: {namespace: run/dfuse}", ferrors.CategoryValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Equal(t, tt.category, ferrors.GetCategory(err), err.Error())
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cachebuild.yaml")

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))

	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Hosts.Clients, 2)
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cachebuild.yaml")
	require.NoError(t, Init(path, false))
	assert.Error(t, Init(path, false))
	require.NoError(t, Init(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"client-1", "client-2"}, cfg.Hosts.Clients)
	assert.True(t, cfg.History.Enabled)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, TransportLocal, cfg.Transport.Type)
	assert.Equal(t, []string{"localhost"}, cfg.Hosts.Admin)
}

func TestLoadEnvFilesDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(".env", []byte("CB_ENV_A=from-file\nCB_ENV_B=from-file\n"), 0o600))
	t.Setenv("CB_ENV_A", "from-process")
	t.Setenv("CB_ENV_B", "")
	os.Unsetenv("CB_ENV_B")

	LoadEnvFiles()

	assert.Equal(t, "from-process", os.Getenv("CB_ENV_A"))
	assert.Equal(t, "from-file", os.Getenv("CB_ENV_B"))
}

func TestLogLevelSlog(t *testing.T) {
	assert.Equal(t, "DEBUG", LogLevelDebug.Slog().String())
	assert.Equal(t, "ERROR", LogLevelError.Slog().String())
	assert.Equal(t, "INFO", LogLevel("").Slog().String())
}
