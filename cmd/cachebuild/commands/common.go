package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/cachebuild/internal/config"
	ferrors "git.home.luguber.info/inful/cachebuild/internal/foundation/errors"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path" default:"cachebuild.yaml" env:"CACHEBUILD_CONFIG"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogLevel  string           `name:"log-level" help:"Override logging.level (debug|info|warn|error)"`
	LogFormat string           `name:"log-format" help:"Override logging.format (text|json)"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run      RunCmd      `cmd:"" help:"Run the build pipeline over dfuse for one scenario or mode"`
	Matrix   MatrixCmd   `cmd:"" help:"Run every scenario of the configured matrix, one after another"`
	Plan     PlanCmd     `cmd:"" help:"Print the resolved profile, environment and steps without executing"`
	Modes    ModesCmd    `cmd:"" help:"List cache modes and scenarios"`
	Schedule ScheduleCmd `cmd:"" help:"Run the matrix on a cron schedule and serve metrics"`
	History  HistoryCmd  `cmd:"" help:"Show recorded runs"`
	Init     InitCmd     `cmd:"" help:"Write an example configuration file"`
	Ver      VersionCmd  `cmd:"" name:"version" help:"Print version information"`
}

// AfterApply runs after flag parsing; set up logging from flags. Commands that
// load a configuration re-apply logging with the configured defaults.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	c.setupLogging(config.LogLevelInfo, config.LogFormatText)
	return nil
}

func (c *CLI) setupLogging(level config.LogLevel, format config.LogFormat) {
	if c.LogLevel != "" {
		level = config.LogLevel(c.LogLevel)
	}
	if c.LogFormat != "" {
		format = config.LogFormat(c.LogFormat)
	}
	lvl := level.Slog()
	if c.Verbose {
		lvl = slog.LevelDebug
	}
	slog.SetDefault(slog.New(newHandler(os.Stderr, format, lvl)))
}

func newHandler(w io.Writer, format config.LogFormat, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// loadConfig loads the configuration file. When optional is set, a missing file
// yields the single-node defaults instead of an error.
func (c *CLI) loadConfig(optional bool) (*config.Config, error) {
	if optional {
		if _, err := os.Stat(c.Config); os.IsNotExist(err) {
			config.LoadEnvFiles()
			slog.Debug("No configuration file, using defaults", "path", c.Config)
			return config.Default(), nil
		}
	}
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	c.setupLogging(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func usageError(msg string) error {
	return ferrors.ValidationError(msg).Build()
}
