package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/cachebuild/cmd/cachebuild/commands"
	"git.home.luguber.info/inful/cachebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/cachebuild/internal/version"
)

func main() {
	var cli commands.CLI
	parser := kong.Parse(&cli,
		kong.Name("cachebuild"),
		kong.Description("Validate dfuse caching modes by building DAOS over a dfuse mount."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	global := &commands.Global{Logger: slog.Default()}
	err := parser.Run(global, &cli)
	errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
