package cli

import (
	"context"
	"flag"

	"github.com/dmitrijs2005/ledgerkeeper/internal/buildinfo"
	"github.com/google/subcommands"
)

type versionCmd struct{ app *App }

func (*versionCmd) Name() string             { return "version" }
func (*versionCmd) Synopsis() string         { return "print build information" }
func (*versionCmd) Usage() string            { return "ledgerctl version\n" }
func (*versionCmd) SetFlags(_ *flag.FlagSet) {}

func (c *versionCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	buildinfo.PrintBuildData(c.app.Out)
	return subcommands.ExitSuccess
}
