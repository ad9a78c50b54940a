package cli

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/dmitrijs2005/ledgerkeeper/internal/migrate"
	"github.com/google/subcommands"
)

// --- migrateCmd ---

type migrateCmd struct {
	app      *App
	to       string
	noBackup bool
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "bring the schema to a target version" }
func (*migrateCmd) Usage() string {
	return `ledgerctl migrate [-to <version>] [-no-backup]

  Applies the shortest chain of registered migrations from the recorded schema
  version to the target (the latest known version by default). A backup is
  taken first. If a step fails, the steps of this run are rolled back.
`
}

func (c *migrateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.to, "to", "", "target schema version (default latest)")
	f.BoolVar(&c.noBackup, "no-backup", false, "skip the pre-migration backup")
}

func (c *migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, err := c.app.openStore(ctx, false)
	if err != nil {
		return c.app.fail(err)
	}
	defer s.Close()

	opts := []migrate.Option{migrate.WithLogger(c.app.Logger)}
	if !c.noBackup {
		sink, err := c.app.BackupSink(ctx)
		if err != nil {
			return c.app.fail(err)
		}
		if sink != nil {
			opts = append(opts, migrate.WithBackup(sink))
		}
	}

	res, err := migrate.NewRunner(s.DB(), migrate.DefaultRegistry(), opts...).Run(ctx, c.to)
	if err != nil {
		return c.app.fail(err)
	}
	if len(res.Applied) == 0 {
		fmt.Fprintf(c.app.Out, "schema already at %s\n", res.To)
		return subcommands.ExitSuccess
	}
	for _, m := range res.Applied {
		fmt.Fprintf(c.app.Out, "applied %s: %s\n", m, m.Description)
	}
	if res.Backup != "" {
		fmt.Fprintf(c.app.Out, "backup: %s\n", res.Backup)
	}
	fmt.Fprintf(c.app.Out, "schema now at %s\n", res.To)
	return subcommands.ExitSuccess
}

// --- historyCmd ---

type historyCmd struct {
	app *App
}

func (*historyCmd) Name() string             { return "history" }
func (*historyCmd) Synopsis() string         { return "show the migration audit log" }
func (*historyCmd) Usage() string            { return "ledgerctl history\n" }
func (*historyCmd) SetFlags(_ *flag.FlagSet) {}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, err := c.app.openStore(ctx, false)
	if err != nil {
		return c.app.fail(err)
	}
	defer s.Close()

	hist, err := migrate.ListHistory(ctx, s.DB())
	if err != nil {
		return c.app.fail(err)
	}

	w := tabwriter.NewWriter(c.app.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFROM\tTO\tDIR\tOK\tDURATION\tAPPLIED\tERROR")
	for _, h := range hist {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\t%s\t%s\t%s\n",
			h.ID, h.From, h.To, h.Direction, h.Success, h.Duration, h.AppliedAt.Format("2006-01-02 15:04:05"), h.Error)
	}
	if err := w.Flush(); err != nil {
		return c.app.fail(err)
	}
	return subcommands.ExitSuccess
}

// --- statusCmd ---

type statusCmd struct {
	app *App
}

func (*statusCmd) Name() string             { return "status" }
func (*statusCmd) Synopsis() string         { return "show schema version, encryption mode and queue size" }
func (*statusCmd) Usage() string            { return "ledgerctl status\n" }
func (*statusCmd) SetFlags(_ *flag.FlagSet) {}

func (c *statusCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, err := c.app.openStore(ctx, false)
	if err != nil {
		return c.app.fail(err)
	}
	defer s.Close()

	version, err := migrate.CurrentVersion(ctx, s.DB())
	if err != nil {
		return c.app.fail(err)
	}
	pending, err := s.SyncQueueLen(ctx)
	if err != nil {
		return c.app.fail(err)
	}

	return c.app.exit(c.app.printJSON(map[string]any{
		"schemaVersion":  version,
		"manifest":       s.Manifest().Version,
		"encrypted":      s.Encrypted(),
		"pendingChanges": pending,
		"collections":    s.Manifest().Names(),
	}))
}
