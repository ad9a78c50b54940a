package cli

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
)

type queueCmd struct {
	app   *App
	after int64
	limit int
}

func (*queueCmd) Name() string     { return "queue" }
func (*queueCmd) Synopsis() string { return "list pending sync queue entries" }
func (*queueCmd) Usage() string {
	return `ledgerctl queue [-after <id>] [-limit <n>]

  Lists queued local mutations in insertion order. Read-only.
`
}

func (c *queueCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.after, "after", 0, "only entries with a greater id")
	f.IntVar(&c.limit, "limit", 50, "maximum entries (0 for all)")
}

func (c *queueCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, err := c.app.openStore(ctx, true)
	if err != nil {
		return c.app.fail(err)
	}
	defer s.Close()

	entries, err := s.SyncQueue(ctx, c.after, c.limit)
	if err != nil {
		return c.app.fail(err)
	}

	w := tabwriter.NewWriter(c.app.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tOP\tCOLLECTION\tRECORD\tUSER\tPRIORITY\tCREATED")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			e.ID, e.Operation, e.Collection, e.RecordID, e.UserID, e.Priority, e.CreatedAt.Format(time.RFC3339))
	}
	return c.app.exit(w.Flush())
}
