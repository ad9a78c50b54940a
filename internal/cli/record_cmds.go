package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/dmitrijs2005/ledgerkeeper/internal/jsonx"
	"github.com/dmitrijs2005/ledgerkeeper/internal/store"
	"github.com/google/subcommands"
)

// withSession opens the store, runs fn with a session for the configured user
// and closes the store.
func (a *App) withSession(ctx context.Context, fn func(*store.Session) error) subcommands.ExitStatus {
	s, err := a.openStore(ctx, true)
	if err != nil {
		return a.fail(err)
	}
	defer s.Close()
	return a.exit(fn(s.Initialize(a.Config.UserID)))
}

func parseObject(arg string) (map[string]any, error) {
	data, err := jsonx.DecodeObject([]byte(arg))
	if err != nil {
		return nil, fmt.Errorf("record must be a JSON object: %w", err)
	}
	return data, nil
}

// --- getCmd ---

type getCmd struct{ app *App }

func (*getCmd) Name() string             { return "get" }
func (*getCmd) Synopsis() string         { return "print one record" }
func (*getCmd) Usage() string            { return "ledgerctl get <collection> <id>\n" }
func (*getCmd) SetFlags(_ *flag.FlagSet) {}

func (c *getCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		return c.app.usage("get needs <collection> <id>")
	}
	return c.app.withSession(ctx, func(s *store.Session) error {
		rec, err := s.Read(ctx, f.Arg(0), f.Arg(1))
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("%s/%s not found", f.Arg(0), f.Arg(1))
		}
		return c.app.printJSON(rec)
	})
}

// --- listCmd ---

type listCmd struct {
	app    *App
	index  string
	from   string
	to     string
	desc   bool
	offset int
	limit  int
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list records of a collection" }
func (*listCmd) Usage() string {
	return `ledgerctl list <collection> [-index <name>] [-from <key>] [-to <key>] [-desc] [-offset <n>] [-limit <n>]

  Iterates a collection by primary key or by a secondary index, printing one
  JSON record per line. -from and -to are inclusive string bounds on the key.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.index, "index", "", "secondary index to iterate")
	f.StringVar(&c.from, "from", "", "lower key bound")
	f.StringVar(&c.to, "to", "", "upper key bound")
	f.BoolVar(&c.desc, "desc", false, "descending order")
	f.IntVar(&c.offset, "offset", 0, "records to skip")
	f.IntVar(&c.limit, "limit", 100, "maximum records (0 for all)")
}

func (c *listCmd) options() store.ListOptions {
	opts := store.ListOptions{Index: c.index, Offset: c.offset, Limit: c.limit}
	if c.desc {
		opts.Direction = store.Descending
	}
	if c.from != "" || c.to != "" {
		rg := &store.KeyRange{}
		if c.from != "" {
			rg.Lower = c.from
		}
		if c.to != "" {
			rg.Upper = c.to
		}
		opts.Range = rg
	}
	return opts
}

func (c *listCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return c.app.usage("list needs <collection>")
	}
	return c.app.withSession(ctx, func(s *store.Session) error {
		cur, err := s.List(ctx, f.Arg(0), c.options())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(c.app.Out)
		for rec, err := range cur.All() {
			if err != nil {
				return err
			}
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// --- createCmd ---

type createCmd struct{ app *App }

func (*createCmd) Name() string             { return "create" }
func (*createCmd) Synopsis() string         { return "create a record from a JSON object" }
func (*createCmd) Usage() string            { return "ledgerctl create <collection> '<json>'\n" }
func (*createCmd) SetFlags(_ *flag.FlagSet) {}

func (c *createCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		return c.app.usage("create needs <collection> <json>")
	}
	data, err := parseObject(f.Arg(1))
	if err != nil {
		return c.app.usage(err.Error())
	}
	return c.app.withSession(ctx, func(s *store.Session) error {
		rec, err := s.Create(ctx, f.Arg(0), data)
		if err != nil {
			return err
		}
		return c.app.printJSON(rec)
	})
}

// --- updateCmd ---

type updateCmd struct{ app *App }

func (*updateCmd) Name() string             { return "update" }
func (*updateCmd) Synopsis() string         { return "shallow-merge a JSON object into a record" }
func (*updateCmd) Usage() string            { return "ledgerctl update <collection> <id> '<json>'\n" }
func (*updateCmd) SetFlags(_ *flag.FlagSet) {}

func (c *updateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 3 {
		return c.app.usage("update needs <collection> <id> <json>")
	}
	patch, err := parseObject(f.Arg(2))
	if err != nil {
		return c.app.usage(err.Error())
	}
	return c.app.withSession(ctx, func(s *store.Session) error {
		rec, err := s.Update(ctx, f.Arg(0), f.Arg(1), patch)
		if err != nil {
			return err
		}
		return c.app.printJSON(rec)
	})
}

// --- deleteCmd ---

type deleteCmd struct{ app *App }

func (*deleteCmd) Name() string             { return "delete" }
func (*deleteCmd) Synopsis() string         { return "delete a record" }
func (*deleteCmd) Usage() string            { return "ledgerctl delete <collection> <id>\n" }
func (*deleteCmd) SetFlags(_ *flag.FlagSet) {}

func (c *deleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		return c.app.usage("delete needs <collection> <id>")
	}
	return c.app.withSession(ctx, func(s *store.Session) error {
		ok, err := s.Delete(ctx, f.Arg(0), f.Arg(1))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(c.app.Out, "%s/%s did not exist\n", f.Arg(0), f.Arg(1))
			return nil
		}
		fmt.Fprintf(c.app.Out, "deleted %s/%s\n", f.Arg(0), f.Arg(1))
		return nil
	})
}
