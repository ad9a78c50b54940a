package migrate

import (
	"fmt"

	"github.com/dmitrijs2005/ledgerkeeper/internal/schema"
)

func collectionOf(m *schema.Manifest, name string) schema.Collection {
	c, ok := m.Collection(name)
	if !ok {
		panic(fmt.Sprintf("manifest has no collection %q", name))
	}
	return *c
}

// Builtin returns the migrations that lead an older finance store to
// schema.DefaultVersion.
func Builtin() []Migration {
	m := schema.Default()
	return []Migration{
		{
			From:        "1.0.0",
			To:          "1.1.0",
			Description: "add budgets and categories",
			Up:          Steps(CreateCollection(collectionOf(m, "categories")), CreateCollection(collectionOf(m, "budgets"))),
			Down:        Steps(DropCollection("budgets"), DropCollection("categories")),
		},
		{
			From:        "1.1.0",
			To:          "1.2.0",
			Description: "add insights, default goal status to active",
			Up: Steps(
				CreateCollection(collectionOf(m, "insights")),
				RewriteRecords("goals", func(rec map[string]any) (bool, error) {
					if s, ok := rec["status"]; ok && s != nil {
						return false, nil
					}
					rec["status"] = "active"
					return true, nil
				}),
			),
			// backfilled statuses are valid in 1.1.0 and stay
			Down: DropCollection("insights"),
		},
		{
			From:        "1.2.0",
			To:          "1.3.0",
			Description: "add cache, index transactions by category",
			Up:          Steps(CreateCollection(collectionOf(m, "cache")), CreateCollection(collectionOf(m, "transactions"))),
			Down:        Steps(DropIndex("transactions", "category"), DropCollection("cache")),
		},
	}
}

// DefaultRegistry wraps Builtin.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Builtin()...)
	if err != nil {
		panic(err)
	}
	return r
}
