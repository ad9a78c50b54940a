// Package migrate moves the on-device schema between versions through a chain
// of registered migrations. Steps run strictly in sequence, each in its own
// transaction; if one fails, the steps already applied by the same run are
// undone in reverse order.
package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/ledgerkeeper/internal/common"
	"github.com/dmitrijs2005/ledgerkeeper/internal/dbx"
	"golang.org/x/mod/semver"
)

// MaxSteps bounds path construction. Only a mis-registered cycle can produce a
// walk this long without reaching the target.
const MaxSteps = 100

// BaseVersion is assumed for a database that has never recorded a version.
const BaseVersion = "0.0.0"

// StepFunc transforms the schema or data inside the step's transaction.
type StepFunc func(ctx context.Context, tx dbx.DBTX) error

// Migration moves the schema from one version to the next.
type Migration struct {
	From        string
	To          string
	Description string
	Up          StepFunc
	// Down undoes Up. A migration without Down cannot be rolled back.
	Down StepFunc
}

func (m Migration) String() string { return m.From + " -> " + m.To }

// Registry is an immutable set of migrations.
type Registry struct {
	migrations []Migration
}

// NewRegistry validates and indexes ms. Versions are semantic versions without
// the leading "v".
func NewRegistry(ms ...Migration) (*Registry, error) {
	seen := make(map[[2]string]bool, len(ms))
	for _, m := range ms {
		if !ValidVersion(m.From) || !ValidVersion(m.To) {
			return nil, fmt.Errorf("migration %s: invalid version", m)
		}
		if Compare(m.From, m.To) == 0 {
			return nil, fmt.Errorf("migration %s: from and to are equal", m)
		}
		if m.Up == nil {
			return nil, fmt.Errorf("migration %s: missing up step", m)
		}
		key := [2]string{m.From, m.To}
		if seen[key] {
			return nil, fmt.Errorf("migration %s registered twice", m)
		}
		seen[key] = true
	}
	return &Registry{migrations: append([]Migration(nil), ms...)}, nil
}

// ValidVersion reports whether v is a full release version such as "1.3.0".
// Shorthand ("1.3"), prerelease and build forms are rejected.
func ValidVersion(v string) bool {
	return v != "" && semver.Canonical("v"+v) == "v"+v && semver.Prerelease("v"+v) == ""
}

// Normalize expands shorthand release versions, so "1.3" becomes "1.3.0".
func Normalize(v string) (string, bool) {
	if v == "" || !semver.IsValid("v"+v) || semver.Prerelease("v"+v) != "" || semver.Build("v"+v) != "" {
		return v, false
	}
	return strings.TrimPrefix(semver.Canonical("v"+v), "v"), true
}

// Compare orders two versions like strings.Compare.
func Compare(a, b string) int { return semver.Compare("v"+a, "v"+b) }

// Latest returns the highest version any migration leads to.
func (r *Registry) Latest() (string, bool) {
	latest := ""
	for _, m := range r.migrations {
		if latest == "" || Compare(m.To, latest) > 0 {
			latest = m.To
		}
	}
	return latest, latest != ""
}

// FindPath returns the shortest chain of migrations leading from one version to
// the other. Shorthand versions are expanded first. Equal versions yield an
// empty chain. Among chains of equal length
// the one using earlier-registered migrations wins.
func (r *Registry) FindPath(from, to string) ([]Migration, error) {
	from, _ = Normalize(from)
	to, _ = Normalize(to)
	if from == to {
		return nil, nil
	}

	type node struct {
		version string
		path    []Migration
	}
	frontier := []node{{version: from}}

	for step := 1; len(frontier) > 0; step++ {
		if step > MaxSteps {
			return nil, fmt.Errorf("%w: %s -> %s exceeds %d steps", common.ErrCircularMigrationPath, from, to, MaxSteps)
		}

		var next []node
		inNext := map[string]bool{}
		for _, n := range frontier {
			for _, m := range r.migrations {
				if m.From != n.version || inNext[m.To] {
					continue
				}
				path := append(append([]Migration(nil), n.path...), m)
				if m.To == to {
					return path, nil
				}
				inNext[m.To] = true
				next = append(next, node{version: m.To, path: path})
			}
		}
		frontier = next
	}

	return nil, fmt.Errorf("%w: %s -> %s", common.ErrNoMigrationPath, from, to)
}
