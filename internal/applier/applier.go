// Package applier implements the Change Applier: given a list of
// objects to add, modify, or delete, it builds an ordered DDL script
// (pre-creating schemas, delegating table changes to the Table Diff
// Planner) and executes it as GO-delimited batches inside one
// transaction.
package applier

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/dbascode/dbsync/internal/catalog"
	"github.com/dbascode/dbsync/internal/dsyncerr"
	"github.com/dbascode/dbsync/internal/objects"
	"github.com/dbascode/dbsync/internal/tablediff"
)

var goLine = regexp.MustCompile(`(?mi)^\s*go\s*$`)

// keywordByType maps a non-table object type to the DROP keyword used
// ahead of its DROP ... IF EXISTS statement.
var keywordByType = map[objects.Type]string{
	objects.TypeTableType:  "TYPE",
	objects.TypeScalarType: "TYPE",
	objects.TypeSequence:   "SEQUENCE",
	objects.TypeSynonym:    "SYNONYM",
	objects.TypeFunction:   "FUNCTION",
	objects.TypeProcedure:  "PROCEDURE",
	objects.TypeView:       "VIEW",
	objects.TypeTrigger:    "TRIGGER",
}

// Applier builds and executes Change Applier scripts against one
// bound database connection.
type Applier struct {
	DefaultSchema string
	// LiveTable resolves the current live structure of a table by
	// schema/name, or nil if the table does not yet exist. Supplied by
	// the caller (internal/dbconn) so this package never opens its own
	// connection.
	LiveTable func(ctx context.Context, schema, name string) (*catalog.LiveTable, error)
}

// New builds an Applier bound to a live-table resolver.
func New(defaultSchema string, liveTable func(ctx context.Context, schema, name string) (*catalog.LiveTable, error)) *Applier {
	return &Applier{DefaultSchema: defaultSchema, LiveTable: liveTable}
}

// BuildScript implements the ordered algorithm of §4.7: schema
// pre-creation guards, then per-change DDL, all batches GO-separated.
// The caller (§4.8) is responsible for having already sorted changes
// into dependency order; BuildScript does not itself sort.
func (a *Applier) BuildScript(ctx context.Context, changes []objects.Object) (string, error) {
	var sb strings.Builder

	for _, s := range distinctSchemas(changes, a.DefaultSchema) {
		fmt.Fprintf(&sb, "IF NOT EXISTS (SELECT 1 FROM sys.schemas WHERE name = '%s') EXEC('CREATE SCHEMA [%s]');\nGO\n", s, s)
	}

	for _, ch := range changes {
		ref := fmt.Sprintf("[%s].[%s]", ch.Schema, ch.Name)
		switch ch.Type {
		case objects.TypeTable:
			if ch.IsDelete() {
				fmt.Fprintf(&sb, "DROP TABLE IF EXISTS %s;\nGO\n", ref)
				continue
			}
			live, err := a.LiveTable(ctx, ch.Schema, ch.Name)
			if err != nil {
				return "", err
			}
			script, err := tablediff.GenerateAlterScript(ch.DefString(), live)
			if err != nil {
				return "", dsyncerr.Wrap(dsyncerr.KindDDLExecutionFailed, err, "planning table diff for %s", ref)
			}
			if script == "" {
				continue
			}
			sb.WriteString(script)
			if !strings.HasSuffix(strings.TrimRight(script, "\n"), "GO") {
				sb.WriteString("\nGO\n")
			}
		default:
			kw, ok := keywordByType[ch.Type]
			if !ok {
				return "", dsyncerr.New(dsyncerr.KindInvalidObjectType, "no DROP keyword mapping for object type %q", ch.Type)
			}
			fmt.Fprintf(&sb, "DROP %s IF EXISTS %s;\nGO\n", kw, ref)
			if !ch.IsDelete() {
				sb.WriteString(ch.DefString())
				if !strings.HasSuffix(strings.TrimRight(ch.DefString(), "\n"), "GO") {
					sb.WriteString("\nGO\n")
				}
			}
		}
	}

	return sb.String(), nil
}

// Apply runs BuildScript's output as a sequence of GO-delimited
// batches inside a single transaction; any batch failure aborts and
// rolls back the whole apply.
func (a *Applier) Apply(ctx context.Context, db *sql.DB, changes []objects.Object) error {
	script, err := a.BuildScript(ctx, changes)
	if err != nil {
		return err
	}
	batches := SplitBatches(script)
	if len(batches) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return dsyncerr.Wrap(dsyncerr.KindDBIO, err, "beginning apply transaction")
	}
	for _, b := range batches {
		if strings.TrimSpace(b) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, b); err != nil {
			_ = tx.Rollback()
			return dsyncerr.Wrap(dsyncerr.KindDDLExecutionFailed, err, "executing batch: %s", truncate(b, 200))
		}
	}
	if err := tx.Commit(); err != nil {
		return dsyncerr.Wrap(dsyncerr.KindDBIO, err, "committing apply transaction")
	}
	return nil
}

// SplitBatches splits a script on standalone "GO" lines, per the
// batch-delimiter convention shared with the Catalog Reader's output.
func SplitBatches(script string) []string {
	parts := goLine.Split(script, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func distinctSchemas(changes []objects.Object, defaultSchema string) []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range changes {
		if c.Schema == "" || strings.EqualFold(c.Schema, defaultSchema) {
			continue
		}
		if !seen[c.Schema] {
			seen[c.Schema] = true
			out = append(out, c.Schema)
		}
	}
	return out
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
