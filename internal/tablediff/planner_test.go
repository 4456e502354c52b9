package tablediff_test

import (
	"strings"
	"testing"

	"github.com/dbascode/dbsync/internal/catalog"
	"github.com/dbascode/dbsync/internal/tablediff"
	"github.com/stretchr/testify/require"
)

func TestGenerateAlterScriptTableNotExistsReturnsDefinitionUnchanged(t *testing.T) {
	def := `CREATE TABLE [dbo].[widgets] (
  [id] int NOT NULL
);
GO
`
	got, err := tablediff.GenerateAlterScript(def, nil)
	require.NoError(t, err)
	require.Equal(t, def, got)
}

func TestGenerateAlterScriptNoOpWhenShapesMatch(t *testing.T) {
	def := `CREATE TABLE [dbo].[widgets] (
  [id] int NOT NULL,
  [name] varchar(50) NULL
);
GO
`
	live := &catalog.LiveTable{
		Schema: "dbo",
		Name:   "widgets",
		Columns: []catalog.Column{
			{Name: "id", RenderedType: "int", Nullable: false},
			{Name: "name", RenderedType: "varchar(50)", Nullable: true},
		},
	}
	got, err := tablediff.GenerateAlterScript(def, live)
	require.NoError(t, err)
	require.Empty(t, got)
}

// TestGenerateAlterScriptAddsAndWidensColumns is scenario 4 from the
// testable-properties list: evolving a table by adding a column and
// widening another must preserve existing rows, i.e. emit ADD/ALTER
// statements rather than a drop-and-recreate.
func TestGenerateAlterScriptAddsAndWidensColumns(t *testing.T) {
	def := `CREATE TABLE [dbo].[customers] (
  [id] int NOT NULL,
  [name] varchar(100) NULL,
  [email] varchar(100) NULL,
  CONSTRAINT [PK_customers] PRIMARY KEY CLUSTERED ([id])
);
GO
`
	live := &catalog.LiveTable{
		Schema: "dbo",
		Name:   "customers",
		Columns: []catalog.Column{
			{Name: "id", RenderedType: "int", Nullable: false},
			{Name: "name", RenderedType: "varchar(50)", Nullable: true},
		},
		PrimaryKey: &catalog.PrimaryKey{Name: "PK_customers", Clustered: true, Columns: []string{"id"}},
	}

	got, err := tablediff.GenerateAlterScript(def, live)
	require.NoError(t, err)

	require.Contains(t, got, "ALTER TABLE [dbo].[customers] ADD [email] varchar(100) NULL;")
	require.Contains(t, got, "ALTER TABLE [dbo].[customers] ALTER COLUMN [name] varchar(100) NULL;")
	require.NotContains(t, got, "DROP COLUMN")
	require.NotContains(t, got, "DROP CONSTRAINT [PK_customers]")
}

// TestGenerateAlterScriptDropsColumnWithDependentCheckInOrder is
// scenario 5: dropping a column that backs a CHECK constraint must
// drop the check before the column, never the reverse.
func TestGenerateAlterScriptDropsColumnWithDependentCheckInOrder(t *testing.T) {
	def := `CREATE TABLE [dbo].[orders] (
  [id] int NOT NULL,
  CONSTRAINT [PK_orders] PRIMARY KEY CLUSTERED ([id])
);
GO
`
	live := &catalog.LiveTable{
		Schema: "dbo",
		Name:   "orders",
		Columns: []catalog.Column{
			{Name: "id", RenderedType: "int", Nullable: false},
			{Name: "total", RenderedType: "decimal(10, 2)", Nullable: false},
		},
		PrimaryKey: &catalog.PrimaryKey{Name: "PK_orders", Clustered: true, Columns: []string{"id"}},
		Checks: []catalog.CheckConstraint{
			{Name: "CK_orders_total", Expression: "total >= 0", Columns: []string{"total"}},
		},
	}

	got, err := tablediff.GenerateAlterScript(def, live)
	require.NoError(t, err)

	checkDropIdx := strings.Index(got, "DROP CONSTRAINT [CK_orders_total]")
	colDropIdx := strings.Index(got, "DROP COLUMN [total]")
	require.True(t, checkDropIdx >= 0)
	require.True(t, colDropIdx >= 0)
	require.Less(t, checkDropIdx, colDropIdx)
}

func TestGenerateAlterScriptReissuesIndexesIdempotently(t *testing.T) {
	def := `CREATE TABLE [dbo].[orders] (
  [id] int NOT NULL,
  [total] decimal(10,2) NOT NULL
);
GO
CREATE INDEX [IX_orders_total] ON [dbo].[orders] ([total]);
GO
`
	live := &catalog.LiveTable{
		Schema: "dbo",
		Name:   "orders",
		Columns: []catalog.Column{
			{Name: "id", RenderedType: "int", Nullable: false},
			{Name: "total", RenderedType: "decimal(10, 2)", Nullable: false},
		},
	}

	got, err := tablediff.GenerateAlterScript(def, live)
	require.NoError(t, err)
	require.Contains(t, got, "DROP INDEX IF EXISTS [IX_orders_total] ON [dbo].[orders];")
	require.Contains(t, got, "CREATE INDEX [IX_orders_total] ON [dbo].[orders] ([total]);")
}
