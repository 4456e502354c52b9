package tablediff_test

import (
	"testing"

	"github.com/dbascode/dbsync/internal/tablediff"
	"github.com/stretchr/testify/require"
)

const ordersDef = `CREATE TABLE [dbo].[orders] (
  [id] int IDENTITY(1,1) NOT NULL,
  [user_id] int NOT NULL,
  [total] decimal(10,2) NOT NULL DEFAULT 0,
  [note] varchar(MAX) NULL,
  CONSTRAINT [PK_orders] PRIMARY KEY CLUSTERED ([id]),
  CONSTRAINT [CK_orders_total] CHECK (total >= 0)
);
GO
CREATE INDEX [IX_orders_user_id] ON [dbo].[orders] ([user_id]);
GO
`

func TestParseTableDefBasicShape(t *testing.T) {
	pt, err := tablediff.ParseTableDef(ordersDef)
	require.NoError(t, err)
	require.Equal(t, "dbo", pt.Schema)
	require.Equal(t, "orders", pt.Name)
	require.Len(t, pt.Columns, 4)

	id, ok := pt.ColumnByName("id")
	require.True(t, ok)
	require.True(t, id.IsIdentity)
	require.Equal(t, int64(1), id.IdentitySeed)
	require.Equal(t, int64(1), id.IdentityIncr)
	require.False(t, id.Nullable)

	total, ok := pt.ColumnByName("total")
	require.True(t, ok)
	require.Equal(t, "decimal(10, 2)", total.RenderedType)
	require.True(t, total.HasDefault)
	require.Equal(t, "0", total.DefaultExpr)

	note, ok := pt.ColumnByName("note")
	require.True(t, ok)
	require.Equal(t, "varchar(MAX)", note.RenderedType)
	require.True(t, note.Nullable)

	require.NotNil(t, pt.PrimaryKey)
	require.Equal(t, "PK_orders", pt.PrimaryKey.Name)
	require.True(t, pt.PrimaryKey.Clustered)
	require.Equal(t, []string{"id"}, pt.PrimaryKey.Columns)

	require.Len(t, pt.Checks, 1)
	require.Equal(t, "CK_orders_total", pt.Checks[0].Name)
	require.Equal(t, "total >= 0", pt.Checks[0].Expression)

	require.Len(t, pt.Indexes, 1)
	require.Equal(t, "IX_orders_user_id", pt.Indexes[0].Name)
}

func TestParseTableDefNoConstraintsNoIndexes(t *testing.T) {
	def := `CREATE TABLE [dbo].[widgets] (
  [id] int NOT NULL,
  [name] nvarchar(100) NULL
);
GO
`
	pt, err := tablediff.ParseTableDef(def)
	require.NoError(t, err)
	require.Len(t, pt.Columns, 2)
	require.Nil(t, pt.PrimaryKey)
	require.Empty(t, pt.Checks)
	require.Empty(t, pt.Indexes)
}

func TestParseTableDefDecimalArgsNotSplitOnComma(t *testing.T) {
	def := `CREATE TABLE [dbo].[prices] (
  [amount] decimal(18,4) NOT NULL
);
GO
`
	pt, err := tablediff.ParseTableDef(def)
	require.NoError(t, err)
	require.Len(t, pt.Columns, 1)
	require.Equal(t, "decimal(18, 4)", pt.Columns[0].RenderedType)
}
