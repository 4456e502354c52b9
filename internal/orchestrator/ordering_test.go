package orchestrator_test

import (
	"testing"

	"github.com/dbascode/dbsync/internal/objects"
	"github.com/dbascode/dbsync/internal/orchestrator"
	"github.com/stretchr/testify/require"
)

func TestSortForApplyOrdersByTypeBucket(t *testing.T) {
	changes := []objects.Object{
		{Schema: "dbo", Name: "tr1", Type: objects.TypeTrigger, Definition: objects.Str("x")},
		{Schema: "dbo", Name: "p1", Type: objects.TypeProcedure, Definition: objects.Str("x")},
		{Schema: "dbo", Name: "t1", Type: objects.TypeTable, Definition: objects.Str("CREATE TABLE [dbo].[t1] ([id] int NOT NULL);\nGO\n")},
		{Schema: "dbo", Name: "seq1", Type: objects.TypeSequence, Definition: objects.Str("x")},
	}

	sorted, err := orchestrator.SortForApply(changes)
	require.NoError(t, err)
	require.Len(t, sorted, 4)

	indexOf := func(name string) int {
		for i, o := range sorted {
			if o.Name == name {
				return i
			}
		}
		return -1
	}
	require.Less(t, indexOf("seq1"), indexOf("t1"))
	require.Less(t, indexOf("t1"), indexOf("p1"))
	require.Less(t, indexOf("p1"), indexOf("tr1"))
}

func TestSortForApplyOrdersTablesByForeignKeyDependency(t *testing.T) {
	users := objects.Object{
		Schema: "dbo", Name: "users", Type: objects.TypeTable,
		Definition: objects.Str("CREATE TABLE [dbo].[users] ([id] int NOT NULL);\nGO\n"),
	}
	orders := objects.Object{
		Schema: "dbo", Name: "orders", Type: objects.TypeTable,
		Definition: objects.Str("CREATE TABLE [dbo].[orders] ([id] int NOT NULL, [user_id] int NOT NULL, CONSTRAINT [FK_orders_users] FOREIGN KEY ([user_id]) REFERENCES [dbo].[users] ([id]));\nGO\n"),
	}

	sorted, err := orchestrator.SortForApply([]objects.Object{orders, users})
	require.NoError(t, err)
	require.Equal(t, "users", sorted[0].Name)
	require.Equal(t, "orders", sorted[1].Name)
}

func TestSortForApplyDetectsForeignKeyCycle(t *testing.T) {
	a := objects.Object{
		Schema: "dbo", Name: "a", Type: objects.TypeTable,
		Definition: objects.Str("CREATE TABLE [dbo].[a] ([id] int NOT NULL, [b_id] int NOT NULL, CONSTRAINT [FK_a_b] FOREIGN KEY ([b_id]) REFERENCES [dbo].[b] ([id]));\nGO\n"),
	}
	b := objects.Object{
		Schema: "dbo", Name: "b", Type: objects.TypeTable,
		Definition: objects.Str("CREATE TABLE [dbo].[b] ([id] int NOT NULL, [a_id] int NOT NULL, CONSTRAINT [FK_b_a] FOREIGN KEY ([a_id]) REFERENCES [dbo].[a] ([id]));\nGO\n"),
	}

	_, err := orchestrator.SortForApply([]objects.Object{a, b})
	require.Error(t, err)
}
