package objpath_test

import (
	"testing"

	"github.com/dbascode/dbsync/internal/dsyncerr"
	"github.com/dbascode/dbsync/internal/objects"
	"github.com/dbascode/dbsync/internal/objpath"
	"github.com/stretchr/testify/require"
)

func TestToObjectValid(t *testing.T) {
	def := objects.Str("CREATE PROCEDURE dbo.p AS SELECT 1\nGO")
	o, err := objpath.ToObject("base/PROCEDURE/dbo/p.sql", def)
	require.NoError(t, err)
	require.Equal(t, objects.TypeProcedure, o.Type)
	require.Equal(t, "dbo", o.Schema)
	require.Equal(t, "p", o.Name)
	require.Equal(t, def, o.Definition)
}

func TestToObjectDeepPathUsesLastThreeSegments(t *testing.T) {
	o, err := objpath.ToObject("diff/v1/mydb/TABLE/dbo/users.sql", nil)
	require.NoError(t, err)
	require.Equal(t, objects.TypeTable, o.Type)
	require.Equal(t, "dbo", o.Schema)
	require.Equal(t, "users", o.Name)
}

func TestToObjectInvalidFileType(t *testing.T) {
	_, err := objpath.ToObject("base/PROCEDURE/dbo/p.txt", nil)
	require.True(t, dsyncerr.Of(err, dsyncerr.KindInvalidFileType))
}

func TestToObjectInvalidPathTooFewSegments(t *testing.T) {
	_, err := objpath.ToObject("p.sql", nil)
	require.True(t, dsyncerr.Of(err, dsyncerr.KindInvalidPath))
}

func TestToObjectInvalidObjectType(t *testing.T) {
	_, err := objpath.ToObject("base/BOGUS/dbo/p.sql", nil)
	require.True(t, dsyncerr.Of(err, dsyncerr.KindInvalidObjectType))
}

func TestFromObjectRoundTrip(t *testing.T) {
	o := objects.Object{Type: objects.TypeView, Schema: "dbo", Name: "v"}
	p := objpath.FromObject(o, "base")
	require.Equal(t, "base/VIEW/dbo/v.sql", p)

	back, err := objpath.ToObject(p, nil)
	require.NoError(t, err)
	require.Equal(t, o.Key(), back.Key())
}

func TestDiffPath(t *testing.T) {
	k := objects.NewKey(objects.TypeProcedure, "dbo", "p")
	require.Equal(t, "diff/v1/mydb/PROCEDURE/dbo/p.sql", objpath.DiffPath("v1", "MyDB", k))
}

func TestKeyFromRepoPath(t *testing.T) {
	k, ok := objpath.KeyFromRepoPath("base/PROCEDURE/dbo/p.sql")
	require.True(t, ok)
	require.Equal(t, objects.NewKey(objects.TypeProcedure, "dbo", "p"), k)

	_, ok = objpath.KeyFromRepoPath("README.md")
	require.False(t, ok)
}
