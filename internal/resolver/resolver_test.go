package resolver_test

import (
	"context"
	"testing"

	"github.com/dbascode/dbsync/internal/objects"
	"github.com/dbascode/dbsync/internal/reposerv"
	"github.com/dbascode/dbsync/internal/resolver"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory reposerv.Store double keyed by commitish,
// enough to exercise the resolver without a real git checkout.
type fakeStore struct {
	trees map[string]map[string][]byte // commitish -> path -> content
	files map[string]map[string][]byte // commitish -> path -> content (flat lookup)
}

func newFakeStore() *fakeStore {
	return &fakeStore{trees: map[string]map[string][]byte{}, files: map[string]map[string][]byte{}}
}

func (f *fakeStore) put(commitish, path string, content []byte) {
	if f.trees[commitish] == nil {
		f.trees[commitish] = map[string][]byte{}
	}
	f.trees[commitish][path] = content
	if f.files[commitish] == nil {
		f.files[commitish] = map[string][]byte{}
	}
	f.files[commitish][path] = content
}

func (f *fakeStore) IsEmpty(ctx context.Context) (bool, error)            { return false, nil }
func (f *fakeStore) IsHead(ctx context.Context, commitish string) (bool, error) { return true, nil }
func (f *fakeStore) TagExists(ctx context.Context, name string) (bool, error)   { return false, nil }

func (f *fakeStore) ReadFile(ctx context.Context, commitish, path string) ([]byte, bool, error) {
	m, ok := f.files[commitish]
	if !ok {
		return nil, false, nil
	}
	b, ok := m[path]
	return b, ok, nil
}

func (f *fakeStore) ReadTree(ctx context.Context, commitish, folder string) (map[string][]byte, error) {
	out := map[string][]byte{}
	m := f.trees[commitish]
	for path, content := range m {
		if len(path) >= len(folder) && path[:len(folder)] == folder {
			out[path] = content
		}
	}
	return out, nil
}

func (f *fakeStore) Diff(ctx context.Context, from, to string, paths []string) ([]reposerv.DiffEntry, error) {
	return nil, nil
}

func (f *fakeStore) CommitAndPush(ctx context.Context, changes []reposerv.FileChange, message, targetRef string, tags []string) (string, error) {
	return "", nil
}

func (f *fakeStore) MoveTagAndPush(ctx context.Context, tag, commitish string) error { return nil }

func TestResolveOverlayDeltaDeletesDiffWhenDBMatchesBase(t *testing.T) {
	store := newFakeStore()
	store.put("HEAD", "base/PROCEDURE/dbo/p.sql", []byte("CREATE PROCEDURE [dbo].[p] AS SELECT 1\nGO\n"))
	store.put("HEAD", "diff/db/d2/PROCEDURE/dbo/p.sql", []byte("CREATE PROCEDURE [dbo].[p] AS SELECT 2\nGO\n"))

	live := []objects.Object{
		{Schema: "dbo", Name: "p", Type: objects.TypeProcedure, Definition: objects.Str("create procedure p as select 1 go")},
	}

	res := resolver.New(store, nil, "dbo", "db")
	changes, err := res.ResolveOverlayDelta(context.Background(), "HEAD", "d2", live, "")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, "diff/db/d2/PROCEDURE/dbo/p.sql", changes[0].Path)
	require.Nil(t, changes[0].Content)
}

func TestResolveOverlayDeltaTombstonesDeletedObject(t *testing.T) {
	store := newFakeStore()
	store.put("HEAD", "base/PROCEDURE/dbo/p.sql", []byte("CREATE PROCEDURE [dbo].[p] AS SELECT 1\nGO\n"))
	store.put("HEAD", "diff/db/d2/PROCEDURE/dbo/p.sql", []byte("CREATE PROCEDURE [dbo].[p] AS SELECT 2\nGO\n"))

	res := resolver.New(store, nil, "dbo", "db")
	changes, err := res.ResolveOverlayDelta(context.Background(), "HEAD", "d2", nil, "")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.NotNil(t, changes[0].Content)
	require.Equal(t, "", *changes[0].Content)
}

func TestResolveOverlayDeltaWritesDivergentDBDefinition(t *testing.T) {
	store := newFakeStore()
	store.put("HEAD", "base/PROCEDURE/dbo/p.sql", []byte("CREATE PROCEDURE [dbo].[p] AS SELECT 1\nGO\n"))

	live := []objects.Object{
		{Schema: "dbo", Name: "p", Type: objects.TypeProcedure, Definition: objects.Str("create procedure p as select 2 go")},
	}

	res := resolver.New(store, nil, "dbo", "db")
	changes, err := res.ResolveOverlayDelta(context.Background(), "HEAD", "d2", live, "")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, "diff/db/d2/PROCEDURE/dbo/p.sql", changes[0].Path)
	require.Equal(t, "create procedure p as select 2 go", *changes[0].Content)
}

func TestResolveOverlayDeltaNoChangeWhenAlreadyAligned(t *testing.T) {
	store := newFakeStore()
	store.put("HEAD", "base/PROCEDURE/dbo/p.sql", []byte("CREATE PROCEDURE [dbo].[p] AS SELECT 1\nGO\n"))

	live := []objects.Object{
		{Schema: "dbo", Name: "p", Type: objects.TypeProcedure, Definition: objects.Str("create procedure p as select 1 go")},
	}

	res := resolver.New(store, nil, "dbo", "db")
	changes, err := res.ResolveOverlayDelta(context.Background(), "HEAD", "d2", live, "")
	require.NoError(t, err)
	require.Empty(t, changes)
}
