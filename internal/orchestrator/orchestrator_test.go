package orchestrator_test

import (
	"context"
	"testing"

	"github.com/dbascode/dbsync/internal/objects"
	"github.com/dbascode/dbsync/internal/orchestrator"
	"github.com/dbascode/dbsync/internal/reposerv"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory reposerv.Store double that treats "HEAD"
// and every tag name as interchangeable empty trees, just enough to
// drive the fan-out paths of SyncRepoToDb without a real git checkout.
type fakeStore struct {
	tags    map[string]bool
	head    bool
	files   map[string][]byte
	entries []reposerv.DiffEntry
}

func (f *fakeStore) IsEmpty(ctx context.Context) (bool, error) { return false, nil }
func (f *fakeStore) IsHead(ctx context.Context, commitish string) (bool, error) {
	return f.head, nil
}
func (f *fakeStore) TagExists(ctx context.Context, name string) (bool, error) {
	return f.tags[name], nil
}
func (f *fakeStore) ReadFile(ctx context.Context, commitish, path string) ([]byte, bool, error) {
	b, ok := f.files[path]
	return b, ok, nil
}
func (f *fakeStore) ReadTree(ctx context.Context, commitish, folder string) (map[string][]byte, error) {
	return map[string][]byte{}, nil
}
func (f *fakeStore) Diff(ctx context.Context, from, to string, paths []string) ([]reposerv.DiffEntry, error) {
	return f.entries, nil
}
func (f *fakeStore) CommitAndPush(ctx context.Context, changes []reposerv.FileChange, message, targetRef string, tags []string) (string, error) {
	return "deadbeef", nil
}
func (f *fakeStore) MoveTagAndPush(ctx context.Context, tag, commitish string) error { return nil }

type fakeDBService struct{}

func (fakeDBService) ListObjects(ctx context.Context, dbName string) ([]objects.Object, error) {
	return nil, nil
}
func (fakeDBService) ApplyChanges(ctx context.Context, dbName string, changes []objects.Object) error {
	return nil
}

func TestSyncRepoToDbSkipsUnonboardedTargets(t *testing.T) {
	store := &fakeStore{tags: map[string]bool{}, head: true}
	orch := orchestrator.New(store, fakeDBService{}, nil, "dbo", "db")

	results, err := orch.SyncRepoToDb(context.Background(), orchestrator.SyncRepoToDbRequest{
		Commitish: "HEAD",
		DBNames:   []string{"billing", "inventory"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		require.Equal(t, orchestrator.StatusSkippedNotOnboarded, r.Status)
	}
}

func TestSyncRepoToDbStampsSharedRunIDAcrossTargets(t *testing.T) {
	store := &fakeStore{tags: map[string]bool{}, head: true}
	orch := orchestrator.New(store, fakeDBService{}, nil, "dbo", "db")

	results, err := orch.SyncRepoToDb(context.Background(), orchestrator.SyncRepoToDbRequest{
		Commitish: "HEAD",
		DBNames:   []string{"billing", "inventory"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.NotEmpty(t, results[0].RunID)
	require.Equal(t, results[0].RunID, results[1].RunID)
}

func TestSyncRepoToDbForcesDryRunOnNonHeadCommitish(t *testing.T) {
	store := &fakeStore{
		tags: map[string]bool{"billing": true},
		head: false,
		files: map[string][]byte{
			"base/PROCEDURE/dbo/p.sql": []byte("CREATE PROCEDURE [dbo].[p] AS SELECT 1\nGO\n"),
		},
		entries: []reposerv.DiffEntry{
			{ChangeType: reposerv.ChangeAdd, NewPath: "base/PROCEDURE/dbo/p.sql"},
		},
	}
	orch := orchestrator.New(store, fakeDBService{}, nil, "dbo", "db")

	results, err := orch.SyncRepoToDb(context.Background(), orchestrator.SyncRepoToDbRequest{
		Commitish: "abc123",
		DBNames:   []string{"billing"},
		Force:     false,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, orchestrator.StatusSuccessDryRun, results[0].Status)
}
