// Package reposerv defines the Repository Store port the engine
// invokes. The concrete Git storage backend (cloning, pushing,
// credential handling) is an external collaborator; only the
// operations below are this engine's concern.
package reposerv

import "context"

// ChangeType classifies one entry of a Diff result.
type ChangeType string

const (
	ChangeAdd    ChangeType = "ADD"
	ChangeModify ChangeType = "MODIFY"
	ChangeDelete ChangeType = "DELETE"
	ChangeRename ChangeType = "RENAME"
	ChangeCopy   ChangeType = "COPY"
)

// DiffEntry is one path-level change between two commitishes.
type DiffEntry struct {
	ChangeType ChangeType
	OldPath    string
	NewPath    string
	OldBlobID  string
	NewBlobID  string
}

// FileChange describes one mutation to apply in a commit. A nil
// Bytes deletes the path.
type FileChange struct {
	Path  string
	Bytes []byte
}

// Store is the Repository Store contract: the minimal set of git
// operations the sync engine needs against a working tree.
type Store interface {
	IsEmpty(ctx context.Context) (bool, error)
	IsHead(ctx context.Context, commitish string) (bool, error)
	TagExists(ctx context.Context, name string) (bool, error)

	ReadFile(ctx context.Context, commitish, path string) ([]byte, bool, error)
	ReadTree(ctx context.Context, commitish, folder string) (map[string][]byte, error)

	Diff(ctx context.Context, fromCommitish, toCommitish string, pathFilters []string) ([]DiffEntry, error)

	CommitAndPush(ctx context.Context, changes []FileChange, message, targetRef string, tags []string) (string, error)
	MoveTagAndPush(ctx context.Context, tag, commitish string) error
}
