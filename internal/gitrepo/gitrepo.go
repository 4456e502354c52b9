// Package gitrepo implements the Repository Store contract by
// shelling out to the git binary against a local working tree:
// os/exec, never a Git-implementation library.
package gitrepo

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dbascode/dbsync/internal/dsyncerr"
	"github.com/dbascode/dbsync/internal/reposerv"
)

// Store drives a local git working tree. Mutating operations (commit,
// tag move, push) are serialized behind mu, since there is one Git
// working tree shared across targets; tree reads and diffs at a fixed
// commit are concurrent-safe and run without the lock.
type Store struct {
	Dir        string // working tree root
	Remote     string // remote name, e.g. "origin"
	Branch     string // default branch, e.g. "main"
	AuthorName string
	AuthorMail string

	mu sync.Mutex
}

// New constructs a Store rooted at dir.
func New(dir, remote, branch string) *Store {
	return &Store{Dir: dir, Remote: remote, Branch: branch}
}

func (s *Store) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", s.Dir}, args...)...) // #nosec G204 - args are engine-controlled
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(errBuf.String()))
	}
	return out.String(), nil
}

// IsEmpty reports whether the repository has no HEAD commit yet.
func (s *Store) IsEmpty(ctx context.Context) (bool, error) {
	_, err := s.run(ctx, "rev-parse", "--verify", "HEAD")
	if err != nil {
		return true, nil
	}
	return false, nil
}

// IsHead reports whether commitish resolves to the current HEAD.
func (s *Store) IsHead(ctx context.Context, commitish string) (bool, error) {
	head, err := s.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return false, dsyncerr.Wrap(dsyncerr.KindRepoIO, err, "resolving HEAD")
	}
	target, err := s.run(ctx, "rev-parse", commitish)
	if err != nil {
		return false, dsyncerr.Wrap(dsyncerr.KindRepoIO, err, "resolving %q", commitish)
	}
	return strings.TrimSpace(head) == strings.TrimSpace(target), nil
}

// TagExists reports whether a lightweight tag named name exists.
func (s *Store) TagExists(ctx context.Context, name string) (bool, error) {
	_, err := s.run(ctx, "rev-parse", "--verify", "--quiet", "refs/tags/"+name)
	return err == nil, nil
}

// ReadFile reads path as it existed at commitish. found is false when
// the path does not exist at that commit.
func (s *Store) ReadFile(ctx context.Context, commitish, path string) ([]byte, bool, error) {
	out, err := s.run(ctx, "show", commitish+":"+path)
	if err != nil {
		return nil, false, nil
	}
	return []byte(out), true, nil
}

// ReadTree reads every blob under folder at commitish, keyed by its
// path relative to the repository root (not to folder).
func (s *Store) ReadTree(ctx context.Context, commitish, folder string) (map[string][]byte, error) {
	listing, err := s.run(ctx, "ls-tree", "-r", "--name-only", commitish, "--", folder)
	if err != nil {
		return nil, dsyncerr.Wrap(dsyncerr.KindRepoIO, err, "listing tree %q at %q", folder, commitish)
	}
	result := map[string][]byte{}
	for _, line := range strings.Split(listing, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		content, found, err := s.ReadFile(ctx, commitish, line)
		if err != nil {
			return nil, err
		}
		if found {
			result[line] = content
		}
	}
	return result, nil
}

// Diff reports path-level changes between two commitishes, restricted
// to pathFilters when non-empty.
func (s *Store) Diff(ctx context.Context, fromCommitish, toCommitish string, pathFilters []string) ([]reposerv.DiffEntry, error) {
	args := []string{"diff", "--name-status", "-M", "-C", fromCommitish, toCommitish}
	if len(pathFilters) > 0 {
		args = append(args, "--")
		args = append(args, pathFilters...)
	}
	out, err := s.run(ctx, args...)
	if err != nil {
		return nil, dsyncerr.Wrap(dsyncerr.KindRepoIO, err, "diffing %q..%q", fromCommitish, toCommitish)
	}
	var entries []reposerv.DiffEntry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		status := fields[0]
		entry := reposerv.DiffEntry{}
		switch {
		case strings.HasPrefix(status, "A"):
			entry.ChangeType = reposerv.ChangeAdd
			entry.NewPath = fields[1]
		case strings.HasPrefix(status, "D"):
			entry.ChangeType = reposerv.ChangeDelete
			entry.OldPath = fields[1]
		case strings.HasPrefix(status, "M"):
			entry.ChangeType = reposerv.ChangeModify
			entry.OldPath, entry.NewPath = fields[1], fields[1]
		case strings.HasPrefix(status, "R"):
			entry.ChangeType = reposerv.ChangeRename
			if len(fields) >= 3 {
				entry.OldPath, entry.NewPath = fields[1], fields[2]
			}
		case strings.HasPrefix(status, "C"):
			entry.ChangeType = reposerv.ChangeCopy
			if len(fields) >= 3 {
				entry.OldPath, entry.NewPath = fields[1], fields[2]
			}
		default:
			continue
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return pathOf(entries[i]) < pathOf(entries[j])
	})
	return entries, nil
}

func pathOf(e reposerv.DiffEntry) string {
	if e.NewPath != "" {
		return e.NewPath
	}
	return e.OldPath
}

// CommitAndPush writes changes to the working tree, stages, commits,
// tags, and pushes. It serializes against other mutating calls on the
// same Store.
func (s *Store) CommitAndPush(ctx context.Context, changes []reposerv.FileChange, message, targetRef string, tags []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range changes {
		full := filepath.Join(s.Dir, filepath.FromSlash(c.Path))
		if c.Bytes == nil {
			if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
				return "", dsyncerr.Wrap(dsyncerr.KindRepoIO, err, "removing %q", c.Path)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return "", dsyncerr.Wrap(dsyncerr.KindRepoIO, err, "creating parent dir for %q", c.Path)
		}
		if err := os.WriteFile(full, c.Bytes, 0o644); err != nil {
			return "", dsyncerr.Wrap(dsyncerr.KindRepoIO, err, "writing %q", c.Path)
		}
	}

	if _, err := s.run(ctx, "add", "-A"); err != nil {
		return "", dsyncerr.Wrap(dsyncerr.KindRepoIO, err, "staging changes")
	}
	if _, err := s.run(ctx, "commit", "-m", message); err != nil {
		return "", dsyncerr.Wrap(dsyncerr.KindRepoIO, err, "committing")
	}
	commitID, err := s.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", dsyncerr.Wrap(dsyncerr.KindRepoIO, err, "resolving new commit")
	}
	commitID = strings.TrimSpace(commitID)

	for _, tag := range tags {
		if _, err := s.run(ctx, "tag", "-f", tag, commitID); err != nil {
			return "", dsyncerr.Wrap(dsyncerr.KindRepoIO, err, "tagging %q", tag)
		}
	}

	pushArgs := []string{"push", s.Remote, targetRef}
	if _, err := s.run(ctx, pushArgs...); err != nil {
		return "", dsyncerr.Wrap(dsyncerr.KindRepoIO, err, "pushing %q", targetRef)
	}
	for _, tag := range tags {
		if _, err := s.run(ctx, "push", "-f", s.Remote, "refs/tags/"+tag); err != nil {
			return "", dsyncerr.Wrap(dsyncerr.KindRepoIO, err, "pushing tag %q", tag)
		}
	}
	return commitID, nil
}

// MoveTagAndPush retargets tag to commitish and force-pushes it.
func (s *Store) MoveTagAndPush(ctx context.Context, tag, commitish string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.run(ctx, "tag", "-f", tag, commitish); err != nil {
		return dsyncerr.Wrap(dsyncerr.KindRepoIO, err, "moving tag %q", tag)
	}
	if _, err := s.run(ctx, "push", "-f", s.Remote, "refs/tags/"+tag); err != nil {
		return dsyncerr.Wrap(dsyncerr.KindRepoIO, err, "pushing tag %q", tag)
	}
	return nil
}

// Fetch pulls remote refs so the local repo reflects upstream, used
// by the orchestrator before computing an overlay delta.
func (s *Store) Fetch(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.run(ctx, "fetch", s.Remote); err != nil {
		return dsyncerr.Wrap(dsyncerr.KindRepoIO, err, "fetching %q", s.Remote)
	}
	return nil
}
