// Package resolver implements the Three-Way Resolver: it joins the
// live catalog, the base tree, and a database's diff overlay into a
// per-object view and computes the overlay mutations needed so the
// overlay-resolved view matches the live database.
package resolver

import (
	"context"
	"strings"

	"github.com/dbascode/dbsync/internal/ignorefile"
	"github.com/dbascode/dbsync/internal/objects"
	"github.com/dbascode/dbsync/internal/objpath"
	"github.com/dbascode/dbsync/internal/reposerv"
	"github.com/dbascode/dbsync/internal/sqlnorm"
)

// RepoChange is one mutation the resolver wants applied to the diff
// overlay. Content nil deletes the file; Content pointing at "" writes
// a tombstone; anything else creates or replaces the file.
type RepoChange struct {
	Path    string
	Content *string
}

// Resolver computes overlay deltas per §4.6.
type Resolver struct {
	Store         reposerv.Store
	Matcher       *ignorefile.Matcher
	DefaultSchema string
	DiffPrefix    string
}

// New builds a Resolver. matcher may be nil, meaning nothing is
// filtered.
func New(store reposerv.Store, matcher *ignorefile.Matcher, defaultSchema, diffPrefix string) *Resolver {
	if matcher == nil {
		matcher = ignorefile.New(nil)
	}
	return &Resolver{Store: store, Matcher: matcher, DefaultSchema: defaultSchema, DiffPrefix: diffPrefix}
}

// ResolveOverlayDelta builds the per-key FullObject map at commitish
// for dbName and returns the overlay mutations required to bring the
// diff overlay in line with liveObjects. When headCommitish is
// non-empty, an additional cross-check discards changes that would
// already match the corresponding file at HEAD (used when resolving
// against a stale tag rather than HEAD itself).
func (r *Resolver) ResolveOverlayDelta(ctx context.Context, commitish, dbName string, liveObjects []objects.Object, headCommitish string) ([]RepoChange, error) {
	byKey := map[objects.Key]*objects.FullObject{}

	get := func(k objects.Key) *objects.FullObject {
		fo, ok := byKey[k]
		if !ok {
			fo = &objects.FullObject{Key: k}
			byKey[k] = fo
		}
		return fo
	}

	for _, o := range liveObjects {
		get(o.Key()).DBDefinition = o.Definition
	}

	baseTree, err := r.Store.ReadTree(ctx, commitish, "base")
	if err != nil {
		return nil, err
	}
	for path, content := range baseTree {
		k, ok := objpath.KeyFromRepoPath(path)
		if !ok {
			continue
		}
		s := string(content)
		get(k).BaseDefinition = &s
	}

	diffFolder := "diff/" + r.DiffPrefix + "/" + strings.ToLower(dbName)
	diffTree, err := r.Store.ReadTree(ctx, commitish, diffFolder)
	if err != nil {
		return nil, err
	}
	for path, content := range diffTree {
		k, ok := objpath.KeyFromRepoPath(path)
		if !ok {
			continue
		}
		s := string(content)
		get(k).DiffDefinition = &s
	}

	var changes []RepoChange
	for k, fo := range byKey {
		change, ok := decide(fo, r.DefaultSchema)
		if !ok {
			continue
		}
		path := objpath.DiffPath(r.DiffPrefix, dbName, k)
		if !r.Matcher.ShouldProcess(path) {
			continue
		}
		if headCommitish != "" && r.matchesHead(ctx, headCommitish, diffFolder, path, k, change) {
			continue
		}
		changes = append(changes, RepoChange{Path: path, Content: change})
	}
	return changes, nil
}

// decide applies the per-key decision table of §4.6. The returned
// bool is false when no change is warranted.
func decide(fo *objects.FullObject, defaultSchema string) (*string, bool) {
	dbEqBase := sqlnorm.EquivalentWithSchema(fo.DBDefinition, fo.BaseDefinition, defaultSchema)

	if dbEqBase && fo.DiffDefinition != nil {
		return nil, true // delete the diff file
	}
	if fo.DBDefinition == nil && fo.DiffDefinition != nil && *fo.DiffDefinition != "" {
		empty := ""
		return &empty, true // tombstone
	}
	effective := fo.DiffDefinition
	if effective == nil {
		effective = fo.BaseDefinition
	}
	if fo.DBDefinition != nil && !sqlnorm.EquivalentWithSchema(fo.DBDefinition, effective, defaultSchema) {
		def := *fo.DBDefinition
		return &def, true
	}
	return nil, false
}

// matchesHead reports whether the proposed change is already
// reflected at headCommitish, either by the HEAD diff file (preferred)
// or, absent that, the HEAD base file for the same key.
func (r *Resolver) matchesHead(ctx context.Context, headCommitish, diffFolder, diffPath string, k objects.Key, change *string) bool {
	if headBytes, ok, err := r.Store.ReadFile(ctx, headCommitish, diffPath); err == nil && ok {
		s := string(headBytes)
		return equalContent(change, &s)
	}
	basePath := objpath.BasePath(k)
	if headBytes, ok, err := r.Store.ReadFile(ctx, headCommitish, basePath); err == nil && ok {
		s := string(headBytes)
		return equalContent(change, &s)
	}
	return change == nil
}

func equalContent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
