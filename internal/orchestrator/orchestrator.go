// Package orchestrator implements the Sync Orchestrator: the three
// top-level operations initRepo, syncDbToRepo, and syncRepoToDb, each
// binding a current-database context per call and, for syncRepoToDb,
// fanning out across targets with a bounded worker pool.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dbascode/dbsync/internal/dsyncerr"
	"github.com/dbascode/dbsync/internal/ignorefile"
	"github.com/dbascode/dbsync/internal/objects"
	"github.com/dbascode/dbsync/internal/objpath"
	"github.com/dbascode/dbsync/internal/reposerv"
	"github.com/dbascode/dbsync/internal/resolver"
)

// DatabaseService is the narrow slice of the Database Service contract
// (§6) the orchestrator depends on.
type DatabaseService interface {
	ListObjects(ctx context.Context, dbName string) ([]objects.Object, error)
	ApplyChanges(ctx context.Context, dbName string, changes []objects.Object) error
}

// Status is one of the fan-out result buckets of §5.
type Status string

const (
	StatusSynced              Status = "SYNCED"
	StatusSuccessDryRun       Status = "SUCCESS_DRY_RUN"
	StatusSkippedNotOnboarded Status = "SKIPPED_NOT_ONBOARDED"
	StatusSkippedOutOfSync    Status = "SKIPPED_OUT_OF_SYNC"
	StatusFailed              Status = "FAILED"
)

// SyncResult is the per-target outcome of a syncRepoToDb fan-out.
// RunID correlates every result from the same SyncRepoToDb call across
// the structured logs each target goroutine emits.
type SyncResult struct {
	DBName  string
	Status  Status
	Message string
	RunID   string
}

// Orchestrator wires the Repository Store, Database Service, and
// Three-Way Resolver together per §4.8.
type Orchestrator struct {
	Store          reposerv.Store
	DB             DatabaseService
	Matcher        *ignorefile.Matcher
	DefaultSchema  string
	DiffPrefix     string
	DefaultBranch  string
	MaxConcurrency int
	Logger         *slog.Logger
}

// New builds an Orchestrator with sane defaults for branch and
// concurrency when left zero.
func New(store reposerv.Store, db DatabaseService, matcher *ignorefile.Matcher, defaultSchema, diffPrefix string) *Orchestrator {
	if matcher == nil {
		matcher = ignorefile.New(nil)
	}
	return &Orchestrator{
		Store:          store,
		DB:             db,
		Matcher:        matcher,
		DefaultSchema:  defaultSchema,
		DiffPrefix:     diffPrefix,
		DefaultBranch:  "main",
		MaxConcurrency: 8,
		Logger:         slog.Default(),
	}
}

// InitRepo implements §4.8's initRepo: the repository must be empty;
// the full object set of dbName becomes the first commit on the
// default branch, tagged dbName.
func (o *Orchestrator) InitRepo(ctx context.Context, dbName string) (string, error) {
	empty, err := o.Store.IsEmpty(ctx)
	if err != nil {
		return "", err
	}
	if !empty {
		return "", dsyncerr.New(dsyncerr.KindRepoNotEmpty, "repository already has a HEAD commit")
	}

	objs, err := o.DB.ListObjects(ctx, dbName)
	if err != nil {
		return "", err
	}
	if len(objs) == 0 {
		return "", dsyncerr.New(dsyncerr.KindNoObjects, "database %s has no managed objects", dbName)
	}

	var changes []reposerv.FileChange
	for _, obj := range objs {
		path := objpath.BasePath(obj.Key())
		if !o.Matcher.ShouldProcess(path) {
			continue
		}
		changes = append(changes, reposerv.FileChange{Path: path, Bytes: []byte(obj.DefString())})
	}

	targetRef := "refs/heads/" + o.DefaultBranch
	message := fmt.Sprintf("Repo initialized with DB: %s", dbName)
	if _, err := o.Store.CommitAndPush(ctx, changes, message, targetRef, []string{strings.ToLower(dbName)}); err != nil {
		return "", err
	}
	return fmt.Sprintf("Repository initialized from %s with %d object(s)", dbName, len(changes)), nil
}

// SyncDbToRepo implements §4.8's syncDbToRepo: the overlay delta
// between the live database and either HEAD (not yet onboarded) or
// the database's tag is computed and, unless dryRun or empty,
// committed and pushed.
func (o *Orchestrator) SyncDbToRepo(ctx context.Context, dbName string, dryRun bool) (string, error) {
	if f, ok := o.Store.(interface{ Fetch(context.Context) error }); ok {
		if err := f.Fetch(ctx); err != nil {
			return "", dsyncerr.Wrap(dsyncerr.KindRepoIO, err, "fetching remote")
		}
	}

	onboarded, err := o.Store.TagExists(ctx, strings.ToLower(dbName))
	if err != nil {
		return "", err
	}
	baseRef := "HEAD"
	if onboarded {
		baseRef = strings.ToLower(dbName)
	}

	objs, err := o.DB.ListObjects(ctx, dbName)
	if err != nil {
		return "", err
	}

	res := resolver.New(o.Store, o.Matcher, o.DefaultSchema, o.DiffPrefix)
	deltas, err := res.ResolveOverlayDelta(ctx, baseRef, dbName, objs, "")
	if err != nil {
		return "", err
	}

	if dryRun || len(deltas) == 0 {
		return describeDelta(dbName, deltas), nil
	}

	var changes []reposerv.FileChange
	for _, d := range deltas {
		var bytes []byte
		if d.Content != nil {
			bytes = []byte(*d.Content)
		}
		changes = append(changes, reposerv.FileChange{Path: d.Path, Bytes: bytes})
	}

	var tags []string
	if !onboarded {
		tags = []string{strings.ToLower(dbName)}
	}
	targetRef := "refs/heads/" + o.DefaultBranch
	message := fmt.Sprintf("Repo synced with DB: %s", dbName)
	if _, err := o.Store.CommitAndPush(ctx, changes, message, targetRef, tags); err != nil {
		return "", err
	}
	return describeDelta(dbName, deltas), nil
}

func describeDelta(dbName string, deltas []resolver.RepoChange) string {
	if len(deltas) == 0 {
		return fmt.Sprintf("%s is already in sync with the repository", dbName)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d overlay change(s) for %s:\n", len(deltas), dbName)
	for _, d := range deltas {
		switch {
		case d.Content == nil:
			fmt.Fprintf(&sb, "  delete %s\n", d.Path)
		case *d.Content == "":
			fmt.Fprintf(&sb, "  tombstone %s\n", d.Path)
		default:
			fmt.Fprintf(&sb, "  write %s\n", d.Path)
		}
	}
	return sb.String()
}

// SyncRepoToDbRequest is the input to SyncRepoToDb.
type SyncRepoToDbRequest struct {
	Commitish string
	DBNames   []string
	DryRun    bool
	Force     bool
}

// SyncRepoToDb implements §4.8's syncRepoToDb: each database is
// processed by its own task in a bounded worker pool. All tasks share
// ctx, so cancelling it cancels every target; a per-target failure
// never aborts its peers.
func (o *Orchestrator) SyncRepoToDb(ctx context.Context, req SyncRepoToDbRequest) ([]SyncResult, error) {
	dryRun := req.DryRun
	isHead, err := o.Store.IsHead(ctx, req.Commitish)
	if err != nil {
		return nil, err
	}
	if !isHead && !req.Force {
		dryRun = true
	}

	runID := uuid.NewString()
	o.Logger.Info("sync run starting", "run_id", runID, "commitish", req.Commitish, "targets", len(req.DBNames))

	results := make([]SyncResult, len(req.DBNames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInt(o.MaxConcurrency, 1))

	for i, name := range req.DBNames {
		i, name := i, name
		g.Go(func() error {
			results[i] = o.syncOneTarget(gctx, name, req.Commitish, runID, dryRun, req.Force)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (o *Orchestrator) syncOneTarget(ctx context.Context, dbName, commitish, runID string, dryRun, force bool) SyncResult {
	r := o.syncOneTargetInner(ctx, dbName, commitish, runID, dryRun, force)
	r.RunID = runID
	return r
}

func (o *Orchestrator) syncOneTargetInner(ctx context.Context, dbName, commitish, runID string, dryRun, force bool) SyncResult {
	logger := o.Logger.With("db", dbName, "commitish", commitish, "run_id", runID)

	onboarded, err := o.Store.TagExists(ctx, strings.ToLower(dbName))
	if err != nil {
		return SyncResult{DBName: dbName, Status: StatusFailed, Message: err.Error()}
	}
	if !onboarded {
		return SyncResult{DBName: dbName, Status: StatusSkippedNotOnboarded, Message: "no tag for this database"}
	}

	tag := strings.ToLower(dbName)

	if !force {
		objs, err := o.DB.ListObjects(ctx, dbName)
		if err != nil {
			return SyncResult{DBName: dbName, Status: StatusFailed, Message: err.Error()}
		}
		res := resolver.New(o.Store, o.Matcher, o.DefaultSchema, o.DiffPrefix)
		deltas, err := res.ResolveOverlayDelta(ctx, tag, dbName, objs, "")
		if err != nil {
			return SyncResult{DBName: dbName, Status: StatusFailed, Message: err.Error()}
		}
		if len(deltas) > 0 {
			return SyncResult{DBName: dbName, Status: StatusSkippedOutOfSync, Message: describeDelta(dbName, deltas)}
		}
	}

	diffFolder := "diff/" + o.DiffPrefix + "/" + tag
	entries, err := o.Store.Diff(ctx, tag, commitish, []string{"base", diffFolder})
	if err != nil {
		return SyncResult{DBName: dbName, Status: StatusFailed, Message: err.Error()}
	}

	changes, err := o.translateDiff(ctx, dbName, commitish, entries)
	if err != nil {
		return SyncResult{DBName: dbName, Status: StatusFailed, Message: err.Error()}
	}
	if len(changes) == 0 {
		logger.Debug("no translated changes, nothing to apply")
		return SyncResult{DBName: dbName, Status: StatusSynced, Message: "no changes"}
	}

	ordered, err := SortForApply(changes)
	if err != nil {
		return SyncResult{DBName: dbName, Status: StatusFailed, Message: err.Error()}
	}

	if dryRun {
		return SyncResult{DBName: dbName, Status: StatusSuccessDryRun, Message: fmt.Sprintf("%d object(s) would be applied", len(ordered))}
	}

	if err := o.DB.ApplyChanges(ctx, dbName, ordered); err != nil {
		return SyncResult{DBName: dbName, Status: StatusFailed, Message: err.Error()}
	}

	if err := o.Store.MoveTagAndPush(ctx, tag, commitish); err != nil {
		return SyncResult{DBName: dbName, Status: StatusFailed, Message: fmt.Sprintf("applied but failed to move tag: %v", err)}
	}

	return SyncResult{DBName: dbName, Status: StatusSynced, Message: fmt.Sprintf("%d object(s) applied", len(ordered))}
}

// translateDiff turns repository DiffEntry records between tag and
// commitish into the Object list to apply, per §4.8 step 3.
func (o *Orchestrator) translateDiff(ctx context.Context, dbName, commitish string, entries []reposerv.DiffEntry) ([]objects.Object, error) {
	diffFolder := "diff/" + o.DiffPrefix + "/" + strings.ToLower(dbName) + "/"

	var out []objects.Object
	for _, e := range entries {
		path := e.NewPath
		if path == "" {
			path = e.OldPath
		}
		k, ok := objpath.KeyFromRepoPath(path)
		if !ok {
			continue
		}
		isOverlay := strings.HasPrefix(path, diffFolder)

		switch e.ChangeType {
		case reposerv.ChangeDelete:
			if isOverlay {
				// overlay removed: fall back to base content at commitish.
				content, found, err := o.Store.ReadFile(ctx, commitish, objpath.BasePath(k))
				if err != nil {
					return nil, err
				}
				if !found {
					out = append(out, objects.Object{Schema: k.Schema, Name: k.Name, Type: k.Type, Definition: nil})
					continue
				}
				s := string(content)
				out = append(out, objects.Object{Schema: k.Schema, Name: k.Name, Type: k.Type, Definition: &s})
				continue
			}
			// base removed, and no overlay entry for this key at commitish:
			if hasOverlayAt(ctx, o.Store, commitish, diffFolder, k) {
				continue
			}
			out = append(out, objects.Object{Schema: k.Schema, Name: k.Name, Type: k.Type, Definition: nil})
		default:
			content, found, err := o.Store.ReadFile(ctx, commitish, path)
			if err != nil {
				return nil, err
			}
			if !found {
				continue
			}
			if !isOverlay && hasOverlayAt(ctx, o.Store, commitish, diffFolder, k) {
				continue // overlay takes precedence; its own diff entry (if any) is handled separately
			}
			if isOverlay && len(content) == 0 {
				// zero-byte overlay: a tombstone recording a deliberate
				// deletion, not a definition that happens to be empty.
				out = append(out, objects.Object{Schema: k.Schema, Name: k.Name, Type: k.Type, Definition: nil})
				continue
			}
			s := string(content)
			out = append(out, objects.Object{Schema: k.Schema, Name: k.Name, Type: k.Type, Definition: &s})
		}
	}
	return dedupeByKey(out), nil
}

func hasOverlayAt(ctx context.Context, store reposerv.Store, commitish, diffFolder string, k objects.Key) bool {
	path := diffFolder + string(k.Type) + "/" + k.Schema + "/" + k.Name + ".sql"
	_, found, err := store.ReadFile(ctx, commitish, path)
	return err == nil && found
}

// dedupeByKey keeps the last entry per key, since translateDiff may
// emit both a base-fallback and overlay entry for the same object
// across separate DiffEntry rows.
func dedupeByKey(in []objects.Object) []objects.Object {
	last := map[objects.Key]int{}
	for i, o := range in {
		last[o.Key()] = i
	}
	keys := make([]objects.Key, 0, len(last))
	for k := range last {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	out := make([]objects.Object, 0, len(keys))
	for _, k := range keys {
		out = append(out, in[last[k]])
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
