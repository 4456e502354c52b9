// Package objpath converts between object identity and repository
// path in both directions.
package objpath

import (
	"strings"

	"github.com/dbascode/dbsync/internal/dsyncerr"
	"github.com/dbascode/dbsync/internal/objects"
)

// ToObject validates path and extracts an Object from its last three
// segments: <TYPE>/<schema>/<name>.sql. definition is attached
// verbatim (nil means deletion, "" means a tombstone).
func ToObject(path string, definition *string) (objects.Object, error) {
	if !strings.HasSuffix(path, ".sql") {
		return objects.Object{}, dsyncerr.New(dsyncerr.KindInvalidFileType, "path %q does not end in .sql", path)
	}
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) < 3 {
		return objects.Object{}, dsyncerr.New(dsyncerr.KindInvalidPath, "path %q has fewer than 3 segments", path)
	}
	tail := segs[len(segs)-3:]
	typeSeg, schemaSeg, nameSeg := tail[0], tail[1], strings.TrimSuffix(tail[2], ".sql")
	if typeSeg == "" || schemaSeg == "" || nameSeg == "" {
		return objects.Object{}, dsyncerr.New(dsyncerr.KindInvalidPath, "path %q has an empty component", path)
	}
	t, ok := objects.ParseType(typeSeg)
	if !ok {
		return objects.Object{}, dsyncerr.New(dsyncerr.KindInvalidObjectType, "unknown object type %q in path %q", typeSeg, path)
	}
	return objects.Object{
		Type:       t,
		Schema:     strings.ToLower(schemaSeg),
		Name:       strings.ToLower(nameSeg),
		Definition: definition,
	}, nil
}

// FromObject builds the canonical repository path for o under root,
// e.g. "<root>/TABLE/dbo/users.sql".
func FromObject(o objects.Object, root string) string {
	root = strings.TrimSuffix(root, "/")
	return strings.Join([]string{root, string(o.Type), o.Schema, o.Name + ".sql"}, "/")
}

// BasePath builds the base/<TYPE>/<schema>/<name>.sql path for a key.
func BasePath(k objects.Key) string {
	return "base/" + string(k.Type) + "/" + k.Schema + "/" + k.Name + ".sql"
}

// DiffPath builds the diff/<prefix>/<dbName>/<TYPE>/<schema>/<name>.sql
// path for a key under the given overlay prefix and database name.
func DiffPath(prefix, dbName string, k objects.Key) string {
	return "diff/" + prefix + "/" + strings.ToLower(dbName) + "/" + string(k.Type) + "/" + k.Schema + "/" + k.Name + ".sql"
}

// KeyFromRepoPath derives a Key from a base/ or diff/ path by
// stripping the root prefix and the .sql suffix, used when building
// the three-way map.
func KeyFromRepoPath(path string) (objects.Key, bool) {
	if !strings.HasSuffix(path, ".sql") {
		return objects.Key{}, false
	}
	segs := strings.Split(path, "/")
	if len(segs) < 3 {
		return objects.Key{}, false
	}
	tail := segs[len(segs)-3:]
	t, ok := objects.ParseType(tail[0])
	if !ok {
		return objects.Key{}, false
	}
	name := strings.TrimSuffix(tail[2], ".sql")
	return objects.NewKey(t, tail[1], name), true
}
