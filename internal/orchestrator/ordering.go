package orchestrator

import (
	"regexp"

	"github.com/dbascode/dbsync/internal/dsyncerr"
	"github.com/dbascode/dbsync/internal/objects"
)

var fkReferenceRe = regexp.MustCompile(`(?i)references\s+\[?(\w+)\]?\.\[?(\w+)\]?`)

// SortForApply orders changes per §4.8: SCALAR_TYPE, TABLE_TYPE,
// SEQUENCE, SYNONYM, TABLE (FK-topological), FUNCTION, PROCEDURE, VIEW
// (definition-dependency-topological), TRIGGER. A dependency cycle
// within TABLE or VIEW is a fatal DEPENDENCY_CYCLE.
func SortForApply(changes []objects.Object) ([]objects.Object, error) {
	buckets := map[objects.Type][]objects.Object{}
	for _, c := range changes {
		buckets[c.Type] = append(buckets[c.Type], c)
	}

	var out []objects.Object
	for _, t := range objects.AllTypes {
		bucket := buckets[t]
		if len(bucket) == 0 {
			continue
		}
		switch t {
		case objects.TypeTable:
			sorted, err := topoSort(bucket, tableDeps)
			if err != nil {
				return nil, err
			}
			out = append(out, sorted...)
		case objects.TypeView:
			sorted, err := topoSort(bucket, viewDeps(bucket))
			if err != nil {
				return nil, err
			}
			out = append(out, sorted...)
		default:
			out = append(out, bucket...)
		}
	}
	return out, nil
}

// depFunc returns the keys (within the same bucket) that o depends on
// and so must be applied before o.
type depFunc func(o objects.Object, bucket []objects.Object) []objects.Key

func tableDeps(o objects.Object, bucket []objects.Object) []objects.Key {
	if o.Definition == nil {
		return nil
	}
	present := map[objects.Key]bool{}
	for _, c := range bucket {
		present[c.Key()] = true
	}
	var deps []objects.Key
	for _, m := range fkReferenceRe.FindAllStringSubmatch(*o.Definition, -1) {
		k := objects.NewKey(objects.TypeTable, m[1], m[2])
		if k != o.Key() && present[k] {
			deps = append(deps, k)
		}
	}
	return deps
}

// viewDeps returns a depFunc that treats any other view in the bucket
// whose schema.name appears as a bracketed reference in o's
// definition as a dependency, a best-effort proxy for view-on-view
// stacking since the stored DDL carries no formal dependency catalog
// entry for this engine to read independent of SQL Server itself.
func viewDeps(bucket []objects.Object) depFunc {
	refRe := map[objects.Key]*regexp.Regexp{}
	for _, c := range bucket {
		pattern := `(?i)\[?` + regexp.QuoteMeta(c.Schema) + `\]?\.\[?` + regexp.QuoteMeta(c.Name) + `\]?`
		refRe[c.Key()] = regexp.MustCompile(pattern)
	}
	return func(o objects.Object, bucket []objects.Object) []objects.Key {
		if o.Definition == nil {
			return nil
		}
		var deps []objects.Key
		for _, c := range bucket {
			if c.Key() == o.Key() {
				continue
			}
			if refRe[c.Key()].MatchString(*o.Definition) {
				deps = append(deps, c.Key())
			}
		}
		return deps
	}
}

// topoSort runs Kahn's algorithm over bucket using depFn to build the
// dependency edges, returning DEPENDENCY_CYCLE when no topological
// order exists. Ties are broken by input order for determinism.
func topoSort(bucket []objects.Object, depFn depFunc) ([]objects.Object, error) {
	byKey := map[objects.Key]objects.Object{}
	order := map[objects.Key]int{}
	for i, o := range bucket {
		byKey[o.Key()] = o
		order[o.Key()] = i
	}

	deps := map[objects.Key][]objects.Key{}
	indegree := map[objects.Key]int{}
	for _, o := range bucket {
		indegree[o.Key()] = 0
	}
	for _, o := range bucket {
		for _, d := range depFn(o, bucket) {
			deps[o.Key()] = append(deps[o.Key()], d)
			indegree[o.Key()]++
		}
	}

	var ready []objects.Key
	for _, o := range bucket {
		if indegree[o.Key()] == 0 {
			ready = append(ready, o.Key())
		}
	}

	var out []objects.Object
	visited := map[objects.Key]bool{}
	for len(ready) > 0 {
		// stable pick: lowest original input index among ready keys
		bestIdx := -1
		var best objects.Key
		for _, k := range ready {
			if bestIdx == -1 || order[k] < bestIdx {
				bestIdx = order[k]
				best = k
			}
		}
		newReady := ready[:0]
		for _, k := range ready {
			if k != best {
				newReady = append(newReady, k)
			}
		}
		ready = newReady

		out = append(out, byKey[best])
		visited[best] = true

		for _, o := range bucket {
			if visited[o.Key()] {
				continue
			}
			stillBlocked := false
			for _, d := range deps[o.Key()] {
				if !visited[d] {
					stillBlocked = true
					break
				}
			}
			already := false
			for _, k := range ready {
				if k == o.Key() {
					already = true
					break
				}
			}
			if !stillBlocked && !already {
				ready = append(ready, o.Key())
			}
		}
	}

	if len(out) != len(bucket) {
		return nil, dsyncerr.New(dsyncerr.KindDependencyCycle, "dependency cycle detected among %d object(s)", len(bucket)-len(out))
	}
	return out, nil
}
