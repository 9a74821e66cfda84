package domain

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// DiffLockFiles describes the input changes between two lock files, one entry per
// added, removed or updated input path, sorted by path.
func DiffLockFiles(old, cur *LockFile) string {
	before := flattenLockFile(old)
	after := flattenLockFile(cur)

	keys := make(map[string]InputPath, len(before)+len(after))
	for k, e := range before {
		keys[k] = e.path
	}
	for k, e := range after {
		keys[k] = e.path
	}

	paths := slices.SortedFunc(maps.Values(keys), CompareInputPaths)

	var entries []string
	for _, p := range paths {
		k := p.String()
		b, inBefore := before[k]
		a, inAfter := after[k]
		switch {
		case inAfter && !inBefore:
			entries = append(entries, fmt.Sprintf("• Added input '%s':\n    %s", k, a.desc))
		case inBefore && !inAfter:
			entries = append(entries, fmt.Sprintf("• Removed input '%s'", k))
		case a.desc != b.desc:
			entries = append(entries, fmt.Sprintf("• Updated input '%s':\n    %s\n  → %s", k, b.desc, a.desc))
		}
	}
	return strings.Join(entries, "\n")
}

type flatEdge struct {
	path InputPath
	desc string
}

func flattenLockFile(lf *LockFile) map[string]flatEdge {
	out := make(map[string]flatEdge)
	if lf == nil || lf.Root == nil {
		return out
	}
	lf.Walk(func(path InputPath, edge Edge) {
		out[path.String()] = flatEdge{path: path, desc: describeEdge(edge)}
	})
	return out
}

func describeEdge(edge Edge) string {
	switch e := edge.(type) {
	case *LockedNode:
		return "'" + e.Locked.String() + "'"
	case FollowsEdge:
		return "follows '" + e.Path.String() + "'"
	default:
		return ""
	}
}
