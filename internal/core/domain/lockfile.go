package domain

import (
	"maps"
	"slices"

	"go.trai.ch/zerr"
)

// Edge is an entry of a node's input map: either a *LockedNode or a FollowsEdge.
type Edge interface {
	isEdge()
}

// FollowsEdge is an input that aliases the input at Path, rooted at the lock file root.
type FollowsEdge struct {
	Path InputPath
}

func (FollowsEdge) isEdge() {}

// Node is a vertex of the lock graph. The root is a bare Node; every other vertex is
// a LockedNode.
type Node struct {
	Inputs map[string]Edge
}

// NewNode creates a node without inputs.
func NewNode() *Node {
	return &Node{Inputs: make(map[string]Edge)}
}

// InputIDs returns the node's input ids in sorted order.
func (n *Node) InputIDs() []string {
	return slices.Sorted(maps.Keys(n.Inputs))
}

// LockedInput returns the locked child for id, if the input exists and is not a follows edge.
func (n *Node) LockedInput(id string) (*LockedNode, bool) {
	if n == nil {
		return nil, false
	}
	ln, ok := n.Inputs[id].(*LockedNode)
	return ln, ok
}

// LockedNode is a resolved input: where it was declared to come from and what it
// resolved to.
type LockedNode struct {
	Node
	Locked   Ref
	Original Ref
	IsFlake  bool
}

// NewLockedNode creates a locked node without inputs.
func NewLockedNode(locked, original Ref, isFlake bool) *LockedNode {
	return &LockedNode{
		Node:     Node{Inputs: make(map[string]Edge)},
		Locked:   locked,
		Original: original,
		IsFlake:  isFlake,
	}
}

func (*LockedNode) isEdge() {}

// LockFile is the persisted lock graph.
type LockFile struct {
	Version int
	Root    *Node
}

// NewLockFile creates an empty lock file of the current version.
func NewLockFile() *LockFile {
	return &LockFile{Version: LockFileVersion, Root: NewNode()}
}

// Equal reports whether both lock files have the same version and structure.
func (lf *LockFile) Equal(o *LockFile) bool {
	if lf == nil || o == nil {
		return lf == o
	}
	return lf.Version == o.Version && nodesEqual(lf.Root, o.Root)
}

func nodesEqual(a, b *Node) bool {
	if len(a.Inputs) != len(b.Inputs) {
		return false
	}
	for id, ea := range a.Inputs {
		eb, ok := b.Inputs[id]
		if !ok || !edgesEqual(ea, eb) {
			return false
		}
	}
	return true
}

func edgesEqual(a, b Edge) bool {
	switch ea := a.(type) {
	case FollowsEdge:
		eb, ok := b.(FollowsEdge)
		return ok && ea.Path.Equal(eb.Path)
	case *LockedNode:
		eb, ok := b.(*LockedNode)
		return ok &&
			ea.IsFlake == eb.IsFlake &&
			ea.Locked.Equal(eb.Locked) &&
			ea.Original.Equal(eb.Original) &&
			nodesEqual(&ea.Node, &eb.Node)
	default:
		return false
	}
}

// Walk visits every edge in the graph depth first, in sorted id order. fn receives
// the full input path of the edge.
func (lf *LockFile) Walk(fn func(path InputPath, edge Edge)) {
	walkNode(lf.Root, InputPath{}, fn)
}

func walkNode(n *Node, prefix InputPath, fn func(InputPath, Edge)) {
	for _, id := range n.InputIDs() {
		path := prefix.Child(id)
		edge := n.Inputs[id]
		fn(path, edge)
		if ln, ok := edge.(*LockedNode); ok {
			walkNode(&ln.Node, path, fn)
		}
	}
}

// Find resolves path to a node, following follows edges on the way. The empty path
// resolves to the root.
func (lf *LockFile) Find(path InputPath) (*Node, bool) {
	return lf.find(path, make(map[string]bool))
}

func (lf *LockFile) find(path InputPath, visiting map[string]bool) (*Node, bool) {
	key := path.String()
	if visiting[key] {
		return nil, false
	}
	visiting[key] = true
	defer delete(visiting, key)

	node := lf.Root
	for _, id := range path {
		switch e := node.Inputs[id].(type) {
		case *LockedNode:
			node = &e.Node
		case FollowsEdge:
			target, ok := lf.find(e.Path, visiting)
			if !ok {
				return nil, false
			}
			node = target
		default:
			return nil, false
		}
	}
	return node, true
}

// Check verifies that every follows edge resolves to an existing input.
func (lf *LockFile) Check() error {
	var err error
	lf.Walk(func(path InputPath, edge Edge) {
		if err != nil {
			return
		}
		f, ok := edge.(FollowsEdge)
		if !ok {
			return
		}
		if _, found := lf.Find(f.Path); !found {
			err = zerr.With(zerr.With(ErrDanglingFollows, "input", path.String()), "follows", f.Path.String())
		}
	})
	return err
}

// IsImmutable reports whether every locked node pins its content.
func (lf *LockFile) IsImmutable() bool {
	immutable := true
	lf.Walk(func(_ InputPath, edge Edge) {
		if ln, ok := edge.(*LockedNode); ok && !ln.Locked.IsImmutable() {
			immutable = false
		}
	})
	return immutable
}
