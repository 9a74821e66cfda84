package domain

import (
	"maps"
	"slices"
	"strings"
)

// Override replaces the reference or the follows target of an input somewhere below
// the manifest that declares it.
type Override struct {
	Ref       *Ref
	Follows   InputPath
	Absolute  bool
	Overrides OverrideTree
}

// OverrideTree maps input ids to overrides, nested along input paths. Entries are
// consumed as resolution descends, so whatever is left afterwards was never used.
type OverrideTree map[string]*Override

// Set places an override for the input at path, creating intermediate entries.
func (t OverrideTree) Set(path InputPath, ref Ref) {
	if len(path) == 0 {
		return
	}
	node := t.child(path[0])
	for _, id := range path[1:] {
		node = node.Overrides.child(id)
	}
	r := ref
	node.Ref = &r
}

func (t OverrideTree) child(id string) *Override {
	o, ok := t[id]
	if !ok {
		o = &Override{Overrides: OverrideTree{}}
		t[id] = o
	}
	if o.Overrides == nil {
		o.Overrides = OverrideTree{}
	}
	return o
}

// Merge moves every entry of incoming into t. Where both trees set the same input,
// incoming wins; incoming must not be used afterwards.
func (t OverrideTree) Merge(incoming OverrideTree) {
	for id, in := range incoming {
		cur, ok := t[id]
		if !ok {
			t[id] = in
			continue
		}
		if in.Ref != nil {
			cur.Ref = in.Ref
			cur.Follows = nil
		}
		if in.Follows != nil {
			cur.Follows = in.Follows
			cur.Absolute = in.Absolute
		}
		if cur.Overrides == nil {
			cur.Overrides = OverrideTree{}
		}
		cur.Overrides.Merge(in.Overrides)
	}
}

// Clone returns a deep copy of the tree.
func (t OverrideTree) Clone() OverrideTree {
	if t == nil {
		return nil
	}
	c := make(OverrideTree, len(t))
	for id, o := range t {
		cp := *o
		cp.Follows = slices.Clone(o.Follows)
		cp.Overrides = o.Overrides.Clone()
		c[id] = &cp
	}
	return c
}

// Extract removes and returns the override for id.
func (t OverrideTree) Extract(id string) (*Override, bool) {
	o, ok := t[id]
	if ok {
		delete(t, id)
	}
	return o, ok
}

// Anchor rewrites every relative follows target in the tree to be rooted at prefix.
func (t OverrideTree) Anchor(prefix InputPath) {
	for _, o := range t {
		if o.Follows != nil && !o.Absolute {
			o.Follows = prefix.Concat(o.Follows)
			o.Absolute = true
		}
		o.Overrides.Anchor(prefix)
	}
}

// Describe lists every override left in the tree, one "path=ref" or
// "path follows target" item each, in sorted order and comma separated.
func (t OverrideTree) Describe(prefix InputPath) string {
	var items []string
	t.describe(prefix, &items)
	slices.Sort(items)
	return strings.Join(items, ", ")
}

func (t OverrideTree) describe(prefix InputPath, items *[]string) {
	for _, id := range slices.Sorted(maps.Keys(t)) {
		o := t[id]
		path := prefix.Child(id)
		if o.Ref != nil {
			*items = append(*items, path.String()+"="+o.Ref.String())
		}
		if o.Follows != nil {
			*items = append(*items, path.String()+" follows "+o.Follows.String())
		}
		o.Overrides.describe(path, items)
	}
}
