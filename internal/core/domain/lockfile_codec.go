package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"go.trai.ch/zerr"
)

const rootNodeKey = "root"

type lockFileJSON struct {
	Nodes   map[string]*nodeJSON `json:"nodes"`
	Root    string               `json:"root"`
	Version int                  `json:"version"`
}

// Fields are declared in alphabetical order so the encoded keys are sorted.
type nodeJSON struct {
	Flake    *bool               `json:"flake,omitempty"`
	Inputs   map[string]edgeJSON `json:"inputs,omitempty"`
	Locked   Attrs               `json:"locked,omitempty"`
	Original Attrs               `json:"original,omitempty"`
}

// edgeJSON is either a node key or a follows path.
type edgeJSON struct {
	key     string
	follows []string
}

func (e edgeJSON) MarshalJSON() ([]byte, error) {
	if e.follows != nil {
		return json.Marshal(e.follows)
	}
	return json.Marshal(e.key)
}

func (e *edgeJSON) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		var path []string
		if err := json.Unmarshal(data, &path); err != nil {
			return err
		}
		if path == nil {
			path = []string{}
		}
		e.follows = path
		return nil
	}
	return json.Unmarshal(data, &e.key)
}

// MarshalJSON encodes the lock file in the version 5 layout.
func (lf *LockFile) MarshalJSON() ([]byte, error) {
	enc := &lockEncoder{
		nodes: make(map[string]*nodeJSON),
		used:  make(map[string]bool),
	}
	enc.dump(rootNodeKey, lf.Root, nil)

	return json.Marshal(lockFileJSON{
		Nodes:   enc.nodes,
		Root:    rootNodeKey,
		Version: lf.Version,
	})
}

type lockEncoder struct {
	nodes map[string]*nodeJSON
	used  map[string]bool
}

// dump assigns key (suffixed on collision) to the node and returns it. Children are
// visited in sorted id order so key assignment is deterministic.
func (e *lockEncoder) dump(key string, n *Node, locked *LockedNode) string {
	if e.used[key] {
		for i := 2; ; i++ {
			candidate := key + "_" + strconv.Itoa(i)
			if !e.used[candidate] {
				key = candidate
				break
			}
		}
	}
	e.used[key] = true

	out := &nodeJSON{}
	e.nodes[key] = out

	if len(n.Inputs) > 0 {
		out.Inputs = make(map[string]edgeJSON, len(n.Inputs))
		for _, id := range n.InputIDs() {
			switch edge := n.Inputs[id].(type) {
			case *LockedNode:
				out.Inputs[id] = edgeJSON{key: e.dump(id, &edge.Node, edge)}
			case FollowsEdge:
				out.Inputs[id] = edgeJSON{follows: append([]string{}, edge.Path...)}
			}
		}
	}

	if locked != nil {
		out.Locked = locked.Locked.ToAttrs()
		out.Original = locked.Original.ToAttrs()
		if !locked.IsFlake {
			f := false
			out.Flake = &f
		}
	}
	return key
}

// UnmarshalJSON decodes a version 5 lock file.
func (lf *LockFile) UnmarshalJSON(data []byte) error {
	var raw lockFileJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return zerr.Wrap(err, ErrLockFileParse.Error())
	}
	if raw.Version != LockFileVersion {
		return zerr.With(ErrUnsupportedLockVersion, "version", raw.Version)
	}

	rootKey := raw.Root
	if rootKey == "" {
		rootKey = rootNodeKey
	}
	rootJSON, ok := raw.Nodes[rootKey]
	if !ok {
		return zerr.With(ErrLockFileParse, "missing_node", rootKey)
	}

	dec := &lockDecoder{nodes: raw.Nodes, visiting: make(map[string]bool)}
	root := NewNode()
	if err := dec.fill(root, rootKey, rootJSON); err != nil {
		return err
	}

	lf.Version = raw.Version
	lf.Root = root
	return nil
}

type lockDecoder struct {
	nodes    map[string]*nodeJSON
	visiting map[string]bool
}

func (d *lockDecoder) fill(n *Node, key string, raw *nodeJSON) error {
	if d.visiting[key] {
		return zerr.With(zerr.With(ErrLockFileParse, "node", key), "reason", "cycle between node keys")
	}
	d.visiting[key] = true
	defer delete(d.visiting, key)

	for id, edge := range raw.Inputs {
		if edge.follows != nil {
			n.Inputs[id] = FollowsEdge{Path: InputPath(edge.follows)}
			continue
		}

		childJSON, ok := d.nodes[edge.key]
		if !ok || childJSON == nil {
			return zerr.With(zerr.With(ErrLockFileParse, "input", id), "missing_node", edge.key)
		}
		child, err := d.lockedNode(edge.key, childJSON)
		if err != nil {
			return err
		}
		n.Inputs[id] = child
	}
	return nil
}

func (d *lockDecoder) lockedNode(key string, raw *nodeJSON) (*LockedNode, error) {
	locked, err := RefFromAttrs(raw.Locked)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, ErrLockFileParse.Error()), "node", key)
	}
	original, err := RefFromAttrs(raw.Original)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, ErrLockFileParse.Error()), "node", key)
	}

	isFlake := true
	if raw.Flake != nil {
		isFlake = *raw.Flake
	}

	ln := NewLockedNode(locked, original, isFlake)
	if err := d.fill(&ln.Node, key, raw); err != nil {
		return nil, err
	}
	return ln, nil
}

// Encode returns the canonical text of the lock file: two-space indented JSON with
// sorted keys and a trailing newline.
func (lf *LockFile) Encode() ([]byte, error) {
	compact, err := json.Marshal(lf)
	if err != nil {
		return nil, err
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(compact))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// String returns the canonical text of the lock file.
func (lf *LockFile) String() string {
	data, err := lf.Encode()
	if err != nil {
		return ""
	}
	return string(data)
}

// ParseLockFile decodes lock file text.
func ParseLockFile(data []byte) (*LockFile, error) {
	lf := &LockFile{}
	if err := lf.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return lf, nil
}

// ReadLockFile loads the lock file at path. A missing file yields an empty lock file.
func ReadLockFile(path string) (*LockFile, error) {
	//nolint:gosec // path is a lock file inside a fetched tree
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewLockFile(), nil
	}
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, ErrLockFileParse.Error()), "path", path)
	}

	lf, err := ParseLockFile(data)
	if err != nil {
		return nil, zerr.With(err, "path", path)
	}
	return lf, nil
}

// WriteLockFile writes the canonical text of lf to path atomically.
func WriteLockFile(path string, lf *LockFile) error {
	data, err := lf.Encode()
	if err != nil {
		return zerr.With(zerr.Wrap(err, ErrLockWriteFailed.Error()), "path", path)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".pin-lock-*")
	if err != nil {
		return zerr.With(zerr.Wrap(err, ErrLockWriteFailed.Error()), "path", path)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return zerr.With(zerr.Wrap(err, ErrLockWriteFailed.Error()), "path", path)
	}
	if err := tmp.Close(); err != nil {
		return zerr.With(zerr.Wrap(err, ErrLockWriteFailed.Error()), "path", path)
	}
	if err := os.Chmod(tmpName, FilePerm); err != nil {
		return zerr.With(zerr.Wrap(err, ErrLockWriteFailed.Error()), "path", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return zerr.With(zerr.Wrap(err, ErrLockWriteFailed.Error()), "path", path)
	}
	return nil
}
