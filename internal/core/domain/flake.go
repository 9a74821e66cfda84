package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
)

// Tree is a materialized source tree.
type Tree struct {
	// ActualPath is the directory the tree can be read from.
	ActualPath string
	// StorePath is the content-addressed location of the tree in the store.
	StorePath string
	// NarHash is the SRI content hash of the tree.
	NarHash string
}

// Flake is a loaded manifest.
type Flake struct {
	OriginalRef Ref
	ResolvedRef Ref
	LockedRef   Ref
	Tree        *Tree
	Description *string
	Inputs      *Inputs
	// Outputs is the opaque outputs function. It is never applied during locking.
	Outputs Value
}

// Dir returns the directory holding the manifest inside the fetched tree.
func (f *Flake) Dir() string {
	return joinSubdir(f.Tree.ActualPath, f.LockedRef.Subdir)
}

// LockedFlake is a manifest together with its fully resolved lock graph.
type LockedFlake struct {
	Flake    *Flake
	LockFile *LockFile
	// TouchedPaths are the store paths fetched while resolving, sorted.
	TouchedPaths []string
}

// Fingerprint derives a cache key from the root tree and the lock graph. It is the
// hex sha256 of "storePath;revCount;lastModified;lockfile".
func (lf *LockedFlake) Fingerprint() string {
	var storePath string
	if lf.Flake.Tree != nil {
		storePath = lf.Flake.Tree.StorePath
	}
	locked := lf.Flake.LockedRef
	sum := sha256.Sum256(fmt.Appendf(nil, "%s;%d;%d;%s",
		storePath, locked.RevCount(), locked.LastModified(), lf.LockFile.String()))
	return hex.EncodeToString(sum[:])
}

// InputOverride replaces the reference of the input at Path.
type InputOverride struct {
	Path InputPath
	Ref  Ref
}

// LockFlags is the resolution policy supplied by the caller.
type LockFlags struct {
	// UpdateLockFile allows changes to the lock file.
	UpdateLockFile bool
	// UseRegistries allows indirect references to be resolved.
	UseRegistries bool
	// AllowMutable allows locking inputs whose reference is not immutable.
	AllowMutable bool
	// InputOverrides replace the reference of the named inputs.
	InputOverrides []InputOverride
	// InputUpdates force the named inputs to be fetched again.
	InputUpdates []InputPath
	// RecreateLockFile ignores the existing lock file.
	RecreateLockFile bool
	// WriteLockFile writes the lock file when it changed.
	WriteLockFile bool
	// CommitLockFile commits the written lock file.
	CommitLockFile bool
}

// DefaultLockFlags returns the policy of a plain lock invocation.
func DefaultLockFlags() LockFlags {
	return LockFlags{
		UpdateLockFile: true,
		UseRegistries:  true,
		AllowMutable:   true,
		WriteLockFile:  true,
	}
}

// IsUpdated reports whether path is named by an input update.
func (f LockFlags) IsUpdated(path InputPath) bool {
	return slices.ContainsFunc(f.InputUpdates, path.Equal)
}

// HasChildUpdate reports whether an input update names an input strictly below path.
func (f LockFlags) HasChildUpdate(path InputPath) bool {
	return slices.ContainsFunc(f.InputUpdates, func(u InputPath) bool {
		return len(u) > len(path) && u.HasPrefix(path)
	})
}
