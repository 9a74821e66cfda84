package domain

import "path/filepath"

const (
	// PinDirName is the name of the per-user state directory.
	PinDirName = "pin"

	// StoreDirName is the name of the source tree store directory.
	StoreDirName = "store"

	// CacheDirName is the name of the cache directory.
	CacheDirName = "cache"

	// RegistryCacheDirName is the name of the registry document cache directory.
	RegistryCacheDirName = "registry"

	// FetchCacheFileName is the name of the persistent fetch cache database.
	FetchCacheFileName = "fetch.sqlite"

	// ConfigFileName is the name of the settings file.
	ConfigFileName = "config.yaml"

	// ManifestFileName is the name of the YAML manifest file.
	ManifestFileName = "pin.yaml"

	// CueManifestFileName is the name of the CUE manifest file.
	CueManifestFileName = "pin.cue"

	// LockFileName is the name of the lock file stored next to a manifest.
	LockFileName = "pin.lock"

	// LockFileVersion is the lock file format version written and accepted.
	LockFileVersion = 5

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600
)

// ManifestFileNames lists the manifest file names in lookup order.
func ManifestFileNames() []string {
	return []string{ManifestFileName, CueManifestFileName}
}

// DefaultStorePath returns the store directory under the given cache base.
// It joins base, pin and store.
func DefaultStorePath(base string) string {
	return filepath.Join(base, PinDirName, StoreDirName)
}

// DefaultCachePath returns the cache directory under the given cache base.
// It joins base, pin and cache.
func DefaultCachePath(base string) string {
	return filepath.Join(base, PinDirName, CacheDirName)
}

// DefaultConfigPath returns the settings file under the given config base.
// It joins base, pin and config.yaml.
func DefaultConfigPath(base string) string {
	return filepath.Join(base, PinDirName, ConfigFileName)
}

// LockFilePath returns the lock file path relative to a tree root for a manifest
// living in subdir.
func LockFilePath(subdir string) string {
	return filepath.Join(subdir, LockFileName)
}
