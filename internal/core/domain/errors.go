package domain

import "go.trai.ch/zerr"

var (
	// ErrInvalidRef is returned when a reference string or attribute set cannot be parsed.
	ErrInvalidRef = zerr.New("invalid reference")

	// ErrUnsupportedReference is returned when a reference names a type or scheme
	// no fetcher understands.
	ErrUnsupportedReference = zerr.New("unsupported reference type")

	// ErrInvalidInputPath is returned when an input path contains an empty or invalid segment.
	ErrInvalidInputPath = zerr.New("invalid input path")

	// ErrManifestNotFound is returned when a fetched tree carries no manifest file.
	ErrManifestNotFound = zerr.New("manifest not found")

	// ErrTypeMismatch is returned when a manifest attribute has the wrong type.
	ErrTypeMismatch = zerr.New("type mismatch")

	// ErrUnsupportedAttribute is returned for unknown top-level manifest attributes.
	ErrUnsupportedAttribute = zerr.New("unsupported manifest attribute")

	// ErrMissingOutputs is returned when a manifest does not declare outputs.
	ErrMissingOutputs = zerr.New("manifest lacks attribute 'outputs'")

	// ErrConflictingInputAttrs is returned when an input mixes a url with loose attributes.
	ErrConflictingInputAttrs = zerr.New("unexpected input attribute")

	// ErrPathEscape is returned when a manifest or lock file path resolves outside its tree.
	ErrPathEscape = zerr.New("path escapes its source tree")

	// ErrCircularImport is returned when resolution re-enters a reference on the current chain.
	ErrCircularImport = zerr.New("circular import")

	// ErrPureModeViolation is returned when locking a mutable input while mutable inputs
	// are forbidden.
	ErrPureModeViolation = zerr.New("cannot update mutable input in pure mode")

	// ErrIndirectLookupForbidden is returned when an indirect reference must be resolved
	// but registry lookups are disabled.
	ErrIndirectLookupForbidden = zerr.New("indirect reference cannot be resolved without registries")

	// ErrDanglingFollows is returned when a follows edge points at a non-existent input.
	ErrDanglingFollows = zerr.New("input follows a non-existent input")

	// ErrLockFileParse is returned when a lock file cannot be decoded.
	ErrLockFileParse = zerr.New("failed to parse lock file")

	// ErrUnsupportedLockVersion is returned for lock files of an unknown version.
	ErrUnsupportedLockVersion = zerr.New("unsupported lock file version")

	// ErrLockWriteFailed is returned when writing the lock file fails.
	ErrLockWriteFailed = zerr.New("failed to write lock file")

	// ErrLockWriteForbidden is returned when the lock file changed but may not be written.
	ErrLockWriteForbidden = zerr.New("cannot write modified lock file")

	// ErrLockUnchangedAfterWrite is returned when re-fetching an immutable root after
	// a lock file write yields the same locked reference.
	ErrLockUnchangedAfterWrite = zerr.New("lock file write did not change the locked reference")

	// ErrNarHashMismatch is returned when fetched content disagrees with a pinned hash.
	ErrNarHashMismatch = zerr.New("content hash mismatch")

	// ErrFetchFailed is returned when a fetcher cannot materialize a tree.
	ErrFetchFailed = zerr.New("failed to fetch source tree")

	// ErrRegistryNotFound is returned when no registry entry matches an indirect reference.
	ErrRegistryNotFound = zerr.New("cannot find reference in registries")

	// ErrRegistryParse is returned when a registry document cannot be decoded.
	ErrRegistryParse = zerr.New("failed to parse registry")

	// ErrEvaluationFailed is returned when a manifest file cannot be evaluated.
	ErrEvaluationFailed = zerr.New("failed to evaluate manifest")

	// ErrConfigParseFailed is returned when the settings file cannot be decoded.
	ErrConfigParseFailed = zerr.New("failed to parse configuration")

	// ErrCacheFailed is returned when the persistent fetch cache cannot be used.
	ErrCacheFailed = zerr.New("fetch cache failure")

	// ErrCancelled is returned when resolution is cancelled.
	ErrCancelled = zerr.New("operation cancelled")
)
