package domain

import (
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// InputPath addresses an input in the dependency graph as the sequence of input ids
// walked from the root. The empty path is the root itself.
type InputPath []string

// ParseInputPath parses a slash or dot separated input path. The empty string is the
// root path.
func ParseInputPath(s string) (InputPath, error) {
	if s == "" {
		return InputPath{}, nil
	}

	segments := strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == '.' })
	if len(segments) == 0 || strings.Count(s, "/")+strings.Count(s, ".")+1 != len(segments) {
		return nil, zerr.With(ErrInvalidInputPath, "path", s)
	}
	for _, seg := range segments {
		if !IsValidInputID(seg) {
			return nil, zerr.With(zerr.With(ErrInvalidInputPath, "path", s), "segment", seg)
		}
	}
	return InputPath(segments), nil
}

// IsValidInputID reports whether id may name an input.
func IsValidInputID(id string) bool {
	return indirectIDPattern.MatchString(id)
}

// String renders the path with slash separators.
func (p InputPath) String() string {
	return strings.Join(p, "/")
}

// Child returns a new path with id appended. The receiver is never modified.
func (p InputPath) Child(id string) InputPath {
	out := make(InputPath, len(p), len(p)+1)
	copy(out, p)
	return append(out, id)
}

// Concat returns a new path made of p followed by q.
func (p InputPath) Concat(q InputPath) InputPath {
	out := make(InputPath, 0, len(p)+len(q))
	out = append(out, p...)
	return append(out, q...)
}

// Equal reports whether both paths name the same input.
func (p InputPath) Equal(q InputPath) bool {
	return slices.Equal(p, q)
}

// HasPrefix reports whether q is a prefix of p.
func (p InputPath) HasPrefix(q InputPath) bool {
	return len(q) <= len(p) && slices.Equal(p[:len(q)], q)
}

// IsRoot reports whether the path names the root.
func (p InputPath) IsRoot() bool {
	return len(p) == 0
}

// CompareInputPaths orders paths segment by segment.
func CompareInputPaths(a, b InputPath) int {
	return slices.Compare(a, b)
}
