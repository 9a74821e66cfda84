package fs

import (
	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/zerr"
)

// Verifier checks fetched trees against their pinned content hashes.
type Verifier struct {
	hasher *Hasher
}

// NewVerifier creates a new Verifier.
func NewVerifier(hasher *Hasher) *Verifier {
	return &Verifier{hasher: hasher}
}

// VerifyTree hashes the tree at root and compares it with expected. It returns the
// computed hash. An empty expected hash always matches.
func (v *Verifier) VerifyTree(root, expected string) (string, error) {
	got, err := v.hasher.HashTree(root)
	if err != nil {
		return "", err
	}
	if expected != "" && got != expected {
		err := zerr.With(domain.ErrNarHashMismatch, "path", root)
		err = zerr.With(err, "expected", expected)
		return "", zerr.With(err, "got", got)
	}
	return got, nil
}
