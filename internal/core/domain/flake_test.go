package domain_test

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/pin/internal/core/domain"
)

func TestLockedFlake_Fingerprint(t *testing.T) {
	t.Parallel()

	lockFile := sampleLockFile()
	locked := &domain.LockedFlake{
		Flake: &domain.Flake{
			LockedRef: domain.MustParseRef("git+https://example.com/root.git?rev=" + testRev + "&revCount=7&lastModified=1600000000"),
			Tree:      &domain.Tree{StorePath: "/store/abc-source"},
		},
		LockFile: lockFile,
	}

	sum := sha256.Sum256([]byte(fmt.Sprintf("/store/abc-source;7;1600000000;%s", lockFile.String())))
	assert.Equal(t, hex.EncodeToString(sum[:]), locked.Fingerprint())

	other := &domain.LockedFlake{Flake: locked.Flake, LockFile: domain.NewLockFile()}
	assert.NotEqual(t, locked.Fingerprint(), other.Fingerprint())
}

func TestInputs_DeclarationOrder(t *testing.T) {
	t.Parallel()

	inputs := domain.NewInputs()
	inputs.Set("zeta", domain.NewInputSpec())
	inputs.Set("alpha", domain.NewInputSpec())
	assert.False(t, inputs.SetDefault("zeta", domain.NewInputSpec()))
	assert.True(t, inputs.SetDefault("mid", domain.NewInputSpec()))

	var ids []string
	for id := range inputs.All() {
		ids = append(ids, id)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, ids)
	assert.Equal(t, 3, inputs.Len())
}
