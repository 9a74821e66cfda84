package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pin/internal/core/domain"
)

const testRev = "0123456789abcdef0123456789abcdef01234567"

func TestParseRef(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		wantType  string
		wantStr   string
		immutable bool
		direct    bool
		subdir    string
	}{
		{name: "path scheme", input: "path:/src/a", wantType: "path", wantStr: "path:/src/a", direct: true},
		{name: "bare absolute path", input: "/src/a", wantType: "path", wantStr: "path:/src/a", direct: true},
		{
			name:      "path with narHash",
			input:     "path:/src/a?narHash=sha256-AAAA",
			wantType:  "path",
			wantStr:   "path:/src/a?narHash=sha256-AAAA",
			immutable: true,
			direct:    true,
		},
		{
			name:     "git branch",
			input:    "git+https://example.com/repo.git?ref=main",
			wantType: "git",
			wantStr:  "git+https://example.com/repo.git?ref=main",
			direct:   true,
		},
		{
			name:      "git rev",
			input:     "git+https://example.com/repo.git?rev=" + testRev,
			wantType:  "git",
			wantStr:   "git+https://example.com/repo.git?rev=" + testRev,
			immutable: true,
			direct:    true,
		},
		{
			name:     "tarball by suffix",
			input:    "https://example.com/x.tar.gz",
			wantType: "tarball",
			wantStr:  "tarball+https://example.com/x.tar.gz",
			direct:   true,
		},
		{name: "indirect bare", input: "nixpkgs", wantType: "indirect", wantStr: "nixpkgs"},
		{name: "indirect with ref", input: "flake:nixpkgs/release", wantType: "indirect", wantStr: "nixpkgs/release"},
		{
			name:     "indirect with attributes",
			input:    "flake:nixpkgs/release?narHash=sha256-AAAA#sub",
			wantType: "indirect",
			wantStr:  "flake:nixpkgs/release?narHash=sha256-AAAA#sub",
			subdir:   "sub",
		},
		{
			name:     "subdir fragment",
			input:    "path:/src/a#sub",
			wantType: "path",
			wantStr:  "path:/src/a#sub",
			direct:   true,
			subdir:   "sub",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ref, err := domain.ParseRef(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, ref.Type())
			assert.Equal(t, tt.wantStr, ref.String())
			assert.Equal(t, tt.immutable, ref.IsImmutable())
			assert.Equal(t, tt.direct, ref.IsDirect())
			assert.Equal(t, tt.subdir, ref.Subdir)

			again, err := domain.ParseRef(ref.String())
			require.NoError(t, err)
			assert.True(t, ref.Equal(again), "round trip of %q gave %q", ref.String(), again.String())
		})
	}
}

func TestParseRef_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "empty", input: "", wantErr: domain.ErrInvalidRef},
		{name: "unknown scheme", input: "ftp://example.com/x", wantErr: domain.ErrUnsupportedReference},
		{name: "short rev", input: "git+https://example.com/r?rev=abc", wantErr: domain.ErrInvalidRef},
		{name: "bad indirect id", input: "1abc", wantErr: domain.ErrInvalidRef},
		{name: "too many indirect segments", input: "a/b/c/d", wantErr: domain.ErrInvalidRef},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := domain.ParseRef(tt.input)
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr.Error())
		})
	}
}

func TestRef_Attrs(t *testing.T) {
	t.Parallel()

	ref := domain.MustParseRef("git+https://example.com/repo.git?rev=" + testRev + "&revCount=12&lastModified=1700000000#sub/dir")
	assert.Equal(t, testRev, ref.Rev())
	assert.Equal(t, int64(12), ref.RevCount())
	assert.Equal(t, int64(1700000000), ref.LastModified())
	assert.Equal(t, "sub/dir", ref.Subdir)

	attrs := ref.ToAttrs()
	dir, ok := attrs.String("dir")
	require.True(t, ok)
	assert.Equal(t, "sub/dir", dir)

	back, err := domain.RefFromAttrs(attrs)
	require.NoError(t, err)
	assert.True(t, ref.Equal(back))
}

func TestRefFromAttrs_UnknownType(t *testing.T) {
	t.Parallel()

	_, err := domain.RefFromAttrs(domain.Attrs{"type": domain.StringAttr("mercurial")})
	require.Error(t, err)
	assert.ErrorContains(t, err, domain.ErrUnsupportedReference.Error())
}

func TestRef_SourcePath(t *testing.T) {
	t.Parallel()

	p, ok := domain.MustParseRef("path:/src/a").SourcePath()
	assert.True(t, ok)
	assert.Equal(t, "/src/a", p)

	p, ok = domain.MustParseRef("git+file:///src/repo").SourcePath()
	assert.True(t, ok)
	assert.Equal(t, "/src/repo", p)

	_, ok = domain.MustParseRef("git+https://example.com/repo.git").SourcePath()
	assert.False(t, ok)

	_, ok = domain.MustParseRef("nixpkgs").SourcePath()
	assert.False(t, ok)
}

func TestRef_WithAndWithout(t *testing.T) {
	t.Parallel()

	ref := domain.MustParseRef("path:/src/a")
	pinned := ref.With("narHash", domain.StringAttr("sha256-AAAA"))

	assert.False(t, ref.IsImmutable(), "With must not modify the receiver")
	assert.True(t, pinned.IsImmutable())
	assert.True(t, pinned.Without("narHash").Equal(ref))
}
