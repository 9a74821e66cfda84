package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pin/internal/core/domain"
)

func TestParseInputPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    domain.InputPath
		wantErr bool
	}{
		{input: "", want: domain.InputPath{}},
		{input: "a", want: domain.InputPath{"a"}},
		{input: "a/b", want: domain.InputPath{"a", "b"}},
		{input: "a.b/c", want: domain.InputPath{"a", "b", "c"}},
		{input: "a//b", wantErr: true},
		{input: "/a", wantErr: true},
		{input: "a/", wantErr: true},
		{input: "a/1b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := domain.ParseInputPath(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorContains(t, err, domain.ErrInvalidInputPath.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInputPath_Helpers(t *testing.T) {
	t.Parallel()

	base := domain.InputPath{"a"}
	child := base.Child("b")
	sibling := base.Child("c")

	assert.Equal(t, "a/b", child.String())
	assert.Equal(t, domain.InputPath{"a"}, base, "Child must not modify the receiver")
	assert.Equal(t, "a/c", sibling.String())
	assert.True(t, child.HasPrefix(base))
	assert.True(t, child.HasPrefix(domain.InputPath{}))
	assert.False(t, base.HasPrefix(child))
	assert.Equal(t, domain.InputPath{"x", "a", "b"}, domain.InputPath{"x"}.Concat(child))
	assert.Negative(t, domain.CompareInputPaths(base, child))
	assert.Negative(t, domain.CompareInputPaths(child, sibling))
}

func TestLockFlags_Updates(t *testing.T) {
	t.Parallel()

	flags := domain.LockFlags{InputUpdates: []domain.InputPath{{"a", "b"}}}

	assert.True(t, flags.IsUpdated(domain.InputPath{"a", "b"}))
	assert.False(t, flags.IsUpdated(domain.InputPath{"a"}))
	assert.True(t, flags.HasChildUpdate(domain.InputPath{"a"}))
	assert.True(t, flags.HasChildUpdate(domain.InputPath{}))
	assert.False(t, flags.HasChildUpdate(domain.InputPath{"a", "b"}))
	assert.False(t, flags.HasChildUpdate(domain.InputPath{"c"}))
}
