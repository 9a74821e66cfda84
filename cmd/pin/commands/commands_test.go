package commands_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pin/cmd/pin/commands"
	"go.trai.ch/pin/internal/app"
	"go.trai.ch/pin/internal/build"
	"go.trai.ch/pin/internal/core/domain"
)

type mockApp struct {
	lockFunc     func(ctx context.Context, opts app.LockOptions) error
	updateFunc   func(ctx context.Context, opts app.LockOptions) error
	metadataFunc func(ctx context.Context, opts app.MetadataOptions) error

	verbose, json bool
}

func (m *mockApp) Lock(ctx context.Context, opts app.LockOptions) error {
	if m.lockFunc != nil {
		return m.lockFunc(ctx, opts)
	}
	return nil
}

func (m *mockApp) Update(ctx context.Context, opts app.LockOptions) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, opts)
	}
	return nil
}

func (m *mockApp) Metadata(ctx context.Context, opts app.MetadataOptions) error {
	if m.metadataFunc != nil {
		return m.metadataFunc(ctx, opts)
	}
	return nil
}

func (m *mockApp) ConfigureLogging(verbose, jsonOutput bool) {
	m.verbose = verbose
	m.json = jsonOutput
}

func TestCommands_Lock(t *testing.T) {
	t.Run("wires flags correctly", func(t *testing.T) {
		var captured app.LockOptions
		called := false

		mock := &mockApp{
			lockFunc: func(_ context.Context, opts app.LockOptions) error {
				captured = opts
				called = true
				return nil
			},
		}

		cli := commands.New(mock)
		cli.SetArgs([]string{
			"lock", "./proj",
			"--update-input", "a",
			"--update-input", "b/c",
			"--override-input", "d=git+https://example.com/d.git?ref=dev",
			"--recreate-lock-file",
			"--no-update-lock-file",
			"--no-write-lock-file",
			"--commit-lock-file",
			"--no-registries",
			"--pure",
		})

		require.NoError(t, cli.Execute(context.Background()))
		assert.True(t, called)
		assert.Equal(t, app.LockOptions{
			Ref:              "./proj",
			UpdateInputs:     []string{"a", "b/c"},
			OverrideInputs:   []app.InputOverride{{Path: "d", Ref: "git+https://example.com/d.git?ref=dev"}},
			RecreateLockFile: true,
			NoUpdateLockFile: true,
			NoWriteLockFile:  true,
			CommitLockFile:   true,
			NoRegistries:     true,
			Pure:             true,
		}, captured)
	})

	t.Run("defaults", func(t *testing.T) {
		var captured app.LockOptions
		mock := &mockApp{
			lockFunc: func(_ context.Context, opts app.LockOptions) error {
				captured = opts
				return nil
			},
		}

		cli := commands.New(mock)
		cli.SetArgs([]string{"lock"})

		require.NoError(t, cli.Execute(context.Background()))
		assert.Equal(t, app.LockOptions{}, captured)
		assert.False(t, mock.verbose)
		assert.False(t, mock.json)
	})

	t.Run("configures logging", func(t *testing.T) {
		mock := &mockApp{}
		cli := commands.New(mock)
		cli.SetArgs([]string{"--verbose", "--json", "lock"})

		require.NoError(t, cli.Execute(context.Background()))
		assert.True(t, mock.verbose)
		assert.True(t, mock.json)
	})

	t.Run("short verbose flag", func(t *testing.T) {
		mock := &mockApp{}
		cli := commands.New(mock)
		cli.SetArgs([]string{"-v", "lock"})

		require.NoError(t, cli.Execute(context.Background()))
		assert.True(t, mock.verbose)
	})

	t.Run("rejects malformed override", func(t *testing.T) {
		mock := &mockApp{
			lockFunc: func(_ context.Context, _ app.LockOptions) error {
				panic("should not be called")
			},
		}

		cli := commands.New(mock)
		cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))
		cli.SetArgs([]string{"lock", "--override-input", "missing-ref"})

		err := cli.Execute(context.Background())
		require.Error(t, err)
		assert.ErrorContains(t, err, domain.ErrInvalidRef.Error())
	})

	t.Run("rejects extra arguments", func(t *testing.T) {
		cli := commands.New(&mockApp{})
		cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))
		cli.SetArgs([]string{"lock", "a", "b"})

		require.Error(t, cli.Execute(context.Background()))
	})

	t.Run("returns error on lock failure", func(t *testing.T) {
		mock := &mockApp{
			lockFunc: func(_ context.Context, _ app.LockOptions) error {
				return errors.New("simulated error")
			},
		}

		cli := commands.New(mock)
		cli.SetArgs([]string{"lock"})
		cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))

		err := cli.Execute(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "simulated error")
	})
}

func TestCommands_Update(t *testing.T) {
	var captured app.LockOptions
	mock := &mockApp{
		updateFunc: func(_ context.Context, opts app.LockOptions) error {
			captured = opts
			return nil
		},
		lockFunc: func(_ context.Context, _ app.LockOptions) error {
			panic("should not be called")
		},
	}

	cli := commands.New(mock)
	cli.SetArgs([]string{"update", "github:owner/repo", "--no-registries"})

	require.NoError(t, cli.Execute(context.Background()))
	assert.Equal(t, "github:owner/repo", captured.Ref)
	assert.True(t, captured.NoRegistries)
}

func TestCommands_Metadata(t *testing.T) {
	var captured app.MetadataOptions
	mock := &mockApp{
		metadataFunc: func(_ context.Context, opts app.MetadataOptions) error {
			captured = opts
			return nil
		},
	}

	cli := commands.New(mock)
	cli.SetArgs([]string{"metadata", ".", "--json", "--override-input", "a=./b"})

	require.NoError(t, cli.Execute(context.Background()))
	assert.True(t, captured.JSON)
	assert.Equal(t, ".", captured.Ref)
	assert.Equal(t, []app.InputOverride{{Path: "a", Ref: "./b"}}, captured.OverrideInputs)
}

func TestCommands_Version(t *testing.T) {
	cli := commands.New(&mockApp{})

	buf := new(bytes.Buffer)
	cli.SetOutput(buf, buf)
	cli.SetArgs([]string{"version"})

	require.NoError(t, cli.Execute(context.Background()))
	assert.Contains(t, buf.String(), "pin version "+build.Version)
}

func TestCommands_Help(t *testing.T) {
	cli := commands.New(&mockApp{})

	buf := new(bytes.Buffer)
	cli.SetOutput(buf, buf)
	cli.SetArgs([]string{"lock", "--help"})

	require.NoError(t, cli.Execute(context.Background()))
	assert.Contains(t, buf.String(), "--override-input PATH=REF")
	assert.Contains(t, buf.String(), "--update-input PATH")
}
