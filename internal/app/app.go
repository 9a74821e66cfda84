// Package app implements the application layer for pin.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/pin/internal/core/ports"
	"go.trai.ch/pin/internal/engine/locker"
	"go.trai.ch/zerr"
)

// DefaultRef is the reference locked when none is given.
const DefaultRef = "."

// App represents the main application logic.
type App struct {
	locker   *locker.Locker
	logger   ports.Logger
	settings domain.Settings
	out      io.Writer
	getwd    func() (string, error)
}

// New creates a new App instance.
func New(l *locker.Locker, log ports.Logger, settings domain.Settings) *App {
	return &App{
		locker:   l,
		logger:   log,
		settings: settings,
		out:      os.Stdout,
		getwd:    os.Getwd,
	}
}

// WithOutput sets the writer for command output.
// This is primarily used for testing.
func (a *App) WithOutput(w io.Writer) *App {
	a.out = w
	return a
}

// WithWorkDir resolves relative references against dir instead of the process
// working directory.
func (a *App) WithWorkDir(dir string) *App {
	a.getwd = func() (string, error) { return dir, nil }
	return a
}

// loggingConfigurer is implemented by loggers that can change verbosity and format.
type loggingConfigurer interface {
	SetVerbose(verbose bool)
	SetJSON(enable bool)
}

// ConfigureLogging applies the output flags to the logger. Verbosity also follows
// the settings file.
func (a *App) ConfigureLogging(verbose, jsonOutput bool) {
	l, ok := a.logger.(loggingConfigurer)
	if !ok {
		return
	}
	l.SetVerbose(verbose || a.settings.Verbose)
	l.SetJSON(jsonOutput)
}

// InputOverride is an --override-input pair as given on the command line.
type InputOverride struct {
	Path string
	Ref  string
}

// LockOptions configuration for the Lock and Update methods.
type LockOptions struct {
	Ref              string
	UpdateInputs     []string
	OverrideInputs   []InputOverride
	RecreateLockFile bool
	NoUpdateLockFile bool
	NoWriteLockFile  bool
	CommitLockFile   bool
	NoRegistries     bool
	Pure             bool
}

// Lock resolves the inputs of the manifest behind opts.Ref and writes the lock file
// when it changed.
func (a *App) Lock(ctx context.Context, opts LockOptions) error {
	locked, err := a.lock(ctx, opts)
	if err != nil {
		return err
	}
	a.logger.Debug(fmt.Sprintf("locked '%s' (fingerprint %s)", locked.Flake.LockedRef, locked.Fingerprint()))
	return nil
}

// Update recreates the lock file from scratch.
func (a *App) Update(ctx context.Context, opts LockOptions) error {
	opts.RecreateLockFile = true
	return a.Lock(ctx, opts)
}

func (a *App) lock(ctx context.Context, opts LockOptions) (*domain.LockedFlake, error) {
	ref, err := a.ParseRef(opts.Ref)
	if err != nil {
		return nil, err
	}
	flags, err := a.lockFlags(opts)
	if err != nil {
		return nil, err
	}
	return a.locker.LockFlake(ctx, ref, flags)
}

// ParseRef parses a reference given on the command line. Relative paths are made
// absolute against the working directory; the empty string means DefaultRef.
func (a *App) ParseRef(s string) (domain.Ref, error) {
	if s == "" {
		s = DefaultRef
	}
	ref, err := domain.ParseRef(s)
	if err != nil {
		return domain.Ref{}, err
	}
	if ref.Type() != domain.RefTypePath {
		return ref, nil
	}

	p, _ := ref.StringAttr(domain.AttrPath)
	if filepath.IsAbs(p) {
		return ref, nil
	}
	wd, err := a.getwd()
	if err != nil {
		return domain.Ref{}, zerr.With(zerr.Wrap(err, domain.ErrInvalidRef.Error()), "ref", s)
	}
	return ref.With(domain.AttrPath, domain.StringAttr(filepath.Join(wd, p))), nil
}

func (a *App) lockFlags(opts LockOptions) (domain.LockFlags, error) {
	flags := domain.LockFlags{
		UpdateLockFile:   !opts.NoUpdateLockFile,
		UseRegistries:    a.settings.UseRegistries && !opts.NoRegistries,
		AllowMutable:     a.settings.AllowMutable && !opts.Pure,
		RecreateLockFile: opts.RecreateLockFile,
		WriteLockFile:    !opts.NoWriteLockFile,
		CommitLockFile:   opts.CommitLockFile,
	}

	for _, s := range opts.UpdateInputs {
		path, err := parseFlagPath("--update-input", s)
		if err != nil {
			return domain.LockFlags{}, err
		}
		flags.InputUpdates = append(flags.InputUpdates, path)
	}

	for _, o := range opts.OverrideInputs {
		path, err := parseFlagPath("--override-input", o.Path)
		if err != nil {
			return domain.LockFlags{}, err
		}
		ref, err := a.ParseRef(o.Ref)
		if err != nil {
			return domain.LockFlags{}, zerr.With(err, "flag", "--override-input")
		}
		flags.InputOverrides = append(flags.InputOverrides, domain.InputOverride{Path: path, Ref: ref})
	}

	return flags, nil
}

func parseFlagPath(flag, s string) (domain.InputPath, error) {
	path, err := domain.ParseInputPath(s)
	if err != nil {
		return nil, zerr.With(err, "flag", flag)
	}
	if path.IsRoot() {
		return nil, zerr.With(zerr.With(domain.ErrInvalidInputPath, "flag", flag), "path", s)
	}
	return path, nil
}

// ParseOverride splits a PATH=REF argument of --override-input.
func ParseOverride(s string) (InputOverride, error) {
	path, ref, ok := strings.Cut(s, "=")
	if !ok || path == "" || ref == "" {
		return InputOverride{}, zerr.With(zerr.With(domain.ErrInvalidRef, "flag", "--override-input"), "value", s)
	}
	return InputOverride{Path: path, Ref: ref}, nil
}
