// Package config provides the settings loader for pin.
package config

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/pin/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Environment variables read by the loader.
const (
	EnvConfig        = "PIN_CONFIG"
	EnvStoreDir      = "PIN_STORE_DIR"
	EnvCacheDir      = "PIN_CACHE_DIR"
	EnvRegistries    = "PIN_REGISTRIES"
	EnvRegistryTTL   = "PIN_REGISTRY_TTL"
	EnvUseRegistries = "PIN_USE_REGISTRIES"
	EnvAllowMutable  = "PIN_ALLOW_MUTABLE"
	EnvWarnDirty     = "PIN_WARN_DIRTY"
	EnvVerbose       = "PIN_VERBOSE"
)

// Loader implements ports.ConfigLoader. It reads the YAML settings file and
// overlays PIN_* environment variables on top.
type Loader struct {
	logger ports.Logger
	getenv func(string) string
}

// NewLoader creates a Loader reading the process environment.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{logger: logger, getenv: os.Getenv}
}

// NewLoaderWithEnv creates a Loader reading variables from getenv.
func NewLoaderWithEnv(logger ports.Logger, getenv func(string) string) *Loader {
	return &Loader{logger: logger, getenv: getenv}
}

// Load returns the effective settings. A missing settings file yields the defaults.
func (l *Loader) Load() (domain.Settings, error) {
	cacheBase, err := l.baseDir("XDG_CACHE_HOME", os.UserCacheDir)
	if err != nil {
		return domain.Settings{}, err
	}
	settings := domain.DefaultSettings(cacheBase)

	path, err := l.Path()
	if err != nil {
		return domain.Settings{}, err
	}

	file, err := readSettingsFile(path)
	if err != nil {
		return domain.Settings{}, err
	}
	if file != nil {
		l.logger.Debug("loaded settings from " + path)
		if err := applyFile(&settings, file, filepath.Dir(path)); err != nil {
			return domain.Settings{}, zerr.With(err, "path", path)
		}
	}

	if err := l.applyEnv(&settings); err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}

// Path returns the settings file location: PIN_CONFIG when set, otherwise
// pin/config.yaml below the user config directory.
func (l *Loader) Path() (string, error) {
	if p := l.getenv(EnvConfig); p != "" {
		return p, nil
	}
	base, err := l.baseDir("XDG_CONFIG_HOME", os.UserConfigDir)
	if err != nil {
		return "", err
	}
	return domain.DefaultConfigPath(base), nil
}

func (l *Loader) baseDir(env string, fallback func() (string, error)) (string, error) {
	if dir := l.getenv(env); dir != "" {
		return dir, nil
	}
	dir, err := fallback()
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to determine user directory"), "env", env)
	}
	return dir, nil
}

func readSettingsFile(path string) (*SettingsFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read settings file"), "path", path)
	}

	var file SettingsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "path", path)
	}
	return &file, nil
}

// applyFile copies set fields onto settings. Relative directories are taken
// relative to the settings file.
func applyFile(s *domain.Settings, f *SettingsFile, base string) error {
	if f.StoreDir != nil {
		s.StoreDir = absFrom(base, *f.StoreDir)
	}
	if f.CacheDir != nil {
		s.CacheDir = absFrom(base, *f.CacheDir)
	}
	if f.Registries != nil {
		s.Registries = append([]string{}, f.Registries...)
	}
	if f.RegistryTTL != nil {
		ttl, err := time.ParseDuration(*f.RegistryTTL)
		if err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "field", "registry_ttl")
		}
		s.RegistryTTL = ttl
	}
	if f.UseRegistries != nil {
		s.UseRegistries = *f.UseRegistries
	}
	if f.AllowMutable != nil {
		s.AllowMutable = *f.AllowMutable
	}
	if f.WarnDirty != nil {
		s.WarnDirty = *f.WarnDirty
	}
	if f.Verbose != nil {
		s.Verbose = *f.Verbose
	}
	return nil
}

func (l *Loader) applyEnv(s *domain.Settings) error {
	if v := l.getenv(EnvStoreDir); v != "" {
		s.StoreDir = v
	}
	if v := l.getenv(EnvCacheDir); v != "" {
		s.CacheDir = v
	}
	if v := l.getenv(EnvRegistries); v != "" {
		s.Registries = splitList(v)
	}
	if v := l.getenv(EnvRegistryTTL); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "env", EnvRegistryTTL)
		}
		s.RegistryTTL = ttl
	}

	bools := []struct {
		env string
		dst *bool
	}{
		{EnvUseRegistries, &s.UseRegistries},
		{EnvAllowMutable, &s.AllowMutable},
		{EnvWarnDirty, &s.WarnDirty},
		{EnvVerbose, &s.Verbose},
	}
	for _, b := range bools {
		v := l.getenv(b.env)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "env", b.env)
		}
		*b.dst = parsed
	}
	return nil
}

func absFrom(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// splitList splits a comma separated list, dropping empty items.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
