package domain

import "time"

// Settings holds the user configuration of the resolver.
type Settings struct {
	// StoreDir holds materialized source trees.
	StoreDir string `yaml:"store_dir"`
	// CacheDir holds the fetch cache database and registry document cache.
	CacheDir string `yaml:"cache_dir"`
	// Registries are registry document locations, consulted in order.
	Registries []string `yaml:"registries"`
	// RegistryTTL is how long a remote registry document is trusted.
	RegistryTTL time.Duration `yaml:"registry_ttl"`
	// UseRegistries enables indirect reference lookups.
	UseRegistries bool `yaml:"use_registries"`
	// AllowMutable allows locking mutable inputs.
	AllowMutable bool `yaml:"allow_mutable"`
	// WarnDirty warns when a git-backed source has uncommitted changes.
	WarnDirty bool `yaml:"warn_dirty"`
	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose"`
}

// DefaultRegistryTTL is the default lifetime of a cached registry document.
const DefaultRegistryTTL = time.Hour

// DefaultSettings returns settings rooted at the given cache directory.
func DefaultSettings(cacheBase string) Settings {
	return Settings{
		StoreDir:      DefaultStorePath(cacheBase),
		CacheDir:      DefaultCachePath(cacheBase),
		RegistryTTL:   DefaultRegistryTTL,
		UseRegistries: true,
		AllowMutable:  true,
		WarnDirty:     true,
	}
}
