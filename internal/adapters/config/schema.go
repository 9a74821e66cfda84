package config

// SettingsFile represents the structure of the config.yaml settings file. Unset
// fields keep their defaults.
type SettingsFile struct {
	StoreDir      *string  `yaml:"store_dir"`
	CacheDir      *string  `yaml:"cache_dir"`
	Registries    []string `yaml:"registries"`
	RegistryTTL   *string  `yaml:"registry_ttl"`
	UseRegistries *bool    `yaml:"use_registries"`
	AllowMutable  *bool    `yaml:"allow_mutable"`
	WarnDirty     *bool    `yaml:"warn_dirty"`
	Verbose       *bool    `yaml:"verbose"`
}
