package ports

import "go.trai.ch/pin/internal/core/domain"

// ConfigLoader defines the interface for loading the user settings.
//
//go:generate go run go.uber.org/mock/mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load reads the settings file and environment overrides. A missing file yields
	// the defaults.
	Load() (domain.Settings, error)
}
