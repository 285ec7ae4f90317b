// Package config loads and serves the device's configuration surface:
// the keyed map read at init, validated against the recognized-key
// table, and served thereafter through Store, a single
// reader-multiple-writer primitive (ConfigSnapshot is shared-read;
// only one writer — the reload operation — at a time).
//
// Layered sources (env > file > defaults) via viper,
// mapstructure for decoding into typed sections, go-playground/
// validator for field constraints.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// DeviceConfig is the device.* key group.
type DeviceConfig struct {
	ID             int    `mapstructure:"id" yaml:"id" validate:"required,min=1,max=99"`
	DisplayMessage string `mapstructure:"display_message" yaml:"display_message" validate:"max=40"`
}

// ModeConfig is the mode.* key group.
type ModeConfig struct {
	Online            bool `mapstructure:"online" yaml:"online"`
	FallbackOffline   bool `mapstructure:"fallback_offline" yaml:"fallback_offline"`
	FallbackTimeoutMs int  `mapstructure:"fallback_timeout_ms" yaml:"fallback_timeout_ms" validate:"min=500,max=10000"`
}

// NetworkConfig is the network.* key group.
type NetworkConfig struct {
	TCPMode string `mapstructure:"tcp_mode" yaml:"tcp_mode" validate:"oneof=server client"`
	IP      string `mapstructure:"ip" yaml:"ip"`
	Port    int    `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
}

// BiometricsConfig is the biometrics.* key group, passed opaquely to the
// biometric collaborator.
type BiometricsConfig struct {
	Sensitivity   int `mapstructure:"sensitivity" yaml:"sensitivity" validate:"min=48,max=55"`
	SecurityLevel int `mapstructure:"security_level" yaml:"security_level" validate:"min=48,max=82"`
}

// AntiPassbackConfig is the anti_passback.* key group.
type AntiPassbackConfig struct {
	Minutes int `mapstructure:"minutes" yaml:"minutes" validate:"min=0,max=999999"`
}

// RotationConfig is the rotation.* key group.
type RotationConfig struct {
	SimulateDelayMs int `mapstructure:"simulate_delay_ms" yaml:"simulate_delay_ms" validate:"min=0,max=60000"`
}

// LoggingConfig configures internal/logger, outside the Henry wire
// protocol surface but still part of this device's ambient stack.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=text json"`
	Output string `mapstructure:"output" yaml:"output"`
}

// AdminConfig is the admin.* key group controlling internal/adminserver.
type AdminConfig struct {
	Enabled *bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int   `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
}

// CatalogConfig is the catalog.* key group naming the durable store's
// location on disk.
type CatalogConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// Config is the full device configuration surface, plus the ambient
// logging/admin/catalog sections every complete device process needs
// alongside the protocol-level keys.
// readers.<n> is a sparse map since only the slots actually wired have an
// entry; an absent slot means "disabled".
type Config struct {
	Device       DeviceConfig       `mapstructure:"device" yaml:"device"`
	Mode         ModeConfig         `mapstructure:"mode" yaml:"mode"`
	Network      NetworkConfig      `mapstructure:"network" yaml:"network"`
	Readers      map[string]string  `mapstructure:"readers" yaml:"readers"`
	Biometrics   BiometricsConfig   `mapstructure:"biometrics" yaml:"biometrics"`
	AntiPassback AntiPassbackConfig `mapstructure:"anti_passback" yaml:"anti_passback"`
	Rotation     RotationConfig     `mapstructure:"rotation" yaml:"rotation"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
	Admin        AdminConfig        `mapstructure:"admin" yaml:"admin"`
	Catalog      CatalogConfig      `mapstructure:"catalog" yaml:"catalog"`
}

// ReaderKinds enumerates the values a readers.<n> entry may take.
var ReaderKinds = map[string]bool{
	"rfid": true, "keypad": true, "biometric": true, "wiegand": true, "disabled": true,
}

var validate = validator.New()

// Load reads configuration from path (YAML or TOML, by extension), layers
// env var overrides (TURNSTILE_<SECTION>_<KEY>), applies defaults for
// anything left unset, and validates the result. An unknown top-level or
// nested key in the file is rejected (mapstructure's ErrorUnused):
// unknown keys fail load rather than being silently ignored.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}
	v.SetEnvPrefix("TURNSTILE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	decodeOpt := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))
	errorUnused := func(dc *mapstructure.DecoderConfig) { dc.ErrorUnused = true }
	if err := v.Unmarshal(&cfg, decodeOpt, errorUnused); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := validateReaders(cfg.Readers); err != nil {
		return nil, err
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func validateReaders(readers map[string]string) error {
	for slot, kind := range readers {
		if !ReaderKinds[kind] {
			return fmt.Errorf("config: readers.%s: unrecognized kind %q", slot, kind)
		}
	}
	return nil
}
