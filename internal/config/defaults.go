package config

// ApplyDefaults fills in zero-valued fields with their documented
// defaults. Zero is ambiguous with "explicitly set to zero" for a couple
// of fields (mode.online, mode.fallback_offline) — those default to
// false either way, so no special handling is needed; every other
// defaulted field treats its zero value as "not configured".
func ApplyDefaults(cfg *Config) {
	if cfg.Device.DisplayMessage == "" {
		cfg.Device.DisplayMessage = "Bem-vindo"
	}
	if cfg.Mode.FallbackTimeoutMs == 0 {
		cfg.Mode.FallbackTimeoutMs = 3000
	}
	if cfg.Network.TCPMode == "" {
		cfg.Network.TCPMode = "client"
	}
	if cfg.Network.Port == 0 {
		cfg.Network.Port = 3000
	}
	if cfg.Readers == nil {
		cfg.Readers = map[string]string{"1": "rfid"}
	}
	if cfg.Biometrics.Sensitivity == 0 {
		cfg.Biometrics.Sensitivity = 50
	}
	if cfg.Biometrics.SecurityLevel == 0 {
		cfg.Biometrics.SecurityLevel = 60
	}
	if cfg.Rotation.SimulateDelayMs == 0 {
		cfg.Rotation.SimulateDelayMs = 2000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 8080
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "turnstile.db"
	}
}
