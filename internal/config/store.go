package config

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/henryproto/turnstile-emu/internal/protocol/henry/command"
)

// Store is ConfigSnapshot's single-writer/multiple-reader home (spec
// §5, §9: "the configuration snapshot is the only singleton; expose it
// behind a single-writer/multiple-reader primitive with an explicit
// reload event. No component caches a copy across suspension points;
// each read gets a fresh reference."). Every read returns a value copy
// of Config, never a pointer into the live struct, so a caller can't
// observe a torn write.
type Store struct {
	mu  sync.RWMutex
	cfg Config
}

// NewStore wraps cfg (typically the result of Load) for shared access.
func NewStore(cfg Config) *Store {
	return &Store{cfg: cfg}
}

// Snapshot returns a fresh copy of the current configuration.
func (s *Store) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Reload replaces the hot-reloadable subset of the live config — display
// message, reader enable flags, and the online/anti-passback/rotation
// timeouts — from next, leaving device identity, network mode, and
// everything else untouched (those require a process restart). Returns
// the keys actually changed, for logging.
func (s *Store) Reload(next Config) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []string
	if s.cfg.Device.DisplayMessage != next.Device.DisplayMessage {
		s.cfg.Device.DisplayMessage = next.Device.DisplayMessage
		changed = append(changed, string(command.KeyDisplayMessage))
	}
	if s.cfg.Mode.FallbackTimeoutMs != next.Mode.FallbackTimeoutMs {
		s.cfg.Mode.FallbackTimeoutMs = next.Mode.FallbackTimeoutMs
		changed = append(changed, string(command.KeyModeFallbackTimeout))
	}
	if s.cfg.AntiPassback.Minutes != next.AntiPassback.Minutes {
		s.cfg.AntiPassback.Minutes = next.AntiPassback.Minutes
		changed = append(changed, string(command.KeyAntiPassbackMinutes))
	}
	if s.cfg.Rotation.SimulateDelayMs != next.Rotation.SimulateDelayMs {
		s.cfg.Rotation.SimulateDelayMs = next.Rotation.SimulateDelayMs
		changed = append(changed, string(command.KeyRotationSimDelayMS))
	}
	if fmt.Sprint(s.cfg.Readers) != fmt.Sprint(next.Readers) {
		s.cfg.Readers = next.Readers
		changed = append(changed, "readers")
	}
	return changed
}

// ConfigValue answers an RC query by ConfigKey, satisfying the management handler's
// configReader extension. Read-only keys (network.*) reflect the live
// snapshot same as writable ones; only Set draws the writable/read-only
// distinction.
func (s *Store) ConfigValue(_ context.Context, key command.ConfigKey) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch key {
	case command.KeyDeviceID:
		return strconv.Itoa(s.cfg.Device.ID), true, nil
	case command.KeyDisplayMessage:
		return s.cfg.Device.DisplayMessage, true, nil
	case command.KeyModeOnline:
		return boolStr(s.cfg.Mode.Online), true, nil
	case command.KeyModeFallbackOffline:
		return boolStr(s.cfg.Mode.FallbackOffline), true, nil
	case command.KeyModeFallbackTimeout:
		return strconv.Itoa(s.cfg.Mode.FallbackTimeoutMs), true, nil
	case command.KeyNetworkTCPMode:
		return s.cfg.Network.TCPMode, true, nil
	case command.KeyNetworkIP:
		return s.cfg.Network.IP, true, nil
	case command.KeyNetworkPort:
		return strconv.Itoa(s.cfg.Network.Port), true, nil
	case command.KeyBiometricsSensitivity:
		return strconv.Itoa(s.cfg.Biometrics.Sensitivity), true, nil
	case command.KeyBiometricsSecurity:
		return strconv.Itoa(s.cfg.Biometrics.SecurityLevel), true, nil
	case command.KeyAntiPassbackMinutes:
		return strconv.Itoa(s.cfg.AntiPassback.Minutes), true, nil
	case command.KeyRotationSimDelayMS:
		return strconv.Itoa(s.cfg.Rotation.SimulateDelayMs), true, nil
	default:
		return "", false, nil
	}
}

// SetConfigValue applies an EC write, satisfying the management handler's configWriter
// extension. The dispatcher already rejects non-writable keys via
// command.IsWritable before calling this; SetConfigValue still validates
// the value's shape for the keys it knows how to parse.
func (s *Store) SetConfigValue(_ context.Context, key command.ConfigKey, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch key {
	case command.KeyDeviceID:
		n, err := parseRanged(value, 1, 99)
		if err != nil {
			return err
		}
		s.cfg.Device.ID = n
	case command.KeyDisplayMessage:
		if len(value) > 40 {
			return fmt.Errorf("config: display message exceeds 40 chars")
		}
		s.cfg.Device.DisplayMessage = value
	case command.KeyModeOnline:
		s.cfg.Mode.Online = parseBool(value)
	case command.KeyModeFallbackOffline:
		s.cfg.Mode.FallbackOffline = parseBool(value)
	case command.KeyModeFallbackTimeout:
		n, err := parseRanged(value, 500, 10000)
		if err != nil {
			return err
		}
		s.cfg.Mode.FallbackTimeoutMs = n
	case command.KeyBiometricsSensitivity:
		n, err := parseRanged(value, 48, 55)
		if err != nil {
			return err
		}
		s.cfg.Biometrics.Sensitivity = n
	case command.KeyBiometricsSecurity:
		n, err := parseRanged(value, 48, 82)
		if err != nil {
			return err
		}
		s.cfg.Biometrics.SecurityLevel = n
	case command.KeyAntiPassbackMinutes:
		n, err := parseRanged(value, 0, 999999)
		if err != nil {
			return err
		}
		s.cfg.AntiPassback.Minutes = n
	case command.KeyRotationSimDelayMS:
		n, err := parseRanged(value, 0, 60000)
		if err != nil {
			return err
		}
		s.cfg.Rotation.SimulateDelayMs = n
	default:
		return fmt.Errorf("config: %q has no write handler", key)
	}
	return nil
}

func parseRanged(value string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("config: %q is not an integer: %w", value, err)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("config: %d outside allowed range [%d,%d]", n, lo, hi)
	}
	return n, nil
}

func parseBool(value string) bool {
	switch value {
	case "H", "1", "true", "TRUE":
		return true
	default:
		return false
	}
}

func boolStr(b bool) string {
	if b {
		return "H"
	}
	return "D"
}
