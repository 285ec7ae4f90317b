package command

import (
	"fmt"

	"github.com/henryproto/turnstile-emu/internal/protocol/henry/message"
)

const (
	CommandEC = "EC" // Enviar Configuração: host writes a config key/value.
	CommandRC = "RC" // Receber Configuração: host queries (and device answers) a config key.

	opcodeConfigSet   = "00+0+"
	opcodeConfigQuery = "00+1+"
)

// ConfigKey names a known configuration key. The device rejects any key
// outside this set with ErrUnknownKey.
type ConfigKey string

const (
	KeyDeviceID             ConfigKey = "DEVICE.ID"
	KeyDisplayMessage       ConfigKey = "DISPLAY.MESSAGE"
	KeyModeOnline           ConfigKey = "MODE.ONLINE"
	KeyModeFallbackOffline  ConfigKey = "MODE.FALLBACK_OFFLINE"
	KeyModeFallbackTimeout  ConfigKey = "MODE.FALLBACK_TIMEOUT_MS"
	KeyNetworkTCPMode       ConfigKey = "NETWORK.TCP_MODE"
	KeyNetworkIP            ConfigKey = "NETWORK.IP"
	KeyNetworkPort          ConfigKey = "NETWORK.PORT"
	KeyBiometricsSensitivity ConfigKey = "BIOMETRICS.SENSITIVITY"
	KeyBiometricsSecurity   ConfigKey = "BIOMETRICS.SECURITY_LEVEL"
	KeyAntiPassbackMinutes  ConfigKey = "ANTI_PASSBACK.MINUTES"
	KeyRotationSimDelayMS   ConfigKey = "ROTATION.SIMULATE_DELAY_MS"
)

// knownConfigKeys also doubles as the per-key read/write capability table:
// a key maps to true if the host may write it (H, "habilitado"), false if
// it is device-reported and read-only (D, "dado").
var knownConfigKeys = map[ConfigKey]bool{
	KeyDeviceID:              true,
	KeyDisplayMessage:        true,
	KeyModeOnline:            true,
	KeyModeFallbackOffline:   true,
	KeyModeFallbackTimeout:   true,
	KeyNetworkTCPMode:        false,
	KeyNetworkIP:             false,
	KeyNetworkPort:           false,
	KeyBiometricsSensitivity: true,
	KeyBiometricsSecurity:    true,
	KeyAntiPassbackMinutes:   true,
	KeyRotationSimDelayMS:    true,
}

// IsWritable reports whether key may be set via SetConfig. Unknown keys
// are reported not writable.
func IsWritable(key ConfigKey) bool {
	return knownConfigKeys[key]
}

// SetConfig is an EC message: the host asks the device to adopt a new
// value for a configuration key.
type SetConfig struct {
	Key   ConfigKey
	Value string
}

func (s SetConfig) ToMessage(deviceID int) message.Message {
	return message.Message{
		DeviceID:    deviceID,
		HasDeviceID: true,
		Command:     CommandEC,
		Opcode:      opcodeConfigSet,
		Payload: []message.Record{
			{message.NewField(string(s.Key)), message.NewField(s.Value)},
		},
	}
}

func SetConfigFromMessage(m message.Message) (SetConfig, error) {
	if m.Command != CommandEC {
		return SetConfig{}, fmt.Errorf("%w: got %q", ErrWrongCommand, m.Command)
	}
	if len(m.Payload) == 0 || len(m.Payload[0]) < 2 {
		return SetConfig{}, ErrMalformedPayload
	}
	key := ConfigKey(m.Field(0, 0).Value())
	if _, known := knownConfigKeys[key]; !known {
		return SetConfig{}, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return SetConfig{Key: key, Value: m.Field(0, 1).Value()}, nil
}

// QueryConfig is an RC message sent by the host with no value: a request
// for the device's current value of a configuration key.
type QueryConfig struct {
	Key ConfigKey
}

func (q QueryConfig) ToMessage(deviceID int) message.Message {
	return message.Message{
		DeviceID:    deviceID,
		HasDeviceID: true,
		Command:     CommandRC,
		Opcode:      opcodeConfigQuery,
		Payload: []message.Record{
			{message.NewField(string(q.Key))},
		},
	}
}

func QueryConfigFromMessage(m message.Message) (QueryConfig, error) {
	if m.Command != CommandRC {
		return QueryConfig{}, fmt.Errorf("%w: got %q", ErrWrongCommand, m.Command)
	}
	if len(m.Payload) == 0 {
		return QueryConfig{}, ErrMalformedPayload
	}
	return QueryConfig{Key: ConfigKey(m.RecordValue(0))}, nil
}

// ConfigValue is the device's answer to a QueryConfig (also an RC
// message, but carrying key and value like SetConfig does).
type ConfigValue struct {
	Key   ConfigKey
	Value string
}

func (c ConfigValue) ToMessage(deviceID int) message.Message {
	return message.Message{
		DeviceID:    deviceID,
		HasDeviceID: true,
		Command:     CommandRC,
		Opcode:      opcodeConfigSet,
		Payload: []message.Record{
			{message.NewField(string(c.Key)), message.NewField(c.Value)},
		},
	}
}

func ConfigValueFromMessage(m message.Message) (ConfigValue, error) {
	if m.Command != CommandRC {
		return ConfigValue{}, fmt.Errorf("%w: got %q", ErrWrongCommand, m.Command)
	}
	if len(m.Payload) == 0 || len(m.Payload[0]) < 2 {
		return ConfigValue{}, ErrMalformedPayload
	}
	return ConfigValue{Key: ConfigKey(m.Field(0, 0).Value()), Value: m.Field(0, 1).Value()}, nil
}
