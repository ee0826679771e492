package config

import (
	"errors"
	"fmt"

	"github.com/goccy/go-yaml"
)

// MaxInputSize limits YAML input to prevent memory exhaustion.
var MaxInputSize = 1 << 20

var (
	ErrEmptyInput    = errors.New("empty config input")
	ErrInputTooLarge = errors.New("config input exceeds maximum size")
)

// decodeStrict parses data into v, rejecting unknown fields so typos in
// keys surface as errors instead of silently keeping defaults.
func decodeStrict(data []byte, v any) error {
	if len(data) == 0 {
		return ErrEmptyInput
	}
	if len(data) > MaxInputSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrInputTooLarge, len(data), MaxInputSize)
	}
	if err := yaml.UnmarshalWithOptions(data, v, yaml.Strict()); err != nil {
		return err
	}
	return nil
}

// YAML renders the effective configuration, used by --print-config.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return out, nil
}
