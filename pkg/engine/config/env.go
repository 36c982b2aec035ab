package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// envOverrides maps RPGENGINE_* variables onto config keys.
// Pointer fields stay nil when the variable is unset.
type envOverrides struct {
	TargetFPS         *float64 `env:"RPGENGINE_TARGET_FPS"`
	DebugMode         *bool    `env:"RPGENGINE_DEBUG_MODE"`
	UIEnabled         *bool    `env:"RPGENGINE_UI_ENABLED"`
	MaxHistory        *int     `env:"RPGENGINE_MAX_HISTORY"`
	TelemetryInterval *int     `env:"RPGENGINE_TELEMETRY_INTERVAL"`
}

// FromEnv reads the RPGENGINE_* environment variables into a Config
// containing only the keys that were set.
func FromEnv() (Config, error) {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	m := make(map[string]any)
	if o.TargetFPS != nil {
		m[KeyTargetFPS] = *o.TargetFPS
	}
	if o.DebugMode != nil {
		m[KeyDebugMode] = *o.DebugMode
	}
	if o.UIEnabled != nil {
		m[KeyUIEnabled] = *o.UIEnabled
	}
	if o.MaxHistory != nil {
		m[KeyMaxHistory] = *o.MaxHistory
	}
	if o.TelemetryInterval != nil {
		m[KeyTelemetryInterval] = *o.TelemetryInterval
	}
	return New(m), nil
}
