package config

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Recognized engine configuration keys.
const (
	KeyTargetFPS         = "target_fps"
	KeyDebugMode         = "debug_mode"
	KeyUIEnabled         = "ui_enabled"
	KeyMaxHistory        = "max_history"
	KeyTelemetryInterval = "telemetry_interval"
)

// Defaults for EngineConfig.
const (
	DefaultTargetFPS         = 60.0
	DefaultMaxHistory        = 1000
	DefaultTelemetryInterval = 60
)

// ErrInvalidConfig is wrapped by every validation error returned from Parse.
var ErrInvalidConfig = errors.New("invalid engine config")

// EngineConfig is the validated engine configuration.
type EngineConfig struct {
	// TargetFPS determines the update loop's frame interval.
	TargetFPS float64

	// DebugMode raises logging verbosity. It has no effect on engine behavior.
	DebugMode bool

	// UIEnabled is informational for hosts that attach a presentation layer.
	UIEnabled bool

	// MaxHistory bounds the event bus history ring.
	MaxHistory int

	// TelemetryInterval publishes a FrameCompleted event every N frames.
	// Zero disables frame telemetry.
	TelemetryInterval int
}

// Default returns the configuration used when no keys are set.
func Default() EngineConfig {
	return EngineConfig{
		TargetFPS:         DefaultTargetFPS,
		MaxHistory:        DefaultMaxHistory,
		TelemetryInterval: DefaultTelemetryInterval,
	}
}

// Parse extracts and validates an EngineConfig. Unknown keys are ignored.
func Parse(c Config) (EngineConfig, error) {
	cfg := Default()

	if c.Has(KeyTargetFPS) {
		fps := c.Float(KeyTargetFPS, math.NaN())
		if math.IsNaN(fps) || math.IsInf(fps, 0) || fps <= 0 {
			return EngineConfig{}, fmt.Errorf("%w: %s must be a positive number, got %v",
				ErrInvalidConfig, KeyTargetFPS, c.Raw()[KeyTargetFPS])
		}
		cfg.TargetFPS = fps
	}

	if c.Has(KeyMaxHistory) {
		n := c.Int(KeyMaxHistory, 0)
		if n <= 0 {
			return EngineConfig{}, fmt.Errorf("%w: %s must be a positive integer, got %v",
				ErrInvalidConfig, KeyMaxHistory, c.Raw()[KeyMaxHistory])
		}
		cfg.MaxHistory = n
	}

	if c.Has(KeyTelemetryInterval) {
		n := c.Int(KeyTelemetryInterval, -1)
		if n < 0 {
			return EngineConfig{}, fmt.Errorf("%w: %s must be a non-negative integer, got %v",
				ErrInvalidConfig, KeyTelemetryInterval, c.Raw()[KeyTelemetryInterval])
		}
		cfg.TelemetryInterval = n
	}

	cfg.DebugMode = c.Bool(KeyDebugMode, false)
	cfg.UIEnabled = c.Bool(KeyUIEnabled, false)

	return cfg, nil
}

// FrameInterval is the target duration of one update loop iteration.
func (c EngineConfig) FrameInterval() time.Duration {
	fps := c.TargetFPS
	if fps <= 0 {
		fps = DefaultTargetFPS
	}
	return time.Duration(float64(time.Second) / fps)
}
