/*
Package config loads the engine's flat key/value configuration.

# Overview

Config wraps a map[string]any and provides typed accessor methods that handle
missing keys and type mismatches by returning default values. Parse turns a
Config into a validated EngineConfig.

Recognized keys:

	target_fps          positive number, default 60, sets the frame interval
	debug_mode          bool, raises log verbosity only
	ui_enabled          bool, informational
	max_history         positive int, event history capacity, default 1000
	telemetry_interval  frames between FrameCompleted events, default 60, 0 disables

# Sources

Load configuration from YAML, JSON, or TOML files, overlaid by environment variables:

	cfg, err := config.Load("engine.yaml")

	// Or assemble the pieces yourself
	fileCfg, err := config.FromFile("engine.json")
	envCfg, err := config.FromEnv() // RPGENGINE_TARGET_FPS, RPGENGINE_DEBUG_MODE, ...
	engineCfg, err := config.Parse(fileCfg.Merge(envCfg))

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation.
*/
package config
