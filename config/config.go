package config

import (
	"fmt"
)

const (
	// ColorAuto enables colors when stdout is a terminal
	ColorAuto = "auto"
	ColorOn   = "on"
	ColorOff  = "off"
)

// Config represents persisted debugger settings
type Config struct {
	Program     string `yaml:"program"`               // directory of the debugged main package
	Input       string `yaml:"input"`                 // directory with environment.yaml, request.yaml and keypairs
	MaxRounds   int    `yaml:"maxRounds,omitempty"`   // bound of the build and correction loop
	MaxChildren int    `yaml:"maxChildren,omitempty"` // children printed per node before [...]
	Color       string `yaml:"color,omitempty"`
}

// DefaultConfig returns configuration with default options
func DefaultConfig() *Config {
	return &Config{
		MaxRounds:   64,
		MaxChildren: 15,
		Color:       ColorAuto,
	}
}

// Init fills unset options with defaults
func (c *Config) Init() {
	defaults := DefaultConfig()
	if c.MaxRounds == 0 {
		c.MaxRounds = defaults.MaxRounds
	}
	if c.MaxChildren == 0 {
		c.MaxChildren = defaults.MaxChildren
	}
	if c.Color == "" {
		c.Color = defaults.Color
	}
}

// Validate checks option values, paths are checked by the debugger
func (c *Config) Validate() error {
	if c.Program == "" {
		return fmt.Errorf("program path was empty")
	}
	if c.Input == "" {
		return fmt.Errorf("input path was empty")
	}
	if c.MaxRounds < 1 {
		return fmt.Errorf("invalid maxRounds %d", c.MaxRounds)
	}
	if c.MaxChildren < 1 {
		return fmt.Errorf("invalid maxChildren %d", c.MaxChildren)
	}
	switch c.Color {
	case ColorAuto, ColorOn, ColorOff:
	default:
		return fmt.Errorf("invalid color %q, expected %v, %v or %v", c.Color, ColorAuto, ColorOn, ColorOff)
	}
	return nil
}
