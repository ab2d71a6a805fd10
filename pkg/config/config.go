// Package config handles tapevm.toml run configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"tapevm/pkg/machine"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "tapevm.toml"

// Config represents a tapevm.toml file.
type Config struct {
	Run     Run     `toml:"run"`
	Log     Log     `toml:"log"`
	Desktop Desktop `toml:"desktop"`

	// Path is the file the config was loaded from, empty for defaults.
	Path string `toml:"-"`
}

// Run configures compilation and execution.
type Run struct {
	EOF      string `toml:"eof"`       // error, unchanged or zero
	MaxSteps uint64 `toml:"max_steps"` // 0 = unlimited
	Coalesce bool   `toml:"coalesce"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Desktop configures the graphical front-end.
type Desktop struct {
	StepsPerFrame int    `toml:"steps_per_frame"`
	Columns       int    `toml:"columns"`
	Title         string `toml:"title"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Run: Run{
			EOF:      "error",
			Coalesce: true,
		},
		Desktop: Desktop{
			StepsPerFrame: 5000,
			Columns:       16,
			Title:         "tapevm",
		},
	}
}

// Load parses the configuration file at path on top of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if _, err := toml.Decode(string(data), c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.Path = path
	return c, nil
}

// FindAndLoad walks up from startDir looking for tapevm.toml and loads the
// first one found. It returns Default if there is none.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", startDir, err)
	}
	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// Validate checks values that cannot be caught by decoding.
func (c *Config) Validate() error {
	if _, err := machine.ParseEOFMode(c.Run.EOF); err != nil {
		return fmt.Errorf("run.eof: %w", err)
	}
	if c.Desktop.StepsPerFrame < 1 {
		return fmt.Errorf("desktop.steps_per_frame must be positive, got %d", c.Desktop.StepsPerFrame)
	}
	if c.Desktop.Columns < 1 {
		return fmt.Errorf("desktop.columns must be positive, got %d", c.Desktop.Columns)
	}
	return nil
}

// EOFMode returns the parsed run.eof setting.
func (c *Config) EOFMode() machine.EOFMode {
	mode, _ := machine.ParseEOFMode(c.Run.EOF)
	return mode
}
