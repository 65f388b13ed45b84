// Package config loads the YAML settings shared by the CLI commands.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/astei/anvilworld/anvil"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	LogLevel   string `yaml:"log_level"`
	LogColor   bool   `yaml:"log_color"`
	MinHeight  int    `yaml:"min_height"`
	MaxHeight  int    `yaml:"max_height"`
	HistoryDir string `yaml:"history_dir"`

	Slime Slime `yaml:"slime"`
}

type Slime struct {
	// Level is a zstd level name: fastest, default, better or best.
	Level string `yaml:"level"`
}

func Defaults() Config {
	return Config{
		LogLevel:   "info",
		MinHeight:  anvil.DefaultBounds.Min,
		MaxHeight:  anvil.DefaultBounds.Max,
		HistoryDir: anvil.DefaultHistoryDir,
		Slime:      Slime{Level: "default"},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values.
func Load(path string) (Config, error) {
	c := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.MaxHeight <= c.MinHeight {
		return fmt.Errorf("%w: max_height %d must be above min_height %d", ErrInvalid, c.MaxHeight, c.MinHeight)
	}
	if c.MinHeight%anvil.SectionSize != 0 || c.MaxHeight%anvil.SectionSize != 0 {
		return fmt.Errorf("%w: heights must be multiples of %d", ErrInvalid, anvil.SectionSize)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := c.EncoderLevel(); err != nil {
		return err
	}
	return nil
}

func (c Config) EncoderLevel() (zstd.EncoderLevel, error) {
	ok, level := zstd.EncoderLevelFromString(strings.ToLower(c.Slime.Level))
	if !ok {
		return 0, fmt.Errorf("%w: unknown slime level %q", ErrInvalid, c.Slime.Level)
	}
	return level, nil
}

// Logger builds the logger the CLI hands to the adapter.
func (c Config) Logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		ForceColors:   c.LogColor,
		DisableColors: !c.LogColor,
		FullTimestamp: true,
	})
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	return logger
}

// AdapterOptions returns the adapter options this configuration implies.
func (c Config) AdapterOptions(logger *logrus.Logger) anvil.Options {
	return anvil.Options{
		MinHeight:  c.MinHeight,
		MaxHeight:  c.MaxHeight,
		HistoryDir: c.HistoryDir,
		Logger:     logrus.NewEntry(logger),
	}
}
