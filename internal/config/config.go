// Package config holds converter settings: defaults < config file < flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Waterpicker/JglTF/skeleton"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Convert  ConvertConfig  `yaml:"convert" toml:"convert"`
	Textures TexturesConfig `yaml:"textures" toml:"textures"`
	Output   OutputConfig   `yaml:"output" toml:"output"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

type ConvertConfig struct {
	Scale        float32 `yaml:"scale" toml:"scale"`
	FrameRate    float32 `yaml:"frame_rate" toml:"frame_rate"`
	RotateX      bool    `yaml:"rotate_x" toml:"rotate_x"`
	RootPolicy   string  `yaml:"root_policy" toml:"root_policy"`
	ImplicitBone string  `yaml:"implicit_bone" toml:"implicit_bone"`
	Unlit        bool    `yaml:"unlit" toml:"unlit"`
}

type TexturesConfig struct {
	Format        string  `yaml:"format" toml:"format"` // png or webp
	Scale         float32 `yaml:"scale" toml:"scale"`
	MaxResolution int     `yaml:"max_resolution" toml:"max_resolution"`
	ReCompress    bool    `yaml:"recompress" toml:"recompress"`
	Interactive   bool    `yaml:"interactive" toml:"interactive"`
}

type OutputConfig struct {
	Format string `yaml:"format" toml:"format"` // glb or gltf
	Dir    string `yaml:"dir" toml:"dir"`
}

type LoggingConfig struct {
	Level string `yaml:"level" toml:"level"`
	File  string `yaml:"file" toml:"file"`
}

func Default() *Config {
	return &Config{
		Convert: ConvertConfig{
			Scale:        1,
			RootPolicy:   "first-with-children",
			ImplicitBone: "blender_implicit",
		},
		Textures: TexturesConfig{
			Format: "png",
			Scale:  1,
		},
		Output: OutputConfig{
			Format: "glb",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate rejects values the converter cannot use.
func (c *Config) Validate() error {
	if c.Convert.Scale <= 0 {
		return fmt.Errorf("convert.scale must be positive, got %v", c.Convert.Scale)
	}
	if c.Convert.FrameRate < 0 {
		return fmt.Errorf("convert.frame_rate must not be negative, got %v", c.Convert.FrameRate)
	}
	if _, err := skeleton.ParseRootPolicy(c.Convert.RootPolicy); err != nil {
		return fmt.Errorf("convert.root_policy: %w", err)
	}
	switch c.Textures.Format {
	case "png", "webp":
	default:
		return fmt.Errorf("textures.format: unknown format %q", c.Textures.Format)
	}
	if c.Textures.Scale <= 0 {
		return fmt.Errorf("textures.scale must be positive, got %v", c.Textures.Scale)
	}
	switch c.Output.Format {
	case "glb", "gltf":
	default:
		return fmt.Errorf("output.format: unknown format %q", c.Output.Format)
	}
	return nil
}

// LoadFile merges the file at path into cfg. The format follows the extension.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.UnmarshalStrict(data, cfg)
	case ".toml":
		return toml.Unmarshal(data, cfg)
	}
	return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
}

// Load returns defaults overlaid with the config file, if any.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := LoadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}
	return cfg, nil
}
