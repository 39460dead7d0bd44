package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"wmbench/internal/attack"
	"wmbench/internal/audio"
	"wmbench/internal/conversion"
	"wmbench/internal/watermarking"
)

// Provider configures one watermark provider. Params are handed to the
// provider kind as JSON.
type Provider struct {
	Name   string                 `yaml:"name"`
	Kind   string                 `yaml:"kind"`
	Params map[string]interface{} `yaml:"params"`
}

// Conversion selects the voice conversion backend shared by all attacks.
type Conversion struct {
	Kind   string                 `yaml:"kind"`
	Params map[string]interface{} `yaml:"params"`
}

// Attack configures one attack variant.
type Attack struct {
	Name           string   `yaml:"name"`
	Kind           string   `yaml:"kind"`
	Intermediaries []string `yaml:"intermediaries"`
}

// Config stores all configuration for the application.
type Config struct {
	AudioDir      string   `yaml:"audio_dir"`
	Extensions    []string `yaml:"extensions"`
	OutputFile    string   `yaml:"output_file"`
	Rows          int      `yaml:"rows"`
	TempArtifact  string   `yaml:"temp_artifact"`
	BitDepth      int      `yaml:"bit_depth"`
	MissingMarker string   `yaml:"missing_marker"`
	Seed          int64    `yaml:"seed"`
	LogLevel      string   `yaml:"log_level"`
	DatabaseURL   string   `yaml:"database_url"`
	Port          string   `yaml:"api_port"`

	Providers  []Provider `yaml:"providers"`
	Conversion Conversion `yaml:"conversion"`
	Attacks    []Attack   `yaml:"attacks"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		AudioDir:      "../librispeech",
		OutputFile:    "data.csv",
		Rows:          2,
		TempArtifact:  "being_attacked.wav",
		BitDepth:      audio.DefaultBitDepth,
		MissingMarker: "NA",
		LogLevel:      "info",
		Port:          "8080",
		// Two independently keyed marks so the interference phase layers
		// one over the other.
		Providers: []Provider{
			{Name: "spread", Kind: "spread"},
			{Name: "spread_fine", Kind: "spread", Params: map[string]interface{}{
				"strength": 0.02,
				"block":    1024,
			}},
		},
		Conversion: Conversion{Kind: conversion.IdentityKind},
		Attacks: []Attack{
			{Name: "self_conversion_attack", Kind: "self"},
			{Name: "multiple_conversion_attack", Kind: "chained", Intermediaries: []string{"hello.wav", "sample_taiwanese.wav"}},
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (or WMBENCH_CONFIG when path is empty), then environment variables.
func Load(path string) (*Config, error) {
	// Load .env file if it exists (useful for local development without Docker)
	godotenv.Load()

	cfg := Default()
	if path == "" {
		path = os.Getenv("WMBENCH_CONFIG")
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"AUDIO_DIR":     &c.AudioDir,
		"OUTPUT_FILE":   &c.OutputFile,
		"TEMP_ARTIFACT": &c.TempArtifact,
		"DATABASE_URL":  &c.DatabaseURL,
		"API_PORT":      &c.Port,
		"LOG_LEVEL":     &c.LogLevel,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("OUTPUT_ROWS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("OUTPUT_ROWS: %w", err)
		}
		c.Rows = n
	}
	if v := os.Getenv("WMBENCH_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("WMBENCH_SEED: %w", err)
		}
		c.Seed = n
	}
	return nil
}

func params(m map[string]interface{}) (json.RawMessage, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

// ProviderSpecs converts the provider entries for watermarking.NewSet.
func (c *Config) ProviderSpecs() ([]watermarking.Spec, error) {
	specs := make([]watermarking.Spec, 0, len(c.Providers))
	for _, p := range c.Providers {
		raw, err := params(p.Params)
		if err != nil {
			return nil, fmt.Errorf("provider %s params: %w", p.Name, err)
		}
		specs = append(specs, watermarking.Spec{Name: p.Name, Kind: p.Kind, Params: raw})
	}
	return specs, nil
}

// ConversionSpec converts the conversion entry for conversion.New.
func (c *Config) ConversionSpec() (conversion.Spec, error) {
	raw, err := params(c.Conversion.Params)
	if err != nil {
		return conversion.Spec{}, fmt.Errorf("conversion params: %w", err)
	}
	return conversion.Spec{Kind: c.Conversion.Kind, Params: raw}, nil
}

// AttackSpecs converts and validates the attack entries.
func (c *Config) AttackSpecs() ([]attack.Spec, error) {
	specs := make([]attack.Spec, 0, len(c.Attacks))
	for _, a := range c.Attacks {
		kind, err := attack.ParseKind(a.Kind)
		if err != nil {
			return nil, fmt.Errorf("attack %s: %w", a.Name, err)
		}
		spec := attack.Spec{Name: a.Name, Kind: kind, Intermediaries: a.Intermediaries}
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Level parses LogLevel.
func (c *Config) Level() (logrus.Level, error) {
	return logrus.ParseLevel(c.LogLevel)
}

// Validate reports every problem found in the configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.Rows < 1 {
		errs = append(errs, fmt.Errorf("rows must be at least 1, got %d", c.Rows))
	}
	if c.OutputFile == "" {
		errs = append(errs, errors.New("output_file is required"))
	}
	switch c.BitDepth {
	case 8, 16, 24, 32:
	default:
		errs = append(errs, fmt.Errorf("unsupported bit_depth %d", c.BitDepth))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}

	if len(c.Providers) == 0 {
		errs = append(errs, errors.New("at least one provider is required"))
	}
	names := make(map[string]bool)
	for _, p := range c.Providers {
		if p.Name == "" {
			errs = append(errs, errors.New("provider with empty name"))
		} else if names[p.Name] {
			errs = append(errs, fmt.Errorf("duplicate provider '%s'", p.Name))
		}
		names[p.Name] = true
	}

	attacks := make(map[string]bool)
	for _, a := range c.Attacks {
		if attacks[a.Name] {
			errs = append(errs, fmt.Errorf("duplicate attack '%s'", a.Name))
		}
		attacks[a.Name] = true
	}
	if _, err := c.AttackSpecs(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Attacks) > 0 && c.TempArtifact == "" {
		errs = append(errs, errors.New("temp_artifact is required when attacks are configured"))
	}
	return errors.Join(errs...)
}
