package app

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig represents the single-file YAML configuration schema. Nested
// sections map naturally to flags and env.
type FileConfig struct {
	Source struct {
		LoginURL  string `yaml:"loginURL"`
		EventsURL string `yaml:"eventsURL"`
		Username  string `yaml:"username"`
		Password  string `yaml:"password"`
		UserAgent string `yaml:"userAgent"`
	} `yaml:"source"`

	Line struct {
		Token      string   `yaml:"token"`
		Recipients []string `yaml:"recipients"`
		Broadcast  bool     `yaml:"broadcast"`
	} `yaml:"line"`

	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`

	MaxPosts     int           `yaml:"maxPosts"`
	FetchTimeout time.Duration `yaml:"fetchTimeout"`
	SendPause    time.Duration `yaml:"sendPause"`
	SnapshotDir  string        `yaml:"snapshotDir"`
	DryRun       bool          `yaml:"dryRun"`
	Verbose      bool          `yaml:"verbose"`
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fc, fmt.Errorf("parse yaml: %w", err)
	}
	return fc, nil
}

// ApplyFileConfig overlays values from FileConfig into cfg for fields that
// are currently unset. Flags should already have been parsed; this lets the
// file supply defaults while explicit flags and env keep precedence.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	if cfg.LoginURL == "" {
		cfg.LoginURL = fc.Source.LoginURL
	}
	if cfg.EventsURL == "" {
		cfg.EventsURL = fc.Source.EventsURL
	}
	if cfg.Username == "" {
		cfg.Username = fc.Source.Username
	}
	if cfg.Password == "" {
		cfg.Password = fc.Source.Password
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = fc.Source.UserAgent
	}

	if cfg.LineToken == "" {
		cfg.LineToken = fc.Line.Token
	}
	if len(cfg.Recipients) == 0 && len(fc.Line.Recipients) > 0 {
		cfg.Recipients = append([]string{}, fc.Line.Recipients...)
	}
	if !cfg.Broadcast && fc.Line.Broadcast {
		cfg.Broadcast = true
	}

	if cfg.StorePath == "" {
		cfg.StorePath = fc.Store.Path
	}
	if cfg.MaxPosts == 0 && fc.MaxPosts > 0 {
		cfg.MaxPosts = fc.MaxPosts
	}
	if cfg.FetchTimeout == 0 && fc.FetchTimeout > 0 {
		cfg.FetchTimeout = fc.FetchTimeout
	}
	if cfg.SendPause == 0 && fc.SendPause > 0 {
		cfg.SendPause = fc.SendPause
	}
	if cfg.SnapshotDir == "" {
		cfg.SnapshotDir = fc.SnapshotDir
	}
	if !cfg.DryRun && fc.DryRun {
		cfg.DryRun = true
	}
	if !cfg.Verbose && fc.Verbose {
		cfg.Verbose = true
	}
}
