package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the YAML configuration file. Keys mirror the CLI flag names.
type File struct {
	Output        string        `yaml:"output"`
	MaxDepth      int           `yaml:"max-depth"`
	MaxFetches    int           `yaml:"max-fetches"`
	Concurrency   int           `yaml:"concurrency"`
	Timeout       time.Duration `yaml:"timeout"`
	TotalTimeout  time.Duration `yaml:"total-timeout"`
	CAFile        string        `yaml:"ca-file"`
	Insecure      bool          `yaml:"insecure"`
	UserAgent     string        `yaml:"user-agent"`
	MaxBodySize   int64         `yaml:"max-body-size"`
	RespectRobots bool          `yaml:"respect-robots"`
	StripDomain   bool          `yaml:"strip-domain"`
	Sort          bool          `yaml:"sort"`
	Report        string        `yaml:"report"`
	History       bool          `yaml:"history"`
	DBDir         string        `yaml:"db-dir"`
	LogLevel      string        `yaml:"log-level"`
	Addr          string        `yaml:"addr"`
}

// LoadConfigFile reads a YAML config file. A missing file yields ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load resolves the config file for c: an explicit ConfigFilePath must exist,
// the XDG default may be absent. It returns nil when no file applies.
func (c *Config) Load() (*File, error) {
	if c.ConfigFilePath != "" {
		return LoadConfigFile(c.ConfigFilePath)
	}
	f, err := LoadConfigFile(DefaultConfigPath())
	if errors.Is(err, ErrConfigNotFound) {
		return nil, nil
	}
	return f, err
}

// Merge copies values set in f into c, skipping any key for which
// explicit(key) reports a command-line override.
func (c *Config) Merge(f *File, explicit func(key string) bool) {
	if f == nil {
		return
	}
	if explicit == nil {
		explicit = func(string) bool { return false }
	}
	setString := func(key string, dst *string, v string) {
		if v != "" && !explicit(key) {
			*dst = v
		}
	}
	setInt := func(key string, dst *int, v int) {
		if v != 0 && !explicit(key) {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool, v bool) {
		if v && !explicit(key) {
			*dst = v
		}
	}
	setDuration := func(key string, dst *time.Duration, v time.Duration) {
		if v != 0 && !explicit(key) {
			*dst = v
		}
	}

	setString("output", &c.Output, f.Output)
	setInt("max-depth", &c.MaxDepth, f.MaxDepth)
	setInt("max-fetches", &c.MaxFetches, f.MaxFetches)
	setInt("concurrency", &c.Concurrency, f.Concurrency)
	setDuration("timeout", &c.Timeout, f.Timeout)
	setDuration("total-timeout", &c.TotalTimeout, f.TotalTimeout)
	setString("ca-file", &c.CAFile, f.CAFile)
	setBool("insecure", &c.Insecure, f.Insecure)
	setString("user-agent", &c.UserAgent, f.UserAgent)
	if f.MaxBodySize != 0 && !explicit("max-body-size") {
		c.MaxBodySize = f.MaxBodySize
	}
	setBool("respect-robots", &c.RespectRobots, f.RespectRobots)
	setBool("strip-domain", &c.StripDomain, f.StripDomain)
	setBool("sort", &c.Sort, f.Sort)
	setString("report", &c.ReportFile, f.Report)
	setBool("history", &c.History, f.History)
	setString("db-dir", &c.DBDir, f.DBDir)
	setString("log-level", &c.LogLevel, f.LogLevel)
	setString("addr", &c.Addr, f.Addr)
}
