package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"gateci/internal/core"
	"gateci/internal/trigger"
)

// TriggerConfig are the qualification rules, as written in the config file.
type TriggerConfig struct {
	PushBranches []string `yaml:"push_branches"`
	PushIgnore   []string `yaml:"push_ignore"`
	PRIgnore     []string `yaml:"pull_request_ignore"`
}

// Config is the full configuration of the server and the runner.
type Config struct {
	Listen        string        `yaml:"listen"`
	Workdir       string        `yaml:"workdir"`
	CacheDir      string        `yaml:"cache_dir"`
	LogDir        string        `yaml:"log_dir"`
	HistoryPath   string        `yaml:"history"`
	WebhookSecret string        `yaml:"webhook_secret"`
	Triggers      TriggerConfig `yaml:"triggers"`

	Tool               string     `yaml:"tool"`
	Toolchain          string     `yaml:"toolchain"`
	ToolchainEnv       string     `yaml:"toolchain_env"`
	ToolchainInstaller []string   `yaml:"toolchain_installer"`
	BacktraceEnv       string     `yaml:"backtrace_env"`
	Backtrace          string     `yaml:"backtrace"`
	LockFile           string     `yaml:"lock_file"`
	Environments       []string   `yaml:"environments"`
	Jobs               []core.Job `yaml:"jobs"`
}

// Default returns the stock configuration: three checks against a
// single environment, pushes to main only, docs changes ignored.
func Default() *Config {
	run := core.DefaultRunConfig(".")
	rules := trigger.DefaultRules()
	return &Config{
		Listen:       ":8080",
		Workdir:      ".",
		CacheDir:     "./cache",
		LogDir:       "./logs",
		HistoryPath:  "./history.jsonl",
		Triggers: TriggerConfig{
			PushBranches: rules.PushBranches,
			PushIgnore:   rules.PushIgnore,
			PRIgnore:     rules.PRIgnore,
		},
		Tool:         run.Tool,
		Toolchain:    run.DefaultToolchain,
		ToolchainEnv: run.ToolchainEnv,
		BacktraceEnv: run.BacktraceEnv,
		Backtrace:    run.Backtrace,
		LockFile:     run.LockFile,
		Environments: run.Environments,
		Jobs:         core.DefaultJobs(),
	}
}

// Load reads a yaml config file. Absent fields keep their defaults; an
// empty path returns the defaults untouched.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Rules converts the trigger section into evaluator rules.
func (c *Config) Rules() trigger.Rules {
	return trigger.Rules{
		PushBranches: c.Triggers.PushBranches,
		PushIgnore:   c.Triggers.PushIgnore,
		PRIgnore:     c.Triggers.PRIgnore,
	}
}

// RunConfig converts the runner section into the runner's config.
func (c *Config) RunConfig() core.RunConfig {
	return core.RunConfig{
		Tool:               c.Tool,
		DefaultToolchain:   c.Toolchain,
		ToolchainEnv:       c.ToolchainEnv,
		ToolchainInstaller: c.ToolchainInstaller,
		BacktraceEnv:       c.BacktraceEnv,
		Backtrace:          c.Backtrace,
		Workdir:            c.Workdir,
		LockFile:           c.LockFile,
		CacheScope:         "deps",
		CacheTarget:        "target",
		Environments:       c.Environments,
	}
}
