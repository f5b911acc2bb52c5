// Package config handles loading and resolving the TopicKeeper
// configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

const (
	// LocalConfigFilename is the per-directory TopicKeeper config file.
	LocalConfigFilename = ".topickeeper.yaml"
	// ConfigAPIVersion is the current config schema apiVersion.
	ConfigAPIVersion = "skaphos.io/topickeeper/v1beta1"
	// ConfigKind is the current config schema kind.
	ConfigKind = "TopicKeeperConfig"
	// EnvConfig overrides the config location.
	EnvConfig = "TOPICKEEPER_CONFIG"
)

// ErrNoGerrit is returned when a command needs Gerrit but the config does
// not provide a complete server entry.
var ErrNoGerrit = errors.New("gerrit url, username and password must be configured")

// Gerrit holds the review server location and HTTP credentials.
type Gerrit struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Complete reports whether every field is set.
func (g Gerrit) Complete() bool {
	return strings.TrimSpace(g.URL) != "" &&
		strings.TrimSpace(g.Username) != "" &&
		g.Password != ""
}

// Target overrides the Gerrit server for one workspace root.
type Target struct {
	// Target is the workspace root. Relative paths are resolved against
	// the config file directory.
	Target string `yaml:"target"`
	Gerrit Gerrit `yaml:"gerrit"`
}

// Defaults holds default values for operations.
type Defaults struct {
	RemoteName      string `yaml:"remote_name"`
	TargetBranch    string `yaml:"target_branch"`
	CrossRepoPrefix string `yaml:"crossrepo_prefix"`
	FetchProtocol   string `yaml:"fetch_protocol"`
	HistoryDriver   string `yaml:"history_driver"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
}

// Config represents the TopicKeeper configuration.
type Config struct {
	APIVersion string   `yaml:"apiVersion"`
	Kind       string   `yaml:"kind"`
	Gerrit     Gerrit   `yaml:"gerrit"`
	Targets    []Target `yaml:"targets,omitempty"`
	Defaults   Defaults `yaml:"defaults"`
}

// DefaultConfig returns a Config with sensible defaults applied.
func DefaultConfig() Config {
	return Config{
		APIVersion: ConfigAPIVersion,
		Kind:       ConfigKind,
		Defaults: Defaults{
			TargetBranch:    "master",
			CrossRepoPrefix: "crossrepo/",
			FetchProtocol:   "ssh",
			HistoryDriver:   "file",
			TimeoutSeconds:  60,
		},
	}
}

// ConfigPath resolves the config file path from override/env/defaults.
func ConfigPath(override string) (string, error) {
	if override != "" {
		if isConfigFilePath(override) {
			return override, nil
		}
		return filepath.Join(override, "config.yaml"), nil
	}

	if env := os.Getenv(EnvConfig); env != "" {
		if isConfigFilePath(env) {
			return env, nil
		}
		return filepath.Join(env, "config.yaml"), nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "topickeeper", "config.yaml"), nil
}

// ResolveConfigPath resolves config for runtime commands.
// Order: explicit override, TOPICKEEPER_CONFIG, nearest local dotfile in
// cwd/parents, then the global platform config path.
func ResolveConfigPath(override, cwd string) (string, error) {
	if override != "" || os.Getenv(EnvConfig) != "" {
		return ConfigPath(override)
	}

	if strings.TrimSpace(cwd) == "" {
		var err error
		cwd, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}

	localPath, err := FindNearestConfigPath(cwd)
	if err != nil {
		return "", err
	}
	if localPath != "" {
		return localPath, nil
	}

	return ConfigPath("")
}

// FindNearestConfigPath searches cwd and each parent directory for
// .topickeeper.yaml. It returns an empty string when none is found.
func FindNearestConfigPath(cwd string) (string, error) {
	dir := cwd
	for {
		candidate := filepath.Join(dir, LocalConfigFilename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !os.IsNotExist(err) {
			return "", err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Load reads the config file from the given path. Target paths are made
// absolute against the config file directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigGVK(&cfg)
	if err := validateConfigGVK(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	for i := range cfg.Targets {
		cfg.Targets[i].Target = resolveTarget(path, cfg.Targets[i].Target)
	}
	return &cfg, nil
}

// LoadOrDefault is Load, but a missing file yields DefaultConfig.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		def := DefaultConfig()
		return &def, nil
	}
	return cfg, err
}

// GerritFor returns the Gerrit server for a workspace root: the longest
// matching target wins, else the top-level entry.
func (c *Config) GerritFor(root string) (Gerrit, error) {
	root = filepath.Clean(root)
	g := c.Gerrit
	best := -1
	for _, t := range c.Targets {
		if t.Target == "" || !within(root, t.Target) {
			continue
		}
		if len(t.Target) > best {
			best = len(t.Target)
			g = t.Gerrit
		}
	}
	if !g.Complete() {
		return g, ErrNoGerrit
	}
	return g, nil
}

// Timeout is the per-request HTTP timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Defaults.TimeoutSeconds) * time.Second
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func resolveTarget(configPath, target string) string {
	if strings.TrimSpace(target) == "" {
		return ""
	}
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	return filepath.Clean(filepath.Join(filepath.Dir(configPath), target))
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig().Defaults
	if cfg.Defaults.TargetBranch == "" {
		cfg.Defaults.TargetBranch = def.TargetBranch
	}
	if cfg.Defaults.CrossRepoPrefix == "" {
		cfg.Defaults.CrossRepoPrefix = def.CrossRepoPrefix
	}
	if cfg.Defaults.FetchProtocol == "" {
		cfg.Defaults.FetchProtocol = def.FetchProtocol
	}
	if cfg.Defaults.HistoryDriver == "" {
		cfg.Defaults.HistoryDriver = def.HistoryDriver
	}
	if cfg.Defaults.TimeoutSeconds == 0 {
		cfg.Defaults.TimeoutSeconds = def.TimeoutSeconds
	}
}

func isConfigFilePath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func applyConfigGVK(cfg *Config) {
	if strings.TrimSpace(cfg.APIVersion) == "" {
		cfg.APIVersion = ConfigAPIVersion
	}
	if strings.TrimSpace(cfg.Kind) == "" {
		cfg.Kind = ConfigKind
	}
}

func validateConfigGVK(cfg *Config) error {
	if cfg.APIVersion != ConfigAPIVersion {
		return fmt.Errorf("unsupported config apiVersion %q (expected %q)", cfg.APIVersion, ConfigAPIVersion)
	}
	if cfg.Kind != ConfigKind {
		return fmt.Errorf("unsupported config kind %q (expected %q)", cfg.Kind, ConfigKind)
	}
	return nil
}
