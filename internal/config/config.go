// Package config owns the two configuration surfaces: the per-project
// .foreman/config.json checked into each repository, and the operator's
// global settings under ~/.foreman.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Dir is the per-repository configuration directory.
const Dir = ".foreman"

// ProjectConfig is the per-repository configuration file.
type ProjectConfig struct {
	Version    string `json:"version"`
	Project    string `json:"project"`
	BaseBranch string `json:"base_branch,omitempty"`
}

// LoadProject reads .foreman/config.json from the given directory.
// Resolution is cwd only, no home fallback.
func LoadProject(dir string) (*ProjectConfig, error) {
	path := filepath.Join(dir, Dir, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project config: %w", err)
	}

	var cfg ProjectConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse project config: %w", err)
	}
	return &cfg, nil
}

// SaveProject writes .foreman/config.json under the given directory.
func SaveProject(dir string, cfg *ProjectConfig) error {
	confDir := filepath.Join(dir, Dir)
	if err := os.MkdirAll(confDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s dir: %w", Dir, err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal project config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(confDir, "config.json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write project config: %w", err)
	}
	return nil
}

// Global holds operator-level settings: where durable state lives and how
// agent sessions are launched.
type Global struct {
	DatabasePath string
	WorktreeDir  string
	LogDir       string
	AgentCommand string
}

// LoadGlobal resolves global settings from ~/.foreman/config.yaml and
// FOREMAN_* environment variables, with defaults rooted in the home
// directory. A missing config file is not an error.
func LoadGlobal() (*Global, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}
	base := filepath.Join(home, Dir)

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(base)
	v.SetEnvPrefix("FOREMAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database.path", filepath.Join(base, "foreman.db"))
	v.SetDefault("worktree.dir", filepath.Join(base, "worktrees"))
	v.SetDefault("log.dir", filepath.Join(base, "logs"))
	v.SetDefault("agent.command", "claude")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read global config: %w", err)
		}
	}

	return &Global{
		DatabasePath: v.GetString("database.path"),
		WorktreeDir:  v.GetString("worktree.dir"),
		LogDir:       v.GetString("log.dir"),
		AgentCommand: v.GetString("agent.command"),
	}, nil
}
