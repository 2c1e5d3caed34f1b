// Package taskconfig loads the task subsystem's two configuration
// structs (store limits, security policy) from an optional YAML file
// overridden by environment variables, mirroring contextd's own
// env-over-YAML-over-defaults precedence.
package taskconfig

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/fyrsmithlabs/contextd/pkg/taskstore"
)

const maxConfigFileSize = 1 << 20 // 1 MiB, same cap as contextd's own config loader

// Config is the top-level shape loaded from YAML/env, unmarshaled into
// the domain's own StoreConfig/TaskSecurityConfig types.
type Config struct {
	TaskStore    taskstore.StoreConfig         `koanf:"taskstore"`
	TaskSecurity taskstore.TaskSecurityConfig  `koanf:"tasksecurity"`
}

// Load reads configPath (if non-empty and present) then applies
// environment overrides of the form TASKSTORE_MAX_VARIABLE_SIZE_BYTES,
// TASKSECURITY_MAX_TASKS_PER_OWNER, etc. Defaults are applied for any
// field left at its zero value afterward.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if err := loadFile(k, configPath); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("taskconfig: failed to load environment variables: %w", err)
	}

	cfg := defaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("taskconfig: failed to unmarshal config: %w", err)
	}
	applyZeroValueDefaults(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		TaskStore:    taskstore.DefaultStoreConfig(),
		TaskSecurity: taskstore.DefaultTaskSecurityConfig(),
	}
}

// applyZeroValueDefaults re-applies defaults for fields koanf may have
// zeroed out by unmarshaling a partial YAML/env overlay over them; koanf
// overwrites the whole struct rather than merging field-by-field against
// a pre-populated Go default.
func applyZeroValueDefaults(cfg *Config) {
	defaults := taskstore.DefaultStoreConfig()
	if cfg.TaskStore.MaxVariableSizeBytes == 0 {
		cfg.TaskStore.MaxVariableSizeBytes = defaults.MaxVariableSizeBytes
	}
	if cfg.TaskStore.DefaultTTLMs == 0 {
		cfg.TaskStore.DefaultTTLMs = defaults.DefaultTTLMs
	}
	if cfg.TaskStore.MaxTTLMs == 0 {
		cfg.TaskStore.MaxTTLMs = defaults.MaxTTLMs
	}
	secDefaults := taskstore.DefaultTaskSecurityConfig()
	if cfg.TaskSecurity.MaxTasksPerOwner == 0 {
		cfg.TaskSecurity.MaxTasksPerOwner = secDefaults.MaxTasksPerOwner
	}
	if cfg.TaskSecurity.DefaultOwnerID == "" {
		cfg.TaskSecurity.DefaultOwnerID = secDefaults.DefaultOwnerID
	}
}

func loadFile(k *koanf.Koanf, path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("taskconfig: failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("taskconfig: failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("taskconfig: config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("taskconfig: failed to read config file: %w", err)
	}
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return fmt.Errorf("taskconfig: failed to parse config file %s: %w", path, err)
	}
	return nil
}

// envTransform maps TASKSTORE_MAX_VARIABLE_SIZE_BYTES -> taskstore.max_variable_size_bytes.
func envTransform(s string) string {
	lower := strings.ToLower(s)
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}
