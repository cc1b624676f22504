// Package config loads the beacon CLI configuration from JSONC files.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kaptinlin/jsonschema"
	"github.com/sirupsen/logrus"
	"github.com/tailscale/hujson"

	"github.com/calvinalkan/beacon-reader/pkg/beacon"
	"github.com/calvinalkan/beacon-reader/pkg/shardcache"
)

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	DataDir  string       `json:"data_dir,omitempty"`
	Limits   LimitsConfig `json:"limits"`
	Eviction string       `json:"eviction"`
	LogLevel string       `json:"log_level"`

	// Resolved values (computed, not serialized)
	EffectiveCwd string `json:"-"` // Absolute working directory (from -C flag or os.Getwd)
	DataDirAbs   string `json:"-"` // Absolute path to the data directory

	// Sources tracks which config files were loaded (for diagnostics)
	Sources ConfigSources `json:"-"`
}

// LimitsConfig holds per-category residency limits. Nil means "not set
// in this file"; zero means unlimited.
type LimitsConfig struct {
	Header *int `json:"header,omitempty"`
	Status *int `json:"status,omitempty"`
	Event  *int `json:"event,omitempty"`
}

// ConfigSources tracks which config files were loaded.
type ConfigSources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project config if loaded, empty otherwise
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	limits := beacon.DefaultLimits()

	return Config{
		Limits: LimitsConfig{
			Header: &limits.Header,
			Status: &limits.Status,
			Event:  &limits.Event,
		},
		Eviction: shardcache.LoadOrder.String(),
		LogLevel: "warn",
	}
}

// ConfigFileName is the default project config file name.
const ConfigFileName = ".beacon.json"

//go:embed schema.json
var schemaJSON []byte

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true

	return compiler.Compile(schemaJSON)
})

// getGlobalConfigPath returns the path to the global config file.
// Uses $XDG_CONFIG_HOME/beacon/config.json if set, otherwise
// ~/.config/beacon/config.json. Returns empty string if home directory
// cannot be determined.
func getGlobalConfigPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "beacon", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "beacon", "config.json")
	}

	return ""
}

// LoadConfigInput holds the inputs for LoadConfig.
type LoadConfigInput struct {
	WorkDirOverride  string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath       string            // -c/--config flag value
	DataDirOverride  string            // -d/--data-dir flag value; empty means no override
	LogLevelOverride string            // --log-level flag value; empty means no override
	Env              map[string]string // environment variables
}

// LoadConfig loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config (~/.config/beacon/config.json or $XDG_CONFIG_HOME/beacon/config.json)
// 3. Project config file at default location (.beacon.json, if exists)
// 4. Explicit config file via configPath (if non-empty)
// 5. CLI overrides.
//
// When no data_dir is configured, $BEACON_DATA_DIR is used, then the
// working directory. DataDirAbs is always absolute.
func LoadConfig(input LoadConfigInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := DefaultConfig()

	globalCfg, globalPath, err := loadGlobalConfig(input.Env)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Global = globalPath
	cfg = mergeConfig(cfg, globalCfg)

	projectCfg, projectPath, err := loadProjectConfig(workDir, input.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Project = projectPath
	cfg = mergeConfig(cfg, projectCfg)

	if input.DataDirOverride != "" {
		cfg.DataDir = input.DataDirOverride
	}

	if input.LogLevelOverride != "" {
		cfg.LogLevel = input.LogLevelOverride
	}

	_, err = logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.LogLevel)
	}

	cfg.EffectiveCwd = workDir

	dataDir := beacon.ResolveDataDir(cfg.DataDir, input.Env, workDir)
	if filepath.IsAbs(dataDir) {
		cfg.DataDirAbs = dataDir
	} else {
		cfg.DataDirAbs = filepath.Join(workDir, dataDir)
	}

	return cfg, nil
}

// RunLimits returns the residency limits for [beacon.OpenRun].
func (c Config) RunLimits() beacon.Limits {
	limits := beacon.DefaultLimits()

	if c.Limits.Header != nil {
		limits.Header = *c.Limits.Header
	}

	if c.Limits.Status != nil {
		limits.Status = *c.Limits.Status
	}

	if c.Limits.Event != nil {
		limits.Event = *c.Limits.Event
	}

	return limits
}

// Policy returns the configured eviction policy.
func (c Config) Policy() shardcache.EvictionPolicy {
	if c.Eviction == shardcache.AccessOrder.String() {
		return shardcache.AccessOrder
	}

	return shardcache.LoadOrder
}

// Level returns the configured log level. LoadConfig has validated it.
func (c Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.WarnLevel
	}

	return level
}

// loadGlobalConfig loads the global user config file if it exists.
// Returns the config, the path if loaded, and any error.
func loadGlobalConfig(env map[string]string) (Config, string, error) {
	globalCfgPath := getGlobalConfigPath(env)
	if globalCfgPath == "" {
		return Config{}, "", nil
	}

	globalCfg, loaded, err := loadConfigFile(globalCfgPath, false)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	return globalCfg, globalCfgPath, nil
}

// loadProjectConfig loads the project config file (.beacon.json) or an
// explicit config file. Returns the config, the path if loaded, and any error.
func loadProjectConfig(workDir, configPath string) (Config, string, error) {
	var cfgFile string

	var mustExist bool

	if configPath != "" {
		cfgFile = configPath
		if !filepath.IsAbs(cfgFile) {
			cfgFile = filepath.Join(workDir, cfgFile)
		}

		mustExist = true

		_, statErr := os.Stat(cfgFile)
		if statErr != nil {
			return Config{}, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
		}
	} else {
		cfgFile = filepath.Join(workDir, ConfigFileName)
		mustExist = false
	}

	fileCfg, loaded, err := loadConfigFile(cfgFile, mustExist)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	return fileCfg, cfgFile, nil
}

// loadConfigFile loads a config file. If mustExist is false, missing files
// return zero config. Returns the config, whether the file was loaded, and
// any error.
func loadConfigFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}

		if mustExist {
			return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
		}

		return Config{}, false, nil
	}

	cfg, parseErr := parseConfig(data)
	if parseErr != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, parseErr)
	}

	return cfg, true, nil
}

func parseConfig(data []byte) (Config, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	schema, err := compileSchema()
	if err != nil {
		return Config{}, fmt.Errorf("compile schema: %w", err)
	}

	result := schema.ValidateJSON(standardized)
	if !result.IsValid() {
		return Config{}, fmt.Errorf("schema validation failed: %v", result.Errors)
	}

	var cfg Config

	unmarshalErr := json.Unmarshal(standardized, &cfg)
	if unmarshalErr != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", unmarshalErr)
	}

	return cfg, nil
}

func mergeConfig(base, overlay Config) Config {
	if overlay.DataDir != "" {
		base.DataDir = overlay.DataDir
	}

	if overlay.Limits.Header != nil {
		base.Limits.Header = overlay.Limits.Header
	}

	if overlay.Limits.Status != nil {
		base.Limits.Status = overlay.Limits.Status
	}

	if overlay.Limits.Event != nil {
		base.Limits.Event = overlay.Limits.Event
	}

	if overlay.Eviction != "" {
		base.Eviction = overlay.Eviction
	}

	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}

	return base
}
