package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// FileLoggingConfig represents file-based logging configuration
type FileLoggingConfig struct {
	Enabled    bool   `json:"enabled"`      // Whether file logging is enabled
	Filename   string `json:"filename"`     // Log file path (empty = XDG cache path)
	MaxSizeMB  int    `json:"max_size_mb"`  // Max file size in MB before rotation
	MaxBackups int    `json:"max_backups"`  // Max number of backup files to keep
	MaxAgeDays int    `json:"max_age_days"` // Max age in days before deletion
	Compress   bool   `json:"compress"`     // Whether to compress rotated files
}

// Mpg123Config selects the MPEG decoding library
type Mpg123Config struct {
	Backend     string `json:"backend"`      // auto, library or native
	LibraryPath string `json:"library_path"` // Shared library path (empty = platform default)
}

// AllocatorConfig bounds the small-object allocator
type AllocatorConfig struct {
	MaxOutstandingKB int `json:"max_outstanding_kb"` // 0 = unbounded
}

// JournalConfig represents the probe journal configuration
type JournalConfig struct {
	Enabled bool   `json:"enabled"` // Whether probe results are recorded
	Path    string `json:"path"`    // Database path (empty = XDG cache path)
}

// Config represents wrapal configuration
type Config struct {
	LogLevel       string             `json:"log_level"`              // Log level (debug, info, warn, error)
	FileLogging    *FileLoggingConfig `json:"file_logging,omitempty"` // File logging configuration
	Mpg123         *Mpg123Config      `json:"mpg123,omitempty"`
	Allocator      *AllocatorConfig   `json:"allocator,omitempty"`
	Journal        *JournalConfig     `json:"journal,omitempty"`
	ReadChunkBytes int                `json:"read_chunk_bytes"` // Decode buffer size used by the CLI
}

// XDGInterface defines the interface for XDG directory operations
type XDGInterface interface {
	GetConfigPaths(filename string) []string
	GetCachePath(purpose string) string
	CreateCacheDir(purpose string) error
}

// ConfigManager handles loading, saving, and validating configuration
type ConfigManager struct {
	xdg XDGInterface
	fs  afero.Fs
}

// NewConfigManager creates a new configuration manager on the OS filesystem
func NewConfigManager() *ConfigManager {
	return NewConfigManagerWithFilesystem(afero.NewOsFs())
}

// NewConfigManagerWithFilesystem creates a configuration manager that reads
// and writes through fs
func NewConfigManagerWithFilesystem(fs afero.Fs) *ConfigManager {
	slog.Debug("creating new config manager")
	return &ConfigManager{
		xdg: NewXDGDirsWithFilesystem(fs),
		fs:  fs,
	}
}

// DefaultReadChunkBytes is the decode buffer size when none is configured
const DefaultReadChunkBytes = 4096

// GetDefaultConfig returns the default configuration
func (cm *ConfigManager) GetDefaultConfig() *Config {
	defaultConfig := &Config{
		LogLevel: "warn",
		FileLogging: &FileLoggingConfig{
			Enabled:    false,
			Filename:   "",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Mpg123: &Mpg123Config{
			Backend: "auto",
		},
		Allocator: &AllocatorConfig{},
		Journal: &JournalConfig{
			Enabled: true,
		},
		ReadChunkBytes: DefaultReadChunkBytes,
	}

	slog.Debug("generated default config",
		"log_level", defaultConfig.LogLevel,
		"mpg123_backend", defaultConfig.Mpg123.Backend,
		"journal_enabled", defaultConfig.Journal.Enabled,
		"file_logging_enabled", defaultConfig.FileLogging.Enabled)

	return defaultConfig
}

// LoadFromFile loads configuration from a specific file. Sections missing
// from the file keep their default values.
func (cm *ConfigManager) LoadFromFile(filePath string) (*Config, error) {
	slog.Debug("loading config from file", "file_path", filePath)

	data, err := afero.ReadFile(cm.fs, filePath)
	if err != nil {
		slog.Error("failed to read config file", "file_path", filePath, "error", err)
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := cm.GetDefaultConfig()
	err = json.Unmarshal(data, config)
	if err != nil {
		slog.Error("failed to parse config JSON", "file_path", filePath, "error", err)
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	err = cm.ValidateConfig(config)
	if err != nil {
		slog.Error("config validation failed", "file_path", filePath, "error", err)
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	slog.Debug("config loaded successfully",
		"file_path", filePath,
		"log_level", config.LogLevel,
		"read_chunk_bytes", config.ReadChunkBytes)

	return config, nil
}

// SaveToFile saves configuration to a specific file
func (cm *ConfigManager) SaveToFile(config *Config, filePath string) error {
	slog.Debug("saving config to file", "file_path", filePath)

	err := cm.ValidateConfig(config)
	if err != nil {
		slog.Error("cannot save invalid config", "error", err)
		return fmt.Errorf("cannot save invalid config: %w", err)
	}

	dir := filepath.Dir(filePath)
	err = cm.fs.MkdirAll(dir, 0755)
	if err != nil {
		slog.Error("failed to create config directory", "directory", dir, "error", err)
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		slog.Error("failed to marshal config", "error", err)
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	err = afero.WriteFile(cm.fs, filePath, data, 0644)
	if err != nil {
		slog.Error("failed to write config file", "file_path", filePath, "error", err)
		return fmt.Errorf("failed to write config file: %w", err)
	}

	slog.Info("config saved successfully", "file_path", filePath)
	return nil
}

// LoadConfig loads configuration using XDG path discovery
func (cm *ConfigManager) LoadConfig() (*Config, error) {
	slog.Debug("loading config using XDG path discovery")

	configPaths := cm.xdg.GetConfigPaths("config.json")

	for i, configPath := range configPaths {
		slog.Debug("checking config path", "path_index", i, "path", configPath)

		exists, err := afero.Exists(cm.fs, configPath)
		if err != nil {
			slog.Debug("config path not accessible", "path", configPath, "error", err)
			continue
		}
		if exists {
			slog.Debug("found config file", "path", configPath)
			return cm.LoadFromFile(configPath)
		}
	}

	slog.Debug("no config file found, using defaults")
	return cm.GetDefaultConfig(), nil
}

var validLogLevels = []string{"debug", "info", "warn", "error"}

// ValidateConfig validates configuration values
func (cm *ConfigManager) ValidateConfig(config *Config) error {
	var errors []string

	if config.LogLevel != "" {
		valid := false
		for _, level := range validLogLevels {
			if config.LogLevel == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("invalid log level '%s', must be one of: %s",
				config.LogLevel, strings.Join(validLogLevels, ", ")))
		}
	}

	if config.Mpg123 != nil && !cm.IsValidMpg123Backend(config.Mpg123.Backend) {
		errors = append(errors, fmt.Sprintf("invalid mpg123 backend '%s', must be one of: %s",
			config.Mpg123.Backend, strings.Join(cm.GetSupportedMpg123Backends(), ", ")))
	}

	if config.Allocator != nil && config.Allocator.MaxOutstandingKB < 0 {
		errors = append(errors, fmt.Sprintf("allocator max_outstanding_kb must be >= 0, got %d", config.Allocator.MaxOutstandingKB))
	}

	if config.ReadChunkBytes < 0 {
		errors = append(errors, fmt.Sprintf("read_chunk_bytes must be >= 0, got %d", config.ReadChunkBytes))
	}

	if config.FileLogging != nil {
		fileLogging := config.FileLogging

		if fileLogging.MaxSizeMB < 0 {
			errors = append(errors, fmt.Sprintf("file logging max_size_mb must be >= 0, got %d", fileLogging.MaxSizeMB))
		}

		if fileLogging.MaxBackups < 0 {
			errors = append(errors, fmt.Sprintf("file logging max_backups must be >= 0, got %d", fileLogging.MaxBackups))
		}

		if fileLogging.MaxAgeDays < 0 {
			errors = append(errors, fmt.Sprintf("file logging max_age_days must be >= 0, got %d", fileLogging.MaxAgeDays))
		}
	}

	if len(errors) > 0 {
		errMsg := strings.Join(errors, "; ")
		slog.Error("config validation failed", "errors", errMsg)
		return fmt.Errorf("config validation failed: %s", errMsg)
	}

	slog.Debug("config validation passed")
	return nil
}

// MergeConfigs merges two configurations, with override taking precedence
func (cm *ConfigManager) MergeConfigs(base, override *Config) *Config {
	slog.Debug("merging configurations")

	merged := *base

	if override.LogLevel != "" {
		merged.LogLevel = override.LogLevel
		slog.Debug("merged log level override", "value", override.LogLevel)
	}

	if override.ReadChunkBytes != 0 {
		merged.ReadChunkBytes = override.ReadChunkBytes
		slog.Debug("merged read chunk override", "value", override.ReadChunkBytes)
	}

	if override.Mpg123 != nil {
		mpg := Mpg123Config{}
		if base.Mpg123 != nil {
			mpg = *base.Mpg123
		}
		if override.Mpg123.Backend != "" {
			mpg.Backend = override.Mpg123.Backend
		}
		if override.Mpg123.LibraryPath != "" {
			mpg.LibraryPath = override.Mpg123.LibraryPath
		}
		merged.Mpg123 = &mpg
		slog.Debug("merged mpg123 override", "backend", mpg.Backend, "library_path", mpg.LibraryPath)
	}

	// Sections holding booleans replace the base section wholesale
	if override.FileLogging != nil {
		fl := *override.FileLogging
		merged.FileLogging = &fl
	}
	if override.Journal != nil {
		j := *override.Journal
		merged.Journal = &j
	}
	if override.Allocator != nil {
		a := *override.Allocator
		merged.Allocator = &a
	}

	slog.Debug("configurations merged successfully")
	return &merged
}

// ApplyEnvironmentOverrides applies environment variable overrides to config
func (cm *ConfigManager) ApplyEnvironmentOverrides(config *Config) *Config {
	slog.Debug("applying environment variable overrides")

	result := *config

	// WRAPAL_LOG_LEVEL
	if logLevel := os.Getenv("WRAPAL_LOG_LEVEL"); logLevel != "" {
		result.LogLevel = logLevel
		slog.Debug("applied log level override from environment", "value", logLevel)
	}

	// WRAPAL_MPG123_BACKEND
	if backend := os.Getenv("WRAPAL_MPG123_BACKEND"); backend != "" {
		if cm.IsValidMpg123Backend(backend) {
			result.Mpg123 = copyMpg123(result.Mpg123)
			result.Mpg123.Backend = backend
			slog.Debug("applied mpg123 backend override from environment", "value", backend)
		} else {
			slog.Warn("invalid WRAPAL_MPG123_BACKEND environment variable", "value", backend)
		}
	}

	// WRAPAL_MPG123_PATH
	if path := os.Getenv("WRAPAL_MPG123_PATH"); path != "" {
		result.Mpg123 = copyMpg123(result.Mpg123)
		result.Mpg123.LibraryPath = path
		slog.Debug("applied mpg123 path override from environment", "value", path)
	}

	// WRAPAL_JOURNAL
	if journalStr := os.Getenv("WRAPAL_JOURNAL"); journalStr != "" {
		if enabled, err := strconv.ParseBool(journalStr); err == nil {
			j := JournalConfig{}
			if result.Journal != nil {
				j = *result.Journal
			}
			j.Enabled = enabled
			result.Journal = &j
			slog.Debug("applied journal override from environment", "value", enabled)
		} else {
			slog.Warn("invalid WRAPAL_JOURNAL environment variable", "value", journalStr, "error", err)
		}
	}

	slog.Debug("environment overrides applied")
	return &result
}

func copyMpg123(m *Mpg123Config) *Mpg123Config {
	if m == nil {
		return &Mpg123Config{}
	}
	c := *m
	return &c
}

// ParseLogLevel maps a configured level name to a slog.Level
func ParseLogLevel(logLevel string) (slog.Level, error) {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level '%s', must be one of: %s", logLevel, strings.Join(validLogLevels, ", "))
}

// ResolveLogFilePath resolves the log file path using XDG cache directory when filename is empty
func (cm *ConfigManager) ResolveLogFilePath(filename string) string {
	if filename != "" {
		return filename
	}
	return filepath.Join(cm.xdg.GetCachePath("logs"), "wrapal.log")
}

// ResolveJournalPath resolves the journal database path using XDG cache directory when path is empty
func (cm *ConfigManager) ResolveJournalPath(path string) string {
	if path != "" {
		return path
	}
	return filepath.Join(cm.xdg.GetCachePath(""), "journal.db")
}

// GetSupportedMpg123Backends returns the mpg123 backend selections
func (cm *ConfigManager) GetSupportedMpg123Backends() []string {
	return []string{"auto", "library", "native"}
}

// IsValidMpg123Backend checks if an mpg123 backend is supported
func (cm *ConfigManager) IsValidMpg123Backend(backend string) bool {
	// Empty string is valid (defaults to auto)
	if backend == "" {
		return true
	}

	for _, supported := range cm.GetSupportedMpg123Backends() {
		if backend == supported {
			return true
		}
	}
	return false
}
