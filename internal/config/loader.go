package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName  = "config.yaml"
	ConfigDirName   = ".webtriage"
	GlobalConfigDir = ".config/webtriage"
)

// Loader handles configuration loading and discovery.
type Loader struct {
	startDir string

	// fixedPath, when set, bypasses discovery and loads exactly that file.
	fixedPath string
}

// NewLoader creates a new config loader starting from the given directory.
func NewLoader(startDir string) *Loader {
	if startDir == "" {
		var err error
		startDir, err = os.Getwd()
		if err != nil {
			startDir = "."
		}
	}

	return &Loader{
		startDir: startDir,
	}
}

// NewFileLoader creates a loader bound to one explicit config file.
func NewFileLoader(path string) *Loader {
	return &Loader{
		startDir:  filepath.Dir(path),
		fixedPath: path,
	}
}

// Load loads the configuration with environment variable overrides.
func (l *Loader) Load() (*Config, error) {
	configPath, err := l.findConfigFile()
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	config, err := l.loadFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	l.applyDefaults(config)
	l.applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// findConfigFile searches upward from the start directory for a config file.
func (l *Loader) findConfigFile() (string, error) {
	if l.fixedPath != "" {
		if _, err := os.Stat(l.fixedPath); err != nil {
			return "", fmt.Errorf("config file %s: %w", l.fixedPath, err)
		}
		return l.fixedPath, nil
	}

	dir := l.startDir

	for {
		configPath := filepath.Join(dir, ConfigDirName, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}

	// Try global config
	homeDir, err := os.UserHomeDir()
	if err == nil {
		globalConfig := filepath.Join(homeDir, GlobalConfigDir, ConfigFileName)
		if _, err := os.Stat(globalConfig); err == nil {
			return globalConfig, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched upward from %s)", l.startDir)
}

// loadFromFile loads configuration from a YAML file.
func (l *Loader) loadFromFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &config, nil
}

// applyDefaults fills zero-valued fields that have required defaults.
func (l *Loader) applyDefaults(config *Config) {
	def := DefaultConfig()
	if config.LLM.Provider == "" {
		config.LLM.Provider = def.LLM.Provider
	}
	if config.LLM.Model == "" {
		config.LLM.Model = def.LLM.Model
	}
	if config.TasksFile == "" {
		config.TasksFile = def.TasksFile
	}
	if config.Agent.RetryDelaySec == 0 {
		config.Agent.RetryDelaySec = def.Agent.RetryDelaySec
	}
	if config.Browser.TestProfileName == "" {
		config.Browser.TestProfileName = def.Browser.TestProfileName
	}
	if config.Browser.Headless == nil {
		config.Browser.Headless = def.Browser.Headless
	}
	if config.Agent.MaxSteps == 0 {
		config.Agent.MaxSteps = def.Agent.MaxSteps
	}
	if config.Agent.MaxFailures == 0 {
		config.Agent.MaxFailures = def.Agent.MaxFailures
	}
	if config.Agent.MaxActionsPerStep == 0 {
		config.Agent.MaxActionsPerStep = def.Agent.MaxActionsPerStep
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = def.LLM.MaxTokens
	}
	if config.Paths.Logs == "" {
		config.Paths.Logs = def.Paths.Logs
	}
	if config.Paths.Screenshots == "" {
		config.Paths.Screenshots = def.Paths.Screenshots
	}
	if config.Paths.Reports == "" {
		config.Paths.Reports = def.Paths.Reports
	}
	if config.Paths.AuthRoot == "" {
		config.Paths.AuthRoot = def.Paths.AuthRoot
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
func (l *Loader) applyEnvOverrides(config *Config) {
	if provider := os.Getenv("WEBTRIAGE_LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = provider
	}
	if model := os.Getenv("WEBTRIAGE_LLM_MODEL"); model != "" {
		config.LLM.Model = model
	}

	// Support WEBTRIAGE_LLM_API_KEY plus the providers' conventional variables.
	if apiKey := os.Getenv("WEBTRIAGE_LLM_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	} else if config.LLM.APIKey == "" {
		switch config.LLM.Provider {
		case "anthropic":
			config.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			config.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	if tasksFile := os.Getenv("WEBTRIAGE_TASKS_FILE"); tasksFile != "" {
		config.TasksFile = tasksFile
	}
	if profile := os.Getenv("WEBTRIAGE_TEST_PROFILE"); profile != "" {
		config.Browser.TestProfileName = profile
	}
}

// Save saves the configuration to the specified path.
func (l *Loader) Save(config *Config, configPath string) error {
	config.Meta.UpdatedAt = time.Now()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the path where a config file should be created.
func (l *Loader) GetConfigPath() string {
	return filepath.Join(l.startDir, ConfigDirName, ConfigFileName)
}

// IsInitialized checks if a config file exists in the project hierarchy.
func (l *Loader) IsInitialized() bool {
	_, err := l.findConfigFile()
	return err == nil
}
