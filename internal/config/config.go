// Package config loads the optional jmxgen.yaml configuration file with
// zero-value defaulting and environment overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where LoadDefault looks for the configuration file.
const DefaultPath = "jmxgen.yaml"

// Config holds the application configuration.
type Config struct {
	Generation GenerationConfig `yaml:"generation"`
	Logging    LoggingConfig    `yaml:"logging"`
	LLM        LLMConfig        `yaml:"llm"`
}

// GenerationConfig holds the default load profile used when the command
// line does not override it.
type GenerationConfig struct {
	Threads  int    `yaml:"threads"`
	Rampup   int    `yaml:"rampup"`
	Duration int    `yaml:"duration"`
	Output   string `yaml:"output"`
	BaseURL  string `yaml:"base_url"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Dir     string `yaml:"dir"`
	Verbose bool   `yaml:"verbose"`
}

// LLMConfig holds configuration for the scenario drafting assistant.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// LoadConfig loads the configuration from path, applying defaults and
// environment overrides. A missing file is an error; use LoadDefault when
// the file is optional.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %v", err)
	}

	config.applyDefaults()
	config.applyEnvironment()
	return &config, nil
}

// LoadDefault loads jmxgen.yaml from the working directory when present,
// falling back to pure defaults when it is not.
func LoadDefault() (*Config, error) {
	if _, err := os.Stat(DefaultPath); os.IsNotExist(err) {
		config := &Config{}
		config.applyDefaults()
		config.applyEnvironment()
		return config, nil
	}
	return LoadConfig(DefaultPath)
}

// applyDefaults fills zero values after parse, the same way a missing key
// in the YAML file behaves.
func (c *Config) applyDefaults() {
	if c.Generation.Threads == 0 {
		c.Generation.Threads = 10
	}
	if c.Generation.Rampup == 0 {
		c.Generation.Rampup = 5
	}
	if c.Generation.Duration == 0 {
		c.Generation.Duration = 60
	}
	if c.Generation.Output == "" {
		c.Generation.Output = "test.jmx"
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 2000
	}
}

// applyEnvironment overrides file values from environment variables so API
// keys never need to live in the config file.
func (c *Config) applyEnvironment() {
	if key := os.Getenv("JMXGEN_LLM_API_KEY"); key != "" {
		c.LLM.APIKey = key
	} else if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("JMXGEN_LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if dir := os.Getenv("JMXGEN_LOG_DIR"); dir != "" {
		c.Logging.Dir = dir
	}
}
