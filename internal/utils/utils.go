package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName     = "sqlsubset.yaml"
	DefaultOutputDir   = "subsets"
	DefaultExemptTable = "Image"
	DefaultSampleSize  = 10000
	DefaultExtension   = ".sqlite"
)

// Config holds the settings read from sqlsubset.yaml
type Config struct {
	OutputDir   string `yaml:"output_dir"`
	ExemptTable string `yaml:"exempt_table"`
	SampleSize  int64  `yaml:"sample_size"`
	Extension   string `yaml:"extension"`
}

// DefaultConfig returns the settings used when no config file is found
func DefaultConfig() *Config {
	return &Config{
		OutputDir:   DefaultOutputDir,
		ExemptTable: DefaultExemptTable,
		SampleSize:  DefaultSampleSize,
		Extension:   DefaultExtension,
	}
}

// ErrNoConfig is returned by FindConfigFile when neither a project nor a
// global config exists
var ErrNoConfig = errors.New("no config file found in project or ~/.sqlsubset/config.yaml")

// FindConfigFile tries to find the sqlsubset config file in the current directory
// or any parent directory, falling back to the global config if needed
func FindConfigFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %v", err)
	}
	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break // Reached root directory
		}
		dir = parent
	}

	// Fall back to global config
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %v", err)
	}

	globalConfig := filepath.Join(homeDir, ".sqlsubset", "config.yaml")
	if _, err := os.Stat(globalConfig); err == nil {
		return globalConfig, nil
	}

	return "", ErrNoConfig
}

// ReadConfig reads a config file. Keys left out of the file keep their
// default values.
func ReadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %v", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %v", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %v", configPath, err)
	}
	return cfg, nil
}

// LoadConfig reads the config at path, or the discovered config when path is
// empty. Without any config file the defaults are returned.
func LoadConfig(path string) (*Config, string, error) {
	if path == "" {
		found, err := FindConfigFile()
		if errors.Is(err, ErrNoConfig) {
			return DefaultConfig(), "", nil
		}
		if err != nil {
			return nil, "", err
		}
		path = found
	}

	cfg, err := ReadConfig(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// WriteConfig writes cfg as YAML to path
func WriteConfig(path string, cfg *Config) error {
	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("creating yaml: %v", err)
	}
	if err := os.WriteFile(path, yamlData, 0644); err != nil {
		return fmt.Errorf("writing config file: %v", err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.OutputDir == "" {
		return errors.New("output_dir must not be empty")
	}
	if c.SampleSize < 0 {
		return errors.New("sample_size must not be negative")
	}
	if c.Extension == "" || !strings.HasPrefix(c.Extension, ".") {
		return errors.New("extension must start with a dot")
	}
	return nil
}

// NormalizeOutputName appends ext to name unless it already ends with it.
// The boolean reports whether the extension had to be added.
func NormalizeOutputName(name, ext string) (string, bool) {
	if strings.HasSuffix(name, ext) {
		return name, false
	}
	return name + ext, true
}

// OutputPath creates dir if needed and returns the absolute path of name
// inside it
func OutputPath(dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %v", err)
	}
	path, err := filepath.Abs(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("resolving output path: %v", err)
	}
	return path, nil
}
