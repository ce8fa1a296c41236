package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/nspcc-dev/eventbridge/pkg/core/storage"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is the default path to the config directory.
	DefaultConfigPath = "./config"
	// DefaultConfigFile is the name of the config file looked up in the
	// config directory.
	DefaultConfigFile = "eventbridge.yml"
)

// Version is the version of the node, set at build time.
var Version string

var validate = validator.New()

// Config top level struct representing the config
// for the node.
type Config struct {
	ApplicationConfiguration ApplicationConfiguration `yaml:"ApplicationConfiguration"`
}

// Load attempts to load the config from the given directory, relativePath is
// prepended to relative database paths when not empty.
func Load(path string, relativePath ...string) (Config, error) {
	return LoadFile(filepath.Join(path, DefaultConfigFile), relativePath...)
}

// LoadFile loads config from the provided path. Unknown fields are an error.
func LoadFile(configPath string, relativePath ...string) (Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config '%s' doesn't exist", configPath)
	}
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}
	return Decode(configData, relativePath...)
}

// Decode parses YAML config data applying defaults and validating the
// result.
func Decode(data []byte, relativePath ...string) (Config, error) {
	config := Config{
		ApplicationConfiguration: ApplicationConfiguration{
			LogLevel:        "info",
			MempoolCapacity: DefaultMempoolCapacity,
			DBConfiguration: storage.DBConfiguration{
				Type: storage.InMemoryDB,
			},
			RPC: RPC{
				MaxRequestBodyBytes:   DefaultMaxRequestBodyBytes,
				MaxRequestHeaderBytes: DefaultMaxRequestHeaderBytes,
			},
		},
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	err := decoder.Decode(&config)
	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	config.ApplicationConfiguration.Notifier = config.ApplicationConfiguration.Notifier.WithDefaults()
	if len(relativePath) == 1 && relativePath[0] != "" {
		updateRelativePaths(relativePath[0], &config)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate checks the whole configuration for consistency.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.ApplicationConfiguration.Notifier.Validate(); err != nil {
		return fmt.Errorf("invalid Notifier configuration: %w", err)
	}
	return nil
}

// updateRelativePaths updates relative paths in the config structure based on
// the provided relative path.
func updateRelativePaths(relativePath string, config *Config) {
	updatePath := func(path *string) {
		if *path != "" && !filepath.IsAbs(*path) {
			*path = filepath.Join(relativePath, *path)
		}
	}

	updatePath(&config.ApplicationConfiguration.DBConfiguration.LevelDBOptions.DataDirectoryPath)
	updatePath(&config.ApplicationConfiguration.DBConfiguration.BoltDBOptions.FilePath)
	updatePath(&config.ApplicationConfiguration.LogPath)
}
