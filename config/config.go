package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

// drivers the loader can write to
var SupportedDrivers = []string{"mysql", "postgresql", "mongodb"}

const (
	DefaultBatchSize     = 1000
	DefaultCheckpointDir = "import_checkpoints"
)

// config struct to map config.yaml
type Config struct {
	Database struct {
		Driver   string `yaml:"driver"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		DBName   string `yaml:"dbname"`
	} `yaml:"database"`
	MongoDB struct {
		URI    string `yaml:"uri"`
		DBName string `yaml:"dbname"`
	} `yaml:"mongodb"`
	Files  FilesConfig  `yaml:"files"`
	Import ImportConfig `yaml:"import"`
}

// csv inputs per table
type FilesConfig struct {
	Airlines string `yaml:"airlines"`
	Airports string `yaml:"airports"`
	Flights  string `yaml:"flights"`
}

// options for the loaders
type ImportConfig struct {
	BatchSize     int      `yaml:"batch_size"`
	NullValues    []string `yaml:"null_values"`
	Validate      bool     `yaml:"validate"`
	Resume        bool     `yaml:"resume"`
	CheckpointDir string   `yaml:"checkpoint_dir"`
	Verbose       bool     `yaml:"verbose"`
}

// Default returns the settings the loader runs with when config.yaml leaves them out
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func LoadConfig(filepath string) (*Config, error) {

	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file, %w", err)
	}

	return Parse(content)
}

// Parse decodes YAML content, fills defaults and validates the result.
func Parse(content []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(content, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	c.Database.Driver = strings.ToLower(c.Database.Driver)
	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		switch c.Database.Driver {
		case "postgresql":
			c.Database.Port = 5432
		case "mongodb":
			c.Database.Port = 27017
		default:
			c.Database.Port = 3306
		}
	}
	if c.Database.User == "" {
		c.Database.User = "flightuser"
	}
	if c.Database.DBName == "" {
		c.Database.DBName = "flightdb"
	}
	if c.MongoDB.DBName == "" {
		c.MongoDB.DBName = c.Database.DBName
	}

	if c.Files.Airlines == "" {
		c.Files.Airlines = "airlines.csv"
	}
	if c.Files.Airports == "" {
		c.Files.Airports = "airports.csv"
	}
	if c.Files.Flights == "" {
		c.Files.Flights = "flights.csv"
	}

	if c.Import.BatchSize == 0 {
		c.Import.BatchSize = DefaultBatchSize
	}
	if c.Import.NullValues == nil {
		c.Import.NullValues = []string{"", "NaN"}
	}
	if c.Import.CheckpointDir == "" {
		c.Import.CheckpointDir = DefaultCheckpointDir
	}
}

// SetDriver switches the target database. The port falls back to the new driver's default.
func (c *Config) SetDriver(driver string) error {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver != c.Database.Driver {
		c.Database.Driver = driver
		c.Database.Port = 0
	}
	c.applyDefaults()
	return c.Validate()
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if !IsSupportedDriver(c.Database.Driver) {
		return fmt.Errorf("%w: unsupported database driver %q", ErrInvalidConfig, c.Database.Driver)
	}
	if c.Import.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalidConfig, c.Import.BatchSize)
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Database.Port)
	}
	return nil
}

func IsSupportedDriver(driver string) bool {
	for _, v := range SupportedDrivers {
		if strings.EqualFold(v, driver) {
			return true
		}
	}
	return false
}

// FileFor returns the configured csv path for a table name
func (c *Config) FileFor(table string) (string, error) {
	switch table {
	case "airlines":
		return c.Files.Airlines, nil
	case "airports":
		return c.Files.Airports, nil
	case "flights":
		return c.Files.Flights, nil
	}
	return "", fmt.Errorf("no file configured for table %s", table)
}
