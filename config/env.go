package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// environment variables that override config.yaml
const (
	EnvDriver    = "FLIGHTDB_DRIVER"
	EnvHost      = "FLIGHTDB_HOST"
	EnvPort      = "FLIGHTDB_PORT"
	EnvUser      = "FLIGHTDB_USER"
	EnvPassword  = "FLIGHTDB_PASSWORD"
	EnvDBName    = "FLIGHTDB_NAME"
	EnvMongoURI  = "FLIGHTDB_MONGO_URI"
	EnvBatchSize = "FLIGHTDB_BATCH_SIZE"
)

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables that are already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return "", false
	}
	return value, true
}

// ApplyEnvOverrides copies FLIGHTDB_* variables onto cfg and re-validates it.
func (c *Config) ApplyEnvOverrides() error {
	if v, ok := GetEnv(EnvDriver); ok && !strings.EqualFold(v, c.Database.Driver) {
		c.Database.Driver = strings.ToLower(v)
		c.Database.Port = 0 // new driver's default unless FLIGHTDB_PORT is set below
	}
	if v, ok := GetEnv(EnvHost); ok {
		c.Database.Host = v
	}
	if v, ok := GetEnv(EnvPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, EnvPort, v)
		}
		c.Database.Port = port
	}
	if v, ok := GetEnv(EnvUser); ok {
		c.Database.User = v
	}
	if v, ok := GetEnv(EnvPassword); ok {
		c.Database.Password = v
	}
	if v, ok := GetEnv(EnvDBName); ok {
		c.Database.DBName = v
	}
	if v, ok := GetEnv(EnvMongoURI); ok {
		c.MongoDB.URI = v
	}
	if v, ok := GetEnv(EnvBatchSize); ok {
		size, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, EnvBatchSize, v)
		}
		c.Import.BatchSize = size
	}

	c.applyDefaults()
	return c.Validate()
}
