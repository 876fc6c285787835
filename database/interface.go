package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SusheelSathyaraj/FlightDataLoader/config"
	"github.com/SusheelSathyaraj/FlightDataLoader/schema"
)

var ErrNotConnected = errors.New("db connection not established")

// TargetClient is a database the loaders write into. Interface for ease with mock tests.
type TargetClient interface {
	Connect() error
	Close() error
	// InsertRows writes rows into table as one unit: all rows are committed or none are.
	// It returns the number of rows the database reports as inserted.
	InsertRows(ctx context.Context, table string, columns []string, rows []schema.Row) (int64, error)
	CountRows(ctx context.Context, table string) (int64, error)
	Name() string
}

// NewTargetClientFromConfig picks the client for cfg.Database.Driver. The client is not connected yet.
func NewTargetClientFromConfig(cfg *config.Config) (TargetClient, error) {
	switch strings.ToLower(cfg.Database.Driver) {
	case "mysql":
		return NewMySQLClientFromConfig(cfg), nil
	case "postgresql":
		return NewPostgreSQLClientFromConfig(cfg), nil
	case "mongodb":
		return NewMongoDBClientFromConfig(cfg), nil
	}
	return nil, fmt.Errorf("unsupported target database type %s", cfg.Database.Driver)
}
