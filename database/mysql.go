package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/SusheelSathyaraj/FlightDataLoader/config"
	"github.com/SusheelSathyaraj/FlightDataLoader/schema"

	_ "github.com/go-sql-driver/mysql"
)

type MySQLClient struct {
	User     string
	Password string
	Host     string
	Port     int
	DBName   string
	DB       *sql.DB
}

// create a MySQL client using manual parameters, (for tests)
func NewMySQLClient(user, password, host string, port int, dbname string) *MySQLClient {
	return &MySQLClient{
		User:     user,
		Password: password,
		Host:     host,
		Port:     port,
		DBName:   dbname,
	}
}

// create a new MySQL client using config file
func NewMySQLClientFromConfig(cfg *config.Config) *MySQLClient {
	return &MySQLClient{
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		DBName:   cfg.Database.DBName,
	}
}

// DSN format: user:password@tcp(host:port)/name
func (c *MySQLClient) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", c.User, c.Password, c.Host, c.Port, c.DBName)
}

func (c *MySQLClient) Name() string { return "mysql" }

// to connect with the MySQL DB
func (c *MySQLClient) Connect() error {
	db, err := sql.Open("mysql", c.DSN())
	if err != nil {
		return fmt.Errorf("failed to open MySQL connection %w", err)
	}

	//the loaders are single threaded, one connection is all they use
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	//test the connection
	if err = db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping to the MySQL database, %w", err)
	}

	c.DB = db
	return nil
}

// closes the database connection
func (c *MySQLClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

func (c *MySQLClient) InsertRows(ctx context.Context, table string, columns []string, rows []schema.Row) (int64, error) {
	query := buildInsertSQL(table, columns, func(int) string { return "?" })
	return insertRowsTx(ctx, c.DB, query, len(columns), rows)
}

func (c *MySQLClient) CountRows(ctx context.Context, table string) (int64, error) {
	return countRows(ctx, c.DB, table)
}
