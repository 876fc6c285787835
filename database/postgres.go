package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/SusheelSathyaraj/FlightDataLoader/config"
	"github.com/SusheelSathyaraj/FlightDataLoader/schema"
	_ "github.com/lib/pq"
)

type PostgreSQLClient struct {
	User     string
	Password string
	Host     string
	Port     int
	DBName   string
	DB       *sql.DB
}

func NewPostgreSQLClient(user, password, host string, port int, dbname string) *PostgreSQLClient {
	return &PostgreSQLClient{
		User:     user,
		Password: password,
		Host:     host,
		Port:     port,
		DBName:   dbname,
	}
}

func NewPostgreSQLClientFromConfig(cfg *config.Config) *PostgreSQLClient {
	return &PostgreSQLClient{
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		DBName:   cfg.Database.DBName,
	}
}

func (p *PostgreSQLClient) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable", p.Host, p.Port, p.User, p.Password, p.DBName)
}

func (p *PostgreSQLClient) Name() string { return "postgresql" }

// connect to Postgresql database
func (p *PostgreSQLClient) Connect() error {
	db, err := sql.Open("postgres", p.DSN())
	if err != nil {
		return fmt.Errorf("failed to open Postgresql connection,%w", err)
	}
	db.SetMaxOpenConns(1)

	//testing connection
	if err = db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping postgresql database,%w", err)
	}
	p.DB = db
	return nil
}

// Close the database connection
func (p *PostgreSQLClient) Close() error {
	if p.DB != nil {
		return p.DB.Close()
	}
	return nil
}

func (p *PostgreSQLClient) InsertRows(ctx context.Context, table string, columns []string, rows []schema.Row) (int64, error) {
	query := buildInsertSQL(table, columns, func(i int) string { return fmt.Sprintf("$%d", i) })
	return insertRowsTx(ctx, p.DB, query, len(columns), rows)
}

func (p *PostgreSQLClient) CountRows(ctx context.Context, table string) (int64, error) {
	return countRows(ctx, p.DB, table)
}
