package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SusheelSathyaraj/FlightDataLoader/schema"
)

func newMockMySQL(t *testing.T) (*MySQLClient, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &MySQLClient{DB: db}, mock
}

func TestBuildInsertSQL(t *testing.T) {
	mysqlSQL := buildInsertSQL("airlines", []string{"iata_code", "airline"}, func(int) string { return "?" })
	assert.Equal(t, "INSERT INTO airlines (iata_code, airline) VALUES (?, ?)", mysqlSQL)

	pgSQL := buildInsertSQL("airports", schema.Airports.Columns[:3], func(i int) string { return "$" + string(rune('0'+i)) })
	assert.Equal(t, "INSERT INTO airports (iata_code, airport, city) VALUES ($1, $2, $3)", pgSQL)
}

func TestSanitizeIdentifier(t *testing.T) {
	assert.Equal(t, "flights", sanitizeIdentifier("`flights`"))
	assert.Equal(t, "flightsDROPTABLEx", sanitizeIdentifier("flights; DROP TABLE x"))
}

func TestMySQLInsertRowsCommitsOnce(t *testing.T) {
	client, mock := newMockMySQL(t)

	rows := []schema.Row{
		{"UA", "United Air Lines Inc."},
		{"AA", "American Airlines Inc."},
		{"NK", nil},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO airlines (iata_code, airline) VALUES (?, ?)")
	prep.ExpectExec().WithArgs("UA", "United Air Lines Inc.").WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs("AA", "American Airlines Inc.").WillReturnResult(sqlmock.NewResult(2, 1))
	prep.ExpectExec().WithArgs("NK", nil).WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	n, err := client.InsertRows(context.Background(), "airlines", schema.Airlines.Columns, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLInsertRowsRollsBackOnError(t *testing.T) {
	client, mock := newMockMySQL(t)

	rows := []schema.Row{
		{"UA", "United Air Lines Inc."},
		{"UA", "duplicate"},
	}
	dupErr := errors.New("Error 1062: Duplicate entry 'UA' for key 'PRIMARY'")

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO airlines (iata_code, airline) VALUES (?, ?)")
	prep.ExpectExec().WithArgs("UA", "United Air Lines Inc.").WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs("UA", "duplicate").WillReturnError(dupErr)
	mock.ExpectRollback()

	n, err := client.InsertRows(context.Background(), "airlines", schema.Airlines.Columns, rows)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dupErr))
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRowsRejectsWrongWidth(t *testing.T) {
	client, mock := newMockMySQL(t)

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO airlines (iata_code, airline) VALUES (?, ?)")
	mock.ExpectRollback()

	_, err := client.InsertRows(context.Background(), "airlines", schema.Airlines.Columns, []schema.Row{{"UA"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRowsEmptyIsNoop(t *testing.T) {
	client, mock := newMockMySQL(t)

	n, err := client.InsertRows(context.Background(), "airlines", schema.Airlines.Columns, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRowsNotConnected(t *testing.T) {
	client := NewMySQLClient("u", "p", "localhost", 3306, "db")
	_, err := client.InsertRows(context.Background(), "airlines", schema.Airlines.Columns, []schema.Row{{"UA", "United"}})
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.CountRows(context.Background(), "airlines")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestPostgreSQLInsertRowsUsesNumberedPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	client := &PostgreSQLClient{DB: db}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO airlines (iata_code, airline) VALUES ($1, $2)")
	prep.ExpectExec().WithArgs("B6", "JetBlue Airways").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := client.InsertRows(context.Background(), "airlines", schema.Airlines.Columns, []schema.Row{{"B6", "JetBlue Airways"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountRows(t *testing.T) {
	client, mock := newMockMySQL(t)

	mock.ExpectQuery("SELECT COUNT(*) FROM flights").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(5819079)))

	n, err := client.CountRows(context.Background(), "flights")
	require.NoError(t, err)
	assert.Equal(t, int64(5819079), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
