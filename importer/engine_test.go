package importer

import (
	"bytes"
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SusheelSathyaraj/FlightDataLoader/config"
	"github.com/SusheelSathyaraj/FlightDataLoader/csvsource"
	"github.com/SusheelSathyaraj/FlightDataLoader/database"
	"github.com/SusheelSathyaraj/FlightDataLoader/schema"
)

func newTestEngine(target database.TargetClient, cfg ImportConfig) *Engine {
	e := NewEngine(cfg, target, nil, nil)
	e.Out = io.Discard
	return e
}

func TestLoadFactTableThreeRowsBatchSizeTwo(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "flights.csv",
		"YEAR,MONTH,DAY,AIRLINE,FLIGHT_NUMBER,ARRIVAL_DELAY,\n"+
			"2015,1,1,AS,98,-22,\n"+
			"2015,1,1,AA,2336,,\n"+
			"2015,1,1,US,840,NaN,\n")

	target := NewMockTargetClient()
	engine := newTestEngine(target, ImportConfig{BatchSize: 2})

	result, err := engine.LoadFactTable(context.Background(), path, schema.Flights)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, int64(3), result.RowsInserted)
	assert.Equal(t, 2, result.Batches)
	require.Len(t, target.batches, 2)
	assert.Len(t, target.batches[0], 2)
	assert.Len(t, target.batches[1], 1)

	rows := target.allRows()
	for _, row := range rows {
		assert.Len(t, row, 34)
	}
	assert.Equal(t, "AS", rows[0][col("airline")])
	assert.Equal(t, "-22", rows[0][col("arrival_delay")])
	assert.Nil(t, rows[1][col("arrival_delay")], "empty cell must be NULL")
	assert.Nil(t, rows[2][col("arrival_delay")], "NaN must be NULL")
	assert.Equal(t, "840", rows[2][col("flight_number")])
}

func TestLoadFactTableBatchCounts(t *testing.T) {
	tests := []struct {
		rows, batchSize int
		wantBatches     int
		wantLast        int
	}{
		{rows: 1, batchSize: 1000, wantBatches: 1, wantLast: 1},
		{rows: 10, batchSize: 5, wantBatches: 2, wantLast: 5},
		{rows: 11, batchSize: 5, wantBatches: 3, wantLast: 1},
		{rows: 7, batchSize: 3, wantBatches: 3, wantLast: 1},
		{rows: 2500, batchSize: 0, wantBatches: 3, wantLast: 500},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("%d rows batch %d", tc.rows, tc.batchSize), func(t *testing.T) {
			path := writeCSV(t, t.TempDir(), "flights.csv", flightsCSV(tc.rows))
			target := NewMockTargetClient()

			result, err := newTestEngine(target, ImportConfig{BatchSize: tc.batchSize}).
				LoadFactTable(context.Background(), path, schema.Flights)
			require.NoError(t, err)

			assert.Equal(t, tc.wantBatches, target.insertCalls)
			assert.Equal(t, tc.wantBatches, result.Batches)
			assert.Len(t, target.batches[len(target.batches)-1], tc.wantLast)
			assert.Equal(t, int64(tc.rows), result.RowsInserted)

			// source order is kept across batches
			for i, row := range target.allRows() {
				assert.Equal(t, fmt.Sprint(i+1), row[col("flight_number")])
			}
		})
	}
}

func TestLoadFactTableIgnoresUnknownColumns(t *testing.T) {
	path := writeCSV(t, t.TempDir(), "flights.csv",
		"year,Airline,PASSENGERS\n2015,DL,180\n")
	target := NewMockTargetClient()

	_, err := newTestEngine(target, ImportConfig{}).LoadFactTable(context.Background(), path, schema.Flights)
	require.NoError(t, err)

	rows := target.allRows()
	require.Len(t, rows, 1)
	require.Len(t, rows[0], 34)
	assert.Equal(t, "2015", rows[0][col("year")])
	assert.Equal(t, "DL", rows[0][col("airline")])
	assert.Nil(t, rows[0][col("tail_number")])
	for _, v := range rows[0] {
		assert.NotEqual(t, "180", v)
	}
}

func TestLoadFactTableStopsAtFailingBatch(t *testing.T) {
	path := writeCSV(t, t.TempDir(), "flights.csv", flightsCSV(5))
	target := NewMockTargetClient()
	target.failOnBatch = 2

	var out bytes.Buffer
	engine := newTestEngine(target, ImportConfig{BatchSize: 2})
	engine.Out = &out

	result, err := engine.LoadFactTable(context.Background(), path, schema.Flights)
	require.Error(t, err)

	var batchErr *database.BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, "flights", batchErr.Table)
	assert.Equal(t, 2, batchErr.Batch)
	assert.Equal(t, 2, batchErr.Start)
	assert.Equal(t, 4, batchErr.End)

	assert.Equal(t, 2, target.insertCalls, "no batch after the failing one")
	assert.False(t, result.Success)
	assert.Equal(t, int64(2), result.RowsInserted)
	assert.NotEmpty(t, result.Errors)
	assert.Contains(t, out.String(), "Rows committed: 2 / 5")
}

func TestLoadFactTableEmptyFile(t *testing.T) {
	path := writeCSV(t, t.TempDir(), "flights.csv", "")
	target := NewMockTargetClient()

	result, err := newTestEngine(target, ImportConfig{}).LoadFactTable(context.Background(), path, schema.Flights)
	assert.ErrorIs(t, err, csvsource.ErrEmptyFile)
	assert.False(t, result.Success)
	assert.Zero(t, target.insertCalls)
}

func TestLoadFactTableHeaderOnly(t *testing.T) {
	path := writeCSV(t, t.TempDir(), "flights.csv", "YEAR,MONTH\n")
	target := NewMockTargetClient()

	result, err := newTestEngine(target, ImportConfig{}).LoadFactTable(context.Background(), path, schema.Flights)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Zero(t, target.insertCalls)
}

func TestLoadFactTableHeaderOnlyWithValidation(t *testing.T) {
	path := writeCSV(t, t.TempDir(), "flights.csv", "YEAR,MONTH,DAY,AIRLINE\n")
	target := NewMockTargetClient()

	result, err := newTestEngine(target, ImportConfig{Validate: true}).LoadFactTable(context.Background(), path, schema.Flights)
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.NotNil(t, result.PostValidation)
	assert.True(t, result.PostValidation.IsValid)
	assert.Zero(t, target.insertCalls)
}

func TestLoadFactTableValidationRejectsForeignFile(t *testing.T) {
	path := writeCSV(t, t.TempDir(), "flights.csv", "foo,bar\n1,2\n")
	target := NewMockTargetClient()

	result, err := newTestEngine(target, ImportConfig{Validate: true}).LoadFactTable(context.Background(), path, schema.Flights)
	require.Error(t, err)
	require.NotNil(t, result.PreValidation)
	assert.False(t, result.PreValidation.IsValid)
	assert.Zero(t, target.insertCalls)
}

func TestLoadFactTableWithValidation(t *testing.T) {
	path := writeCSV(t, t.TempDir(), "flights.csv", flightsCSV(3))
	target := NewMockTargetClient()
	target.counts["flights"] = 100

	result, err := newTestEngine(target, ImportConfig{BatchSize: 2, Validate: true}).
		LoadFactTable(context.Background(), path, schema.Flights)
	require.NoError(t, err)
	require.NotNil(t, result.PostValidation)
	assert.True(t, result.PostValidation.IsValid)
	assert.Equal(t, int64(103), result.PostValidation.RowCount)
}

func TestLoadReferenceTable(t *testing.T) {
	path := writeCSV(t, t.TempDir(), "airlines.csv",
		"IATA_CODE,AIRLINE\nUA,United Air Lines Inc.\nAA,American Airlines Inc.\nNK,\n")
	target := NewMockTargetClient()

	result, err := newTestEngine(target, ImportConfig{Validate: true}).
		LoadReferenceTable(context.Background(), path, schema.Airlines)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.RowsRead)
	assert.Equal(t, int64(3), result.RowsInserted)
	assert.Equal(t, 1, target.insertCalls, "one transaction for the whole file")
	assert.Equal(t, []schema.Row{
		{"UA", "United Air Lines Inc."},
		{"AA", "American Airlines Inc."},
		{"NK", nil},
	}, target.allRows())
}

func TestLoadReferenceTableIsPositional(t *testing.T) {
	path := writeCSV(t, t.TempDir(), "airlines.csv", "code,name\nB6,JetBlue Airways\n")
	target := NewMockTargetClient()

	_, err := newTestEngine(target, ImportConfig{}).LoadReferenceTable(context.Background(), path, schema.Airlines)
	require.NoError(t, err)
	assert.Equal(t, []schema.Row{{"B6", "JetBlue Airways"}}, target.allRows())
}

func TestLoadReferenceTableColumnCount(t *testing.T) {
	path := writeCSV(t, t.TempDir(), "airlines.csv", "IATA_CODE,AIRLINE,COUNTRY\nUA,United,US\n")
	target := NewMockTargetClient()

	result, err := newTestEngine(target, ImportConfig{}).LoadReferenceTable(context.Background(), path, schema.Airlines)
	assert.ErrorIs(t, err, ErrColumnCount)
	assert.False(t, result.Success)
	assert.Zero(t, target.insertCalls)
}

func TestLoadReferenceTableMissingFile(t *testing.T) {
	target := NewMockTargetClient()

	_, err := newTestEngine(target, ImportConfig{}).
		LoadReferenceTable(context.Background(), "/nonexistent/airlines.csv", schema.Airlines)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadReferenceTableInsertError(t *testing.T) {
	path := writeCSV(t, t.TempDir(), "airlines.csv", "IATA_CODE,AIRLINE\nUA,United\n")
	target := NewMockTargetClient()
	target.failOnBatch = 1

	result, err := newTestEngine(target, ImportConfig{}).LoadReferenceTable(context.Background(), path, schema.Airlines)
	assert.Error(t, err)
	assert.False(t, result.Success)
	assert.Zero(t, result.RowsInserted)
}

func flightsInsertSQL() string {
	return "INSERT INTO flights (" + strings.Join(schema.Flights.Columns, ", ") +
		") VALUES (" + strings.Repeat("?, ", 33) + "?)"
}

// expected driver args for a flightsCSV row
func flightArgs(flightNumber string) []driver.Value {
	args := make([]driver.Value, 34)
	args[col("year")] = "2015"
	args[col("month")] = "1"
	args[col("day")] = "1"
	args[col("airline")] = "AA"
	args[col("flight_number")] = flightNumber
	return args
}

func TestLoadFactTableMySQLCommitPerBatch(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	path := writeCSV(t, t.TempDir(), "flights.csv", flightsCSV(3))
	client := &database.MySQLClient{DB: db}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(flightsInsertSQL())
	prep.ExpectExec().WithArgs(flightArgs("1")...).WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs(flightArgs("2")...).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	prep = mock.ExpectPrepare(flightsInsertSQL())
	prep.ExpectExec().WithArgs(flightArgs("3")...).WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	result, err := newTestEngine(client, ImportConfig{BatchSize: 2}).
		LoadFactTable(context.Background(), path, schema.Flights)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.RowsInserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadFactTableMySQLRollsBackFailingBatch(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	path := writeCSV(t, t.TempDir(), "flights.csv", flightsCSV(3))
	client := &database.MySQLClient{DB: db}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(flightsInsertSQL())
	prep.ExpectExec().WithArgs(flightArgs("1")...).WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs(flightArgs("2")...).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	prep = mock.ExpectPrepare(flightsInsertSQL())
	prep.ExpectExec().WithArgs(flightArgs("3")...).WillReturnError(errors.New("Duplicate entry"))
	mock.ExpectRollback()

	result, err := newTestEngine(client, ImportConfig{BatchSize: 2}).
		LoadFactTable(context.Background(), path, schema.Flights)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Duplicate entry")
	assert.Equal(t, int64(2), result.RowsInserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Files.Airlines = writeCSV(t, dir, "airlines.csv", "IATA_CODE,AIRLINE\nUA,United\nAA,American\n")
	cfg.Files.Airports = writeCSV(t, dir, "airports.csv",
		"IATA_CODE,AIRPORT,CITY,STATE,COUNTRY,LATITUDE,LONGITUDE\nABE,Lehigh Valley,Allentown,PA,USA,40.65,-75.44\n")
	cfg.Files.Flights = writeCSV(t, dir, "flights.csv", flightsCSV(3))
	return cfg
}

func TestRunAll(t *testing.T) {
	cfg := testConfig(t)
	target := NewMockTargetClient()
	engine := newTestEngine(target, ImportConfig{BatchSize: 2, Validate: true})

	results, err := engine.RunAll(context.Background(), DefaultJobs(cfg))
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []string{"airlines", "airports", "flights", "flights"}, target.tables)
	assert.Equal(t, int64(2), target.counts["airlines"])
	assert.Equal(t, int64(1), target.counts["airports"])
	assert.Equal(t, int64(3), target.counts["flights"])
}

func TestRunAllStopsAtFirstFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Files.Airports = writeCSV(t, t.TempDir(), "airports.csv", "IATA_CODE,AIRPORT\nABE,Lehigh Valley\n")
	target := NewMockTargetClient()

	results, err := newTestEngine(target, ImportConfig{}).RunAll(context.Background(), DefaultJobs(cfg))
	assert.ErrorIs(t, err, ErrColumnCount)
	assert.Len(t, results, 2)
	assert.Equal(t, []string{"airlines"}, target.tables, "flights must not be loaded")
}

func TestJobFor(t *testing.T) {
	cfg := config.Default()

	job, err := JobFor(cfg, "Flights")
	require.NoError(t, err)
	assert.True(t, job.Batched)
	assert.Equal(t, cfg.Files.Flights, job.Path)

	job, err = JobFor(cfg, "airports")
	require.NoError(t, err)
	assert.False(t, job.Batched)

	_, err = JobFor(cfg, "routes")
	assert.Error(t, err)
}

func TestImportConfigFrom(t *testing.T) {
	cfg := config.Default()
	cfg.Import.BatchSize = 250
	cfg.Import.Resume = true

	ic := ImportConfigFrom(cfg)
	assert.Equal(t, 250, ic.BatchSize)
	assert.True(t, ic.Resume)
	assert.Equal(t, cfg.Import.NullValues, ic.NullValues)
}
