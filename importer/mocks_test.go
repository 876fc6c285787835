package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SusheelSathyaraj/FlightDataLoader/schema"
)

// mock target for testing the engine, records every batch it is given
type MockTargetClient struct {
	batches     [][]schema.Row
	tables      []string
	counts      map[string]int64
	failOnBatch int // 1-based InsertRows call to fail, 0 never fails
	insertCalls int
}

func NewMockTargetClient() *MockTargetClient {
	return &MockTargetClient{counts: make(map[string]int64)}
}

func (m *MockTargetClient) Connect() error { return nil }
func (m *MockTargetClient) Close() error   { return nil }
func (m *MockTargetClient) Name() string   { return "mock" }

func (m *MockTargetClient) InsertRows(ctx context.Context, table string, columns []string, rows []schema.Row) (int64, error) {
	m.insertCalls++
	if m.failOnBatch == m.insertCalls {
		return 0, fmt.Errorf("mock insert error on call %d", m.insertCalls)
	}
	// the engine clears batch slots after a commit, keep our own copy
	m.batches = append(m.batches, append([]schema.Row(nil), rows...))
	m.tables = append(m.tables, table)
	m.counts[table] += int64(len(rows))
	return int64(len(rows)), nil
}

func (m *MockTargetClient) CountRows(ctx context.Context, table string) (int64, error) {
	return m.counts[table], nil
}

func (m *MockTargetClient) allRows() []schema.Row {
	var rows []schema.Row
	for _, b := range m.batches {
		rows = append(rows, b...)
	}
	return rows
}

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// flightsCSV builds n rows numbered 1..n in flight_number
func flightsCSV(n int) string {
	var b strings.Builder
	b.WriteString("YEAR,MONTH,DAY,AIRLINE,FLIGHT_NUMBER\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "2015,1,1,AA,%d\n", i)
	}
	return b.String()
}

func col(name string) int {
	for i, c := range schema.Flights.Columns {
		if c == name {
			return i
		}
	}
	panic("no flights column " + name)
}
