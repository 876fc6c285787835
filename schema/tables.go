package schema

import (
	"fmt"
	"strings"
)

// Row is one insertable tuple, a value per target column in column order.
// Values are strings straight from the CSV or nil for SQL NULL.
type Row []interface{}

// Table describes a target table and the exact order of its columns
type Table struct {
	Name    string
	Columns []string
}

// reference tables
var Airlines = Table{
	Name:    "airlines",
	Columns: []string{"iata_code", "airline"},
}

var Airports = Table{
	Name:    "airports",
	Columns: []string{"iata_code", "airport", "city", "state", "country", "latitude", "longitude"},
}

// fact table, same order as the flights CREATE TABLE
var Flights = Table{
	Name: "flights",
	Columns: []string{
		"year", "month", "day", "day_of_week", "airline", "flight_number", "tail_number",
		"origin_airport", "destination_airport", "scheduled_departure", "departure_time",
		"departure_delay", "taxi_out", "wheels_off", "scheduled_time", "elapsed_time",
		"air_time", "distance", "wheels_on", "taxi_in", "scheduled_arrival", "arrival_time",
		"arrival_delay", "diverted", "cancelled", "cancellation_reason", "air_system_delay",
		"security_delay", "airline_delay", "late_aircraft_delay", "weather_delay",
		"flight_date", "scheduled_departure_time", "scheduled_arrival_time",
	},
}

// all known tables by name
var registry = map[string]Table{
	Airlines.Name: Airlines,
	Airports.Name: Airports,
	Flights.Name:  Flights,
}

// Lookup returns the built-in table with the given name (case insensitive)
func Lookup(name string) (Table, error) {
	t, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Table{}, fmt.Errorf("unknown table %q", name)
	}
	return t, nil
}

// Width is the number of values every row for this table must carry.
func (t Table) Width() int {
	return len(t.Columns)
}

// HasColumn reports whether name is one of the table's columns.
func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Mapping places source columns into a table's column order.
// It is computed once per file from the header and applied to every record.
type Mapping struct {
	columns []string
	source  []int // position in the record per table column, -1 when absent
}

// NewMapping matches header names to columns exactly. With duplicate header names the first one wins.
func NewMapping(header []string, columns []string) Mapping {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}

	m := Mapping{columns: columns, source: make([]int, len(columns))}
	for i, col := range columns {
		if p, ok := pos[col]; ok {
			m.source[i] = p
		} else {
			m.source[i] = -1
		}
	}
	return m
}

// RowValues builds the tuple for one record ordered by the mapping's columns.
// A column missing from the header yields nil, header columns outside the table are ignored.
func (m Mapping) RowValues(record []interface{}) Row {
	row := make(Row, len(m.columns))
	for i, p := range m.source {
		if p >= 0 && p < len(record) {
			row[i] = record[p]
		}
	}
	return row
}

// Missing lists the columns no header name matched
func (m Mapping) Missing() []string {
	var missing []string
	for i, p := range m.source {
		if p < 0 {
			missing = append(missing, m.columns[i])
		}
	}
	return missing
}
