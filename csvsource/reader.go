// Package csvsource reads CSV exports into memory as text, normalizing the
// header and turning missing cells into nil so they can be inserted as SQL NULL.
package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var ErrEmptyFile = errors.New("csv file has no header row")

// DefaultNullValues are the cell contents treated as missing when no explicit list is given.
var DefaultNullValues = []string{"", "NaN"}

// Options control how a file is normalized after parsing
type Options struct {
	// lower-case and trim every header name
	LowercaseHeaders bool
	// remove columns where every cell is missing, e.g. the ones produced by trailing commas
	DropEmptyColumns bool
	// exact cell values that become nil, whitespace is not trimmed
	NullValues []string
}

// Data is a fully loaded CSV file. Every record has exactly len(Header) values,
// each one either a string or nil.
type Data struct {
	Path    string
	Header  []string
	Records [][]interface{}
}

// ReadFile opens and parses path.
func ReadFile(path string, opts Options) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file %s: %w", path, err)
	}
	defer f.Close()

	data, err := Read(f, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv file %s: %w", path, err)
	}
	data.Path = path
	return data, nil
}

// Read parses CSV from r. The first record is the header.
func Read(r io.Reader, opts Options) (*Data, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 //ragged rows are padded below

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	header = append([]string(nil), header...)
	if len(header) > 0 {
		//Windows exports often start with a UTF-8 BOM
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	if opts.LowercaseHeaders {
		for i, h := range header {
			header[i] = strings.ToLower(strings.TrimSpace(h))
		}
	}

	nulls := opts.NullValues
	if nulls == nil {
		nulls = DefaultNullValues
	}
	nullSet := make(map[string]struct{}, len(nulls))
	for _, v := range nulls {
		nullSet[v] = struct{}{}
	}

	var records [][]interface{}
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record %d: %w", len(records)+1, err)
		}

		record := make([]interface{}, len(header))
		for i := range header {
			if i >= len(fields) {
				continue //short row, value stays nil
			}
			if _, isNull := nullSet[fields[i]]; isNull {
				continue
			}
			record[i] = fields[i]
		}
		records = append(records, record)
	}

	data := &Data{Header: header, Records: records}
	if opts.DropEmptyColumns {
		data.dropEmptyColumns()
	}
	return data, nil
}

// Len is the number of data rows.
func (d *Data) Len() int {
	return len(d.Records)
}

// keeps only columns holding at least one non-nil value
func (d *Data) dropEmptyColumns() {
	keep := make([]int, 0, len(d.Header))
	for col := range d.Header {
		for _, rec := range d.Records {
			if rec[col] != nil {
				keep = append(keep, col)
				break
			}
		}
	}
	if len(keep) == len(d.Header) {
		return
	}

	header := make([]string, len(keep))
	for i, col := range keep {
		header[i] = d.Header[col]
	}
	for r, rec := range d.Records {
		trimmed := make([]interface{}, len(keep))
		for i, col := range keep {
			trimmed[i] = rec[col]
		}
		d.Records[r] = trimmed
	}
	d.Header = header
}

