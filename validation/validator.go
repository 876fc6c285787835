package validation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/SusheelSathyaraj/FlightDataLoader/csvsource"
	"github.com/SusheelSathyaraj/FlightDataLoader/database"
	"github.com/SusheelSathyaraj/FlightDataLoader/schema"
)

var ErrRowWidth = errors.New("row width does not match table")

// Represents the result of the validation check
type ValidationResult struct {
	TableName      string
	IsValid        bool
	ErrorMessage   string
	RowCount       int64
	MissingColumns []string // table columns the file does not provide, loaded as NULL
	IgnoredColumns []string // file columns the table does not have
	TimeStamp      time.Time
}

// Handles pre and post import validation
type ImportValidator struct {
	Target database.TargetClient
}

// Creating a new validator instance
func NewImportValidator(target database.TargetClient) *ImportValidator {
	return &ImportValidator{Target: target}
}

// PreImportValidation compares the file header with the table columns.
// Missing and extra columns are reported but only a file sharing no column with the table is invalid.
func (v *ImportValidator) PreImportValidation(data *csvsource.Data, table schema.Table) ValidationResult {
	result := ValidationResult{
		TableName: table.Name,
		RowCount:  int64(data.Len()),
		TimeStamp: time.Now(),
	}

	present := make(map[string]bool, len(data.Header))
	for _, h := range data.Header {
		name := strings.ToLower(strings.TrimSpace(h))
		present[name] = true
		if !table.HasColumn(name) {
			result.IgnoredColumns = append(result.IgnoredColumns, h)
		}
	}

	for _, col := range table.Columns {
		if !present[col] {
			result.MissingColumns = append(result.MissingColumns, col)
		}
	}

	if result.RowCount == 0 {
		// header only, columns may all have been dropped as empty and there is nothing to load
		result.IsValid = true
		log.Printf("Pre-validation: %s has no data rows", table.Name)
		return result
	}

	if len(result.MissingColumns) == table.Width() {
		result.IsValid = false
		result.ErrorMessage = fmt.Sprintf("file has none of the %d columns of table %s", table.Width(), table.Name)
		return result
	}

	result.IsValid = true
	if len(result.MissingColumns) > 0 {
		log.Printf("Pre-validation: %s is missing %d columns, they will be NULL: %s",
			table.Name, len(result.MissingColumns), strings.Join(result.MissingColumns, ", "))
	}
	return result
}

// ValidateRowWidth checks that every row carries exactly one value per table column
func ValidateRowWidth(rows []schema.Row, table schema.Table) error {
	for i, row := range rows {
		if len(row) != table.Width() {
			return fmt.Errorf("%w: %s row %d has %d values, expected %d", ErrRowWidth, table.Name, i, len(row), table.Width())
		}
	}
	return nil
}

// CountBefore records the table size ahead of an import
func (v *ImportValidator) CountBefore(ctx context.Context, table schema.Table) (int64, error) {
	return v.Target.CountRows(ctx, table.Name)
}

// PostImportValidation checks that the table grew by exactly the number of rows inserted
func (v *ImportValidator) PostImportValidation(ctx context.Context, table schema.Table, before, inserted int64) (ValidationResult, error) {
	result := ValidationResult{
		TableName: table.Name,
		TimeStamp: time.Now(),
	}

	after, err := v.Target.CountRows(ctx, table.Name)
	if err != nil {
		result.IsValid = false
		result.ErrorMessage = fmt.Sprintf("Failed to count rows in target table %s, %v", table.Name, err)
		return result, err
	}
	result.RowCount = after

	if after-before != inserted {
		result.IsValid = false
		result.ErrorMessage = fmt.Sprintf("Row count mismatch, expected %d new rows, table grew by %d", inserted, after-before)
		return result, nil
	}

	result.IsValid = true
	log.Printf("Post-validation: Table %s now holds %d rows (+%d)", table.Name, after, inserted)
	return result, nil
}

// struct for validation result summary
type ValidationSummary struct {
	TotalTables    int
	ValidTables    int
	InvalidTables  int
	TotalRows      int64
	ValidationTime time.Duration
	Errors         []string
}

// creating a summary of the validation result
func GenerateValidationSummary(results []ValidationResult, startTime time.Time) ValidationSummary {
	summary := ValidationSummary{
		TotalTables:    len(results),
		ValidationTime: time.Since(startTime),
		Errors:         make([]string, 0),
	}

	for _, result := range results {
		summary.TotalRows += result.RowCount

		if result.IsValid {
			summary.ValidTables++
		} else {
			summary.InvalidTables++
			summary.Errors = append(summary.Errors, fmt.Sprintf("Table %s: %s", result.TableName, result.ErrorMessage))
		}
	}
	return summary
}

// printing the formatted summary
func (s ValidationSummary) Print(w io.Writer, phase string) {
	fmt.Fprintf(w, "\n==%s Validation Summary==\n", phase)
	fmt.Fprintf(w, "Total Tables: %d\n", s.TotalTables)
	fmt.Fprintf(w, "Valid Tables: %d\n", s.ValidTables)
	fmt.Fprintf(w, "Invalid Tables: %d\n", s.InvalidTables)
	fmt.Fprintf(w, "Total Rows: %d\n", s.TotalRows)
	fmt.Fprintf(w, "Validation Time: %v\n", s.ValidationTime)

	if len(s.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, err := range s.Errors {
			fmt.Fprintf(w, "-%s\n", err)
		}
	}
	fmt.Fprintln(w, "--------------")
}
