package database

import (
	"fmt"

	"github.com/SusheelSathyaraj/FlightDataLoader/schema"
)

const DefaultBatchSize = 1000

// BatchError reports the batch that failed. Rows [Start, End) were rolled back.
type BatchError struct {
	Table string
	Batch int // 1-based
	Start int
	End   int
	Err   error
}

func (e *BatchError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("batch %d (rows %d-%d) failed: %v", e.Batch, e.Start, e.End, e.Err)
	}
	return fmt.Sprintf("%s batch %d (rows %d-%d) failed: %v", e.Table, e.Batch, e.Start, e.End, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// for batch processing of rows
type BatchProcessor struct {
	batchSize int
}

// creating a new batch processor
func NewBatchProcessor(batchsize int) *BatchProcessor {
	if batchsize <= 0 {
		batchsize = DefaultBatchSize
	}
	return &BatchProcessor{batchSize: batchsize}
}

func (bp *BatchProcessor) BatchSize() int {
	return bp.batchSize
}

// BatchCount is ceil(n / batch size)
func (bp *BatchProcessor) BatchCount(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + bp.batchSize - 1) / bp.batchSize
}

// ProcessInBatches hands rows to processFunc in order, batchSize at a time.
// It stops at the first failing batch and returns it as a *BatchError.
func (bp *BatchProcessor) ProcessInBatches(rows []schema.Row, processFunc func(batch []schema.Row, start, end int) error) error {
	batchNo := 0
	for i := 0; i < len(rows); i += bp.batchSize {
		end := i + bp.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batchNo++

		if err := processFunc(rows[i:end], i, end); err != nil {
			return &BatchError{Batch: batchNo, Start: i, End: end, Err: err}
		}
	}
	return nil
}
