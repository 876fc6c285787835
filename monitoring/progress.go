package monitoring

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker counts committed rows and batches for one table load
type ProgressTracker struct {
	mu            sync.RWMutex
	table         string
	totalRows     int64
	committedRows int64
	batches       int
	skippedRows   int64
	startTime     time.Time
	lastUpdate    time.Time
	errors        []string
}

// struct holding import metrics
type ImportMetrics struct {
	Table           string        `json:"table"`
	TotalRows       int64         `json:"total_rows"`
	CommittedRows   int64         `json:"committed_rows"`
	SkippedRows     int64         `json:"skipped_rows"`
	Batches         int           `json:"batches"`
	RowsPerSecond   float64       `json:"rows_per_second"`
	ElapsedTime     time.Duration `json:"elapsed_time"`
	ErrorCount      int           `json:"error_count"`
	ProgressPercent float64       `json:"progress_percent"`
}

func NewProgressTracker(table string, totalRows int64) *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		table:      table,
		totalRows:  totalRows,
		startTime:  now,
		lastUpdate: now,
		errors:     make([]string, 0),
	}
}

// BatchCommitted records one committed batch of n rows
func (pt *ProgressTracker) BatchCommitted(n int) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.committedRows += int64(n)
	pt.batches++
	pt.lastUpdate = time.Now()
}

// Skip records rows that were committed by an earlier run and not reinserted
func (pt *ProgressTracker) Skip(n int64) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.skippedRows += n
}

func (pt *ProgressTracker) AddError(err string) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.errors = append(pt.errors, fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), err))
}

// CommittedRows is the running total of rows committed in this run
func (pt *ProgressTracker) CommittedRows() int64 {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return pt.committedRows
}

func (pt *ProgressTracker) GetMetrics() ImportMetrics {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	elapsed := time.Since(pt.startTime)

	var rowsPerSecond float64
	if elapsed.Seconds() > 0 {
		rowsPerSecond = float64(pt.committedRows) / elapsed.Seconds()
	}

	var progressPercent float64
	if pt.totalRows > 0 {
		progressPercent = float64(pt.committedRows+pt.skippedRows) / float64(pt.totalRows) * 100
	}

	return ImportMetrics{
		Table:           pt.table,
		TotalRows:       pt.totalRows,
		CommittedRows:   pt.committedRows,
		SkippedRows:     pt.skippedRows,
		Batches:         pt.batches,
		RowsPerSecond:   rowsPerSecond,
		ElapsedTime:     elapsed,
		ErrorCount:      len(pt.errors),
		ProgressPercent: progressPercent,
	}
}

// returning the most recent errors(up to limit)
func (pt *ProgressTracker) GetRecentErrors(limit int) []string {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	if len(pt.errors) <= limit {
		return append([]string(nil), pt.errors...)
	}
	return append([]string(nil), pt.errors[len(pt.errors)-limit:]...)
}

// PrintFinalSummary writes a short report of the load to w
func (pt *ProgressTracker) PrintFinalSummary(w io.Writer) {
	m := pt.GetMetrics()

	fmt.Fprintf(w, "\n===== %s import summary =====\n", m.Table)
	fmt.Fprintf(w, "Duration: %s\n", formatDuration(m.ElapsedTime))
	fmt.Fprintf(w, "Rows committed: %d / %d (%.1f%%)\n", m.CommittedRows, m.TotalRows, m.ProgressPercent)
	if m.SkippedRows > 0 {
		fmt.Fprintf(w, "Rows skipped (already committed): %d\n", m.SkippedRows)
	}
	fmt.Fprintf(w, "Batches: %d\n", m.Batches)
	fmt.Fprintf(w, "Average speed: %.0f rows/sec\n", m.RowsPerSecond)

	if m.ErrorCount > 0 {
		fmt.Fprintf(w, "Errors: %d\n", m.ErrorCount)
		for _, err := range pt.GetRecentErrors(5) {
			fmt.Fprintf(w, " - %s\n", err)
		}
	}
	fmt.Fprintln(w, "=============================")
}

// formats the duration in a human readable way
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
