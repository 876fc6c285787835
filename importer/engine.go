package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/SusheelSathyaraj/FlightDataLoader/config"
	"github.com/SusheelSathyaraj/FlightDataLoader/csvsource"
	"github.com/SusheelSathyaraj/FlightDataLoader/database"
	"github.com/SusheelSathyaraj/FlightDataLoader/monitoring"
	"github.com/SusheelSathyaraj/FlightDataLoader/schema"
	"github.com/SusheelSathyaraj/FlightDataLoader/validation"
)

// ErrColumnCount is returned when a reference file does not have one column per table column.
var ErrColumnCount = errors.New("file column count does not match table")

// config for the loaders
type ImportConfig struct {
	BatchSize  int
	NullValues []string
	Validate   bool
	Resume     bool
}

func ImportConfigFrom(cfg *config.Config) ImportConfig {
	return ImportConfig{
		BatchSize:  cfg.Import.BatchSize,
		NullValues: cfg.Import.NullValues,
		Validate:   cfg.Import.Validate,
		Resume:     cfg.Import.Resume,
	}
}

// Results of one table load
type ImportResult struct {
	Table          string
	File           string
	Success        bool
	RowsRead       int
	RowsInserted   int64
	RowsSkipped    int
	Batches        int
	Duration       time.Duration
	StartTime      time.Time
	EndTime        time.Time
	PreValidation  *validation.ValidationResult
	PostValidation *validation.ValidationResult
	Errors         []string
}

// Engine loads csv files into the target, one table at a time
type Engine struct {
	Config      ImportConfig
	Target      database.TargetClient
	Validator   *validation.ImportValidator
	Checkpoints *CheckpointManager // nil disables resume
	Logger      *monitoring.ImportLogger
	Out         io.Writer // summaries
}

// creating a new import engine
func NewEngine(cfg ImportConfig, target database.TargetClient, checkpoints *CheckpointManager, logger *monitoring.ImportLogger) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = database.DefaultBatchSize
	}
	if logger == nil {
		logger = monitoring.NullLogger()
	}
	return &Engine{
		Config:      cfg,
		Target:      target,
		Validator:   validation.NewImportValidator(target),
		Checkpoints: checkpoints,
		Logger:      logger,
		Out:         os.Stdout,
	}
}

func newResult(table schema.Table, path string) *ImportResult {
	return &ImportResult{
		Table:     table.Name,
		File:      path,
		StartTime: time.Now(),
		Errors:    make([]string, 0),
	}
}

func (r *ImportResult) finish(success bool) {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	r.Success = success
}

func (r *ImportResult) fail(err error) error {
	r.Errors = append(r.Errors, err.Error())
	r.finish(false)
	return err
}

// LoadReferenceTable inserts every row of a small csv file in one transaction.
// Values are taken by position, so the file must have exactly one column per table column.
func (e *Engine) LoadReferenceTable(ctx context.Context, path string, table schema.Table) (*ImportResult, error) {
	result := newResult(table, path)

	data, err := csvsource.ReadFile(path, csvsource.Options{NullValues: e.Config.NullValues})
	if err != nil {
		return result, result.fail(err)
	}
	result.RowsRead = data.Len()

	if len(data.Header) != table.Width() {
		return result, result.fail(fmt.Errorf("%w: %s has %d columns, table %s has %d",
			ErrColumnCount, path, len(data.Header), table.Name, table.Width()))
	}

	if e.Config.Validate {
		pre := e.Validator.PreImportValidation(data, table)
		result.PreValidation = &pre
		if len(pre.MissingColumns) > 0 {
			e.Logger.Warn("%s header does not name columns %s, loading by position",
				path, strings.Join(pre.MissingColumns, ", "))
		}
	}

	rows := make([]schema.Row, len(data.Records))
	for i, rec := range data.Records {
		rows[i] = schema.Row(rec)
	}
	if err := validation.ValidateRowWidth(rows, table); err != nil {
		return result, result.fail(err)
	}

	var before int64
	if e.Config.Validate {
		if before, err = e.Validator.CountBefore(ctx, table); err != nil {
			return result, result.fail(fmt.Errorf("counting rows in %s, %w", table.Name, err))
		}
	}

	n, err := e.Target.InsertRows(ctx, table.Name, table.Columns, rows)
	if err != nil {
		e.Logger.Error(fmt.Sprintf("Failed to load %s into %s", path, table.Name), err.Error())
		return result, result.fail(fmt.Errorf("inserting into %s, %w", table.Name, err))
	}
	result.RowsInserted = n
	result.Batches = 1
	e.Logger.Infof("Inserted %d rows into %s table.", n, table.Name)

	if e.Config.Validate {
		if err := e.postValidate(ctx, result, table, before); err != nil {
			return result, result.fail(err)
		}
	}

	result.finish(true)
	return result, nil
}

// LoadFactTable maps a large csv file onto table by header name and inserts it
// in batches, committing after each one. The first failing batch stops the load.
func (e *Engine) LoadFactTable(ctx context.Context, path string, table schema.Table) (*ImportResult, error) {
	result := newResult(table, path)

	data, err := csvsource.ReadFile(path, csvsource.Options{
		LowercaseHeaders: true,
		DropEmptyColumns: true,
		NullValues:       e.Config.NullValues,
	})
	if err != nil {
		return result, result.fail(err)
	}
	result.RowsRead = data.Len()

	if e.Config.Validate {
		pre := e.Validator.PreImportValidation(data, table)
		result.PreValidation = &pre
		if !pre.IsValid {
			return result, result.fail(fmt.Errorf("pre-import validation failed for %s, %s", table.Name, pre.ErrorMessage))
		}
	}

	mapping := schema.NewMapping(data.Header, table.Columns)
	if missing := mapping.Missing(); len(missing) > 0 {
		e.Logger.Verbose("%s: columns not in %s are loaded as NULL: %s", table.Name, path, strings.Join(missing, ", "))
	}

	rows := make([]schema.Row, len(data.Records))
	for i, rec := range data.Records {
		rows[i] = mapping.RowValues(rec)
		data.Records[i] = nil
	}
	if err := validation.ValidateRowWidth(rows, table); err != nil {
		return result, result.fail(err)
	}

	skip := 0
	var cp *Checkpoint
	if e.Config.Resume && e.Checkpoints != nil {
		if cp, err = e.Checkpoints.Begin(path, table.Name, len(rows)); err != nil {
			return result, result.fail(err)
		}
		skip = cp.CommittedRows
	}
	result.RowsSkipped = skip

	tracker := monitoring.NewProgressTracker(table.Name, int64(len(rows)))
	tracker.Skip(int64(skip))

	var before int64
	if e.Config.Validate {
		if before, err = e.Validator.CountBefore(ctx, table); err != nil {
			return result, result.fail(fmt.Errorf("counting rows in %s, %w", table.Name, err))
		}
	}

	pending := rows[skip:]
	bp := database.NewBatchProcessor(e.Config.BatchSize)
	total := bp.BatchCount(len(pending))
	e.Logger.Verbose("Loading %d rows into %s in %d batches of up to %d", len(pending), table.Name, total, bp.BatchSize())

	err = bp.ProcessInBatches(pending, func(batch []schema.Row, start, end int) error {
		n, err := e.Target.InsertRows(ctx, table.Name, table.Columns, batch)
		if err != nil {
			return err
		}
		result.RowsInserted += n
		result.Batches++
		tracker.BatchCommitted(len(batch))

		if result.Batches == total {
			e.Logger.Infof("Inserted %d rows (final).", skip+end)
		} else {
			e.Logger.Infof("Inserted %d rows...", skip+end)
		}

		for i := range batch {
			batch[i] = nil
		}
		if cp != nil {
			if err := e.Checkpoints.Advance(cp, len(batch)); err != nil {
				e.Logger.Warn("could not save checkpoint for %s, %v", table.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		var batchErr *database.BatchError
		if errors.As(err, &batchErr) {
			batchErr.Table = table.Name
			batchErr.Start += skip
			batchErr.End += skip
		}
		e.Logger.Error(fmt.Sprintf("Error inserting into %s, batch rolled back", table.Name), err.Error())
		tracker.AddError(err.Error())
		if cp != nil {
			if cpErr := e.Checkpoints.MarkFailed(cp); cpErr != nil {
				e.Logger.Warn("could not save checkpoint for %s, %v", table.Name, cpErr)
			}
		}
		tracker.PrintFinalSummary(e.Out)
		return result, result.fail(err)
	}

	if cp != nil {
		if err := e.Checkpoints.MarkCompleted(cp); err != nil {
			e.Logger.Warn("could not save checkpoint for %s, %v", table.Name, err)
		}
	}
	e.Logger.Infof("%s data uploaded successfully.", capitalize(table.Name))

	if e.Config.Validate {
		if err := e.postValidate(ctx, result, table, before); err != nil {
			return result, result.fail(err)
		}
	}

	result.finish(true)
	tracker.PrintFinalSummary(e.Out)
	return result, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (e *Engine) postValidate(ctx context.Context, result *ImportResult, table schema.Table, before int64) error {
	post, err := e.Validator.PostImportValidation(ctx, table, before, result.RowsInserted)
	result.PostValidation = &post
	if err != nil {
		return fmt.Errorf("post-import validation failed for %s, %w", table.Name, err)
	}
	if !post.IsValid {
		return fmt.Errorf("post-import validation failed for %s, %s", table.Name, post.ErrorMessage)
	}
	return nil
}

// Job is one file to load into one table
type Job struct {
	Table   schema.Table
	Path    string
	Batched bool
}

// DefaultJobs loads the reference tables before the flights that point at them.
func DefaultJobs(cfg *config.Config) []Job {
	return []Job{
		{Table: schema.Airlines, Path: cfg.Files.Airlines},
		{Table: schema.Airports, Path: cfg.Files.Airports},
		{Table: schema.Flights, Path: cfg.Files.Flights, Batched: true},
	}
}

// JobFor builds the job for a single table name
func JobFor(cfg *config.Config, name string) (Job, error) {
	table, err := schema.Lookup(name)
	if err != nil {
		return Job{}, err
	}
	path, err := cfg.FileFor(table.Name)
	if err != nil {
		return Job{}, err
	}
	return Job{Table: table, Path: path, Batched: table.Name == schema.Flights.Name}, nil
}

// Run executes a single job with the matching loader
func (e *Engine) Run(ctx context.Context, job Job) (*ImportResult, error) {
	e.Logger.Infof("Loading %s into %s (%s)", job.Path, job.Table.Name, e.Target.Name())
	if job.Batched {
		return e.LoadFactTable(ctx, job.Path, job.Table)
	}
	return e.LoadReferenceTable(ctx, job.Path, job.Table)
}

// RunAll runs the jobs in order and stops at the first failure.
func (e *Engine) RunAll(ctx context.Context, jobs []Job) ([]*ImportResult, error) {
	startTime := time.Now()
	results := make([]*ImportResult, 0, len(jobs))

	for _, job := range jobs {
		result, err := e.Run(ctx, job)
		results = append(results, result)
		if err != nil {
			e.printValidation(results, startTime)
			return results, fmt.Errorf("loading %s failed, %w", job.Table.Name, err)
		}
	}

	e.printValidation(results, startTime)
	return results, nil
}

func (e *Engine) printValidation(results []*ImportResult, startTime time.Time) {
	if !e.Config.Validate {
		return
	}
	var post []validation.ValidationResult
	for _, r := range results {
		if r.PostValidation != nil {
			post = append(post, *r.PostValidation)
		}
	}
	if len(post) == 0 {
		return
	}
	validation.GenerateValidationSummary(post, startTime).Print(e.Out, "Post-Import")
}
