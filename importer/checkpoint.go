package importer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/SusheelSathyaraj/FlightDataLoader/monitoring"
)

type CheckpointStatus string

const (
	StatusInProgress CheckpointStatus = "in_progress"
	StatusCompleted  CheckpointStatus = "completed"
	StatusFailed     CheckpointStatus = "failed"
)

// Checkpoint records how far an import of one file into one table got.
// Rows [0, CommittedRows) of the file are known to be committed.
type Checkpoint struct {
	ID            string           `json:"id"`
	Table         string           `json:"table"`
	File          string           `json:"file"`
	FileSize      int64            `json:"file_size"`
	FileModTime   time.Time        `json:"file_mod_time"`
	TotalRows     int              `json:"total_rows"`
	CommittedRows int              `json:"committed_rows"`
	Batches       int              `json:"batches"`
	Status        CheckpointStatus `json:"status"`
	StartedAt     time.Time        `json:"started_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// CheckpointManager keeps one JSON file per (table, csv file) pair in a directory
type CheckpointManager struct {
	dir    string
	logger *monitoring.ImportLogger
}

// creating a new checkpoint manager, the directory is created when missing
func NewCheckpointManager(dir string, logger *monitoring.ImportLogger) (*CheckpointManager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create checkpoint directory %s, %w", dir, err)
	}
	if logger == nil {
		logger = monitoring.NullLogger()
	}
	return &CheckpointManager{dir: dir, logger: logger}, nil
}

// table, file base name and a short hash of the absolute path, so equally named files
// in different directories keep separate checkpoints
func checkpointID(table, file string) string {
	abs, err := filepath.Abs(file)
	if err != nil {
		abs = filepath.Clean(file)
	}
	sum := sha256.Sum256([]byte(abs))

	base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	base = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' || r == ':' {
			return '_'
		}
		return r
	}, base)
	return table + "_" + base + "_" + hex.EncodeToString(sum[:4])
}

// Begin returns the checkpoint to continue from. An unfinished checkpoint is reused when it
// describes the same, unchanged file; otherwise a fresh one starting at row 0 is written.
func (cm *CheckpointManager) Begin(file, table string, totalRows int) (*Checkpoint, error) {
	info, err := os.Stat(file)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s, %w", file, err)
	}

	id := checkpointID(table, file)
	now := time.Now()

	prev, err := cm.Load(id)
	switch {
	case err == nil && prev.Status != StatusCompleted && prev.FileSize == info.Size() &&
		prev.FileModTime.Equal(info.ModTime()) && prev.TotalRows == totalRows && prev.CommittedRows <= totalRows:
		prev.Status = StatusInProgress
		prev.UpdatedAt = now
		if prev.CommittedRows > 0 {
			cm.logger.Info(fmt.Sprintf("Resuming %s from checkpoint %s at row %d of %d", table, id, prev.CommittedRows, totalRows))
		}
		if err := cm.save(prev); err != nil {
			return nil, err
		}
		return prev, nil
	case err == nil && prev.Status == StatusCompleted:
		cm.logger.Verbose("Checkpoint %s is completed, loading %s from the start", id, file)
	case err == nil:
		cm.logger.Info(fmt.Sprintf("Checkpoint %s is for a different version of %s, starting over", id, file))
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}

	cp := &Checkpoint{
		ID:          id,
		Table:       table,
		File:        file,
		FileSize:    info.Size(),
		FileModTime: info.ModTime(),
		TotalRows:   totalRows,
		Status:      StatusInProgress,
		StartedAt:   now,
		UpdatedAt:   now,
	}
	if err := cm.save(cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// Advance records one more committed batch of n rows
func (cm *CheckpointManager) Advance(cp *Checkpoint, n int) error {
	cp.CommittedRows += n
	cp.Batches++
	cp.UpdatedAt = time.Now()
	return cm.save(cp)
}

// marking the checkpoint as completed
func (cm *CheckpointManager) MarkCompleted(cp *Checkpoint) error {
	cp.Status = StatusCompleted
	cp.UpdatedAt = time.Now()
	return cm.save(cp)
}

// marking the checkpoint as failed, committed rows stay resumable
func (cm *CheckpointManager) MarkFailed(cp *Checkpoint) error {
	cp.Status = StatusFailed
	cp.UpdatedAt = time.Now()
	return cm.save(cp)
}

// saving a checkpoint to the disk, via a temp file so a crash never leaves half a file
func (cm *CheckpointManager) save(cp *Checkpoint) error {
	fileName := filepath.Join(cm.dir, cp.ID+".json")

	data, err := json.MarshalIndent(cp, "", " ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint, %w", err)
	}
	tmp := fileName + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file, %w", err)
	}
	if err := os.Rename(tmp, fileName); err != nil {
		return fmt.Errorf("failed to write checkpoint file, %w", err)
	}
	return nil
}

// loading a checkpoint from the disk
func (cm *CheckpointManager) Load(id string) (*Checkpoint, error) {
	filename := filepath.Join(cm.dir, id+".json")

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file, %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint %s, %w", id, err)
	}
	return &cp, nil
}

// returns a list of all checkpoints available
func (cm *CheckpointManager) ListCheckpoints() ([]Checkpoint, error) {
	files, err := filepath.Glob(filepath.Join(cm.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list the checkpoints, %w", err)
	}

	var checkpoints []Checkpoint
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			cm.logger.Warn("could not read checkpoint file %s, %v", file, err)
			continue
		}
		var cp Checkpoint
		if err := json.Unmarshal(data, &cp); err != nil {
			cm.logger.Warn("could not parse checkpoint file %s, %v", file, err)
			continue
		}
		checkpoints = append(checkpoints, cp)
	}
	return checkpoints, nil
}

// removing completed checkpoints not touched for longer than maxAge
func (cm *CheckpointManager) CleanupOldCheckpoints(maxAge time.Duration) (int, error) {
	checkpoints, err := cm.ListCheckpoints()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	cleaned := 0

	for _, cp := range checkpoints {
		if cp.Status != StatusCompleted || !cp.UpdatedAt.Before(cutoff) {
			continue
		}
		filename := filepath.Join(cm.dir, cp.ID+".json")
		if err := os.Remove(filename); err != nil {
			cm.logger.Warn("could not remove checkpoint %s, %v", filename, err)
			continue
		}
		cleaned++
		cm.logger.Verbose("Cleaned up old checkpoint %s", cp.ID)
	}
	cm.logger.Info(fmt.Sprintf("Cleaned up %d old checkpoints", cleaned))
	return cleaned, nil
}
