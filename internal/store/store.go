// Package store persists trained model snapshots with bounded
// retention. Snapshots are immutable files named by training cut-off;
// writes are temp-then-rename so a crash never leaves a half-written
// snapshot.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/temp-anomaly-service/internal/domain"
)

const (
	snapshotPrefix = "model_"
	snapshotSuffix = ".json"
	// stampLayout sorts lexicographically in chronological order.
	stampLayout = "20060102T150405Z"
)

// Encoder is what the store needs from a model: a serialized form.
type Encoder interface {
	Encode() ([]byte, error)
}

// Snapshot is the persisted form of a trained model.
type Snapshot struct {
	TrainedAt   time.Time       `json:"trained_at"`
	HistorySize int             `json:"history_size"`
	SavedAt     time.Time       `json:"saved_at"`
	Model       json.RawMessage `json:"model"`
}

// Info describes one stored snapshot without its payload.
type Info struct {
	TrainedAt   time.Time `json:"trained_at"`
	HistorySize int       `json:"history_size"`
	Path        string    `json:"path"`
	SizeBytes   int64     `json:"size_bytes"`
}

// Usage summarizes on-disk snapshot consumption for status reporting.
type Usage struct {
	Count      int   `json:"count"`
	TotalBytes int64 `json:"total_bytes"`
}

// Store writes snapshots under a single directory and prunes the oldest
// beyond the retention limit.
type Store struct {
	dir       string
	retention int
	logger    *slog.Logger
}

// New creates a Store. The directory is created on first save.
func New(dir string, retention int, logger *slog.Logger) *Store {
	return &Store{dir: dir, retention: retention, logger: logger}
}

// Save persists one snapshot keyed by trainedAt, then evicts the oldest
// snapshots beyond the retention limit. Failures wrap domain.ErrStorage;
// callers log and continue, a failed save never stops the stream.
func (s *Store) Save(model Encoder, trainedAt time.Time, historySize int) error {
	payload, err := model.Encode()
	if err != nil {
		return fmt.Errorf("%w: encode model: %v", domain.ErrStorage, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", domain.ErrStorage, s.dir, err)
	}

	snap := Snapshot{
		TrainedAt:   trainedAt.UTC(),
		HistorySize: historySize,
		SavedAt:     domain.Clock().Now().UTC(),
		Model:       payload,
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: marshal snapshot: %v", domain.ErrStorage, err)
	}

	final := filepath.Join(s.dir, snapshotName(trainedAt))
	if err := writeAtomic(s.dir, final, data); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrStorage, final, err)
	}

	s.logger.Info("snapshot saved", "path", final, "history_size", historySize)
	s.prune()
	return nil
}

// LoadLatest returns the most recent snapshot, or domain.ErrNoSnapshot
// when the store is empty.
func (s *Store) LoadLatest() (Snapshot, error) {
	names, err := s.snapshotNames()
	if err != nil {
		return Snapshot{}, err
	}
	if len(names) == 0 {
		return Snapshot{}, domain.ErrNoSnapshot
	}

	// Names sort chronologically; the last is the newest.
	path := filepath.Join(s.dir, names[len(names)-1])
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: read %s: %v", domain.ErrStorage, path, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: decode %s: %v", domain.ErrStorage, path, err)
	}
	return snap, nil
}

// List returns snapshot metadata, newest first.
func (s *Store) List() ([]Info, error) {
	names, err := s.snapshotNames()
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(names))
	for i := len(names) - 1; i >= 0; i-- {
		path := filepath.Join(s.dir, names[i])
		fi, err := os.Stat(path)
		if err != nil {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			continue
		}
		infos = append(infos, Info{
			TrainedAt:   snap.TrainedAt,
			HistorySize: snap.HistorySize,
			Path:        path,
			SizeBytes:   fi.Size(),
		})
	}
	return infos, nil
}

// Usage returns snapshot count and total bytes on disk.
func (s *Store) Usage() Usage {
	names, err := s.snapshotNames()
	if err != nil {
		return Usage{}
	}
	var u Usage
	for _, name := range names {
		fi, err := os.Stat(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		u.Count++
		u.TotalBytes += fi.Size()
	}
	return u
}

// prune removes the oldest snapshots beyond the retention limit.
// Best-effort: a failed delete is logged, not returned.
func (s *Store) prune() {
	names, err := s.snapshotNames()
	if err != nil || len(names) <= s.retention {
		return
	}
	for _, name := range names[:len(names)-s.retention] {
		path := filepath.Join(s.dir, name)
		if err := os.Remove(path); err != nil {
			s.logger.Warn("snapshot prune failed", "path", path, "error", err)
			continue
		}
		s.logger.Info("snapshot evicted", "path", path)
	}
}

// snapshotNames lists snapshot file names sorted oldest first.
func (s *Store) snapshotNames() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read dir %s: %v", domain.ErrStorage, s.dir, err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotSuffix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func snapshotName(trainedAt time.Time) string {
	return snapshotPrefix + trainedAt.UTC().Format(stampLayout) + snapshotSuffix
}

func writeAtomic(dir, final string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-model-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
