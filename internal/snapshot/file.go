package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// FileStore persists snapshots as pretty-printed JSON at a fixed path.
type FileStore struct {
	path   string
	logger zerolog.Logger
}

// NewFileStore constructs a file-backed snapshot store.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger.With().Str("component", "snapshot_store").Logger(),
	}
}

// Load reads the prior snapshot. A missing file is the normal first-run
// case; an unreadable or malformed file is logged and treated the same way.
func (s *FileStore) Load() (*Snapshot, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("snapshot unreadable; starting fresh")
		}
		return nil, false
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("snapshot corrupt; starting fresh")
		return nil, false
	}
	if !snap.consistent() {
		s.logger.Warn().Str("path", s.path).Msg("snapshot sequences mismatched; starting fresh")
		return nil, false
	}

	return &snap, true
}

// Save writes the snapshot to a temp file in the target directory and
// renames it into place, so a crash mid-write never clobbers the prior state.
func (s *FileStore) Save(snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace snapshot: %w", err)
	}

	s.logger.Debug().Str("path", s.path).Int("bytes", len(data)).Msg("snapshot written")
	return nil
}

var _ Store = (*FileStore)(nil)
