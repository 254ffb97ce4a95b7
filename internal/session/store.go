// File: internal/session/store.go
// Description: File-backed persistence for session snapshots. One JSON document
// per session id; writes are atomic (temp file + rename) so a crash mid-save
// never corrupts a resumable session.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartographer-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const snapshotExt = ".json"

// FileStore persists session snapshots under a single directory.
type FileStore struct {
	dir string
	log *zap.Logger
}

var _ schemas.SnapshotStore = (*FileStore)(nil)

// NewFileStore creates the snapshot directory if needed and returns a store.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir == "" {
		return nil, fmt.Errorf("snapshot directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create snapshot directory %q: %w", dir, err)
	}
	return &FileStore{dir: dir, log: logger.Named("session_store")}, nil
}

// Save writes the snapshot atomically, stamping SavedAt.
func (s *FileStore) Save(ctx context.Context, snap schemas.SessionSnapshot) error {
	if err := validateID(snap.ID); err != nil {
		return err
	}
	snap.SavedAt = time.Now().UTC()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal snapshot %q: %w", snap.ID, err)
	}

	final := s.path(snap.ID)
	tmp, err := os.CreateTemp(s.dir, snap.ID+".tmp-*")
	if err != nil {
		return fmt.Errorf("cannot create temp snapshot file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("cannot write snapshot %q: %w", snap.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cannot close snapshot %q: %w", snap.ID, err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cannot finalize snapshot %q: %w", snap.ID, err)
	}

	s.log.Debug("Session snapshot saved", zap.String("session_id", snap.ID), zap.Int("bytes", len(data)))
	return nil
}

// Load reads one snapshot by id.
func (s *FileStore) Load(ctx context.Context, id string) (schemas.SessionSnapshot, error) {
	if err := validateID(id); err != nil {
		return schemas.SessionSnapshot{}, err
	}
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return schemas.SessionSnapshot{}, fmt.Errorf("session %q not found", id)
		}
		return schemas.SessionSnapshot{}, fmt.Errorf("cannot read session %q: %w", id, err)
	}

	var snap schemas.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return schemas.SessionSnapshot{}, fmt.Errorf("corrupt snapshot for session %q: %w", id, err)
	}
	if snap.ID != id {
		return schemas.SessionSnapshot{}, fmt.Errorf("snapshot id mismatch: file %q contains %q", id, snap.ID)
	}
	return snap, nil
}

// List returns the persisted session ids, sorted for stable output.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("cannot list snapshot directory: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, snapshotExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// Clear removes one persisted session. Clearing an absent id is not an error.
func (s *FileStore) Clear(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot clear session %q: %w", id, err)
	}
	return nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+snapshotExt)
}

// validateID keeps session ids safe to use as file names.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("session id must not be empty")
	}
	if strings.ContainsAny(id, "/\\") || id != filepath.Base(id) {
		return fmt.Errorf("invalid session id %q", id)
	}
	return nil
}
