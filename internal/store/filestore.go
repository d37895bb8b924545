package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore keeps stage records under a root directory, one JSON file per
// (document, stage). Writes go to a temp file in the destination directory
// and are renamed into place, so readers never see a partial record.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("NewFileStore: root directory must be provided")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store root %s: %w: %w", root, ErrIO, err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) recordPath(stage Stage, name string) string {
	return filepath.Join(s.root, stage.Dir(), name+stage.suffix())
}

func (s *FileStore) Has(_ context.Context, stage Stage, name string) (bool, error) {
	_, err := os.Stat(s.recordPath(stage, name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat record for %s/%s: %w: %w", stage, name, ErrIO, err)
}

func (s *FileStore) Save(_ context.Context, stage Stage, name string, record any) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record for %s/%s: %w: %w", stage, name, ErrIO, err)
	}
	return s.writeAtomically(s.recordPath(stage, name), append(data, '\n'))
}

func (s *FileStore) Load(_ context.Context, stage Stage, name string, out any) error {
	path := s.recordPath(stage, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read record %s: %w: %w", path, ErrIO, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal record %s: %w: %w", path, ErrIO, err)
	}
	return nil
}

func (s *FileStore) List(_ context.Context, stage Stage) ([]string, error) {
	dir := filepath.Join(s.root, stage.Dir())
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list stage directory %s: %w: %w", dir, ErrIO, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), stage.suffix()) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), stage.suffix()))
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStore) WriteText(_ context.Context, stage Stage, filename, content string) error {
	return s.writeAtomically(filepath.Join(s.root, stage.Dir(), filename), []byte(content))
}

func (s *FileStore) AppendLog(_ context.Context, stage Stage, filename, line string) error {
	dir := filepath.Join(s.root, stage.Dir())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create stage directory %s: %w: %w", dir, ErrIO, err)
	}
	path := filepath.Join(dir, filename)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log %s: %w: %w", path, ErrIO, err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("failed to append to log %s: %w: %w", path, ErrIO, err)
	}
	return nil
}

// writeAtomically writes data to a temp file in the destination directory
// and renames it over the final path.
func (s *FileStore) writeAtomically(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create stage directory %s: %w: %w", dir, ErrIO, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w: %w", dir, ErrIO, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file %s: %w: %w", tmpName, ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to finalize temp file %s: %w: %w", tmpName, ErrIO, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to commit record %s: %w: %w", path, ErrIO, err)
	}
	return nil
}
