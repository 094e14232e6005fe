package dedupe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SeenStore persists the SeenSet across process restarts.
type SeenStore interface {
	// Load returns the persisted set, or an empty set when none exists yet
	// (cold start: the first run notifies everything in-window).
	Load(ctx context.Context) (*SeenSet, error)

	// Save persists the full set, replacing any previous state.
	Save(ctx context.Context, set *SeenSet) error
}

// FileStore keeps the seen set in a JSON flat file. The default backend for
// single-host cron deployments.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load(_ context.Context) (*SeenSet, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewSeenSet(), nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrPersistence, f.path, err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrPersistence, f.path, err)
	}

	set := NewSeenSet()
	for fp, ts := range raw {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("%w: bad timestamp for %s in %s: %v", ErrPersistence, fp, f.path, err)
		}
		set.Add(fp, t)
	}
	return set, nil
}

// Save writes atomically: temp file in the same directory, then rename. A
// crash mid-write leaves the previous state intact.
func (f *FileStore) Save(_ context.Context, set *SeenSet) error {
	raw := make(map[string]string, set.Len())
	for fp, t := range set.Entries() {
		raw[fp] = t.UTC().Format(time.RFC3339)
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrPersistence, err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp in %s: %v", ErrPersistence, dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", ErrPersistence, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %v", ErrPersistence, tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: rename to %s: %v", ErrPersistence, f.path, err)
	}
	return nil
}
