package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Pending records a copy-then-remove transfer that has not finished yet.
type Pending struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	Copied      bool      `json:"copied"`
	Created     time.Time `json:"created"`
}

// Journal stores Pending markers as one JSON file each in a directory.
type Journal struct {
	dir string
}

// NewJournal opens (and creates) a journal directory.
func NewJournal(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	return &Journal{dir: dir}, nil
}

// Dir returns the journal directory.
func (j *Journal) Dir() string { return j.dir }

// Begin writes a marker before any data is copied.
func (j *Journal) Begin(source, destination string) (*Pending, error) {
	p := &Pending{
		ID:          uuid.NewString(),
		Source:      source,
		Destination: destination,
		Created:     time.Now().UTC(),
	}
	if err := j.write(p); err != nil {
		return nil, err
	}
	return p, nil
}

// MarkCopied records that the destination holds a complete copy.
func (j *Journal) MarkCopied(p *Pending) error {
	p.Copied = true
	return j.write(p)
}

// Done removes the marker.
func (j *Journal) Done(p *Pending) error {
	err := os.Remove(j.path(p.ID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove marker %s: %w", p.ID, err)
	}
	return nil
}

// List returns all markers, oldest first.
func (j *Journal) List() ([]*Pending, error) {
	files, err := os.ReadDir(j.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read journal: %w", err)
	}

	var out []*Pending
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(j.dir, f.Name()))
		if err != nil {
			return nil, fmt.Errorf("read marker %s: %w", f.Name(), err)
		}
		var p Pending
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse marker %s: %w", f.Name(), err)
		}
		if p.ID == "" {
			p.ID = strings.TrimSuffix(f.Name(), ".json")
		}
		out = append(out, &p)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Created.Before(out[b].Created) })
	return out, nil
}

func (j *Journal) path(id string) string {
	return filepath.Join(j.dir, id+".json")
}

func (j *Journal) write(p *Pending) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode marker: %w", err)
	}
	return WriteFileAtomic(j.path(p.ID), data, 0644)
}

// WriteFileAtomic writes data to a temp file next to name, then renames it
// into place so readers never see a partial file.
func WriteFileAtomic(name string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(name)
	tmp, err := os.CreateTemp(dir, TempPattern())
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpName, name); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp to %s: %w", name, err)
	}
	return nil
}
