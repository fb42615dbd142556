// Package jsonfile persists memory records and goals as JSON Lines files.
//
// The format is append-friendly (one record per line, insertion order) and
// round-trips exactly: text, response, and themes byte for byte, embeddings
// at full float32 precision. Every mutation commits through a
// write-temp-then-rename cycle so a crash can never lose a committed entry
// or leave a partially written one.
package jsonfile

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/stillpoint/mira-go-sdk/memory"
)

// MemoryStore is the jsonfile-backed memory.Store. Reads never block on
// writers beyond the duration of an in-flight commit; a record appended
// before All is called is always visible.
type MemoryStore struct {
	path string

	mu      sync.RWMutex
	records []*memory.Record
}

// OpenMemoryStore loads the store at path, creating parent directories as
// needed. A missing file is an empty store, not an error.
func OpenMemoryStore(path string) (*MemoryStore, error) {
	s := &MemoryStore{path: path}

	if err := loadLines(path, func(line []byte) error {
		var rec memory.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		s.records = append(s.records, &rec)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("open memory store %s: %w", path, err)
	}

	return s, nil
}

// Append persists a new record and returns it. The commit is durable before
// Append returns; on failure nothing is retained in memory either.
func (s *MemoryStore) Append(ctx context.Context, text, response string, embedding []float32, ts time.Time) (*memory.Record, error) {
	if text == "" {
		return nil, memory.ErrEmptyText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) > 0 {
		if want := len(s.records[0].Embedding); len(embedding) != want {
			return nil, &memory.DimensionError{Want: want, Got: len(embedding)}
		}
	}

	rec := memory.NewRecord(text, response, embedding, ts)
	s.records = append(s.records, rec)

	if err := s.saveLocked(); err != nil {
		s.records = s.records[:len(s.records)-1]
		return nil, fmt.Errorf("append record: %w", err)
	}

	return cloneRecord(rec), nil
}

// All returns every record in insertion order. The returned records are
// copies; mutating them does not touch the store.
func (s *MemoryStore) All(ctx context.Context) ([]*memory.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*memory.Record, len(s.records))
	for i, rec := range s.records {
		out[i] = cloneRecord(rec)
	}
	return out, nil
}

// AnnotateThemes replaces the theme tags of the record with the given id.
func (s *MemoryStore) AnnotateThemes(ctx context.Context, id string, themes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records {
		if rec.ID != id {
			continue
		}

		prev := rec.Themes
		rec.Themes = append([]string{}, themes...)
		if err := s.saveLocked(); err != nil {
			rec.Themes = prev
			return fmt.Errorf("annotate themes: %w", err)
		}
		return nil
	}

	return fmt.Errorf("annotate themes %s: %w", id, memory.ErrNotFound)
}

// Len reports the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStore) saveLocked() error {
	var buf bytes.Buffer
	for _, rec := range s.records {
		line, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode record %s: %w", rec.ID, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return writeAtomic(s.path, buf.Bytes())
}

func cloneRecord(rec *memory.Record) *memory.Record {
	out := *rec
	out.Embedding = append([]float32{}, rec.Embedding...)
	out.Themes = append([]string{}, rec.Themes...)
	return &out
}

// loadLines streams the JSONL file at path through fn, line by line.
func loadLines(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	// Long reflections plus a 384-float embedding exceed the default token size.
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return sc.Err()
}

// writeAtomic commits data to path via a temp file in the same directory,
// fsynced before the rename so the commit survives a crash.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
