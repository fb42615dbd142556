package jsonfile_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stillpoint/mira-go-sdk/memory"
	"github.com/stillpoint/mira-go-sdk/memory/store/jsonfile"
)

func testVector(seed float32, dims int) []float32 {
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = seed + float32(i)*0.001
	}
	return vec
}

func TestMemoryStore_AppendAndAll(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "core_memory.jsonl")

	s, err := jsonfile.OpenMemoryStore(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	ts := time.Date(2026, 7, 18, 1, 0, 0, 0, time.UTC)
	rec, err := s.Append(ctx, "felt gratitude toward family", "that sounds grounding", testVector(0.1, 8), ts)
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if rec.ID == "" {
		t.Error("append did not assign an id")
	}
	if len(rec.Themes) != 0 {
		t.Errorf("themes should start empty, got %v", rec.Themes)
	}

	// Appended records are immediately visible.
	all, err := s.All(ctx)
	if err != nil {
		t.Fatalf("all failed: %v", err)
	}
	if len(all) != 1 || all[0].ID != rec.ID {
		t.Fatalf("expected the appended record, got %d records", len(all))
	}
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "core_memory.jsonl")

	s, err := jsonfile.OpenMemoryStore(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	base := time.Date(2026, 7, 18, 1, 0, 0, 0, time.UTC)
	texts := []string{
		"thinking about the art project and how to start it",
		"reflecting on the new art project and the fear of failure",
		"appreciation for a professor who helped with the job search",
	}
	for i, text := range texts {
		if _, err := s.Append(ctx, text, "reply "+text, testVector(float32(i), 8), base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}
	want, _ := s.All(ctx)

	// Reopen from disk and compare.
	s2, err := jsonfile.OpenMemoryStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got, err := s2.All(ctx)
	if err != nil {
		t.Fatalf("all after reopen failed: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d records after reload, got %d", len(want), len(got))
	}
	for i := range want {
		w, g := want[i], got[i]
		if g.ID != w.ID || g.Text != w.Text || g.Response != w.Response {
			t.Errorf("record %d fields changed across reload: %+v vs %+v", i, g, w)
		}
		if !g.Timestamp.Equal(w.Timestamp) {
			t.Errorf("record %d timestamp changed: %v vs %v", i, g.Timestamp, w.Timestamp)
		}
		if len(g.Embedding) != len(w.Embedding) {
			t.Fatalf("record %d embedding length changed: %d vs %d", i, len(g.Embedding), len(w.Embedding))
		}
		for j := range w.Embedding {
			if math.Abs(float64(g.Embedding[j]-w.Embedding[j])) > 1e-6 {
				t.Errorf("record %d embedding component %d drifted: %f vs %f", i, j, g.Embedding[j], w.Embedding[j])
			}
		}
	}
}

func TestMemoryStore_AnnotateThemes(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "core_memory.jsonl")

	s, _ := jsonfile.OpenMemoryStore(path)
	rec, err := s.Append(ctx, "worried about the deadline", "", testVector(0.5, 8), time.Now().UTC())
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	if err := s.AnnotateThemes(ctx, rec.ID, []string{"work", "anxiety"}); err != nil {
		t.Fatalf("annotate failed: %v", err)
	}

	// Themes survive a reload.
	s2, _ := jsonfile.OpenMemoryStore(path)
	all, _ := s2.All(ctx)
	if len(all) != 1 || len(all[0].Themes) != 2 || all[0].Themes[0] != "work" {
		t.Errorf("themes did not persist: %+v", all[0].Themes)
	}

	if err := s.AnnotateThemes(ctx, "no-such-id", []string{"x"}); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("unknown id: got %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_RejectsEmptyText(t *testing.T) {
	ctx := context.Background()
	s, _ := jsonfile.OpenMemoryStore(filepath.Join(t.TempDir(), "m.jsonl"))

	if _, err := s.Append(ctx, "", "reply", testVector(0, 8), time.Now()); !errors.Is(err, memory.ErrEmptyText) {
		t.Errorf("empty text: got %v, want ErrEmptyText", err)
	}
}

func TestMemoryStore_RejectsDimensionDrift(t *testing.T) {
	ctx := context.Background()
	s, _ := jsonfile.OpenMemoryStore(filepath.Join(t.TempDir(), "m.jsonl"))

	if _, err := s.Append(ctx, "first", "", testVector(0, 8), time.Now()); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	_, err := s.Append(ctx, "second", "", testVector(0, 4), time.Now())
	var dimErr *memory.DimensionError
	if !errors.As(err, &dimErr) {
		t.Fatalf("expected DimensionError, got %v", err)
	}
	if dimErr.Want != 8 || dimErr.Got != 4 {
		t.Errorf("unexpected dimensions in error: %+v", dimErr)
	}
}

func TestMemoryStore_NoTempFilesLeftBehind(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, _ := jsonfile.OpenMemoryStore(filepath.Join(dir, "m.jsonl"))
	for i := 0; i < 5; i++ {
		if _, err := s.Append(ctx, "entry", "", testVector(float32(i), 8), time.Now()); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir failed: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("expected only the store file, found %d entries", len(entries))
	}
}

func TestMemoryStore_ResponseMayBeEmpty(t *testing.T) {
	ctx := context.Background()
	s, _ := jsonfile.OpenMemoryStore(filepath.Join(t.TempDir(), "m.jsonl"))

	// A failed generation still persists the user's reflection.
	rec, err := s.Append(ctx, "the reply never arrived", "", testVector(0, 8), time.Now())
	if err != nil {
		t.Fatalf("append with empty response failed: %v", err)
	}
	if rec.Response != "" {
		t.Errorf("expected empty response, got %q", rec.Response)
	}
}
