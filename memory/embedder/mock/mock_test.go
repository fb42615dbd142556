package mock_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stillpoint/mira-go-sdk/memory"
	"github.com/stillpoint/mira-go-sdk/memory/embedder/mock"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	e := mock.New()

	a, err := e.Embed(ctx, "reflecting on the art project")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	b, err := e.Embed(ctx, "reflecting on the art project")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}

	if len(a) != e.Dimensions() {
		t.Fatalf("expected %d dimensions, got %d", e.Dimensions(), len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embeddings differ at component %d: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestMockEmbedder_DistinctTexts(t *testing.T) {
	ctx := context.Background()
	e := mock.New()

	a, _ := e.Embed(ctx, "gratitude toward family")
	b, _ := e.Embed(ctx, "fear of failure")

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical embeddings")
	}
}

func TestMockEmbedder_UnitVector(t *testing.T) {
	ctx := context.Background()
	e := mock.New()

	vec, err := e.Embed(ctx, "some reflection")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1.0) > 1e-5 {
		t.Errorf("expected unit vector, got norm %f", math.Sqrt(norm))
	}
}

func TestMockEmbedder_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	e := mock.New()

	if _, err := e.Embed(ctx, ""); !errors.Is(err, memory.ErrEmptyText) {
		t.Errorf("empty text: got %v, want ErrEmptyText", err)
	}
	if _, err := e.Embed(ctx, "   \n\t"); !errors.Is(err, memory.ErrEmptyText) {
		t.Errorf("whitespace text: got %v, want ErrEmptyText", err)
	}

	huge := strings.Repeat("a", mock.DefaultMaxTextLen+1)
	if _, err := e.Embed(ctx, huge); !errors.Is(err, memory.ErrTextTooLong) {
		t.Errorf("oversized text: got %v, want ErrTextTooLong", err)
	}
}

func TestMockEmbedder_CustomDimensions(t *testing.T) {
	ctx := context.Background()
	e := mock.NewWithDimensions(16)

	vec, err := e.Embed(ctx, "short vector")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if len(vec) != 16 {
		t.Errorf("expected 16 dimensions, got %d", len(vec))
	}
}
