package index

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"quizforge/internal/models"

	"github.com/google/uuid"
)

// keywordEmbedder maps text to counts of a fixed vocabulary.
type keywordEmbedder struct {
	vocab   []string
	calls   int
	failErr error
	dimFor  map[string]int // overrides the dimension for specific texts
}

func (e *keywordEmbedder) vector(text string) []float32 {
	dim := len(e.vocab)
	if d, ok := e.dimFor[text]; ok {
		dim = d
	}
	v := make([]float32, dim)
	lower := strings.ToLower(text)
	for i := 0; i < dim && i < len(e.vocab); i++ {
		v[i] = float32(strings.Count(lower, e.vocab[i]))
	}
	return v
}

func (e *keywordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.failErr != nil {
		return nil, e.failErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if e.failErr != nil {
		return nil, e.failErr
	}
	return e.vector(text), nil
}

func passages(texts ...string) []models.Passage {
	out := make([]models.Passage, len(texts))
	for i, t := range texts {
		out[i] = models.Passage{
			ID:          uuid.New(),
			Text:        t,
			SourceID:    "doc.pdf",
			ProcessedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Seq:         i,
			Start:       i * 10,
			End:         i*10 + len(t),
		}
	}
	return out
}

func newEmbedder() *keywordEmbedder {
	return &keywordEmbedder{vocab: []string{"célula", "energía", "agua", "luz"}}
}

func TestQueryOrdersBySimilarity(t *testing.T) {
	emb := newEmbedder()
	idx, err := Build(context.Background(), emb, passages(
		"el agua y el agua",
		"la célula produce energía",
		"la luz solar",
		"célula célula célula",
	), Options{ModelName: "fake"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	got, err := idx.QueryScored(context.Background(), "célula", 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("results: want=3 got=%d", len(got))
	}
	if got[0].Passage.Text != "célula célula célula" {
		t.Fatalf("top result: want=%q got=%q", "célula célula célula", got[0].Passage.Text)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("scores not non-increasing at %d: %v > %v", i, got[i].Score, got[i-1].Score)
		}
	}
}

func TestQueryTiesKeepInsertionOrder(t *testing.T) {
	emb := newEmbedder()
	idx, err := Build(context.Background(), emb, passages("agua uno", "agua dos", "agua tres"), Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	got, err := idx.Query(context.Background(), "agua", 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	want := []string{"agua uno", "agua dos", "agua tres"}
	for i, p := range got {
		if p.Text != want[i] {
			t.Fatalf("result %d: want=%q got=%q", i, want[i], p.Text)
		}
	}
}

func TestQueryAtMostK(t *testing.T) {
	idx, err := Build(context.Background(), newEmbedder(), passages("agua", "luz"), Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, k := range []int{0, 1, 2, 10} {
		got, err := idx.Query(context.Background(), "agua", k)
		if err != nil {
			t.Fatalf("Query k=%d: %v", k, err)
		}
		if want := min(k, 2); len(got) != want {
			t.Fatalf("Query k=%d: want=%d got=%d", k, want, len(got))
		}
	}
}

func TestBuildBatches(t *testing.T) {
	emb := newEmbedder()
	texts := make([]string, 7)
	for i := range texts {
		texts[i] = "agua"
	}
	idx, err := Build(context.Background(), emb, passages(texts...), Options{BatchSize: 3})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if emb.calls != 3 {
		t.Fatalf("embed calls: want=3 got=%d", emb.calls)
	}
	if idx.Len() != 7 || idx.Dimension() != 4 {
		t.Fatalf("index: want len=7 dim=4 got len=%d dim=%d", idx.Len(), idx.Dimension())
	}
}

func TestBuildErrors(t *testing.T) {
	unreachable := errors.New("connection refused")
	cases := []struct {
		name     string
		emb      *keywordEmbedder
		passages []models.Passage
	}{
		{"no passages", newEmbedder(), nil},
		{"collaborator down", &keywordEmbedder{vocab: []string{"a"}, failErr: unreachable}, passages("a")},
		{"mixed dimensions", &keywordEmbedder{vocab: []string{"a", "b"}, dimFor: map[string]int{"odd": 1}}, passages("a", "odd")},
		{"empty vector", &keywordEmbedder{vocab: []string{"a"}, dimFor: map[string]int{"a": 0}}, passages("a")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build(context.Background(), tc.emb, tc.passages, Options{})
			var be *BuildError
			if !errors.As(err, &be) {
				t.Fatalf("Build: want *BuildError got=%T %v", err, err)
			}
		})
	}

	_, err := Build(context.Background(), &keywordEmbedder{vocab: []string{"a"}, failErr: unreachable}, passages("a"), Options{})
	if !errors.Is(err, unreachable) {
		t.Fatalf("Build: want wrapped collaborator error got=%v", err)
	}
}

func TestPersistLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	emb := newEmbedder()
	original, err := Build(context.Background(), emb, passages(
		"la célula produce energía",
		"el agua",
		"la luz",
	), Options{ModelName: "nomic-embed-text"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := original.Persist(context.Background(), dir, "cuestionario_db"); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if !Exists(dir, "cuestionario_db") {
		t.Fatalf("Exists: want=true after Persist")
	}

	loaded, err := Load(context.Background(), dir, "cuestionario_db", emb, Options{ModelName: "nomic-embed-text"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Len() != original.Len() || loaded.Dimension() != original.Dimension() {
		t.Fatalf("loaded shape: want len=%d dim=%d got len=%d dim=%d",
			original.Len(), original.Dimension(), loaded.Len(), loaded.Dimension())
	}

	for _, q := range []string{"energía", "agua", "luz"} {
		a, _ := original.Query(context.Background(), q, 3)
		b, _ := loaded.Query(context.Background(), q, 3)
		for i := range a {
			if a[i].ID != b[i].ID || a[i].Text != b[i].Text || !a[i].ProcessedAt.Equal(b[i].ProcessedAt) {
				t.Fatalf("query %q result %d differs after reload", q, i)
			}
		}
	}
}

func TestPersistReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	emb := newEmbedder()
	first, _ := Build(context.Background(), emb, passages("agua"), Options{})
	second, _ := Build(context.Background(), emb, passages("luz", "célula"), Options{})
	if err := first.Persist(context.Background(), dir, "db"); err != nil {
		t.Fatalf("Persist first: %v", err)
	}
	if err := second.Persist(context.Background(), dir, "db"); err != nil {
		t.Fatalf("Persist second: %v", err)
	}
	loaded, err := Load(context.Background(), dir, "db", emb, Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Len() != 2 {
		t.Fatalf("loaded len: want=2 got=%d", loaded.Len())
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("index dir: want one file got=%d", len(entries))
	}
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(context.Background(), t.TempDir(), "missing", newEmbedder(), Options{})
	if !errors.Is(err, ErrIndexNotFound) {
		t.Fatalf("Load: want ErrIndexNotFound got=%v", err)
	}
}

func TestLoadModelMismatch(t *testing.T) {
	dir := t.TempDir()
	idx, _ := Build(context.Background(), newEmbedder(), passages("agua"), Options{ModelName: "nomic-embed-text"})
	if err := idx.Persist(context.Background(), dir, "db"); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if _, err := Load(context.Background(), dir, "db", newEmbedder(), Options{ModelName: "other"}); err == nil {
		t.Fatalf("Load: want error for embedding model mismatch")
	}
}

func TestInvalidName(t *testing.T) {
	idx, _ := Build(context.Background(), newEmbedder(), passages("agua"), Options{})
	if err := idx.Persist(context.Background(), t.TempDir(), "../escape"); err == nil {
		t.Fatalf("Persist: want error for invalid name")
	}
}

func TestVectorCodec(t *testing.T) {
	v := []float32{0, -1.5, 3.25, 1e-7}
	got, err := decodeVector(encodeVector(v))
	if err != nil {
		t.Fatalf("decodeVector: %v", err)
	}
	for i := range v {
		if got[i] != v[i] {
			t.Fatalf("component %d: want=%v got=%v", i, v[i], got[i])
		}
	}
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Fatalf("decodeVector: want error for truncated blob")
	}
}
