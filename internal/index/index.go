package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"quizforge/internal/models"
)

// Embedder turns text into fixed-dimension vectors. It matches the
// langchaingo embeddings.Embedder interface.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// BuildError reports a failure while embedding passages.
type BuildError struct {
	Reason string
	Err    error
}

func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("index build: %s: %v", e.Reason, e.Err)
	}
	return "index build: " + e.Reason
}

func (e *BuildError) Unwrap() error { return e.Err }

// ErrIndexNotFound is returned by Load when no index with the name exists.
var ErrIndexNotFound = errors.New("index not found")

const defaultBatchSize = 32

// Options control how an index embeds text.
type Options struct {
	ModelName string        // recorded with persisted indexes
	Timeout   time.Duration // applied to each embedding call; zero means none
	BatchSize int
}

type entry struct {
	vector  []float32
	norm    float64
	passage models.Passage
}

// Index is an in-memory similarity index over passages. It is built once and
// only read afterwards, so it is safe for concurrent queries.
type Index struct {
	entries  []entry
	dim      int
	opts     Options
	embedder Embedder
}

// Scored is a passage with its cosine similarity to a query.
type Scored struct {
	Passage models.Passage
	Score   float64
}

// Build embeds every passage and returns an index over them.
func Build(ctx context.Context, embedder Embedder, passages []models.Passage, opts Options) (*Index, error) {
	if len(passages) == 0 {
		return nil, &BuildError{Reason: "no passages to index"}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	idx := &Index{opts: opts, embedder: embedder, entries: make([]entry, 0, len(passages))}
	for start := 0; start < len(passages); start += opts.BatchSize {
		end := min(start+opts.BatchSize, len(passages))
		batch := passages[start:end]

		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.Text
		}
		vectors, err := idx.embedDocuments(ctx, texts)
		if err != nil {
			return nil, &BuildError{Reason: "embedding collaborator failed", Err: err}
		}
		if len(vectors) != len(batch) {
			return nil, &BuildError{Reason: fmt.Sprintf("embedder returned %d vectors for %d passages", len(vectors), len(batch))}
		}
		for i, v := range vectors {
			if err := idx.add(v, batch[i]); err != nil {
				return nil, err
			}
		}
	}
	return idx, nil
}

func (idx *Index) add(v []float32, p models.Passage) error {
	if len(v) == 0 {
		return &BuildError{Reason: fmt.Sprintf("empty vector for passage %s", p.ID)}
	}
	if idx.dim == 0 {
		idx.dim = len(v)
	}
	if len(v) != idx.dim {
		return &BuildError{Reason: fmt.Sprintf("vector dimension %d differs from index dimension %d", len(v), idx.dim)}
	}
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return &BuildError{Reason: fmt.Sprintf("non-finite vector component for passage %s", p.ID)}
		}
	}
	idx.entries = append(idx.entries, entry{vector: v, norm: norm(v), passage: p})
	return nil
}

func (idx *Index) embedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if idx.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, idx.opts.Timeout)
		defer cancel()
	}
	return idx.embedder.EmbedDocuments(ctx, texts)
}

func (idx *Index) embedQuery(ctx context.Context, text string) ([]float32, error) {
	if idx.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, idx.opts.Timeout)
		defer cancel()
	}
	return idx.embedder.EmbedQuery(ctx, text)
}

// Len returns the number of indexed passages.
func (idx *Index) Len() int { return len(idx.entries) }

// Dimension returns the vector dimension.
func (idx *Index) Dimension() int { return idx.dim }

// ModelName returns the embedding model the index was built with.
func (idx *Index) ModelName() string { return idx.opts.ModelName }

// Passages returns the indexed passages in insertion order.
func (idx *Index) Passages() []models.Passage {
	out := make([]models.Passage, len(idx.entries))
	for i, e := range idx.entries {
		out[i] = e.passage
	}
	return out
}

// Query returns at most k passages most similar to text, highest first.
func (idx *Index) Query(ctx context.Context, text string, k int) ([]models.Passage, error) {
	scored, err := idx.QueryScored(ctx, text, k)
	if err != nil {
		return nil, err
	}
	out := make([]models.Passage, len(scored))
	for i, s := range scored {
		out[i] = s.Passage
	}
	return out, nil
}

// QueryScored is Query with similarity scores. Equal scores keep insertion
// order.
func (idx *Index) QueryScored(ctx context.Context, text string, k int) ([]Scored, error) {
	if k <= 0 || len(idx.entries) == 0 {
		return nil, nil
	}
	q, err := idx.embedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(q) != idx.dim {
		return nil, fmt.Errorf("query vector dimension %d differs from index dimension %d", len(q), idx.dim)
	}

	qn := norm(q)
	scored := make([]Scored, len(idx.entries))
	for i, e := range idx.entries {
		scored[i] = Scored{Passage: e.passage, Score: cosine(q, qn, e.vector, e.norm)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (an * bn)
}
