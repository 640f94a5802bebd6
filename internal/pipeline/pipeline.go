// Package pipeline runs the document-to-quiz flow: extract, segment, embed,
// retrieve and compose.
package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"quizforge/internal/config"
	"quizforge/internal/document"
	"quizforge/internal/index"
	"quizforge/internal/logger"
	"quizforge/internal/models"
	"quizforge/internal/monitoring"
	"quizforge/internal/quiz"
)

// Stage names reported to metrics.
const (
	StageExtract  = "extract"
	StageSegment  = "segment"
	StageEmbed    = "embed"
	StagePersist  = "persist"
	StageLoad     = "load"
	StageGenerate = "generate"
)

type Pipeline struct {
	cfg       *config.Config
	embedder  index.Embedder
	segmenter *document.Segmenter
	composer  *quiz.Composer
	metrics   *monitoring.Metrics
	log       *logger.Logger
}

// New assembles a pipeline. metrics may be nil.
func New(cfg *config.Config, embedder index.Embedder, gen quiz.Generator, metrics *monitoring.Metrics, log *logger.Logger) (*Pipeline, error) {
	seg, err := document.NewSegmenter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	composer := quiz.NewComposer(gen, quiz.Options{
		MaxQuestions: cfg.MaxQuestions,
		RetrievalK:   cfg.RetrievalK,
		Timeout:      cfg.GenerationTimeout,
		DefaultTopic: cfg.DefaultTopic,
	}, log)
	return &Pipeline{
		cfg:       cfg,
		embedder:  embedder,
		segmenter: seg,
		composer:  composer,
		metrics:   metrics,
		log:       log.With("service", "pipeline"),
	}, nil
}

func (p *Pipeline) indexOptions() index.Options {
	return index.Options{
		ModelName: p.cfg.EmbeddingModelName,
		Timeout:   p.cfg.EmbeddingTimeout,
	}
}

// Clamp applies the question cap and default topic without generating.
func (p *Pipeline) Clamp(req models.QuizRequest) models.QuizRequest {
	return p.composer.Clamp(req)
}

// IngestFile extracts the PDF at path and builds an in-memory index over it.
// Passages are tagged with the file path as their source.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (*index.Index, error) {
	started := time.Now()
	text, err := document.ExtractText(path)
	p.metrics.ObserveStage(StageExtract, started)
	if err != nil {
		p.log.Error("text extraction failed", "file", filepath.Base(path), "error", err)
		return nil, err
	}
	p.log.Info("text extracted", "file", filepath.Base(path), "chars", len([]rune(text)))
	return p.IngestText(ctx, text, path)
}

// IngestText segments text and embeds the passages.
func (p *Pipeline) IngestText(ctx context.Context, text, sourceID string) (*index.Index, error) {
	started := time.Now()
	passages, err := p.segmenter.Segment(text, sourceID)
	p.metrics.ObserveStage(StageSegment, started)
	if err != nil {
		return nil, err
	}
	p.log.Info("document segmented", "passages", len(passages),
		"chunk_size", p.segmenter.Size, "chunk_overlap", p.segmenter.Overlap)

	started = time.Now()
	idx, err := index.Build(ctx, p.embedder, passages, p.indexOptions())
	p.metrics.ObserveStage(StageEmbed, started)
	if err != nil {
		p.log.Error("index build failed", "error", err)
		return nil, err
	}
	p.metrics.AddPassages(idx.Len())
	p.log.Info("index built", "passages", idx.Len(), "dimension", idx.Dimension())
	return idx, nil
}

// Persist stores idx under name in the configured index directory,
// replacing any index with the same name.
func (p *Pipeline) Persist(ctx context.Context, idx *index.Index, name string) error {
	started := time.Now()
	err := idx.Persist(ctx, p.cfg.IndexDirectory, name)
	p.metrics.ObserveStage(StagePersist, started)
	if err != nil {
		p.log.Error("index persist failed", "name", name, "error", err)
		return err
	}
	p.log.Info("index persisted", "path", index.Path(p.cfg.IndexDirectory, name))
	return nil
}

// Load opens a persisted index by name.
func (p *Pipeline) Load(ctx context.Context, name string) (*index.Index, error) {
	started := time.Now()
	idx, err := index.Load(ctx, p.cfg.IndexDirectory, name, p.embedder, p.indexOptions())
	p.metrics.ObserveStage(StageLoad, started)
	if err != nil {
		return nil, err
	}
	p.log.Info("index loaded", "name", name, "passages", idx.Len())
	return idx, nil
}

// Open returns the index for the PDF at path. With reuse set and a persisted
// index under name, the stored index is loaded and the file is not read;
// otherwise the file is ingested and the index persisted under name.
func (p *Pipeline) Open(ctx context.Context, path, name string, reuse bool) (*index.Index, error) {
	if reuse {
		idx, err := p.Load(ctx, name)
		if err == nil {
			return idx, nil
		}
		if !errors.Is(err, index.ErrIndexNotFound) {
			return nil, err
		}
		p.log.Warn("no stored index to reuse, rebuilding", "name", name)
	}

	idx, err := p.IngestFile(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := p.Persist(ctx, idx, name); err != nil {
		return nil, err
	}
	return idx, nil
}

// Compose generates a quiz from the passages retriever returns for the
// request topic.
func (p *Pipeline) Compose(ctx context.Context, req models.QuizRequest, retriever quiz.Retriever) (*models.Quiz, error) {
	started := time.Now()
	q, err := p.composer.Compose(ctx, req, retriever)
	p.metrics.ObserveStage(StageGenerate, started)
	p.metrics.ObserveGeneration(outcome(q, err))
	return q, err
}

func outcome(q *models.Quiz, err error) string {
	var (
		genErr    *quiz.GenerationError
		malformed *quiz.MalformedResponseError
		schema    *quiz.InvalidSchemaError
	)
	switch {
	case err == nil && len(q.Questions) == 0:
		return monitoring.OutcomeEmpty
	case err == nil:
		return monitoring.OutcomeOK
	case errors.As(err, &genErr) && genErr.Timeout():
		return monitoring.OutcomeTimeout
	case errors.As(err, &malformed), errors.As(err, &schema):
		return monitoring.OutcomeMalformed
	}
	return monitoring.OutcomeFailed
}
