package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"quizforge/internal/config"
	"quizforge/internal/document"
	"quizforge/internal/index"
	"quizforge/internal/logger"
	"quizforge/internal/models"
	"quizforge/internal/monitoring"
	"quizforge/internal/quiz"

	"github.com/go-pdf/fpdf"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// termEmbedder embeds text as [1, count(term0), count(term1), ...].
type termEmbedder struct{ terms []string }

func (e termEmbedder) vector(text string) []float32 {
	v := make([]float32, len(e.terms)+1)
	v[0] = 1
	lower := strings.ToLower(text)
	for i, term := range e.terms {
		v[i+1] = float32(strings.Count(lower, term))
	}
	return v
}

func (e termEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e termEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

type cannedGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (g *cannedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.reply, g.err
}

func multipleChoiceReply(n int) string {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf(`{"tipo": "opcion_multiple", "enunciado": "¿Qué produce la fotosíntesis? (%d)", "opciones": ["Oxígeno", "Nitrógeno", "Helio", "Argón"], "respuesta_correcta": "Oxígeno", "explicacion": "Se libera oxígeno.", "dificultad": "básico"}`, i+1)
	}
	return fmt.Sprintf("```json\n{\"cuestionario\": [%s], \"metadata\": {\"temas_cubiertos\": [\"fotosíntesis\"], \"total_preguntas\": %d}}\n```", strings.Join(items, ","), n)
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		Provider:           config.ProviderOllama,
		ModelName:          "test-model",
		EmbeddingModelName: "test-embed",
		ChunkSize:          1200,
		ChunkOverlap:       300,
		IndexDirectory:     dir,
		MaxQuestions:       20,
		MinQuestions:       3,
		RetrievalK:         5,
		GenerationTimeout:  time.Second,
		EmbeddingTimeout:   time.Second,
		DefaultTopic:       "contenido del documento",
	}
}

func newTestPipeline(t *testing.T, gen quiz.Generator) (*Pipeline, *monitoring.Metrics) {
	t.Helper()
	metrics := monitoring.NewMetrics()
	p, err := New(testConfig(t.TempDir()), termEmbedder{terms: []string{"photosynthesis", "mitosis"}}, gen, metrics, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, metrics
}

// sampleText is 3000 runes; only the first 900 mention photosynthesis.
func sampleText() string {
	head := strings.Repeat("photosynthesis light ", 43)[:900]
	tail := strings.Repeat("lorem ipsum ", 200)[:2100]
	return head + tail
}

func TestEndToEndMultipleChoice(t *testing.T) {
	gen := &cannedGenerator{reply: multipleChoiceReply(5)}
	p, metrics := newTestPipeline(t, gen)
	ctx := context.Background()

	idx, err := p.IngestText(ctx, sampleText(), "apuntes.pdf")
	if err != nil {
		t.Fatalf("IngestText: %v", err)
	}
	if idx.Len() != 3 {
		t.Fatalf("passages: want=3 got=%d", idx.Len())
	}

	q, err := p.Compose(ctx, models.QuizRequest{
		Topic:         "photosynthesis",
		QuestionCount: 5,
		Distribution:  models.DistributionOnlyMultipleChoice,
	}, idx)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(q.Questions) != 5 {
		t.Fatalf("questions: want=5 got=%d", len(q.Questions))
	}
	for i, question := range q.Questions {
		if question.Type != models.TypeMultipleChoice {
			t.Fatalf("question %d type: want=%s got=%s", i, models.TypeMultipleChoice, question.Type)
		}
		if len(question.Options) != 4 {
			t.Fatalf("question %d options: want=4 got=%d", i, len(question.Options))
		}
	}
	if len(gen.prompts) != 1 {
		t.Fatalf("prompts: want=1 got=%d", len(gen.prompts))
	}
	prompt := gen.prompts[0]
	first := strings.Index(prompt, "photosynthesis light")
	filler := strings.Index(prompt, "lorem ipsum")
	if first < 0 || filler < 0 || first > filler {
		t.Fatalf("prompt context: want photosynthesis passage before filler")
	}
	if got := testutil.ToFloat64(metrics.Generations.WithLabelValues(monitoring.OutcomeOK)); got != 1 {
		t.Fatalf("ok generations: want=1 got=%v", got)
	}
	if got := testutil.ToFloat64(metrics.IndexedPassages); got != 3 {
		t.Fatalf("indexed passages: want=3 got=%v", got)
	}
}

func TestComposeOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		gen     *cannedGenerator
		outcome string
	}{
		{name: "empty", gen: &cannedGenerator{reply: `{"cuestionario": [], "metadata": {"mensaje": "sin datos"}}`}, outcome: monitoring.OutcomeEmpty},
		{name: "malformed", gen: &cannedGenerator{reply: "no json"}, outcome: monitoring.OutcomeMalformed},
		{name: "schema", gen: &cannedGenerator{reply: `{"preguntas": []}`}, outcome: monitoring.OutcomeMalformed},
		{name: "failed", gen: &cannedGenerator{err: errors.New("connection refused")}, outcome: monitoring.OutcomeFailed},
		{name: "timeout", gen: &cannedGenerator{err: context.DeadlineExceeded}, outcome: monitoring.OutcomeTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, metrics := newTestPipeline(t, tt.gen)
			idx, err := p.IngestText(context.Background(), sampleText(), "a.pdf")
			if err != nil {
				t.Fatalf("IngestText: %v", err)
			}
			_, _ = p.Compose(context.Background(), models.QuizRequest{
				Topic: "photosynthesis", QuestionCount: 3, Distribution: models.DistributionMixed,
			}, idx)
			if got := testutil.ToFloat64(metrics.Generations.WithLabelValues(tt.outcome)); got != 1 {
				t.Fatalf("outcome %s: want=1 got=%v", tt.outcome, got)
			}
		})
	}
}

func TestIngestEmptyText(t *testing.T) {
	p, _ := newTestPipeline(t, &cannedGenerator{})
	_, err := p.IngestText(context.Background(), "   \n ", "vacio.pdf")
	if !errors.Is(err, document.ErrEmptyDocument) {
		t.Fatalf("IngestText: want ErrEmptyDocument got=%v", err)
	}
}

func writePDF(t *testing.T, path string, lines ...string) {
	t.Helper()
	doc := fpdf.New("P", "pt", "Letter", "")
	doc.SetCompression(false)
	doc.AddPage()
	doc.SetFont("Helvetica", "", 12)
	for _, line := range lines {
		doc.Cell(400, 16, line)
		doc.Ln(16)
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
}

func TestOpenReusesPersistedIndex(t *testing.T) {
	p, _ := newTestPipeline(t, &cannedGenerator{})
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "apuntes.pdf")
	writePDF(t, path, "Photosynthesis converts light into chemical energy.")

	built, err := p.Open(ctx, path, "cuestionario_db", true)
	if err != nil {
		t.Fatalf("Open (build): %v", err)
	}
	if !index.Exists(p.cfg.IndexDirectory, "cuestionario_db") {
		t.Fatalf("Open: index not persisted")
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	loaded, err := p.Open(ctx, path, "cuestionario_db", true)
	if err != nil {
		t.Fatalf("Open (reuse): %v", err)
	}
	if loaded.Len() != built.Len() {
		t.Fatalf("reused passages: want=%d got=%d", built.Len(), loaded.Len())
	}
	if got := loaded.Passages()[0].SourceID; got != path {
		t.Fatalf("source id: want=%s got=%s", path, got)
	}

	if _, err := p.Open(ctx, path, "cuestionario_db", false); err == nil {
		t.Fatalf("Open without reuse: want error for missing file")
	}
}

func TestLoadMissingIndex(t *testing.T) {
	p, _ := newTestPipeline(t, &cannedGenerator{})
	_, err := p.Load(context.Background(), "nope")
	if !errors.Is(err, index.ErrIndexNotFound) {
		t.Fatalf("Load: want ErrIndexNotFound got=%v", err)
	}
}
