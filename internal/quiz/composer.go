package quiz

import (
	"context"
	"strings"
	"time"

	"quizforge/internal/logger"
	"quizforge/internal/models"
)

// Generator produces the model's text response for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Retriever returns passages relevant to a query, most relevant first.
type Retriever interface {
	Query(ctx context.Context, text string, k int) ([]models.Passage, error)
}

type Options struct {
	MaxQuestions int
	RetrievalK   int
	Timeout      time.Duration
	DefaultTopic string
}

// Composer retrieves context for a request, prompts the model and parses the
// structured quiz it returns.
type Composer struct {
	gen  Generator
	opts Options
	log  *logger.Logger
}

func NewComposer(gen Generator, opts Options, log *logger.Logger) *Composer {
	if opts.RetrievalK <= 0 {
		opts.RetrievalK = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Composer{gen: gen, opts: opts, log: log.With("service", "quiz_composer")}
}

// Clamp returns req with QuestionCount capped at the configured maximum and an
// empty topic replaced by the default topic.
func (c *Composer) Clamp(req models.QuizRequest) models.QuizRequest {
	if c.opts.MaxQuestions > 0 && req.QuestionCount > c.opts.MaxQuestions {
		c.log.Warn("question count reduced to maximum", "requested", req.QuestionCount, "max_questions", c.opts.MaxQuestions)
		req.QuestionCount = c.opts.MaxQuestions
	}
	if strings.TrimSpace(req.Topic) == "" {
		req.Topic = c.opts.DefaultTopic
	}
	return req
}

// Compose runs one generation. Retrieval failures are logged and treated as
// an empty context; the model is then expected to report insufficient
// context.
func (c *Composer) Compose(ctx context.Context, req models.QuizRequest, retriever Retriever) (*models.Quiz, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req = c.Clamp(req)

	contextText := c.retrieve(ctx, req.Topic, retriever)

	prompt, err := BuildPrompt(req, contextText)
	if err != nil {
		return nil, err
	}

	c.log.Info("generating quiz",
		"topic", req.Topic,
		"questions", req.QuestionCount,
		"distribution", req.Distribution,
		"context_chars", len(contextText),
	)
	raw, err := c.generate(ctx, prompt)
	if err != nil {
		genErr := &GenerationError{Err: err}
		c.log.Error("quiz generation failed", "error", err, "timeout", genErr.Timeout())
		return nil, genErr
	}

	quiz, err := ParseResponse(raw)
	if err != nil {
		c.log.Error("quiz response rejected", "error", err)
		return nil, err
	}

	if contextText == "" {
		if len(quiz.Questions) > 0 {
			c.log.Warn("discarding questions generated without context", "questions", len(quiz.Questions))
			quiz.Questions = nil
			quiz.Metadata.TotalQuestions = 0
			quiz.Metadata.CoveredTopics = nil
		}
		if strings.TrimSpace(quiz.Metadata.Message) == "" {
			quiz.Metadata.Message = InsufficientContextMessage
		}
	}

	if quiz.CountMismatch() {
		c.log.Warn("declared question total differs from returned questions",
			"declared", quiz.Metadata.TotalQuestions, "returned", len(quiz.Questions))
	}
	if n := quiz.IncompleteCount(); n > 0 {
		c.log.Warn("quiz contains incomplete questions", "incomplete", n)
	}
	return quiz, nil
}

func (c *Composer) retrieve(ctx context.Context, topic string, retriever Retriever) string {
	if retriever == nil {
		return ""
	}
	passages, err := retriever.Query(ctx, topic, c.opts.RetrievalK)
	if err != nil {
		c.log.Error("context retrieval failed, continuing with empty context", "error", err)
		return ""
	}
	texts := make([]string, 0, len(passages))
	for _, p := range passages {
		if strings.TrimSpace(p.Text) != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n\n")
}

func (c *Composer) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	raw, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	// Some clients return a nil error after the deadline with empty output.
	if ctx.Err() != nil && raw == "" {
		return "", ctx.Err()
	}
	return raw, nil
}
