package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"quizforge/internal/config"
	"quizforge/internal/db"
	"quizforge/internal/document"
	"quizforge/internal/index"
	"quizforge/internal/logger"
	"quizforge/internal/models"
	"quizforge/internal/quiz"
	"quizforge/internal/session"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Cookie session key holding the registry id of the browser's session.
const SessionIDKey = "session_id"

// QuizService is the part of the pipeline the handlers drive.
type QuizService interface {
	IngestFile(ctx context.Context, path string) (*index.Index, error)
	Compose(ctx context.Context, req models.QuizRequest, retriever quiz.Retriever) (*models.Quiz, error)
	Clamp(req models.QuizRequest) models.QuizRequest
}

// Archive stores generated quizzes. Optional.
type Archive interface {
	SaveQuiz(ctx context.Context, a *models.ArchivedQuiz) error
	GetQuiz(ctx context.Context, id uuid.UUID) (*models.ArchivedQuiz, error)
	ListQuizzes(ctx context.Context, limit int) ([]models.ArchivedQuiz, error)
	SetPDFURL(ctx context.Context, id uuid.UUID, url string) error
}

// Publisher uploads rendered quizzes to public storage. Optional.
type Publisher interface {
	UploadQuizFile(ctx context.Context, quizID uuid.UUID, filename string, content io.Reader) (string, error)
}

// Handler contains the API handlers dependencies
type Handler struct {
	Pipeline  QuizService
	Sessions  *session.Registry
	Archive   Archive
	Publisher Publisher
	Config    *config.Config
	Log       *logger.Logger
}

// NewHandler creates a new Handler. archive and publisher may be nil.
func NewHandler(cfg *config.Config, pipeline QuizService, registry *session.Registry, archive Archive, publisher Publisher, log *logger.Logger) *Handler {
	return &Handler{
		Pipeline:  pipeline,
		Sessions:  registry,
		Archive:   archive,
		Publisher: publisher,
		Config:    cfg,
		Log:       log.With("service", "api"),
	}
}

// currentSession returns the registry session bound to the request cookie,
// creating one when the cookie is missing or the session has expired.
func (h *Handler) currentSession(c *gin.Context) session.Session {
	cookie := sessions.Default(c)
	if raw, ok := cookie.Get(SessionIDKey).(string); ok {
		if id, err := uuid.Parse(raw); err == nil {
			if s, ok := h.Sessions.Get(id); ok {
				return s
			}
		}
	}

	s := h.Sessions.Create()
	cookie.Set(SessionIDKey, s.ID.String())
	if err := cookie.Save(); err != nil {
		h.Log.Warn("failed to save session cookie", "error", err)
	}
	return s
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	var (
		genErr    *quiz.GenerationError
		malformed *quiz.MalformedResponseError
		schema    *quiz.InvalidSchemaError
		buildErr  *index.BuildError
	)
	switch {
	case errors.Is(err, models.ErrInvalidRequest), errors.Is(err, document.ErrNotPDF):
		return http.StatusBadRequest
	case errors.Is(err, document.ErrEmptyDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, index.ErrIndexNotFound), errors.Is(err, db.ErrQuizNotFound):
		return http.StatusNotFound
	case errors.As(err, &genErr):
		if genErr.Timeout() {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.As(err, &malformed), errors.As(err, &schema), errors.As(err, &buildErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// handleError logs err and aborts with a JSON error body. The raw model
// response is included when the model output was rejected.
func (h *Handler) handleError(c *gin.Context, errorContext string, err error) {
	status := statusFor(err)
	h.Log.Error(errorContext, "error", err, "status", status, "path", c.Request.URL.Path)

	body := gin.H{"error": errorContext + ": " + err.Error()}
	if raw, ok := quiz.RawResponse(err); ok {
		body["raw_response"] = raw
	}
	c.AbortWithStatusJSON(status, body)
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "provider": h.Config.Provider, "sessions": h.Sessions.Len()})
}
