package handlers

import (
	"embed"
	"errors"
	"html/template"
	"net/http"

	"quizforge/internal/document"
	"quizforge/internal/index"
	"quizforge/internal/models"
	"quizforge/internal/quiz"
	"quizforge/internal/render"
	"quizforge/internal/session"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Templates parses the embedded HTML templates for gin's HTML renderer.
func Templates() *template.Template {
	return template.Must(template.New("").ParseFS(templatesFS, "templates/*.html"))
}

type pageData struct {
	Title          string
	MinQuestions   int
	MaxQuestions   int
	QuestionCount  int
	Topic          string
	DefaultTopic   string
	Presets        []Preset
	SelectedPreset string
	SourceName     string
	HasDocument    bool
	Quiz           *models.Quiz
	Review         []render.ReviewItem
	CountMismatch  bool
	PublishEnabled bool
	PDFURL         string
	Error          string
	RawResponse    string
}

func (h *Handler) page(s session.Session) pageData {
	count := s.Request.QuestionCount
	if count == 0 {
		count = 5
	}
	count = max(h.Config.MinQuestions, min(count, h.Config.MaxQuestions))

	selected := defaultPreset
	if s.Request.Distribution != (models.Distribution{}) {
		selected = presetKey(s.Request.Distribution)
	}

	data := pageData{
		Title:          render.Title,
		MinQuestions:   h.Config.MinQuestions,
		MaxQuestions:   h.Config.MaxQuestions,
		QuestionCount:  count,
		Topic:          s.Request.Topic,
		DefaultTopic:   h.Config.DefaultTopic,
		Presets:        Presets,
		SelectedPreset: selected,
		SourceName:     s.SourceName,
		HasDocument:    s.HasIndex(),
		PublishEnabled: h.Publisher != nil,
		PDFURL:         s.PDFURL,
	}
	if s.Quiz != nil {
		data.Quiz = s.Quiz
		data.Review = render.Review(s.Quiz)
		data.CountMismatch = s.Quiz.CountMismatch()
	}
	return data
}

// HandleIndex renders the upload form and the session's current quiz.
func (h *Handler) HandleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", h.page(h.currentSession(c)))
}

// respondError shows err inline on the page for browsers and as JSON for
// API callers. The session is left as it was.
func (h *Handler) respondError(c *gin.Context, s session.Session, errorContext string, err error) {
	if !wantsHTML(c) {
		h.handleError(c, errorContext, err)
		return
	}
	status := statusFor(err)
	h.Log.Error(errorContext, "error", err, "status", status, "session", s.ID)

	data := h.page(s)
	data.Error = userMessage(err)
	data.RawResponse, _ = quiz.RawResponse(err)
	c.HTML(status, "index.html", data)
	c.Abort()
}

func userMessage(err error) string {
	var (
		genErr   *quiz.GenerationError
		buildErr *index.BuildError
	)
	switch {
	case errors.Is(err, document.ErrEmptyDocument):
		return "El PDF no contiene texto extraíble."
	case errors.Is(err, document.ErrNotPDF):
		return "El archivo subido no es un PDF válido."
	case errors.Is(err, models.ErrInvalidRequest):
		return "Solicitud no válida: " + err.Error()
	case errors.As(err, &genErr) && genErr.Timeout():
		return "El modelo tardó demasiado en responder. Inténtalo de nuevo."
	case errors.As(err, &genErr):
		return "No se pudo contactar con el modelo de lenguaje."
	case errors.As(err, &buildErr):
		return "No se pudo indexar el documento."
	}
	if _, ok := quiz.RawResponse(err); ok {
		return "La respuesta del modelo no tiene el formato esperado."
	}
	return "Error inesperado: " + err.Error()
}
