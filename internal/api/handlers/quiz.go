package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"quizforge/internal/document"
	"quizforge/internal/models"
	"quizforge/internal/render"
	"quizforge/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const downloadName = "cuestionario.pdf"

var errNoDocument = fmt.Errorf("%w: upload a PDF document first", models.ErrInvalidRequest)

// wantsHTML reports whether the client is a browser form rather than a JSON
// API caller.
func wantsHTML(c *gin.Context) bool {
	return c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML) == gin.MIMEHTML
}

// HandleGenerateQuiz ingests an uploaded PDF, when one is sent, and generates
// a quiz from the session's index.
func (h *Handler) HandleGenerateQuiz(c *gin.Context) {
	s := h.currentSession(c)

	req, err := h.quizForm(c, s.Request)
	if err != nil {
		h.respondError(c, s, "invalid quiz request", err)
		return
	}

	fileHeader, err := c.FormFile("file")
	switch {
	case err == nil:
		if s, err = h.ingestUpload(c, s, fileHeader); err != nil {
			h.respondError(c, s, "failed to process document", err)
			return
		}
	case errors.Is(err, http.ErrMissingFile):
		if !s.HasIndex() {
			h.respondError(c, s, "no document", errNoDocument)
			return
		}
	default:
		h.respondError(c, s, "failed to read upload", fmt.Errorf("%w: %v", models.ErrInvalidRequest, err))
		return
	}

	h.generate(c, s, req)
}

// HandleRegenerateQuiz generates a new quiz from the session's existing
// index. Form fields override the previous request.
func (h *Handler) HandleRegenerateQuiz(c *gin.Context) {
	s := h.currentSession(c)
	if !s.HasIndex() {
		h.respondError(c, s, "no document", errNoDocument)
		return
	}
	req, err := h.quizForm(c, s.Request)
	if err != nil {
		h.respondError(c, s, "invalid quiz request", err)
		return
	}
	h.generate(c, s, req)
}

func (h *Handler) ingestUpload(c *gin.Context, s session.Session, fileHeader *multipart.FileHeader) (session.Session, error) {
	filename := fileHeader.Filename
	maxBytes := h.Config.Server.MaxUploadMB << 20
	if maxBytes > 0 && fileHeader.Size > maxBytes {
		return s, fmt.Errorf("%w: file exceeds %d MB", models.ErrInvalidRequest, h.Config.Server.MaxUploadMB)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return s, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return s, fmt.Errorf("read upload: %w", err)
	}

	tempPath, err := document.SaveTempFile(data, filename)
	if err != nil {
		return s, err
	}
	defer func() {
		if err := os.Remove(tempPath); err != nil {
			h.Log.Warn("failed to remove temporary file", "path", tempPath, "error", err)
		}
	}()
	h.Log.Info("processing upload", "file", filename, "size", fileHeader.Size, "session", s.ID)

	idx, err := h.Pipeline.IngestFile(c.Request.Context(), tempPath)
	if err != nil {
		return s, err
	}

	return h.Sessions.Update(s.ID, func(s *session.Session) {
		s.Index = idx
		s.SourceName = filepath.Base(filename)
	})
}

func (h *Handler) generate(c *gin.Context, s session.Session, req models.QuizRequest) {
	ctx := c.Request.Context()
	req = h.Pipeline.Clamp(req)

	q, err := h.Pipeline.Compose(ctx, req, s.Index)
	if err != nil {
		// Keep the request so the form shows what was attempted.
		s, _ = h.Sessions.Update(s.ID, func(s *session.Session) { s.Request = req })
		h.respondError(c, s, "failed to generate quiz", err)
		return
	}

	quizID := uuid.Nil
	if h.Archive != nil && len(q.Questions) > 0 {
		archived := &models.ArchivedQuiz{SourceName: s.SourceName, Topic: req.Topic, Quiz: *q}
		if err := h.Archive.SaveQuiz(ctx, archived); err != nil {
			h.Log.Warn("failed to archive quiz", "error", err)
		} else {
			quizID = archived.ID
		}
	}

	s, err = h.Sessions.Update(s.ID, func(s *session.Session) {
		s.Request = req
		s.Quiz = q
		s.QuizID = quizID
		s.PDFURL = ""
	})
	if err != nil {
		h.handleError(c, "failed to store quiz", err)
		return
	}
	h.Log.Info("quiz generated", "session", s.ID, "questions", len(q.Questions), "archived", quizID != uuid.Nil)

	if wantsHTML(c) {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	c.JSON(http.StatusOK, quizResponse(s))
}

// QuizResponse is the JSON view of a session's quiz.
type QuizResponse struct {
	ID     *uuid.UUID          `json:"id,omitempty"`
	Source string              `json:"source,omitempty"`
	Quiz   *models.Quiz        `json:"quiz"`
	Review []render.ReviewItem `json:"review"`
	PDFURL string              `json:"pdf_url,omitempty"`
}

func quizResponse(s session.Session) QuizResponse {
	resp := QuizResponse{Source: s.SourceName, Quiz: s.Quiz, Review: render.Review(s.Quiz), PDFURL: s.PDFURL}
	if s.QuizID != uuid.Nil {
		id := s.QuizID
		resp.ID = &id
	}
	return resp
}

// HandleGetQuiz returns the session's current quiz as JSON.
func (h *Handler) HandleGetQuiz(c *gin.Context) {
	s := h.currentSession(c)
	if s.Quiz == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, models.ErrorResponse{Error: "no quiz generated in this session"})
		return
	}
	c.JSON(http.StatusOK, quizResponse(s))
}

// HandleDownloadQuiz renders the session's quiz to PDF and sends it as an
// attachment. The rendered file is removed afterwards.
func (h *Handler) HandleDownloadQuiz(c *gin.Context) {
	s := h.currentSession(c)
	if s.Quiz == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, models.ErrorResponse{Error: "no quiz generated in this session"})
		return
	}

	path, err := render.WritePDFFile(s.Quiz)
	if err != nil {
		h.handleError(c, "failed to render quiz", err)
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			h.Log.Warn("failed to remove rendered quiz", "path", path, "error", err)
		}
	}()
	c.FileAttachment(path, downloadName)
}

// HandleShareQuiz publishes the rendered PDF and returns its public URL.
func (h *Handler) HandleShareQuiz(c *gin.Context) {
	if h.Publisher == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "publishing is not configured"})
		return
	}
	s := h.currentSession(c)
	if s.Quiz == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, models.ErrorResponse{Error: "no quiz generated in this session"})
		return
	}
	if s.PDFURL != "" {
		c.JSON(http.StatusOK, gin.H{"url": s.PDFURL})
		return
	}

	var buf bytes.Buffer
	if err := render.WritePDF(&buf, s.Quiz); err != nil {
		h.handleError(c, "failed to render quiz", err)
		return
	}

	objectID := s.QuizID
	if objectID == uuid.Nil {
		objectID = uuid.New()
	}
	ctx := c.Request.Context()
	url, err := h.Publisher.UploadQuizFile(ctx, objectID, downloadName, &buf)
	if err != nil {
		h.handleError(c, "failed to publish quiz", err)
		return
	}
	if h.Archive != nil && s.QuizID != uuid.Nil {
		if err := h.Archive.SetPDFURL(ctx, s.QuizID, url); err != nil {
			h.Log.Warn("failed to record published url", "quiz_id", s.QuizID, "error", err)
		}
	}
	if _, err := h.Sessions.Update(s.ID, func(s *session.Session) { s.PDFURL = url }); err != nil {
		h.Log.Warn("failed to store published url", "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
