package handlers

import (
	"net/http"
	"strconv"

	"quizforge/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxListLimit = 100

// HandleListQuizzes lists archived quizzes, newest first.
func (h *Handler) HandleListQuizzes(c *gin.Context) {
	if h.Archive == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "quiz archive is not configured"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxListLimit)
	}

	quizzes, err := h.Archive.ListQuizzes(c.Request.Context(), limit)
	if err != nil {
		h.handleError(c, "failed to list quizzes", err)
		return
	}
	if quizzes == nil {
		quizzes = []models.ArchivedQuiz{}
	}
	c.JSON(http.StatusOK, quizzes)
}

// HandleGetArchivedQuiz returns one archived quiz by id.
func (h *Handler) HandleGetArchivedQuiz(c *gin.Context) {
	if h.Archive == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "quiz archive is not configured"})
		return
	}
	id, err := uuid.Parse(c.Param("quizId"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid quiz id"})
		return
	}

	archived, err := h.Archive.GetQuiz(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, "failed to get quiz", err)
		return
	}
	c.JSON(http.StatusOK, archived)
}
