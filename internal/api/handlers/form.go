package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"quizforge/internal/models"

	"github.com/gin-gonic/gin"
)

// Preset is a named question-type distribution offered in the form.
type Preset struct {
	Key          string
	Label        string
	Distribution models.Distribution
}

// Presets lists the distribution choices in display order.
var Presets = []Preset{
	{Key: "mixto", Label: "Mixto", Distribution: models.DistributionMixed},
	{Key: "opcion_multiple", Label: "Opción múltiple", Distribution: models.DistributionMostlyMultipleChoice},
	{Key: "verdadero_falso", Label: "Verdadero/Falso", Distribution: models.DistributionMostlyTrueFalse},
	{Key: "solo_opcion_multiple", Label: "Solo opción múltiple", Distribution: models.DistributionOnlyMultipleChoice},
	{Key: "solo_verdadero_falso", Label: "Solo verdadero/falso", Distribution: models.DistributionOnlyTrueFalse},
	{Key: "solo_abiertas", Label: "Solo preguntas abiertas", Distribution: models.DistributionOnlyOpenEnded},
}

const defaultPreset = "mixto"

func presetByKey(key string) (Preset, bool) {
	for _, p := range Presets {
		if p.Key == key {
			return p, true
		}
	}
	return Preset{}, false
}

// presetKey finds the preset matching d, or "" for a custom distribution.
func presetKey(d models.Distribution) string {
	for _, p := range Presets {
		if p.Distribution == d {
			return p.Key
		}
	}
	return ""
}

// quizForm reads num_preguntas, tema and distribucion from the form. Fields
// that are absent keep the values from fallback.
func (h *Handler) quizForm(c *gin.Context, fallback models.QuizRequest) (models.QuizRequest, error) {
	req := fallback
	if req.QuestionCount == 0 {
		req.QuestionCount = 5
	}
	if req.Distribution == (models.Distribution{}) {
		req.Distribution = models.DistributionMixed
	}

	if raw, ok := c.GetPostForm("num_preguntas"); ok && strings.TrimSpace(raw) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return req, fmt.Errorf("%w: num_preguntas %q is not a number", models.ErrInvalidRequest, raw)
		}
		req.QuestionCount = n
	}
	if req.QuestionCount < h.Config.MinQuestions {
		return req, fmt.Errorf("%w: at least %d questions are required", models.ErrInvalidRequest, h.Config.MinQuestions)
	}

	if topic, ok := c.GetPostForm("tema"); ok {
		req.Topic = strings.TrimSpace(topic)
	}

	if key, ok := c.GetPostForm("distribucion"); ok && key != "" {
		p, found := presetByKey(key)
		if !found {
			return req, fmt.Errorf("%w: unknown distribution %q", models.ErrInvalidRequest, key)
		}
		req.Distribution = p.Distribution
	}
	return req, nil
}
