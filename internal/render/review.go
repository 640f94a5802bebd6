package render

import (
	"fmt"

	"quizforge/internal/models"

	"github.com/samber/lo"
)

// ReviewOption is one lettered choice in the review view.
type ReviewOption struct {
	Letter  string `json:"letter"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// ReviewItem is the expandable per-question view shown in the browser.
type ReviewItem struct {
	Number      int            `json:"number"`
	Heading     string         `json:"heading"`
	TypeLabel   string         `json:"type_label"`
	Statement   string         `json:"statement"`
	Options     []ReviewOption `json:"options,omitempty"`
	Answer      string         `json:"answer"`
	Explanation string         `json:"explanation,omitempty"`
	Difficulty  string         `json:"difficulty"`
	Incomplete  bool           `json:"incomplete"`
}

// Review builds the review view of quiz.
func Review(quiz *models.Quiz) []ReviewItem {
	return lo.Map(quiz.Questions, func(q models.Question, i int) ReviewItem {
		item := ReviewItem{
			Number:      i + 1,
			Heading:     fmt.Sprintf("Pregunta %d: %s", i+1, orDefault(q.Statement, "Sin enunciado")),
			TypeLabel:   q.Type.Label(),
			Statement:   q.Statement,
			Answer:      orDefault(q.CorrectAnswer, "No especificada"),
			Explanation: q.Explanation,
			Difficulty:  difficultyLabel(q.Difficulty),
			Incomplete:  q.Incomplete,
		}
		if q.Type == models.TypeMultipleChoice {
			item.Options = lo.Map(q.Options, func(opt string, j int) ReviewOption {
				return ReviewOption{Letter: OptionLetter(j), Text: opt, Correct: opt == q.CorrectAnswer}
			})
		}
		return item
	})
}

func difficultyLabel(d models.Difficulty) string {
	if d == "" {
		return "sin nivel"
	}
	if level, ok := d.Level(); ok {
		return string(level)
	}
	return string(d)
}
