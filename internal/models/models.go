package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Passage is a contiguous slice of extracted document text with provenance.
type Passage struct {
	ID          uuid.UUID `json:"id"`
	Text        string    `json:"text"`
	SourceID    string    `json:"origen"`
	ProcessedAt time.Time `json:"procesado_el"`
	Seq         int       `json:"seq"`
	Start       int       `json:"start"` // rune offset into the extracted text
	End         int       `json:"end"`
}

// Distribution holds the requested percentage per question type.
type Distribution struct {
	MultipleChoice int `json:"opcion_multiple"`
	TrueFalse      int `json:"verdadero_falso"`
	OpenEnded      int `json:"pregunta_abierta"`
}

var (
	DistributionMixed                = Distribution{MultipleChoice: 40, TrueFalse: 40, OpenEnded: 20}
	DistributionMostlyMultipleChoice = Distribution{MultipleChoice: 80, TrueFalse: 10, OpenEnded: 10}
	DistributionMostlyTrueFalse      = Distribution{MultipleChoice: 10, TrueFalse: 80, OpenEnded: 10}
	DistributionOnlyMultipleChoice   = Distribution{MultipleChoice: 100}
	DistributionOnlyTrueFalse        = Distribution{TrueFalse: 100}
	DistributionOnlyOpenEnded        = Distribution{OpenEnded: 100}
)

// Validate checks that every percentage is in [0,100] and that they sum to 100.
func (d Distribution) Validate() error {
	for _, p := range []int{d.MultipleChoice, d.TrueFalse, d.OpenEnded} {
		if p < 0 || p > 100 {
			return fmt.Errorf("distribution percentage out of range: %d", p)
		}
	}
	if sum := d.MultipleChoice + d.TrueFalse + d.OpenEnded; sum != 100 {
		return fmt.Errorf("distribution must sum to 100, got %d", sum)
	}
	return nil
}

// Single reports the question type that takes the whole distribution, if any.
func (d Distribution) Single() (QuestionType, bool) {
	switch {
	case d.MultipleChoice == 100:
		return TypeMultipleChoice, true
	case d.TrueFalse == 100:
		return TypeTrueFalse, true
	case d.OpenEnded == 100:
		return TypeOpenEnded, true
	}
	return "", false
}

// QuizRequest is what a user asks the composer for.
type QuizRequest struct {
	Topic         string       `json:"tema"`
	QuestionCount int          `json:"num_preguntas"`
	Distribution  Distribution `json:"distribucion"`
}

var ErrInvalidRequest = errors.New("invalid quiz request")

func (r QuizRequest) Validate() error {
	if r.QuestionCount < 1 {
		return fmt.Errorf("%w: question count must be at least 1, got %d", ErrInvalidRequest, r.QuestionCount)
	}
	if err := r.Distribution.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

type QuestionType string

const (
	TypeMultipleChoice QuestionType = "opcion_multiple"
	TypeTrueFalse      QuestionType = "verdadero_falso"
	TypeOpenEnded      QuestionType = "pregunta_abierta"
)

func (t QuestionType) Known() bool {
	switch t {
	case TypeMultipleChoice, TypeTrueFalse, TypeOpenEnded:
		return true
	}
	return false
}

// Label is the human-readable name used in summaries and the review UI.
func (t QuestionType) Label() string {
	switch t {
	case TypeMultipleChoice:
		return "Opción múltiple"
	case TypeTrueFalse:
		return "Verdadero/Falso"
	case TypeOpenEnded:
		return "Pregunta abierta"
	}
	if t == "" {
		return "Sin tipo"
	}
	return string(t)
}

type Difficulty string

const (
	DifficultyBasic        Difficulty = "básico"
	DifficultyIntermediate Difficulty = "intermedio"
	DifficultyAdvanced     Difficulty = "avanzado"
)

// Level normalises spelling variants ("basico", "Basic", "AVANZADO") to one of
// the three known levels. Unknown values come back unchanged with ok=false.
func (d Difficulty) Level() (Difficulty, bool) {
	switch strings.ToLower(strings.TrimSpace(string(d))) {
	case "básico", "basico", "basic", "fácil", "facil", "easy":
		return DifficultyBasic, true
	case "intermedio", "intermediate", "medio", "medium":
		return DifficultyIntermediate, true
	case "avanzado", "advanced", "difícil", "dificil", "hard":
		return DifficultyAdvanced, true
	}
	return d, false
}

// Question is one quiz item. Type is the variant tag: Options is only
// meaningful for multiple-choice questions.
type Question struct {
	Type          QuestionType `json:"tipo,omitempty"`
	Statement     string       `json:"enunciado,omitempty"`
	Options       []string     `json:"opciones,omitempty"`
	CorrectAnswer string       `json:"respuesta_correcta,omitempty"`
	Explanation   string       `json:"explicacion,omitempty"`
	Difficulty    Difficulty   `json:"dificultad,omitempty"`
	Incomplete    bool         `json:"incompleta,omitempty"`
}

// TrueFalseAnswer interprets CorrectAnswer for a true/false question.
func (q Question) TrueFalseAnswer() (value bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(q.CorrectAnswer)) {
	case "verdadero", "true", "v", "cierto", "sí", "si":
		return true, true
	case "falso", "false", "f", "no":
		return false, true
	}
	return false, false
}

type QuizMetadata struct {
	CoveredTopics  []string `json:"temas_cubiertos"`
	TotalQuestions int      `json:"total_preguntas"`
	Message        string   `json:"mensaje,omitempty"`
}

// Quiz is the parsed model output. It is not mutated after parsing.
type Quiz struct {
	Questions []Question   `json:"cuestionario"`
	Metadata  QuizMetadata `json:"metadata"`
}

// CountMismatch reports whether the declared total differs from the number of
// questions actually returned.
func (q *Quiz) CountMismatch() bool {
	return q.Metadata.TotalQuestions != len(q.Questions)
}

// IncompleteCount returns how many questions lack a required field.
func (q *Quiz) IncompleteCount() int {
	n := 0
	for _, question := range q.Questions {
		if question.Incomplete {
			n++
		}
	}
	return n
}

// ArchivedQuiz is a generated quiz stored for later listing.
type ArchivedQuiz struct {
	ID         uuid.UUID `json:"id"`
	SourceName string    `json:"source_name"`
	Topic      string    `json:"topic"`
	Quiz       Quiz      `json:"quiz"`
	PDFURL     string    `json:"pdf_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
