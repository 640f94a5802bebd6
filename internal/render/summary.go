package render

import (
	"fmt"
	"io"
	"strings"

	"quizforge/internal/models"
)

const rule = "=================================================="

// WriteSummary prints the batch-mode report of a generated quiz.
func WriteSummary(w io.Writer, quiz *models.Quiz) error {
	var b strings.Builder

	if len(quiz.Questions) == 0 {
		b.WriteString("\nNo se generaron preguntas.\n")
		if quiz.Metadata.Message != "" {
			fmt.Fprintf(&b, "Mensaje del modelo: %s\n", quiz.Metadata.Message)
		}
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString("\nCUESTIONARIO GENERADO CON ÉXITO\n")
	topics := "No especificados"
	if len(quiz.Metadata.CoveredTopics) > 0 {
		topics = strings.Join(quiz.Metadata.CoveredTopics, ", ")
	}
	fmt.Fprintf(&b, "Temas cubiertos: %s\n", topics)
	fmt.Fprintf(&b, "Total preguntas: %d", len(quiz.Questions))
	if quiz.CountMismatch() {
		fmt.Fprintf(&b, " (el modelo declaró %d)", quiz.Metadata.TotalQuestions)
	}
	b.WriteString("\n" + rule + "\n")

	for i, q := range quiz.Questions {
		difficulty := "SIN NIVEL"
		if q.Difficulty != "" {
			difficulty = strings.ToUpper(string(q.Difficulty))
		}
		fmt.Fprintf(&b, "\nPregunta %d | Tipo: %s | Dificultad: %s\n", i+1, strings.ToUpper(q.Type.Label()), difficulty)
		if q.Incomplete {
			b.WriteString("[ADVERTENCIA: Estructura incompleta]\n")
		}
		fmt.Fprintf(&b, "\n%s\n", orDefault(q.Statement, "Sin enunciado"))
		if q.Type == models.TypeMultipleChoice && len(q.Options) > 0 {
			b.WriteString("\nOpciones:\n")
			for j, opt := range q.Options {
				fmt.Fprintf(&b, "   %s) %s\n", strings.ToLower(OptionLetter(j)), opt)
			}
		}
		fmt.Fprintf(&b, "\nRespuesta correcta: %s\n", orDefault(q.CorrectAnswer, "No especificada"))
		fmt.Fprintf(&b, "Explicación: %s\n", orDefault(q.Explanation, "No proporcionada"))
		b.WriteString(strings.Repeat("-", len(rule)) + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
