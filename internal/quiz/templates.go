package quiz

import (
	"fmt"

	"quizforge/internal/models"

	"github.com/tmc/langchaingo/prompts"
)

// InsufficientContextMessage is the mensaje returned when the context does not
// cover the requested topic.
const InsufficientContextMessage = "No se encontró información suficiente sobre el tema solicitado."

const promptHeader = `Eres un generador experto de cuestionarios educativos.
Trabaja SOLO con la información del siguiente contexto:

<contexto>
{{.context}}
</contexto>

Si el contexto está vacío o no contiene información sobre el tema solicitado, responde únicamente con este JSON:
{
  "cuestionario": [],
  "metadata": {
    "temas_cubiertos": [],
    "total_preguntas": 0,
    "mensaje": "{{.empty_message}}"
  }
}

`

const promptFooter = `
Responde SOLO con JSON válido, sin texto adicional ni bloques de código:
{
  "cuestionario": [
%s
  ],
  "metadata": {
    "temas_cubiertos": ["tema1", "tema2"],
    "total_preguntas": {{.count}}
  }
}
`

const (
	exampleMultipleChoice = `    {
      "tipo": "opcion_multiple",
      "enunciado": "texto completo de la pregunta",
      "opciones": ["opción 1", "opción 2", "opción 3", "opción 4"],
      "respuesta_correcta": "texto exacto de la opción correcta",
      "explicacion": "por qué esa opción es la correcta",
      "dificultad": "básico|intermedio|avanzado"
    }`
	exampleTrueFalse = `    {
      "tipo": "verdadero_falso",
      "enunciado": "afirmación completa",
      "respuesta_correcta": "Verdadero|Falso",
      "explicacion": "por qué la afirmación es verdadera o falsa",
      "dificultad": "básico|intermedio|avanzado"
    }`
	exampleOpenEnded = `    {
      "tipo": "pregunta_abierta",
      "enunciado": "texto completo de la pregunta",
      "respuesta_correcta": "respuesta modelo esperada",
      "explicacion": "qué debe incluir una buena respuesta",
      "dificultad": "básico|intermedio|avanzado"
    }`
)

const (
	bodyMultipleChoice = `En otro caso, genera exactamente {{.count}} preguntas de opción múltiple.
Cada pregunta tiene 4 opciones y solo una es correcta; incluye explicación y dificultad.
`
	bodyTrueFalse = `En otro caso, genera exactamente {{.count}} preguntas de verdadero o falso.
Cada pregunta indica si la afirmación es Verdadero o Falso; incluye explicación y dificultad.
`
	bodyOpenEnded = `En otro caso, genera exactamente {{.count}} preguntas abiertas.
Cada pregunta incluye una respuesta modelo, explicación y dificultad.
`
	bodyMixed = `En otro caso, genera exactamente {{.count}} preguntas con esta distribución:
- {{.pct_multiple_choice}}% de opción múltiple (4 opciones, 1 correcta)
- {{.pct_true_false}}% de verdadero/falso
- {{.pct_open_ended}}% abiertas

Si algún porcentaje es 0%, no generes ninguna pregunta de ese tipo.
`
)

var (
	templateMultipleChoice = newTemplate(bodyMultipleChoice, exampleMultipleChoice)
	templateTrueFalse      = newTemplate(bodyTrueFalse, exampleTrueFalse)
	templateOpenEnded      = newTemplate(bodyOpenEnded, exampleOpenEnded)
	templateMixed          = newTemplate(bodyMixed, exampleMultipleChoice+",\n"+exampleTrueFalse+",\n"+exampleOpenEnded,
		"pct_multiple_choice", "pct_true_false", "pct_open_ended")
)

func newTemplate(body, examples string, extraVars ...string) prompts.PromptTemplate {
	vars := append([]string{"context", "count", "empty_message"}, extraVars...)
	return prompts.NewPromptTemplate(promptHeader+body+fmt.Sprintf(promptFooter, examples), vars)
}

// templateKind names the selected template, for logging and tests.
type templateKind string

const (
	kindMultipleChoice templateKind = "opcion_multiple"
	kindTrueFalse      templateKind = "verdadero_falso"
	kindOpenEnded      templateKind = "pregunta_abierta"
	kindMixed          templateKind = "mixto"
)

// selectTemplate picks the type-specific template when one type takes the
// whole distribution, and the mixed template otherwise.
func selectTemplate(d models.Distribution) (prompts.PromptTemplate, templateKind) {
	if typ, ok := d.Single(); ok {
		switch typ {
		case models.TypeMultipleChoice:
			return templateMultipleChoice, kindMultipleChoice
		case models.TypeTrueFalse:
			return templateTrueFalse, kindTrueFalse
		case models.TypeOpenEnded:
			return templateOpenEnded, kindOpenEnded
		}
	}
	return templateMixed, kindMixed
}

// BuildPrompt renders the generation instruction for a clamped request and a
// context block.
func BuildPrompt(req models.QuizRequest, contextText string) (string, error) {
	tmpl, kind := selectTemplate(req.Distribution)
	values := map[string]any{
		"context":       contextText,
		"count":         req.QuestionCount,
		"empty_message": InsufficientContextMessage,
	}
	if kind == kindMixed {
		values["pct_multiple_choice"] = req.Distribution.MultipleChoice
		values["pct_true_false"] = req.Distribution.TrueFalse
		values["pct_open_ended"] = req.Distribution.OpenEnded
	}
	prompt, err := tmpl.Format(values)
	if err != nil {
		return "", fmt.Errorf("format %s prompt: %w", kind, err)
	}
	return prompt, nil
}
