package quiz

import (
	"strings"
	"testing"

	"quizforge/internal/models"
)

func TestSelectTemplate(t *testing.T) {
	cases := []struct {
		d    models.Distribution
		want templateKind
	}{
		{models.DistributionOnlyMultipleChoice, kindMultipleChoice},
		{models.DistributionOnlyTrueFalse, kindTrueFalse},
		{models.DistributionOnlyOpenEnded, kindOpenEnded},
		{models.DistributionMixed, kindMixed},
		{models.DistributionMostlyTrueFalse, kindMixed},
		{models.Distribution{MultipleChoice: 50, OpenEnded: 50}, kindMixed},
	}
	for _, tc := range cases {
		if _, got := selectTemplate(tc.d); got != tc.want {
			t.Fatalf("selectTemplate(%+v): want=%s got=%s", tc.d, tc.want, got)
		}
	}
}

func TestBuildPromptAllTemplatesCarryEmptyContextClause(t *testing.T) {
	for _, d := range []models.Distribution{
		models.DistributionOnlyMultipleChoice,
		models.DistributionOnlyTrueFalse,
		models.DistributionOnlyOpenEnded,
		models.DistributionMixed,
	} {
		prompt, err := BuildPrompt(models.QuizRequest{QuestionCount: 7, Distribution: d}, "")
		if err != nil {
			t.Fatalf("BuildPrompt(%+v): %v", d, err)
		}
		for _, want := range []string{
			InsufficientContextMessage,
			`"cuestionario": []`,
			"exactamente 7 preguntas",
			`"total_preguntas": 7`,
		} {
			if !strings.Contains(prompt, want) {
				t.Fatalf("prompt for %+v: missing %q", d, want)
			}
		}
		if strings.Contains(prompt, "{{") || strings.Contains(prompt, "<no value>") {
			t.Fatalf("prompt for %+v: unrendered placeholder", d)
		}
	}
}

func TestBuildPromptMixedCarriesDistribution(t *testing.T) {
	prompt, err := BuildPrompt(models.QuizRequest{
		QuestionCount: 10,
		Distribution:  models.Distribution{MultipleChoice: 60, TrueFalse: 0, OpenEnded: 40},
	}, "La célula es la unidad básica de la vida.")
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	for _, want := range []string{
		"60% de opción múltiple",
		"0% de verdadero/falso",
		"40% abiertas",
		"Si algún porcentaje es 0%, no generes ninguna pregunta de ese tipo.",
		"La célula es la unidad básica de la vida.",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("mixed prompt: missing %q", want)
		}
	}
}

func TestBuildPromptSingleTypeOmitsDistribution(t *testing.T) {
	prompt, err := BuildPrompt(models.QuizRequest{QuestionCount: 3, Distribution: models.DistributionOnlyTrueFalse}, "texto")
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	if strings.Contains(prompt, "distribución") {
		t.Fatalf("single-type prompt must not describe a distribution")
	}
	if !strings.Contains(prompt, "preguntas de verdadero o falso") {
		t.Fatalf("single-type prompt: missing type instruction")
	}
}
