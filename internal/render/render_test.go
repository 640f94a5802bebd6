package render

import (
	"bytes"
	"fmt"
	"os"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"quizforge/internal/models"
	"quizforge/internal/quiz"

	"github.com/ledongthuc/pdf"
)

// monoMeasurer treats every rune as half the font size wide.
type monoMeasurer struct{}

func (monoMeasurer) Width(text string, style Style) float64 {
	return float64(utf8.RuneCountInString(text)) * style.Size / 2
}

func sampleQuiz(n int) *models.Quiz {
	q := &models.Quiz{Metadata: models.QuizMetadata{CoveredTopics: []string{"biología"}, TotalQuestions: n}}
	for i := 0; i < n; i++ {
		switch i % 3 {
		case 0:
			q.Questions = append(q.Questions, models.Question{
				Type:          models.TypeMultipleChoice,
				Statement:     fmt.Sprintf("¿Qué orgánulo %d realiza la fotosíntesis?", i),
				Options:       []string{"Mitocondria", "Cloroplasto", "Ribosoma", "Núcleo"},
				CorrectAnswer: "Cloroplasto",
				Explanation:   "Contiene clorofila.",
				Difficulty:    models.DifficultyBasic,
			})
		case 1:
			q.Questions = append(q.Questions, models.Question{
				Type:          models.TypeTrueFalse,
				Statement:     "La fotosíntesis libera oxígeno.",
				CorrectAnswer: "Verdadero",
				Difficulty:    models.DifficultyIntermediate,
			})
		default:
			q.Questions = append(q.Questions, models.Question{
				Type:          models.TypeOpenEnded,
				Statement:     "Explica la fase luminosa.",
				CorrectAnswer: "Se produce ATP y NADPH.",
				Explanation:   "Ocurre en los tilacoides.",
				Difficulty:    models.DifficultyAdvanced,
				Incomplete:    false,
			})
		}
	}
	return q
}

func allLines(pages []Page) []Line {
	var out []Line
	for _, p := range pages {
		out = append(out, p.Lines...)
	}
	return out
}

func TestLayoutStructure(t *testing.T) {
	pages := Layout(sampleQuiz(2), monoMeasurer{}, Letter)
	lines := allLines(pages)
	var texts []string
	for _, l := range lines {
		texts = append(texts, l.Text)
	}
	want := []string{
		Title,
		"1. ¿Qué orgánulo 0 realiza la fotosíntesis?",
		"A. Mitocondria",
		"B. Cloroplasto",
		"C. Ribosoma",
		"D. Núcleo",
		"Respuesta: Cloroplasto",
		"Explicación: Contiene clorofila.",
		"2. La fotosíntesis libera oxígeno.",
		"Respuesta: Verdadero",
	}
	if !reflect.DeepEqual(texts, want) {
		t.Fatalf("layout lines:\nwant=%q\n got=%q", want, texts)
	}
	if lines[0].Style != styleTitle {
		t.Fatalf("title style: want=%+v got=%+v", styleTitle, lines[0].Style)
	}
	if lines[2].X != Letter.Indent {
		t.Fatalf("option indent: want=%v got=%v", Letter.Indent, lines[2].X)
	}
}

func TestLayoutPaginates(t *testing.T) {
	pages := Layout(sampleQuiz(30), monoMeasurer{}, Letter)
	if len(pages) < 2 {
		t.Fatalf("pages: want several got=%d", len(pages))
	}
	limit := Letter.Height - Letter.BreakBelow
	for i, p := range pages {
		if len(p.Lines) == 0 {
			t.Fatalf("page %d is empty", i)
		}
		if p.Lines[0].Y != Letter.Top {
			t.Fatalf("page %d first line: want y=%v got=%v", i, Letter.Top, p.Lines[0].Y)
		}
		for _, l := range p.Lines {
			if l.Y > limit {
				t.Fatalf("page %d line %q below break threshold: y=%v", i, l.Text, l.Y)
			}
		}
	}
	if got := len(allLines(pages)); got != len(allLines(Layout(sampleQuiz(30), monoMeasurer{}, Letter))) {
		t.Fatalf("layout is not deterministic")
	}
}

func TestLayoutWrapsLongText(t *testing.T) {
	quiz := &models.Quiz{Questions: []models.Question{{
		Type:          models.TypeOpenEnded,
		Statement:     strings.Repeat("palabra ", 60),
		CorrectAnswer: "x",
	}}}
	m := monoMeasurer{}
	lines := allLines(Layout(quiz, m, Letter))
	statementLines := 0
	for _, l := range lines {
		if l.Style != styleStatement {
			continue
		}
		statementLines++
		if w := m.Width(l.Text, l.Style); w > Letter.Width-Letter.Right-l.X {
			t.Fatalf("line %q too wide: %v", l.Text, w)
		}
	}
	if statementLines < 2 {
		t.Fatalf("statement lines: want wrapped text got=%d", statementLines)
	}
}

func TestLayoutEmptyQuizShowsMessage(t *testing.T) {
	quiz := &models.Quiz{Metadata: models.QuizMetadata{Message: "No se encontró información suficiente sobre el tema solicitado."}}
	lines := allLines(Layout(quiz, monoMeasurer{}, Letter))
	if len(lines) != 2 || !strings.HasPrefix(lines[1].Text, "No se encontró") {
		t.Fatalf("empty quiz layout: got=%v", lines)
	}
}

func TestWritePDF(t *testing.T) {
	quiz := sampleQuiz(30)
	var buf bytes.Buffer
	if err := WritePDF(&buf, quiz); err != nil {
		t.Fatalf("WritePDF: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("WritePDF: output is not a PDF")
	}
	r, err := pdf.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("read back pdf: %v", err)
	}
	if r.NumPage() < 2 {
		t.Fatalf("pages: want several got=%d", r.NumPage())
	}
}

func TestWritePDFFile(t *testing.T) {
	path, err := WritePDFFile(sampleQuiz(3))
	if err != nil {
		t.Fatalf("WritePDFFile: %v", err)
	}
	defer os.Remove(path)
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		t.Fatalf("WritePDFFile: want non-empty file got err=%v", err)
	}
}

func TestWriteSummary(t *testing.T) {
	quiz := sampleQuiz(3)
	quiz.Questions[1].Incomplete = true
	quiz.Metadata.TotalQuestions = 4

	var buf bytes.Buffer
	if err := WriteSummary(&buf, quiz); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Temas cubiertos: biología",
		"Total preguntas: 3 (el modelo declaró 4)",
		"Pregunta 1 | Tipo: OPCIÓN MÚLTIPLE | Dificultad: BÁSICO",
		"   b) Cloroplasto",
		"[ADVERTENCIA: Estructura incompleta]",
		"Explicación: No proporcionada",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary: missing %q in\n%s", want, out)
		}
	}
}

func TestWriteSummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	quiz := &models.Quiz{Metadata: models.QuizMetadata{Message: "sin contexto"}}
	if err := WriteSummary(&buf, quiz); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	if !strings.Contains(buf.String(), "sin contexto") {
		t.Fatalf("summary: want model message got=%q", buf.String())
	}
}

func TestReview(t *testing.T) {
	items := Review(sampleQuiz(3))
	if len(items) != 3 {
		t.Fatalf("items: want=3 got=%d", len(items))
	}
	mc := items[0]
	if len(mc.Options) != 4 || mc.Options[1].Letter != "B" || !mc.Options[1].Correct || mc.Options[0].Correct {
		t.Fatalf("multiple choice review options: got=%+v", mc.Options)
	}
	if mc.Heading != "Pregunta 1: ¿Qué orgánulo 0 realiza la fotosíntesis?" {
		t.Fatalf("heading: got=%q", mc.Heading)
	}
	if items[1].Options != nil || items[1].TypeLabel != "Verdadero/Falso" {
		t.Fatalf("true/false review: got=%+v", items[1])
	}
	if items[2].Difficulty != "avanzado" {
		t.Fatalf("difficulty: want=avanzado got=%q", items[2].Difficulty)
	}
}

func TestLayoutDrawsOptionsForAccentedTypeTag(t *testing.T) {
	parsed, err := quiz.ParseResponse(`{"cuestionario": [{"tipo": "Opción Múltiple", "enunciado": "2+2", "opciones": ["3", "4", "5", "6"], "respuesta_correcta": "4"}], "metadata": {"total_preguntas": 1}}`)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	var options []string
	for _, l := range allLines(Layout(parsed, monoMeasurer{}, Letter)) {
		if l.Style == styleOption {
			options = append(options, l.Text)
		}
	}
	if got := strings.Join(options, "|"); got != "A. 3|B. 4|C. 5|D. 6" {
		t.Fatalf("option lines: want=A. 3|B. 4|C. 5|D. 6 got=%s", got)
	}
}
