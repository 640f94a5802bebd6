package render

import (
	"fmt"
	"strings"

	"quizforge/internal/models"
)

// Title heads every rendered quiz document.
const Title = "Cuestionario generado automáticamente"

type Style struct {
	Size   float64
	Bold   bool
	Italic bool
}

var (
	styleTitle       = Style{Size: 16, Bold: true}
	styleStatement   = Style{Size: 12, Bold: true}
	styleOption      = Style{Size: 11}
	styleAnswer      = Style{Size: 11, Italic: true}
	styleExplanation = Style{Size: 10}
)

// Measurer reports the rendered width of text in points.
type Measurer interface {
	Width(text string, style Style) float64
}

// PageSpec describes page geometry in points. Y grows downward from the top
// edge. A new page starts once fewer than BreakBelow points remain.
type PageSpec struct {
	Width      float64
	Height     float64
	Top        float64
	Left       float64
	Indent     float64
	Right      float64
	BreakBelow float64
}

// Letter is US Letter with the margins used for printed quizzes.
var Letter = PageSpec{
	Width:      612,
	Height:     792,
	Top:        50,
	Left:       50,
	Indent:     70,
	Right:      50,
	BreakBelow: 100,
}

type Line struct {
	Text  string
	X, Y  float64
	Style Style
}

type Page struct {
	Lines []Line
}

type layouter struct {
	spec  PageSpec
	m     Measurer
	pages []Page
	y     float64
}

func (l *layouter) newPage() {
	l.pages = append(l.pages, Page{})
	l.y = l.spec.Top
}

func (l *layouter) ensureRoom() {
	if l.spec.Height-l.y < l.spec.BreakBelow {
		l.newPage()
	}
}

// emit wraps text to the printable width at x and advances by advance points
// per wrapped line.
func (l *layouter) emit(text string, x float64, style Style, advance float64) {
	maxWidth := l.spec.Width - l.spec.Right - x
	for _, part := range wrap(text, maxWidth, style, l.m) {
		l.ensureRoom()
		page := &l.pages[len(l.pages)-1]
		page.Lines = append(page.Lines, Line{Text: part, X: x, Y: l.y, Style: style})
		l.y += advance
	}
}

func (l *layouter) skip(points float64) {
	l.y += points
}

// Layout paginates a quiz: title, numbered statements, lettered options, the
// answer line and the explanation when present. It is a pure function of its
// inputs.
func Layout(quiz *models.Quiz, m Measurer, spec PageSpec) []Page {
	l := &layouter{spec: spec, m: m}
	l.newPage()
	l.emit(Title, spec.Left, styleTitle, 40)

	if len(quiz.Questions) == 0 && quiz.Metadata.Message != "" {
		l.emit(quiz.Metadata.Message, spec.Left, styleOption, 15)
	}

	for i, q := range quiz.Questions {
		l.emit(fmt.Sprintf("%d. %s", i+1, q.Statement), spec.Left, styleStatement, 20)
		if q.Type == models.TypeMultipleChoice {
			for j, opt := range q.Options {
				l.emit(fmt.Sprintf("%s. %s", OptionLetter(j), opt), spec.Indent, styleOption, 15)
			}
		}
		l.emit("Respuesta: "+q.CorrectAnswer, spec.Indent, styleAnswer, 15)
		if strings.TrimSpace(q.Explanation) != "" {
			l.emit("Explicación: "+q.Explanation, spec.Indent, styleExplanation, 15)
			l.skip(15)
		} else {
			l.skip(5)
		}
		l.ensureRoom()
	}

	// A page break after the last question can leave an empty trailing page.
	if n := len(l.pages); n > 1 && len(l.pages[n-1].Lines) == 0 {
		l.pages = l.pages[:n-1]
	}
	return l.pages
}

// OptionLetter returns "A", "B", ... for option index i.
func OptionLetter(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}
	return fmt.Sprintf("%d", i+1)
}

// wrap splits text into lines no wider than maxWidth. A single word wider than
// maxWidth gets a line of its own.
func wrap(text string, maxWidth float64, style Style, m Measurer) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	current := words[0]
	for _, w := range words[1:] {
		candidate := current + " " + w
		if m.Width(candidate, style) <= maxWidth {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = w
	}
	return append(lines, current)
}
