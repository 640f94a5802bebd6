package render

import (
	"fmt"
	"io"
	"os"

	"quizforge/internal/models"

	"github.com/go-pdf/fpdf"
)

type fpdfMeasurer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (m fpdfMeasurer) Width(text string, style Style) float64 {
	setFont(m.pdf, style)
	return m.pdf.GetStringWidth(m.tr(text))
}

func setFont(pdf *fpdf.Fpdf, style Style) {
	s := ""
	if style.Bold {
		s += "B"
	}
	if style.Italic {
		s += "I"
	}
	pdf.SetFont("Helvetica", s, style.Size)
}

// WritePDF renders quiz as a Letter-size PDF document to w.
func WritePDF(w io.Writer, quiz *models.Quiz) error {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetTitle(Title, true)
	pdf.SetAutoPageBreak(false, 0)
	// Core fonts are cp1252; translate so accented Spanish text survives.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, page := range Layout(quiz, fpdfMeasurer{pdf: pdf, tr: tr}, Letter) {
		pdf.AddPage()
		for _, line := range page.Lines {
			setFont(pdf, line.Style)
			pdf.Text(line.X, line.Y+line.Style.Size, tr(line.Text))
		}
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// WritePDFFile renders quiz to a new temporary file and returns its path. The
// caller removes the file.
func WritePDFFile(quiz *models.Quiz) (string, error) {
	f, err := os.CreateTemp("", "cuestionario-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create pdf file: %w", err)
	}
	if err := WritePDF(f, quiz); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close pdf file: %w", err)
	}
	return f.Name(), nil
}
