// Command quizgen generates a quiz from a PDF document and prints a summary.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"quizforge/internal/config"
	"quizforge/internal/llm"
	"quizforge/internal/logger"
	"quizforge/internal/models"
	"quizforge/internal/pipeline"
	"quizforge/internal/quiz"
	"quizforge/internal/render"

	"github.com/spf13/pflag"
)

const (
	defaultTopic     = "contenido educativo del documento"
	defaultIndexName = "cuestionario_db"
	defaultJSONPath  = "cuestionario_generado.json"
)

type options struct {
	file       string
	questions  int
	topic      string
	indexName  string
	reuseIndex bool
	pdfOutput  string
	jsonOutput string
	yes        bool
	configDir  string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("quizgen", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVarP(&opts.questions, "num_preguntas", "n", 5, "número de preguntas a generar")
	fs.StringVarP(&opts.topic, "tema", "t", defaultTopic, "tema sobre el que generar las preguntas")
	fs.StringVar(&opts.indexName, "index_name", defaultIndexName, "nombre del índice persistido")
	fs.BoolVar(&opts.reuseIndex, "reuse_index", false, "reutilizar el índice persistido si existe")
	fs.StringVarP(&opts.pdfOutput, "output", "o", "", "escribir también el cuestionario en este PDF")
	fs.StringVar(&opts.jsonOutput, "json_output", defaultJSONPath, "ruta del JSON guardado")
	fs.BoolVarP(&opts.yes, "yes", "y", false, "guardar el JSON sin preguntar")
	fs.StringVar(&opts.configDir, "config", ".", "directorio con config.yaml")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "uso: quizgen [opciones] archivo.pdf")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return opts, fmt.Errorf("se esperaba exactamente un archivo PDF")
	}
	opts.file = fs.Arg(0)
	return opts, nil
}

func main() {
	os.Exit(realMain())
}

func realMain() int {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}

	if _, err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error al cargar .env: %v\n", err)
		return 1
	}
	cfg, err := config.Load(opts.configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuración no válida: %v\n", err)
		return 1
	}
	logg, err := logger.New(cfg.Log.Mode, cfg.Log.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error al iniciar el logger: %v\n", err)
		return 1
	}
	defer logg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := llm.New(ctx, cfg, logg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error al iniciar el modelo: %v\n", err)
		return 1
	}
	defer provider.Close()

	pipe, err := pipeline.New(cfg, provider.Embedder, provider.Generator, nil, logg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error de configuración: %v\n", err)
		return 1
	}

	a := &app{pipe: pipe, in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
	return a.run(ctx, opts)
}

type app struct {
	pipe   *pipeline.Pipeline
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func (a *app) run(ctx context.Context, opts options) int {
	if !opts.reuseIndex {
		if _, err := os.Stat(opts.file); err != nil {
			fmt.Fprintf(a.errOut, "Error: no se puede leer %s: %v\n", opts.file, err)
			return 1
		}
	}

	fmt.Fprintf(a.out, "Procesando %s...\n", opts.file)
	idx, err := a.pipe.Open(ctx, opts.file, opts.indexName, opts.reuseIndex)
	if err != nil {
		fmt.Fprintf(a.errOut, "Error al procesar el documento: %v\n", err)
		return 1
	}

	req := models.QuizRequest{
		Topic:         opts.topic,
		QuestionCount: opts.questions,
		Distribution:  models.DistributionMixed,
	}
	fmt.Fprintf(a.out, "Generando %d preguntas sobre %q...\n\n", opts.questions, opts.topic)
	q, err := a.pipe.Compose(ctx, req, idx)
	if err != nil {
		fmt.Fprintf(a.errOut, "Error al generar el cuestionario: %v\n", err)
		if raw, ok := quiz.RawResponse(err); ok {
			fmt.Fprintf(a.errOut, "\nRespuesta cruda del modelo:\n%s\n", raw)
		}
		return 1
	}

	if err := render.WriteSummary(a.out, q); err != nil {
		fmt.Fprintf(a.errOut, "Error al mostrar el cuestionario: %v\n", err)
		return 1
	}

	if opts.pdfOutput != "" {
		if err := writePDF(opts.pdfOutput, q); err != nil {
			fmt.Fprintf(a.errOut, "Error al escribir el PDF: %v\n", err)
			return 1
		}
		fmt.Fprintf(a.out, "\nPDF guardado en %s\n", opts.pdfOutput)
	}

	if opts.yes || a.confirm("\n¿Deseas guardar el cuestionario en formato JSON? (s/n): ") {
		if err := writeJSON(opts.jsonOutput, q); err != nil {
			fmt.Fprintf(a.errOut, "Error al guardar el JSON: %v\n", err)
			return 1
		}
		fmt.Fprintf(a.out, "Cuestionario guardado en %s\n", opts.jsonOutput)
	}
	return 0
}

func (a *app) confirm(prompt string) bool {
	fmt.Fprint(a.out, prompt)
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "s")
}

func writePDF(path string, q *models.Quiz) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return render.WritePDF(f, q)
}

func writeJSON(path string, q *models.Quiz) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(q)
}
