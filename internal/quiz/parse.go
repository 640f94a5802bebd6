package quiz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"quizforge/internal/models"

	"github.com/samber/lo"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripCodeFence removes a leading ``` or ```json marker (any case) and a
// trailing ```. Nothing else is cleaned up.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = s[len("```"):]
	if len(s) >= len("json") && strings.EqualFold(s[:len("json")], "json") {
		s = s[len("json"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ParseResponse turns raw model output into a Quiz. Invalid JSON yields a
// *MalformedResponseError; JSON without a cuestionario list yields an
// *InvalidSchemaError. Entries missing tipo, enunciado or respuesta_correcta
// are kept and flagged Incomplete.
func ParseResponse(raw string) (*models.Quiz, error) {
	cleaned := stripCodeFence(raw)

	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &MalformedResponseError{Raw: raw, Err: err}
	}
	if dec.More() {
		return nil, &MalformedResponseError{Raw: raw, Err: fmt.Errorf("unexpected data after JSON value")}
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, &InvalidSchemaError{Raw: raw, Reason: fmt.Sprintf("top level is %s, want object", jsonKind(doc))}
	}
	rawQuestions, ok := obj["cuestionario"]
	if !ok {
		return nil, &InvalidSchemaError{Raw: raw, Reason: `missing "cuestionario"`}
	}
	entries, ok := rawQuestions.([]any)
	if !ok {
		return nil, &InvalidSchemaError{Raw: raw, Reason: fmt.Sprintf(`"cuestionario" is %s, want list`, jsonKind(rawQuestions))}
	}

	quiz := &models.Quiz{Questions: make([]models.Question, 0, len(entries))}
	for _, e := range entries {
		quiz.Questions = append(quiz.Questions, parseQuestion(e))
	}
	quiz.Metadata = parseMetadata(obj["metadata"], len(quiz.Questions))
	return quiz, nil
}

func parseQuestion(v any) models.Question {
	m, ok := v.(map[string]any)
	if !ok {
		return models.Question{Statement: stringify(v), Incomplete: true}
	}
	q := models.Question{
		Type:          normalizeType(stringify(m["tipo"])),
		Statement:     stringify(m["enunciado"]),
		Options:       parseOptions(m["opciones"]),
		CorrectAnswer: stringify(m["respuesta_correcta"]),
		Explanation:   stringify(m["explicacion"]),
		Difficulty:    models.Difficulty(stringify(m["dificultad"])),
	}
	q.Incomplete = strings.TrimSpace(string(q.Type)) == "" ||
		strings.TrimSpace(q.Statement) == "" ||
		strings.TrimSpace(q.CorrectAnswer) == ""
	return q
}

// normalizeType maps spelling variants of the known tags onto the tag.
// Unknown tags are returned unchanged.
func normalizeType(s string) models.QuestionType {
	key := strings.ToLower(strings.TrimSpace(foldAccents(s)))
	key = strings.NewReplacer(" ", "_", "/", "_", "-", "_").Replace(key)
	switch key {
	case "opcion_multiple", "multiple_choice":
		return models.TypeMultipleChoice
	case "verdadero_falso", "verdadero_o_falso", "true_false":
		return models.TypeTrueFalse
	case "pregunta_abierta", "abierta", "open_ended", "open":
		return models.TypeOpenEnded
	}
	return models.QuestionType(s)
}

// foldAccents strips combining marks, so "opción múltiple" becomes
// "opcion multiple".
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func parseOptions(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return lo.Map(t, func(o any, _ int) string { return stringify(o) })
	default:
		return []string{stringify(t)}
	}
}

func parseMetadata(v any, questionCount int) models.QuizMetadata {
	md := models.QuizMetadata{TotalQuestions: questionCount}
	m, ok := v.(map[string]any)
	if !ok {
		return md
	}

	topics, ok := m["temas_cubiertos"]
	if !ok {
		topics = m["temas_principales"]
	}
	if list, ok := topics.([]any); ok {
		names := lo.Map(list, func(t any, _ int) string { return strings.TrimSpace(stringify(t)) })
		md.CoveredTopics = lo.Uniq(lo.Compact(names))
	}

	if total, ok := parseInt(m["total_preguntas"]); ok {
		md.TotalQuestions = total
	}
	md.Message = stringify(m["mensaje"])
	return md
}

func parseInt(v any) (int, bool) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n), true
		}
		if f, err := t.Float64(); err == nil {
			return int(f), true
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n, true
		}
	}
	return 0, false
}

// stringify renders a decoded JSON value as text. Strings are returned as-is,
// null becomes "".
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "list"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	}
	return fmt.Sprintf("%T", v)
}
