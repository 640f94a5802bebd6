package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quizforge/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrQuizNotFound is returned when no archived quiz has the requested id.
var ErrQuizNotFound = errors.New("quiz not found")

// Querier is the subset of pgxpool.Pool used by QuizStore.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuizStore archives generated quizzes.
type QuizStore struct {
	q Querier
}

func NewQuizStore(q Querier) *QuizStore {
	return &QuizStore{q: q}
}

const createQuizzesTable = `
CREATE TABLE IF NOT EXISTS quizzes (
	id          UUID PRIMARY KEY,
	source_name TEXT NOT NULL,
	topic       TEXT NOT NULL,
	quiz        JSONB NOT NULL,
	pdf_url     TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func (s *QuizStore) CreateTables(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, createQuizzesTable); err != nil {
		return fmt.Errorf("create quizzes table: %w", err)
	}
	return nil
}

// SaveQuiz inserts a quiz, assigning an id and timestamp when unset.
func (s *QuizStore) SaveQuiz(ctx context.Context, a *models.ArchivedQuiz) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	body, err := json.Marshal(a.Quiz)
	if err != nil {
		return fmt.Errorf("encode quiz: %w", err)
	}
	_, err = s.q.Exec(ctx,
		`INSERT INTO quizzes (id, source_name, topic, quiz, pdf_url, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.SourceName, a.Topic, body, a.PDFURL, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}
	return nil
}

// SetPDFURL records where the rendered PDF of a quiz was published.
func (s *QuizStore) SetPDFURL(ctx context.Context, id uuid.UUID, url string) error {
	tag, err := s.q.Exec(ctx, `UPDATE quizzes SET pdf_url = $2 WHERE id = $1`, id, url)
	if err != nil {
		return fmt.Errorf("update quiz %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrQuizNotFound
	}
	return nil
}

func (s *QuizStore) GetQuiz(ctx context.Context, id uuid.UUID) (*models.ArchivedQuiz, error) {
	row := s.q.QueryRow(ctx,
		`SELECT id, source_name, topic, quiz, pdf_url, created_at FROM quizzes WHERE id = $1`, id)
	a, err := scanQuiz(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrQuizNotFound
	}
	return a, err
}

// ListQuizzes returns the most recent quizzes first.
func (s *QuizStore) ListQuizzes(ctx context.Context, limit int) ([]models.ArchivedQuiz, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.q.Query(ctx,
		`SELECT id, source_name, topic, quiz, pdf_url, created_at FROM quizzes ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	var out []models.ArchivedQuiz
	for rows.Next() {
		a, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return out, nil
}

func scanQuiz(row pgx.Row) (*models.ArchivedQuiz, error) {
	var (
		a    models.ArchivedQuiz
		body []byte
	)
	if err := row.Scan(&a.ID, &a.SourceName, &a.Topic, &body, &a.PDFURL, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan quiz: %w", err)
	}
	if err := json.Unmarshal(body, &a.Quiz); err != nil {
		return nil, fmt.Errorf("decode quiz %s: %w", a.ID, err)
	}
	return &a, nil
}
