package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"quizforge/internal/models"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

var validName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Path returns the file an index named name is stored in under dir.
func Path(dir, name string) string {
	return filepath.Join(dir, name+".sqlite")
}

// Exists reports whether a persisted index with the name is present.
func Exists(dir, name string) bool {
	if !validName.MatchString(name) {
		return false
	}
	_, err := os.Stat(Path(dir, name))
	return err == nil
}

func checkName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid index name %q: use letters, digits, '_' or '-'", name)
	}
	return nil
}

const schema = `
CREATE TABLE meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE passages (
	seq          INTEGER PRIMARY KEY,
	id           TEXT NOT NULL,
	text         TEXT NOT NULL,
	source_id    TEXT NOT NULL,
	processed_at TEXT NOT NULL,
	start_offset INTEGER NOT NULL,
	end_offset   INTEGER NOT NULL,
	vector       BLOB NOT NULL
);`

// Persist writes the index to dir/name.sqlite, replacing any previous index
// with the same name. The file is written beside the target and renamed into
// place.
func (idx *Index) Persist(ctx context.Context, dir, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	target := Path(dir, name)
	tmp := target + ".tmp-" + uuid.NewString()
	defer os.Remove(tmp)

	if err := idx.writeFile(ctx, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("replace index %s: %w", name, err)
	}
	return nil
}

func (idx *Index) writeFile(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("failed to open index database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create index tables: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index write: %w", err)
	}
	defer tx.Rollback()

	meta := map[string]string{
		"embedding_model": idx.opts.ModelName,
		"dimension":       fmt.Sprint(idx.dim),
		"created_at":      time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("write index meta: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO passages
		(seq, id, text, source_id, processed_at, start_offset, end_offset, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare passage insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range idx.entries {
		p := e.passage
		_, err := stmt.ExecContext(ctx, i, p.ID.String(), p.Text, p.SourceID,
			p.ProcessedAt.UTC().Format(time.RFC3339Nano), p.Start, p.End, encodeVector(e.vector))
		if err != nil {
			return fmt.Errorf("write passage %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}
	return nil
}

// Load reads a persisted index. Queries on the result embed with embedder,
// which must produce vectors compatible with the stored ones.
func Load(ctx context.Context, dir, name string, embedder Embedder, opts Options) (*Index, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	path := Path(dir, name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
		}
		return nil, fmt.Errorf("stat index %s: %w", name, err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}
	defer db.Close()

	var model string
	err = db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'embedding_model'`).Scan(&model)
	if err != nil {
		return nil, fmt.Errorf("read index meta: %w", err)
	}
	if opts.ModelName != "" && model != "" && model != opts.ModelName {
		return nil, fmt.Errorf("index %s was built with embedding model %q, configured model is %q", name, model, opts.ModelName)
	}
	opts.ModelName = model

	rows, err := db.QueryContext(ctx, `SELECT seq, id, text, source_id, processed_at, start_offset, end_offset, vector
		FROM passages ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("read passages: %w", err)
	}
	defer rows.Close()

	idx := &Index{opts: opts, embedder: embedder}
	for rows.Next() {
		var (
			p         models.Passage
			id, ts    string
			vectorRaw []byte
		)
		if err := rows.Scan(&p.Seq, &id, &p.Text, &p.SourceID, &ts, &p.Start, &p.End, &vectorRaw); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		if p.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("passage %d id: %w", p.Seq, err)
		}
		if p.ProcessedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("passage %d timestamp: %w", p.Seq, err)
		}
		v, err := decodeVector(vectorRaw)
		if err != nil {
			return nil, fmt.Errorf("passage %d vector: %w", p.Seq, err)
		}
		if err := idx.add(v, p); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read passages: %w", err)
	}
	if len(idx.entries) == 0 {
		return nil, fmt.Errorf("index %s is empty", name)
	}
	return idx, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
