package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/stencil/pkg/schema"
)

// LibSQLJournal implements the Journal interface using libSQL (embedded SQLite fork).
type LibSQLJournal struct {
	db *sql.DB
}

// NewLibSQLJournal opens a libSQL database at the given path. The path should
// be a file URI, e.g. "file:/path/to/journal.db". Call Migrate before use.
func NewLibSQLJournal(dbPath string) (*LibSQLJournal, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "open libsql: %s", err.Error()).WithCause(err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLJournal{db: db}, nil
}

// OpenLibSQLJournal opens and migrates a journal. A bare filesystem path is
// turned into a file URI.
func OpenLibSQLJournal(ctx context.Context, path string) (*LibSQLJournal, error) {
	if !strings.Contains(path, ":") {
		path = "file:" + path
	}
	j, err := NewLibSQLJournal(path)
	if err != nil {
		return nil, err
	}
	if err := j.Migrate(ctx); err != nil {
		_ = j.Close()
		return nil, err
	}
	return j, nil
}

// DB returns the underlying *sql.DB.
func (j *LibSQLJournal) DB() *sql.DB { return j.db }

// Close closes the database.
func (j *LibSQLJournal) Close() error { return j.db.Close() }

// Migrate runs all pending database migrations.
func (j *LibSQLJournal) Migrate(ctx context.Context) error {
	if err := runMigrations(ctx, j.db); err != nil {
		return schema.NewError(schema.ErrCodeStore, err.Error()).WithCause(err)
	}
	return nil
}

// --- Renders ---

func (j *LibSQLJournal) AppendRender(ctx context.Context, r *Render) error {
	if r == nil {
		return schema.NewError(schema.ErrCodeValidation, "render is nil")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.StartedAt = timeOrNow(r.StartedAt)

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO renders (id, template, outcome, error, duration_us, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Template, r.Outcome, nullStr(r.Error), r.Duration.Microseconds(), r.StartedAt,
	)
	if err != nil {
		return storeErr("insert render", err)
	}
	return nil
}

// ListRenders returns the most recent renders first.
func (j *LibSQLJournal) ListRenders(ctx context.Context, limit int) ([]*Render, error) {
	query := `SELECT id, template, outcome, error, duration_us, started_at FROM renders ORDER BY started_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list renders", err)
	}
	defer rows.Close()

	var out []*Render
	for rows.Next() {
		r := &Render{}
		var errText sql.NullString
		var us int64
		if err := rows.Scan(&r.ID, &r.Template, &r.Outcome, &errText, &us, &r.StartedAt); err != nil {
			return nil, storeErr("scan render", err)
		}
		r.Error = errText.String
		r.Duration = time.Duration(us) * time.Microsecond
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list renders", err)
	}
	return out, nil
}

// --- Invocations ---

// AppendInvocation inserts an invocation with the next sequence number of
// its render. The sequence read and the insert share one transaction.
func (j *LibSQLJournal) AppendInvocation(ctx context.Context, inv *Invocation) error {
	if inv == nil {
		return schema.NewError(schema.ErrCodeValidation, "invocation is nil")
	}
	if inv.Action == "" {
		return schema.NewError(schema.ErrCodeValidation, "invocation action is empty")
	}
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	inv.CreatedAt = timeOrNow(inv.CreatedAt)

	params, err := nullableJSON(inv.Params)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "marshal params: %s", err.Error()).WithCause(err)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin tx", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM invocations WHERE render_id = ?`, inv.RenderID,
	).Scan(&seq)
	if err != nil {
		return storeErr("next sequence", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO invocations (id, render_id, sequence, template, line, action, outcome, error, params, creation_us, execution_us, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.RenderID, seq, inv.Template, inv.Line, inv.Action, inv.Outcome, nullStr(inv.Error), params,
		inv.Creation.Microseconds(), inv.Execution.Microseconds(), inv.CreatedAt,
	)
	if err != nil {
		return storeErr("insert invocation", err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit invocation", err)
	}
	inv.Sequence = seq
	return nil
}

// ListInvocations returns matching invocations ordered by render and sequence.
func (j *LibSQLJournal) ListInvocations(ctx context.Context, filter InvocationFilter) ([]*Invocation, error) {
	var (
		where []string
		args  []any
	)
	if filter.RenderID != "" {
		where = append(where, "render_id = ?")
		args = append(args, filter.RenderID)
	}
	if filter.Action != "" {
		where = append(where, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, filter.Outcome)
	}
	if !filter.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, filter.Since)
	}

	query := `SELECT id, render_id, sequence, template, line, action, outcome, error, params, creation_us, execution_us, created_at FROM invocations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list invocations", err)
	}
	defer rows.Close()

	var out []*Invocation
	for rows.Next() {
		inv := &Invocation{}
		var errText, params sql.NullString
		var creationUS, executionUS int64
		if err := rows.Scan(&inv.ID, &inv.RenderID, &inv.Sequence, &inv.Template, &inv.Line, &inv.Action,
			&inv.Outcome, &errText, &params, &creationUS, &executionUS, &inv.CreatedAt); err != nil {
			return nil, storeErr("scan invocation", err)
		}
		inv.Error = errText.String
		inv.Creation = time.Duration(creationUS) * time.Microsecond
		inv.Execution = time.Duration(executionUS) * time.Microsecond
		if params.Valid && params.String != "" {
			if err := json.Unmarshal([]byte(params.String), &inv.Params); err != nil {
				return nil, storeErr("decode params", err)
			}
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list invocations", err)
	}
	return out, nil
}

var _ Journal = (*LibSQLJournal)(nil)

// --- helpers ---

func storeErr(op string, err error) *schema.StencilError {
	return schema.NewErrorf(schema.ErrCodeStore, "%s: %s", op, err.Error()).WithCause(err)
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableJSON(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	return string(b), nil
}
