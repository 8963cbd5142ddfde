package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matzehuels/diagramir/pkg/errors"
	"github.com/matzehuels/diagramir/pkg/httputil"
	"github.com/matzehuels/diagramir/pkg/taxonomy"
)

const (
	// DefaultTable holds one row per taxonomy entry.
	DefaultTable = "tech_taxonomy"
	// DefaultExportFunc returns the whole taxonomy as one JSON document.
	DefaultExportFunc = "export_taxonomy_json"
)

// DB is the subset of [pgxpool.Pool] used by [Source].
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Source reads the taxonomy straight from Postgres.
type Source struct {
	db         DB
	name       string
	table      string
	exportFunc string
}

// Option configures a [Source].
type Option func(*Source)

// WithTable overrides [DefaultTable].
func WithTable(name string) Option {
	return func(s *Source) { s.table = name }
}

// WithExportFunc overrides [DefaultExportFunc].
func WithExportFunc(name string) Option {
	return func(s *Source) { s.exportFunc = name }
}

// Open connects a pool to dsn and pings it, retrying with
// [httputil.RetryWithBackoff] while the server is unreachable.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(dsn))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse database url")
	}
	err = httputil.RetryWithBackoff(ctx, func() error {
		return httputil.Retryable(pool.Ping(ctx))
	})
	if err != nil {
		pool.Close()
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect to postgres")
	}
	return pool, nil
}

// NewSource creates a source over db.
func NewSource(db DB, opts ...Option) *Source {
	s := &Source{db: db, name: "postgres", table: DefaultTable, exportFunc: DefaultExportFunc}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns "postgres:<table>".
func (s *Source) Name() string { return s.name + ":" + s.table }

// Export calls the export function and decodes its JSON result.
func (s *Source) Export(ctx context.Context) (*taxonomy.Snapshot, error) {
	var doc *string
	q := fmt.Sprintf("SELECT %s()::text", pgx.Identifier{s.exportFunc}.Sanitize())
	if err := s.db.QueryRow(ctx, q).Scan(&doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "postgres %s", s.exportFunc)
	}
	if doc == nil {
		return &taxonomy.Snapshot{}, nil
	}
	return taxonomy.DecodeSnapshot([]byte(*doc))
}

// Page reads limit rows ordered by token, starting at offset. NULL columns
// are read as empty values.
func (s *Source) Page(ctx context.Context, offset, limit int) (*taxonomy.Snapshot, error) {
	rows, err := s.db.Query(ctx, s.pageQuery(), limit, offset)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "query %s", s.table)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[taxonomy.Row])
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "scan %s", s.table)
	}
	return &taxonomy.Snapshot{Rows: out, Fields: taxonomy.FieldsOf(out, nil)}, nil
}

func (s *Source) pageQuery() string {
	cols := make([]string, 0, len(taxonomy.Columns))
	for _, c := range taxonomy.Columns {
		id := pgx.Identifier{c}.Sanitize()
		switch c {
		case taxonomy.FieldToken:
			cols = append(cols, id)
		case taxonomy.FieldAliases:
			cols = append(cols, fmt.Sprintf("coalesce(%s, '{}')::text[] AS %s", id, id))
		default:
			cols = append(cols, fmt.Sprintf("coalesce(%s::text, '') AS %s", id, id))
		}
	}
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY token LIMIT $1 OFFSET $2",
		strings.Join(cols, ", "), pgx.Identifier{s.table}.Sanitize())
}
