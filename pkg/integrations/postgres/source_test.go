package postgres

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/matzehuels/diagramir/pkg/errors"
)

func TestPageQuery(t *testing.T) {
	q := NewSource(nil, WithTable("taxonomy_v2")).pageQuery()

	for _, want := range []string{
		`SELECT "token", `,
		`coalesce("aliases", '{}')::text[] AS "aliases"`,
		`coalesce("svg_url"::text, '') AS "svg_url"`,
		`FROM "taxonomy_v2" ORDER BY token LIMIT $1 OFFSET $2`,
	} {
		if !strings.Contains(q, want) {
			t.Errorf("query missing %q:\n%s", want, q)
		}
	}
}

func TestSourceName(t *testing.T) {
	if got := NewSource(nil).Name(); got != "postgres:tech_taxonomy" {
		t.Errorf("Name() = %q", got)
	}
}

func TestOpenStopsRetryingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Open(ctx, "postgres://diagramir@127.0.0.1:1/taxonomy?connect_timeout=1")
	if !errors.Is(err, errors.ErrCodeNetwork) {
		t.Fatalf("Open() = %v, want NETWORK_ERROR", err)
	}
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("Open() = %v, want it to wrap context.Canceled", err)
	}
}

func TestOpenRejectsBadURL(t *testing.T) {
	if _, err := Open(context.Background(), "postgres://%zz"); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("Open() = %v, want INVALID_CONFIG", err)
	}
}
