//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestSourceIntegration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer pool.Close()

	src := NewSource(pool)
	page, err := src.Page(ctx, 0, 10)
	if err != nil {
		t.Fatalf("Page() error: %v", err)
	}
	for i := 1; i < page.Len(); i++ {
		if page.Rows[i-1].Token > page.Rows[i].Token {
			t.Errorf("rows not ordered by token: %q > %q", page.Rows[i-1].Token, page.Rows[i].Token)
		}
	}

	if _, err := src.Export(ctx); err != nil {
		t.Logf("Export() unavailable: %v", err)
	}
}
