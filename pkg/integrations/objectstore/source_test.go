package objectstore

import (
	"testing"

	"github.com/matzehuels/diagramir/pkg/errors"
	"github.com/matzehuels/diagramir/pkg/taxonomy"
)

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no endpoint", Config{AccessKey: "a", SecretKey: "s", Bucket: "b"}},
		{"no keys", Config{Endpoint: "localhost:9000", Bucket: "b"}},
		{"no bucket", Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("New() error = %v, want INVALID_CONFIG", err)
			}
		})
	}
}

func TestNewDefaults(t *testing.T) {
	s, err := New(Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s", Bucket: "infra", Prefix: "/"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if got := s.Name(); got != "s3:infra/taxonomy" {
		t.Errorf("Name() = %q", got)
	}
}

func TestWindow(t *testing.T) {
	rows := []taxonomy.Row{{Token: "a"}, {Token: "b"}, {Token: "c"}, {Token: "d"}}
	tests := []struct {
		name          string
		offset, limit int
		want          []string
	}{
		{"first page", 0, 2, []string{"a", "b"}},
		{"second page", 2, 2, []string{"c", "d"}},
		{"short tail", 3, 2, []string{"d"}},
		{"past end", 4, 2, nil},
		{"no limit", 1, 0, []string{"b", "c", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := window(rows, tt.offset, tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("window() = %v, want %v", got, tt.want)
			}
			for i, r := range got {
				if r.Token != tt.want[i] {
					t.Errorf("row %d = %q, want %q", i, r.Token, tt.want[i])
				}
			}
		})
	}
}
