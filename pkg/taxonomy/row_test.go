package taxonomy

import (
	"reflect"
	"testing"

	"github.com/matzehuels/diagramir/pkg/errors"
)

func TestDecodeSnapshotBareArray(t *testing.T) {
	data := []byte(`[
		{"token": "redis", "aliases": "redis cache, elasticache", "kind": "Cache"},
		{"token": "", "kind": "Cache"},
		{"token": "postgresql", "aliases": ["postgres"], "kind": "Database"},
		{"token": "kafka", "aliases": null}
	]`)
	snap, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if snap.Len() != 3 {
		t.Fatalf("rows = %d, want 3 (token-less dropped)", snap.Len())
	}
	if want := (Aliases{"redis cache", "elasticache"}); !reflect.DeepEqual(snap.Rows[0].Aliases, want) {
		t.Errorf("aliases = %v, want %v", snap.Rows[0].Aliases, want)
	}
	if snap.Rows[2].Aliases != nil {
		t.Errorf("null aliases = %v, want nil", snap.Rows[2].Aliases)
	}
	if want := []string{"aliases", "kind", "token"}; !reflect.DeepEqual(snap.Fields, want) {
		t.Errorf("fields = %v, want %v", snap.Fields, want)
	}
	if snap.Checksum != "" {
		t.Errorf("checksum = %q, want empty for bare array", snap.Checksum)
	}
}

func TestDecodeSnapshotEnvelope(t *testing.T) {
	data := []byte(`{"rows": [{"token": "redis", "svg_url": "https://x/redis.svg"}], "checksum": "abc"}`)
	snap, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if snap.Checksum != "abc" {
		t.Errorf("checksum = %q, want abc", snap.Checksum)
	}
	if !snap.HasField(FieldSVGURL) {
		t.Errorf("fields = %v, want svg_url", snap.Fields)
	}
}

func TestDecodeSnapshotErrors(t *testing.T) {
	for _, data := range []string{"", "   ", "{bad", `[{"token": 3}]`} {
		if _, err := DecodeSnapshot([]byte(data)); !errors.Is(err, errors.ErrCodeInvalidInput) {
			t.Errorf("DecodeSnapshot(%q) error = %v, want INVALID_INPUT", data, err)
		}
	}
}

func TestMissingFields(t *testing.T) {
	prev := &Snapshot{Fields: []string{"kind", "svg_url", "token"}}
	next := &Snapshot{Fields: []string{"kind", "token"}}
	if got := next.MissingFields(prev, []string{FieldSVGURL}); !reflect.DeepEqual(got, []string{"svg_url"}) {
		t.Errorf("MissingFields = %v, want [svg_url]", got)
	}
	if got := prev.MissingFields(next, []string{FieldSVGURL}); got != nil {
		t.Errorf("MissingFields(gained column) = %v, want nil", got)
	}
	var none *Snapshot
	if got := next.MissingFields(none, []string{FieldSVGURL}); got != nil {
		t.Errorf("MissingFields(nil prev) = %v, want nil", got)
	}
}

func TestFieldsOf(t *testing.T) {
	rows := []Row{{Token: "redis", SVGURL: "x"}, {Token: "pg", Aliases: Aliases{"postgres"}}}
	if got, want := FieldsOf(rows, nil), []string{"aliases", "svg_url", "token"}; !reflect.DeepEqual(got, want) {
		t.Errorf("FieldsOf = %v, want %v", got, want)
	}
	if got, want := FieldsOf(nil, []string{"token", "kind"}), []string{"kind", "token"}; !reflect.DeepEqual(got, want) {
		t.Errorf("FieldsOf(selected) = %v, want %v", got, want)
	}
}
