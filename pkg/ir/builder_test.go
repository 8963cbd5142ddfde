package ir

import (
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/diagramir/pkg/errors"
)

func fixedBuilder() *Builder {
	n := 0
	return &Builder{
		Now: func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) },
		NewID: func() string {
			n++
			return "gen-" + string(rune('0'+n))
		},
	}
}

func TestBuild(t *testing.T) {
	d := &Diagram{
		Nodes: []DiagramNode{
			{ID: "web", Label: "Web App"},
			{ID: "fn", Label: "AWS Lambda Function"},
			{ID: "db", Label: "Postgres"},
		},
		Edges: []DiagramEdge{
			{ID: "e1", Source: "web", Target: "fn", Label: "HTTPS"},
			{Source: "fn", Target: "db", Label: "SQL"},
		},
	}

	g, err := fixedBuilder().Build(d, "web -> fn")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(g.Nodes) != 3 || len(g.Edges) != 2 {
		t.Fatalf("got %d nodes, %d edges", len(g.Nodes), len(g.Edges))
	}
	for _, n := range g.Nodes {
		if n.Kind != KindService || n.Layer != LayerService {
			t.Errorf("node %s = %s/%s, want Service/service", n.ID, n.Kind, n.Layer)
		}
	}
	if g.Nodes[1].Name != "AWS Lambda Function" {
		t.Errorf("name = %q", g.Nodes[1].Name)
	}
	if g.Edges[1].ID != "gen-1" {
		t.Errorf("generated edge id = %q, want gen-1", g.Edges[1].ID)
	}
	if g.Edges[0].Direction != DirectionUni {
		t.Errorf("direction = %q, want uni", g.Edges[0].Direction)
	}
	if len(g.Groups) != 0 || len(g.Annotations) != 0 {
		t.Error("builder should not produce groups or annotations")
	}
	if g.SourceDSL != "web -> fn" {
		t.Errorf("source_dsl = %q", g.SourceDSL)
	}
	if g.BuildMeta["built_at"] != "2025-01-02T03:04:05Z" {
		t.Errorf("built_at = %v", g.BuildMeta["built_at"])
	}
	if g.Version != SchemaVersion {
		t.Errorf("version = %q", g.Version)
	}
}

func TestBuildDefaultEdgeID(t *testing.T) {
	d := &Diagram{
		Nodes: []DiagramNode{{ID: "a", Label: "A"}, {ID: "b", Label: "B"}},
		Edges: []DiagramEdge{{Source: "a", Target: "b"}},
	}
	g, err := NewBuilder().Build(d, "")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.HasPrefix(g.Edges[0].ID, "e-") || len(g.Edges[0].ID) != len("e-")+36 {
		t.Errorf("edge id = %q, want e-<uuid>", g.Edges[0].ID)
	}
}

func TestBuildRejects(t *testing.T) {
	tests := []struct {
		name string
		d    *Diagram
		code errors.Code
	}{
		{"nil diagram", nil, errors.ErrCodeInvalidInput},
		{"empty id", &Diagram{Nodes: []DiagramNode{{Label: "A"}}}, errors.ErrCodeInvalidInput},
		{"duplicate id", &Diagram{Nodes: []DiagramNode{{ID: "a"}, {ID: "a"}}}, errors.ErrCodeDuplicateID},
		{"dangling edge", &Diagram{
			Nodes: []DiagramNode{{ID: "a"}},
			Edges: []DiagramEdge{{ID: "e", Source: "a", Target: "b"}},
		}, errors.ErrCodeDanglingRef},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fixedBuilder().Build(tt.d, "")
			if !errors.Is(err, tt.code) {
				t.Errorf("Build() error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestReadDiagram(t *testing.T) {
	d, err := ReadDiagram(strings.NewReader(`{"nodes":[{"id":"a","label":"A"}],"edges":[]}`))
	if err != nil {
		t.Fatalf("ReadDiagram: %v", err)
	}
	if len(d.Nodes) != 1 || d.Nodes[0].Label != "A" {
		t.Errorf("diagram = %+v", d)
	}
	if _, err := ReadDiagram(strings.NewReader(`nope`)); err == nil {
		t.Error("ReadDiagram should fail on malformed input")
	}
}
