package ir

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/diagramir/pkg/errors"
)

// Diagram is the syntactic output of the upstream DSL parser: untyped nodes
// and edges with free-text labels.
type Diagram struct {
	Nodes []DiagramNode `json:"nodes"`
	Edges []DiagramEdge `json:"edges"`
}

// DiagramNode is one parsed node.
type DiagramNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// DiagramEdge is one parsed edge. ID may be empty.
type DiagramEdge struct {
	ID     string `json:"id,omitempty"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// ReadDiagram decodes a parsed diagram from JSON.
func ReadDiagram(r io.Reader) (*Diagram, error) {
	var d Diagram
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode diagram")
	}
	return &d, nil
}

// Builder converts parsed diagrams into minimal, unclassified graphs.
// Every node becomes a Service on the service layer; no groups or
// annotations are produced.
type Builder struct {
	// Now stamps build_meta.built_at. Defaults to time.Now.
	Now func() time.Time
	// NewID generates ids for edges the parser left unnamed. Defaults to a uuid.
	NewID func() string
}

// NewBuilder returns a Builder with default clock and id generator.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build converts d into a graph. Duplicate or empty node ids and edges that
// reference unknown nodes are rejected.
func (b *Builder) Build(d *Diagram, sourceDSL string) (*Graph, error) {
	if d == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "diagram is nil")
	}

	g := NewGraph()
	g.SourceDSL = sourceDSL
	g.BuildMeta["builder"] = "ir-builder"
	g.BuildMeta["built_at"] = b.now().UTC().Format(time.RFC3339)

	for _, dn := range d.Nodes {
		n, err := NewNode(dn.ID, dn.Label, DefaultKind)
		if err != nil {
			return nil, err
		}
		n.Layer = DefaultLayer
		n.TechStack = []string{}
		n.RiskTags = []string{}
		n.GroupIDs = []string{}
		g.Nodes = append(g.Nodes, n)
	}

	for i, de := range d.Edges {
		id := de.ID
		if id == "" {
			id = b.newID()
		}
		e, err := NewEdge(id, de.Source, de.Target, de.Label)
		if err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
		g.Edges = append(g.Edges, e)
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b *Builder) newID() string {
	if b.NewID != nil {
		return b.NewID()
	}
	return "e-" + uuid.NewString()
}
