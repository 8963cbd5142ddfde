package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/diagramir/pkg/errors"
)

// =============================================================================
// Graph Serialization API
// =============================================================================

// MarshalGraph converts a graph to indented JSON bytes.
func MarshalGraph(g *Graph) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeGraphTo(g, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalGraph decodes and validates a graph from JSON bytes.
func UnmarshalGraph(data []byte) (*Graph, error) {
	return readGraphFrom(bytes.NewReader(data))
}

// WriteGraphFile writes a graph to a JSON file.
// The file is created with 0644 permissions.
func WriteGraphFile(g *Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return writeGraphTo(g, f)
}

// WriteGraph writes a graph as JSON to an io.Writer.
func WriteGraph(g *Graph, w io.Writer) error {
	return writeGraphTo(g, w)
}

// ReadGraphFile reads a JSON file and returns the decoded graph.
// Returns validation errors for unknown enums or dangling references.
func ReadGraphFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return readGraphFrom(f)
}

// ReadGraph decodes a JSON graph from an io.Reader.
func ReadGraph(r io.Reader) (*Graph, error) {
	return readGraphFrom(r)
}

// =============================================================================
// Internal Implementation
// =============================================================================

func writeGraphTo(g *Graph, w io.Writer) error {
	if g == nil {
		return errors.New(errors.ErrCodeInvalidGraph, "graph is nil")
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(g); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

func readGraphFrom(r io.Reader) (*Graph, error) {
	var g Graph
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		if errors.GetCode(err) != "" {
			return nil, err
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidGraph, err, "decode graph")
	}
	g.applyDefaults()
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// applyDefaults fills fields an upstream producer may omit. Present but
// invalid values were already rejected by the enum decoders.
func (g *Graph) applyDefaults() {
	if g.Nodes == nil {
		g.Nodes = []Node{}
	}
	if g.Edges == nil {
		g.Edges = []Edge{}
	}
	if g.Groups == nil {
		g.Groups = []Group{}
	}
	if g.Annotations == nil {
		g.Annotations = []Annotation{}
	}
	if g.Version == "" {
		g.Version = SchemaVersion
	}
	if g.BuildMeta == nil {
		g.BuildMeta = map[string]any{}
	}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.Kind == "" {
			n.Kind = DefaultKind
		}
		if n.Layer == "" {
			n.Layer = LayerForKind(n.Kind)
		}
	}
	for i := range g.Edges {
		if g.Edges[i].Direction == "" {
			g.Edges[i].Direction = DirectionUni
		}
	}
}
