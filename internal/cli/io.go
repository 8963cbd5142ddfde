package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/diagramir/pkg/ir"
)

// stdout receives command results such as graph JSON.
var stdout io.Writer = os.Stdout

// openInput returns the named file, or stdin for "" and "-".
func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

// readGraphInput reads a graph, or a diagram built into a graph when
// asDiagram is set.
func readGraphInput(path string, asDiagram bool, dsl string) (*ir.Graph, error) {
	r, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if !asDiagram {
		return ir.ReadGraph(r)
	}
	d, err := ir.ReadDiagram(r)
	if err != nil {
		return nil, err
	}
	return ir.NewBuilder().Build(d, dsl)
}

// writeGraphOutput writes g to path, or stdout for "" and "-".
func writeGraphOutput(g *ir.Graph, path string) error {
	if path == "" || path == "-" {
		return ir.WriteGraph(g, stdout)
	}
	if err := ir.WriteGraphFile(g, path); err != nil {
		return err
	}
	printFile(path)
	return nil
}

// readDSL returns the contents of path, or "" when path is empty.
func readDSL(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read dsl: %w", err)
	}
	return string(data), nil
}
