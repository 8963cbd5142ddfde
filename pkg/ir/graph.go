package ir

import (
	"github.com/matzehuels/diagramir/pkg/errors"
)

// SchemaVersion is written to every graph. Bump on breaking schema changes.
const SchemaVersion = "1.0.0"

// Node is a component in the diagram.
//
// ID is never changed by enrichment. Locked and Pinned are user-set; the
// taxonomy stage leaves the kind and layer of a pinned node alone.
type Node struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Kind       Kind           `json:"kind"`
	Subkind    string         `json:"subkind,omitempty"`
	Layer      Layer          `json:"layer"`
	Domain     string         `json:"domain,omitempty"`
	TechStack  []string       `json:"tech_stack"`
	RiskTags   []string       `json:"risk_tags"`
	Deployment map[string]any `json:"deployment"`
	GroupIDs   []string       `json:"group_ids"`
	Metadata   map[string]any `json:"metadata"`
	Locked     bool           `json:"locked"`
	Pinned     bool           `json:"pinned"`
}

// HasRiskTag reports whether tag is already present on n.
func (n *Node) HasRiskTag(tag string) bool {
	for _, t := range n.RiskTags {
		if t == tag {
			return true
		}
	}
	return false
}

// Edge connects two nodes by id.
type Edge struct {
	ID                 string         `json:"id"`
	Source             string         `json:"source"`
	Target             string         `json:"target"`
	Label              string         `json:"label,omitempty"`
	Protocol           string         `json:"protocol,omitempty"`
	Transport          string         `json:"transport,omitempty"`
	Direction          Direction      `json:"direction"`
	DataClassification string         `json:"data_classification,omitempty"`
	Authn              string         `json:"authn,omitempty"`
	Encryption         string         `json:"encryption,omitempty"`
	Purpose            string         `json:"purpose,omitempty"`
	Metadata           map[string]any `json:"metadata"`
}

// Group is a logical cluster. MemberNodeIDs are non-owning references.
type Group struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Type          GroupType `json:"type"`
	RiskLevel     string    `json:"risk_level,omitempty"`
	Controls      []string  `json:"controls"`
	MemberNodeIDs []string  `json:"member_node_ids"`
}

// Annotation decorates a node, edge or group. Reserved for downstream analysis.
type Annotation struct {
	ID       string         `json:"id"`
	TargetID string         `json:"target_id"`
	Kind     AnnotationKind `json:"kind"`
	Payload  map[string]any `json:"payload"`
}

// Graph is the intermediate representation of one diagram.
//
// Graphs are immutable by convention: enrichment stages work on a Clone and
// return it, never touching their input.
type Graph struct {
	Nodes       []Node         `json:"nodes"`
	Edges       []Edge         `json:"edges"`
	Groups      []Group        `json:"groups"`
	Annotations []Annotation   `json:"annotations"`
	Version     string         `json:"version"`
	SourceDSL   string         `json:"source_dsl"`
	BuildMeta   map[string]any `json:"build_meta"`
}

// =============================================================================
// Construction
// =============================================================================

// NewGraph returns an empty graph stamped with SchemaVersion.
func NewGraph() *Graph {
	return &Graph{
		Nodes:       []Node{},
		Edges:       []Edge{},
		Groups:      []Group{},
		Annotations: []Annotation{},
		Version:     SchemaVersion,
		BuildMeta:   map[string]any{},
	}
}

// NewNode builds a node with the given kind and the layer derived from it.
// An unknown kind is rejected.
func NewNode(id, name string, kind Kind) (Node, error) {
	if err := errors.ValidateLabel(name); err != nil {
		return Node{}, err
	}
	if err := checkID("node", id); err != nil {
		return Node{}, err
	}
	if !kind.Valid() {
		return Node{}, errors.New(errors.ErrCodeInvalidKind, "node %s: unknown kind %q", id, kind)
	}
	return Node{
		ID:       id,
		Name:     name,
		Kind:     kind,
		Layer:    LayerForKind(kind),
		Metadata: map[string]any{},
	}, nil
}

// NewEdge builds a uni-directional edge.
func NewEdge(id, source, target, label string) (Edge, error) {
	if err := checkID("edge", id); err != nil {
		return Edge{}, err
	}
	if source == "" || target == "" {
		return Edge{}, errors.New(errors.ErrCodeInvalidInput, "edge %s: source and target are required", id)
	}
	if err := errors.ValidateLabel(label); err != nil {
		return Edge{}, err
	}
	return Edge{
		ID:        id,
		Source:    source,
		Target:    target,
		Label:     label,
		Direction: DirectionUni,
		Metadata:  map[string]any{},
	}, nil
}

// NewGroup builds a group of the given type.
func NewGroup(id, name string, typ GroupType, members []string) (Group, error) {
	if err := checkID("group", id); err != nil {
		return Group{}, err
	}
	if !typ.Valid() {
		return Group{}, errors.New(errors.ErrCodeInvalidEnum, "group %s: unknown type %q", id, typ)
	}
	return Group{
		ID:            id,
		Name:          name,
		Type:          typ,
		Controls:      []string{},
		MemberNodeIDs: append([]string{}, members...),
	}, nil
}

// checkID applies errors.ValidateID and names the offending element.
func checkID(what, id string) error {
	if err := errors.ValidateID(id); err != nil {
		return errors.New(errors.ErrCodeInvalidInput, "%s: %s", what, errors.UserMessage(err))
	}
	return nil
}

// =============================================================================
// Accessors
// =============================================================================

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.Nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.Edges) }

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks the structural invariants of g: unique non-empty ids,
// closed enums, and edges and groups that only reference existing nodes.
// The first violation is returned as an *errors.Error.
func (g *Graph) Validate() error {
	if g == nil {
		return errors.New(errors.ErrCodeInvalidGraph, "graph is nil")
	}

	nodes := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		if err := checkID("node", n.ID); err != nil {
			return err
		}
		if _, dup := nodes[n.ID]; dup {
			return errors.New(errors.ErrCodeDuplicateID, "duplicate node id %q", n.ID)
		}
		nodes[n.ID] = struct{}{}
		if !n.Kind.Valid() {
			return errors.New(errors.ErrCodeInvalidKind, "node %s: unknown kind %q", n.ID, n.Kind)
		}
		if !n.Layer.Valid() {
			return errors.New(errors.ErrCodeInvalidLayer, "node %s: unknown layer %q", n.ID, n.Layer)
		}
	}

	edges := make(map[string]struct{}, len(g.Edges))
	for _, e := range g.Edges {
		if err := checkID("edge "+e.Source+"->"+e.Target, e.ID); err != nil {
			return err
		}
		if _, dup := edges[e.ID]; dup {
			return errors.New(errors.ErrCodeDuplicateID, "duplicate edge id %q", e.ID)
		}
		edges[e.ID] = struct{}{}
		if _, ok := nodes[e.Source]; !ok {
			return errors.New(errors.ErrCodeDanglingRef, "edge %s: unknown source %q", e.ID, e.Source)
		}
		if _, ok := nodes[e.Target]; !ok {
			return errors.New(errors.ErrCodeDanglingRef, "edge %s: unknown target %q", e.ID, e.Target)
		}
		if !e.Direction.Valid() {
			return errors.New(errors.ErrCodeInvalidEnum, "edge %s: unknown direction %q", e.ID, e.Direction)
		}
	}

	groups := make(map[string]struct{}, len(g.Groups))
	for _, grp := range g.Groups {
		if err := checkID("group", grp.ID); err != nil {
			return err
		}
		if _, dup := groups[grp.ID]; dup {
			return errors.New(errors.ErrCodeDuplicateID, "duplicate group id %q", grp.ID)
		}
		groups[grp.ID] = struct{}{}
		if !grp.Type.Valid() {
			return errors.New(errors.ErrCodeInvalidEnum, "group %s: unknown type %q", grp.ID, grp.Type)
		}
		for _, m := range grp.MemberNodeIDs {
			if _, ok := nodes[m]; !ok {
				return errors.New(errors.ErrCodeDanglingRef, "group %s: unknown member %q", grp.ID, m)
			}
		}
	}

	for _, a := range g.Annotations {
		if !a.Kind.Valid() {
			return errors.New(errors.ErrCodeInvalidEnum, "annotation %s: unknown kind %q", a.ID, a.Kind)
		}
	}
	return nil
}

// =============================================================================
// Deep copy
// =============================================================================

// Clone returns a deep copy of g. Nested metadata maps and slices are copied
// so the clone can be modified without affecting g.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}
	out := &Graph{
		Version:   g.Version,
		SourceDSL: g.SourceDSL,
		BuildMeta: cloneMap(g.BuildMeta),
	}
	if g.Nodes != nil {
		out.Nodes = make([]Node, len(g.Nodes))
		for i, n := range g.Nodes {
			out.Nodes[i] = n.Clone()
		}
	}
	if g.Edges != nil {
		out.Edges = make([]Edge, len(g.Edges))
		for i, e := range g.Edges {
			e.Metadata = cloneMap(e.Metadata)
			out.Edges[i] = e
		}
	}
	if g.Groups != nil {
		out.Groups = make([]Group, len(g.Groups))
		for i, grp := range g.Groups {
			grp.Controls = cloneStrings(grp.Controls)
			grp.MemberNodeIDs = cloneStrings(grp.MemberNodeIDs)
			out.Groups[i] = grp
		}
	}
	if g.Annotations != nil {
		out.Annotations = make([]Annotation, len(g.Annotations))
		for i, a := range g.Annotations {
			a.Payload = cloneMap(a.Payload)
			out.Annotations[i] = a
		}
	}
	return out
}

// Clone returns a deep copy of n.
func (n Node) Clone() Node {
	n.TechStack = cloneStrings(n.TechStack)
	n.RiskTags = cloneStrings(n.RiskTags)
	n.GroupIDs = cloneStrings(n.GroupIDs)
	n.Deployment = cloneMap(n.Deployment)
	n.Metadata = cloneMap(n.Metadata)
	return n
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies JSON-like values (maps, slices and scalars).
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []string:
		return cloneStrings(t)
	case map[string]string:
		if t == nil {
			return t
		}
		out := make(map[string]string, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out
	default:
		return v
	}
}

// MergeMetadata returns a new map with base's entries followed by extra's.
// Keys in extra overwrite keys in base; base itself is not modified.
// Values are stored in the form encoding/json decodes them to, so merged
// metadata compares equal after a JSON round trip.
func MergeMetadata(base, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = JSONValue(v)
	}
	for k, v := range extra {
		out[k] = JSONValue(v)
	}
	return out
}

// JSONValue returns a deep copy of v using only JSON-native types: numbers
// become float64, string slices become []any and string maps become
// map[string]any. Other values are returned as is.
func JSONValue(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	case map[string]any:
		if t == nil {
			return t
		}
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = JSONValue(e)
		}
		return out
	case map[string]string:
		if t == nil {
			return map[string]any(nil)
		}
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = e
		}
		return out
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = JSONValue(e)
		}
		return out
	case []string:
		if t == nil {
			return []any(nil)
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	default:
		return v
	}
}
