package enrich

import (
	"context"
	"reflect"
	"testing"

	"github.com/matzehuels/diagramir/pkg/classify"
	"github.com/matzehuels/diagramir/pkg/ir"
	"github.com/matzehuels/diagramir/pkg/taxonomy"
)

type staticIndex struct{ ix *taxonomy.Index }

func (s staticIndex) Current() *taxonomy.Index { return s.ix }

func testRows() []taxonomy.Row {
	return []taxonomy.Row{
		{Token: "lambda", DisplayName: "AWS Lambda", Kind: "Function", IconifyID: "aws:lambda", Provider: "aws"},
		{Token: "postgresql", DisplayName: "PostgreSQL", Aliases: taxonomy.Aliases{"postgres"}, Kind: "Database"},
		{Token: "mysql", DisplayName: "MySQL", Kind: "Database"},
		{Token: "redis", DisplayName: "Redis", Kind: "Cache", IconifyID: "logos:redis"},
		{Token: "keycloak", DisplayName: "Keycloak", Kind: "Auth"},
	}
}

func newTestClassifier(t *testing.T) *classify.Classifier {
	t.Helper()
	rows := testRows()
	ix := taxonomy.NewIndex(&taxonomy.Snapshot{Rows: rows, Checksum: taxonomy.Checksum(rows)})
	c, err := classify.New(staticIndex{ix})
	if err != nil {
		t.Fatalf("classify.New: %v", err)
	}
	return c
}

// graphOf builds a valid graph of Service nodes named by labels, with ids
// n1, n2, ...
func graphOf(t *testing.T, labels ...string) *ir.Graph {
	t.Helper()
	g := ir.NewGraph()
	for i, label := range labels {
		n, err := ir.NewNode("n"+string(rune('1'+i)), label, ir.KindService)
		if err != nil {
			t.Fatalf("NewNode(%q): %v", label, err)
		}
		g.Nodes = append(g.Nodes, n)
	}
	return g
}

func addEdge(t *testing.T, g *ir.Graph, id, src, dst, label string) {
	t.Helper()
	e, err := ir.NewEdge(id, src, dst, label)
	if err != nil {
		t.Fatalf("NewEdge: %v", err)
	}
	g.Edges = append(g.Edges, e)
}

func TestNormalizeLabels(t *testing.T) {
	g := graphOf(t, "  Auth \t  Service ", "Billing")
	before := g.Clone()

	out, err := NormalizeLabels{}.Apply(context.Background(), g)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := out.Nodes[0].Name; got != "Auth Service" {
		t.Errorf("name = %q, want %q", got, "Auth Service")
	}
	if got := out.Nodes[0].Metadata[MetaOrigLabel]; got != "  Auth \t  Service " {
		t.Errorf("orig_label = %v", got)
	}
	if _, ok := out.Nodes[1].Metadata[MetaOrigLabel]; ok {
		t.Error("unchanged label should not get orig_label")
	}
	if !reflect.DeepEqual(g, before) {
		t.Error("input graph was modified")
	}
}

func TestAssignTaxonomyLambda(t *testing.T) {
	g := graphOf(t, "AWS Lambda Function")
	out, err := AssignTaxonomy{Classifier: newTestClassifier(t)}.Apply(context.Background(), g)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	n := out.Nodes[0]
	if n.Kind != ir.KindFunction {
		t.Errorf("kind = %s, want Function", n.Kind)
	}
	if n.Layer != ir.LayerForKind(ir.KindFunction) {
		t.Errorf("layer = %s", n.Layer)
	}
	if got := n.Metadata[classify.MetaIconifyID]; got != "aws:lambda" {
		t.Errorf("iconifyId = %v", got)
	}
	if got := n.Metadata[classify.MetaLayerIndex]; got != classify.LayerIndexMeta(ir.KindFunction) {
		t.Errorf("layerIndex = %v, want %v", got, classify.LayerIndexMeta(ir.KindFunction))
	}
	if g.Nodes[0].Kind != ir.KindService {
		t.Error("input node was modified")
	}
}

func TestAssignTaxonomyKeepsMetadata(t *testing.T) {
	g := graphOf(t, "Redis")
	g.Nodes[0].Metadata["owner"] = "team-a"

	out, err := AssignTaxonomy{Classifier: newTestClassifier(t)}.Apply(context.Background(), g)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	meta := out.Nodes[0].Metadata
	if meta["owner"] != "team-a" {
		t.Errorf("owner lost: %v", meta)
	}
	if meta[classify.MetaIconifyID] != "logos:redis" {
		t.Errorf("iconifyId = %v", meta[classify.MetaIconifyID])
	}
}

func TestAssignTaxonomyPinned(t *testing.T) {
	g := graphOf(t, "Redis")
	g.Nodes[0].Kind = ir.KindDatabase
	g.Nodes[0].Layer = ir.LayerData
	g.Nodes[0].Pinned = true

	out, err := AssignTaxonomy{Classifier: newTestClassifier(t)}.Apply(context.Background(), g)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	n := out.Nodes[0]
	if n.Kind != ir.KindDatabase || n.Layer != ir.LayerData {
		t.Errorf("pinned node changed to %s/%s", n.Kind, n.Layer)
	}
	if n.Metadata[classify.MetaIconifyID] != "logos:redis" {
		t.Error("pinned node should still receive metadata")
	}
	if got := n.Metadata[classify.MetaLayerIndex]; got != classify.LayerIndexMeta(ir.KindDatabase) {
		t.Errorf("layerIndex = %v, want the pinned kind's index", got)
	}
}

func TestAssignTaxonomyPreserveExistingKind(t *testing.T) {
	g := graphOf(t, "Redis", "PostgreSQL")
	g.Nodes[0].Kind = ir.KindQueue

	tests := []struct {
		preserve bool
		want     ir.Kind
	}{
		{false, ir.KindCache},
		{true, ir.KindQueue},
	}
	for _, tt := range tests {
		s := AssignTaxonomy{Classifier: newTestClassifier(t), PreserveExistingKind: tt.preserve}
		out, err := s.Apply(context.Background(), g)
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if got := out.Nodes[0].Kind; got != tt.want {
			t.Errorf("preserve=%v: kind = %s, want %s", tt.preserve, got, tt.want)
		}
		if got := out.Nodes[1].Kind; got != ir.KindDatabase {
			t.Errorf("preserve=%v: default-kind node = %s, want Database", tt.preserve, got)
		}
	}
}

func TestAssignTaxonomyCloudLayerIndex(t *testing.T) {
	g := graphOf(t, "aws-codebuild")
	out, err := AssignTaxonomy{Classifier: newTestClassifier(t)}.Apply(context.Background(), g)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	n := out.Nodes[0]
	if n.Kind != ir.KindJob {
		t.Errorf("kind = %s, want Job", n.Kind)
	}
	if got := n.Metadata[classify.MetaLayerIndex]; got != float64(ir.LayerIndexDevOps) {
		t.Errorf("layerIndex = %v, want %d", got, ir.LayerIndexDevOps)
	}
	if n.Metadata[classify.MetaCloud] != true {
		t.Error("cloud flag missing")
	}
}

func TestAssignTaxonomyNoClassifier(t *testing.T) {
	if _, err := (AssignTaxonomy{}).Apply(context.Background(), graphOf(t, "x")); err == nil {
		t.Fatal("expected error without a classifier")
	}
}

type countingLoader struct{ calls int }

func (l *countingLoader) Load(context.Context, bool) *taxonomy.Index {
	l.calls++
	return nil
}

func TestAssignTaxonomyLoadsOnce(t *testing.T) {
	l := &countingLoader{}
	s := AssignTaxonomy{Classifier: newTestClassifier(t), Taxonomy: l}
	if _, err := s.Apply(context.Background(), graphOf(t, "a", "b", "c")); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if l.calls != 1 {
		t.Errorf("Load calls = %d, want 1", l.calls)
	}
}

func TestDomainOf(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Login Service", "auth"},
		{"OAuth Provider", "auth"},
		{"Payment Gateway", "payment"},
		{"Billing Worker", "payment"},
		{"User Profile API", "user"},
		{"Order Service", "order"},
		{"Inventory DB", "inventory"},
		{"Product Catalog", "inventory"},
		{"Analytics Pipeline", "analytics"},
		{"User Payments", "payment"},
		{"Redis", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DomainOf(tt.name); got != tt.want {
				t.Errorf("DomainOf(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestInferDomainKeepsExisting(t *testing.T) {
	g := graphOf(t, "Payment Service", "Order Service")
	g.Nodes[0].Domain = "finance"

	out, err := InferDomain{}.Apply(context.Background(), g)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Nodes[0].Domain != "finance" {
		t.Errorf("existing domain overwritten: %q", out.Nodes[0].Domain)
	}
	if out.Nodes[1].Domain != "order" {
		t.Errorf("domain = %q, want order", out.Nodes[1].Domain)
	}
}

func TestTagRisksIdempotent(t *testing.T) {
	g := graphOf(t, "db", "queue", "api")
	g.Nodes[0].Kind = ir.KindDatabase
	g.Nodes[1].Kind = ir.KindQueue

	once, err := TagRisks{}.Apply(context.Background(), g)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	twice, err := TagRisks{}.Apply(context.Background(), once)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	want := [][]string{{ir.RiskHigh}, {ir.RiskMedium}, nil}
	for i, n := range twice.Nodes {
		if !reflect.DeepEqual(n.RiskTags, want[i]) {
			t.Errorf("node %s risk tags = %v, want %v", n.ID, n.RiskTags, want[i])
		}
	}
}

func TestRiskTier(t *testing.T) {
	tests := []struct {
		kind ir.Kind
		want string
	}{
		{ir.KindAuth, ir.RiskHigh},
		{ir.KindSecretStore, ir.RiskHigh},
		{ir.KindExternalService, ir.RiskHigh},
		{ir.KindCache, ir.RiskMedium},
		{ir.KindVectorStore, ir.RiskMedium},
		{ir.KindService, ""},
		{ir.KindFunction, ""},
	}
	for _, tt := range tests {
		if got := RiskTier(tt.kind); got != tt.want {
			t.Errorf("RiskTier(%s) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestClassifyEdges(t *testing.T) {
	g := graphOf(t, "a", "b")
	addEdge(t, g, "e1", "n1", "n2", "HTTPS login")
	addEdge(t, g, "e2", "n1", "n2", "gRPC events")
	addEdge(t, g, "e3", "n1", "n2", "SQL data")
	addEdge(t, g, "e4", "n1", "n2", "calls")
	addEdge(t, g, "e5", "n1", "n2", "")
	addEdge(t, g, "e6", "n1", "n2", "emits metrics over udp")
	g.Edges[3].Protocol = "amqp"
	g.Edges[4].Purpose = "event"

	out, err := ClassifyEdges{}.Apply(context.Background(), g)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	want := []struct{ protocol, purpose string }{
		{"https", "auth"},
		{"grpc", "event"},
		{"sql", "data"},
		{"amqp", ""},
		{"", "event"},
		{"udp", "metrics"},
	}
	for i, e := range out.Edges {
		if e.Protocol != want[i].protocol || e.Purpose != want[i].purpose {
			t.Errorf("edge %s = (%q, %q), want (%q, %q)", e.ID, e.Protocol, e.Purpose, want[i].protocol, want[i].purpose)
		}
	}
	if g.Edges[0].Protocol != "" {
		t.Error("input edge was modified")
	}
}
