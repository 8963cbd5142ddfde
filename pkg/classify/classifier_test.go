package classify

import (
	"context"
	"reflect"
	"regexp"
	"testing"

	"github.com/matzehuels/diagramir/pkg/ir"
	"github.com/matzehuels/diagramir/pkg/taxonomy"
)

type staticIndex struct{ ix *taxonomy.Index }

func (s staticIndex) Current() *taxonomy.Index { return s.ix }

func testRows() []taxonomy.Row {
	return []taxonomy.Row{
		{Token: "redis", DisplayName: "Redis", Kind: "Cache", IconifyID: "logos:redis"},
		{Token: "aws-elasticache", DisplayName: "ElastiCache", Aliases: taxonomy.Aliases{"redis"}, Kind: "Cache", Provider: "aws"},
		{Token: "lambda", DisplayName: "AWS Lambda", Kind: "Function", IconifyID: "aws:lambda", Provider: "aws", SVGURL: "https://icons.example/lambda.svg?"},
		{Token: "postgresql", DisplayName: "PostgreSQL", Aliases: taxonomy.Aliases{"postgres", "pg"}, Kind: "Database"},
		{Token: "customer-portal", DisplayName: "Customer Portal", Kind: "Client"},
		{Token: "rabbitmq", Aliases: taxonomy.Aliases{"mq", "amqp broker"}, Kind: "Queue"},
		{Token: "activemq", Aliases: taxonomy.Aliases{"mq"}, Kind: "Queue"},
		{Token: "kubernetes", DisplayName: "Kubernetes", Kind: "ContainerPlatform"},
	}
}

func newTestClassifier(t *testing.T, opts ...Option) *Classifier {
	t.Helper()
	rows := testRows()
	ix := taxonomy.NewIndex(&taxonomy.Snapshot{Rows: rows, Checksum: taxonomy.Checksum(rows)})
	c, err := New(staticIndex{ix}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestClassifyCascade(t *testing.T) {
	c := newTestClassifier(t)
	ctx := context.Background()

	tests := []struct {
		label     string
		wantKind  ir.Kind
		wantTier  Tier
		wantToken string
	}{
		{"Redis", ir.KindCache, TierPrimary, "redis"},
		{"AWS Lambda Function", ir.KindFunction, TierPrimary, "lambda"},
		{"ElastiCache", ir.KindCache, TierDisplay, "aws-elasticache"},
		{"Postgres", ir.KindDatabase, TierAlias, "postgresql"},
		{"MQ Broker", ir.KindQueue, TierAlias, "rabbitmq"},
		{"Kubernetes Cluster", ir.KindContainerPlatform, TierPrimary, "kubernetes"},
		{"broker", ir.KindQueue, TierWordVote, "rabbitmq"},
		{"Kubernetis", ir.KindContainerPlatform, TierFuzzy, "kubernetes"},
		{"Kafka Cluster", ir.KindQueue, TierRule, ""},
		{"customer database", ir.KindDatabase, TierDefault, ""},
		{"postgres db", ir.KindDatabase, TierAlias, "postgresql"},
		{"payments microservice", ir.KindMicroservice, TierDefault, ""},
		{"Something Unknown", ir.KindService, TierDefault, ""},
		{"aws-lambda", ir.KindFunction, TierCloud, "aws-lambda"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got := c.Classify(ctx, tt.label)
			if got.Kind != tt.wantKind || got.Tier != tt.wantTier || got.Token != tt.wantToken {
				t.Errorf("Classify(%q) = {%s %s %q}, want {%s %s %q}",
					tt.label, got.Kind, got.Tier, got.Token, tt.wantKind, tt.wantTier, tt.wantToken)
			}
		})
	}
}

func TestClassifyMetadata(t *testing.T) {
	c := newTestClassifier(t)
	got := c.Classify(context.Background(), "AWS Lambda Function")

	want := map[string]any{
		MetaIconifyID:  "aws:lambda",
		MetaSVGURL:     "https://icons.example/lambda.svg",
		MetaProvider:   "aws",
		MetaLayerIndex: float64(ir.LayerIndexCompute),
		MetaToken:      "lambda",
	}
	if !reflect.DeepEqual(got.Metadata, want) {
		t.Errorf("Metadata = %v, want %v", got.Metadata, want)
	}

	def := c.Classify(context.Background(), "Something Unknown")
	if len(def.Metadata) != 0 || def.Subkind != "" {
		t.Errorf("default result = %+v, want no subkind and empty metadata", def)
	}
}

func TestClassifyCanonicalTokenBeatsAlias(t *testing.T) {
	c := newTestClassifier(t)
	got := c.Classify(context.Background(), "redis")
	if got.Token != "redis" {
		t.Errorf("Token = %q, want redis (aws-elasticache only aliases it)", got.Token)
	}
}

func TestClassifyRequiredKindRejectsCandidates(t *testing.T) {
	c := newTestClassifier(t)
	// "customer" votes for the Client row, which the database context rejects.
	got := c.Classify(context.Background(), "Customer Database")
	if got.Kind != ir.KindDatabase {
		t.Errorf("Kind = %s, want Database", got.Kind)
	}
	if got.Token == "customer-portal" {
		t.Error("Client row should have been rejected")
	}
}

func TestClassifyDeterministic(t *testing.T) {
	labels := []string{"Redis", "MQ Broker", "Kubernetis", "Kafka Cluster", "orders db", "aws-s3"}
	first := newTestClassifier(t)
	second := newTestClassifier(t)
	for _, label := range labels {
		a := first.Classify(context.Background(), label)
		b := second.Classify(context.Background(), label)
		c := first.Classify(context.Background(), label)
		if !reflect.DeepEqual(a, b) || !reflect.DeepEqual(a, c) {
			t.Errorf("Classify(%q) not deterministic: %+v / %+v / %+v", label, a, b, c)
		}
	}
}

func TestClassifyResultIsolation(t *testing.T) {
	c := newTestClassifier(t)
	got := c.Classify(context.Background(), "Redis")
	got.Metadata[MetaIconifyID] = "tampered"

	again := c.Classify(context.Background(), "Redis")
	if again.Metadata[MetaIconifyID] != "logos:redis" {
		t.Errorf("memoized result was modified: %v", again.Metadata)
	}
}

func TestClassifyNodeProviderHint(t *testing.T) {
	c := newTestClassifier(t)
	n, err := ir.NewNode("fn", "Functions", ir.KindService)
	if err != nil {
		t.Fatal(err)
	}
	n.Metadata[MetaProvider] = "azure"

	got := c.ClassifyNode(context.Background(), n)
	if got.Tier != TierCloud || got.Kind != ir.KindFunction {
		t.Fatalf("ClassifyNode = %+v, want cloud Function", got)
	}
	if got.Metadata[MetaIconifyID] != "custom:azure-functions" {
		t.Errorf("iconifyId = %v", got.Metadata[MetaIconifyID])
	}
}

func TestClassifyMemoInvalidatedOnReload(t *testing.T) {
	ctx := context.Background()
	src := taxonomy.NewMemorySource(testRows())
	store := taxonomy.NewStore(src, taxonomy.WithAutoRefresh(false), taxonomy.WithRetry(1, 0))
	store.Load(ctx, false)

	c, err := New(store)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Classify(ctx, "Inventory"); got.Kind != ir.KindService {
		t.Fatalf("Kind = %s, want Service before the row exists", got.Kind)
	}
	if c.memo.Len() == 0 {
		t.Fatal("result should be memoized")
	}

	src.Set(append(testRows(), taxonomy.Row{Token: "inventory", Kind: "Database", UpdatedAt: "2024-05-01"}))
	store.Load(ctx, true)
	if c.memo.Len() != 0 {
		t.Error("memo should be purged when the store installs a new index")
	}
	if got := c.Classify(ctx, "Inventory"); got.Kind != ir.KindDatabase || got.Tier != TierPrimary {
		t.Errorf("Classify after reload = %+v, want primary Database", got)
	}
}

func TestClassifyEmptyTaxonomy(t *testing.T) {
	c, err := New(staticIndex{taxonomy.NewIndex(nil)})
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Classify(context.Background(), "Redis"); got.Kind != ir.KindCache || got.Tier != TierRule {
		t.Errorf("Classify = %+v, want rule Cache", got)
	}
}

func TestBestAlias(t *testing.T) {
	rows := []taxonomy.Row{{Token: "rabbit-mq"}, {Token: "active-mq"}}
	if got := bestAlias("active mq", rows); got.Token != "active-mq" {
		t.Errorf("bestAlias = %q, want active-mq", got.Token)
	}
	if got := bestAlias("broker", rows); got.Token != "rabbit-mq" {
		t.Errorf("bestAlias tie = %q, want first row", got.Token)
	}
}

func TestFromRowUnknownKind(t *testing.T) {
	got := fromRow(taxonomy.Row{Token: "x", Kind: "DATA"}, TierPrimary)
	if got.Kind != ir.DefaultKind {
		t.Errorf("Kind = %s, want default", got.Kind)
	}
	if got := fromRow(taxonomy.Row{Token: "y", Kind: "DATABASE"}, TierPrimary); got.Kind != ir.KindDatabase {
		t.Errorf("Kind = %s, want Database (case-insensitive)", got.Kind)
	}
}

func TestClassifyNodeIconifyFallback(t *testing.T) {
	c := newTestClassifier(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		label    string
		meta     map[string]any
		wantKind ir.Kind
		wantTier Tier
	}{
		{"camel key", "Hot Store", map[string]any{MetaIconifyID: "LOGOS:REDIS"}, ir.KindCache, TierIconify},
		{"snake key", "Hot Store", map[string]any{MetaIconifyIDSnake: "aws:lambda"}, ir.KindFunction, TierIconify},
		{"label wins", "Postgres", map[string]any{MetaIconifyID: "logos:redis"}, ir.KindDatabase, TierAlias},
		{"unknown icon", "Hot Store", map[string]any{MetaIconifyID: "mdi:cube-outline"}, ir.KindService, TierDefault},
		{"icon before rules", "Kafka Cluster", map[string]any{MetaIconifyID: "logos:redis"}, ir.KindCache, TierIconify},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := ir.NewNode("n1", tt.label, ir.KindService)
			if err != nil {
				t.Fatal(err)
			}
			n.Metadata = tt.meta
			got := c.ClassifyNode(ctx, n)
			if got.Kind != tt.wantKind || got.Tier != tt.wantTier {
				t.Errorf("ClassifyNode(%q, %v) = {%s %s}, want {%s %s}",
					tt.label, tt.meta, got.Kind, got.Tier, tt.wantKind, tt.wantTier)
			}
		})
	}

	// The icon hint is part of the memo key.
	plain := c.Classify(ctx, "Hot Store")
	if plain.Tier != TierDefault {
		t.Errorf("Classify without hint = %s, want default", plain.Tier)
	}
}

func TestClassifyStrippedSlugAfterRejectedPrimary(t *testing.T) {
	rows := []taxonomy.Row{
		{Token: "aws-timestream-db", Kind: "Analytics"},
		{Token: "timestream-db", Kind: "Database"},
	}
	ix := taxonomy.NewIndex(&taxonomy.Snapshot{Rows: rows, Checksum: taxonomy.Checksum(rows)})
	c, err := New(staticIndex{ix})
	if err != nil {
		t.Fatal(err)
	}

	got := c.Classify(context.Background(), "AWS Timestream DB")
	if got.Kind != ir.KindDatabase || got.Tier != TierPrimary || got.Token != "timestream-db" {
		t.Errorf("Classify = {%s %s %q}, want {Database primary timestream-db}", got.Kind, got.Tier, got.Token)
	}
}

func TestFingerprint(t *testing.T) {
	base := newTestClassifier(t).Fingerprint()
	if base == "" || base != newTestClassifier(t).Fingerprint() {
		t.Fatalf("fingerprint should be stable and non-empty, got %q", base)
	}
	extra := Rule{Pattern: regexp.MustCompile(`(?i)splunk`), Kind: ir.KindLogging}
	for name, c := range map[string]*Classifier{
		"rules":     newTestClassifier(t, WithRules(extra)),
		"threshold": newTestClassifier(t, WithFuzzyThreshold(70)),
	} {
		if c.Fingerprint() == base {
			t.Errorf("%s change kept fingerprint %q", name, base)
		}
	}
	if newTestClassifier(t, WithCacheSize(8)).Fingerprint() != base {
		t.Error("cache size should not affect the fingerprint")
	}
	var nilClassifier *Classifier
	if nilClassifier.Fingerprint() != "" {
		t.Error("nil classifier should have an empty fingerprint")
	}
}
