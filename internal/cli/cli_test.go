package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/diagramir/pkg/classify"
	"github.com/matzehuels/diagramir/pkg/ir"
	"github.com/matzehuels/diagramir/pkg/taxonomy"
)

const taxonomyJSON = `{"rows": [
	{"token": "postgresql", "display_name": "PostgreSQL", "aliases": ["postgres"], "kind": "Database"},
	{"token": "redis", "display_name": "Redis", "kind": "Cache", "iconify_id": "logos:redis"},
	{"token": "kafka", "display_name": "Apache Kafka", "kind": "Queue"}
]}`

const diagramJSON = `{
	"nodes": [
		{"id": "api", "label": "Checkout API"},
		{"id": "db1", "label": "Postgres"},
		{"id": "db2", "label": "PostgreSQL replica"},
		{"id": "bus", "label": "Kafka"}
	],
	"edges": [
		{"id": "e1", "source": "api", "target": "db1", "label": "SQL"},
		{"source": "api", "target": "bus", "label": "publish events"}
	]
}`

// testEnv is a sandbox with a file taxonomy and a private cache dir.
type testEnv struct {
	dir      string
	config   string
	cacheDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "xdg-cache"))
	t.Chdir(dir)
	for _, k := range []string{
		"TAXONOMY_SOURCE", "TAXONOMY_FILE", "TAXONOMY_CACHE_DIR", "TAXONOMY_FORCE_REFRESH",
		"REDIS_URL", "DATABASE_URL", "TAXONOMY_LISTEN", "CLASSIFIER_RULES",
	} {
		t.Setenv(k, "")
	}

	env := &testEnv{
		dir:      dir,
		config:   filepath.Join(dir, "config.toml"),
		cacheDir: filepath.Join(dir, "cache"),
	}
	taxFile := filepath.Join(dir, "taxonomy.json")
	writeTestFile(t, taxFile, taxonomyJSON)
	writeTestFile(t, env.config, "[taxonomy]\n"+
		"source = \"file\"\n"+
		"file = \""+filepath.ToSlash(taxFile)+"\"\n"+
		"cache_dir = \""+filepath.ToSlash(env.cacheDir)+"\"\n")
	writeTestFile(t, filepath.Join(dir, "diagram.json"), diagramJSON)
	return env
}

// run executes the root command and returns what it wrote to stdout.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var res, status bytes.Buffer
	prevOut, prevStatus := stdout, out
	stdout, out = &res, &status
	defer func() { stdout, out = prevOut, prevStatus }()

	c := New(&status, log.InfoLevel)
	root := c.RootCommand()
	root.SetArgs(append([]string{"--config", e.config}, args...))
	root.SetOut(&status)
	root.SetErr(&status)
	err := root.ExecuteContext(context.Background())
	return res.String(), err
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestBuildCommand(t *testing.T) {
	env := newTestEnv(t)
	got, err := env.run(t, "build", "diagram.json")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	g, err := ir.UnmarshalGraph([]byte(got))
	if err != nil {
		t.Fatalf("output is not a graph: %v", err)
	}
	if len(g.Nodes) != 4 || len(g.Edges) != 2 {
		t.Fatalf("graph has %d nodes, %d edges", len(g.Nodes), len(g.Edges))
	}
	for _, n := range g.Nodes {
		if n.Kind != ir.KindService {
			t.Errorf("node %s kind = %s, want Service", n.ID, n.Kind)
		}
	}
}

func TestEnrichCommand(t *testing.T) {
	env := newTestEnv(t)
	outPath := filepath.Join(env.dir, "enriched.json")
	if _, err := env.run(t, "enrich", "--diagram", "diagram.json", "-o", outPath); err != nil {
		t.Fatalf("enrich: %v", err)
	}

	g, err := ir.ReadGraphFile(outPath)
	if err != nil {
		t.Fatalf("ReadGraphFile: %v", err)
	}
	kinds := map[string]ir.Kind{}
	for _, n := range g.Nodes {
		kinds[n.ID] = n.Kind
	}
	want := map[string]ir.Kind{
		"api": ir.KindService,
		"db1": ir.KindDatabase,
		"db2": ir.KindDatabase,
		"bus": ir.KindQueue,
	}
	for id, k := range want {
		if kinds[id] != k {
			t.Errorf("node %s kind = %s, want %s", id, kinds[id], k)
		}
	}
	if len(g.Groups) == 0 || g.Groups[0].ID != "kind_database" {
		t.Errorf("groups = %+v", g.Groups)
	}

	if _, err := os.Stat(filepath.Join(env.cacheDir, taxonomy.CacheFileName)); err != nil {
		t.Errorf("taxonomy snapshot not cached: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.cacheDir, enrichSubdir)); err != nil {
		t.Errorf("enrichment cache not created: %v", err)
	}
}

func TestEnrichCommandNoCache(t *testing.T) {
	env := newTestEnv(t)
	got, err := env.run(t, "enrich", "--diagram", "--no-cache", "diagram.json")
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if !strings.Contains(got, `"kind": "Database"`) {
		t.Errorf("output missing classified nodes:\n%s", got)
	}
	if _, err := os.Stat(filepath.Join(env.cacheDir, enrichSubdir)); !os.IsNotExist(err) {
		t.Errorf("--no-cache created the enrichment cache (err=%v)", err)
	}
}

func TestEnrichCommandRejectsInvalidGraph(t *testing.T) {
	env := newTestEnv(t)
	writeTestFile(t, filepath.Join(env.dir, "bad.json"), `{"nodes": [{"id": "a", "name": "A", "kind": "Spaceship"}]}`)
	if _, err := env.run(t, "enrich", "bad.json"); err == nil {
		t.Error("expected an error for an invalid graph")
	}
}

func TestClassifyCommand(t *testing.T) {
	env := newTestEnv(t)
	got, err := env.run(t, "classify", "--json", "Redis", "aws-lambda", "Billing Service")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	var results map[string]classify.Result
	if err := json.Unmarshal([]byte(got), &results); err != nil {
		t.Fatalf("decode %q: %v", got, err)
	}

	tests := []struct {
		label string
		kind  ir.Kind
		tier  classify.Tier
	}{
		{"Redis", ir.KindCache, classify.TierPrimary},
		{"aws-lambda", ir.KindFunction, classify.TierCloud},
		{"Billing Service", ir.KindService, classify.TierDefault},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			r := results[tt.label]
			if r.Kind != tt.kind || r.Tier != tt.tier {
				t.Errorf("got %s/%s, want %s/%s", r.Kind, r.Tier, tt.kind, tt.tier)
			}
		})
	}
}

func TestClassifyCommandText(t *testing.T) {
	env := newTestEnv(t)
	got, err := env.run(t, "classify", "Redis")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if !strings.Contains(got, "Redis") || !strings.Contains(got, "Cache") {
		t.Errorf("output = %q", got)
	}
}

func TestTaxonomyCommands(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.run(t, "taxonomy", "load"); err != nil {
		t.Fatalf("taxonomy load: %v", err)
	}

	got, err := env.run(t, "taxonomy", "stats", "--json")
	if err != nil {
		t.Fatalf("taxonomy stats: %v", err)
	}
	var stats taxonomy.IndexStats
	if err := json.Unmarshal([]byte(got), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Rows != 3 || stats.Checksum == "" {
		t.Errorf("stats = %+v", stats)
	}

	got, err = env.run(t, "taxonomy", "lookup", "postgres")
	if err != nil {
		t.Fatalf("taxonomy lookup: %v", err)
	}
	var row taxonomy.Row
	if err := json.Unmarshal([]byte(got), &row); err != nil {
		t.Fatalf("decode row: %v", err)
	}
	if row.Token != "postgresql" {
		t.Errorf("lookup token = %q", row.Token)
	}

	if _, err := env.run(t, "taxonomy", "clear"); err != nil {
		t.Fatalf("taxonomy clear: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.cacheDir, taxonomy.CacheFileName)); !os.IsNotExist(err) {
		t.Errorf("snapshot still present after clear (err=%v)", err)
	}
}

func TestTaxonomyLoadFailsWithoutRows(t *testing.T) {
	env := newTestEnv(t)
	writeTestFile(t, filepath.Join(env.dir, "taxonomy.json"), `{"rows": []}`)
	if _, err := env.run(t, "taxonomy", "load"); err == nil {
		t.Error("expected an error for an empty taxonomy")
	}
}

func TestTaxonomyPublishRequiresBucket(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.run(t, "taxonomy", "publish"); err == nil {
		t.Error("expected an error without an S3 bucket")
	}
}

func TestCacheCommands(t *testing.T) {
	env := newTestEnv(t)

	got, err := env.run(t, "cache", "path")
	if err != nil {
		t.Fatalf("cache path: %v", err)
	}
	if strings.TrimSpace(got) != env.cacheDir {
		t.Errorf("cache path = %q, want %q", got, env.cacheDir)
	}

	if _, err := env.run(t, "enrich", "--diagram", "diagram.json", "-o", filepath.Join(env.dir, "out.json")); err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if _, err := env.run(t, "cache", "clear"); err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	entries, err := os.ReadDir(env.cacheDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("cache dir still has %d entries", len(entries))
	}
}

func TestClearDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "a", "b"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeTestFile(t, filepath.Join(dir, "top.json"), "{}")
	writeTestFile(t, filepath.Join(dir, "a", "b", "deep.json"), "{}")

	n, err := clearDir(dir)
	if err != nil {
		t.Fatalf("clearDir: %v", err)
	}
	if n != 2 {
		t.Errorf("removed %d files, want 2", n)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("%d entries left", len(entries))
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("dir itself was removed: %v", err)
	}
}

func TestInvalidConfig(t *testing.T) {
	env := newTestEnv(t)
	writeTestFile(t, env.config, "[taxonomy]\nsource = \"carrier-pigeon\"\n")
	if _, err := env.run(t, "classify", "Redis"); err == nil {
		t.Error("expected a config error")
	}
}

func TestCompletionCommand(t *testing.T) {
	env := newTestEnv(t)
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			got, err := env.run(t, "completion", shell)
			if err != nil {
				t.Fatalf("completion %s: %v", shell, err)
			}
			if !strings.Contains(got, appName) {
				t.Errorf("script does not mention %s", appName)
			}
		})
	}
	if _, err := env.run(t, "completion", "tcsh"); err == nil {
		t.Error("expected an error for an unsupported shell")
	}
}
