package enrich

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/matzehuels/diagramir/pkg/classify"
	"github.com/matzehuels/diagramir/pkg/errors"
	"github.com/matzehuels/diagramir/pkg/ir"
	"github.com/matzehuels/diagramir/pkg/taxonomy"
)

// MetaOrigLabel holds a node's label as it was before normalization.
const MetaOrigLabel = "orig_label"

// =============================================================================
// Labels
// =============================================================================

// NormalizeLabels collapses runs of whitespace in node names and trims them.
// When a name changes, the original is kept in metadata.orig_label.
type NormalizeLabels struct{}

func (NormalizeLabels) Name() string { return StageNormalizeLabels }

func (NormalizeLabels) Apply(_ context.Context, g *ir.Graph) (*ir.Graph, error) {
	return eachNode(g, func(n *ir.Node) {
		norm := strings.Join(strings.Fields(n.Name), " ")
		if norm == n.Name {
			return
		}
		if n.Metadata == nil {
			n.Metadata = map[string]any{}
		}
		if _, ok := n.Metadata[MetaOrigLabel]; !ok {
			n.Metadata[MetaOrigLabel] = n.Name
		}
		n.Name = norm
	}), nil
}

// =============================================================================
// Taxonomy
// =============================================================================

// Loader warms the taxonomy before a run. [*taxonomy.Store] satisfies it.
type Loader interface {
	Load(ctx context.Context, force bool) *taxonomy.Index
}

// AssignTaxonomy classifies every node and writes its kind, subkind, layer
// and classifier metadata. Metadata is merged; existing keys not produced
// by the classifier survive.
//
// Pinned nodes keep their kind and layer. With PreserveExistingKind, so do
// nodes whose kind is already something other than Service.
type AssignTaxonomy struct {
	Classifier *classify.Classifier
	// Taxonomy, if set, is loaded once per run before classifying.
	Taxonomy             Loader
	PreserveExistingKind bool
}

func (AssignTaxonomy) Name() string { return StageAssignTaxonomy }

// Fingerprint covers the classifier configuration and the kind policy.
func (s AssignTaxonomy) Fingerprint() string {
	return fmt.Sprintf("%s/preserve=%t", s.Classifier.Fingerprint(), s.PreserveExistingKind)
}

func (s AssignTaxonomy) Apply(ctx context.Context, g *ir.Graph) (*ir.Graph, error) {
	if s.Classifier == nil {
		return nil, errors.New(errors.ErrCodeStageFailed, "assign_taxonomy: no classifier configured")
	}
	if s.Taxonomy != nil {
		s.Taxonomy.Load(ctx, false)
	}
	return eachNode(g, func(n *ir.Node) {
		res := s.Classifier.ClassifyNode(ctx, *n)
		keep := n.Pinned || (s.PreserveExistingKind && n.Kind != "" && n.Kind != ir.DefaultKind)

		meta := res.Metadata
		if keep || res.Tier != classify.TierCloud {
			kind := res.Kind
			if keep {
				kind = n.Kind
			}
			meta[classify.MetaLayerIndex] = classify.LayerIndexMeta(kind)
		}
		n.Metadata = ir.MergeMetadata(n.Metadata, meta)

		if keep {
			return
		}
		n.Kind = res.Kind
		n.Subkind = res.Subkind
		n.Layer = ir.LayerForKind(res.Kind)
	}), nil
}

// =============================================================================
// Domains
// =============================================================================

type domainPattern struct {
	domain string
	re     *regexp.Regexp
}

// domainPatterns is scanned in order; the first match wins.
var domainPatterns = []domainPattern{
	{"auth", regexp.MustCompile(`(?i)\b(auth\w*|login|log-in|sign-?in|sign-?up|oauth\w*|sso|identity|iam)\b`)},
	{"payment", regexp.MustCompile(`(?i)\b(pay\w*|billing|checkout|invoic\w*|stripe|refunds?|wallet)\b`)},
	{"user", regexp.MustCompile(`(?i)\b(users?|customers?|profiles?|accounts?|members?)\b`)},
	{"order", regexp.MustCompile(`(?i)\b(orders?|cart|basket|fulfil\w*|shipping|shipments?)\b`)},
	{"inventory", regexp.MustCompile(`(?i)\b(inventor\w*|stock|catalog\w*|products?|sku)\b`)},
	{"analytics", regexp.MustCompile(`(?i)\b(analytic\w*|reporting|reports?|dashboards?|bi|insights?)\b`)},
}

// InferDomain tags nodes with a business domain guessed from their name.
// Nodes that already carry a domain are left alone.
type InferDomain struct{}

func (InferDomain) Name() string { return StageInferDomain }

func (InferDomain) Apply(_ context.Context, g *ir.Graph) (*ir.Graph, error) {
	return eachNode(g, func(n *ir.Node) {
		if n.Domain != "" {
			return
		}
		n.Domain = DomainOf(n.Name)
	}), nil
}

// DomainOf returns the first domain whose pattern matches name, or "".
func DomainOf(name string) string {
	for _, p := range domainPatterns {
		if p.re.MatchString(name) {
			return p.domain
		}
	}
	return ""
}

// =============================================================================
// Risks
// =============================================================================

var (
	highRiskKinds = map[ir.Kind]bool{
		ir.KindAuth:            true,
		ir.KindSecretStore:     true,
		ir.KindCertAuthority:   true,
		ir.KindDatabase:        true,
		ir.KindBlobStore:       true,
		ir.KindExternalService: true,
	}
	mediumRiskKinds = map[ir.Kind]bool{
		ir.KindQueue:       true,
		ir.KindTopic:       true,
		ir.KindEventBus:    true,
		ir.KindCache:       true,
		ir.KindVectorStore: true,
	}
)

// TagRisks adds a "high" or "medium" risk tag based on node kind. Running it
// again never duplicates a tag.
type TagRisks struct{}

func (TagRisks) Name() string { return StageTagRisks }

func (TagRisks) Apply(_ context.Context, g *ir.Graph) (*ir.Graph, error) {
	return eachNode(g, func(n *ir.Node) {
		tag := RiskTier(n.Kind)
		if tag == "" || n.HasRiskTag(tag) {
			return
		}
		n.RiskTags = append(n.RiskTags, tag)
	}), nil
}

// RiskTier returns the static risk tag for kind, or "" for unrated kinds.
func RiskTier(kind ir.Kind) string {
	switch {
	case highRiskKinds[kind]:
		return ir.RiskHigh
	case mediumRiskKinds[kind]:
		return ir.RiskMedium
	}
	return ""
}

// =============================================================================
// Edges
// =============================================================================

type keyword struct {
	value string
	re    *regexp.Regexp
}

func keywords(pairs ...string) []keyword {
	out := make([]keyword, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, keyword{pairs[i], regexp.MustCompile(`\b(` + pairs[i+1] + `)\b`)})
	}
	return out
}

var (
	protocolKeywords = keywords(
		"https", `https`,
		"http", `http|rest`,
		"grpc", `grpc`,
		"tcp", `tcp`,
		"udp", `udp`,
		"sql", `sql|jdbc`,
	)
	purposeKeywords = keywords(
		"auth", `auth\w*|login`,
		"metrics", `metrics?`,
		"event", `events?`,
		"data", `data`,
	)
)

// ClassifyEdges fills edge protocol and purpose from keywords in the label.
// A keyword hit replaces the previous value; no hit keeps it.
type ClassifyEdges struct{}

func (ClassifyEdges) Name() string { return StageClassifyEdges }

func (ClassifyEdges) Apply(_ context.Context, g *ir.Graph) (*ir.Graph, error) {
	out := g.Clone()
	for i := range out.Edges {
		e := &out.Edges[i]
		label := strings.ToLower(e.Label)
		if label == "" {
			continue
		}
		if v, ok := firstKeyword(protocolKeywords, label); ok {
			e.Protocol = v
		}
		if v, ok := firstKeyword(purposeKeywords, label); ok {
			e.Purpose = v
		}
	}
	return out, nil
}

func firstKeyword(table []keyword, label string) (string, bool) {
	for _, k := range table {
		if k.re.MatchString(label) {
			return k.value, true
		}
	}
	return "", false
}
