package classify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/matzehuels/diagramir/pkg/ir"
	"github.com/matzehuels/diagramir/pkg/observability"
	"github.com/matzehuels/diagramir/pkg/taxonomy"
)

// Tier names the cascade step that produced a [Result].
type Tier string

const (
	TierCloud    Tier = "cloud"
	TierPrimary  Tier = "primary"
	TierDisplay  Tier = "display"
	TierAlias    Tier = "alias"
	TierWordVote Tier = "word_vote"
	TierFuzzy    Tier = "fuzzy"
	TierIconify  Tier = "iconify"
	TierRule     Tier = "rule"
	TierDefault  Tier = "default"
)

// Metadata keys written by the classifier.
const (
	MetaIconifyID  = "iconifyId"
	MetaSVGURL     = "svgUrl"
	MetaProvider   = "provider"
	MetaTechnology = "technology"
	MetaLayerIndex = "layerIndex"
	MetaToken      = "taxonomyToken"
	MetaCategory   = "category"
	MetaRegion     = "region"
	MetaCloud      = "cloud"
)

// MetaIconifyIDSnake is accepted as an input hint alongside MetaIconifyID.
const MetaIconifyIDSnake = "iconify_id"

// LayerIndexMeta is [ir.LayerIndex] in its metadata form. Metadata numbers
// are float64 so they compare equal after a JSON round trip.
func LayerIndexMeta(k ir.Kind) float64 {
	return float64(ir.LayerIndex(k))
}

// DefaultCacheSize bounds the memo of classified labels.
const DefaultCacheSize = 4096

var (
	databaseContextRE     = regexp.MustCompile(`\b(database|db)\b`)
	microserviceContextRE = regexp.MustCompile(`\bmicroservice\b`)
)

// Result is the outcome of classifying one label.
type Result struct {
	Kind     ir.Kind        `json:"kind"`
	Subkind  string         `json:"subkind,omitempty"`
	Metadata map[string]any `json:"metadata"`
	Tier     Tier           `json:"tier"`
	Token    string         `json:"token,omitempty"`
}

// Clone returns a deep copy of r.
func (r Result) Clone() Result {
	r.Metadata = ir.MergeMetadata(nil, r.Metadata)
	return r
}

// Indexer supplies the taxonomy index to classify against. [*taxonomy.Store]
// satisfies it.
type Indexer interface {
	Current() *taxonomy.Index
}

// Classifier maps free-text labels to a kind and metadata by walking a
// fixed cascade: cloud resource pre-check, canonical token, display name,
// alias, word vote, fuzzy match, icon id, regex rules and finally a default.
//
// Results are memoized per taxonomy checksum. A Classifier is safe for
// concurrent use.
type Classifier struct {
	taxonomy    Indexer
	rules       []Rule
	threshold   int
	logger      *log.Logger
	memo        *lru.Cache[string, Result]
	fingerprint string
}

// Option configures a [Classifier].
type Option func(*config)

type config struct {
	rules     []Rule
	threshold int
	cacheSize int
	logger    *log.Logger
}

// WithRules prepends rules to the built-in defaults.
func WithRules(rules ...Rule) Option {
	return func(c *config) { c.rules = append(c.rules, rules...) }
}

// WithFuzzyThreshold sets the minimum fuzzy score (0-100).
func WithFuzzyThreshold(n int) Option {
	return func(c *config) { c.threshold = n }
}

// WithCacheSize sets the memo capacity.
func WithCacheSize(n int) Option {
	return func(c *config) { c.cacheSize = n }
}

// WithLogger sets the logger. Nil discards.
func WithLogger(l *log.Logger) Option {
	return func(c *config) { c.logger = l }
}

// New creates a classifier over idx. If idx is a [*taxonomy.Store] the memo
// is purged whenever the store installs a new index.
func New(idx Indexer, opts ...Option) (*Classifier, error) {
	cfg := config{threshold: DefaultFuzzyThreshold, cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.cacheSize <= 0 {
		cfg.cacheSize = DefaultCacheSize
	}
	memo, err := lru.New[string, Result](cfg.cacheSize)
	if err != nil {
		return nil, err
	}
	if cfg.logger == nil {
		cfg.logger = log.New(io.Discard)
	}

	c := &Classifier{
		taxonomy:  idx,
		rules:     append(cfg.rules, DefaultRules()...),
		threshold: cfg.threshold,
		logger:    cfg.logger,
		memo:      memo,
	}
	c.fingerprint = fingerprint(c.rules, c.threshold)
	if store, ok := idx.(*taxonomy.Store); ok {
		store.OnChange(func(string) { c.Purge() })
	}
	return c, nil
}

// cascadeVersion changes whenever a code change alters results for an
// unchanged taxonomy and configuration.
const cascadeVersion = 2

// Fingerprint identifies everything besides the taxonomy that shapes a
// result: the cascade version, every rule in order and the fuzzy
// threshold. Two classifiers with equal fingerprints classify any label
// identically against the same index. A nil Classifier has an empty
// fingerprint.
func (c *Classifier) Fingerprint() string {
	if c == nil {
		return ""
	}
	return c.fingerprint
}

func fingerprint(rules []Rule, threshold int) string {
	h := sha256.New()
	fmt.Fprintf(h, "v%d\x00threshold=%d\x00default=%s\x00", cascadeVersion, threshold, ir.DefaultKind)
	for _, r := range rules {
		fmt.Fprintf(h, "%s\x00%s\x00%s\x00%v\x00", r.Pattern, r.Kind, r.Subkind, r.Metadata)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Purge drops every memoized result.
func (c *Classifier) Purge() {
	c.memo.Purge()
}

// hints are node metadata consulted alongside the label.
type hints struct {
	provider string
	iconify  string
}

// Classify resolves label against the current taxonomy index.
func (c *Classifier) Classify(ctx context.Context, label string) Result {
	return c.classify(ctx, label, hints{})
}

// ClassifyNode resolves n.Name. A string "provider" entry in n.Metadata is
// used as a hint for the cloud resource pre-check. A string "iconifyId" (or
// "iconify_id") entry is matched against taxonomy icon ids when no label
// tier up to fuzzy matching hits.
func (c *Classifier) ClassifyNode(ctx context.Context, n ir.Node) Result {
	var h hints
	h.provider, _ = n.Metadata[MetaProvider].(string)
	h.iconify, _ = n.Metadata[MetaIconifyID].(string)
	if h.iconify == "" {
		h.iconify, _ = n.Metadata[MetaIconifyIDSnake].(string)
	}
	return c.classify(ctx, n.Name, h)
}

func (c *Classifier) classify(ctx context.Context, label string, h hints) Result {
	start := time.Now()
	ix := c.taxonomy.Current()
	lower := strings.ToLower(strings.TrimSpace(label))
	key := ix.Checksum() + "\x00" + lower + "\x00" + strings.ToLower(h.provider) + "\x00" + strings.ToLower(h.iconify)

	if res, ok := c.memo.Get(key); ok {
		observability.Cache().OnCacheHit(ctx, "classify")
		return res.Clone()
	}
	observability.Cache().OnCacheMiss(ctx, "classify")

	res := c.cascade(ix, lower, h)
	c.memo.Add(key, res)
	observability.Classifier().OnClassify(ctx, string(res.Tier), time.Since(start))
	c.logger.Debug("classified", "label", label, "tier", res.Tier, "kind", res.Kind, "token", res.Token)
	return res.Clone()
}

func (c *Classifier) cascade(ix *taxonomy.Index, lower string, h hints) Result {
	if res, ok := CloudResource(lower, h.provider); ok {
		return res
	}

	var required ir.Kind
	switch {
	case databaseContextRE.MatchString(lower):
		required = ir.KindDatabase
	case microserviceContextRE.MatchString(lower):
		required = ir.KindMicroservice
	}
	accept := func(r Result) bool { return required == "" || r.Kind == required }

	for _, cand := range taxonomy.CandidateSlugs(lower) {
		slugs := []string{cand}
		if stripped, had := taxonomy.StripProviderPrefix(cand); had {
			slugs = append(slugs, stripped)
		}
		for _, sl := range slugs {
			if row, ok := ix.Primary(sl); ok {
				if r := fromRow(row, TierPrimary); accept(r) {
					return r
				}
			}
		}

		if row, ok := ix.DisplayName(cand); ok {
			if r := fromRow(row, TierDisplay); accept(r) {
				return r
			}
		}

		if rows := ix.Alias(cand); len(rows) > 0 {
			if r := fromRow(bestAlias(lower, rows), TierAlias); accept(r) {
				return r
			}
		}
	}

	if row, ok := ix.WordVote(lower); ok {
		if r := fromRow(row, TierWordVote); accept(r) {
			return r
		}
	}

	slug, _ := taxonomy.NormalizeLabel(lower)
	if key, _, ok := BestMatch(slug, ix.Keys(), c.threshold); ok {
		if row, ok := ix.Flat(key); ok {
			if r := fromRow(row, TierFuzzy); accept(r) {
				return r
			}
		}
	}

	if row, ok := ix.IconifyID(h.iconify); ok {
		if r := fromRow(row, TierIconify); accept(r) {
			return r
		}
	}

	for _, rl := range c.rules {
		if !rl.Pattern.MatchString(lower) || (required != "" && rl.Kind != required) {
			continue
		}
		return Result{
			Kind:     rl.Kind,
			Subkind:  rl.Subkind,
			Metadata: ir.MergeMetadata(rl.Metadata, map[string]any{MetaLayerIndex: LayerIndexMeta(rl.Kind)}),
			Tier:     TierRule,
		}
	}

	kind := required
	if kind == "" {
		kind = ir.DefaultKind
	}
	return Result{Kind: kind, Metadata: map[string]any{}, Tier: TierDefault}
}

// bestAlias picks the row whose token shares the most words with label.
// The first row wins ties.
func bestAlias(label string, rows []taxonomy.Row) taxonomy.Row {
	best, bestScore := rows[0], -1
	for _, r := range rows {
		if s := taxonomy.WordOverlap(label, r.Token); s > bestScore {
			best, bestScore = r, s
		}
	}
	return best
}

// fromRow converts a taxonomy row into a result. Rows with a kind outside
// the closed set classify as the default kind.
func fromRow(row taxonomy.Row, tier Tier) Result {
	kind, err := ir.ParseKind(row.Kind)
	if err != nil {
		kind = ir.DefaultKind
	}
	meta := map[string]any{
		MetaLayerIndex: LayerIndexMeta(kind),
		MetaToken:      row.Token,
	}
	if row.IconifyID != "" {
		meta[MetaIconifyID] = row.IconifyID
	}
	if u := strings.TrimRight(row.SVGURL, "?"); u != "" {
		meta[MetaSVGURL] = u
	}
	if row.Provider != "" {
		meta[MetaProvider] = row.Provider
	}
	if row.Technology != "" {
		meta[MetaTechnology] = row.Technology
	}
	return Result{Kind: kind, Subkind: row.Subkind, Metadata: meta, Tier: tier, Token: row.Token}
}
