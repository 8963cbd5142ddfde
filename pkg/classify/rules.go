package classify

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/diagramir/pkg/errors"
	"github.com/matzehuels/diagramir/pkg/ir"
)

// Rule maps labels matching Pattern to a kind. Metadata is merged into the
// node on a hit.
type Rule struct {
	Pattern  *regexp.Regexp
	Kind     ir.Kind
	Subkind  string
	Metadata map[string]any
}

func rule(pattern string, kind ir.Kind, subkind string) Rule {
	return Rule{Pattern: regexp.MustCompile(`(?i)` + pattern), Kind: kind, Subkind: subkind}
}

// DefaultRules are the built-in fallbacks for common infrastructure terms.
// They run after any rules loaded from a file.
func DefaultRules() []Rule {
	return []Rule{
		rule(`\bredis\b`, ir.KindCache, "redis"),
		rule(`\b(postgres\w*|aurora|rds)\b`, ir.KindDatabase, "postgres"),
		rule(`\bmysql\b`, ir.KindDatabase, "mysql"),
		rule(`\bmongo(db)?\b`, ir.KindDatabase, "mongodb"),
		rule(`\bkafka\b`, ir.KindQueue, "kafka"),
		rule(`\b(s3|blob|object\s+storage)\b`, ir.KindBlobStore, "s3"),
		rule(`\b(auth\w*|keycloak|identity)\b`, ir.KindAuth, "generic"),
		rule(`\b(cdn|cloudfront)\b`, ir.KindCDN, "generic"),
		rule(`\b(ml\s*model|inference|embeddings?)\b`, ir.KindMLModel, "inference"),
		rule(`\b(vector\s*store|pinecone|milvus)\b`, ir.KindVectorStore, "generic"),
		rule(`\b(queue|sqs|pubsub)\b`, ir.KindQueue, "generic"),
		rule(`\b(waf|firewall)\b`, ir.KindWAF, "generic"),
	}
}

// RuleFile is the YAML layout of a rule file:
//
//	exact:
//	  - match: nginx
//	    kind: Gateway
//	contains:
//	  - match: [splunk, siem]
//	    kind: Logging
//	    iconify_id: mdi:shield-eye
//	regex:
//	  - match: '^k8s-.*'
//	    kind: ContainerPlatform
//
// exact matches the whole label, contains matches any listed whole word and
// regex is used as written. Matching ignores case.
type RuleFile struct {
	Exact    []RuleEntry `yaml:"exact"`
	Contains []RuleEntry `yaml:"contains"`
	Regex    []RuleEntry `yaml:"regex"`
}

// RuleEntry is one rule of a [RuleFile]. Kind defaults to Service.
type RuleEntry struct {
	Match      StringList `yaml:"match"`
	Kind       string     `yaml:"kind"`
	Subkind    string     `yaml:"subkind"`
	Provider   string     `yaml:"provider"`
	Technology string     `yaml:"technology"`
	IconifyID  string     `yaml:"iconify_id"`
}

// StringList decodes from a YAML scalar or a sequence of scalars.
type StringList []string

// UnmarshalYAML accepts "a" and ["a", "b"].
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*l = StringList{value.Value}
		return nil
	case yaml.SequenceNode:
		var out []string
		if err := value.Decode(&out); err != nil {
			return err
		}
		*l = out
		return nil
	}
	return fmt.Errorf("line %d: match must be a string or a list of strings", value.Line)
}

// LoadRules reads a rule file. A missing file yields no rules.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read rule file")
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "rule file %s", path)
	}
	return rules, nil
}

// ParseRules compiles the rules of a YAML rule file in section order:
// exact, then contains, then regex.
func ParseRules(data []byte) ([]Rule, error) {
	var f RuleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode rules")
	}

	var rules []Rule
	sections := []struct {
		name    string
		entries []RuleEntry
		pattern func(StringList) string
	}{
		{"exact", f.Exact, exactPattern},
		{"contains", f.Contains, containsPattern},
		{"regex", f.Regex, regexPattern},
	}
	for _, sec := range sections {
		for i, e := range sec.entries {
			r, err := e.compile(sec.pattern(e.Match))
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s rule %d", sec.name, i)
			}
			rules = append(rules, r)
		}
	}
	return rules, nil
}

func (e RuleEntry) compile(pattern string) (Rule, error) {
	if len(e.Match) == 0 {
		return Rule{}, fmt.Errorf("match is required")
	}
	kind := ir.DefaultKind
	if e.Kind != "" {
		k, err := ir.ParseKind(e.Kind)
		if err != nil {
			return Rule{}, err
		}
		kind = k
	}
	re, err := regexp.Compile(`(?i)` + pattern)
	if err != nil {
		return Rule{}, err
	}

	meta := map[string]any{}
	if e.Provider != "" {
		meta[MetaProvider] = e.Provider
	}
	if e.Technology != "" {
		meta[MetaTechnology] = e.Technology
	}
	if e.IconifyID != "" {
		meta[MetaIconifyID] = e.IconifyID
	}
	return Rule{Pattern: re, Kind: kind, Subkind: e.Subkind, Metadata: meta}, nil
}

func exactPattern(m StringList) string {
	quoted := make([]string, len(m))
	for i, s := range m {
		quoted[i] = regexp.QuoteMeta(s)
	}
	return `^(?:` + strings.Join(quoted, "|") + `)$`
}

func containsPattern(m StringList) string {
	quoted := make([]string, len(m))
	for i, s := range m {
		quoted[i] = `\b` + regexp.QuoteMeta(s) + `\b`
	}
	return strings.Join(quoted, "|")
}

func regexPattern(m StringList) string {
	return strings.Join(m, "|")
}
