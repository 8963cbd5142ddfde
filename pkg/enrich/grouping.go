package enrich

import (
	"context"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/diagramir/pkg/ir"
	"github.com/matzehuels/diagramir/pkg/taxonomy"
)

// MinGroupSize is the smallest group the grouping stage creates.
const MinGroupSize = 2

// AssignGroupsByKind clusters nodes that share a kind into layer_cluster
// groups and nodes that share a domain into bounded_context groups. Only
// clusters of at least MinGroupSize nodes become groups.
//
// New groups are appended after the existing ones. A generated group whose
// id is already taken is skipped, so re-running the stage adds nothing.
// A skipped group whose type or members differ from the existing one is
// logged as a warning. Members gain the group id in their group_ids.
type AssignGroupsByKind struct {
	// Logger receives collision warnings. Nil discards.
	Logger *log.Logger
}

func (AssignGroupsByKind) Name() string { return StageAssignGroups }

func (s AssignGroupsByKind) Apply(_ context.Context, g *ir.Graph) (*ir.Graph, error) {
	logger := s.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	out := g.Clone()

	var created []ir.Group
	created = append(created, KindGroups(out.Nodes)...)
	created = append(created, DomainGroups(out.Nodes)...)
	created = append(created, CloudResourceGroups(out)...)

	taken := make(map[string]*ir.Group, len(out.Groups))
	for i := range out.Groups {
		taken[out.Groups[i].ID] = &out.Groups[i]
	}
	index := make(map[string]int, len(out.Nodes))
	for i, n := range out.Nodes {
		index[n.ID] = i
	}

	for _, grp := range created {
		if prev, ok := taken[grp.ID]; ok {
			if prev.Type != grp.Type || !slices.Equal(prev.MemberNodeIDs, grp.MemberNodeIDs) {
				logger.Warn("group id already taken, skipping generated group",
					"group", grp.ID, "existing_type", prev.Type, "members", len(grp.MemberNodeIDs))
			}
			continue
		}
		taken[grp.ID] = &grp
		out.Groups = append(out.Groups, grp)
		for _, id := range grp.MemberNodeIDs {
			n := &out.Nodes[index[id]]
			if !contains(n.GroupIDs, grp.ID) {
				n.GroupIDs = append(n.GroupIDs, grp.ID)
			}
		}
	}
	return out, nil
}

// KindGroups returns one layer_cluster group per kind shared by at least
// MinGroupSize nodes, in order of first appearance. Group ids look like
// "kind_database".
func KindGroups(nodes []ir.Node) []ir.Group {
	return clusterBy(nodes, func(n ir.Node) string {
		kind := n.Kind
		if kind == "" {
			kind = ir.DefaultKind
		}
		return string(kind)
	}, func(key string, members []string) ir.Group {
		return ir.Group{
			ID:            "kind_" + strings.ToLower(key),
			Name:          key + " Group",
			Type:          ir.GroupLayerCluster,
			Controls:      []string{},
			MemberNodeIDs: members,
		}
	})
}

// DomainGroups returns one bounded_context group per non-empty domain
// shared by at least MinGroupSize nodes. Group ids look like "bc_payment".
func DomainGroups(nodes []ir.Node) []ir.Group {
	return clusterBy(nodes, func(n ir.Node) string {
		return n.Domain
	}, func(key string, members []string) ir.Group {
		return ir.Group{
			ID:            "bc_" + taxonomy.Slugify(key),
			Name:          titleCase(key),
			Type:          ir.GroupBoundedContext,
			Controls:      []string{},
			MemberNodeIDs: members,
		}
	})
}

// CloudResourceGroups would cluster nodes by VPC, subnet, availability zone,
// region or cluster names. It returns nil until the group schema has a type
// for cloud boundaries.
func CloudResourceGroups(*ir.Graph) []ir.Group {
	return nil
}

func clusterBy(nodes []ir.Node, key func(ir.Node) string, build func(string, []string) ir.Group) []ir.Group {
	var order []string
	members := make(map[string][]string)
	for _, n := range nodes {
		k := key(n)
		if k == "" {
			continue
		}
		if _, seen := members[k]; !seen {
			order = append(order, k)
		}
		members[k] = append(members[k], n.ID)
	}

	var groups []ir.Group
	for _, k := range order {
		if len(members[k]) < MinGroupSize {
			continue
		}
		groups = append(groups, build(k, members[k]))
	}
	return groups
}

func titleCase(s string) string {
	words := strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
