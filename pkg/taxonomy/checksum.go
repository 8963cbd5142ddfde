package taxonomy

import (
	"sort"
	"strings"

	"github.com/matzehuels/diagramir/pkg/cache"
)

// Checksum fingerprints rows by their token and updated_at columns, ignoring
// order. Sources that cannot supply a server-side checksum use it so that an
// unchanged table yields an unchanged fingerprint.
func Checksum(rows []Row) string {
	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = r.Token + r.UpdatedAt
	}
	sort.Strings(parts)
	return cache.Hash([]byte(strings.Join(parts, ",")))
}
