package taxonomy

import (
	"sort"
	"strings"
	"time"
)

// Index is an immutable set of lookup tables over one taxonomy snapshot.
//
// Three exact-match tables are ordered by confidence:
//
//  1. primary: slug of the canonical token (never shadowed)
//  2. display: slug of the display name
//  3. alias: slug of each alias, possibly shared by several rows
//
// A further table maps each iconify id to the first row carrying it.
//
// A word table maps every non-stopword of a row's token, display name and
// aliases to the row's primary slug, for heuristic voting. The flat view
// merges all three exact tables with primary winning over display winning
// over alias; its sorted keys feed the fuzzy matcher.
//
// An Index is never modified after construction, so it can be shared by any
// number of goroutines. A nil *Index behaves like an empty one.
type Index struct {
	rows     []Row
	primary  map[string]int
	display  map[string]int
	alias    map[string][]int
	words    map[string][]string
	flat     map[string]int
	byToken  map[string]int
	iconify  map[string]int
	keys     []string
	checksum string
	fields   []string
	builtAt  time.Time
}

// IndexStats reports table sizes.
type IndexStats struct {
	Rows     int    `json:"rows"`
	Primary  int    `json:"primary"`
	Display  int    `json:"display"`
	Alias    int    `json:"alias"`
	Words    int    `json:"words"`
	Keys     int    `json:"keys"`
	Checksum string `json:"checksum"`
}

// NewIndex builds the lookup tables for snap. A nil snapshot yields an empty index.
func NewIndex(snap *Snapshot) *Index {
	ix := &Index{
		primary: map[string]int{},
		display: map[string]int{},
		alias:   map[string][]int{},
		words:   map[string][]string{},
		flat:    map[string]int{},
		byToken: map[string]int{},
		iconify: map[string]int{},
		builtAt: time.Now(),
	}
	if snap == nil {
		return ix
	}
	ix.rows = append([]Row(nil), snap.Rows...)
	ix.checksum = snap.Checksum
	ix.fields = append([]string(nil), snap.Fields...)

	aliasOrder := []string{}
	for i, row := range ix.rows {
		tokSlug := Slugify(row.Token)
		ix.primary[tokSlug] = i
		ix.byToken[row.Token] = i
		if id := strings.ToLower(row.IconifyID); id != "" {
			if _, taken := ix.iconify[id]; !taken {
				ix.iconify[id] = i
			}
		}

		if row.DisplayName != "" {
			ix.display[Slugify(row.DisplayName)] = i
		}
		for _, a := range row.Aliases {
			s := Slugify(a)
			if _, ok := ix.alias[s]; !ok {
				aliasOrder = append(aliasOrder, s)
			}
			ix.alias[s] = append(ix.alias[s], i)
		}
		ix.indexWords(row, tokSlug)
	}

	for _, s := range aliasOrder {
		ix.flat[s] = ix.alias[s][0]
	}
	for s, i := range ix.display {
		ix.flat[s] = i
	}
	for s, i := range ix.primary {
		ix.flat[s] = i
	}

	ix.keys = make([]string, 0, len(ix.flat))
	for k := range ix.flat {
		if k != "" {
			ix.keys = append(ix.keys, k)
		}
	}
	sort.Strings(ix.keys)
	return ix
}

func (ix *Index) indexWords(row Row, tokSlug string) {
	texts := append([]string{row.Token, row.DisplayName}, row.Aliases...)
	seen := map[string]struct{}{}
	for _, txt := range texts {
		for _, w := range Words(txt) {
			if _, dup := seen[w]; dup {
				continue
			}
			seen[w] = struct{}{}
			ix.words[w] = append(ix.words[w], tokSlug)
		}
	}
}

// IconifyID returns the first row, in snapshot order, whose iconify id
// equals id, ignoring case.
func (ix *Index) IconifyID(id string) (Row, bool) {
	if ix == nil || id == "" {
		return Row{}, false
	}
	i, ok := ix.iconify[strings.ToLower(id)]
	if !ok {
		return Row{}, false
	}
	return ix.rows[i], true
}

// Len returns the number of rows.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.rows)
}

// Empty reports whether the index has no rows.
func (ix *Index) Empty() bool { return ix.Len() == 0 }

// Checksum returns the checksum of the snapshot the index was built from.
func (ix *Index) Checksum() string {
	if ix == nil {
		return ""
	}
	return ix.checksum
}

// BuiltAt returns the construction time.
func (ix *Index) BuiltAt() time.Time {
	if ix == nil {
		return time.Time{}
	}
	return ix.builtAt
}

// Primary looks up a canonical token slug.
func (ix *Index) Primary(slug string) (Row, bool) {
	if ix == nil {
		return Row{}, false
	}
	return ix.get(ix.primary, slug)
}

// DisplayName looks up a display-name slug.
func (ix *Index) DisplayName(slug string) (Row, bool) {
	if ix == nil {
		return Row{}, false
	}
	return ix.get(ix.display, slug)
}

// Alias returns every row that lists slug as an alias, in row order.
func (ix *Index) Alias(slug string) []Row {
	if ix == nil {
		return nil
	}
	idx := ix.alias[slug]
	if len(idx) == 0 {
		return nil
	}
	out := make([]Row, len(idx))
	for i, j := range idx {
		out[i] = ix.rows[j]
	}
	return out
}

// Flat looks up any exact key with primary > display > alias precedence.
func (ix *Index) Flat(key string) (Row, bool) {
	if ix == nil {
		return Row{}, false
	}
	return ix.get(ix.flat, key)
}

// Keys returns the sorted keys of the flat view. The slice is shared and
// must not be modified.
func (ix *Index) Keys() []string {
	if ix == nil {
		return nil
	}
	return ix.keys
}

// RowByToken looks up a row by its exact, unslugged token.
func (ix *Index) RowByToken(token string) (Row, bool) {
	if ix == nil {
		return Row{}, false
	}
	return ix.get(ix.byToken, token)
}

// WordVote scores rows by how many of label's non-stopword words they were
// indexed under and returns the best one. Ties go to the row whose slug was
// seen first while walking label's words in order, so the result is stable
// for a given snapshot.
func (ix *Index) WordVote(label string) (Row, bool) {
	if ix == nil {
		return Row{}, false
	}
	words := Words(label)
	if len(words) == 0 {
		return Row{}, false
	}

	counts := map[string]int{}
	var order []string
	for _, w := range words {
		for _, slug := range ix.words[w] {
			if _, ok := counts[slug]; !ok {
				order = append(order, slug)
			}
			counts[slug]++
		}
	}
	if len(order) == 0 {
		return Row{}, false
	}

	best := order[0]
	for _, slug := range order[1:] {
		if counts[slug] > counts[best] {
			best = slug
		}
	}
	return ix.Flat(best)
}

// Rows returns a copy of the indexed rows in source order.
func (ix *Index) Rows() []Row {
	if ix == nil {
		return nil
	}
	return append([]Row(nil), ix.rows...)
}

// Snapshot returns the snapshot the index was built from.
func (ix *Index) Snapshot() *Snapshot {
	if ix == nil {
		return &Snapshot{}
	}
	return &Snapshot{
		Rows:     ix.Rows(),
		Checksum: ix.checksum,
		Fields:   append([]string(nil), ix.fields...),
	}
}

// Stats reports the size of every table.
func (ix *Index) Stats() IndexStats {
	if ix == nil {
		return IndexStats{}
	}
	return IndexStats{
		Rows:     len(ix.rows),
		Primary:  len(ix.primary),
		Display:  len(ix.display),
		Alias:    len(ix.alias),
		Words:    len(ix.words),
		Keys:     len(ix.keys),
		Checksum: ix.checksum,
	}
}

func (ix *Index) get(m map[string]int, key string) (Row, bool) {
	i, ok := m[key]
	if !ok {
		return Row{}, false
	}
	return ix.rows[i], true
}
