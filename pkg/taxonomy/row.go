package taxonomy

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/matzehuels/diagramir/pkg/errors"
)

// Column names of the remote taxonomy table.
const (
	FieldToken       = "token"
	FieldDisplayName = "display_name"
	FieldAliases     = "aliases"
	FieldKind        = "kind"
	FieldSubkind     = "subkind"
	FieldProvider    = "provider"
	FieldTechnology  = "technology"
	FieldIconifyID   = "iconify_id"
	FieldSVGURL      = "svg_url"
	FieldUpdatedAt   = "updated_at"
)

// Columns lists every column a source is expected to expose, in select order.
var Columns = []string{
	FieldToken, FieldDisplayName, FieldAliases, FieldKind, FieldSubkind,
	FieldProvider, FieldIconifyID, FieldTechnology, FieldSVGURL, FieldUpdatedAt,
}

// Row is one taxonomy entry. Optional fields are empty when absent.
type Row struct {
	Token       string  `json:"token" bson:"token" db:"token"`
	DisplayName string  `json:"display_name,omitempty" bson:"display_name,omitempty" db:"display_name"`
	Aliases     Aliases `json:"aliases,omitempty" bson:"aliases,omitempty" db:"aliases"`
	Kind        string  `json:"kind,omitempty" bson:"kind,omitempty" db:"kind"`
	Subkind     string  `json:"subkind,omitempty" bson:"subkind,omitempty" db:"subkind"`
	Provider    string  `json:"provider,omitempty" bson:"provider,omitempty" db:"provider"`
	Technology  string  `json:"technology,omitempty" bson:"technology,omitempty" db:"technology"`
	IconifyID   string  `json:"iconify_id,omitempty" bson:"iconify_id,omitempty" db:"iconify_id"`
	SVGURL      string  `json:"svg_url,omitempty" bson:"svg_url,omitempty" db:"svg_url"`
	UpdatedAt   string  `json:"updated_at,omitempty" bson:"updated_at,omitempty" db:"updated_at"`
}

// Aliases is a list of alternative names. It decodes from a JSON array, a
// comma-separated string or null.
type Aliases []string

// UnmarshalJSON accepts ["a","b"], "a, b" and null.
func (a *Aliases) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		var out []string
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		*a = out
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*a = list
	return nil
}

// Snapshot is a full copy of the taxonomy as delivered by a source.
//
// Fields lists the columns the payload actually carried. It drives the
// schema-drift guard: a column present in the previous snapshot but missing
// from a new one forces an index rebuild even when checksums match.
type Snapshot struct {
	Rows     []Row    `json:"rows"`
	Checksum string   `json:"checksum"`
	Fields   []string `json:"fields,omitempty"`
}

// Len returns the number of rows.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}

// HasField reports whether the snapshot carried the named column.
func (s *Snapshot) HasField(name string) bool {
	if s == nil {
		return false
	}
	for _, f := range s.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// MissingFields returns the entries of required that prev carried but s does not.
func (s *Snapshot) MissingFields(prev *Snapshot, required []string) []string {
	var missing []string
	for _, f := range required {
		if prev.HasField(f) && !s.HasField(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// DecodeSnapshot parses either {"rows": [...], "checksum": "..."} or a bare
// row array. Rows without a token are dropped. Fields is derived from the
// keys present in the payload rows unless the payload lists them itself.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "empty taxonomy payload")
	}

	var envelope struct {
		Rows     []json.RawMessage `json:"rows"`
		Checksum string            `json:"checksum"`
		Fields   []string          `json:"fields"`
	}
	if data[0] == '[' {
		if err := json.Unmarshal(data, &envelope.Rows); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode taxonomy rows")
		}
	} else if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode taxonomy payload")
	}

	snap := &Snapshot{Checksum: envelope.Checksum, Fields: envelope.Fields}
	seen := map[string]struct{}{}
	for i, raw := range envelope.Rows {
		var row Row
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode taxonomy row %d", i)
		}
		if row.Token == "" {
			continue
		}
		snap.Rows = append(snap.Rows, row)
		if envelope.Fields == nil {
			var keys map[string]json.RawMessage
			if err := json.Unmarshal(raw, &keys); err == nil {
				for k := range keys {
					seen[k] = struct{}{}
				}
			}
		}
	}
	if envelope.Fields == nil {
		snap.Fields = sortedKeys(seen)
	}
	return snap, nil
}

// FieldsOf reports which columns are populated on at least one row. Sources
// that decode into typed rows (SQL, BSON) use it to fill Snapshot.Fields.
func FieldsOf(rows []Row, selected []string) []string {
	if selected != nil {
		out := append([]string(nil), selected...)
		sort.Strings(out)
		return out
	}
	seen := map[string]struct{}{}
	for _, r := range rows {
		for name, v := range map[string]bool{
			FieldToken:       r.Token != "",
			FieldDisplayName: r.DisplayName != "",
			FieldAliases:     len(r.Aliases) > 0,
			FieldKind:        r.Kind != "",
			FieldSubkind:     r.Subkind != "",
			FieldProvider:    r.Provider != "",
			FieldTechnology:  r.Technology != "",
			FieldIconifyID:   r.IconifyID != "",
			FieldSVGURL:      r.SVGURL != "",
			FieldUpdatedAt:   r.UpdatedAt != "",
		} {
			if v {
				seen[name] = struct{}{}
			}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
