package integrations

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds a single request to a taxonomy backend.
const DefaultTimeout = 10 * time.Second

var (
	// ErrNotFound is returned when a remote export, table or object is missing.
	ErrNotFound = errors.New("taxonomy resource not found")

	// ErrNetwork covers transport failures and unexpected HTTP statuses.
	ErrNetwork = errors.New("taxonomy backend unreachable")
)

// NewHTTPClient returns a client bounded by [DefaultTimeout].
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

// JoinURL appends path segments to base with exactly one slash between each.
func JoinURL(base string, parts ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	for _, p := range parts {
		b.WriteByte('/')
		b.WriteString(strings.Trim(p, "/"))
	}
	return b.String()
}

// RangeHeader is the PostgREST Range value for limit rows from offset,
// e.g. "0-999".
func RangeHeader(offset, limit int) string {
	return strconv.Itoa(offset) + "-" + strconv.Itoa(offset+limit-1)
}
