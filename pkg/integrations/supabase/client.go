package supabase

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/matzehuels/diagramir/pkg/errors"
	"github.com/matzehuels/diagramir/pkg/integrations"
	"github.com/matzehuels/diagramir/pkg/taxonomy"
)

const (
	// DefaultTable is the PostgREST table read by the paged fallback.
	DefaultTable = "tech_taxonomy"
	// DefaultExportRPC is the function that returns the whole taxonomy.
	DefaultExportRPC = "export_taxonomy_json"
)

// Client reads the taxonomy from a Supabase project through PostgREST.
//
// Export calls the export RPC, which returns {"rows": [...], "checksum": "..."}.
// Page reads the table directly with a Range header.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	baseURL string
	table   string
	rpc     string
}

// Option configures a [Client].
type Option func(*Client)

// WithTable overrides [DefaultTable].
func WithTable(name string) Option {
	return func(c *Client) { c.table = name }
}

// WithExportRPC overrides [DefaultExportRPC].
func WithExportRPC(name string) Option {
	return func(c *Client) { c.rpc = name }
}

// NewClient creates a client for the project at baseURL authenticated with
// the service or anon key.
func NewClient(baseURL, key string, opts ...Option) *Client {
	headers := map[string]string{
		"apikey":        key,
		"Authorization": "Bearer " + key,
	}
	c := &Client{
		Client:  integrations.NewClient(headers),
		baseURL: strings.TrimRight(baseURL, "/"),
		table:   DefaultTable,
		rpc:     DefaultExportRPC,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns "supabase:<host>".
func (c *Client) Name() string {
	if u, err := url.Parse(c.baseURL); err == nil && u.Host != "" {
		return "supabase:" + u.Host
	}
	return "supabase:" + c.baseURL
}

// Export calls the export RPC.
func (c *Client) Export(ctx context.Context) (*taxonomy.Snapshot, error) {
	var raw json.RawMessage
	endpoint := integrations.JoinURL(c.baseURL, "rest/v1/rpc", c.rpc)
	if err := c.Post(ctx, endpoint, nil, map[string]any{}, &raw); err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "supabase rpc %s", c.rpc)
	}
	if isNull(raw) {
		return &taxonomy.Snapshot{}, nil
	}
	return taxonomy.DecodeSnapshot(raw)
}

// Page reads limit rows ordered by token, starting at offset.
func (c *Client) Page(ctx context.Context, offset, limit int) (*taxonomy.Snapshot, error) {
	q := url.Values{}
	q.Set("select", strings.Join(taxonomy.Columns, ","))
	q.Set("order", "token.asc")
	endpoint := integrations.JoinURL(c.baseURL, "rest/v1", c.table) + "?" + q.Encode()

	headers := map[string]string{
		"Range-Unit": "items",
		"Range":      integrations.RangeHeader(offset, limit),
	}
	var raw json.RawMessage
	if err := c.GetWithHeaders(ctx, endpoint, headers, &raw); err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "supabase page %d+%d", offset, limit)
	}
	if isNull(raw) {
		return &taxonomy.Snapshot{}, nil
	}
	return taxonomy.DecodeSnapshot(raw)
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
