// Package integrations provides the shared HTTP plumbing and the concrete
// remote taxonomy sources.
//
// Each backend lives in its own subpackage and implements
// [taxonomy.Source]:
//
//   - [supabase]: PostgREST export RPC with a ranged table fallback
//   - [postgres]: direct pgx access plus a LISTEN/NOTIFY change listener
//   - [mongodb]: an export document and a rows collection
//   - [objectstore]: JSON exports published to an S3-compatible bucket
//
// # Client
//
// [Client] wraps net/http with default headers, JSON encoding, status
// mapping and optional retries:
//
//	c := integrations.NewClient(map[string]string{"apikey": key})
//	var out json.RawMessage
//	err := c.Post(ctx, url, nil, map[string]any{}, &out)
//
// 404 responses map to [ErrNotFound]. Transport failures, 429 and 5xx are
// wrapped in [httputil.RetryableError] around [ErrNetwork]. Retries are off
// by default because [taxonomy.Store] owns the retry policy for sources.
//
// Every request fires the [observability.HTTPHooks] callbacks.
//
// [taxonomy.Source]: github.com/matzehuels/diagramir/pkg/taxonomy.Source
// [taxonomy.Store]: github.com/matzehuels/diagramir/pkg/taxonomy.Store
// [httputil.RetryableError]: github.com/matzehuels/diagramir/pkg/httputil.RetryableError
// [observability.HTTPHooks]: github.com/matzehuels/diagramir/pkg/observability.HTTPHooks
// [supabase]: github.com/matzehuels/diagramir/pkg/integrations/supabase
// [postgres]: github.com/matzehuels/diagramir/pkg/integrations/postgres
// [mongodb]: github.com/matzehuels/diagramir/pkg/integrations/mongodb
// [objectstore]: github.com/matzehuels/diagramir/pkg/integrations/objectstore
package integrations
