// Package supabase provides a taxonomy source backed by a Supabase project.
//
// # Overview
//
// The bulk path POSTs to /rest/v1/rpc/export_taxonomy_json, a database
// function returning every row plus a server-side checksum. When that fails
// the store falls back to paging the tech_taxonomy table with PostgREST
// Range headers and computes the checksum locally.
//
// # Usage
//
//	src := supabase.NewClient(os.Getenv("SUPABASE_URL"), os.Getenv("SUPABASE_KEY"))
//	store := taxonomy.NewStore(src)
//	ix := store.Load(ctx, false)
package supabase
