// Package taxonomy resolves free-text technology labels against a curated
// table of known technologies.
//
// # Rows and Snapshots
//
// A [Row] is one technology: a canonical token ("aws-lambda"), an optional
// display name and aliases, and the kind, provider and icon data used to
// decorate diagram nodes. A [Snapshot] is the full table as delivered by a
// [Source] together with a checksum over every row's token and updated_at.
//
// # Index
//
// [NewIndex] builds immutable lookup tables from a snapshot. Labels and keys
// are compared by slug ([Slugify]): lowercase, every run of non-alphanumerics
// collapsed into one hyphen.
//
//	ix := taxonomy.NewIndex(snap)
//	row, ok := ix.Primary("aws-lambda")
//	row, ok = ix.WordVote("orders lambda function")
//
// # Store
//
// A [Store] serves the current index to concurrent readers and refreshes it
// from a source. Each pull tries [Source.Export] with retries, then pages
// through [Source.Page]. Results are persisted to a [SnapshotCache] so that a
// restart while the source is down still serves the last good table:
//
//	store := taxonomy.NewStore(src,
//	    taxonomy.WithSnapshotCache(taxonomy.NewFileSnapshotCache(dir)),
//	    taxonomy.WithRefreshInterval(time.Hour),
//	)
//	defer store.Close()
//	ix := store.Load(ctx, false)
//
// When the source is unreachable Load serves the previous index, then the
// cached snapshot, then an empty index. It never returns an error.
package taxonomy
