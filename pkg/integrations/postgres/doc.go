// Package postgres provides a taxonomy source and a change listener backed
// directly by Postgres through pgx.
//
// # Source
//
// [Source.Export] runs SELECT export_taxonomy_json(); [Source.Page] reads
// the tech_taxonomy table ordered by token with LIMIT/OFFSET.
//
//	pool, err := postgres.Open(ctx, os.Getenv("DATABASE_URL"))
//	store := taxonomy.NewStore(postgres.NewSource(pool))
//
// # Listener
//
// A [Listener] holds a dedicated connection with LISTEN taxonomy_changed and
// calls its handler for every notification, dropping bursts inside the
// debounce window. Lost connections are re-established after a delay.
//
//	l := postgres.NewListener(postgres.DSNConnector(dsn), func(ctx context.Context) {
//	    store.Load(ctx, true)
//	})
//	go l.Run(ctx)
package postgres
