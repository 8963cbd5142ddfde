// Package mongodb provides a taxonomy source backed by MongoDB.
//
// The export collection carries one document with _id "current" holding the
// full row list and its checksum; the rows collection stores one document
// per row and serves the paged fallback.
//
//	client, err := mongodb.Connect(ctx, os.Getenv("MONGO_URI"))
//	if err != nil {
//	    return err
//	}
//	defer client.Disconnect(ctx)
//	store := taxonomy.NewStore(mongodb.NewSource(client.Database("diagramir")))
package mongodb
