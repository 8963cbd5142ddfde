package mongodb

import (
	"context"
	stderrors "errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/diagramir/pkg/errors"
	"github.com/matzehuels/diagramir/pkg/taxonomy"
)

const (
	// DefaultRowsCollection holds one document per taxonomy row.
	DefaultRowsCollection = "tech_taxonomy"
	// DefaultExportCollection holds the precomputed export document.
	DefaultExportCollection = "taxonomy_exports"
	// ExportID is the _id of the current export document.
	ExportID = "current"

	connectTimeout = 10 * time.Second
)

// exportDoc is the shape of the export document.
type exportDoc struct {
	ID       string         `bson:"_id"`
	Rows     []taxonomy.Row `bson:"rows"`
	Checksum string         `bson:"checksum"`
}

// Source reads the taxonomy from a MongoDB database.
//
// Export loads a single document {_id: "current", rows: [...], checksum}
// from the export collection. Page queries the rows collection sorted by
// token.
type Source struct {
	db      *mongo.Database
	rows    string
	exports string
}

// Option configures a [Source].
type Option func(*Source)

// WithRowsCollection overrides [DefaultRowsCollection].
func WithRowsCollection(name string) Option {
	return func(s *Source) { s.rows = name }
}

// WithExportCollection overrides [DefaultExportCollection].
func WithExportCollection(name string) Option {
	return func(s *Source) { s.exports = name }
}

// Connect opens a client for uri and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "ping mongodb")
	}
	return client, nil
}

// NewSource creates a source over db.
func NewSource(db *mongo.Database, opts ...Option) *Source {
	s := &Source{db: db, rows: DefaultRowsCollection, exports: DefaultExportCollection}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns "mongo:<database>".
func (s *Source) Name() string { return "mongo:" + s.db.Name() }

// Export reads the export document. A missing document yields an empty
// snapshot, which the store treats as a failed remote.
func (s *Source) Export(ctx context.Context) (*taxonomy.Snapshot, error) {
	var doc exportDoc
	err := s.db.Collection(s.exports).FindOne(ctx, bson.D{{Key: "_id", Value: ExportID}}).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return &taxonomy.Snapshot{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "read %s", s.exports)
	}
	return snapshotOf(doc.Rows, doc.Checksum), nil
}

// Page reads limit rows ordered by token, starting at offset.
func (s *Source) Page(ctx context.Context, offset, limit int) (*taxonomy.Snapshot, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: taxonomy.FieldToken, Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit)).
		SetProjection(projection())

	cur, err := s.db.Collection(s.rows).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "query %s", s.rows)
	}
	var rows []taxonomy.Row
	if err := cur.All(ctx, &rows); err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "decode %s", s.rows)
	}
	return snapshotOf(rows, ""), nil
}

func projection() bson.D {
	p := bson.D{{Key: "_id", Value: 0}}
	for _, c := range taxonomy.Columns {
		p = append(p, bson.E{Key: c, Value: 1})
	}
	return p
}

func snapshotOf(rows []taxonomy.Row, checksum string) *taxonomy.Snapshot {
	kept := rows[:0]
	for _, r := range rows {
		if r.Token != "" {
			kept = append(kept, r)
		}
	}
	return &taxonomy.Snapshot{Rows: kept, Checksum: checksum, Fields: taxonomy.FieldsOf(kept, nil)}
}
