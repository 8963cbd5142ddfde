package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/matzehuels/diagramir/pkg/errors"
	"github.com/matzehuels/diagramir/pkg/integrations"
	"github.com/matzehuels/diagramir/pkg/taxonomy"
)

const (
	// DefaultPrefix is the key prefix under which exports live.
	DefaultPrefix = "taxonomy"

	exportObject  = "export.json"
	pagesDir      = "pages"
	defaultRegion = "us-east-1"
)

// Config describes an S3-compatible bucket.
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// Source reads taxonomy exports published to an S3-compatible bucket.
//
// <prefix>/export.json holds the full snapshot. <prefix>/pages/*.json hold
// row arrays that, concatenated in key order, form the paged fallback.
type Source struct {
	client *minio.Client
	bucket string
	prefix string
}

// New creates a source for cfg. Endpoint, keys and bucket are required.
func New(cfg Config) (*Source, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "s3 endpoint is required")
	}
	access, secret := strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultRegion
	}
	prefix := strings.Trim(strings.TrimSpace(cfg.Prefix), "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "init s3 client")
	}
	return &Source{client: client, bucket: bucket, prefix: prefix}, nil
}

// Name returns "s3:<bucket>/<prefix>".
func (s *Source) Name() string { return "s3:" + s.bucket + "/" + s.prefix }

// Export reads <prefix>/export.json.
func (s *Source) Export(ctx context.Context) (*taxonomy.Snapshot, error) {
	data, err := s.get(ctx, path.Join(s.prefix, exportObject))
	if err != nil {
		return nil, err
	}
	snap, err := taxonomy.DecodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	if snap.Checksum == "" {
		snap.Checksum = taxonomy.Checksum(snap.Rows)
	}
	return snap, nil
}

// Page reads page objects in key order until limit rows past offset are
// available.
func (s *Source) Page(ctx context.Context, offset, limit int) (*taxonomy.Snapshot, error) {
	keys, err := s.pageKeys(ctx)
	if err != nil {
		return nil, err
	}
	var rows []taxonomy.Row
	for _, key := range keys {
		if limit > 0 && len(rows) >= offset+limit {
			break
		}
		data, err := s.get(ctx, key)
		if err != nil {
			return nil, err
		}
		snap, err := taxonomy.DecodeSnapshot(data)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode %s", key)
		}
		rows = append(rows, snap.Rows...)
	}
	out := window(rows, offset, limit)
	return &taxonomy.Snapshot{Rows: out, Fields: taxonomy.FieldsOf(out, nil)}, nil
}

// Publish uploads snap as <prefix>/export.json.
func (s *Source) Publish(ctx context.Context, snap *taxonomy.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode snapshot")
	}
	key := path.Join(s.prefix, exportObject)
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "put %s", key)
	}
	return nil
}

func (s *Source) get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "get %s", key)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		code := minio.ToErrorResponse(err).Code
		if code == "NoSuchKey" || code == "NoSuchBucket" {
			return nil, errors.Wrap(errors.ErrCodeNotFound, integrations.ErrNotFound, "%s/%s", s.bucket, key)
		}
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "read %s", key)
	}
	return data, nil
}

func (s *Source) pageKeys(ctx context.Context) ([]string, error) {
	prefix := path.Join(s.prefix, pagesDir) + "/"
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, errors.Wrap(errors.ErrCodeNetwork, obj.Err, "list %s", prefix)
		}
		if strings.HasSuffix(obj.Key, ".json") {
			keys = append(keys, obj.Key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// window returns rows[offset:offset+limit], clamped. A non-positive limit
// means the rest.
func window(rows []taxonomy.Row, offset, limit int) []taxonomy.Row {
	if offset >= len(rows) || offset < 0 {
		return nil
	}
	end := len(rows)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return append([]taxonomy.Row(nil), rows[offset:end]...)
}
