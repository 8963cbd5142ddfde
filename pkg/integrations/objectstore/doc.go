// Package objectstore provides a taxonomy source that reads exports
// published to an S3-compatible bucket (AWS S3, MinIO, R2).
//
// The layout under the prefix (default "taxonomy") is:
//
//	taxonomy/export.json      full snapshot: {"rows": [...], "checksum": "..."}
//	taxonomy/pages/0001.json  row arrays for the paged fallback, in key order
//
// [Source.Publish] writes export.json, so one deployment can mirror its
// live taxonomy for others to read.
package objectstore
