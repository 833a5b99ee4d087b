// Package bucket wraps the AWS S3 API behind a small set of named
// operations used by the assistant's tools.
package bucket

import "time"

// Bucket describes a top-level storage namespace.
type Bucket struct {
	Name         string    `json:"name"`
	CreationDate time.Time `json:"creation_date"`
}

// Object describes a stored blob within a bucket.
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	ETag         string    `json:"etag,omitempty"`
	StorageClass string    `json:"storage_class,omitempty"`
}

// ObjectMetadata holds the metadata fields of a single object.
type ObjectMetadata struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size"`
	ContentType  string            `json:"content_type"`
	LastModified time.Time         `json:"last_modified"`
	ETag         string            `json:"etag,omitempty"`
	User         map[string]string `json:"metadata,omitempty"`
}

// Match is a search hit: the bucket it was found in and the object.
type Match struct {
	Bucket string `json:"bucket"`
	Object Object `json:"object"`
}
