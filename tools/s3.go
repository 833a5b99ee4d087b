// Storage tools - the S3 operations exposed to the language model.
//
// Each tool wraps one adapter operation behind the Tool interface with a
// typed parameter schema. Outputs are JSON so the model can reason over
// fields instead of parsing prose.

package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/richinex/bucketeer/bucket"
)

// Store is the adapter surface the storage tools depend on.
// *bucket.Manager satisfies it; tests substitute a fake.
type Store interface {
	ListBuckets(ctx context.Context) ([]bucket.Bucket, error)
	ListObjects(ctx context.Context, bucketName, prefix string) ([]bucket.Object, error)
	Upload(ctx context.Context, bucketName, localPath, key string) (string, error)
	Download(ctx context.Context, bucketName, key, localPath string) (int64, error)
	Delete(ctx context.Context, bucketName, key string) error
	GetMetadata(ctx context.Context, bucketName, key string) (bucket.ObjectMetadata, error)
	Search(ctx context.Context, bucketName, query string) ([]bucket.Match, error)
}

// jsonResult marshals v as indented JSON into a successful ToolResult.
func jsonResult(v interface{}) ToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return FailureResult(fmt.Errorf("encode result: %w", err))
	}
	return SuccessResult(string(data))
}

// ListBucketsTool lists all buckets in the account.
type ListBucketsTool struct {
	store Store
}

// NewListBucketsTool creates a new list buckets tool.
func NewListBucketsTool(store Store) *ListBucketsTool {
	return &ListBucketsTool{store: store}
}

// Metadata returns the tool metadata.
func (t *ListBucketsTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "list_buckets",
		Description: "List all S3 buckets in the account with their names and creation dates",
		Parameters:  []ToolParameter{},
	}
}

// Validate validates the arguments.
func (t *ListBucketsTool) Validate(args json.RawMessage) error {
	var a struct{}
	return decodeArgs(args, &a)
}

// Execute lists the buckets.
func (t *ListBucketsTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	buckets, err := t.store.ListBuckets(ctx)
	if err != nil {
		return FailureResult(err), nil
	}
	if len(buckets) == 0 {
		return SuccessResult("No buckets found."), nil
	}
	return jsonResult(buckets), nil
}

// ListObjectsTool lists objects within a bucket.
type ListObjectsTool struct {
	store Store
}

// NewListObjectsTool creates a new list objects tool.
func NewListObjectsTool(store Store) *ListObjectsTool {
	return &ListObjectsTool{store: store}
}

// Metadata returns the tool metadata.
func (t *ListObjectsTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "list_objects",
		Description: "List objects in a bucket with key, size and last-modified date; optionally restricted to a key prefix",
		Parameters: []ToolParameter{
			{Name: "bucket", ParamType: "string", Description: "Name of the bucket to list", Required: true},
			{Name: "prefix", ParamType: "string", Description: "Only list keys starting with this prefix", Required: false},
		},
	}
}

type listObjectsArgs struct {
	Bucket string `json:"bucket"`
	Prefix string `json:"prefix"`
}

// Validate validates the arguments.
func (t *ListObjectsTool) Validate(args json.RawMessage) error {
	var a listObjectsArgs
	if err := decodeArgs(args, &a); err != nil {
		return err
	}
	return requireString("bucket", a.Bucket)
}

// Execute lists the objects.
func (t *ListObjectsTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a listObjectsArgs
	if err := decodeArgs(args, &a); err != nil {
		return FailureResult(err), nil
	}

	objects, err := t.store.ListObjects(ctx, a.Bucket, a.Prefix)
	if err != nil {
		return FailureResult(err), nil
	}
	if len(objects) == 0 {
		return SuccessResult(fmt.Sprintf("No objects found in bucket %s.", a.Bucket)), nil
	}
	return jsonResult(objects), nil
}

// UploadTool uploads a local file to a bucket.
type UploadTool struct {
	store Store
}

// NewUploadTool creates a new upload tool.
func NewUploadTool(store Store) *UploadTool {
	return &UploadTool{store: store}
}

// Metadata returns the tool metadata.
func (t *UploadTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "upload_file",
		Description: "Upload a local file to a bucket; the object key defaults to the file name",
		Parameters: []ToolParameter{
			{Name: "bucket", ParamType: "string", Description: "Destination bucket", Required: true},
			{Name: "local_path", ParamType: "string", Description: "Path of the local file to upload", Required: true},
			{Name: "key", ParamType: "string", Description: "Object key to store under (defaults to file name)", Required: false},
		},
	}
}

type uploadArgs struct {
	Bucket    string `json:"bucket"`
	LocalPath string `json:"local_path"`
	Key       string `json:"key"`
}

// Validate validates the arguments.
func (t *UploadTool) Validate(args json.RawMessage) error {
	var a uploadArgs
	if err := decodeArgs(args, &a); err != nil {
		return err
	}
	if err := requireString("bucket", a.Bucket); err != nil {
		return err
	}
	return requireString("local_path", a.LocalPath)
}

// Execute uploads the file.
func (t *UploadTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a uploadArgs
	if err := decodeArgs(args, &a); err != nil {
		return FailureResult(err), nil
	}

	key, err := t.store.Upload(ctx, a.Bucket, a.LocalPath, a.Key)
	if err != nil {
		return FailureResult(err), nil
	}
	return SuccessResult(fmt.Sprintf("File %s uploaded to bucket %s as %s", a.LocalPath, a.Bucket, key)), nil
}

// DownloadTool downloads an object to a local file.
type DownloadTool struct {
	store Store
}

// NewDownloadTool creates a new download tool.
func NewDownloadTool(store Store) *DownloadTool {
	return &DownloadTool{store: store}
}

// Metadata returns the tool metadata.
func (t *DownloadTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "download_file",
		Description: "Download an object from a bucket to a local file",
		Parameters: []ToolParameter{
			{Name: "bucket", ParamType: "string", Description: "Source bucket", Required: true},
			{Name: "key", ParamType: "string", Description: "Key of the object to download", Required: true},
			{Name: "local_path", ParamType: "string", Description: "Local destination path (defaults to the key's base name)", Required: false},
		},
	}
}

type downloadArgs struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	LocalPath string `json:"local_path"`
}

// Validate validates the arguments.
func (t *DownloadTool) Validate(args json.RawMessage) error {
	var a downloadArgs
	if err := decodeArgs(args, &a); err != nil {
		return err
	}
	if err := requireString("bucket", a.Bucket); err != nil {
		return err
	}
	return requireString("key", a.Key)
}

// Execute downloads the object.
func (t *DownloadTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a downloadArgs
	if err := decodeArgs(args, &a); err != nil {
		return FailureResult(err), nil
	}

	written, err := t.store.Download(ctx, a.Bucket, a.Key, a.LocalPath)
	if err != nil {
		return FailureResult(err), nil
	}
	return SuccessResult(fmt.Sprintf("Downloaded %s from bucket %s (%d bytes)", a.Key, a.Bucket, written)), nil
}

// DeleteTool removes an object from a bucket.
type DeleteTool struct {
	store Store
}

// NewDeleteTool creates a new delete tool.
func NewDeleteTool(store Store) *DeleteTool {
	return &DeleteTool{store: store}
}

// Metadata returns the tool metadata.
func (t *DeleteTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "delete_object",
		Description: "Delete an object from a bucket",
		Parameters: []ToolParameter{
			{Name: "bucket", ParamType: "string", Description: "Bucket containing the object", Required: true},
			{Name: "key", ParamType: "string", Description: "Key of the object to delete", Required: true},
		},
	}
}

type deleteArgs struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// Validate validates the arguments.
func (t *DeleteTool) Validate(args json.RawMessage) error {
	var a deleteArgs
	if err := decodeArgs(args, &a); err != nil {
		return err
	}
	if err := requireString("bucket", a.Bucket); err != nil {
		return err
	}
	return requireString("key", a.Key)
}

// Execute deletes the object.
func (t *DeleteTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a deleteArgs
	if err := decodeArgs(args, &a); err != nil {
		return FailureResult(err), nil
	}

	if err := t.store.Delete(ctx, a.Bucket, a.Key); err != nil {
		return FailureResult(err), nil
	}
	return SuccessResult(fmt.Sprintf("Object %s removed from bucket %s", a.Key, a.Bucket)), nil
}

// GetMetadataTool fetches metadata for a single object.
type GetMetadataTool struct {
	store Store
}

// NewGetMetadataTool creates a new metadata tool.
func NewGetMetadataTool(store Store) *GetMetadataTool {
	return &GetMetadataTool{store: store}
}

// Metadata returns the tool metadata.
func (t *GetMetadataTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "get_metadata",
		Description: "Get metadata for an object: size, content type, last-modified date and user metadata",
		Parameters: []ToolParameter{
			{Name: "bucket", ParamType: "string", Description: "Bucket containing the object", Required: true},
			{Name: "key", ParamType: "string", Description: "Key of the object", Required: true},
		},
	}
}

type getMetadataArgs struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// Validate validates the arguments.
func (t *GetMetadataTool) Validate(args json.RawMessage) error {
	var a getMetadataArgs
	if err := decodeArgs(args, &a); err != nil {
		return err
	}
	if err := requireString("bucket", a.Bucket); err != nil {
		return err
	}
	return requireString("key", a.Key)
}

// Execute fetches the metadata.
func (t *GetMetadataTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a getMetadataArgs
	if err := decodeArgs(args, &a); err != nil {
		return FailureResult(err), nil
	}

	meta, err := t.store.GetMetadata(ctx, a.Bucket, a.Key)
	if err != nil {
		return FailureResult(err), nil
	}
	return jsonResult(meta), nil
}

// SearchTool finds objects by key or metadata substring.
type SearchTool struct {
	store Store
}

// NewSearchTool creates a new search tool.
func NewSearchTool(store Store) *SearchTool {
	return &SearchTool{store: store}
}

// Metadata returns the tool metadata.
func (t *SearchTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "search_objects",
		Description: "Search for objects whose key or metadata contains a term (case-insensitive); omit bucket to search all buckets",
		Parameters: []ToolParameter{
			{Name: "query", ParamType: "string", Description: "Term to search for", Required: true},
			{Name: "bucket", ParamType: "string", Description: "Bucket to search in (all buckets when omitted)", Required: false},
		},
	}
}

type searchArgs struct {
	Query  string `json:"query"`
	Bucket string `json:"bucket"`
}

// Validate validates the arguments.
func (t *SearchTool) Validate(args json.RawMessage) error {
	var a searchArgs
	if err := decodeArgs(args, &a); err != nil {
		return err
	}
	return requireString("query", a.Query)
}

// Execute runs the search.
func (t *SearchTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a searchArgs
	if err := decodeArgs(args, &a); err != nil {
		return FailureResult(err), nil
	}

	matches, err := t.store.Search(ctx, a.Bucket, a.Query)
	if err != nil {
		return FailureResult(err), nil
	}
	if len(matches) == 0 {
		return SuccessResult(fmt.Sprintf("No objects found matching '%s'", a.Query)), nil
	}
	return jsonResult(matches), nil
}
