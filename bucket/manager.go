// S3-backed implementation of the storage operations.
//
// The Manager owns a single S3 client built once from an explicit Config;
// credentials are immutable for the Manager's lifetime. No caching and no
// retries beyond the SDK's own transient-fault handling.

package bucket

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config holds the credentials and endpoint settings for one Manager.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string

	// Endpoint overrides the S3 endpoint for compatible stores
	// (MinIO, R2, Spaces). Empty means AWS.
	Endpoint     string
	UsePathStyle bool
}

// api is the slice of the S3 client the Manager uses. Narrowed to an
// interface so tests can substitute a fake.
type api interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Manager exposes the storage operations the assistant can perform.
type Manager struct {
	client api
}

// New creates a Manager from the given configuration.
// Explicit credentials take precedence; with none set the default AWS
// credential chain applies (env, shared config, IAM role).
func New(ctx context.Context, cfg Config) (*Manager, error) {
	optFns := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
		optFns = append(optFns, awsconfig.WithCredentialsProvider(creds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Manager{client: client}, nil
}

// newManager wires a Manager onto an existing client. Used by tests.
func newManager(client api) *Manager {
	return &Manager{client: client}
}

// ListBuckets returns all buckets visible to the credentials.
func (m *Manager) ListBuckets(ctx context.Context) ([]Bucket, error) {
	out, err := m.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, classify(err)
	}

	buckets := make([]Bucket, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		buckets = append(buckets, Bucket{
			Name:         aws.ToString(b.Name),
			CreationDate: aws.ToTime(b.CreationDate),
		})
	}
	return buckets, nil
}

// ListObjects returns every object in the bucket, optionally restricted
// to a key prefix. Listing is paginated internally; callers get the
// complete set.
func (m *Manager) ListObjects(ctx context.Context, bucketName, prefix string) ([]Object, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucketName),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(m.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify(err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, Object{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
				ETag:         strings.Trim(aws.ToString(obj.ETag), "\""),
				StorageClass: string(obj.StorageClass),
			})
		}
	}
	return objects, nil
}

// Upload stores a local file in the bucket. An empty key defaults to the
// file's base name. Returns the final object key.
func (m *Manager) Upload(ctx context.Context, bucketName, localPath, key string) (string, error) {
	if key == "" {
		key = filepath.Base(localPath)
	}

	f, err := os.Open(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: local file %s", ErrNotFound, localPath)
		}
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucketName),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", classify(err)
	}
	return key, nil
}

// Download fetches an object into a local file and returns the number of
// bytes written.
func (m *Manager) Download(ctx context.Context, bucketName, key, localPath string) (int64, error) {
	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, classify(err)
	}
	defer out.Body.Close()

	if localPath == "" {
		localPath = filepath.Base(key)
	}

	f, err := os.Create(localPath)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", localPath, err)
	}
	defer f.Close()

	written, err := io.Copy(f, out.Body)
	if err != nil {
		return written, fmt.Errorf("write %s: %w", localPath, err)
	}
	return written, nil
}

// Delete removes an object from the bucket.
func (m *Manager) Delete(ctx context.Context, bucketName, key string) error {
	// DeleteObject succeeds on missing keys; check existence first so the
	// caller gets ErrNotFound instead of a silent no-op.
	if _, err := m.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(key),
	}); err != nil {
		return classify(err)
	}

	_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

// GetMetadata fetches the metadata fields of an object without its content.
func (m *Manager) GetMetadata(ctx context.Context, bucketName, key string) (ObjectMetadata, error) {
	out, err := m.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return ObjectMetadata{}, classify(err)
	}

	return ObjectMetadata{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		LastModified: aws.ToTime(out.LastModified),
		ETag:         strings.Trim(aws.ToString(out.ETag), "\""),
		User:         out.Metadata,
	}, nil
}

// Search returns objects whose key or user metadata contains the query,
// case-insensitively. An empty bucket name searches every bucket. No
// match is an empty result, not an error.
func (m *Manager) Search(ctx context.Context, bucketName, query string) ([]Match, error) {
	var bucketNames []string
	if bucketName != "" {
		bucketNames = []string{bucketName}
	} else {
		buckets, err := m.ListBuckets(ctx)
		if err != nil {
			return nil, err
		}
		for _, b := range buckets {
			bucketNames = append(bucketNames, b.Name)
		}
	}

	needle := strings.ToLower(query)
	matches := []Match{}
	for _, name := range bucketNames {
		objects, err := m.ListObjects(ctx, name, "")
		if err != nil {
			return nil, err
		}
		for _, obj := range objects {
			if strings.Contains(strings.ToLower(obj.Key), needle) {
				matches = append(matches, Match{Bucket: name, Object: obj})
				continue
			}
			if m.metadataMatches(ctx, name, obj.Key, needle) {
				matches = append(matches, Match{Bucket: name, Object: obj})
			}
		}
	}
	return matches, nil
}

// metadataMatches reports whether any user-metadata key or value of the
// object contains the needle. Lookup failures count as no match; the key
// scan above already covered the common case.
func (m *Manager) metadataMatches(ctx context.Context, bucketName, key, needle string) bool {
	meta, err := m.GetMetadata(ctx, bucketName, key)
	if err != nil {
		return false
	}
	for k, v := range meta.User {
		if strings.Contains(strings.ToLower(k), needle) || strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}
