package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"aida/internal/config"
	"aida/internal/domain"
)

// s3API is the subset of *s3.Client the store calls.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// S3Store keeps uploads in an S3-compatible bucket. Locations are object
// keys, including the configured prefix.
type S3Store struct {
	client s3API
	bucket string
	prefix string
}

var _ domain.BlobStore = (*S3Store)(nil)

// NewS3Store creates a store with static credentials. A custom endpoint
// (MinIO, Hetzner) may require path-style addressing.
func NewS3Store(cfg config.S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		UsePathStyle: cfg.PathStyle,
	}
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		if !strings.Contains(endpoint, "://") {
			endpoint = "https://" + endpoint
		}
		opts.BaseEndpoint = aws.String(endpoint)
	}
	return &S3Store{client: s3.New(opts), bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Put buffers r and uploads it with If-None-Match so an existing key is
// never overwritten. A taken key is retried with the next name from the
// same buffer. The caller bounds r; uploads are capped well below the
// single-PUT limit.
func (s *S3Store) Put(ctx context.Context, names domain.NameFunc, r io.Reader) (string, int64, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, ctxReader{ctx: ctx, r: r})
	if err != nil {
		return "", 0, err
	}
	name, err := publish(names, func(name string) error {
		key := objectKey(s.prefix, name)
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(buf.Bytes()),
			ContentLength: aws.Int64(n),
			ContentType:   aws.String("application/octet-stream"),
			IfNoneMatch:   aws.String("*"),
		})
		if err != nil {
			if isS3Code(err, "PreconditionFailed", "ConditionalRequestConflict") {
				return domain.ErrBlobExists
			}
			return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
		}
		return nil
	})
	if err != nil {
		return "", 0, err
	}
	return objectKey(s.prefix, name), n, nil
}

// Open streams the object body.
func (s *S3Store) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(location),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) || isS3Code(err, "NotFound") {
			return nil, notFound(location)
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, location, err)
	}
	return out.Body, nil
}

// Delete removes the object. S3 treats missing keys as deleted.
func (s *S3Store) Delete(ctx context.Context, location string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(location),
	})
	if err != nil {
		return fmt.Errorf("delete s3://%s/%s: %w", s.bucket, location, err)
	}
	return nil
}

// List pages through every object under the prefix.
func (s *S3Store) List(ctx context.Context) ([]domain.BlobInfo, error) {
	in := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if p := strings.Trim(s.prefix, "/"); p != "" {
		in.Prefix = aws.String(p + "/")
	}
	var out []domain.BlobInfo
	pager := s3.NewListObjectsV2Paginator(s.client, in)
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s: %w", s.bucket, err)
		}
		for _, obj := range page.Contents {
			info := domain.BlobInfo{Location: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				info.ModTime = *obj.LastModified
			}
			out = append(out, info)
		}
	}
	return out, nil
}

func isS3Code(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, c := range codes {
		if apiErr.ErrorCode() == c {
			return true
		}
	}
	return false
}
