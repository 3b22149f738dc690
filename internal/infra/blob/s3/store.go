// Package s3 implements the blob store on an S3 or MinIO compatible
// service. Single bucket; keys map to object keys directly.
package s3

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"aquacore/internal/infra/blob/core"
)

// Compile-time contract assertion.
var _ core.Store = (*Store)(nil)

// Store targets one bucket of an S3-compatible service.
type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// Config holds explicit construction parameters; production setups rely on
// environment variables instead.
type Config struct {
	Region    string
	Bucket    string
	Endpoint  string // optional, for MinIO
	PathStyle bool
}

// Environment variables:
//   AQUACORE_BLOB_S3_BUCKET=<bucket> (required)
//   AQUACORE_BLOB_S3_REGION=<region> (default us-east-1)
//   AQUACORE_BLOB_S3_ENDPOINT=<url> (optional, for MinIO)
//   AQUACORE_BLOB_S3_PATH_STYLE=true|false (default false)
//   AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN (optional)

// New creates an S3 blob store from Config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Store{client: client, presign: s3.NewPresignClient(client), bucket: cfg.Bucket}, nil
}

// OpenFromEnv constructs an S3 store from the process environment.
func OpenFromEnv(ctx context.Context) (*Store, error) {
	bucket := os.Getenv("AQUACORE_BLOB_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("AQUACORE_BLOB_S3_BUCKET required for s3 driver")
	}
	return New(ctx, Config{
		Bucket:    bucket,
		Region:    os.Getenv("AQUACORE_BLOB_S3_REGION"),
		Endpoint:  os.Getenv("AQUACORE_BLOB_S3_ENDPOINT"),
		PathStyle: strings.EqualFold(os.Getenv("AQUACORE_BLOB_S3_PATH_STYLE"), "true"),
	})
}

func (s *Store) Driver() core.Driver { return core.DriverS3 }

// Put uploads the object, replacing any existing one.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	input := &s3.PutObjectInput{Bucket: &s.bucket, Key: &key, Body: r}
	if opts.ContentType != "" {
		input.ContentType = &opts.ContentType
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return core.Info{}, err
	}
	return s.Head(ctx, key)
}

func (s *Store) Get(ctx context.Context, key string) (core.Info, io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return core.Info{}, nil, err
	}
	return s.objectInfo(key, out.ContentLength, out.ContentType, out.ETag, out.LastModified), out.Body, nil
}

func (s *Store) Head(ctx context.Context, key string) (core.Info, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return core.Info{}, err
	}
	return s.objectInfo(key, out.ContentLength, out.ContentType, out.ETag, out.LastModified), nil
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &key}); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]core.Info, error) {
	var infos []core.Info
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket: &s.bucket, Prefix: &prefix, ContinuationToken: token,
		})
		if err != nil {
			return nil, err
		}
		for _, obj := range out.Contents {
			infos = append(infos, core.Info{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
		if out.IsTruncated == nil || !*out.IsTruncated || out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func (s *Store) PresignURL(ctx context.Context, key string, opts core.SignedURLOptions) (string, error) {
	if opts.Method != "" && !strings.EqualFold(opts.Method, "GET") {
		return "", core.ErrUnsupported
	}
	expiry := opts.Expiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	out, err := s.presign.PresignGetObject(ctx,
		&s3.GetObjectInput{Bucket: &s.bucket, Key: &key},
		func(po *s3.PresignOptions) { po.Expires = expiry },
	)
	if err != nil {
		return "", err
	}
	return out.URL, nil
}

func (s *Store) objectInfo(key string, size *int64, contentType, etag *string, lastModified *time.Time) core.Info {
	info := core.Info{Key: key, Size: aws.ToInt64(size), ContentType: aws.ToString(contentType)}
	info.ETag = strings.Trim(aws.ToString(etag), `"`)
	if lastModified != nil {
		info.LastModified = *lastModified
	} else {
		info.LastModified = time.Now().UTC()
	}
	return info
}
