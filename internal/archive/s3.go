package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
)

// S3Destination writes JSONL snapshots to an S3-compatible bucket. Each
// snapshot becomes its own timestamped object under the configured prefix.
type S3Destination struct {
	client   *s3.Client
	bucket   string
	prefix   string
	compress bool

	// now is the injected clock; tests override it.
	now func() time.Time
}

// NewS3Destination creates an S3 destination. If endpoint is non-empty,
// path-style addressing is enabled (for MinIO and similar).
func NewS3Destination(ctx context.Context, bucket, prefix, region, endpoint string, compress bool) (*S3Destination, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Destination{
		client:   s3.NewFromConfig(cfg, s3opts...),
		bucket:   bucket,
		prefix:   prefix,
		compress: compress,
		now:      time.Now,
	}, nil
}

// Write uploads one snapshot as a new timestamped object.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	key := fmt.Sprintf("%sevents-%s.jsonl", d.prefix, d.now().UTC().Format("20060102T150405Z"))
	contentType := "application/x-ndjson"

	input := &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	}
	if d.compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return fmt.Errorf("compress snapshot: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("compress snapshot: %w", err)
		}
		input.Key = aws.String(key + ".gz")
		input.Body = bytes.NewReader(buf.Bytes())
		encoding := "gzip"
		input.ContentEncoding = &encoding
	}

	if _, err := d.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}
