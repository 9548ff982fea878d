package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type S3Options struct {
	Bucket   string
	Region   string
	Endpoint string // leave empty for real AWS
	Key      string
	Secret   string
	BaseURL  string // public URL prefix; defaults to the bucket's AWS URL
}

// S3 keeps assets in an S3-compatible bucket (AWS S3, MinIO, R2, Spaces).
type S3 struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

func NewS3(ctx context.Context, o S3Options) (*S3, error) {
	if o.Bucket == "" {
		return nil, fmt.Errorf("media/s3: bucket is not configured")
	}
	if o.Region == "" {
		o.Region = "us-east-1"
	}
	opts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(o.Region)}
	// Static credentials are required for MinIO / R2 / Spaces.
	if o.Key != "" && o.Secret != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.Key, o.Secret, ""),
		))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("media/s3: load config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if o.Endpoint != "" {
		clientOpts = append(clientOpts, func(so *s3.Options) {
			so.BaseEndpoint = aws.String(o.Endpoint)
			so.UsePathStyle = true
		})
	}
	baseURL := strings.TrimRight(o.BaseURL, "/")
	if baseURL == "" || strings.HasPrefix(baseURL, "/") {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", o.Bucket, o.Region)
	}
	return &S3{client: s3.NewFromConfig(cfg, clientOpts...), bucket: o.Bucket, baseURL: baseURL}, nil
}

func (d *S3) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	// Buffer so the SDK can sign and retry with a seekable body; uploads are
	// size-capped before they get here.
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("media/s3: read: %w", err)
	}
	in := &s3.PutObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := d.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("media/s3: put %s: %w", key, err)
	}
	return nil
}

func (d *S3) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("media/s3: get %s: %w", key, err)
	}
	return out.Body, nil
}

func (d *S3) Delete(ctx context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	_, err = d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("media/s3: delete %s: %w", key, err)
	}
	return nil
}

func (d *S3) URL(key string) string {
	return d.baseURL + "/" + strings.TrimLeft(key, "/")
}
