// Package assets signs download URLs for tenant branding files kept in
// S3-compatible object storage.
package assets

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const PresignExpiry = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

var ErrNotConfigured = errors.New("object storage not configured")

type S3Config struct {
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
}

// S3Presigner issues presigned GET URLs for objects in one bucket.
type S3Presigner struct {
	bucket string
	client *s3.PresignClient
}

// NewS3Presigner builds the presign client. Static credentials are used
// when AccessKey is set, otherwise the default AWS credential chain. A
// BaseEndpoint switches to path-style addressing for MinIO and similar.
func NewS3Presigner(ctx context.Context, c S3Config) (*S3Presigner, error) {
	if c.Bucket == "" {
		return nil, ErrNotConfigured
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, ""),
		))
	}
	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Presigner{bucket: c.Bucket, client: newS3PresignClient(client)}, nil
}

// PresignGet returns a URL valid for PresignExpiry.
func (p *S3Presigner) PresignGet(ctx context.Context, key string) (string, error) {
	bucket := p.bucket
	req, err := presignGetObject(p.client, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(PresignExpiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
