package assets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func stubAWS(t *testing.T) {
	t.Helper()
	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	origNewPre := newS3PresignClient
	origGet := presignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
		presignGetObject = origGet
	})
}

func TestNewS3Presigner_AppliesOptions(t *testing.T) {
	stubAWS(t)

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				t.Fatalf("load options fn error: %v", err)
			}
		}
		if lo.Region != "eu-west-1" {
			t.Fatalf("region not applied: %q", lo.Region)
		}
		if lo.Credentials == nil {
			t.Fatalf("static credentials not applied")
		}
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &s3.Client{}
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		if c == nil {
			t.Fatalf("nil client passed to presign")
		}
		return &s3.PresignClient{}
	}

	p, err := NewS3Presigner(context.Background(), S3Config{
		Region: "eu-west-1", Bucket: "branding", AccessKey: "ak", SecretKey: "sk",
		BaseEndpoint: "http://127.0.0.1:9000",
	})
	if err != nil {
		t.Fatalf("NewS3Presigner err: %v", err)
	}
	if p == nil {
		t.Fatal("nil presigner")
	}
	if opts.BaseEndpoint == nil || *opts.BaseEndpoint != "http://127.0.0.1:9000" {
		t.Fatalf("BaseEndpoint mismatch: %v", opts.BaseEndpoint)
	}
	if !opts.UsePathStyle {
		t.Fatal("expected path-style addressing with custom endpoint")
	}
}

func TestNewS3Presigner_Errors(t *testing.T) {
	stubAWS(t)

	if _, err := NewS3Presigner(context.Background(), S3Config{Region: "us-east-1"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}
	if _, err := NewS3Presigner(context.Background(), S3Config{Bucket: "b"}); err == nil || err.Error() != "load-fail" {
		t.Fatalf("expected load-fail, got %v", err)
	}
}

func TestPresignGet(t *testing.T) {
	stubAWS(t)

	var gotBucket, gotKey string
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		gotBucket, gotKey = *in.Bucket, *in.Key
		var po s3.PresignOptions
		for _, fn := range optFns {
			fn(&po)
		}
		if po.Expires != PresignExpiry {
			t.Fatalf("expiry mismatch: %v", po.Expires)
		}
		return &v4.PresignedHTTPRequest{URL: "https://signed.example/logo.png?sig=1"}, nil
	}

	p := &S3Presigner{bucket: "branding", client: &s3.PresignClient{}}
	url, err := p.PresignGet(context.Background(), "tenants/acme/logo.png")
	if err != nil {
		t.Fatalf("PresignGet err: %v", err)
	}
	if url != "https://signed.example/logo.png?sig=1" || gotBucket != "branding" || gotKey != "tenants/acme/logo.png" {
		t.Fatalf("unexpected presign: url=%q bucket=%q key=%q", url, gotBucket, gotKey)
	}

	presignGetObject = func(*s3.PresignClient, context.Context, *s3.GetObjectInput, ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("sign-fail")
	}
	if _, err := p.PresignGet(context.Background(), "k"); err == nil {
		t.Fatal("expected error")
	}
}
