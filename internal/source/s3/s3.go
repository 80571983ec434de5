// Package s3 reads the JSON export of the dataset from an S3-compatible
// bucket (AWS S3 or MinIO).
package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"servicecalls/internal/core"
	"servicecalls/internal/source"
)

var _ source.Fetcher = (*Source)(nil)

type Config struct {
	Bucket    string
	Key       string
	Region    string
	Endpoint  string // optional, enables a custom endpoint such as MinIO
	PathStyle bool

	// Optional static credentials; the default chain is used otherwise.
	AccessKeyID     string
	SecretAccessKey string

	HTTPClient *http.Client
	Location   *time.Location
}

type Source struct {
	client   *s3.Client
	bucket   string
	key      string
	location *time.Location
}

func New(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket required")
	}
	if cfg.Key == "" {
		cfg.Key = "service_calls.json"
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}
	})
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Source{client: client, bucket: cfg.Bucket, key: cfg.Key, location: loc}, nil
}

// FetchRecords downloads and decodes the export object.
func (s *Source) FetchRecords(ctx context.Context) ([]core.ServiceCallRecord, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &s.key})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer out.Body.Close()
	return source.DecodeRecords(out.Body, s.location)
}
