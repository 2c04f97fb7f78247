// media/media.go
package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wfunc/triad/logger"
)

// Resolver turns a stored image reference into a URL a browser can load.
// An empty reference resolves to "".
type Resolver interface {
	URL(ref string) string
}

// PrefixResolver joins relative references onto a base URL.
type PrefixResolver struct {
	BaseURL string
}

func NewPrefixResolver(baseURL string) *PrefixResolver {
	if baseURL == "" {
		baseURL = "/media/"
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &PrefixResolver{BaseURL: baseURL}
}

func (r *PrefixResolver) URL(ref string) string {
	switch {
	case ref == "":
		return ""
	case isAbsolute(ref):
		return ref
	case strings.HasPrefix(ref, r.BaseURL):
		return ref
	}
	return r.BaseURL + strings.TrimLeft(ref, "/")
}

func isAbsolute(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// S3Config describes the bucket holding card images.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PresignTTL      time.Duration
}

// S3Resolver presigns GET URLs for object keys. Absolute URLs pass through,
// and presign failures fall back to the prefix resolver.
type S3Resolver struct {
	bucket   string
	ttl      time.Duration
	presign  *s3.PresignClient
	fallback Resolver
}

func NewS3Resolver(ctx context.Context, cfg S3Config, fallback Resolver) (*S3Resolver, error) {
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &S3Resolver{
		bucket:   cfg.Bucket,
		ttl:      ttl,
		presign:  s3.NewPresignClient(client),
		fallback: fallback,
	}, nil
}

func (r *S3Resolver) URL(ref string) string {
	if ref == "" || isAbsolute(ref) {
		return ref
	}
	req, err := r.presign.PresignGetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(strings.TrimLeft(ref, "/")),
	}, s3.WithPresignExpires(r.ttl))
	if err != nil {
		logger.Log.Warnf("presign %s failed: %v", ref, err)
		return r.fallback.URL(ref)
	}
	return req.URL
}
