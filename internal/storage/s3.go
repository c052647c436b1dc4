package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"photopost-bot/internal/config"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

// S3Storage stores photos in an S3-compatible bucket with public-read ACL.
type S3Storage struct {
	client     *s3.Client
	bucket     string
	publicBase string
}

// NewS3 creates the S3 client for the configured endpoint and static credentials.
func NewS3(ctx context.Context, cfg config.S3) (*S3Storage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = cfg.PathStyle
	})

	publicBase, err := publicBaseURL(cfg)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("bucket", cfg.Bucket).
		Str("endpoint", cfg.Endpoint).
		Bool("path_style", cfg.PathStyle).
		Msg("S3 storage client initialized")

	return &S3Storage{client: client, bucket: cfg.Bucket, publicBase: publicBase}, nil
}

// publicBaseURL returns the URL prefix objects are reachable under.
func publicBaseURL(cfg config.S3) (string, error) {
	if cfg.PublicURL != "" {
		return strings.TrimRight(cfg.PublicURL, "/"), nil
	}
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil || endpoint.Host == "" {
		return "", fmt.Errorf("invalid S3 endpoint %q", cfg.Endpoint)
	}
	if cfg.PathStyle {
		return fmt.Sprintf("%s://%s/%s", endpoint.Scheme, endpoint.Host, cfg.Bucket), nil
	}
	return fmt.Sprintf("%s://%s.%s", endpoint.Scheme, cfg.Bucket, endpoint.Host), nil
}

func (s *S3Storage) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if contentType == "" {
		contentType = DefaultContentType
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	location := s.Location(key)
	log.Info().Str("key", key).Int("size", len(data)).Str("url", location).Msg("Photo uploaded")

	// The upload already succeeded; a failed confirmation is only worth a warning.
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Could not confirm uploaded object")
	}
	return location, nil
}

func (s *S3Storage) Get(ctx context.Context, location string) ([]byte, error) {
	key := s.keyFromLocation(location)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check %s: %w", key, err)
	}
	return true, nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *S3Storage) List(ctx context.Context, prefix string) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *S3Storage) Location(key string) string {
	return s.publicBase + "/" + strings.TrimPrefix(key, "/")
}

// keyFromLocation maps a stored URL back to its object key. Locations written under a
// different addressing style are still understood.
func (s *S3Storage) keyFromLocation(location string) string {
	if strings.HasPrefix(location, s.publicBase+"/") {
		return strings.TrimPrefix(location, s.publicBase+"/")
	}
	u, err := url.Parse(location)
	if err != nil || u.Host == "" {
		return strings.TrimPrefix(location, "/")
	}
	p := strings.TrimPrefix(u.Path, "/")
	if !strings.HasPrefix(u.Host, s.bucket+".") {
		p = strings.TrimPrefix(p, s.bucket+"/")
	}
	return p
}
