// Package archive exports interaction logs to S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"goto-jobdiva-bridge/internal/models"
)

// ErrDisabled is returned when no bucket is configured.
var ErrDisabled = errors.New("log archive is not configured")

// Config selects the bucket and endpoint.
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	PathStyle bool
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver uploads JSON snapshots of interaction logs.
type S3Archiver struct {
	client putObjectAPI
	bucket string
	now    func() time.Time
}

// NewS3Archiver builds an archiver from cfg. An empty bucket yields a disabled archiver.
func NewS3Archiver(cfg Config) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		log.Info().Msg("S3_BUCKET is not set. Log archiving disabled.")
		return &S3Archiver{now: time.Now}, nil
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("S3 credentials not available - set S3_ACCESS_KEY and S3_SECRET_KEY")
	}

	endpoint := cfg.Endpoint
	if endpoint != "" && strings.Contains(endpoint, cfg.Bucket+".") {
		endpoint = strings.Replace(endpoint, cfg.Bucket+".", "", 1)
		log.Warn().Str("originalEndpoint", cfg.Endpoint).Str("cleanedEndpoint", endpoint).Str("bucket", cfg.Bucket).
			Msg("Cleaned bucket name from S3 endpoint - endpoint should not contain bucket name")
	}

	usePathStyle := cfg.PathStyle
	if strings.Contains(cfg.Bucket, ".") {
		usePathStyle = true
		log.Info().Str("bucket", cfg.Bucket).Msg("Bucket name contains dots, forcing path-style URLs to avoid SSL certificate issues")
	}

	awsCfg := aws.Config{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = usePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	log.Info().Str("bucket", cfg.Bucket).Str("region", cfg.Region).Str("endpoint", endpoint).Msg("S3 log archiver initialized")
	return &S3Archiver{client: client, bucket: cfg.Bucket, now: time.Now}, nil
}

// Enabled reports whether a bucket is configured.
func (a *S3Archiver) Enabled() bool {
	return a != nil && a.client != nil
}

// Key returns the object key for a snapshot taken at t.
func Key(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("interaction-logs/%s/%s/%s/%d.json", t.Format("2006"), t.Format("01"), t.Format("02"), t.Unix())
}

// ArchiveLogs uploads logs as one JSON array and returns the object key.
func (a *S3Archiver) ArchiveLogs(ctx context.Context, logs []models.InteractionLog) (string, error) {
	if !a.Enabled() {
		return "", ErrDisabled
	}
	if logs == nil {
		logs = []models.InteractionLog{}
	}
	data, err := json.Marshal(logs)
	if err != nil {
		return "", fmt.Errorf("marshal interaction logs: %w", err)
	}

	key := Key(a.now())
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		log.Error().Err(err).Str("bucket", a.bucket).Str("key", key).Msg("Failed to upload log archive to S3")
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Info().Str("bucket", a.bucket).Str("key", key).Int("count", len(logs)).Msg("Interaction logs archived to S3")
	return key, nil
}
