package transport

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/narwhalmedia/appupdater/internal/domain/update"
)

// ObjectGetter is the subset of the S3 client used by S3Transport.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config configures the S3 client.
type S3Config struct {
	Region string
	// Endpoint overrides the service endpoint, e.g. for MinIO.
	Endpoint     string
	UsePathStyle bool
}

// S3Transport fetches artifacts addressed as s3://bucket/key.
type S3Transport struct {
	client ObjectGetter
	flight inflight
	logger *zap.Logger
}

// NewS3Transport creates an S3 transport using the default AWS credential chain.
func NewS3Transport(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3Transport, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewS3TransportWithClient(client, logger), nil
}

// NewS3TransportWithClient creates an S3 transport around an existing client.
func NewS3TransportWithClient(client ObjectGetter, logger *zap.Logger) *S3Transport {
	return &S3Transport{
		client: client,
		logger: logger.Named("s3-transport"),
	}
}

// Download implements update.Transport. Headers do not apply to S3 and are ignored.
func (t *S3Transport) Download(ctx context.Context, rawURL, dest string, headers map[string]string, cb update.Callback) {
	ctx, done := t.flight.begin(ctx)
	defer done()

	cb.OnStart(rawURL)
	err := t.fetch(ctx, rawURL, dest, cb)
	if err != nil {
		t.logger.Debug("fetch ended with error", zap.String("url", rawURL), zap.Error(err))
	}
	report(ctx, cb, dest, err)
}

// Cancel implements update.Transport.
func (t *S3Transport) Cancel() {
	t.flight.abort()
}

func (t *S3Transport) fetch(ctx context.Context, rawURL, dest string, cb update.Callback) error {
	bucket, key, err := ParseS3URL(rawURL)
	if err != nil {
		return err
	}

	out, err := t.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to get object: %w", err)
	}
	defer out.Body.Close()

	total := aws.ToInt64(out.ContentLength)
	if out.ContentLength == nil {
		total = -1
	}

	t.logger.Info("downloading",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int64("content_length", total),
	)

	return writeFile(ctx, dest, out.Body, total, cb)
}

// ParseS3URL splits s3://bucket/key into its parts.
func ParseS3URL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid s3 url: %w", err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("%w: %s", update.ErrUnsupportedScheme, u.Scheme)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 url %q: bucket and key are required", rawURL)
	}
	return u.Host, key, nil
}
