package history

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "usdgflow/config"
	"usdgflow/logger"
)

// Mirror uploads the history log file to S3 after each append. The local
// JSONL file stays the single source of truth; the mirror is a durability
// copy of the same append-only log.
type Mirror struct {
	client *s3.Client
	bucket string
	key    string
	log    *logger.Log
}

// NewMirror builds an S3 mirror from configuration. Returns an error when the
// AWS configuration or credentials cannot be resolved.
func NewMirror(cfg appconfig.S3MirrorConfig) (*Mirror, error) {
	ctx := context.Background()

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	key := cfg.Key
	if key == "" {
		key = "usdgflow/volume-history.log"
	}

	return &Mirror{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		key:    key,
		log:    logger.GetLogger(),
	}, nil
}

// Upload copies the log file at path to the configured bucket/key.
func (m *Mirror) Upload(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open history log for mirroring: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat history log: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(m.key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("application/x-ndjson"),
	}); err != nil {
		return fmt.Errorf("failed to upload history log: %w", err)
	}

	logger.IncrementMirrorUpload(info.Size())
	m.log.WithComponent("history").WithFields(logger.Fields{
		"bucket": m.bucket,
		"key":    m.key,
		"bytes":  info.Size(),
	}).Debug("mirrored history log to s3")

	return nil
}
