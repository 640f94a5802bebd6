package r2

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"path/filepath"

	"quizforge/internal/config"
	"quizforge/internal/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// ErrDisabled is returned by uploads on a nil client.
var ErrDisabled = errors.New("r2 publishing is not configured")

// Putter is the part of the S3 API the client uses.
type Putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Client publishes rendered quizzes to a Cloudflare R2 bucket.
type Client struct {
	s3         Putter
	bucketName string
	publicURL  string
	log        *logger.Logger
}

// NewClient returns (nil, nil) when cfg is incomplete, so callers can run
// with publishing disabled.
func NewClient(ctx context.Context, cfg config.R2Config, log *logger.Logger) (*Client, error) {
	log = log.With("service", "r2")
	if !cfg.Enabled() {
		log.Warn("R2 not fully configured, quiz publishing disabled")
		return nil, nil
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config for R2: %w", err)
	}
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	log.Info("R2 client initialized", "bucket", cfg.Bucket)
	return newClient(s3Client, cfg.Bucket, cfg.PublicURL, log), nil
}

func newClient(p Putter, bucket, publicURL string, log *logger.Logger) *Client {
	return &Client{s3: p, bucketName: bucket, publicURL: publicURL, log: log}
}

// ObjectKey is the bucket key for a quiz file: quizzes/<quizID>/<filename>.
func ObjectKey(quizID uuid.UUID, filename string) string {
	return fmt.Sprintf("quizzes/%s/%s", quizID, filepath.Base(filename))
}

// UploadQuizFile stores content under ObjectKey and returns its public URL.
func (c *Client) UploadQuizFile(ctx context.Context, quizID uuid.UUID, filename string, content io.Reader) (string, error) {
	if c == nil || c.s3 == nil {
		return "", ErrDisabled
	}

	key := ObjectKey(quizID, filename)
	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucketName),
		Key:         aws.String(key),
		Body:        content,
		ACL:         types.ObjectCannedACLPublicRead,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to R2 (key: %s): %w", key, err)
	}

	base, err := url.Parse(c.publicURL)
	if err != nil {
		return "", fmt.Errorf("invalid R2 public base URL: %w", err)
	}
	base.Path = path.Join(base.Path, key)

	publicURL := base.String()
	c.log.Info("uploaded quiz file", "url", publicURL)
	return publicURL, nil
}
