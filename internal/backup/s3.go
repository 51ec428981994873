package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// ObjectClient is the part of *s3.Client the uploader uses.
type ObjectClient interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// Uploader keeps backup copies in a bucket.
type Uploader struct {
	client ObjectClient
	bucket string
}

func NewUploader(client ObjectClient, bucket string) *Uploader {
	return &Uploader{client: client, bucket: bucket}
}

// NewS3Uploader builds an Uploader from cfg. Static credentials are used
// when AccessKey is set, the default AWS chain otherwise. A custom endpoint
// (MinIO and friends) switches to path-style addressing.
func NewS3Uploader(ctx context.Context, cfg S3Config) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, ErrNoBucket
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewUploader(client, cfg.Bucket), nil
}

// ObjectKey places a backup file under a dated prefix.
func ObjectKey(now time.Time, name string) string {
	d := now.UTC()
	return fmt.Sprintf("backups/%d/%02d/%02d/%s", d.Year(), d.Month(), d.Day(), name)
}

// Upload stores data and returns its object key.
func (u *Uploader) Upload(ctx context.Context, now time.Time, data []byte) (string, error) {
	key := ObjectKey(now, FileName(now))
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("upload backup %s: %w", key, err)
	}
	return key, nil
}

func (u *Uploader) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := u.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download backup %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read backup %s: %w", key, err)
	}
	return data, nil
}
