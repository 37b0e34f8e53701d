package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	customErrors "github.com/clipstream/account-service/internal/account/errors"
	appConfig "github.com/clipstream/account-service/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Store uploads media to an S3-compatible bucket (AWS or MinIO behind a
// custom endpoint).
type S3Store struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

func NewS3Store(ctx context.Context, cfg *appConfig.Config) (*S3Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, customErrors.WrapInternal(err, "load s3 config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:  client,
		bucket:  cfg.S3Bucket,
		baseURL: strings.TrimRight(cfg.S3PublicBaseURL, "/"),
	}, nil
}

func storageKey() string {
	d := time.Now()
	return fmt.Sprintf("media/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *S3Store) Put(ctx context.Context, up Upload) (Object, error) {
	if up.Body == nil {
		return Object{}, customErrors.NewInvalidArgument("empty upload body")
	}

	key := storageKey()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          up.Body,
		ContentLength: aws.Int64(up.Size),
		ContentType:   aws.String(up.ContentType),
	})
	if err != nil {
		return Object{}, customErrors.WrapUpload(err, "put object")
	}

	return Object{
		URL:   fmt.Sprintf("%s/%s", s.baseURL, key),
		Bytes: up.Size,
	}, nil
}
