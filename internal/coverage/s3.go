package coverage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/AndreyAkinshin/qgate/internal/config"
)

// s3Putter is the subset of the S3 API used for uploads.
type s3Putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader stores the artifact in an AWS S3 bucket.
type S3Uploader struct {
	Bucket string
	Prefix string
	client s3Putter
}

func newS3Uploader(ctx context.Context, cfg *config.UploadConfig) (*S3Uploader, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg.Region)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Uploader{Bucket: cfg.Bucket, Prefix: cfg.Prefix, client: client}, nil
}

// Name returns the backend name.
func (u *S3Uploader) Name() string {
	return BackendS3
}

// Upload stores the artifact under ObjectKey.
func (u *S3Uploader) Upload(ctx context.Context, a *Artifact, md Metadata) (string, error) {
	key := ObjectKey(u.Prefix, md, a)
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(a.Data),
		ContentLength: aws.Int64(int64(len(a.Data))),
		ContentType:   aws.String(a.ContentType),
		Metadata:      userMetadata(md),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("put s3://%s/%s: %s: %s", u.Bucket, key, apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
		return "", fmt.Errorf("put s3://%s/%s: %w", u.Bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", u.Bucket, key), nil
}
