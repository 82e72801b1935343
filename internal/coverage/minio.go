package coverage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/AndreyAkinshin/qgate/internal/config"
)

// Default credential variables for the minio backend.
const (
	DefaultAccessKeyEnv = "MINIO_ACCESS_KEY"
	DefaultSecretKeyEnv = "MINIO_SECRET_KEY"
)

// objectPutter is the subset of the MinIO client used for uploads.
type objectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioUploader stores the artifact in an S3-compatible bucket.
type MinioUploader struct {
	Endpoint string
	Bucket   string
	Prefix   string
	store    objectPutter
}

func newMinioUploader(cfg *config.UploadConfig, deps Deps) (*MinioUploader, error) {
	accessEnv := cfg.AccessKeyEnv
	if accessEnv == "" {
		accessEnv = DefaultAccessKeyEnv
	}
	secretEnv := cfg.SecretKeyEnv
	if secretEnv == "" {
		secretEnv = DefaultSecretKeyEnv
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(deps.getenv(accessEnv), deps.getenv(secretEnv), ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinioUploader{
		Endpoint: cfg.Endpoint,
		Bucket:   cfg.Bucket,
		Prefix:   cfg.Prefix,
		store:    client,
	}, nil
}

// Name returns the backend name.
func (u *MinioUploader) Name() string {
	return BackendMinio
}

// Upload stores the artifact under ObjectKey.
func (u *MinioUploader) Upload(ctx context.Context, a *Artifact, md Metadata) (string, error) {
	key := ObjectKey(u.Prefix, md, a)
	_, err := u.store.PutObject(ctx, u.Bucket, key, bytes.NewReader(a.Data), int64(len(a.Data)), minio.PutObjectOptions{
		ContentType:  a.ContentType,
		UserMetadata: userMetadata(md),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", u.Bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", u.Bucket, key), nil
}

// userMetadata returns object metadata describing the run.
func userMetadata(md Metadata) map[string]string {
	m := map[string]string{"run-id": md.RunID}
	if md.Revision != "" {
		m["revision"] = md.Revision
	}
	if md.Branch != "" {
		m["branch"] = md.Branch
	}
	if md.Event != "" {
		m["event"] = md.Event
	}
	return m
}
