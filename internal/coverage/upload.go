package coverage

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/AndreyAkinshin/qgate/internal/config"
)

// Upload backends.
const (
	BackendNone  = "none"
	BackendHTTP  = "http"
	BackendMinio = "minio"
	BackendS3    = "s3"
)

// DefaultUploadTimeout bounds a single upload attempt.
const DefaultUploadTimeout = 30 * time.Second

// Metadata identifies the run an artifact belongs to.
type Metadata struct {
	RunID    string
	Project  string
	Revision string
	Branch   string
	Event    string
}

// Uploader forwards an artifact to a reporting backend and returns where it landed.
type Uploader interface {
	Name() string
	Upload(ctx context.Context, a *Artifact, md Metadata) (string, error)
}

// Deps holds injectable collaborators for building uploaders.
type Deps struct {
	Getenv     func(string) string
	HTTPClient *http.Client
	Secrets    SecretGetter
}

func (d Deps) getenv(key string) string {
	if d.Getenv == nil {
		return os.Getenv(key)
	}
	return d.Getenv(key)
}

// NewUploader builds the uploader configured by cfg. The "none" backend
// yields a nil uploader and no error.
func NewUploader(ctx context.Context, cfg *config.UploadConfig, deps Deps) (Uploader, error) {
	if cfg == nil {
		return nil, nil
	}

	timeout := DefaultUploadTimeout
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("coverage.upload.timeout: %w", err)
		}
		timeout = d
	}

	switch cfg.Backend {
	case BackendNone, "":
		return nil, nil
	case BackendHTTP:
		token, err := ResolveToken(ctx, cfg, deps)
		if err != nil {
			return nil, err
		}
		client := deps.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: timeout}
		}
		return &HTTPUploader{Endpoint: cfg.Endpoint, Service: cfg.Service, Token: token, Client: client}, nil
	case BackendMinio:
		return newMinioUploader(cfg, deps)
	case BackendS3:
		return newS3Uploader(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown coverage upload backend %q", cfg.Backend)
	}
}

// ObjectKey returns the storage key for an artifact:
// <prefix>/<project>/<revision>/<run-id>/<file>.
func ObjectKey(prefix string, md Metadata, a *Artifact) string {
	revision := md.Revision
	if revision == "" {
		revision = "unknown"
	}
	return path.Join(prefix, md.Project, revision, md.RunID, a.Name())
}
