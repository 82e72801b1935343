package coverage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndreyAkinshin/qgate/internal/config"
	"github.com/AndreyAkinshin/qgate/internal/workspace"
)

const sampleReport = `<?xml version="1.0" ?>
<coverage version="7.2.7" timestamp="1700000000000" lines-valid="200" lines-covered="174" line-rate="0.87" branches-covered="0" branches-valid="0" branch-rate="0" complexity="0">
	<sources><source>/src/elbow</source></sources>
	<packages>
		<package name="." line-rate="0.87" branch-rate="0" complexity="0"></package>
	</packages>
</coverage>
`

func sampleMetadata() Metadata {
	return Metadata{RunID: "run-1", Project: "elbow", Revision: "abc123", Branch: "main", Event: "push"}
}

func memTree(t *testing.T, files map[string]string) *workspace.Tree {
	t.Helper()
	fs := memfs.New()
	for name, content := range files {
		require.NoError(t, util.WriteFile(fs, name, []byte(content), 0o644))
	}
	return workspace.New(fs, "/work")
}

func TestDiscover(t *testing.T) {
	t.Run("xml preferred", func(t *testing.T) {
		tree := memTree(t, map[string]string{"coverage.xml": sampleReport, ".coverage": "SQLite format 3\x00"})
		a, err := Discover(tree, "")
		require.NoError(t, err)
		require.NotNil(t, a)
		assert.Equal(t, "coverage.xml", a.Path)
		assert.Equal(t, FormatCobertura, a.Format)
		assert.Contains(t, a.ContentType, "xml")
		require.NotNil(t, a.Summary)
		assert.InDelta(t, 87.0, a.Summary.Percent(), 0.001)
	})

	t.Run("data file fallback", func(t *testing.T) {
		tree := memTree(t, map[string]string{".coverage": "SQLite format 3\x00"})
		a, err := Discover(tree, "")
		require.NoError(t, err)
		require.NotNil(t, a)
		assert.Equal(t, FormatData, a.Format)
		assert.Nil(t, a.Summary)
	})

	t.Run("configured report only", func(t *testing.T) {
		tree := memTree(t, map[string]string{"coverage.xml": sampleReport, "reports/cov.xml": sampleReport})
		a, err := Discover(tree, "reports/cov.xml")
		require.NoError(t, err)
		require.NotNil(t, a)
		assert.Equal(t, "reports/cov.xml", a.Path)
		assert.Equal(t, "cov.xml", a.Name())
	})

	t.Run("none", func(t *testing.T) {
		tree := memTree(t, map[string]string{"setup.py": ""})
		a, err := Discover(tree, "")
		require.NoError(t, err)
		assert.Nil(t, a)
	})

	t.Run("malformed xml", func(t *testing.T) {
		tree := memTree(t, map[string]string{"coverage.xml": `<?xml version="1.0" ?><coverage line-rate="x"`})
		_, err := Discover(tree, "")
		assert.Error(t, err)
	})
}

func TestParseCobertura(t *testing.T) {
	s, err := ParseCobertura([]byte(sampleReport))
	require.NoError(t, err)
	assert.Equal(t, 200, s.LinesValid)
	assert.Equal(t, 174, s.LinesCovered)
	assert.Equal(t, 1, s.Packages)
	assert.Equal(t, "87.0% lines (174/200)", s.String())

	_, err = ParseCobertura([]byte(`<coverage line-rate="1.5"></coverage>`))
	assert.Error(t, err)
}

func TestObjectKey(t *testing.T) {
	a := &Artifact{Path: "reports/coverage.xml"}
	assert.Equal(t, "ci/elbow/abc123/run-1/coverage.xml", ObjectKey("ci", sampleMetadata(), a))
	assert.Equal(t, "elbow/unknown/run-1/coverage.xml", ObjectKey("", Metadata{RunID: "run-1", Project: "elbow"}, a))
}

func TestHTTPUploader(t *testing.T) {
	var gotQuery, gotAuth, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Location", "https://cov.example.com/elbow/abc123")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	a, err := NewArtifact("coverage.xml", []byte(sampleReport))
	require.NoError(t, err)

	u := &HTTPUploader{Endpoint: srv.URL + "/upload", Service: "qgate", Token: "s3cret", Client: srv.Client()}
	loc, err := u.Upload(context.Background(), a, sampleMetadata())
	require.NoError(t, err)

	assert.Equal(t, "https://cov.example.com/elbow/abc123", loc)
	assert.Equal(t, "Bearer s3cret", gotAuth)
	assert.Equal(t, a.ContentType, gotType)
	assert.Equal(t, sampleReport, gotBody)
	assert.Contains(t, gotQuery, "commit=abc123")
	assert.Contains(t, gotQuery, "build=run-1")
	assert.Contains(t, gotQuery, "service=qgate")
}

func TestHTTPUploader_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "token rejected", http.StatusUnauthorized)
	}))
	defer srv.Close()

	u := &HTTPUploader{Endpoint: srv.URL, Client: srv.Client()}
	_, err := u.Upload(context.Background(), &Artifact{Path: "coverage.xml", Data: []byte("x")}, sampleMetadata())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "token rejected")
}

func TestHTTPUploader_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	u := &HTTPUploader{Endpoint: url, Client: http.DefaultClient}
	_, err := u.Upload(context.Background(), &Artifact{Path: "coverage.xml", Data: []byte("x")}, sampleMetadata())
	assert.Error(t, err)
}

type fakeSecrets struct {
	value *string
	err   error
	asked string
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.asked = aws.ToString(in.SecretId)
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: f.value}, nil
}

func TestResolveToken(t *testing.T) {
	env := func(m map[string]string) func(string) string {
		return func(k string) string { return m[k] }
	}
	ctx := context.Background()

	token, err := ResolveToken(ctx, &config.UploadConfig{}, Deps{})
	require.NoError(t, err)
	assert.Empty(t, token)

	token, err = ResolveToken(ctx, &config.UploadConfig{TokenEnv: "COV_TOKEN"}, Deps{Getenv: env(map[string]string{"COV_TOKEN": "t1"})})
	require.NoError(t, err)
	assert.Equal(t, "t1", token)

	_, err = ResolveToken(ctx, &config.UploadConfig{TokenEnv: "COV_TOKEN"}, Deps{Getenv: env(nil)})
	assert.ErrorIs(t, err, ErrTokenNotSet)

	secrets := &fakeSecrets{value: aws.String("t2")}
	token, err = ResolveToken(ctx, &config.UploadConfig{TokenSecret: "ci/coverage", TokenEnv: "COV_TOKEN"}, Deps{Secrets: secrets, Getenv: env(nil)})
	require.NoError(t, err)
	assert.Equal(t, "t2", token)
	assert.Equal(t, "ci/coverage", secrets.asked)

	secrets = &fakeSecrets{err: &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "no such secret"}}
	_, err = ResolveToken(ctx, &config.UploadConfig{TokenSecret: "ci/coverage"}, Deps{Secrets: secrets})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ResourceNotFoundException")

	secrets = &fakeSecrets{value: aws.String("")}
	_, err = ResolveToken(ctx, &config.UploadConfig{TokenSecret: "ci/coverage"}, Deps{Secrets: secrets})
	assert.Error(t, err)
}

type fakePutter struct {
	bucket, key string
	opts        minio.PutObjectOptions
	body        string
	err         error
}

func (f *fakePutter) PutObject(_ context.Context, bucket, key string, r io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.bucket, f.key, f.opts = bucket, key, opts
	data, _ := io.ReadAll(r)
	f.body = string(data)
	return minio.UploadInfo{Bucket: bucket, Key: key}, f.err
}

func TestMinioUploader(t *testing.T) {
	putter := &fakePutter{}
	u := &MinioUploader{Bucket: "coverage", Prefix: "ci", store: putter}

	a, err := NewArtifact("coverage.xml", []byte(sampleReport))
	require.NoError(t, err)

	loc, err := u.Upload(context.Background(), a, sampleMetadata())
	require.NoError(t, err)
	assert.Equal(t, "s3://coverage/ci/elbow/abc123/run-1/coverage.xml", loc)
	assert.Equal(t, "coverage", putter.bucket)
	assert.Equal(t, sampleReport, putter.body)
	assert.Equal(t, a.ContentType, putter.opts.ContentType)
	assert.Equal(t, "main", putter.opts.UserMetadata["branch"])

	putter.err = errors.New("connection refused")
	_, err = u.Upload(context.Background(), a, sampleMetadata())
	assert.Error(t, err)
}

type fakeS3 struct {
	input *s3.PutObjectInput
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3Uploader(t *testing.T) {
	client := &fakeS3{}
	u := &S3Uploader{Bucket: "ci-coverage", client: client}

	a := &Artifact{Path: ".coverage", Data: []byte("data"), ContentType: "application/octet-stream"}
	loc, err := u.Upload(context.Background(), a, sampleMetadata())
	require.NoError(t, err)
	assert.Equal(t, "s3://ci-coverage/elbow/abc123/run-1/.coverage", loc)
	assert.Equal(t, "ci-coverage", aws.ToString(client.input.Bucket))
	assert.Equal(t, int64(4), aws.ToInt64(client.input.ContentLength))
	assert.Equal(t, "run-1", client.input.Metadata["run-id"])

	client.err = &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
	_, err = u.Upload(context.Background(), a, sampleMetadata())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessDenied")
}

func TestNewUploader(t *testing.T) {
	ctx := context.Background()

	u, err := NewUploader(ctx, &config.UploadConfig{Backend: "none"}, Deps{})
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = NewUploader(ctx, nil, Deps{})
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = NewUploader(ctx, &config.UploadConfig{Backend: "http", Endpoint: "https://cov.example.com"}, Deps{})
	require.NoError(t, err)
	assert.Equal(t, BackendHTTP, u.Name())

	u, err = NewUploader(ctx, &config.UploadConfig{Backend: "minio", Endpoint: "localhost:9000", Bucket: "cov"}, Deps{Getenv: func(string) string { return "key" }})
	require.NoError(t, err)
	assert.Equal(t, BackendMinio, u.Name())

	_, err = NewUploader(ctx, &config.UploadConfig{Backend: "ftp"}, Deps{})
	assert.Error(t, err)

	_, err = NewUploader(ctx, &config.UploadConfig{Backend: "http", Timeout: "soon"}, Deps{})
	assert.Error(t, err)
}
