package coverage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// HTTPUploader posts the artifact to a coverage reporting service.
type HTTPUploader struct {
	Endpoint string
	Service  string
	Token    string
	Client   *http.Client
}

// Name returns the backend name.
func (u *HTTPUploader) Name() string {
	return BackendHTTP
}

// Upload sends the artifact body with run metadata as query parameters.
func (u *HTTPUploader) Upload(ctx context.Context, a *Artifact, md Metadata) (string, error) {
	endpoint, err := url.Parse(u.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}
	q := endpoint.Query()
	setIfNotEmpty(q, "service", u.Service)
	setIfNotEmpty(q, "project", md.Project)
	setIfNotEmpty(q, "commit", md.Revision)
	setIfNotEmpty(q, "branch", md.Branch)
	setIfNotEmpty(q, "event", md.Event)
	setIfNotEmpty(q, "build", md.RunID)
	setIfNotEmpty(q, "name", a.Name())
	setIfNotEmpty(q, "format", a.Format)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(a.Data))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", a.ContentType)
	if u.Token != "" {
		req.Header.Set("Authorization", "Bearer "+u.Token)
	}

	resp, err := u.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post coverage: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("coverage service returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	if loc := resp.Header.Get("Location"); loc != "" {
		return loc, nil
	}
	return u.Endpoint, nil
}

func setIfNotEmpty(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
