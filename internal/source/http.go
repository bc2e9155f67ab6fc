package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/schollz/progressbar/v3"
)

// feedPayload is the JSON body served by the release feed.
type feedPayload struct {
	Version     string `json:"version"`
	DownloadURL string `json:"download_url"`
	ReleaseDate string `json:"release_date"`
	Changelog   string `json:"changelog"`
	Checksum    string `json:"checksum"`
	MinVersion  string `json:"min_version"`
}

// HTTPSource checks a JSON release feed over HTTP.
type HTTPSource struct {
	feedURL        string
	currentVersion string
	token          string            // Optional bearer token
	params         map[string]string // Extra query parameters applied to every request
	client         *http.Client
	retries        int
	backoff        time.Duration
	progressOut    io.Writer // nil disables the download progress bar
}

// NewHTTPSource creates a source for the given feed URL and current version.
func NewHTTPSource(feedURL, currentVersion string) *HTTPSource {
	return &HTTPSource{
		feedURL:        feedURL,
		currentVersion: currentVersion,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		retries: 3,
		backoff: 2 * time.Second,
	}
}

// WithToken sets a bearer token applied to every outbound request.
func (s *HTTPSource) WithToken(token string) *HTTPSource {
	s.token = token
	return s
}

// WithParams sets extra query parameters applied to every outbound request.
func (s *HTTPSource) WithParams(params map[string]string) *HTTPSource {
	s.params = params
	return s
}

// WithTimeout sets the per-request timeout.
func (s *HTTPSource) WithTimeout(d time.Duration) *HTTPSource {
	s.client.Timeout = d
	return s
}

// WithRetries sets the attempt count and the fixed backoff between attempts.
func (s *HTTPSource) WithRetries(count int, backoff time.Duration) *HTTPSource {
	if count < 1 {
		count = 1
	}
	s.retries = count
	s.backoff = backoff
	return s
}

// WithProgress enables a download progress bar written to w.
func (s *HTTPSource) WithProgress(w io.Writer) *HTTPSource {
	s.progressOut = w
	return s
}

// Check queries the feed and compares versions.
func (s *HTTPSource) Check(ctx context.Context) (*UpdateInfo, error) {
	payload, err := s.fetchFeed(ctx, "")
	if err != nil {
		return nil, err
	}
	return s.buildInfo(payload)
}

// Download fetches the artifact for the requested version into a temporary
// file. An empty or "latest" version downloads the newest release.
func (s *HTTPSource) Download(ctx context.Context, version string) (string, *UpdateInfo, error) {
	if version == "latest" {
		version = ""
	}

	payload, err := s.fetchFeed(ctx, version)
	if err != nil {
		return "", nil, err
	}
	info, err := s.buildInfo(payload)
	if err != nil {
		return "", nil, err
	}

	path, err := s.fetchArtifact(ctx, payload.DownloadURL)
	if err != nil {
		return "", nil, err
	}
	return path, info, nil
}

// fetchFeed GETs the feed URL with bounded retries and a fixed backoff.
// A non-empty version is passed as a query parameter for version pinning.
func (s *HTTPSource) fetchFeed(ctx context.Context, version string) (*feedPayload, error) {
	u, err := url.Parse(s.feedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed URL %q: %w", s.feedURL, err)
	}
	q := u.Query()
	for k, v := range s.params {
		q.Set(k, v)
	}
	if version != "" {
		q.Set("version", version)
	}
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		payload, err := s.fetchFeedOnce(ctx, u.String())
		if err == nil {
			return payload, nil
		}
		lastErr = err

		// Malformed bodies will not improve on retry.
		if !retryable(err) {
			return nil, err
		}
	}

	return nil, lastErr
}

func (s *HTTPSource) fetchFeedOnce(ctx context.Context, url string) (*feedPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: feed returned status %d", ErrSourceUnavailable, resp.StatusCode)
	}

	var payload feedPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if payload.Version == "" {
		return nil, &MissingFieldError{Field: "version"}
	}
	if payload.DownloadURL == "" {
		return nil, &MissingFieldError{Field: "download_url"}
	}

	return &payload, nil
}

// buildInfo compares the feed's version against the current one.
func (s *HTTPSource) buildInfo(payload *feedPayload) (*UpdateInfo, error) {
	current, err := semver.NewVersion(s.currentVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid current version %q: %w", s.currentVersion, err)
	}
	latest, err := semver.NewVersion(payload.Version)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid version %q: %v", ErrInvalidResponse, payload.Version, err)
	}

	return &UpdateInfo{
		HasUpdate:      latest.GreaterThan(current),
		CurrentVersion: current.String(),
		LatestVersion:  latest.String(),
		DownloadURL:    payload.DownloadURL,
		ReleaseDate:    payload.ReleaseDate,
		Changelog:      payload.Changelog,
		Checksum:       payload.Checksum,
		MinVersion:     payload.MinVersion,
	}, nil
}

// fetchArtifact downloads url into a temporary file and returns its path.
func (s *HTTPSource) fetchArtifact(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: server returned status %d", ErrDownloadFailed, resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "lapisup-artifact-*.zip")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer func() { _ = tmp.Close() }()

	var dst io.Writer = tmp
	if s.progressOut != nil {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(s.progressOut),
			progressbar.OptionSetDescription("downloading"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		dst = io.MultiWriter(tmp, bar)
	}

	if _, err := io.Copy(dst, resp.Body); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	return tmp.Name(), nil
}

// retryable reports whether a check failure is worth another attempt.
// Missing fields and malformed bodies are deterministic.
func retryable(err error) bool {
	var mf *MissingFieldError
	if errors.As(err, &mf) {
		return false
	}
	return !errors.Is(err, ErrInvalidResponse)
}
