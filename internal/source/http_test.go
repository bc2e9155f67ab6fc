package source

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"
)

// feedServer serves a static feed payload and records requests.
func feedServer(t *testing.T, payload map[string]string) (*httptest.Server, *[]*http.Request) {
	t.Helper()
	var requests []*http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.Clone(context.Background()))
		_ = json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestCheckVersionOrdering(t *testing.T) {
	tests := []struct {
		name    string
		current string
		latest  string
		want    bool
	}{
		{"newer available", "1.5.0", "2.0.0", true},
		{"patch newer", "1.5.0", "1.5.1", true},
		{"equal", "1.5.0", "1.5.0", false},
		{"older reported", "2.0.0", "1.5.0", false},
		{"v prefix", "v1.5.0", "v1.6.0", true},
		{"prerelease below release", "1.5.0", "1.5.0-rc.1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := feedServer(t, map[string]string{
				"version":      tt.latest,
				"download_url": "https://example.com/release.zip",
			})

			src := NewHTTPSource(srv.URL, tt.current)
			info, err := src.Check(context.Background())
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if info.HasUpdate != tt.want {
				t.Errorf("HasUpdate = %v, want %v", info.HasUpdate, tt.want)
			}
		})
	}
}

func TestCheckIdempotent(t *testing.T) {
	srv, _ := feedServer(t, map[string]string{
		"version":      "2.0.0",
		"download_url": "https://example.com/release.zip",
		"changelog":    "fixes",
	})

	src := NewHTTPSource(srv.URL, "1.5.0")
	first, err := src.Check(context.Background())
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	second, err := src.Check(context.Background())
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated Check() differs: %+v vs %+v", first, second)
	}
}

func TestCheckMissingFields(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]string
		field   string
	}{
		{"no download_url", map[string]string{"version": "2.0.0"}, "download_url"},
		{"no version", map[string]string{"download_url": "https://example.com/a.zip"}, "version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := feedServer(t, tt.payload)

			src := NewHTTPSource(srv.URL, "1.0.0").WithRetries(1, 0)
			_, err := src.Check(context.Background())

			var mf *MissingFieldError
			if !errors.As(err, &mf) {
				t.Fatalf("Check() error = %v, want MissingFieldError", err)
			}
			if mf.Field != tt.field {
				t.Errorf("MissingFieldError.Field = %s, want %s", mf.Field, tt.field)
			}
		})
	}
}

func TestCheckServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, "1.0.0").WithRetries(2, time.Millisecond)
	_, err := src.Check(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("Check() error = %v, want ErrSourceUnavailable", err)
	}
}

func TestCheckMalformedBodyNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, "1.0.0").WithRetries(3, time.Millisecond)
	_, err := src.Check(context.Background())
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("Check() error = %v, want ErrInvalidResponse", err)
	}
	if calls != 1 {
		t.Errorf("server called %d times, want 1 (malformed body is not retryable)", calls)
	}
}

func TestCheckAppliesAuth(t *testing.T) {
	srv, requests := feedServer(t, map[string]string{
		"version":      "2.0.0",
		"download_url": "https://example.com/release.zip",
	})

	src := NewHTTPSource(srv.URL, "1.0.0").
		WithToken("secret-token").
		WithParams(map[string]string{"channel": "stable"})

	if _, err := src.Check(context.Background()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	req := (*requests)[0]
	if got := req.Header.Get("Authorization"); got != "Bearer secret-token" {
		t.Errorf("Authorization = %q, want bearer token", got)
	}
	if got := req.URL.Query().Get("channel"); got != "stable" {
		t.Errorf("channel param = %q, want stable", got)
	}
}

func TestDownload(t *testing.T) {
	artifact := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("zip-bytes"))
	}))
	defer artifact.Close()

	srv, requests := feedServer(t, map[string]string{
		"version":      "2.0.0",
		"download_url": artifact.URL + "/release.zip",
		"checksum":     "abc",
	})

	src := NewHTTPSource(srv.URL, "1.0.0")
	path, info, err := src.Download(context.Background(), "2.0.0")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	defer func() { _ = os.Remove(path) }()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "zip-bytes" {
		t.Errorf("artifact content = %q, want zip-bytes", data)
	}
	if info.Checksum != "abc" {
		t.Errorf("info.Checksum = %q, want abc", info.Checksum)
	}

	// Pinned version must be passed through as a query parameter.
	if got := (*requests)[0].URL.Query().Get("version"); got != "2.0.0" {
		t.Errorf("version param = %q, want 2.0.0", got)
	}
}

func TestDownloadLatestOmitsVersionParam(t *testing.T) {
	artifact := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer artifact.Close()

	srv, requests := feedServer(t, map[string]string{
		"version":      "2.0.0",
		"download_url": artifact.URL,
	})

	src := NewHTTPSource(srv.URL, "1.0.0")
	path, _, err := src.Download(context.Background(), "latest")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	defer func() { _ = os.Remove(path) }()

	if got := (*requests)[0].URL.Query().Get("version"); got != "" {
		t.Errorf("version param = %q, want empty for latest", got)
	}
}

func TestDownloadBadStatus(t *testing.T) {
	artifact := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer artifact.Close()

	srv, _ := feedServer(t, map[string]string{
		"version":      "2.0.0",
		"download_url": artifact.URL,
	})

	src := NewHTTPSource(srv.URL, "1.0.0")
	_, _, err := src.Download(context.Background(), "")
	if !errors.Is(err, ErrDownloadFailed) {
		t.Errorf("Download() error = %v, want ErrDownloadFailed", err)
	}
}

func TestUpdateInfoRoundTrip(t *testing.T) {
	info := UpdateInfo{
		HasUpdate:      true,
		CurrentVersion: "1.5.0",
		LatestVersion:  "2.0.0",
		DownloadURL:    "https://example.com/release.zip",
		ReleaseDate:    "2026-08-01",
		Changelog:      "big release",
		Checksum:       "deadbeef",
		MinVersion:     "1.4.0",
	}

	data, err := json.Marshal(info)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got UpdateInfo
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !reflect.DeepEqual(info, got) {
		t.Errorf("round trip = %+v, want %+v", got, info)
	}
}
