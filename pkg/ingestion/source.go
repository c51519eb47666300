package ingestion

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/synaptica-ai/readmission/pkg/common/httpclient"
)

// Source opens one named file of a snapshot.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Describe() string
}

// DirSource reads snapshot files from a local directory.
type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (s *DirSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(filepath.Clean(s.dir), name))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	return f, nil
}

func (s *DirSource) Describe() string {
	return "dir:" + s.dir
}

// HTTPSource downloads snapshot files from an export endpoint protected by an
// OAuth2 client-credentials grant.
type HTTPSource struct {
	baseURL string
	client  *http.Client
	backoff httpclient.Backoff
}

type HTTPSourceConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Timeout      time.Duration
	// Attempts per file; zero uses httpclient.DefaultBackoff.
	Attempts int
}

func NewHTTPSource(ctx context.Context, cfg HTTPSourceConfig) (*HTTPSource, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("source base url required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid source base url: %w", err)
	}

	client := httpclient.New(cfg.Timeout)
	if cfg.TokenURL != "" && cfg.ClientID != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		client = cc.Client(context.WithValue(ctx, oauth2.HTTPClient, client))
		client.Timeout = cfg.Timeout
	}

	backoff := httpclient.DefaultBackoff
	if cfg.Attempts > 0 {
		backoff.Attempts = cfg.Attempts
	}
	return &HTTPSource{baseURL: strings.TrimRight(cfg.BaseURL, "/"), client: client, backoff: backoff}, nil
}

// Open retries transient failures; the body is returned unread.
func (s *HTTPSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	target := s.baseURL + "/" + url.PathEscape(name)
	var body io.ReadCloser
	err := httpclient.Retry(ctx, s.backoff, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "text/csv")

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return httpclient.StatusError{URL: target, Code: resp.StatusCode}
		}
		body = resp.Body
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", name, err)
	}
	return body, nil
}

func (s *HTTPSource) Describe() string {
	return "http:" + s.baseURL
}
