package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Fetcher retrieves the raw document of a source.
type Fetcher interface {
	Fetch(ctx context.Context, source string) (io.ReadCloser, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, source string) (io.ReadCloser, error)

func (f FetcherFunc) Fetch(ctx context.Context, source string) (io.ReadCloser, error) {
	return f(ctx, source)
}

// FileFetcher reads sources as files relative to Root.
type FileFetcher struct {
	Root string
}

func (f FileFetcher) Fetch(ctx context.Context, source string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := source
	if !filepath.IsAbs(path) {
		path = filepath.Join(f.Root, filepath.FromSlash(source))
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening source: %w", err)
	}
	return file, nil
}

// HTTPFetcher fetches sources relative to BaseURL.
type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
}

func (f HTTPFetcher) Fetch(ctx context.Context, source string) (io.ReadCloser, error) {
	target, err := f.resolve(source)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching source: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("fetching source: unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

func (f HTTPFetcher) resolve(source string) (string, error) {
	ref, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("parsing source: %w", err)
	}
	if ref.IsAbs() || f.BaseURL == "" {
		return ref.String(), nil
	}
	base, err := url.Parse(strings.TrimSuffix(f.BaseURL, "/") + "/")
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}
