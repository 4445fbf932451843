/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxDocumentBytes bounds how much of a response body is read.
const maxDocumentBytes = 1 << 20

// Source retrieves the raw schedule document.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	Location() string
}

// NewSource picks a Source implementation for the location's scheme.
// http(s) URLs are fetched over the network; file:// URLs and bare paths are read from disk.
func NewSource(location string, timeout time.Duration) (Source, error) {
	if location == "" {
		return nil, fmt.Errorf("schedule location is empty")
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("parse schedule location: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewHTTPSource(location, timeout), nil
	case "file":
		return &FileSource{Path: u.Path}, nil
	case "":
		return &FileSource{Path: location}, nil
	default:
		return nil, fmt.Errorf("unsupported schedule scheme %q", u.Scheme)
	}
}

// HTTPSource fetches the schedule document with a GET request.
type HTTPSource struct {
	URL    string
	client *http.Client
}

// NewHTTPSource creates an HTTP source whose requests are traced.
func NewHTTPSource(rawURL string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSource{
		URL: rawURL,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Location returns the URL being polled.
func (s *HTTPSource) Location() string { return s.URL }

// Fetch performs the request. Transport errors and non-2xx statuses wrap ErrFetch.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDocumentBytes))
		return nil, fmt.Errorf("%w: unexpected status %d", ErrFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}
	return body, nil
}

// FileSource reads the schedule document from the local filesystem.
type FileSource struct {
	Path string
}

// Location returns the file path.
func (s *FileSource) Location() string { return s.Path }

// Fetch reads the file.
func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return data, nil
}

// DocumentCache stores raw documents shared between display instances.
type DocumentCache interface {
	GetDocument(ctx context.Context, key string) ([]byte, bool)
	SetDocument(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// CachedSource consults a shared cache before hitting the upstream source so
// several displays polling the same URL issue one upstream request per TTL.
type CachedSource struct {
	upstream Source
	cache    DocumentCache
	ttl      time.Duration
}

// NewCachedSource wraps upstream. A nil cache returns upstream unchanged.
func NewCachedSource(upstream Source, cache DocumentCache, ttl time.Duration) Source {
	if cache == nil {
		return upstream
	}
	return &CachedSource{upstream: upstream, cache: cache, ttl: ttl}
}

// Location returns the upstream location.
func (s *CachedSource) Location() string { return s.upstream.Location() }

// Fetch returns the cached document when present, otherwise fetches and stores it.
func (s *CachedSource) Fetch(ctx context.Context) ([]byte, error) {
	key := s.upstream.Location()
	if data, ok := s.cache.GetDocument(ctx, key); ok {
		return data, nil
	}
	data, err := s.upstream.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	// Cache write failures only cost a redundant fetch.
	_ = s.cache.SetDocument(ctx, key, data, s.ttl)
	return data, nil
}
