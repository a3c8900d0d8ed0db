// Package cache is the HTTP cache interceptor of the client.
//
// A Worker answers requests from two named caches kept in a store.HTTPCache:
// a static cache filled from a fixed asset manifest when the worker installs,
// and a dynamic cache filled with successful network responses. Paths on the
// deny-list never touch either cache. A Container tracks the registered
// clients (pages) and the worker that controls them, and rolls out new worker
// versions through the install and activate lifecycle.
package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// Cache name prefixes. Names are prefix + version, e.g. "mws-static-v1".
const (
	StaticCachePrefix  = "mws-static-"
	DynamicCachePrefix = "mws-dynamic-"
)

// DefaultVersion is the cache version of the first worker.
const DefaultVersion = "v1"

// DefaultDenyList holds the API paths that are never cached.
var DefaultDenyList = []string{`^/restaurants.*`, `^/reviews.*`}

// DefaultManifest lists the application shell assets.
var DefaultManifest = []string{
	"index.html",
	"restaurant.html",
	"favicon.ico",
	"css/styles.css",
	"js/main.js",
	"js/restaurant_info.js",
	"js/dbhelper.js",
	"js/common.js",
}

// StaticCacheName returns the static cache name of a version.
func StaticCacheName(version string) string {
	return StaticCachePrefix + version
}

// DynamicCacheName returns the dynamic cache name of a version.
func DynamicCacheName(version string) string {
	return DynamicCachePrefix + version
}

// Sentinel errors. Fetch wraps one of them into every error it returns.
var (
	// ErrNetwork means the network request failed.
	ErrNetwork = errors.New("network error")
	// ErrCacheMiss means the request was not cached and the client is offline.
	ErrCacheMiss = errors.New("not cached and offline")
)

// Doer performs HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Source tells where a response came from.
type Source string

// Response sources.
const (
	SourceStatic  Source = "static"
	SourceDynamic Source = "dynamic"
	SourceNetwork Source = "network"
)

// Response is a fully read HTTP response.
type Response struct {
	Header http.Header
	Source Source
	Body   []byte
	Status int
}

// DenyList matches request paths that bypass the caches.
type DenyList struct {
	patterns []*regexp.Regexp
}

// NewDenyList compiles the given path patterns.
func NewDenyList(patterns []string) (*DenyList, error) {
	d := &DenyList{patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid deny-list pattern %q: %w", p, err)
		}
		d.patterns = append(d.patterns, re)
	}
	return d, nil
}

// Match reports whether path is deny-listed.
func (d *DenyList) Match(path string) bool {
	for _, re := range d.patterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// hopHeaders are not forwarded in either direction.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"Content-Length",
}

func cleanHeader(h http.Header) http.Header {
	out := h.Clone()
	if out == nil {
		out = http.Header{}
	}
	for _, name := range hopHeaders {
		out.Del(name)
	}
	return out
}

// upstream sends requests to the origin the interceptor fronts.
type upstream struct {
	origin *url.URL
	client Doer
	logger *slog.Logger
}

func newUpstream(origin string, client Doer, logger *slog.Logger) (*upstream, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("origin must be absolute: %q", origin)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &upstream{origin: u, client: client, logger: logger}, nil
}

// resolve maps a front path (or manifest entry) onto the origin.
func (u *upstream) resolve(path, rawQuery string) *url.URL {
	return u.origin.ResolveReference(&url.URL{
		Path:     strings.TrimPrefix(path, "/"),
		RawQuery: rawQuery,
	})
}

func (u *upstream) do(ctx context.Context, method string, target *url.URL, header http.Header, body io.Reader) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: build %s %s: %w", ErrNetwork, method, target, err)
	}
	if header != nil {
		req.Header = cleanHeader(header)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrNetwork, method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s %s: %w", ErrNetwork, method, target, err)
	}
	return &Response{
		Status: resp.StatusCode,
		Header: cleanHeader(resp.Header),
		Body:   data,
		Source: SourceNetwork,
	}, nil
}

// passThrough forwards req unchanged to the origin.
func (u *upstream) passThrough(ctx context.Context, req *http.Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil && req.Body != http.NoBody {
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		body = bytes.NewReader(data)
	}
	return u.do(ctx, req.Method, u.resolve(req.URL.Path, req.URL.RawQuery), req.Header, body)
}
