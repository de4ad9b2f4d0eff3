package hlsproxy

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultUserAgent is sent on every upstream request.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// DefaultFetchTimeout bounds connect plus time to first response byte.
	DefaultFetchTimeout = 15 * time.Second

	// DefaultMaxManifestSize caps how much of a playlist body is buffered.
	DefaultMaxManifestSize = 16 << 20
)

// strippedHeaders are never replayed to the player.
var strippedHeaders = []string{
	"Content-Encoding",
	"Content-Length",
	"Transfer-Encoding",
	"Connection",
	"Access-Control-Allow-Origin",
}

// NewClient returns the pooled upstream client shared by all relay requests.
// timeout bounds dialing, the TLS handshake and waiting for response headers
// but not the body, so long segment transfers are never cut off.
func NewClient(timeout time.Duration, insecureTLS bool) *http.Client {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: time.Second,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: insecureTLS}, //nolint:gosec // some mirrors serve invalid certificates
	}
	return &http.Client{Transport: transport}
}

// Request is one relay fetch.
type Request struct {
	Target StreamDescriptor
	// Kind is the raw kind query parameter; empty means infer it.
	Kind string
	// Range is the player's Range header, forwarded for segments only.
	Range string
	// Proxy addresses the relay nested URLs are minted for.
	Proxy ProxyConfig
}

// Response is what gets relayed to the player. Body must be closed.
type Response struct {
	StatusCode int
	Header     http.Header
	Kind       Kind
	Body       io.ReadCloser
	Stats      Stats
}

// Forwarder fetches resources from origins with the descriptor's headers and
// rewrites playlists on the way back.
type Forwarder struct {
	client    *http.Client
	rewriter  *Rewriter
	userAgent string
	log       *slog.Logger

	maxManifest int64
}

// NewForwarder returns a Forwarder. An empty userAgent means DefaultUserAgent.
func NewForwarder(client *http.Client, rw *Rewriter, userAgent string, log *slog.Logger) *Forwarder {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Forwarder{client: client, rewriter: rw, userAgent: userAgent, log: log, maxManifest: DefaultMaxManifestSize}
}

// SetMaxManifestSize changes the largest playlist body the Forwarder buffers.
// Larger playlists fail with a 502 rather than being rewritten truncated.
func (f *Forwarder) SetMaxManifestSize(n int64) {
	if n > 0 {
		f.maxManifest = n
	}
}

// Forward fetches req.Target. Playlists come back fully rewritten with the
// HLS content type; segments come back as the live upstream body.
func (f *Forwarder) Forward(ctx context.Context, req Request) (*Response, error) {
	if req.Target.URL == "" {
		return nil, ErrMissingURL
	}

	kind := Classify(req.Kind, req.Target.URL, "")
	rangeHdr := ""
	if kind == KindSegment {
		rangeHdr = req.Range
	}

	resp, err := f.fetch(ctx, req.Target, rangeHdr)
	if err != nil {
		return nil, err
	}

	kind = Classify(req.Kind, req.Target.URL, resp.Header.Get("Content-Type"))
	if kind == KindPlaylist && rangeHdr != "" && resp.StatusCode == http.StatusPartialContent {
		// Only the content type revealed a manifest; a partial one cannot be rewritten.
		resp.Body.Close()
		f.log.Debug("refetching partial playlist in full", slog.String("url", req.Target.URL))
		if resp, err = f.fetch(ctx, req.Target, ""); err != nil {
			return nil, err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Err: fmt.Errorf("%s returned %s", req.Target.URL, resp.Status)}
	}

	header := resp.Header.Clone()
	for _, h := range strippedHeaders {
		header.Del(h)
	}

	if kind == KindSegment {
		return &Response{StatusCode: resp.StatusCode, Header: header, Kind: kind, Body: resp.Body}, nil
	}

	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxManifest+1))
	if err != nil {
		return nil, &UpstreamError{Err: fmt.Errorf("read playlist: %w", err)}
	}
	if int64(len(raw)) > f.maxManifest {
		return nil, &UpstreamError{
			StatusCode: http.StatusBadGateway,
			Err:        fmt.Errorf("playlist %s exceeds %d bytes", req.Target.URL, f.maxManifest),
		}
	}

	base := req.Target.URL
	if resp.Request != nil && resp.Request.URL != nil {
		// Follow redirects so relative URIs resolve against the final location.
		base = resp.Request.URL.String()
	}
	text := strings.ToValidUTF8(string(raw), "\uFFFD")
	out, st := f.rewriter.Rewrite(text, base, req.Target.Referer, req.Target.Cookie, req.Proxy)

	header.Set("Content-Type", PlaylistContentType)
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     header,
		Kind:       kind,
		Body:       io.NopCloser(strings.NewReader(out)),
		Stats:      st,
	}, nil
}

func (f *Forwarder) fetch(ctx context.Context, d StreamDescriptor, rangeHdr string) (*http.Response, error) {
	out, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return nil, &UpstreamError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("build request: %w", err)}
	}
	out.Header.Set("User-Agent", f.userAgent)
	if d.Referer != "" {
		out.Header.Set("Referer", d.Referer)
	}
	if d.Cookie != "" {
		out.Header.Set("Cookie", d.Cookie)
	}
	if rangeHdr != "" {
		out.Header.Set("Range", rangeHdr)
	}

	resp, err := f.client.Do(out)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}
	return resp, nil
}
