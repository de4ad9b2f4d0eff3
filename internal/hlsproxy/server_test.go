package hlsproxy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestServer(t *testing.T, port int) *Server {
	t.Helper()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	fwd := NewForwarder(NewClient(5*time.Second, true), NewRewriter(DefaultVariantLimit, nil), "", log)
	s := NewServer("", port, func(p ProxyConfig) http.Handler {
		return NewRouter(NewHandler(fwd, p, log, nil, 0), log, nil)
	}, log)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})
	return s
}

func get(t *testing.T, u string) (int, string) {
	t.Helper()
	resp, err := http.Get(u)
	if err != nil {
		t.Fatalf("GET %s: %v", u, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read %s: %v", u, err)
	}
	return resp.StatusCode, string(b)
}

func TestServer_EnsureStarted_idempotent(t *testing.T) {
	s := newTestServer(t, 0)
	if s.State() != StateStopped || s.Proxy() != nil {
		t.Fatalf("new server should be stopped, got %s", s.State())
	}

	port, err := s.EnsureStarted(context.Background())
	if err != nil {
		t.Fatalf("EnsureStarted: %v", err)
	}
	if port == 0 {
		t.Fatal("expected an assigned port")
	}
	again, err := s.EnsureStarted(context.Background())
	if err != nil || again != port {
		t.Errorf("second call: port %d err %v, want %d", again, err, port)
	}
	if s.State() != StateListening {
		t.Errorf("expected listening, got %s", s.State())
	}

	code, body := get(t, "http://127.0.0.1:"+strconv.Itoa(port)+"/healthz")
	if code != http.StatusOK || body != "ok" {
		t.Errorf("healthz: %d %q", code, body)
	}
}

func TestServer_EnsureStarted_concurrent(t *testing.T) {
	s := newTestServer(t, 0)

	const n = 16
	ports := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := s.EnsureStarted(context.Background())
			if err != nil {
				t.Errorf("EnsureStarted: %v", err)
			}
			ports[i] = p
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if ports[i] != ports[0] {
			t.Fatalf("callers saw different ports: %v", ports)
		}
	}
}

func TestServer_bind_failure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	taken := ln.Addr().(*net.TCPAddr).Port

	s := newTestServer(t, taken)
	if _, err := s.EnsureStarted(context.Background()); !errors.Is(err, ErrBindFailed) {
		t.Fatalf("expected ErrBindFailed, got %v", err)
	}
	if s.State() != StateStopped {
		t.Errorf("expected stopped after failed bind, got %s", s.State())
	}

	d := StreamDescriptor{URL: "https://cdn.test/master.m3u8", Referer: "R"}
	u, err := s.PlaybackURL(context.Background(), d)
	if err == nil {
		t.Error("expected error from PlaybackURL")
	}
	if u != d.URL {
		t.Errorf("expected direct URL fallback, got %q", u)
	}
}

func TestServer_missing_url(t *testing.T) {
	s := newTestServer(t, 0)
	port, err := s.EnsureStarted(context.Background())
	if err != nil {
		t.Fatalf("EnsureStarted: %v", err)
	}
	code, body := get(t, "http://127.0.0.1:"+strconv.Itoa(port)+RoutePath)
	if code != http.StatusBadRequest || body != "Missing URL" {
		t.Errorf("got %d %q", code, body)
	}
}

func TestServer_end_to_end(t *testing.T) {
	o := newOrigin(t)
	s := newTestServer(t, 0)

	entry, err := s.PlaybackURL(context.Background(), StreamDescriptor{
		URL:     o.URL + "/tv/master.m3u8",
		Referer: "https://site.test/",
		Cookie:  "sid=42",
	})
	if err != nil {
		t.Fatalf("PlaybackURL: %v", err)
	}
	if !strings.HasPrefix(entry, "http://127.0.0.1:") || !strings.HasSuffix(entry, "&kind=playlist") {
		t.Fatalf("unexpected entry URL %q", entry)
	}

	next := func(body string) string {
		for _, l := range strings.Split(body, "\n") {
			if strings.HasPrefix(l, "http://127.0.0.1:") {
				return l
			}
		}
		t.Fatalf("no proxied URI in:\n%s", body)
		return ""
	}

	code, master := get(t, entry)
	if code != http.StatusOK {
		t.Fatalf("master: %d %s", code, master)
	}
	code, media := get(t, next(master))
	if code != http.StatusOK {
		t.Fatalf("media: %d %s", code, media)
	}
	code, seg := get(t, next(media))
	if code != http.StatusOK {
		t.Fatalf("segment: %d", code)
	}
	if !bytes.Equal([]byte(seg), segmentBody) {
		t.Errorf("segment body mismatch: %d bytes", len(seg))
	}
	if c := o.header("/seg/1.ts").Get("Cookie"); c != "sid=42" {
		t.Errorf("cookie lost on nested fetch: %q", c)
	}
}

func TestServer_Shutdown(t *testing.T) {
	s := newTestServer(t, 0)
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown of stopped server: %v", err)
	}
	if _, err := s.EnsureStarted(context.Background()); err != nil {
		t.Fatalf("EnsureStarted: %v", err)
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	if s.State() != StateStopped {
		t.Errorf("expected stopped, got %s", s.State())
	}
}
