package hlsproxy

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"hlsproxy/internal/platform/metrics"
)

// DefaultChunkSize is the copy buffer used for segment bodies.
const DefaultChunkSize = 128 * 1024

// Handler serves the relay route.
type Handler struct {
	fwd       *Forwarder
	proxy     ProxyConfig
	log       *slog.Logger
	metrics   *metrics.Metrics
	chunkSize int
}

// NewHandler returns a Handler minting nested URLs for proxy. Metrics may be nil
// to disable metric recording (e.g. in tests). chunkSize <= 0 means DefaultChunkSize.
func NewHandler(fwd *Forwarder, proxy ProxyConfig, log *slog.Logger, m *metrics.Metrics, chunkSize int) *Handler {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Handler{fwd: fwd, proxy: proxy, log: log, metrics: m, chunkSize: chunkSize}
}

// ServeHLS handles GET /api/hls?url=&referer=&cookie=&kind=.
func (h *Handler) ServeHLS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := q.Get("url")
	if target == "" {
		writeText(w, http.StatusBadRequest, "Missing URL")
		return
	}

	req := Request{
		Target: StreamDescriptor{
			URL:     target,
			Referer: q.Get("referer"),
			Cookie:  q.Get("cookie"),
		},
		Kind:  q.Get("kind"),
		Range: r.Header.Get("Range"),
		Proxy: h.proxy,
	}

	resp, err := h.fwd.Forward(r.Context(), req)
	if err != nil {
		h.fail(w, r, req, err)
		return
	}
	defer resp.Body.Close()

	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}

	if resp.Kind == KindPlaylist {
		h.log.Debug("playlist rewritten",
			slog.Bool("master", resp.Stats.Master),
			slog.Int("uris", resp.Stats.URIs),
			slog.Int("variants", resp.Stats.Variants),
			slog.Int("dropped_variants", resp.Stats.DroppedVariants),
			slog.Int("dropped_tracks", resp.Stats.DroppedTracks))
		if h.metrics != nil {
			h.metrics.ObservePlaylist(resp.Stats.DroppedVariants, resp.Stats.DroppedTracks)
		}
		w.WriteHeader(resp.StatusCode)
		if n, err := io.Copy(w, resp.Body); err != nil && r.Context().Err() == nil {
			h.log.Warn("playlist write interrupted",
				slog.Int64("bytes", n),
				slog.String("error", err.Error()))
		}
		return
	}

	if h.metrics != nil {
		h.metrics.SegmentStarted()
		defer h.metrics.SegmentDone()
	}
	w.WriteHeader(resp.StatusCode)
	n, err := h.stream(w, resp.Body)
	if h.metrics != nil {
		h.metrics.AddSegmentBytes(n)
	}
	if err != nil && r.Context().Err() == nil {
		h.log.Warn("segment stream interrupted",
			slog.Int64("bytes", n),
			slog.String("error", err.Error()))
	}
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

// stream copies body to w in chunkSize pieces, flushing each one so players
// receive data as soon as the origin sends it.
func (h *Handler) stream(w http.ResponseWriter, body io.Reader) (int64, error) {
	rc := http.NewResponseController(w)
	buf := make([]byte, h.chunkSize)
	var written int64
	for {
		nr, rerr := body.Read(buf)
		if nr > 0 {
			nw, werr := w.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if ferr := rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
				return written, ferr
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, req Request, err error) {
	status := StatusOf(err)
	if errors.Is(err, ErrMissingURL) {
		writeText(w, status, "Missing URL")
		return
	}
	if h.metrics != nil {
		h.metrics.IncUpstreamErrors()
	}
	if r.Context().Err() == nil {
		h.log.Error("upstream fetch failed",
			slog.String("url", req.Target.URL),
			slog.String("kind", req.Kind),
			slog.Int("status", status),
			slog.String("error", err.Error()))
	}
	writeText(w, status, "Error: "+err.Error())
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	io.WriteString(w, msg)
}
