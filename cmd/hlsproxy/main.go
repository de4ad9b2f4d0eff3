// The hlsproxy command runs the local HLS relay that attaches referer and
// cookie headers to every playlist and segment request a player makes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hlsproxy/internal/hlsproxy"
	"hlsproxy/internal/platform/config"
	"hlsproxy/internal/platform/logger"
	"hlsproxy/internal/platform/metrics"
	"hlsproxy/internal/probe"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()
	cfg := config.LoadProxy()
	log := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], cfg, log, os.Stdout); err != nil {
		log.Error("hlsproxy failed", "error", err)
		os.Exit(1)
	}
}

// run dispatches the serve (default) and probe subcommands.
func run(ctx context.Context, args []string, cfg config.Proxy, log *slog.Logger, stdout io.Writer) error {
	cmd := "serve"
	if len(args) > 0 && (args[0] == "serve" || args[0] == "probe") {
		cmd, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	target := fs.String("url", "", "Stream URL to relay (master or media playlist)")
	referer := fs.String("referer", "", "Referer header sent to the origin")
	cookie := fs.String("cookie", "", "Cookie header sent to the origin")
	port := fs.Int("port", cfg.Port, "Relay port (0 picks a free port)")
	variants := fs.Int("variants", cfg.VariantLimit, "Maximum variants kept per master playlist (0 keeps all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.Port = *port
	cfg.VariantLimit = *variants
	desc := hlsproxy.StreamDescriptor{URL: *target, Referer: *referer, Cookie: *cookie}

	met := metrics.New()
	srv := newServer(cfg, log, met)

	switch cmd {
	case "probe":
		if desc.URL == "" {
			return errors.New("probe: -url is required")
		}
		return runProbe(ctx, srv, desc, cfg.FetchTimeout, stdout)
	default:
		return runServe(ctx, srv, desc, log, stdout)
	}
}

// newServer wires config, logging and metrics into a stopped relay.
func newServer(cfg config.Proxy, log *slog.Logger, met *metrics.Metrics) *hlsproxy.Server {
	client := hlsproxy.NewClient(cfg.FetchTimeout, cfg.InsecureTLS)
	rw := hlsproxy.NewRewriter(cfg.VariantLimit, hlsproxy.ExcludeKinds(cfg.ExcludeTracks...))
	fwd := hlsproxy.NewForwarder(client, rw, cfg.UserAgent, log)

	return hlsproxy.NewServer(cfg.Host, cfg.Port, func(p hlsproxy.ProxyConfig) http.Handler {
		h := hlsproxy.NewHandler(fwd, p, log, met, cfg.ChunkSize)
		return hlsproxy.NewRouter(h, log, met)
	}, log)
}

func runServe(ctx context.Context, srv *hlsproxy.Server, desc hlsproxy.StreamDescriptor, log *slog.Logger, stdout io.Writer) error {
	port, err := srv.EnsureStarted(ctx)
	if err != nil {
		return err
	}

	if desc.URL != "" {
		u, err := srv.PlaybackURL(ctx, desc)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, u)
	}

	log.Info("relay ready", "port", port, "metrics", fmt.Sprintf("http://%s:%d/metrics", srv.Proxy().Host, port))

	<-ctx.Done()
	log.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("relay stopped")
	return nil
}

func runProbe(ctx context.Context, srv *hlsproxy.Server, desc hlsproxy.StreamDescriptor, timeout time.Duration, stdout io.Writer) error {
	entry, err := srv.PlaybackURL(ctx, desc)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()

	sum, err := probe.Fetch(fetchCtx, http.DefaultClient, entry)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, entry)
	sum.Write(stdout)
	return nil
}
