// Command timescrub serves the snapshot-timeline engine.
//
// Usage:
//
//	timescrub -config timescrub.yaml                    # HTTP API
//	timescrub -archive http://archive:3001 -url example.com -current 20240601000000
//	timescrub -mcp stdio                                # MCP tools on stdin/stdout
//	timescrub -mcp quic -quic-addr :9444                # HTTP API plus MCP over QUIC
//	timescrub -pixeldiff example.com -from 20240101000000 -to 20240601000000 -out diff.png
//	timescrub -resolve example.com -at 20240315
package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/timescrub/mcpquic"
	"github.com/hazyhaar/timescrub/timescrub"
)

func main() {
	configPath := flag.String("config", "", "path to timescrub.yaml config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides http.addr)")
	archiveURL := flag.String("archive", "", "archive base URL (overrides archive.base_url)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	pageURL := flag.String("url", "", "open this URL's timeline at startup")
	current := flag.String("current", "", "snapshot shown at startup (with -url)")
	mcpMode := flag.String("mcp", "", "MCP transport: stdio or quic")
	quicAddr := flag.String("quic-addr", ":9444", "UDP address for -mcp quic")
	certFile := flag.String("tls-cert", "", "TLS certificate for -mcp quic (self-signed when empty)")
	keyFile := flag.String("tls-key", "", "TLS key for -mcp quic")
	pixelURL := flag.String("pixeldiff", "", "pixel-diff two snapshots of this URL and exit")
	from := flag.String("from", "", "older snapshot timestamp (with -pixeldiff)")
	to := flag.String("to", "", "newer snapshot timestamp (with -pixeldiff)")
	out := flag.String("out", "diff.png", "difference image path (with -pixeldiff)")
	resolveURL := flag.String("resolve", "", "resolve the snapshot nearest to -at for this URL and exit")
	at := flag.String("at", "", "requested timestamp (with -resolve)")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(*configPath, *addr, *archiveURL)
	if err != nil {
		logger.Error("timescrub: config", "error", err)
		os.Exit(1)
	}
	if *mcpMode == "stdio" {
		cfg.Sinks = withoutStdout(cfg.Sinks)
	}

	eng, err := timescrub.New(cfg, timescrub.WithLogger(logger))
	if err != nil {
		logger.Error("timescrub: engine", "error", err)
		os.Exit(1)
	}
	defer eng.Close()

	switch {
	case *pixelURL != "":
		err = runPixelDiff(ctx, eng, *pixelURL, *from, *to, *out)
	case *resolveURL != "":
		err = runResolve(ctx, eng, *resolveURL, *at)
	default:
		if *pageURL != "" {
			if _, oerr := eng.Open(ctx, *pageURL, *current); oerr != nil {
				logger.Warn("timescrub: initial open", "url", *pageURL, "error", oerr)
			}
		}
		switch *mcpMode {
		case "stdio":
			err = runStdio(ctx, eng)
		case "quic", "":
			err = runServer(ctx, logger, eng, *mcpMode == "quic", *quicAddr, *certFile, *keyFile)
		default:
			err = fmt.Errorf("unknown -mcp %q", *mcpMode)
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("timescrub: fatal", "error", err)
		eng.Close()
		os.Exit(1)
	}
}

func loadConfig(path, addr, archiveURL string) (*timescrub.Config, error) {
	cfg := timescrub.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = timescrub.LoadConfigFile(path); err != nil {
			return nil, err
		}
	}
	if addr != "" {
		cfg.HTTP.Addr = addr
	}
	if archiveURL != "" {
		cfg.Archive.BaseURL = archiveURL
	}
	return cfg, nil
}

// withoutStdout drops stdout sinks; stdout carries the MCP stream.
func withoutStdout(sinks []timescrub.SinkConfig) []timescrub.SinkConfig {
	var kept []timescrub.SinkConfig
	for _, s := range sinks {
		if s.Type != "stdout" {
			kept = append(kept, s)
		}
	}
	return kept
}

func newMCPServer(eng *timescrub.Engine) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "timescrub", Version: "1.0.0"}, nil)
	eng.RegisterMCP(srv)
	return srv
}

func runStdio(ctx context.Context, eng *timescrub.Engine) error {
	return newMCPServer(eng).Run(ctx, &mcp.StdioTransport{})
}

func runServer(ctx context.Context, logger *slog.Logger, eng *timescrub.Engine, withQUIC bool, quicAddr, certFile, keyFile string) error {
	if withQUIC {
		var (
			tlsCfg *tls.Config
			err    error
		)
		if certFile != "" && keyFile != "" {
			tlsCfg, err = mcpquic.ServerTLSConfig(certFile, keyFile)
		} else {
			tlsCfg, err = mcpquic.SelfSignedTLSConfig()
		}
		if err != nil {
			return err
		}
		ql, err := mcpquic.NewListener(quicAddr, tlsCfg, newMCPServer(eng), logger)
		if err != nil {
			return err
		}
		defer ql.Close()
		go func() {
			if err := ql.Serve(ctx); err != nil && ctx.Err() == nil {
				logger.Error("timescrub: mcp quic", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              eng.Config().HTTP.Addr,
		Handler:           eng.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("timescrub: listening", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("timescrub: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runPixelDiff(ctx context.Context, eng *timescrub.Engine, pageURL, from, to, out string) error {
	if from == "" || to == "" {
		return errors.New("-pixeldiff needs -from and -to")
	}
	res, err := eng.PixelDiff(ctx, pageURL, from, to)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, res.PNG, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	return printJSON(res)
}

func runResolve(ctx context.Context, eng *timescrub.Engine, pageURL, at string) error {
	if at == "" {
		return errors.New("-resolve needs -at")
	}
	res, err := eng.Resolve(ctx, pageURL, at)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
