// Snapsift server - schedules screen captures and keeps only frames worth keeping
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/snapsift/snapsift/internal/capture"
	"github.com/snapsift/snapsift/internal/config"
	"github.com/snapsift/snapsift/internal/server"
	"github.com/snapsift/snapsift/internal/session"
	"github.com/snapsift/snapsift/internal/storage"
)

func main() {
	once := flag.Bool("once", false, "run a single capture session and exit")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	cfg := config.Load()

	if *once {
		os.Exit(runOnce(cfg))
	}

	srv := server.New(cfg)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("snapsift server starting", "http", cfg.HTTPAddr, "output_dir", cfg.OutputDir)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}

// runOnce executes one headless session with the loaded defaults.
// Ctrl-C ends the session early but still flushes the summary.
func runOnce(cfg *config.Config) int {
	sessCfg, err := cfg.Session()
	if err != nil {
		slog.Error("invalid session config", "error", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runner := session.NewRunner(sessCfg, capture.Screen(sessCfg.Region), storage.Disk{}, consoleReporter{})
	res := runner.Run(ctx)

	slog.Info("session summary",
		"status", res.Status,
		"captured", res.FramesCaptured,
		"kept", res.FramesKept,
		"discarded", res.FramesDiscarded,
		"errors", len(res.Errors))
	for _, te := range res.Errors {
		slog.Warn("tick error", "tick", te.Tick, "error", te.Err)
	}

	if res.Status == session.Failed {
		return 1
	}
	return 0
}

// consoleReporter logs per-frame decisions as they happen.
type consoleReporter struct{}

func (consoleReporter) OnTick(st session.State) {
	slog.Debug("tick",
		"attempted", st.Attempted,
		"captured", st.Captured,
		"elapsed", st.Elapsed.Round(time.Millisecond))
}

func (consoleReporter) OnDecision(frame session.Frame, d session.Decision) {
	switch d.Kind {
	case session.Kept:
		slog.Info("frame kept", "seq", frame.Seq, "path", d.Path)
	case session.Discarded:
		if d.Err != nil {
			slog.Warn("frame discarded", "seq", frame.Seq, "error", d.Err)
		} else {
			slog.Info("frame discarded", "seq", frame.Seq,
				"match_seq", d.MatchSeq, "score", d.Score)
		}
	}
}

func (consoleReporter) OnSessionEnd(session.Result) {}
