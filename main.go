// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/rosstspeech/buffered/internal/audio"
	"github.com/rosstspeech/buffered/internal/auth"
	"github.com/rosstspeech/buffered/internal/capture"
	"github.com/rosstspeech/buffered/internal/config"
	"github.com/rosstspeech/buffered/internal/metrics"
	"github.com/rosstspeech/buffered/internal/session"
	"github.com/rosstspeech/buffered/internal/transcript"
	"github.com/rosstspeech/buffered/internal/transport"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg.Logging)

	sessionID := uuid.NewString()
	slog.Info("starting buffered",
		"session_id", sessionID,
		"service_url", cfg.Service.URL,
		"capture_source", cfg.Capture.Source,
	)

	if err := run(cfg, sessionID); err != nil {
		slog.Error("session failed", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func setupLogging(cfg config.LoggingConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func run(cfg *config.Config, sessionID string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var met *metrics.Metrics
	if cfg.Metrics.Enabled {
		met = metrics.New()
		go serveMetrics(cfg.Metrics.Address)
	}

	provider := auth.NewProvider(cfg.Service.TokenEndpoint, cfg.Service.APIKey)
	dial := func() session.Transport {
		return transport.NewClient(cfg.Service.URL)
	}

	controller := session.NewController(session.Config{
		TargetSampleRate: cfg.Audio.TargetSampleRate,
		ChunkDuration:    cfg.Audio.GetChunkDuration(),
		AckTimeout:       cfg.Session.GetAckTimeout(),
		HealthInterval:   cfg.Session.GetHealthInterval(),
		SettleDelay:      cfg.Session.GetSettleDelay(),
		Language:         cfg.Transcription.Language,
		OperatingPoint:   cfg.Transcription.OperatingPoint,
		EnablePartials:   cfg.Transcription.EnablePartials,
		MaxDelay:         cfg.Transcription.MaxDelay,
	}, provider, dial, met)

	source, err := newSource(cfg.Capture)
	if err != nil {
		return err
	}

	var recorder *audio.Recorder
	if cfg.Dump.Enabled {
		path := filepath.Join(cfg.Dump.Dir, sessionID+".wav")
		recorder, err = audio.NewRecorder(path, cfg.Audio.TargetSampleRate)
		if err != nil {
			return fmt.Errorf("creating dump recorder: %w", err)
		}
		slog.Info("dumping outgoing audio", "path", path)
	}

	if err := controller.Start(ctx); err != nil {
		return err
	}
	if err := source.Start(ctx); err != nil {
		controller.Stop()
		return fmt.Errorf("starting capture: %w", err)
	}

	view := transcript.NewView(os.Stdout)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case frame, ok := <-source.Frames():
				if !ok {
					return fmt.Errorf("audio capture ended")
				}
				controller.PushFrame(frame)
				if recorder != nil {
					pcm := audio.Resample(frame.Samples, frame.Rate, cfg.Audio.TargetSampleRate)
					if err := recorder.Write(pcm); err != nil {
						slog.Warn("dump write failed", "error", err)
					}
				}
			}
		}
	})

	g.Go(func() error {
		view.Run(gctx, controller.Transcripts())
		return nil
	})

	err = g.Wait()

	slog.Info("shutting down", "session_id", sessionID)
	source.Close()
	controller.Stop()
	if recorder != nil {
		if cerr := recorder.Close(); cerr != nil {
			slog.Warn("finalizing dump failed", "error", cerr)
		}
	}

	if final := view.Transcript(); final != "" {
		fmt.Fprintln(os.Stdout, final)
	}
	return err
}

func newSource(cfg config.CaptureConfig) (capture.Source, error) {
	switch cfg.Source {
	case "mic":
		return capture.NewMicSource(cfg.SampleRate, cfg.FramesPerBuffer), nil
	case "rtp":
		return capture.NewRTPSource(cfg.RTPListen), nil
	}
	return nil, fmt.Errorf("unknown capture source %q", cfg.Source)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	slog.Info("metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("metrics server error", "error", err)
	}
}
