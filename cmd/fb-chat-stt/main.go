package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/CrispyBaguette/fb-chat-stt/internal/audio"
	"github.com/CrispyBaguette/fb-chat-stt/internal/bot"
	"github.com/CrispyBaguette/fb-chat-stt/internal/config"
	"github.com/CrispyBaguette/fb-chat-stt/internal/format"
	"github.com/CrispyBaguette/fb-chat-stt/internal/identity"
	"github.com/CrispyBaguette/fb-chat-stt/internal/metrics"
	"github.com/CrispyBaguette/fb-chat-stt/internal/platform/messenger"
	"github.com/CrispyBaguette/fb-chat-stt/internal/server"
	"github.com/CrispyBaguette/fb-chat-stt/internal/transcription"
)

const (
	serviceName    = "fb-chat-stt"
	serviceVersion = "1.0.0"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional)")
	flag.Parse()

	// .env is a local development convenience; in production the variables
	// come from the process environment.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Failed to load .env file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
	)
	logger.Info("Configuration loaded",
		slog.String("listen_address", cfg.Messenger.ListenAddress),
		slog.Int("whitelisted_threads", len(cfg.Messenger.Threads)),
		slog.Int("sample_rate", cfg.Pipeline.SampleRate),
		slog.String("language", cfg.Pipeline.Language),
		slog.String("bucket", cfg.Storage.Bucket),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appMetrics := metrics.NewMetrics(prometheus.DefaultRegisterer)

	client, err := messenger.NewClient(messenger.Config{
		PageToken:   cfg.Messenger.PageToken,
		VerifyToken: cfg.Messenger.VerifyToken,
		ListenAddr:  cfg.Messenger.ListenAddress,
	}, logger)
	if err != nil {
		logger.Error("Failed to create messenger client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cache := identity.NewCache(client)

	transcoder, err := audio.NewTranscoder(audio.TranscoderConfig{
		TargetSampleRate: cfg.Pipeline.SampleRate,
		Timeout:          time.Duration(cfg.Pipeline.FetchTimeout) * time.Second,
		MaxBytes:         int64(cfg.Pipeline.MaxAttachment),
	})
	if err != nil {
		logger.Error("Failed to create transcoder", slog.String("error", err.Error()))
		os.Exit(1)
	}

	uploader, err := transcription.NewGCSUploader(ctx, cfg.Storage.Bucket)
	if err != nil {
		logger.Error("Failed to create storage uploader", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer uploader.Close()

	recognizer, err := transcription.NewSpeechRecognizer(ctx, cfg.Pipeline.SampleRate)
	if err != nil {
		logger.Error("Failed to create speech recognizer", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer recognizer.Close()

	gateway, err := transcription.NewGateway(transcription.Config{
		Language: cfg.Pipeline.Language,
		Timeout:  time.Duration(cfg.Storage.Timeout) * time.Second,
	}, uploader, recognizer)
	if err != nil {
		logger.Error("Failed to create transcription gateway", slog.String("error", err.Error()))
		os.Exit(1)
	}

	formatter, err := format.NewFormatter(cache, nil)
	if err != nil {
		logger.Error("Failed to create formatter", slog.String("error", err.Error()))
		os.Exit(1)
	}

	dispatcher, err := bot.NewDispatcher(cfg.Messenger.Threads, transcoder, gateway,
		formatter, client, logger, appMetrics)
	if err != nil {
		logger.Error("Failed to create dispatcher", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var httpServer *server.HTTPServer
	if cfg.Monitoring.Enabled {
		httpServer = server.NewHTTPServer(cfg.Monitoring, logger, server.StatsSource{
			Dispatcher: dispatcher,
			Cache:      cache,
			Gateway:    gateway,
		})
		httpServer.Start()
	}

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- client.Listen(ctx, dispatcher.HandleMessage)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for events...",
		slog.String("webhook_address", cfg.Messenger.ListenAddress),
	)

	listenerDone := false
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-listenErr:
		listenerDone = true
		if err != nil {
			logger.Error("Listener failed", slog.String("error", err.Error()))
		}
	}

	logger.Info("Starting graceful shutdown...")
	cancel()

	if err := client.Stop(); err != nil {
		logger.Error("Error stopping messenger client", slog.String("error", err.Error()))
	}

	// Join the listener goroutine; Stop makes Listen return.
	if !listenerDone {
		if err := <-listenErr; err != nil && err != context.Canceled {
			logger.Error("Listener failed", slog.String("error", err.Error()))
		}
	}

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping monitoring server", slog.String("error", err.Error()))
		}
	}

	stats := dispatcher.GetStats()
	logger.Info("Final dispatcher statistics",
		slog.Uint64("messages_received", stats.MessagesReceived),
		slog.Uint64("attachments_seen", stats.AttachmentsSeen),
		slog.Uint64("transcribed", stats.Transcribed),
		slog.Uint64("failed", stats.Failed),
	)

	logger.Info("Service stopped")
}

// initLogger creates the structured logger from the logging configuration.
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	return slog.New(handler)
}
