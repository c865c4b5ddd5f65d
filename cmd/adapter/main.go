package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	napv1 "github.com/nupi-ai/nupi/api/nap/v1"

	"github.com/nupi-ai/plugin-tts-remote-gtranslate/internal/adapterinfo"
	"github.com/nupi-ai/plugin-tts-remote-gtranslate/internal/cache"
	"github.com/nupi-ai/plugin-tts-remote-gtranslate/internal/config"
	"github.com/nupi-ai/plugin-tts-remote-gtranslate/internal/gtranslate"
	"github.com/nupi-ai/plugin-tts-remote-gtranslate/internal/server"
	"github.com/nupi-ai/plugin-tts-remote-gtranslate/internal/speech"
	"github.com/nupi-ai/plugin-tts-remote-gtranslate/internal/telemetry"
)

// lazyTTSServer wraps a TextToSpeechServiceServer and allows deferred initialization.
// It returns Unavailable errors until the underlying server is set via setServer.
type lazyTTSServer struct {
	napv1.UnimplementedTextToSpeechServiceServer
	server atomic.Pointer[napv1.TextToSpeechServiceServer]
}

func (l *lazyTTSServer) setServer(srv napv1.TextToSpeechServiceServer) {
	l.server.Store(&srv)
}

func (l *lazyTTSServer) StreamSynthesis(req *napv1.StreamSynthesisRequest, stream napv1.TextToSpeechService_StreamSynthesisServer) error {
	srv := l.server.Load()
	if srv == nil {
		return status.Error(codes.Unavailable, "TTS service is initializing, please retry in a moment")
	}
	return (*srv).StreamSynthesis(req, stream)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A .env file is optional; the runner normally injects the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env file", "error", err)
	}

	cfg, err := config.Loader{}.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("starting adapter",
		"adapter", adapterinfo.Info.Name,
		"adapter_slug", adapterinfo.Info.Slug,
		"adapter_version", adapterinfo.Version(),
		"listen_addr", cfg.ListenAddr,
		"language", cfg.Language,
		"cache_dir", cfg.CacheDir,
		"endpoint", cfg.EndpointURL,
		"max_chunk_length", cfg.MaxChunkLength,
	)

	recorder := telemetry.NewRecorder(logger)

	// STEP 1: Bind port IMMEDIATELY (before preparing the cache)
	// This allows the manager's readiness check to succeed while the adapter initializes.
	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to bind listener", "error", err)
		os.Exit(1)
	}
	defer lis.Close()
	logger.Info("listener bound, port ready", "addr", lis.Addr().String())

	// STEP 2: Setup gRPC server with lazy TTS service wrapper
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthgrpc.RegisterHealthServer(grpcServer, healthServer)

	serviceName := napv1.TextToSpeechService_ServiceDesc.ServiceName
	healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(serviceName, healthgrpc.HealthCheckResponse_NOT_SERVING)

	lazyService := &lazyTTSServer{}
	napv1.RegisterTextToSpeechServiceServer(grpcServer, lazyService)

	// STEP 3: Start gRPC server in background (port is already bound)
	serverErr := make(chan error, 1)
	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serverErr <- err
		}
	}()
	logger.Info("gRPC server started (NOT_SERVING while initializing)")

	// STEP 4: Initialize fetcher
	var fetcher gtranslate.Fetcher
	if cfg.UseStubFetcher {
		fetcher = gtranslate.NewStubFetcher(logger)
		logger.Info("using STUB fetcher: responses are deterministic, NOT from the translate endpoint")
	} else {
		fetcher = gtranslate.NewClient(cfg.EndpointURL, gtranslate.NewHTTPGetter(cfg.RequestTimeout, cfg.UserAgent))
		logger.Info("translate client initialized", "timeout", cfg.RequestTimeout)
	}

	// STEP 5: Prepare the artifact cache; synthesis is impossible without it.
	audioCache, err := cache.New(cfg.CacheDir, cfg.FileTemplate, logger)
	if err != nil {
		logger.Error("failed to initialize cache", "dir", cfg.CacheDir, "error", err)
		grpcServer.Stop()
		os.Exit(1)
	}
	logger.Info("audio cache initialized", "dir", audioCache.Dir())

	// STEP 6: Activate the real TTS service now that the synthesizer is ready
	synthesizer := speech.New(speech.Options{
		MaxChunkLength:  cfg.MaxChunkLength,
		DefaultLanguage: defaultLanguage(cfg.Language),
		KeyByLanguage:   cfg.KeyByLanguage,
	}, fetcher, audioCache, recorder)
	realService := server.New(cfg, logger, synthesizer, recorder)
	lazyService.setServer(realService)

	healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(serviceName, healthgrpc.HealthCheckResponse_SERVING)
	logger.Info("adapter ready to serve requests")

	// STEP 7: Setup graceful shutdown
	go func() {
		<-ctx.Done()
		logger.Info("shutdown requested, stopping gRPC server")
		healthServer.SetServingStatus(serviceName, healthgrpc.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_NOT_SERVING)

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
		case <-time.After(5 * time.Second):
			logger.Warn("graceful stop timed out, forcing stop")
			grpcServer.Stop()
		}
	}()

	// STEP 8: Wait for server to finish or error
	select {
	case err := <-serverErr:
		logger.Error("gRPC server terminated with error", "error", err)
		os.Exit(1)
	case <-ctx.Done():
		// Normal shutdown via signal
	}

	logger.Info("adapter stopped")
}

func newLogger(level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler)
}

func parseLevel(value string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// defaultLanguage is the language used when a request carries none. In client
// mode that is the built-in default.
func defaultLanguage(configured string) string {
	if configured == config.LanguageClient {
		return config.DefaultLanguage
	}
	return configured
}
