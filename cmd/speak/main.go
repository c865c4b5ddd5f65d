// Command speak renders text to a cached mp3 file and prints the file path.
//
//	speak [-lang en] [-dir audio/] [-stub] text...
//
// Text is read from standard input when no arguments are given.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nupi-ai/plugin-tts-remote-gtranslate/internal/cache"
	"github.com/nupi-ai/plugin-tts-remote-gtranslate/internal/config"
	"github.com/nupi-ai/plugin-tts-remote-gtranslate/internal/gtranslate"
	"github.com/nupi-ai/plugin-tts-remote-gtranslate/internal/speech"
	"github.com/nupi-ai/plugin-tts-remote-gtranslate/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "speak: read .env:", err)
	}

	if err := run(ctx, os.Args[1:], os.LookupEnv, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "speak:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, lookup func(string) (string, bool), stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("speak", flag.ContinueOnError)
	fs.SetOutput(stderr)
	lang := fs.String("lang", "", "ISO 639-1 language code (default from configuration)")
	dir := fs.String("dir", "", "cache directory (default from configuration)")
	stub := fs.Bool("stub", false, "use the deterministic stub fetcher")
	verbose := fs.Bool("v", false, "log debug output to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Loader{Lookup: lookup}.Load()
	if err != nil {
		return err
	}
	if *dir != "" {
		cfg.CacheDir = *dir
	}
	if *stub {
		cfg.UseStubFetcher = true
	}

	text := strings.Join(fs.Args(), " ")
	if text == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = strings.TrimSpace(string(data))
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	var fetcher gtranslate.Fetcher
	if cfg.UseStubFetcher {
		fetcher = gtranslate.NewStubFetcher(logger)
	} else {
		fetcher = gtranslate.NewClient(cfg.EndpointURL, gtranslate.NewHTTPGetter(cfg.RequestTimeout, cfg.UserAgent))
	}

	store, err := cache.New(cfg.CacheDir, cfg.FileTemplate, logger)
	if err != nil {
		return err
	}

	language := *lang
	if language == "" && cfg.Language != config.LanguageClient {
		language = cfg.Language
	}
	synth := speech.New(speech.Options{
		MaxChunkLength:  cfg.MaxChunkLength,
		DefaultLanguage: config.DefaultLanguage,
		KeyByLanguage:   cfg.KeyByLanguage,
	}, fetcher, store, telemetry.NewRecorder(logger))

	path, err := synth.Speak(ctx, text, strings.ToLower(language))
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, path)
	return nil
}
