// Package speech turns text of any length into a cached mp3 artifact.
//
// Text within the endpoint limit is fetched in one request and stored as is.
// Longer text is split into word-bounded chunks. Each chunk is fetched as an
// intermediate artifact and cleaned of its framing, and the chunks are
// concatenated in order into the final artifact. Intermediates are removed once
// folded in. Artifacts are addressed by a hash of their text, so repeated
// requests are served from disk.
package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nupi-ai/plugin-tts-remote-gtranslate/internal/cache"
	"github.com/nupi-ai/plugin-tts-remote-gtranslate/internal/gtranslate"
	"github.com/nupi-ai/plugin-tts-remote-gtranslate/internal/mp3"
	"github.com/nupi-ai/plugin-tts-remote-gtranslate/internal/telemetry"
	"github.com/nupi-ai/plugin-tts-remote-gtranslate/internal/textchunk"
)

const (
	DefaultMaxChunkLength = 100
	DefaultLanguage       = "en"
)

var (
	ErrInvalidInput              = errors.New("speech: text is required")
	ErrCacheDirectoryUnavailable = cache.ErrDirUnavailable
	ErrFetchFailed               = gtranslate.ErrFetchFailed
	ErrNoSyncMarker              = mp3.ErrNoSyncMarker
)

// Options configures a Synthesizer.
type Options struct {
	// MaxChunkLength is the endpoint's per-request character budget.
	MaxChunkLength int
	// DefaultLanguage is used when Speak is called without a language.
	DefaultLanguage string
	// KeyByLanguage includes the language in artifact identifiers. When false
	// the identifier depends on the text only, so the same text requested in
	// two languages shares one artifact.
	KeyByLanguage bool
}

func (o Options) withDefaults() Options {
	if o.MaxChunkLength < 2 {
		o.MaxChunkLength = DefaultMaxChunkLength
	}
	if o.DefaultLanguage == "" {
		o.DefaultLanguage = DefaultLanguage
	}
	return o
}

// Result describes a finished Speak call.
type Result struct {
	Path   string
	Key    string
	Cached bool
	// Chunks is the number of endpoint requests assembled into the artifact;
	// zero when it came from the cache.
	Chunks int
}

// Synthesizer produces mp3 artifacts for text.
type Synthesizer struct {
	opts    Options
	fetcher gtranslate.Fetcher
	cache   *cache.Cache
	metrics *telemetry.Recorder
	log     *slog.Logger

	flights singleflight.Group
}

// New returns a Synthesizer that fetches with fetcher and stores artifacts in
// store.
func New(opts Options, fetcher gtranslate.Fetcher, store *cache.Cache, metrics *telemetry.Recorder) *Synthesizer {
	if fetcher == nil {
		panic("speech: fetcher must not be nil")
	}
	if store == nil {
		panic("speech: cache must not be nil")
	}
	if metrics == nil {
		metrics = telemetry.NewRecorder(slog.Default())
	}
	opts = opts.withDefaults()
	return &Synthesizer{
		opts:    opts,
		fetcher: fetcher,
		cache:   store,
		metrics: metrics,
		log: metrics.Logger().With(
			"component", "speech",
			"max_chunk_length", opts.MaxChunkLength,
		),
	}
}

// Options returns the effective options.
func (s *Synthesizer) Options() Options {
	return s.opts
}

// Speak returns the path of an mp3 file rendering text in language. An empty
// language selects the default.
func (s *Synthesizer) Speak(ctx context.Context, text, language string) (string, error) {
	res, err := s.Synthesize(ctx, text, language)
	if err != nil {
		return "", err
	}
	return res.Path, nil
}

// Synthesize is Speak with details about how the artifact was obtained.
// Concurrent calls for the same artifact share one execution.
func (s *Synthesizer) Synthesize(ctx context.Context, text, language string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrInvalidInput
	}
	if language == "" {
		language = s.opts.DefaultLanguage
	}
	if err := s.cache.EnsureDir(); err != nil {
		return Result{}, err
	}

	key := s.key(text, language)
	v, err, _ := s.flights.Do(key, func() (any, error) {
		return s.synthesize(ctx, key, text, language)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (s *Synthesizer) synthesize(ctx context.Context, key, text, language string) (Result, error) {
	logEntry := s.log.With("key", key, "language", language, "text_length", textchunk.Len(text))
	merged := textchunk.Len(text) > s.opts.MaxChunkLength

	if s.cache.Has(key) {
		logEntry.Debug("cache hit")
		s.metrics.CacheHit(ctx, merged)
		return Result{Path: s.cache.Path(key), Key: key, Cached: true}, nil
	}

	if !merged {
		data, err := s.fetch(ctx, text, language)
		if err != nil {
			logEntry.Error("fetch failed", "error", err)
			return Result{}, err
		}
		path, err := s.cache.Put(key, data)
		if err != nil {
			return Result{}, err
		}
		logEntry.Info("stored artifact", "bytes", len(data))
		return Result{Path: path, Key: key, Chunks: 1}, nil
	}

	chunks := textchunk.Split(text, s.opts.MaxChunkLength)
	logEntry.Info("splitting text", "chunks", len(chunks))

	var contents []byte
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		fragment, err := s.fragment(ctx, chunk, language)
		if err != nil {
			logEntry.Error("merge aborted", "chunk", chunk.Ordinal, "error", err)
			return Result{}, err
		}
		contents = append(contents, fragment...)
	}

	path, err := s.cache.Put(key, contents)
	if err != nil {
		return Result{}, err
	}
	s.metrics.Merge(ctx, len(chunks))
	logEntry.Info("stored merged artifact", "chunks", len(chunks), "bytes", len(contents))
	return Result{Path: path, Key: key, Chunks: len(chunks)}, nil
}

// fragment obtains the cleaned audio of one chunk. Concurrent requests sharing
// a chunk share its fetch.
func (s *Synthesizer) fragment(ctx context.Context, chunk textchunk.Chunk, language string) ([]byte, error) {
	key := s.key(chunk.Text, language)
	v, err, _ := s.flights.Do("chunk/"+key, func() (any, error) {
		return s.loadFragment(ctx, key, chunk, language)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// loadFragment persists the chunk as an intermediate artifact and removes it
// again once read. An artifact that was already on disk belongs to an earlier
// request and is left in place.
func (s *Synthesizer) loadFragment(ctx context.Context, key string, chunk textchunk.Chunk, language string) ([]byte, error) {
	owned := !s.cache.Has(key)
	if owned {
		data, err := s.fetch(ctx, chunk.Text, language)
		if err != nil {
			return nil, err
		}
		if _, err := s.cache.Put(key, data); err != nil {
			return nil, err
		}
	}
	defer func() {
		if !owned {
			return
		}
		if err := s.cache.Remove(key); err != nil {
			s.log.Warn("failed to remove intermediate artifact", "key", key, "error", err)
		}
	}()

	raw, err := s.cache.Read(key)
	if err != nil {
		return nil, err
	}
	cleaned, err := mp3.Clean(raw)
	if err != nil {
		return nil, fmt.Errorf("speech: chunk %d: %w", chunk.Ordinal, err)
	}
	s.log.Debug("trimmed fragment",
		"chunk", chunk.Ordinal,
		"key", key,
		"raw_bytes", len(raw),
		"bytes", len(cleaned),
	)
	return cleaned, nil
}

func (s *Synthesizer) fetch(ctx context.Context, text, language string) ([]byte, error) {
	start := time.Now()
	data, err := s.fetcher.Fetch(ctx, gtranslate.Request{Text: text, Language: language})
	s.metrics.Fetch(ctx, language, time.Since(start), err)
	if err != nil {
		if !errors.Is(err, ErrFetchFailed) {
			err = fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty audio", ErrFetchFailed)
	}
	return data, nil
}

func (s *Synthesizer) key(text, language string) string {
	if s.opts.KeyByLanguage {
		return cache.Key(text, language)
	}
	return cache.Key(text, "")
}
