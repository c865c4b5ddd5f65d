package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	napv1 "github.com/nupi-ai/nupi/api/nap/v1"

	"github.com/nupi-ai/plugin-tts-remote-gtranslate/internal/adapterinfo"
	"github.com/nupi-ai/plugin-tts-remote-gtranslate/internal/config"
	"github.com/nupi-ai/plugin-tts-remote-gtranslate/internal/speech"
	"github.com/nupi-ai/plugin-tts-remote-gtranslate/internal/telemetry"
)

const (
	chunkSize = 4096 // bytes of mp3 per streamed AudioChunk

	metadataLanguageKey = "nupi.lang.iso1"
)

// Speaker produces an mp3 artifact for text. *speech.Synthesizer implements it.
type Speaker interface {
	Synthesize(ctx context.Context, text, language string) (speech.Result, error)
}

// Server implements the TextToSpeechService on top of a Speaker.
type Server struct {
	napv1.UnimplementedTextToSpeechServiceServer

	cfg     config.Config
	log     *slog.Logger
	speaker Speaker
	metrics *telemetry.Recorder
}

// New returns a new Server instance.
func New(cfg config.Config, logger *slog.Logger, speaker Speaker, metrics *telemetry.Recorder) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if speaker == nil {
		panic("server: speaker must not be nil")
	}
	if metrics == nil {
		metrics = telemetry.NewRecorder(logger)
	}
	return &Server{
		cfg: cfg,
		log: logger.With(
			"component", "server",
			"language_mode", cfg.Language,
		),
		speaker: speaker,
		metrics: metrics,
	}
}

// StreamSynthesis synthesizes the requested text into a cached mp3 artifact and
// streams the artifact back in chunks.
func (s *Server) StreamSynthesis(req *napv1.StreamSynthesisRequest, stream napv1.TextToSpeechService_StreamSynthesisServer) error {
	if req == nil {
		return fmt.Errorf("server: request is nil")
	}

	text := req.GetText()
	logEntry := s.log.With(
		"session_id", req.GetSessionId(),
		"stream_id", req.GetStreamId(),
		"text_length", len(text),
	)

	if strings.TrimSpace(text) == "" {
		logEntry.Warn("empty text in synthesis request")
		return s.sendError(stream, "text is required")
	}

	language := resolveLanguage(s.cfg.Language, req.GetMetadata())
	logEntry = logEntry.With("language", language)
	logEntry.Info("synthesis request received")

	if err := s.sendStatus(stream, napv1.SynthesisStatus_SYNTHESIS_STATUS_STARTED, nil); err != nil {
		logEntry.Error("failed to send started status", "error", err)
		return err
	}

	start := time.Now()
	res, err := s.speaker.Synthesize(stream.Context(), text, language)
	if err != nil {
		logEntry.Error("synthesis failed", "error", err, "reason", errorReason(err))
		return s.sendError(stream, fmt.Sprintf("synthesis failed: %v", err))
	}

	data, err := os.ReadFile(res.Path)
	if err != nil {
		logEntry.Error("failed to read artifact", "path", res.Path, "error", err)
		return s.sendError(stream, fmt.Sprintf("read artifact: %v", err))
	}

	logEntry = logEntry.With("key", res.Key, "cached", res.Cached)
	source := "endpoint"
	if res.Cached {
		source = "cache"
	}
	metadata := map[string]string{
		"path":         res.Path,
		"source":       source,
		"requests":     strconv.Itoa(res.Chunks),
		"text_length":  strconv.Itoa(len(text)),
		"duration_sec": fmt.Sprintf("%.2f", time.Since(start).Seconds()),
	}
	return s.streamFromBytes(data, language, metadata, stream, logEntry)
}

// streamFromBytes streams an artifact in chunkSize pieces, then reports FINISHED
// with metadata extended by the stream totals.
func (s *Server) streamFromBytes(data []byte, language string, metadata map[string]string, stream napv1.TextToSpeechService_StreamSynthesisServer, logEntry *slog.Logger) error {
	if err := s.sendStatus(stream, napv1.SynthesisStatus_SYNTHESIS_STATUS_PLAYING, nil); err != nil {
		logEntry.Error("failed to send playing status", "error", err)
		return err
	}

	ctx := stream.Context()
	var sequence uint64
	for offset := 0; offset < len(data); offset += chunkSize {
		if err := ctx.Err(); err != nil {
			logEntry.Info("synthesis interrupted", "reason", err)
			return s.sendStatus(stream, napv1.SynthesisStatus_SYNTHESIS_STATUS_INTERRUPTED, map[string]string{
				"reason": err.Error(),
			})
		}

		end := min(offset+chunkSize, len(data))
		sequence++

		resp := &napv1.SynthesisResponse{
			Status: napv1.SynthesisStatus_SYNTHESIS_STATUS_PLAYING,
			Chunk: &napv1.AudioChunk{
				Data:     data[offset:end],
				Sequence: sequence,
				First:    sequence == 1,
				Last:     end == len(data),
				Metadata: adapterinfo.SynthesisMetadata(language),
			},
		}
		if err := stream.Send(resp); err != nil {
			logEntry.Error("failed to send audio chunk", "error", err, "sequence", sequence)
			return err
		}
	}

	logEntry.Info("synthesis completed",
		"total_bytes", len(data),
		"chunks", sequence,
		"source", metadata["source"],
	)

	metadata["total_bytes"] = strconv.Itoa(len(data))
	metadata["total_chunks"] = strconv.FormatUint(sequence, 10)
	return s.sendStatus(stream, napv1.SynthesisStatus_SYNTHESIS_STATUS_FINISHED, metadata)
}

func (s *Server) sendStatus(stream napv1.TextToSpeechService_StreamSynthesisServer, status napv1.SynthesisStatus, metadata map[string]string) error {
	resp := &napv1.SynthesisResponse{
		Status:   status,
		Metadata: metadata,
	}
	return stream.Send(resp)
}

func (s *Server) sendError(stream napv1.TextToSpeechService_StreamSynthesisServer, message string) error {
	resp := &napv1.SynthesisResponse{
		Status:       napv1.SynthesisStatus_SYNTHESIS_STATUS_ERROR,
		ErrorMessage: message,
	}
	if err := stream.Send(resp); err != nil {
		return err
	}
	return fmt.Errorf("synthesis error: %s", message)
}

// resolveLanguage returns the ISO 639-1 code to synthesize with.
//
// Modes:
//   - "client": read nupi.lang.iso1 from metadata; fall back to the default
//     language if absent.
//   - other:    the configured code verbatim (metadata ignored).
func resolveLanguage(configLang string, metadata map[string]string) string {
	if configLang != config.LanguageClient {
		return configLang
	}
	if code := strings.ToLower(strings.TrimSpace(metadata[metadataLanguageKey])); code != "" {
		return code
	}
	return config.DefaultLanguage
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, speech.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, speech.ErrCacheDirectoryUnavailable):
		return "cache_unavailable"
	case errors.Is(err, speech.ErrFetchFailed):
		return "fetch_failed"
	case errors.Is(err, speech.ErrNoSyncMarker):
		return "no_sync_marker"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal"
	}
}
