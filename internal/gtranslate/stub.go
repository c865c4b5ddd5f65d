package gtranslate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// stubHeader mimics the short preamble the endpoint puts in front of the first
// frame.
var stubHeader = []byte{'I', 'D', '3', 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

// StubFetcher implements Fetcher with deterministic mp3-like output. It is
// intended for CI and testing environments without access to the endpoint.
type StubFetcher struct {
	log *slog.Logger
}

// NewStubFetcher returns a stub producing a header followed by one pseudo
// frame per input character.
func NewStubFetcher(logger *slog.Logger) *StubFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubFetcher{log: logger}
}

// Fetch returns len(stubHeader) + 4*len(text) bytes. Every frame starts with
// 0xFF 0xFB so the result survives sync trimming.
func (s *StubFetcher) Fetch(_ context.Context, req Request) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("gtranslate: text is required")
	}
	if req.Language == "" {
		return nil, fmt.Errorf("gtranslate: language is required")
	}

	out := make([]byte, 0, len(stubHeader)+4*len(req.Text))
	out = append(out, stubHeader...)
	for i := 0; i < len(req.Text); i++ {
		out = append(out, 0xFF, 0xFB, req.Text[i], 0x00)
	}

	s.log.Info("stub fetch",
		"text_length", len(req.Text),
		"language", req.Language,
		"bytes", len(out),
	)
	return out, nil
}
