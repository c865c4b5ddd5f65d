package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultListenAddr is used when the adapter runner does not inject an explicit address.
	DefaultListenAddr     = "127.0.0.1:50051"
	DefaultLogLevel       = "info"
	DefaultLanguage       = "en"
	DefaultCacheDir       = "audio/"
	DefaultFileTemplate   = "%s.mp3"
	DefaultMaxChunkLength = 100
	DefaultEndpointURL    = "https://translate.google.com/translate_tts"
	DefaultUserAgent      = "Mozilla/5.0 (Windows; U; Windows NT 5.1; rv:1.7.3) Gecko/20041001 Firefox/0.10.1"
	DefaultRequestTimeout = 10 * time.Second

	// LanguageClient takes the language from request metadata.
	LanguageClient = "client"
)

// Config captures bootstrap configuration extracted from environment variables
// or injected JSON payload (`NUPI_ADAPTER_CONFIG`).
type Config struct {
	ListenAddr string
	LogLevel   string

	// Language is an ISO 639-1 code, or "client" to honour the language
	// announced in request metadata.
	Language string

	// Artifact cache
	CacheDir      string
	FileTemplate  string
	KeyByLanguage bool

	// Remote endpoint
	EndpointURL    string
	UserAgent      string
	RequestTimeout time.Duration
	MaxChunkLength int

	UseStubFetcher bool
}

// Validate applies defaults and raises an error when values are out of range.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen address is required")
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.Language = strings.ToLower(strings.TrimSpace(c.Language))
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.CacheDir == "" {
		c.CacheDir = DefaultCacheDir
	}
	if c.FileTemplate == "" {
		c.FileTemplate = DefaultFileTemplate
	}
	if strings.Count(c.FileTemplate, "%s") != 1 || strings.Count(c.FileTemplate, "%") != 1 {
		return fmt.Errorf("config: file_template must contain exactly one %%s, got %q", c.FileTemplate)
	}
	if c.EndpointURL == "" {
		c.EndpointURL = DefaultEndpointURL
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}

	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("config: request_timeout_ms must be positive, got %s", c.RequestTimeout)
	}
	if c.MaxChunkLength == 0 {
		c.MaxChunkLength = DefaultMaxChunkLength
	}
	if c.MaxChunkLength < 2 {
		return fmt.Errorf("config: max_chunk_length must be at least 2, got %d", c.MaxChunkLength)
	}

	return nil
}
