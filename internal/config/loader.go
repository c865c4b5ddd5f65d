package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Loader loads configuration from environment variables. Tests can override
// Lookup to inject deterministic maps.
type Loader struct {
	Lookup func(string) (string, bool)
}

// Load retrieves the adapter configuration from environment variables and validates it.
func (l Loader) Load() (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}

	cfg := Config{
		ListenAddr: DefaultListenAddr,
	}

	if raw, ok := l.Lookup("NUPI_ADAPTER_CONFIG"); ok && strings.TrimSpace(raw) != "" {
		if err := applyJSON(raw, &cfg); err != nil {
			return Config{}, err
		}
	}

	overrideString(l.Lookup, "NUPI_ADAPTER_LISTEN_ADDR", &cfg.ListenAddr)
	overrideString(l.Lookup, "NUPI_LOG_LEVEL", &cfg.LogLevel)
	overrideString(l.Lookup, "NUPI_ADAPTER_CACHE_DIR", &cfg.CacheDir)
	if err := overrideBool(l.Lookup, "NUPI_ADAPTER_USE_STUB_FETCHER", &cfg.UseStubFetcher); err != nil {
		return Config{}, err
	}

	// Default cache directory
	if cfg.CacheDir == "" {
		if dataDir, ok := l.Lookup("NUPI_ADAPTER_DATA_DIR"); ok && dataDir != "" {
			cfg.CacheDir = filepath.Join(dataDir, "audio")
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyJSON(raw string, cfg *Config) error {
	type jsonConfig struct {
		ListenAddr       string `json:"listen_addr"`
		LogLevel         string `json:"log_level"`
		Language         string `json:"language"`
		CacheDir         string `json:"cache_dir"`
		FileTemplate     string `json:"file_template"`
		KeyByLanguage    *bool  `json:"key_by_language"`
		EndpointURL      string `json:"endpoint_url"`
		UserAgent        string `json:"user_agent"`
		RequestTimeoutMS *int   `json:"request_timeout_ms"`
		MaxChunkLength   *int   `json:"max_chunk_length"`
		UseStubFetcher   *bool  `json:"use_stub_fetcher"`
	}
	var payload jsonConfig
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fmt.Errorf("config: decode NUPI_ADAPTER_CONFIG: %w", err)
	}
	if payload.ListenAddr != "" {
		cfg.ListenAddr = payload.ListenAddr
	}
	if payload.LogLevel != "" {
		cfg.LogLevel = payload.LogLevel
	}
	if payload.Language != "" {
		cfg.Language = payload.Language
	}
	if payload.CacheDir != "" {
		cfg.CacheDir = payload.CacheDir
	}
	if payload.FileTemplate != "" {
		cfg.FileTemplate = payload.FileTemplate
	}
	if payload.KeyByLanguage != nil {
		cfg.KeyByLanguage = *payload.KeyByLanguage
	}
	if payload.EndpointURL != "" {
		cfg.EndpointURL = payload.EndpointURL
	}
	if payload.UserAgent != "" {
		cfg.UserAgent = payload.UserAgent
	}
	if payload.RequestTimeoutMS != nil {
		cfg.RequestTimeout = time.Duration(*payload.RequestTimeoutMS) * time.Millisecond
	}
	if payload.MaxChunkLength != nil {
		cfg.MaxChunkLength = *payload.MaxChunkLength
	}
	if payload.UseStubFetcher != nil {
		cfg.UseStubFetcher = *payload.UseStubFetcher
	}
	return nil
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if lookup == nil || target == nil {
		return
	}
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideBool(lookup func(string) (string, bool), key string, target *bool) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*target = b
	return nil
}
