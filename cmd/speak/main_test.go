package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nupi-ai/plugin-tts-remote-gtranslate/internal/speech"
)

func emptyEnv(string) (string, bool) { return "", false }

func TestRunWritesArtifactPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audio")
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{"-stub", "-dir", dir, "hello", "world"}, emptyEnv, strings.NewReader(""), &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v (stderr: %s)", err, stderr.String())
	}

	path := strings.TrimSpace(stdout.String())
	if filepath.Dir(path) != dir {
		t.Errorf("path %q not inside %q", path, dir)
	}
	if !strings.HasSuffix(path, ".mp3") {
		t.Errorf("path %q does not use the default template", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("artifact missing: %v", err)
	}
}

func TestRunReadsStdin(t *testing.T) {
	dir := t.TempDir()
	var fromArgs, fromStdin bytes.Buffer

	if err := run(context.Background(), []string{"-stub", "-dir", dir, "from", "stdin"}, emptyEnv, strings.NewReader(""), &fromArgs, &bytes.Buffer{}); err != nil {
		t.Fatalf("run args: %v", err)
	}
	if err := run(context.Background(), []string{"-stub", "-dir", dir}, emptyEnv, strings.NewReader("from stdin\n"), &fromStdin, &bytes.Buffer{}); err != nil {
		t.Fatalf("run stdin: %v", err)
	}
	if fromArgs.String() != fromStdin.String() {
		t.Errorf("stdin path %q differs from args path %q", fromStdin.String(), fromArgs.String())
	}
}

func TestRunUsesEnvironmentConfig(t *testing.T) {
	dir := t.TempDir()
	env := map[string]string{
		"NUPI_ADAPTER_CACHE_DIR":        dir,
		"NUPI_ADAPTER_USE_STUB_FETCHER": "true",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	var stdout bytes.Buffer
	if err := run(context.Background(), []string{"configured"}, lookup, strings.NewReader(""), &stdout, &bytes.Buffer{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := filepath.Dir(strings.TrimSpace(stdout.String())); got != dir {
		t.Errorf("artifact dir = %q, want %q", got, dir)
	}
}

func TestRunEmptyText(t *testing.T) {
	err := run(context.Background(), []string{"-stub", "-dir", t.TempDir()}, emptyEnv, strings.NewReader("  "), &bytes.Buffer{}, &bytes.Buffer{})
	if !errors.Is(err, speech.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestRunBadFlag(t *testing.T) {
	var stderr bytes.Buffer
	if err := run(context.Background(), []string{"-nope"}, emptyEnv, strings.NewReader(""), &bytes.Buffer{}, &stderr); err == nil {
		t.Error("expected error for unknown flag")
	}
}
