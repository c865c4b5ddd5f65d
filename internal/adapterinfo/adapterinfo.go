package adapterinfo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// AudioFormat is the container of every artifact the adapter produces.
	AudioFormat = "mp3"

	manifestFile = "plugin.yaml"
	manifestEnv  = "NUPI_ADAPTER_MANIFEST"
	expectedSlot = "tts"
)

// Metadata captures static identifiers for the adapter as declared in
// plugin.yaml.
type Metadata struct {
	Name        string
	BinaryName  string
	Slug        string
	Description string
	GeneratorID string
	Version     string
}

// Info describes the current adapter.
var Info = mustLoad()

// SynthesisMetadata produces the metadata payload attached to emitted audio
// chunks.
func SynthesisMetadata(language string) map[string]string {
	return map[string]string{
		"generator": Info.GeneratorID,
		"language":  language,
		"format":    AudioFormat,
	}
}

// Version returns the adapter semantic version.
func Version() string {
	return Info.Version
}

func mustLoad() Metadata {
	path, err := findManifest(manifestCandidates())
	if err != nil {
		panic(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Errorf("adapterinfo: read %s: %w", path, err))
	}
	meta, err := parseManifest(data)
	if err != nil {
		panic(err)
	}
	return meta
}

// manifestCandidates lists the places plugin.yaml may live, most specific
// first: an explicit override, the binary's directory, the working directory
// and the source tree.
func manifestCandidates() []string {
	var dirs []string
	if p, ok := os.LookupEnv(manifestEnv); ok && strings.TrimSpace(p) != "" {
		return []string{strings.TrimSpace(p)}
	}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}
	if _, file, _, ok := runtime.Caller(0); ok {
		dirs = append(dirs, filepath.Join(filepath.Dir(file), "..", ".."))
	}

	paths := make([]string, 0, len(dirs))
	for _, d := range dirs {
		paths = append(paths, filepath.Join(filepath.Clean(d), manifestFile))
	}
	return paths
}

func findManifest(paths []string) (string, error) {
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, nil
		}
	}
	return "", errors.New("adapterinfo: plugin.yaml not found next to binary, in working directory or source tree")
}

type manifest struct {
	Metadata struct {
		Name        string `yaml:"name"`
		Slug        string `yaml:"slug"`
		Description string `yaml:"description"`
		Version     string `yaml:"version"`
		Generator   string `yaml:"generator"`
	} `yaml:"metadata"`
	Spec struct {
		Slot       string `yaml:"slot"`
		Entrypoint struct {
			Command string `yaml:"command"`
		} `yaml:"entrypoint"`
	} `yaml:"spec"`
}

func parseManifest(data []byte) (Metadata, error) {
	var doc manifest
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Metadata{}, fmt.Errorf("adapterinfo: decode manifest: %w", err)
	}

	if slot := strings.TrimSpace(doc.Spec.Slot); slot != "" && slot != expectedSlot {
		return Metadata{}, fmt.Errorf("adapterinfo: manifest declares slot %q, want %q", slot, expectedSlot)
	}

	meta := Metadata{
		Name:        strings.TrimSpace(doc.Metadata.Name),
		Slug:        strings.TrimSpace(doc.Metadata.Slug),
		Description: strings.TrimSpace(doc.Metadata.Description),
		Version:     strings.TrimSpace(doc.Metadata.Version),
		GeneratorID: strings.TrimSpace(doc.Metadata.Generator),
		BinaryName:  strings.TrimPrefix(strings.TrimSpace(doc.Spec.Entrypoint.Command), "./"),
	}
	switch {
	case meta.Version == "":
		return Metadata{}, errors.New("adapterinfo: metadata.version missing in manifest")
	case meta.Slug == "":
		return Metadata{}, errors.New("adapterinfo: metadata.slug missing in manifest")
	}

	for _, f := range []*string{&meta.Name, &meta.BinaryName, &meta.GeneratorID} {
		if *f == "" {
			*f = meta.Slug
		}
	}
	if meta.Description == "" {
		meta.Description = meta.Name
	}
	return meta, nil
}
