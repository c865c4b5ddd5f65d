package cache

import (
	"crypto/md5"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	// DefaultFileTemplate names an artifact after its key.
	DefaultFileTemplate = "%s.mp3"

	dirMode  = 0o775
	fileMode = 0o644
)

// ErrDirUnavailable is returned when the cache directory cannot be created or
// made writable.
var ErrDirUnavailable = errors.New("cache: directory unavailable")

// Cache is a content-addressed store of synthesized mp3 artifacts. The
// existence of an artifact file is the only index.
type Cache struct {
	dir      string
	template string
	log      *slog.Logger
}

// New creates a Cache rooted at dir. It creates dir if it does not exist and
// repairs its permissions when it is not writable.
func New(dir, template string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if template == "" {
		template = DefaultFileTemplate
	}
	if strings.Count(template, "%s") != 1 {
		return nil, fmt.Errorf("cache: file template %q must contain exactly one %%s", template)
	}
	c := &Cache{
		dir:      filepath.Clean(dir),
		template: template,
		log:      logger.With("component", "cache"),
	}
	if err := c.EnsureDir(); err != nil {
		return nil, err
	}
	return c, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// EnsureDir checks that the cache directory exists and is writable, creating it
// or fixing its mode when needed.
func (c *Cache) EnsureDir() error {
	info, err := os.Stat(c.dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(c.dir, dirMode); err != nil {
			return fmt.Errorf("%w: create %s: %w", ErrDirUnavailable, c.dir, err)
		}
		c.log.Info("created cache directory", "dir", c.dir)
		return nil
	case err != nil:
		return fmt.Errorf("%w: stat %s: %w", ErrDirUnavailable, c.dir, err)
	case !info.IsDir():
		return fmt.Errorf("%w: %s is not a directory", ErrDirUnavailable, c.dir)
	}

	if writable(c.dir) {
		return nil
	}
	if err := os.Chmod(c.dir, dirMode); err != nil {
		return fmt.Errorf("%w: chmod %s: %w", ErrDirUnavailable, c.dir, err)
	}
	if !writable(c.dir) {
		return fmt.Errorf("%w: %s is not writable", ErrDirUnavailable, c.dir)
	}
	c.log.Warn("repaired cache directory permissions", "dir", c.dir)
	return nil
}

// Key derives the artifact identifier: the md5 hex digest of text. A non-empty
// language is mixed in, so the same text in two languages gets two artifacts.
func Key(text, language string) string {
	h := md5.New()
	h.Write([]byte(text))
	if language != "" {
		fmt.Fprintf(h, "\x00lang=%s", language)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Path returns the artifact path for key.
func (c *Cache) Path(key string) string {
	return filepath.Join(c.dir, fmt.Sprintf(c.template, key))
}

// Has reports whether an artifact exists for key.
func (c *Cache) Has(key string) bool {
	info, err := os.Stat(c.Path(key))
	return err == nil && info.Mode().IsRegular()
}

// Read returns the artifact bytes for key.
func (c *Cache) Read(key string) ([]byte, error) {
	data, err := os.ReadFile(c.Path(key))
	if err != nil {
		return nil, fmt.Errorf("cache: read: %w", err)
	}
	return data, nil
}

// Put stores data under key and returns the artifact path. The data goes to a
// temporary file that is renamed into place; if another writer got there
// first, its artifact is kept and the temporary file discarded.
func (c *Cache) Put(key string, data []byte) (string, error) {
	final := c.Path(key)
	if c.Has(key) {
		c.log.Debug("artifact already present, keeping first write", "key", key)
		return final, nil
	}

	tmp := filepath.Join(c.dir, "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, fileMode); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("cache: write: %w", err)
	}
	if c.Has(key) {
		os.Remove(tmp)
		return final, nil
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("cache: rename: %w", err)
	}
	c.log.Debug("stored artifact", "key", key, "bytes", len(data))
	return final, nil
}

// Remove deletes the artifact for key. A missing artifact is not an error.
func (c *Cache) Remove(key string) error {
	if err := os.Remove(c.Path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("cache: remove: %w", err)
	}
	return nil
}

// writable probes dir by creating and removing a file in it.
func writable(dir string) bool {
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}
