package cache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gateci/pkg/utils"
)

// ErrMiss is returned by Restore when no entry exists for a key.
// A miss degrades the run to a cold one; it is not a failure.
var ErrMiss = errors.New("cache miss")

// Cache is a filesystem-backed, read-through dependency cache. Entries
// are content-addressed: the key is derived from the dependency lock
// file, so concurrent writers for the same key race benignly
// (last write wins, identical contents).
type Cache struct {
	BaseDir string
}

func New(baseDir string) *Cache {
	return &Cache{BaseDir: baseDir}
}

// Key builds a cache key from a scope prefix and the hash of the
// dependency lock file.
func (c *Cache) Key(scope, lockPath string) (string, error) {
	h, err := utils.HashFile(lockPath)
	if err != nil {
		return "", fmt.Errorf("hash lock file: %w", err)
	}
	return scope + "-" + h, nil
}

// Has reports whether an entry exists for key.
func (c *Cache) Has(key string) bool {
	info, err := os.Stat(c.entryDir(key))
	return err == nil && info.IsDir()
}

// Restore copies the cached entry for key into dst. Returns ErrMiss when
// the key has no entry.
func (c *Cache) Restore(key, dst string) error {
	src := c.entryDir(key)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return ErrMiss
	}
	if err := os.MkdirAll(dst, 0775); err != nil {
		return err
	}
	return copyTree(src, dst)
}

// Save stores the contents of src as the entry for key. The entry is
// staged into a temp dir and renamed into place so readers never see a
// half-written entry.
func (c *Cache) Save(key, src string) error {
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("cache source: %w", err)
	}
	if err := os.MkdirAll(c.BaseDir, 0775); err != nil {
		return err
	}
	tmp, err := os.MkdirTemp(c.BaseDir, "stage-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	if err := copyTree(src, tmp); err != nil {
		return err
	}

	final := c.entryDir(key)
	// last write wins: drop any existing entry for this key
	if err := os.RemoveAll(final); err != nil {
		return err
	}
	return os.Rename(tmp, final)
}

func (c *Cache) entryDir(key string) string {
	return filepath.Join(c.BaseDir, key)
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0775)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
