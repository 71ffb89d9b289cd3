// Package cache manages the on-disk test-data cache of a judge host.
// Each (host, domain, problem) tuple has one directory holding the
// downloaded files, an `etags` manifest sidecar with per-file version
// fingerprints, and a `lastUsage` timestamp consulted by external
// eviction.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	manifestFile = "etags"
	usageFile    = "lastUsage"
)

// Manifest maps a relative file name to its version fingerprint
// (etag + last-modified concatenated)
type Manifest map[string]string

type Store struct {
	root string
}

func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) Root() string {
	return s.root
}

// ProblemDir returns the cache directory for one problem. It does not
// create the directory.
func (s *Store) ProblemDir(host string, domainID string, problemID string) string {
	return filepath.Join(s.root, host, domainID, problemID)
}

// EnsureDir creates dir if it does not exist yet
func (s *Store) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return nil
}

// ReadManifest loads the persisted local manifest of dir. A missing or
// corrupt sidecar yields an empty manifest, which forces a full
// re-download on the next sync instead of failing it.
func (s *Store) ReadManifest(dir string) Manifest {
	b, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return Manifest{}
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return Manifest{}
	}
	if m == nil {
		m = Manifest{}
	}
	return m
}

// WriteManifest persists m as the manifest sidecar of dir. The write
// goes to a temp file first and is committed with a rename so a crash
// mid-write never leaves a manifest referencing files that were not
// downloaded.
func (s *Store) WriteManifest(dir string, m Manifest) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	tmp := filepath.Join(dir, manifestFile+".tmp")
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, manifestFile)); err != nil {
		return fmt.Errorf("failed to commit manifest: %w", err)
	}
	return nil
}

// TouchUsage records the current time in the lastUsage sidecar
func (s *Store) TouchUsage(dir string) error {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	err := os.WriteFile(filepath.Join(dir, usageFile), []byte(ts), 0644)
	if err != nil {
		return fmt.Errorf("failed to touch usage timestamp: %w", err)
	}
	return nil
}

// RemoveFile deletes one cached file; absent files are not an error
func (s *Store) RemoveFile(dir string, name string) error {
	err := os.Remove(filepath.Join(dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cached file %s: %w", name, err)
	}
	return nil
}
