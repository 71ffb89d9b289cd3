package syncer

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// downloadFile fetches one test-data file into the cache directory.
// The body is written to a temp file and renamed into place so a
// partial transfer never shadows a previously good file. Zstd payloads
// are decompressed transparently.
func (s *Syncer) downloadFile(ctx context.Context, rawURL string, dir string, name string) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resp, err := s.server.Get(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("failed to download %s: status %d", name, resp.StatusCode)
	}

	tmp := filepath.Join(dir, name+".part")
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	defer out.Close()

	body := io.Reader(resp.Body)
	if isZstd(resp.Header.Get("Content-Type"), rawURL) {
		d, err := zstd.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to create zstd reader for %s: %w", name, err)
		}
		defer d.Close()
		body = d
	}

	if _, err := io.Copy(out, body); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", name, err)
	}

	if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("failed to move %s into cache: %w", name, err)
	}
	return nil
}

func isZstd(contentType string, rawURL string) bool {
	if contentType == "application/zstd" {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return filepath.Ext(u.Path) == ".zst"
}
