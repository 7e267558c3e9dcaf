// Package feed handles acquisition of the zipped feed: HTTP download,
// archive extraction into a working directory and post-run cleanup.
package feed

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Download fetches the feed archive and writes it to dest. Anything but a
// 200 response is an error; download failures are fatal to the run.
func Download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building download request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("downloading feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading feed: unexpected status %s", resp.Status)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	return f.Close()
}

// Extract unpacks every archive entry into dir. An entry that cannot be
// written is drained and skipped rather than failing the extraction.
func Extract(zipPath, dir string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", zipPath, err)
	}
	defer r.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	for _, entry := range r.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		if err := extractEntry(entry, dir); err != nil {
			log.Warn("Skipping archive entry", zap.String("entry", entry.Name), zap.Error(err))
		}
	}
	return nil
}

func extractEntry(entry *zip.File, dir string) error {
	// Entries escaping the target directory are refused.
	dest := filepath.Join(dir, filepath.Clean(entry.Name))
	if !strings.HasPrefix(dest, filepath.Clean(dir)+string(os.PathSeparator)) {
		return fmt.Errorf("entry path %q escapes %s", entry.Name, dir)
	}

	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		// Drain the entry so the archive reader can move on.
		io.Copy(io.Discard, rc)
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		io.Copy(io.Discard, rc)
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Cleanup removes the archive and the extracted directory after a
// successful run. Removal errors are logged and swallowed.
func Cleanup(log *zap.Logger, paths ...string) {
	if log == nil {
		log = zap.NewNop()
	}
	for _, p := range paths {
		if err := os.RemoveAll(p); err != nil {
			log.Warn("Cleanup failed", zap.String("path", p), zap.Error(err))
		}
	}
}
