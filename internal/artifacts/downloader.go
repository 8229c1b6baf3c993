package artifacts

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultDownloadTimeout bounds a single artifact bundle download.
const DefaultDownloadTimeout = 2 * time.Minute

// Downloader fetches a zip bundle of compiled artifacts over HTTP.
type Downloader struct {
	cacheDir   string
	httpClient *http.Client
	mu         sync.Mutex
}

// NewDownloader creates a new artifact downloader.
func NewDownloader(cacheDir string) *Downloader {
	if cacheDir == "" {
		cacheDir = os.TempDir()
	}
	return &Downloader{
		cacheDir:   cacheDir,
		httpClient: &http.Client{Timeout: DefaultDownloadTimeout},
	}
}

// WithHTTPClient replaces the HTTP client used for downloads.
func (d *Downloader) WithHTTPClient(c *http.Client) *Downloader {
	d.httpClient = c
	return d
}

// Download fetches the bundle at url, verifies it against checksum
// ("sha256:<hex>", empty to skip) and loads the required contracts.
func (d *Downloader) Download(ctx context.Context, url, checksum string) (*Set, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(d.cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	zipPath := filepath.Join(d.cacheDir, fmt.Sprintf("yfiag-artifacts-%d.zip", time.Now().UnixNano()))
	if err := d.downloadFile(ctx, url, zipPath); err != nil {
		return nil, fmt.Errorf("download artifacts: %w", err)
	}
	defer os.Remove(zipPath)

	if checksum != "" {
		if err := verifyChecksum(zipPath, checksum); err != nil {
			return nil, err
		}
	}

	set, err := parseZip(zipPath)
	if err != nil {
		return nil, fmt.Errorf("parse artifacts: %w", err)
	}
	set.SourceURL = url
	return set, nil
}

func (d *Downloader) downloadFile(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d from %s", resp.StatusCode, url)
	}

	// Write to temp file first, then rename
	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	_, err = io.Copy(f, resp.Body)
	f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// verifyChecksum compares the SHA-256 of the file at path with expected.
func verifyChecksum(path, expected string) error {
	want, ok := strings.CutPrefix(strings.ToLower(strings.TrimSpace(expected)), "sha256:")
	if !ok {
		return fmt.Errorf("unsupported checksum format %q (want sha256:<hex>)", expected)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hash artifacts: %w", err)
	}

	got := hex.EncodeToString(h.Sum(nil))
	if got != want {
		return fmt.Errorf("%w: expected sha256:%s, got sha256:%s", ErrChecksum, want, got)
	}
	return nil
}

func parseZip(zipPath string) (*Set, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	loaded := make(map[string]*ContractArtifact)
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name, ok := contractNameFromPath(f.Name)
		if !ok || loaded[name] != nil {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}

		artifact, err := parseArtifact(name, data)
		if err != nil {
			return nil, err
		}
		loaded[name] = artifact
	}

	return newSet(loaded, "")
}
