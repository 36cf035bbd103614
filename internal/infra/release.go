package infra

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultGitHubAPI = "https://api.github.com"
	githubAPITimeout = 30 * time.Second
	downloadTimeout  = 5 * time.Minute
)

// GitHubRelease represents a GitHub release response.
type GitHubRelease struct {
	TagName string        `json:"tag_name"`
	Assets  []GitHubAsset `json:"assets"`
}

// Version returns the tag without its "v" prefix.
func (r *GitHubRelease) Version() string {
	return strings.TrimPrefix(r.TagName, "v")
}

// GitHubAsset represents a release asset.
type GitHubAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// ReleaseClient reads client releases from GitHub.
type ReleaseClient struct {
	client  *http.Client
	apiBase string
	owner   string
	repo    string
	// binaryName is the executable looked up inside archive assets.
	binaryName string
	goos       string
	goarch     string
}

// NewReleaseClient creates a release client for owner/repo.
// Client timeouts are left to per-request contexts.
func NewReleaseClient(owner, repo, binaryName string, logger *zap.Logger) *ReleaseClient {
	return &ReleaseClient{
		client:     NewRetryClient(RetryOptions{RetryMax: 3}, logger),
		apiBase:    defaultGitHubAPI,
		owner:      owner,
		repo:       repo,
		binaryName: binaryName,
		goos:       runtime.GOOS,
		goarch:     runtime.GOARCH,
	}
}

// WithAPIBase points the client at another API root.
func (c *ReleaseClient) WithAPIBase(base string) *ReleaseClient {
	c.apiBase = strings.TrimSuffix(base, "/")
	return c
}

// LatestRelease fetches the latest release info.
func (c *ReleaseClient) LatestRelease(ctx context.Context) (*GitHubRelease, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.apiBase, c.owner, c.repo)

	ctx, cancel := context.WithTimeout(ctx, githubAPITimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", c.binaryName)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var release GitHubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("failed to parse release: %w", err)
	}
	return &release, nil
}

// findAsset finds the matching asset for current platform.
func (c *ReleaseClient) findAsset(release *GitHubRelease) (*GitHubAsset, error) {
	for _, asset := range release.Assets {
		name := strings.ToLower(asset.Name)
		if strings.Contains(name, c.goos) && strings.Contains(name, c.goarch) {
			return &asset, nil
		}
	}
	return nil, fmt.Errorf("no asset found for %s/%s", c.goos, c.goarch)
}

// Download fetches the platform asset of release into destPath.
// Archives are unpacked; bare binaries are written as-is.
func (c *ReleaseClient) Download(ctx context.Context, release *GitHubRelease, destPath string) error {
	asset, err := c.findAsset(release)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.BrowserDownloadURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return err
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".racingplus-download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write download: %w", err)
	}
	tmpFile.Close()

	if strings.HasSuffix(asset.Name, ".tar.gz") || strings.HasSuffix(asset.Name, ".tgz") {
		if err := c.extractBinary(tmpPath, destPath); err != nil {
			return fmt.Errorf("failed to extract binary: %w", err)
		}
	} else if err := copyFile(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to store download: %w", err)
	}

	return os.Chmod(destPath, 0755)
}

// extractBinary extracts the client binary from a tar.gz archive.
func (c *ReleaseClient) extractBinary(archivePath, destPath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		base := filepath.Base(header.Name)
		if header.Typeflag == tar.TypeReg &&
			(base == c.binaryName || base == c.binaryName+".exe") {
			outFile, err := os.Create(destPath)
			if err != nil {
				return err
			}
			defer outFile.Close()

			_, err = io.Copy(outFile, tr)
			return err
		}
	}

	return fmt.Errorf("%s binary not found in archive", c.binaryName)
}
