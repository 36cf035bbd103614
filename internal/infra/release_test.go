package infra

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func tarball(t *testing.T, name string, content []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0755, Size: int64(len(content)), Typeflag: tar.TypeReg}))
	_, err := tw.Write(content)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func newReleaseServer(t *testing.T, assetName string, asset []byte) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/repos/racingplus/client/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "application/vnd.github.v3+json", r.Header.Get("Accept"))
		_ = json.NewEncoder(w).Encode(GitHubRelease{
			TagName: "v1.2.3",
			Assets: []GitHubAsset{
				{Name: "racingplus_1.2.3_plan9_mips.tar.gz", BrowserDownloadURL: server.URL + "/wrong"},
				{Name: assetName, BrowserDownloadURL: server.URL + "/asset"},
			},
		})
	})
	mux.HandleFunc("/asset", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(asset)
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &calls
}

func newTestReleaseClient(base string) *ReleaseClient {
	c := NewReleaseClient("racingplus", "client", "racingplus", zap.NewNop()).WithAPIBase(base)
	c.goos, c.goarch = "linux", "amd64"
	return c
}

func TestReleaseClient_LatestRelease(t *testing.T) {
	server, calls := newReleaseServer(t, "racingplus_1.2.3_linux_amd64.tar.gz", nil)

	release, err := newTestReleaseClient(server.URL).LatestRelease(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", release.Version())
	assert.Len(t, release.Assets, 2)
	assert.Equal(t, 1, *calls)
}

func TestReleaseClient_DownloadExtractsArchive(t *testing.T) {
	archive := tarball(t, "dist/racingplus", []byte("binary v1.2.3"))
	server, _ := newReleaseServer(t, "racingplus_1.2.3_linux_amd64.tar.gz", archive)
	client := newTestReleaseClient(server.URL)

	release, err := client.LatestRelease(context.Background())
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "pending")
	require.NoError(t, client.Download(context.Background(), release, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "binary v1.2.3", string(data))
}

func TestReleaseClient_DownloadBareBinary(t *testing.T) {
	server, _ := newReleaseServer(t, "racingplus_linux_amd64", []byte("raw binary"))
	client := newTestReleaseClient(server.URL)

	release, err := client.LatestRelease(context.Background())
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "pending")
	require.NoError(t, client.Download(context.Background(), release, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "raw binary", string(data))
}

func TestReleaseClient_NoMatchingAsset(t *testing.T) {
	client := newTestReleaseClient("http://unused")
	err := client.Download(context.Background(), &GitHubRelease{TagName: "1.0.0"}, filepath.Join(t.TempDir(), "x"))
	assert.Error(t, err)
}

func TestReleaseClient_NotFoundIsError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)

	_, err := newTestReleaseClient(server.URL).LatestRelease(context.Background())
	assert.Error(t, err)
}
