package fetch

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func testFetcher(host string) *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		Timeout:    5 * time.Second,
		MaxRetries: 3,
		RateLimiters: map[string]*rate.Limiter{
			host: rate.NewLimiter(rate.Inf, 1),
		},
	})
}

func TestHTTPDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	f := testFetcher(srv.Listener.Addr().String())
	rc, err := f.Download(context.Background(), srv.URL+"/file")
	require.NoError(t, err)
	defer rc.Close()

	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(b))
}

func TestHTTPDownloadRetriesOn500(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := testFetcher(srv.Listener.Addr().String())
	rc, err := f.Download(context.Background(), srv.URL)
	require.NoError(t, err)
	defer rc.Close()

	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPDownloadNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := testFetcher(srv.Listener.Addr().String())
	_, err := f.Download(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestDownloadToFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("contents"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "out.bin")
	f := testFetcher(srv.Listener.Addr().String())
	n, err := f.DownloadToFile(context.Background(), srv.URL, path)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "contents", string(b))
}

func TestHTTPFallbackRate(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{RatePerSec: 2.5})
	assert.Equal(t, rate.Limit(2.5), f.fallback.Limit())
	assert.Equal(t, 3, f.fallback.Burst())

	// Zero falls back to the permissive default.
	f = NewHTTPFetcher(HTTPOptions{})
	assert.Equal(t, rate.Limit(10), f.fallback.Limit())
}

// recordingFetcher notes the URLs routed to it.
type recordingFetcher struct {
	urls []string
}

func (r *recordingFetcher) Download(_ context.Context, url string) (io.ReadCloser, error) {
	r.urls = append(r.urls, url)
	return io.NopCloser(bytes.NewReader([]byte("data"))), nil
}

func (r *recordingFetcher) DownloadToFile(_ context.Context, url string, _ string) (int64, error) {
	r.urls = append(r.urls, url)
	return 4, nil
}

func TestSchemeFetcherRouting(t *testing.T) {
	httpF := &recordingFetcher{}
	ftpF := &recordingFetcher{}
	s := &SchemeFetcher{HTTP: httpF, FTP: ftpF}
	ctx := context.Background()

	rc, err := s.Download(ctx, "https://example.org/tile.zip")
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	_, err = s.DownloadToFile(ctx, "ftp://example.org/pub/tile.zip", "out.zip")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.org/tile.zip"}, httpF.urls)
	assert.Equal(t, []string{"ftp://example.org/pub/tile.zip"}, ftpF.urls)
}

func TestSchemeFetcherMissingTransport(t *testing.T) {
	s := &SchemeFetcher{HTTP: &recordingFetcher{}}
	_, err := s.Download(context.Background(), "ftp://example.org/tile.zip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no ftp fetcher")
}

func TestSplitFTPURL(t *testing.T) {
	addr, path, err := splitFTPURL("ftp://example.org/pub/dem/tile.zip")
	require.NoError(t, err)
	assert.Equal(t, "example.org:21", addr)
	assert.Equal(t, "/pub/dem/tile.zip", path)

	addr, _, err = splitFTPURL("ftp://example.org:2121/f")
	require.NoError(t, err)
	assert.Equal(t, "example.org:2121", addr)

	_, _, err = splitFTPURL("https://example.org/f")
	assert.Error(t, err)
	_, _, err = splitFTPURL("ftp://example.org")
	assert.Error(t, err)
}

// writeZIP builds a small archive with the given name→content entries.
func writeZIP(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestExtractZIP(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "a.zip")
	writeZIP(t, zipPath, map[string]string{
		"readme.txt":      "hi",
		"data/values.csv": "1,2",
	})

	out := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(out, 0o755))
	paths, err := ExtractZIP(zipPath, out)
	require.NoError(t, err)
	assert.Len(t, paths, 2)

	b, err := os.ReadFile(filepath.Join(out, "data", "values.csv"))
	require.NoError(t, err)
	assert.Equal(t, "1,2", string(b))
}

func TestExtractZIPMatch(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "tile.zip")
	writeZIP(t, zipPath, map[string]string{
		"readme.txt":     "hi",
		"srtm_39_03.asc": "ncols 1",
	})

	path, err := ExtractZIPMatch(zipPath, ".asc", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "srtm_39_03.asc"), path)

	_, err = ExtractZIPMatch(zipPath, ".tif", dir)
	assert.Error(t, err)
}

func TestExtractZIPSlip(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "evil.zip")
	writeZIP(t, zipPath, map[string]string{"../escape.txt": "x"})

	_, err := ExtractZIP(zipPath, filepath.Join(dir, "out"))
	assert.Error(t, err)
}

func TestTileFor(t *testing.T) {
	// Innsbruck, Austria: 11.4E 47.3N falls in column 39, row 3.
	tile := TileFor(11.4, 47.3)
	assert.Equal(t, Tile{Col: 39, Row: 3}, tile)
	assert.Equal(t, "srtm_39_03", tile.Name())

	// Tile origin corners.
	assert.Equal(t, Tile{Col: 1, Row: 1}, TileFor(-180, 59.9))
}

func TestTilesForBounds(t *testing.T) {
	// A box straddling the 15E meridian needs two columns.
	tiles := TilesForBounds(13, 46, 17, 49)
	assert.Equal(t, []Tile{{39, 3}, {40, 3}}, tiles)

	// A single-tile box yields one tile.
	tiles = TilesForBounds(11, 46, 12, 47)
	assert.Equal(t, []Tile{{39, 3}}, tiles)
}

func TestDEMManagerEnsureTileCaches(t *testing.T) {
	dir := t.TempDir()
	asc := "ncols 1\nnrows 1\nxllcorner 10\nyllcorner 45\ncellsize 5\nNODATA_value -9999\n7\n"

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		fw, _ := zw.Create("srtm_39_03.asc")
		_, _ = fw.Write([]byte(asc))
		_ = zw.Close()
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	m := NewDEMManager(testFetcher(srv.Listener.Addr().String()), dir)
	m.BaseURL = srv.URL

	tile := Tile{Col: 39, Row: 3}
	path, err := m.EnsureTile(context.Background(), tile)
	require.NoError(t, err)
	assert.FileExists(t, path)

	// Second call hits the cache, not the server.
	_, err = m.EnsureTile(context.Background(), tile)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDEMManagerLoadBounds(t *testing.T) {
	dir := t.TempDir()
	// A 5x5 degree tile at 1-degree resolution, values 1..25.
	var body bytes.Buffer
	body.WriteString("ncols 5\nnrows 5\nxllcorner 10\nyllcorner 45\ncellsize 1\nNODATA_value -9999\n")
	v := 1
	for r := 0; r < 5; r++ {
		for c := 0; c < 5; c++ {
			if c > 0 {
				body.WriteByte(' ')
			}
			body.WriteString(string(rune('0' + v%10)))
			v++
		}
		body.WriteByte('\n')
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		fw, _ := zw.Create("srtm_39_03.asc")
		_, _ = fw.Write(body.Bytes())
		_ = zw.Close()
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	m := NewDEMManager(testFetcher(srv.Listener.Addr().String()), dir)
	m.BaseURL = srv.URL

	g, err := m.LoadBounds(context.Background(), 11, 46, 13, 48)
	require.NoError(t, err)
	assert.Equal(t, 2, g.Cols)
	assert.Equal(t, 2, g.Rows)
	assert.Equal(t, 11.0, g.X0)
	assert.Equal(t, 46.0, g.Y0)
}
