// Package fetch downloads remote terrain and boundary data over HTTP and
// FTP, with per-host rate limiting and a local tile cache.
package fetch

import (
	"context"
	"io"
	"net/url"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// SchemeFetcher routes downloads by URL scheme. Tile mirrors are published
// over both HTTP and anonymous FTP, and the configured base URL decides
// which transport a run uses.
type SchemeFetcher struct {
	HTTP Fetcher
	FTP  Fetcher
}

func (s *SchemeFetcher) pick(rawURL string) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "parse url %s", rawURL)
	}
	if u.Scheme == "ftp" {
		if s.FTP == nil {
			return nil, eris.Errorf("no ftp fetcher configured for %s", rawURL)
		}
		return s.FTP, nil
	}
	if s.HTTP == nil {
		return nil, eris.Errorf("no http fetcher configured for %s", rawURL)
	}
	return s.HTTP, nil
}

func (s *SchemeFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	f, err := s.pick(rawURL)
	if err != nil {
		return nil, err
	}
	return f.Download(ctx, rawURL)
}

func (s *SchemeFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	f, err := s.pick(rawURL)
	if err != nil {
		return 0, err
	}
	return f.DownloadToFile(ctx, rawURL, path)
}
