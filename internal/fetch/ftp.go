package fetch

import (
	"context"
	"io"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures the FTP fetcher. Empty credentials mean anonymous
// access, which is what public elevation mirrors expect.
type FTPOptions struct {
	Timeout  time.Duration
	User     string
	Password string
}

// FTPFetcher downloads files over FTP. Some national mapping agencies still
// publish elevation archives on anonymous FTP only.
type FTPFetcher struct {
	opts FTPOptions
}

// NewFTPFetcher creates an FTPFetcher with the given options.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.User == "" {
		opts.User, opts.Password = "anonymous", "anonymous@"
	}
	return &FTPFetcher{opts: opts}
}

// splitFTPURL returns the dial address (host with port, 21 when omitted)
// and remote path of an ftp:// URL.
func splitFTPURL(rawURL string) (addr, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrapf(err, "parse ftp url %s", rawURL)
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("expected ftp scheme, got %q", u.Scheme)
	}
	addr = u.Host
	if _, _, splitErr := net.SplitHostPort(addr); splitErr != nil {
		addr = net.JoinHostPort(addr, "21")
	}
	if u.Path == "" {
		return "", "", eris.Errorf("ftp url %s has no path", rawURL)
	}
	return addr, u.Path, nil
}

func (f *FTPFetcher) dial(ctx context.Context, addr string) (*ftp.ServerConn, error) {
	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrapf(err, "ftp dial %s", addr)
	}
	if err := conn.Login(f.opts.User, f.opts.Password); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrapf(err, "ftp login %s", addr)
	}
	return conn, nil
}

// ftpFile keeps the control connection alive for the duration of a transfer
// and releases both it and the data stream on Close.
type ftpFile struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpFile) Read(p []byte) (int, error) { return r.resp.Read(p) }

func (r *ftpFile) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "close ftp transfer")
	}
	return eris.Wrap(quitErr, "quit ftp connection")
}

// Download retrieves the file behind an ftp:// URL. The caller must close
// the returned reader to release the FTP connection.
func (f *FTPFetcher) Download(ctx context.Context, ftpURL string) (io.ReadCloser, error) {
	addr, path, err := splitFTPURL(ftpURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("ftp: retrieving", zap.String("addr", addr), zap.String("path", path))

	conn, err := f.dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	resp, err := conn.Retr(path)
	if err != nil {
		_ = conn.Quit()
		return nil, eris.Wrapf(err, "ftp retrieve %s", path)
	}
	return &ftpFile{resp: resp, conn: conn}, nil
}

// DownloadToFile retrieves the FTP URL into a local file and returns the
// number of bytes written.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, ftpURL string, path string) (int64, error) {
	rc, err := f.Download(ctx, ftpURL)
	if err != nil {
		return 0, err
	}
	defer rc.Close() //nolint:errcheck

	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}
	defer file.Close() //nolint:errcheck

	n, err := io.Copy(file, rc)
	if err != nil {
		return n, eris.Wrap(err, "write file")
	}
	return n, nil
}
