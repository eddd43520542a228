// Package download implements the repository/package fetch boundary X3:
// HTTP(S) retrieval with mirror failover, resumable progress reporting, and
// local-file bypass for file:// sources (spec.md §4.4, §4.6).
package download

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/dnfcore/dnfcore/errkind"
	"github.com/dnfcore/dnfcore/progress"
	"github.com/dnfcore/dnfcore/utils"
)

// ProgressFunc receives each chunk's byte count as it is written to disk.
type ProgressFunc func(delta int64)

// Target is one file to fetch: a list of candidate URLs (mirrors) tried in
// order, the destination path, and optional expected-checksum metadata used
// to short-circuit an already-cached file.
type Target struct {
	URLs         []string
	Dest         string
	ChecksumType utils.ChecksumType
	ChecksumHex  string
}

// Fetcher retrieves repository metadata and package files, failing over
// across mirrors and retrying transient errors.
type Fetcher struct {
	client    *retryablehttp.Client
	maxTries  int
	userAgent string
}

// Options configures a Fetcher.
type Options struct {
	MaxMirrorTries int
	Timeout        time.Duration
	UserAgent      string
}

// New creates a Fetcher. Zero-valued Options fields take dnf-compatible
// defaults (3 mirror tries, 30s per-request timeout).
func New(opts Options) *Fetcher {
	if opts.MaxMirrorTries <= 0 {
		opts.MaxMirrorTries = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "dnfcore/1.0"
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.Logger = nil
	client.HTTPClient.Timeout = opts.Timeout

	return &Fetcher{client: client, maxTries: opts.MaxMirrorTries, userAgent: opts.UserAgent}
}

// Fetch retrieves t, trying each URL in order up to MaxMirrorTries total
// attempts across all mirrors, and reports bytes written via onProgress (may
// be nil). A file:// URL or bare local path is copied directly, bypassing
// HTTP entirely (spec.md §4.6 local-file bypass for command-line RPMs and
// media repos).
func (f *Fetcher) Fetch(ctx context.Context, t Target, node *progress.Node, onProgress ProgressFunc) error {
	if len(t.URLs) == 0 {
		return errkind.New(errkind.CannotFetchSource, "no candidate URLs")
	}

	if cached, err := f.cacheHit(t); err != nil {
		return err
	} else if cached {
		if node != nil {
			return node.Done(ctx)
		}
		return nil
	}

	if err := utils.EnsureDirs(filepath.Dir(t.Dest)); err != nil {
		return errkind.Wrap(errkind.CannotWriteCache, "create destination dir", err)
	}

	var lastErr error
	tries := 0
	for _, raw := range t.URLs {
		if tries >= f.maxTries {
			break
		}
		tries++
		if local, ok := localPath(raw); ok {
			if err := f.copyLocal(local, t.Dest, onProgress); err != nil {
				lastErr = err
				continue
			}
			lastErr = nil
			break
		}
		if err := f.fetchHTTP(ctx, raw, t.Dest, onProgress); err != nil {
			lastErr = err
			continue
		}
		lastErr = nil
		break
	}
	if lastErr != nil {
		return errkind.WithSource(errkind.Wrap(errkind.CannotFetchSource, "fetch failed across all mirrors", lastErr), t.URLs[0])
	}

	if t.ChecksumHex != "" {
		ok, err := utils.VerifyFileChecksum(t.ChecksumType, t.Dest, t.ChecksumHex)
		if err != nil {
			return errkind.Wrap(errkind.FileInvalid, "verify downloaded checksum", err)
		}
		if !ok {
			_ = os.Remove(t.Dest)
			return errkind.Newf(errkind.FileInvalid, "checksum mismatch for %s", t.Dest)
		}
	}

	if node != nil {
		return node.Done(ctx)
	}
	return nil
}

func (f *Fetcher) cacheHit(t Target) (bool, error) {
	if t.ChecksumHex == "" || !utils.ValidFile(t.Dest) {
		return false, nil
	}
	ok, err := utils.VerifyFileChecksum(t.ChecksumType, t.Dest, t.ChecksumHex)
	if err != nil {
		return false, errkind.Wrap(errkind.Internal, "verify cached checksum", err)
	}
	return ok, nil
}

func localPath(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if u.Scheme == "" || u.Scheme == "file" {
		if u.Path != "" {
			return u.Path, true
		}
		return raw, true
	}
	return "", false
}

func (f *Fetcher) copyLocal(src, dest string, onProgress ProgressFunc) error {
	in, err := os.Open(src) //nolint:gosec // repo-configured local source path
	if err != nil {
		return errkind.Wrap(errkind.CannotFetchSource, "open local source", err)
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(dest) //nolint:gosec // dnfcore-managed cache destination
	if err != nil {
		return errkind.Wrap(errkind.CannotWriteCache, "create destination", err)
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, countingReader(in, onProgress)); err != nil {
		return errkind.Wrap(errkind.CannotFetchSource, "copy local source", err)
	}
	return nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, raw, dest string, onProgress ProgressFunc) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return errkind.WithSource(errkind.Wrap(errkind.CannotFetchSource, "build request", err), raw)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return errkind.WithSource(errkind.Wrap(errkind.CannotFetchSource, "request failed", err), raw)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return errkind.WithSource(errkind.Newf(errkind.CannotFetchSource, "unexpected status %s", resp.Status), raw)
	}

	out, err := os.Create(dest) //nolint:gosec // dnfcore-managed cache destination
	if err != nil {
		return errkind.Wrap(errkind.CannotWriteCache, "create destination", err)
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, countingReader(resp.Body, onProgress)); err != nil {
		return errkind.WithSource(errkind.Wrap(errkind.CannotFetchSource, "read response body", err), raw)
	}
	return nil
}

// countingReader wraps r so each Read call reports its byte count via fn
// (nil-safe), used to feed the progress node's speed window.
func countingReader(r io.Reader, fn ProgressFunc) io.Reader {
	if fn == nil {
		return r
	}
	return &progressReader{r: r, fn: fn}
}

type progressReader struct {
	r  io.Reader
	fn ProgressFunc
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.fn(int64(n))
	}
	return n, err
}

// ContentDispositionName extracts a suggested filename from a raw URL's
// final path segment, used when a repository's metalink omits one.
func ContentDispositionName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(filepath.Base(u.Path), "/")
}
