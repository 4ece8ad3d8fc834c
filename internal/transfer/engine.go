package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// ErrTimeout matches stream errors caused by the idle timeout firing.
var ErrTimeout = errors.New("idle timeout: no data received")

// UnknownSize is the sentinel total passed to progress callbacks while
// the file size is not known.
const UnknownSize int64 = -1

// TokenSource supplies a valid bearer token for authenticated
// downloads. Implementations handle refresh transparently.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ProgressFunc receives transfer progress as chunks arrive. current
// includes the resume offset, so it always counts from the start of the
// file; total is the full file size, or UnknownSize until known.
type ProgressFunc func(current, total int64)

// Engine performs resumable HTTP downloads.
type Engine struct {
	client      *http.Client
	tokens      TokenSource
	userAgent   string
	idleTimeout time.Duration
}

// NewEngine creates an Engine. tokens may be nil for unauthenticated
// downloads. idleTimeout bounds both the wait for response headers and
// the gap between body chunks.
func NewEngine(tokens TokenSource, idleTimeout time.Duration) *Engine {
	transport := http.DefaultTransport
	if t, ok := transport.(*http.Transport); ok {
		tc := t.Clone()
		tc.ResponseHeaderTimeout = idleTimeout
		transport = tc
	}
	return &Engine{
		client:      &http.Client{Transport: transport},
		tokens:      tokens,
		userAgent:   "GogDownloader",
		idleTimeout: idleTimeout,
	}
}

// Download starts a transfer of url. declaredSize is the catalog's size
// in bytes (0 when unknown). A startOffset > 0 issues a range request
// and the returned stream begins at that offset; the server must answer
// with 206 Partial Content or the download fails rather than risk
// corrupting the local file.
//
// The returned stream must be consumed incrementally and closed by the
// caller. Nothing is buffered beyond one chunk.
func (e *Engine) Download(ctx context.Context, url string, declaredSize, startOffset int64, onProgress ProgressFunc) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", e.userAgent)
	if startOffset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", startOffset))
	}
	if e.tokens != nil {
		token, err := e.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("obtain token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if isHeaderTimeout(err) {
			return nil, fmt.Errorf("%w (waiting for response)", ErrTimeout)
		}
		return nil, err
	}

	switch {
	case startOffset > 0 && resp.StatusCode != http.StatusPartialContent:
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return nil, fmt.Errorf("server ignored range request for offset %d", startOffset)
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	case startOffset == 0 && resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	total := declaredSize
	if total <= 0 {
		total = totalFromResponse(resp, startOffset)
	}

	body := newIdleBody(resp.Body, e.idleTimeout)
	return &stream{
		reader: &progressReader{
			r:          body,
			current:    startOffset,
			total:      total,
			onProgress: onProgress,
		},
		closer: body,
	}, nil
}

// totalFromResponse derives the full file size from response headers:
// Content-Length for a full response, the Content-Range total for a
// partial one. Returns UnknownSize when the server does not say.
func totalFromResponse(resp *http.Response, startOffset int64) int64 {
	if startOffset == 0 {
		if resp.ContentLength >= 0 {
			return resp.ContentLength
		}
		return UnknownSize
	}
	// Content-Range: bytes <start>-<end>/<total>
	cr := resp.Header.Get("Content-Range")
	if i := strings.LastIndexByte(cr, '/'); i >= 0 {
		if total, err := strconv.ParseInt(cr[i+1:], 10, 64); err == nil {
			return total
		}
	}
	return UnknownSize
}

func isHeaderTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// stream pairs the progress-tracking reader with the closer of the
// underlying response body.
type stream struct {
	reader io.Reader
	closer io.Closer
}

func (s *stream) Read(p []byte) (int, error) { return s.reader.Read(p) }
func (s *stream) Close() error               { return s.closer.Close() }

// progressReader invokes the progress callback as chunks arrive.
type progressReader struct {
	r          io.Reader
	current    int64
	total      int64
	onProgress ProgressFunc
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.current += int64(n)
		if p.onProgress != nil {
			p.onProgress(p.current, p.total)
		}
	}
	return n, err
}

// idleBody force-closes the wrapped body when a single read stalls for
// longer than the timeout, converting the resulting read error into
// ErrTimeout.
type idleBody struct {
	rc       io.ReadCloser
	timeout  time.Duration
	timer    *time.Timer
	timedOut atomic.Bool
}

func newIdleBody(rc io.ReadCloser, timeout time.Duration) *idleBody {
	b := &idleBody{rc: rc, timeout: timeout}
	b.timer = time.AfterFunc(timeout, func() {
		b.timedOut.Store(true)
		b.rc.Close()
	})
	b.timer.Stop()
	return b
}

func (b *idleBody) Read(p []byte) (int, error) {
	b.timer.Reset(b.timeout)
	n, err := b.rc.Read(p)
	b.timer.Stop()
	if err != nil && !errors.Is(err, io.EOF) && b.timedOut.Load() {
		return n, fmt.Errorf("%w after %v", ErrTimeout, b.timeout)
	}
	return n, err
}

func (b *idleBody) Close() error {
	b.timer.Stop()
	return b.rc.Close()
}
