package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type staticToken string

func (t staticToken) Token(ctx context.Context) (string, error) { return string(t), nil }

func TestEngine_Download_Full(t *testing.T) {
	content := []byte("the quick brown fox jumps over the lazy dog")

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.Header.Get("Range") != "" {
			t.Errorf("unexpected Range header %q on a fresh download", r.Header.Get("Range"))
		}
		w.Write(content)
	}))
	defer srv.Close()

	var lastCurrent, lastTotal int64
	e := NewEngine(staticToken("tok123"), time.Second)
	body, err := e.Download(context.Background(), srv.URL, int64(len(content)), 0, func(current, total int64) {
		lastCurrent, lastTotal = current, total
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	defer body.Close()

	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("stream content mismatch")
	}
	if gotAuth != "Bearer tok123" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if lastCurrent != int64(len(content)) || lastTotal != int64(len(content)) {
		t.Errorf("final progress = (%d, %d), want (%d, %d)", lastCurrent, lastTotal, len(content), len(content))
	}
}

func TestEngine_Download_Resume(t *testing.T) {
	content := []byte("0123456789abcdefghij")
	const offset = 12

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got, want := r.Header.Get("Range"), fmt.Sprintf("bytes=%d-", offset); got != want {
			t.Errorf("Range = %q, want %q", got, want)
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, len(content)-1, len(content)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(content[offset:])
	}))
	defer srv.Close()

	var firstCurrent int64 = -1
	var lastCurrent, lastTotal int64
	e := NewEngine(nil, time.Second)
	body, err := e.Download(context.Background(), srv.URL, 0, offset, func(current, total int64) {
		if firstCurrent < 0 {
			firstCurrent = current
		}
		lastCurrent, lastTotal = current, total
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	defer body.Close()

	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if !bytes.Equal(got, content[offset:]) {
		t.Errorf("stream should contain only the suffix past the offset")
	}
	// Progress counts from the start of the file, not the offset, and the
	// total comes from Content-Range since no declared size was given.
	if firstCurrent <= offset {
		t.Errorf("first progress current = %d, want > %d", firstCurrent, offset)
	}
	if lastCurrent != int64(len(content)) || lastTotal != int64(len(content)) {
		t.Errorf("final progress = (%d, %d), want (%d, %d)", lastCurrent, lastTotal, len(content), len(content))
	}
}

func TestEngine_Download_ServerIgnoresRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("full body from the start"))
	}))
	defer srv.Close()

	e := NewEngine(nil, time.Second)
	_, err := e.Download(context.Background(), srv.URL, 0, 10, nil)
	if err == nil {
		t.Fatal("Download() should fail when the server ignores the range request")
	}
}

func TestEngine_Download_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewEngine(nil, time.Second)
	_, err := e.Download(context.Background(), srv.URL, 0, 0, nil)
	if err == nil {
		t.Fatal("Download() should fail on a 404")
	}
}

func TestEngine_Download_IdleTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("partial"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		// Stall well past the idle timeout without sending more bytes.
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	e := NewEngine(nil, 50*time.Millisecond)
	body, err := e.Download(context.Background(), srv.URL, 100, 0, nil)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	defer body.Close()

	_, err = io.ReadAll(body)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("read error = %v, want ErrTimeout", err)
	}
}

func TestEngine_Download_UnknownTotal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Chunked response: no Content-Length.
		if f, ok := w.(http.Flusher); ok {
			w.Write([]byte("some data"))
			f.Flush()
		}
	}))
	defer srv.Close()

	var sawTotal int64
	e := NewEngine(nil, time.Second)
	body, err := e.Download(context.Background(), srv.URL, 0, 0, func(current, total int64) {
		sawTotal = total
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	defer body.Close()
	io.ReadAll(body)

	if sawTotal != UnknownSize {
		t.Errorf("total = %d, want UnknownSize sentinel", sawTotal)
	}
}
