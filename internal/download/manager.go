package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cmykflutterby/GogDownloader/internal/config"
	"github.com/cmykflutterby/GogDownloader/internal/hash"
	"github.com/cmykflutterby/GogDownloader/internal/model"
	"github.com/cmykflutterby/GogDownloader/internal/progress"
	"github.com/cmykflutterby/GogDownloader/internal/retry"
	"github.com/cmykflutterby/GogDownloader/internal/transfer"
)

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent represents a download progress update.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
}

// Status is the terminal state of one file.
type Status int

const (
	StatusCompleted Status = iota
	StatusSkipped
	StatusFailed
)

// Result is the outcome of processing one (game, file) pair.
type Result struct {
	Game   model.Game
	File   model.Download
	Status Status
	Reason string // set for skips
	Err    error  // set for failures
}

// Source yields games one at a time. Both the sqlite catalog and the
// storefront API client implement it, so a fresh-fetch run can start
// downloading before the whole library is known.
type Source interface {
	Games(ctx context.Context, fn func(model.Game) error) error
}

// Manager coordinates library downloads.
type Manager struct {
	settings *config.Settings
	filter   model.Filter
	engine   *transfer.Engine
	retrier  retry.Coordinator

	totalFiles     int32
	completedFiles int32
	skippedFiles   int32
	failedFiles    int32
	receivedBytes  int64

	onProgress func(ProgressEvent)
	onFile     func(game model.Game, file model.Download)
	onBytes    transfer.ProgressFunc
}

// NewManager creates a new download Manager. tokens may be nil when
// every descriptor URL is publicly reachable (tests do this).
func NewManager(settings *config.Settings, tokens transfer.TokenSource, onProgress func(ProgressEvent)) (*Manager, error) {
	filter, err := settings.Filter()
	if err != nil {
		return nil, err
	}
	return &Manager{
		settings: settings,
		filter:   filter,
		engine:   transfer.NewEngine(tokens, time.Duration(settings.IdleTimeoutSeconds)*time.Second),
		retrier: retry.Coordinator{
			Attempts: settings.RetryCount,
			Delay:    time.Duration(settings.RetryDelaySeconds) * time.Second,
		},
		onProgress: onProgress,
	}, nil
}

// SetTransferHooks installs byte-level progress hooks: onFile fires
// once before each transfer begins, onBytes for every chunk received.
// Both may be nil.
func (m *Manager) SetTransferHooks(onFile func(model.Game, model.Download), onBytes transfer.ProgressFunc) {
	m.onFile = onFile
	m.onBytes = onBytes
}

// GetProgress returns current download progress.
func (m *Manager) GetProgress() (received int64, completed, skipped, failed, total int32) {
	return atomic.LoadInt64(&m.receivedBytes),
		atomic.LoadInt32(&m.completedFiles),
		atomic.LoadInt32(&m.skippedFiles),
		atomic.LoadInt32(&m.failedFiles),
		atomic.LoadInt32(&m.totalFiles)
}

// Run processes every game yielded by source. With SkipErrors unset a
// single terminal file failure halts the whole run; otherwise failures
// are reported and the run continues.
func (m *Manager) Run(ctx context.Context, source Source) error {
	return source.Games(ctx, func(g model.Game) error {
		return m.processGame(ctx, g)
	})
}

// processGame resolves the filter once for the whole game, then
// processes the surviving files through a bounded worker pool. The
// default of one worker keeps files strictly sequential.
func (m *Manager) processGame(ctx context.Context, game model.Game) error {
	files, vetoed := m.filter.Resolve(game)
	if vetoed {
		m.progress(ProgressEvent{
			Message: fmt.Sprintf("Skipping %s: contains a download in excluded language %q", game.Title, m.filter.ExcludeLanguage),
			Level:   LevelVerbose,
		})
		return nil
	}
	m.logFilteredOut(game, files)
	if len(files) == 0 {
		return nil
	}

	workers := m.settings.Workers
	if workers < 1 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, file := range files {
		file := file
		g.Go(func() error {
			atomic.AddInt32(&m.totalFiles, 1)
			res := m.processFile(ctx, game, file)
			m.record(res)
			if res.Status == StatusFailed && !m.settings.SkipErrors {
				return res.Err
			}
			return nil
		})
	}

	return g.Wait()
}

// logFilteredOut reports every download the filter dropped, with its
// reason, at verbose level.
func (m *Manager) logFilteredOut(game model.Game, kept []model.Download) {
	if m.onProgress == nil {
		return
	}
	selected := make(map[string]bool, len(kept))
	for _, d := range kept {
		selected[d.URL+"|"+d.Name] = true
	}
	for _, d := range game.Downloads {
		if selected[d.URL+"|"+d.Name] {
			continue
		}
		reason := fmt.Sprintf("language %q not selected", d.Language)
		if m.filter.Platform != "" && d.Platform != m.filter.Platform {
			reason = fmt.Sprintf("platform %q filtered out", d.Platform)
		}
		m.progress(ProgressEvent{
			Message: fmt.Sprintf("Skipping %s / %s: %s", game.Title, d.Name, reason),
			Level:   LevelVerbose,
		})
	}
}

// record counts a result and emits its user-visible event.
func (m *Manager) record(res Result) {
	name := res.File.Filename()
	switch res.Status {
	case StatusCompleted:
		atomic.AddInt32(&m.completedFiles, 1)
		if res.Reason == "" { // dry-run completions log their own line
			m.progress(ProgressEvent{
				Message: fmt.Sprintf("Downloaded %s / %s (%s)", res.Game.Title, name, progress.FormatBytes(res.File.Size)),
				Level:   LevelInfo,
			})
		}
	case StatusSkipped:
		atomic.AddInt32(&m.skippedFiles, 1)
		m.progress(ProgressEvent{
			Message: fmt.Sprintf("Skipping %s / %s: %s", res.Game.Title, name, res.Reason),
			Level:   LevelVerbose,
		})
	case StatusFailed:
		atomic.AddInt32(&m.failedFiles, 1)
		m.progress(ProgressEvent{
			Message: fmt.Sprintf("Failed %s / %s: %v", res.Game.Title, name, res.Err),
			Level:   LevelError,
		})
	}
}

// processFile runs the per-file state machine: disposition of any
// existing copy, dry-run short-circuit, retried transfer, verification
// and sidecar.
func (m *Manager) processFile(ctx context.Context, game model.Game, file model.Download) Result {
	path := game.TargetPath(m.settings.DownloadsPath, file)
	verifiable := !m.settings.NoVerify && file.MD5 != ""

	if fi, err := os.Stat(path); err == nil {
		switch {
		case m.settings.NoVerify:
			// Without verification the valid length of the existing copy
			// is unknowable, so no resume is attempted either.
			return Result{Game: game, File: file, Status: StatusSkipped, Reason: "file exists (verification disabled)"}
		case verifiable:
			sum, err := hash.SumFile(path)
			if err != nil {
				return Result{Game: game, File: file, Status: StatusFailed, Err: err}
			}
			if sum == file.MD5 {
				return Result{Game: game, File: file, Status: StatusSkipped, Reason: "already downloaded, checksum matches"}
			}
			if file.Size > 0 && fi.Size() >= file.Size {
				// Full-length file with a wrong hash: there is nothing left
				// to resume and a valid file must never be overwritten
				// silently, so leave it and tell the user.
				m.progress(ProgressEvent{
					Message: fmt.Sprintf("Checksum mismatch on existing %s (got %s, want %s), file kept", path, sum, file.MD5),
					Level:   LevelWarning,
				})
				return Result{Game: game, File: file, Status: StatusSkipped, Reason: "exists at full size with mismatched checksum"}
			}
			m.progress(ProgressEvent{
				Message: fmt.Sprintf("Resuming %s at byte %d of %d", path, fi.Size(), file.Size),
				Level:   LevelVerbose,
			})
		}
	}

	if m.settings.DryRun {
		return m.dryRun(game, file, path)
	}

	if m.onFile != nil {
		m.onFile(game, file)
	}

	var computed string
	retrier := m.retrier
	retrier.OnRetry = func(attempt int, err error) {
		m.progress(ProgressEvent{
			Message: fmt.Sprintf("Retry %d/%d for %s: %v", attempt+1, retrier.Attempts, file.Filename(), err),
			Level:   LevelWarning,
		})
	}
	err := retrier.Do(ctx, func() error {
		return m.transferOnce(ctx, game, file, path, verifiable, &computed)
	})
	if errors.Is(err, retry.ErrSkip) {
		return Result{Game: game, File: file, Status: StatusSkipped, Reason: "nothing left to transfer"}
	}
	if err != nil {
		return Result{Game: game, File: file, Status: StatusFailed, Err: err}
	}

	if verifiable && computed != file.MD5 {
		// The bytes were fully received; retrying cannot fix a catalog or
		// server side hash disagreement, so warn and keep the file.
		m.progress(ProgressEvent{
			Message: fmt.Sprintf("Checksum mismatch for %s (got %s, want %s), file kept", path, computed, file.MD5),
			Level:   LevelWarning,
		})
	}

	if err := m.writeSidecar(file, path); err != nil {
		m.progress(ProgressEvent{
			Message: fmt.Sprintf("Error writing sidecar for %s: %v", path, err),
			Level:   LevelWarning,
		})
	}

	return Result{Game: game, File: file, Status: StatusCompleted}
}

// transferOnce performs one transfer attempt. Offset and hash seed are
// recomputed from the file on disk every attempt, so a retry after a
// mid-transfer failure continues from the bytes that really landed.
func (m *Manager) transferOnce(ctx context.Context, game model.Game, file model.Download, path string, canResume bool, computed *string) error {
	h := hash.New()
	var offset int64
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC

	if canResume {
		if fi, err := os.Stat(path); err == nil && fi.Size() > 0 {
			if file.Size > 0 && fi.Size() >= file.Size {
				return fmt.Errorf("%s already has %d of %d bytes: %w", path, fi.Size(), file.Size, retry.ErrSkip)
			}
			// The whole existing prefix goes through the hash context, not
			// just its length: a corrupt prefix must fail verification.
			if _, err := hash.FeedFile(h, path); err != nil {
				return err
			}
			offset = fi.Size()
			flags = os.O_WRONLY | os.O_APPEND
		}
	}

	body, err := m.engine.Download(ctx, file.URL, file.Size, offset, m.bytesFunc(offset))
	if err != nil {
		return err
	}
	defer body.Close()

	if err := os.MkdirAll(game.InstallDir(m.settings.DownloadsPath), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return err
	}

	// Cap writes at the declared size so a misbehaving server can never
	// grow the file past it.
	var src io.Reader = body
	if file.Size > 0 {
		src = io.LimitReader(body, file.Size-offset)
	}

	_, copyErr := io.Copy(io.MultiWriter(f, h), src)
	closeErr := f.Close()
	if copyErr != nil {
		return copyErr
	}
	if closeErr != nil {
		return closeErr
	}

	*computed = hash.Hex(h)
	return nil
}

// bytesFunc adapts the engine's progress callback into the run-level
// byte counter and the optional UI hook. Bytes already on disk before
// a resume are not counted as received.
func (m *Manager) bytesFunc(offset int64) transfer.ProgressFunc {
	last := offset
	return func(current, total int64) {
		atomic.AddInt64(&m.receivedBytes, current-last)
		last = current
		if m.onBytes != nil {
			m.onBytes(current, total)
		}
	}
}

// dryRun reports the file as if transferred and stops before any
// network or content I/O. The sidecar is still written when requested;
// its directory is created even in dry-run mode.
func (m *Manager) dryRun(game model.Game, file model.Download, path string) Result {
	atomic.AddInt64(&m.receivedBytes, file.Size)
	if m.onBytes != nil {
		m.onBytes(file.Size, file.Size)
	}
	if m.settings.CreateSidecar && file.MD5 != "" {
		if err := os.MkdirAll(game.InstallDir(m.settings.DownloadsPath), 0755); err != nil {
			return Result{Game: game, File: file, Status: StatusFailed, Err: err}
		}
		if err := m.writeSidecar(file, path); err != nil {
			return Result{Game: game, File: file, Status: StatusFailed, Err: err}
		}
	}
	m.progress(ProgressEvent{
		Message: fmt.Sprintf("Dry run: would download %s / %s (%s)", game.Title, file.Filename(), progress.FormatBytes(file.Size)),
		Level:   LevelVerbose,
	})
	return Result{Game: game, File: file, Status: StatusCompleted, Reason: "dry run"}
}

// writeSidecar stores the catalog's declared hash (never a computed
// one) as {filename}.md5 next to the target file. An existing sidecar
// is left alone.
func (m *Manager) writeSidecar(file model.Download, path string) error {
	if !m.settings.CreateSidecar || file.MD5 == "" {
		return nil
	}
	sidecar := path + ".md5"
	if _, err := os.Stat(sidecar); err == nil {
		return nil
	}
	return os.WriteFile(sidecar, []byte(file.MD5), 0644)
}

func (m *Manager) progress(event ProgressEvent) {
	if m.onProgress != nil {
		m.onProgress(event)
	}
}
