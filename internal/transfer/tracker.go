// Package transfer tracks file downloads and reports progress and
// completion to per-file callbacks.
package transfer

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/matheus3301/telesync/internal/td"
	"go.uber.org/zap"
)

// PollInterval is how often a completed download is checked on disk.
const PollInterval = 500 * time.Millisecond

// ProgressFunc receives every file update for a tracked download.
type ProgressFunc func(file td.File)

// CompleteFunc is called once per download with the local path on success.
type CompleteFunc func(ok bool, path string)

type entry struct {
	onProgress ProgressFunc
	onComplete CompleteFunc
}

// Tracker maps file ids to download callbacks.
type Tracker struct {
	client       td.Client
	logger       *zap.Logger
	pollInterval time.Duration
	stat         func(string) (os.FileInfo, error)

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[int32]*entry
}

// NewTracker creates a tracker issuing requests through client.
func NewTracker(client td.Client, logger *zap.Logger) *Tracker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		client:       client,
		logger:       logger,
		pollInterval: PollInterval,
		stat:         os.Stat,
		ctx:          ctx,
		cancel:       cancel,
		entries:      make(map[int32]*entry),
	}
}

// Download fetches file. When the file is already on disk onComplete runs
// before Download returns. A later Download for the same file replaces the
// callbacks of the earlier one.
func (t *Tracker) Download(file td.File, onProgress ProgressFunc, onComplete CompleteFunc) {
	if file.Local.IsDownloadingCompleted && t.nonEmpty(file.Local.Path) {
		if onComplete != nil {
			onComplete(true, file.Local.Path)
		}
		return
	}

	t.mu.Lock()
	t.entries[file.ID] = &entry{onProgress: onProgress, onComplete: onComplete}
	t.mu.Unlock()

	t.client.Send(td.DownloadFile{FileID: file.ID, Priority: 1}, func(resp td.Response) {
		tdErr, ok := resp.(*td.Error)
		if !ok {
			return
		}
		t.logger.Warn("download request failed",
			zap.Int32("file_id", file.ID),
			zap.Int32("code", tdErr.Code),
			zap.String("message", tdErr.Message))
		if e := t.take(file.ID); e != nil && e.onComplete != nil {
			e.onComplete(false, "")
		}
	})
}

// HandleFile routes a backend file update to its download callbacks.
func (t *Tracker) HandleFile(file td.File) {
	t.mu.Lock()
	e, ok := t.entries[file.ID]
	if ok && file.Local.IsDownloadingCompleted {
		delete(t.entries, file.ID)
	}
	t.mu.Unlock()
	if !ok {
		return
	}

	if e.onProgress != nil {
		e.onProgress(file)
	}
	if file.Local.IsDownloadingCompleted {
		go t.awaitFlushed(file.Local.Path, e.onComplete)
	}
}

// awaitFlushed polls path until it is non-empty. The completion notice can
// arrive before the file contents reach the disk.
func (t *Tracker) awaitFlushed(path string, onComplete CompleteFunc) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()
	for {
		if t.nonEmpty(path) {
			if onComplete != nil {
				onComplete(true, path)
			}
			return
		}
		select {
		case <-ticker.C:
		case <-t.ctx.Done():
			if onComplete != nil {
				onComplete(false, "")
			}
			return
		}
	}
}

func (t *Tracker) nonEmpty(path string) bool {
	if path == "" {
		return false
	}
	info, err := t.stat(path)
	return err == nil && info.Size() > 0
}

// Cancel forgets the callbacks for fileID and asks the backend to stop.
func (t *Tracker) Cancel(fileID int32) {
	t.take(fileID)
	t.client.Send(td.CancelDownloadFile{FileID: fileID}, nil)
}

func (t *Tracker) take(fileID int32) *entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entries[fileID]
	delete(t.entries, fileID)
	return e
}

// Tracking reports whether fileID has registered callbacks.
func (t *Tracker) Tracking(fileID int32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[fileID]
	return ok
}

// Close stops pending disk polls; their callbacks report failure.
func (t *Tracker) Close() {
	t.cancel()
}
