package engine

import (
	"context"

	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/td"
	"github.com/matheus3301/telesync/internal/transfer"
)

// FileResult is the payload of file.completed events.
type FileResult struct {
	FileID int32
	OK     bool
	Path   string
}

// Download fetches file. Progress and completion are published on the bus
// and also handed to the optional callbacks.
func (e *Engine) Download(file td.File, onProgress transfer.ProgressFunc, onComplete transfer.CompleteFunc) {
	e.files.Download(file,
		func(f td.File) {
			e.bus.Emit(bus.KindFileProgress, f)
			if onProgress != nil {
				onProgress(f)
			}
		},
		func(ok bool, path string) {
			e.bus.Emit(bus.KindFileCompleted, FileResult{FileID: file.ID, OK: ok, Path: path})
			if onComplete != nil {
				onComplete(ok, path)
			}
		})
}

// DownloadMessageFile downloads the file attached to a message in the
// chat's window and returns its id.
func (e *Engine) DownloadMessageFile(ctx context.Context, chatID, messageID int64) (int32, error) {
	var file *td.File
	err := e.do(ctx, func() {
		w := e.windows.Lookup(chatID)
		if w == nil {
			return
		}
		if m, ok := w.Get(messageID); ok && m.Content.File != nil {
			f := *m.Content.File
			file = &f
		}
	})
	if err != nil {
		return 0, err
	}
	if file == nil {
		return 0, ErrNotFound
	}
	e.Download(*file, nil, nil)
	return file.ID, nil
}

// CancelDownload stops tracking and downloading fileID.
func (e *Engine) CancelDownload(fileID int32) {
	e.files.Cancel(fileID)
}
