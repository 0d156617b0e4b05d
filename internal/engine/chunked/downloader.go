package chunked

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tomefetch/tomefetch/internal/engine/events"
	"github.com/tomefetch/tomefetch/internal/engine/types"
	"github.com/tomefetch/tomefetch/internal/utils"
)

// maxZeroReads bounds consecutive (0, nil) reads before a source is treated
// as stuck.
const maxZeroReads = 100

// outputFile is the part of *os.File the download loop uses.
type outputFile interface {
	io.Writer
	Sync() error
	Close() error
}

// Downloader starts downloads that report to Sink.
type Downloader struct {
	Sink events.Sink

	openFile func(path string, exclusive bool) (outputFile, error)
}

// New returns a Downloader notifying sink. A nil sink discards messages.
func New(sink events.Sink) *Downloader {
	return &Downloader{Sink: sink}
}

// createFile truncates an existing file at path unless exclusive is set, in
// which case it fails with an error matching os.ErrExist.
func createFile(path string, exclusive bool) (outputFile, error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if exclusive {
		flags = os.O_CREATE | os.O_WRONLY | os.O_EXCL
	}
	return os.OpenFile(path, flags, 0o644)
}

// Start validates req and launches the download goroutine. It returns as
// soon as the goroutine is running; failures after that point are reported
// through the Handle and the sink.
func (d *Downloader) Start(ctx context.Context, req Request) (*Handle, error) {
	if req.Source == nil {
		return nil, fmt.Errorf("%w: nil source", ErrInvalidRequest)
	}
	if req.TargetDir == "" {
		return nil, fmt.Errorf("%w: empty target directory", ErrInvalidRequest)
	}
	if req.TotalSize < 0 {
		return nil, fmt.Errorf("%w: negative total size %d", ErrInvalidRequest, req.TotalSize)
	}
	if req.ChunkSize < 0 {
		return nil, fmt.Errorf("%w: negative chunk size %d", ErrInvalidRequest, req.ChunkSize)
	}
	if req.ChunkSize == 0 {
		req.ChunkSize = types.DefaultChunkSize
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	runCtx, abort := context.WithCancel(ctx)
	h := newHandle(req.ID, req.TotalSize, abort)

	// Parent cancellation counts as a cancel request so a paused download
	// wakes up.
	stop := context.AfterFunc(ctx, func() { _ = h.Cancel() })

	disp := events.NewDispatcher(d.Sink)
	go func() {
		defer abort()
		defer stop()
		d.run(runCtx, h, req, disp)
	}()
	return h, nil
}

func (d *Downloader) run(ctx context.Context, h *Handle, req Request, disp *events.Dispatcher) {
	res := h.finish(d.download(ctx, h, req, disp))

	snap := h.Snapshot()
	switch res.Status {
	case types.StatusSucceeded:
		utils.Debug("Download %s completed: %d bytes in %s", res.ID, res.Downloaded, res.Elapsed)
		disp.Publish(events.DownloadCompleteMsg{
			DownloadID:  res.ID,
			Filename:    snap.Filename,
			DestPath:    res.Path,
			ContentType: res.ContentType,
			Elapsed:     res.Elapsed,
			Total:       res.Downloaded,
		})
	case types.StatusCancelled:
		utils.Debug("Download %s cancelled at %d bytes", res.ID, res.Downloaded)
		disp.Publish(events.DownloadCancelledMsg{
			DownloadID: res.ID,
			Filename:   snap.Filename,
			DestPath:   res.Path,
			Downloaded: res.Downloaded,
		})
	default:
		utils.Debug("Download %s failed at %d bytes: %v", res.ID, res.Downloaded, res.Err)
		disp.Publish(events.DownloadErrorMsg{
			DownloadID: res.ID,
			Filename:   snap.Filename,
			Downloaded: res.Downloaded,
			Err:        res.Err,
		})
	}

	disp.Close()
	<-disp.Done()
	close(h.done)
}

func failed(err error) Result {
	return Result{Status: types.StatusFailed, Err: err}
}

// stopped maps an error to Cancelled when a cancel was requested or the
// parent context ended, else Failed.
func stopped(ctx context.Context, h *Handle, err error) Result {
	if h.cancelled() || ctx.Err() != nil {
		return Result{Status: types.StatusCancelled}
	}
	return failed(err)
}

func (d *Downloader) download(ctx context.Context, h *Handle, req Request, disp *events.Dispatcher) Result {
	h.markStarted(time.Now())

	if err := os.MkdirAll(req.TargetDir, 0o755); err != nil {
		return failed(fmt.Errorf("failed to create target directory: %w", err))
	}

	open := d.openFile
	if open == nil {
		open = createFile
	}

	var (
		file     outputFile
		destPath string
		filename string
	)
	// With KeepExisting the name is claimed by an exclusive create, so two
	// downloads racing for the same name end up in different files.
	create := func(name string) error {
		path := filepath.Join(req.TargetDir, name)
		if !req.KeepExisting {
			f, err := open(path, false)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			file, destPath, filename = f, path, name
			return nil
		}
		path = utils.UniqueFilePath(path)
		for {
			f, err := open(path, true)
			if errors.Is(err, os.ErrExist) {
				path = utils.UniqueFilePath(utils.NextFilePath(path))
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			file, destPath, filename = f, path, filepath.Base(path)
			return nil
		}
	}

	if req.Filename != "" {
		name := utils.SanitizeFilename(req.Filename)
		if name == "" {
			return failed(fmt.Errorf("invalid file name %q", req.Filename))
		}
		if err := create(name); err != nil {
			return failed(err)
		}
		h.setOutput(filename, destPath, req.TotalSize)
	}

	closed := false
	defer func() {
		if file != nil && !closed {
			if err := file.Close(); err != nil {
				utils.Debug("Error closing %s: %v", destPath, err)
			}
		}
	}()

	stream, err := req.Source.Open(ctx)
	if err != nil {
		return stopped(ctx, h, fmt.Errorf("failed to open %s: %w", req.Source.Describe(), err))
	}
	defer func() {
		if err := stream.Body.Close(); err != nil {
			utils.Debug("Error closing source %s: %v", req.Source.Describe(), err)
		}
	}()

	total := req.TotalSize
	if total == 0 {
		total = stream.Size
	}

	if file == nil {
		name := utils.SanitizeFilename(stream.Filename)
		if name == "" {
			name = utils.DefaultFilename
		}
		if err := create(name); err != nil {
			return failed(err)
		}
	}
	h.setOutput(filename, destPath, total)

	utils.Debug("Download %s started: %s -> %s (size %d, chunk %d)",
		req.ID, req.Source.Describe(), destPath, total, req.ChunkSize)
	disp.Publish(events.DownloadStartedMsg{
		DownloadID: req.ID,
		URL:        req.Source.Describe(),
		Filename:   filename,
		Total:      total,
		DestPath:   destPath,
	})

	// Fixed once so percentages of one download are comparable.
	var onePercent float64
	if total > 0 {
		onePercent = float64(total) / 100
	}

	onPause := func(downloaded int64) {
		utils.Debug("Download %s paused at %d bytes", req.ID, downloaded)
		disp.Publish(events.DownloadPausedMsg{DownloadID: req.ID, Filename: filename, Downloaded: downloaded})
	}
	onResume := func(downloaded int64) {
		utils.Debug("Download %s resumed at %d bytes", req.ID, downloaded)
		disp.Publish(events.DownloadResumedMsg{DownloadID: req.ID, Filename: filename, Downloaded: downloaded})
	}

	buf := make([]byte, req.ChunkSize)
	for {
		n, readErr := readChunk(stream.Body, buf)

		if n > 0 {
			written, writeErr := file.Write(buf[:n])
			var downloaded int64
			var elapsed time.Duration
			if written > 0 {
				downloaded, elapsed = h.addDownloaded(int64(written))
			}
			if writeErr == nil && written < n {
				writeErr = io.ErrShortWrite
			}
			if writeErr != nil {
				return failed(fmt.Errorf("failed to write %s: %w", destPath, writeErr))
			}
			disp.Publish(progress(req.ID, downloaded, total, onePercent, elapsed))
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return stopped(ctx, h, fmt.Errorf("failed to read %s: %w", req.Source.Describe(), readErr))
		}

		if h.suspend(onPause, onResume) {
			return Result{Status: types.StatusCancelled}
		}
	}

	if err := file.Sync(); err != nil {
		return failed(fmt.Errorf("failed to sync %s: %w", destPath, err))
	}
	closed = true
	if err := file.Close(); err != nil {
		return failed(fmt.Errorf("failed to close %s: %w", destPath, err))
	}

	return Result{
		Status:      types.StatusSucceeded,
		ContentType: utils.DetectContentType(destPath, stream.ContentType),
	}
}

func progress(id string, downloaded, total int64, onePercent float64, elapsed time.Duration) events.ProgressMsg {
	msg := events.ProgressMsg{
		DownloadID: id,
		Downloaded: downloaded,
		Total:      total,
		Elapsed:    elapsed,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		msg.Speed = float64(downloaded) / secs
	}
	if onePercent > 0 {
		msg.Percent = float64(downloaded) / onePercent
		if msg.Percent > 100 {
			msg.Percent = 100
		}
	} else {
		msg.Indeterminate = true
	}
	return msg
}

// readChunk fills buf unless the reader ends or fails first. Unlike
// io.ReadFull it hands back the reader's own error, so io.EOF always means
// a clean end of stream.
func readChunk(r io.Reader, buf []byte) (int, error) {
	n, zero := 0, 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
		if m == 0 {
			zero++
			if zero >= maxZeroReads {
				return n, io.ErrNoProgress
			}
			continue
		}
		zero = 0
	}
	return n, nil
}
