package chunked

import (
	"context"
	"sync"
	"time"

	"github.com/tomefetch/tomefetch/internal/engine/types"
)

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Handle controls a download started by Downloader.Start.
//
// All methods are safe for concurrent use. State is written only by the
// download goroutine; callers merely set request flags.
type Handle struct {
	mu   sync.Mutex
	cond *sync.Cond

	pauseRequested  bool
	cancelRequested bool
	abort           context.CancelFunc

	state     DownloadState
	result    Result
	started   time.Time
	pausedAt  time.Time
	pausedFor time.Duration

	done chan struct{}
}

func newHandle(id string, total int64, abort context.CancelFunc) *Handle {
	h := &Handle{
		abort: abort,
		done:  make(chan struct{}),
		state: DownloadState{
			ID:     id,
			Status: types.StatusRunning,
			Total:  total,
		},
	}
	h.cond = sync.NewCond(&h.mu)
	return h
}

func (h *Handle) valid() bool {
	return h != nil && h.cond != nil
}

// ID returns the download ID, or "" for an unstarted handle.
func (h *Handle) ID() string {
	if !h.valid() {
		return ""
	}
	return h.state.ID
}

// Snapshot returns the current state.
func (h *Handle) Snapshot() DownloadState {
	if !h.valid() {
		return DownloadState{}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.state
	s.Elapsed = h.activeLocked(time.Now())
	return s
}

// Pause asks the download to suspend at the next chunk boundary. It has no
// effect once the download finished or a cancel is pending. A Pause right
// after Resume holds even if the goroutine has not left the paused state yet.
func (h *Handle) Pause() error {
	if !h.valid() {
		return ErrNotStarted
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.state.Status.IsTerminal() && !h.cancelRequested {
		h.pauseRequested = true
	}
	return nil
}

// Resume continues a paused download from the byte where it stopped.
func (h *Handle) Resume() error {
	if !h.valid() {
		return ErrNotStarted
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state.Status.IsTerminal() {
		return nil
	}
	h.pauseRequested = false
	h.cond.Broadcast()
	return nil
}

// Cancel stops the download at the next chunk boundary, or right away when
// it is paused. A read blocked on a context-aware source is aborted. The
// partial file stays on disk.
func (h *Handle) Cancel() error {
	if !h.valid() {
		return ErrNotStarted
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state.Status.IsTerminal() {
		return nil
	}
	h.cancelRequested = true
	h.cond.Broadcast()
	if h.abort != nil {
		h.abort()
	}
	return nil
}

// Done is closed after the terminal notification has been delivered.
func (h *Handle) Done() <-chan struct{} {
	if !h.valid() {
		return closedChan
	}
	return h.done
}

// Wait blocks until the download finished or ctx is done.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	if !h.valid() {
		return Result{}, ErrNotStarted
	}
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Methods below are called from the download goroutine only.

func (h *Handle) activeLocked(now time.Time) time.Duration {
	if h.state.Status.IsTerminal() {
		return h.state.Elapsed
	}
	if h.started.IsZero() {
		return 0
	}
	paused := h.pausedFor
	if !h.pausedAt.IsZero() {
		paused += now.Sub(h.pausedAt)
	}
	return now.Sub(h.started) - paused
}

func (h *Handle) markStarted(now time.Time) {
	h.mu.Lock()
	h.started = now
	h.mu.Unlock()
}

func (h *Handle) setOutput(filename, path string, total int64) {
	h.mu.Lock()
	h.state.Filename = filename
	h.state.OutputFile = path
	h.state.Total = total
	h.mu.Unlock()
}

func (h *Handle) addDownloaded(n int64) (downloaded int64, elapsed time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.Downloaded += n
	return h.state.Downloaded, h.activeLocked(time.Now())
}

func (h *Handle) cancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelRequested
}

// suspend blocks while a pause is requested. onPause and onResume run
// without the lock held. It reports whether cancellation was requested.
func (h *Handle) suspend(onPause, onResume func(downloaded int64)) bool {
	h.mu.Lock()
	if h.cancelRequested {
		h.mu.Unlock()
		return true
	}
	if !h.pauseRequested {
		h.mu.Unlock()
		return false
	}

	h.state.Status = types.StatusPaused
	h.pausedAt = time.Now()
	downloaded := h.state.Downloaded
	h.mu.Unlock()

	onPause(downloaded)

	h.mu.Lock()
	for h.pauseRequested && !h.cancelRequested {
		h.cond.Wait()
	}
	h.pausedFor += time.Since(h.pausedAt)
	h.pausedAt = time.Time{}
	if h.cancelRequested {
		h.mu.Unlock()
		return true
	}
	h.state.Status = types.StatusRunning
	h.mu.Unlock()

	onResume(downloaded)
	return false
}

// finish records the terminal state. Done is closed separately once the
// terminal message went out.
func (h *Handle) finish(res Result) Result {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	res.Elapsed = h.activeLocked(now)
	res.Downloaded = h.state.Downloaded
	res.Path = h.state.OutputFile
	res.ID = h.state.ID

	h.state.Status = res.Status
	h.state.Elapsed = res.Elapsed
	if res.Status == types.StatusFailed {
		h.state.Err = res.Err
	}
	h.pauseRequested = false
	h.result = res
	return res
}
