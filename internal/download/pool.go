// Package download runs queued downloads on a fixed number of workers.
package download

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomefetch/tomefetch/internal/engine/chunked"
	"github.com/tomefetch/tomefetch/internal/engine/events"
	"github.com/tomefetch/tomefetch/internal/engine/source"
	"github.com/tomefetch/tomefetch/internal/engine/types"
	"github.com/tomefetch/tomefetch/internal/utils"
)

var (
	// ErrNotFound is returned for IDs the pool does not know.
	ErrNotFound = errors.New("download not found")
	// ErrClosed is returned by Add after GracefulShutdown.
	ErrClosed = errors.New("worker pool is shut down")
)

// HistoryRecorder stores download rows. *state.Store implements it.
type HistoryRecorder interface {
	Record(entry types.DownloadEntry) error
}

// queuedDownload waits for a free worker.
type queuedDownload struct {
	config  types.DownloadConfig
	source  source.Source
	addedAt time.Time
}

// activeDownload tracks a download that's currently running or paused
type activeDownload struct {
	config  types.DownloadConfig
	handle  *chunked.Handle
	addedAt time.Time
}

// WorkerPool runs at most N downloads at a time. Everything else waits in
// FIFO order.
type WorkerPool struct {
	taskChan   chan string
	sink       events.Sink
	history    HistoryRecorder
	downloader *chunked.Downloader

	mu     sync.RWMutex
	queued map[string]*queuedDownload
	active map[string]*activeDownload
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup // Workers
}

// NewWorkerPool starts maxDownloads workers. sink receives every download
// event; history may be nil.
func NewWorkerPool(sink events.Sink, history HistoryRecorder, maxDownloads int) *WorkerPool {
	if sink == nil {
		sink = events.Discard
	}
	if maxDownloads <= 0 {
		maxDownloads = types.DefaultMaxConcurrentDownloads
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		taskChan:   make(chan string, types.QueueBuffer),
		sink:       sink,
		history:    history,
		downloader: chunked.New(sink),
		queued:     make(map[string]*queuedDownload),
		active:     make(map[string]*activeDownload),
		ctx:        ctx,
		cancel:     cancel,
	}

	for i := 0; i < maxDownloads; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Add queues cfg and returns its ID. The URL is resolved right away, so an
// unsupported scheme fails here rather than on a worker.
func (p *WorkerPool) Add(cfg types.DownloadConfig) (string, error) {
	if cfg.URL == "" {
		return "", errors.New("url is required")
	}
	if cfg.OutputDir == "" {
		return "", errors.New("output directory is required")
	}

	src, err := source.Resolve(cfg.URL, cfg.Headers, cfg.Runtime)
	if err != nil {
		return "", err
	}

	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return "", ErrClosed
	}
	if _, ok := p.queued[cfg.ID]; ok {
		p.mu.Unlock()
		return "", fmt.Errorf("download %s already exists", cfg.ID)
	}
	if _, ok := p.active[cfg.ID]; ok {
		p.mu.Unlock()
		return "", fmt.Errorf("download %s already exists", cfg.ID)
	}
	q := &queuedDownload{config: cfg, source: src, addedAt: time.Now()}
	p.queued[cfg.ID] = q
	p.mu.Unlock()

	p.record(types.DownloadEntry{
		ID:        cfg.ID,
		URL:       cfg.URL,
		Filename:  cfg.Filename,
		Status:    types.StatusQueued,
		TotalSize: cfg.TotalSize,
		CreatedAt: q.addedAt.Unix(),
	})

	utils.Debug("Queued download %s: %s", cfg.ID, cfg.URL)
	p.sink.Notify(events.DownloadQueuedMsg{DownloadID: cfg.ID, URL: cfg.URL, Filename: cfg.Filename})

	select {
	case p.taskChan <- cfg.ID:
	case <-p.ctx.Done():
		return "", ErrClosed
	}
	return cfg.ID, nil
}

// Pause pauses an active download. Queued downloads are left alone.
func (p *WorkerPool) Pause(id string) error {
	p.mu.RLock()
	ad, active := p.active[id]
	_, queued := p.queued[id]
	p.mu.RUnlock()

	switch {
	case active:
		return ad.handle.Pause()
	case queued:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Resume continues a paused download.
func (p *WorkerPool) Resume(id string) error {
	p.mu.RLock()
	ad, active := p.active[id]
	_, queued := p.queued[id]
	p.mu.RUnlock()

	switch {
	case active:
		return ad.handle.Resume()
	case queued:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Cancel stops an active download, or drops a queued one.
func (p *WorkerPool) Cancel(id string) error {
	p.mu.Lock()
	if q, ok := p.queued[id]; ok {
		delete(p.queued, id)
		p.mu.Unlock()
		p.dropQueued(q)
		return nil
	}
	ad, ok := p.active[id]
	p.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ad.handle.Cancel()
}

func (p *WorkerPool) dropQueued(q *queuedDownload) {
	utils.Debug("Removed queued download %s", q.config.ID)
	p.record(types.DownloadEntry{
		ID:          q.config.ID,
		URL:         q.config.URL,
		Filename:    q.config.Filename,
		Status:      types.StatusCancelled.String(),
		TotalSize:   q.config.TotalSize,
		CreatedAt:   q.addedAt.Unix(),
		CompletedAt: time.Now().Unix(),
	})
	p.sink.Notify(events.DownloadRemovedMsg{DownloadID: q.config.ID, Filename: q.config.Filename})
}

// Status returns the live status of a queued or active download.
func (p *WorkerPool) Status(id string) (*types.DownloadStatus, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if ad, ok := p.active[id]; ok {
		s := activeStatus(ad)
		return &s, nil
	}
	if q, ok := p.queued[id]; ok {
		s := queuedStatus(q)
		return &s, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// List returns every queued and active download, oldest first.
func (p *WorkerPool) List() []types.DownloadStatus {
	p.mu.RLock()
	list := make([]types.DownloadStatus, 0, len(p.active)+len(p.queued))
	for _, ad := range p.active {
		list = append(list, activeStatus(ad))
	}
	for _, q := range p.queued {
		list = append(list, queuedStatus(q))
	}
	p.mu.RUnlock()

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].AddedAt != list[j].AddedAt {
			return list[i].AddedAt < list[j].AddedAt
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// ActiveCount returns the number of downloads holding a worker.
func (p *WorkerPool) ActiveCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.active)
}

// GracefulShutdown drops the queue, cancels running downloads and waits for
// the workers to record their results.
func (p *WorkerPool) GracefulShutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closed = true
	dropped := make([]*queuedDownload, 0, len(p.queued))
	for id, q := range p.queued {
		dropped = append(dropped, q)
		delete(p.queued, id)
	}
	p.mu.Unlock()

	for _, q := range dropped {
		p.dropQueued(q)
	}

	// Active handles observe the cancelled pool context.
	p.cancel()
	p.wg.Wait()
	utils.Debug("Worker pool shut down")
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case id := <-p.taskChan:
			p.process(id)
		}
	}
}

func (p *WorkerPool) process(id string) {
	p.mu.Lock()
	q, ok := p.queued[id]
	if !ok {
		// Cancelled while waiting.
		p.mu.Unlock()
		return
	}
	delete(p.queued, id)

	cfg := q.config
	handle, err := p.downloader.Start(p.ctx, chunked.Request{
		ID:           cfg.ID,
		Source:       q.source,
		TargetDir:    utils.ResolveOutputDir(cfg.OutputDir, cfg.URL, cfg.Runtime != nil && cfg.Runtime.PreserveURLPath),
		Filename:     cfg.Filename,
		TotalSize:    cfg.TotalSize,
		ChunkSize:    cfg.Runtime.GetChunkSize(),
		KeepExisting: true,
	})
	if err != nil {
		p.mu.Unlock()
		utils.Debug("Failed to start %s: %v", id, err)
		p.record(types.DownloadEntry{
			ID:          cfg.ID,
			URL:         cfg.URL,
			Filename:    cfg.Filename,
			Status:      types.StatusFailed.String(),
			Error:       err.Error(),
			CreatedAt:   q.addedAt.Unix(),
			CompletedAt: time.Now().Unix(),
		})
		p.sink.Notify(events.DownloadErrorMsg{DownloadID: cfg.ID, Filename: cfg.Filename, Err: err})
		return
	}
	p.active[id] = &activeDownload{config: cfg, handle: handle, addedAt: q.addedAt}
	p.mu.Unlock()

	p.record(types.DownloadEntry{
		ID:        cfg.ID,
		URL:       cfg.URL,
		Filename:  cfg.Filename,
		Status:    types.StatusRunning.String(),
		TotalSize: cfg.TotalSize,
		CreatedAt: q.addedAt.Unix(),
	})

	// The handle always finishes: the pool context cancels it on shutdown.
	res, _ := handle.Wait(context.Background())
	snap := handle.Snapshot()

	entry := types.DownloadEntry{
		ID:          cfg.ID,
		URL:         cfg.URL,
		DestPath:    res.Path,
		Filename:    snap.Filename,
		Status:      res.Status.String(),
		TotalSize:   snap.Total,
		Downloaded:  res.Downloaded,
		ContentType: res.ContentType,
		CreatedAt:   q.addedAt.Unix(),
		CompletedAt: time.Now().Unix(),
		TimeTaken:   res.Elapsed.Milliseconds(),
	}
	if res.Err != nil {
		entry.Error = res.Err.Error()
	}
	p.record(entry)

	p.mu.Lock()
	delete(p.active, id)
	p.mu.Unlock()
}

func (p *WorkerPool) record(entry types.DownloadEntry) {
	if p.history == nil {
		return
	}
	if err := p.history.Record(entry); err != nil {
		utils.Debug("Failed to record %s: %v", entry.ID, err)
	}
}

func activeStatus(ad *activeDownload) types.DownloadStatus {
	snap := ad.handle.Snapshot()
	s := types.DownloadStatus{
		ID:            ad.config.ID,
		URL:           ad.config.URL,
		Filename:      snap.Filename,
		DestPath:      snap.OutputFile,
		TotalSize:     snap.Total,
		Downloaded:    snap.Downloaded,
		Indeterminate: snap.Total <= 0,
		Status:        snap.Status.String(),
		AddedAt:       ad.addedAt.Unix(),
	}
	if s.Filename == "" {
		s.Filename = ad.config.Filename
	}
	if snap.Err != nil {
		s.Error = snap.Err.Error()
	}
	if secs := snap.Elapsed.Seconds(); secs > 0 {
		s.Speed = float64(snap.Downloaded) / secs
	}
	if snap.Total > 0 {
		s.Progress = float64(snap.Downloaded) * 100 / float64(snap.Total)
		if s.Progress > 100 {
			s.Progress = 100
		}
		if s.Speed > 0 && snap.Status == types.StatusRunning {
			s.ETA = int64(float64(snap.Total-snap.Downloaded) / s.Speed)
		}
	}
	return s
}

func queuedStatus(q *queuedDownload) types.DownloadStatus {
	return types.DownloadStatus{
		ID:            q.config.ID,
		URL:           q.config.URL,
		Filename:      q.config.Filename,
		TotalSize:     q.config.TotalSize,
		Indeterminate: q.config.TotalSize <= 0,
		Status:        types.StatusQueued,
		AddedAt:       q.addedAt.Unix(),
	}
}
