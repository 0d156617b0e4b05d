package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tomefetch/tomefetch/internal/download"
	"github.com/tomefetch/tomefetch/internal/engine/events"
	"github.com/tomefetch/tomefetch/internal/engine/state"
	"github.com/tomefetch/tomefetch/internal/engine/types"
	"github.com/tomefetch/tomefetch/internal/utils"
)

// ErrNotFound is returned for IDs neither the pool nor the history know.
var ErrNotFound = errors.New("download not found")

// HistoryStore is the part of *state.Store the local service needs.
type HistoryStore interface {
	download.HistoryRecorder
	Get(id string) (types.DownloadEntry, error)
	History() ([]types.DownloadEntry, error)
	Delete(id string) error
}

// eventBuffer is the per-subscriber channel size.
const eventBuffer = types.ProgressChannelBuffer

// LocalDownloadService runs downloads in this process.
type LocalDownloadService struct {
	pool        *download.WorkerPool
	store       HistoryStore
	broadcaster *events.Broadcaster
	runtime     *types.RuntimeConfig
	defaultDir  string

	shutdownOnce sync.Once
}

// NewLocalDownloadService starts a worker pool sized from runtime. store may
// be nil, in which case nothing is recorded.
func NewLocalDownloadService(store HistoryStore, runtime *types.RuntimeConfig, defaultDir string) *LocalDownloadService {
	b := events.NewBroadcaster()
	var recorder download.HistoryRecorder
	if store != nil {
		recorder = store
	}
	return &LocalDownloadService{
		pool:        download.NewWorkerPool(b, recorder, runtime.GetMaxConcurrentDownloads()),
		store:       store,
		broadcaster: b,
		runtime:     runtime,
		defaultDir:  defaultDir,
	}
}

// Add queues a download with the service's runtime settings.
func (s *LocalDownloadService) Add(url string, path string, filename string, headers map[string]string) (string, error) {
	if path == "" {
		path = s.defaultDir
	}
	if path == "" {
		path = "."
	}
	return s.pool.Add(types.DownloadConfig{
		URL:       url,
		OutputDir: path,
		Filename:  filename,
		Headers:   headers,
		Runtime:   s.runtime,
	})
}

func (s *LocalDownloadService) Pause(id string) error {
	return mapNotFound(s.pool.Pause(id))
}

func (s *LocalDownloadService) Resume(id string) error {
	return mapNotFound(s.pool.Resume(id))
}

// Delete cancels a live download. A finished one is removed from history;
// its file is left on disk.
func (s *LocalDownloadService) Delete(id string) error {
	err := s.pool.Cancel(id)
	if err == nil || !errors.Is(err, download.ErrNotFound) {
		return err
	}
	if s.store == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := s.store.Delete(id); err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return err
	}
	s.broadcaster.Notify(events.DownloadRemovedMsg{DownloadID: id})
	return nil
}

// List returns live downloads followed by finished ones from history.
func (s *LocalDownloadService) List() ([]types.DownloadStatus, error) {
	list := s.pool.List()
	if s.store == nil {
		return list, nil
	}

	seen := make(map[string]bool, len(list))
	for _, st := range list {
		seen[st.ID] = true
	}

	history, err := s.store.History()
	if err != nil {
		return list, err
	}
	for _, e := range history {
		if seen[e.ID] {
			continue
		}
		list = append(list, entryStatus(e))
	}
	return list, nil
}

// ActiveCount returns how many downloads are queued, running or paused.
func (s *LocalDownloadService) ActiveCount() int {
	return len(s.pool.List())
}

func (s *LocalDownloadService) History() ([]types.DownloadEntry, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.History()
}

// GetStatus looks in the pool first and falls back to history.
func (s *LocalDownloadService) GetStatus(id string) (*types.DownloadStatus, error) {
	st, err := s.pool.Status(id)
	if err == nil {
		return st, nil
	}
	if s.store == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	status := entryStatus(e)
	return &status, nil
}

// StreamEvents subscribes to all download events. The subscription ends when
// ctx is done or the returned func is called.
func (s *LocalDownloadService) StreamEvents(ctx context.Context) (<-chan any, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ch, unsubscribe := s.broadcaster.Subscribe(eventBuffer)
	stop := context.AfterFunc(ctx, unsubscribe)
	return ch, func() {
		stop()
		unsubscribe()
	}, nil
}

// Shutdown cancels running downloads, waits for them and closes the event
// stream.
func (s *LocalDownloadService) Shutdown() error {
	s.shutdownOnce.Do(func() {
		utils.Debug("Shutting down local download service")
		s.pool.GracefulShutdown()
		s.broadcaster.Close()
	})
	return nil
}

func mapNotFound(err error) error {
	if errors.Is(err, download.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

func entryStatus(e types.DownloadEntry) types.DownloadStatus {
	st := types.DownloadStatus{
		ID:            e.ID,
		URL:           e.URL,
		Filename:      e.Filename,
		DestPath:      e.DestPath,
		TotalSize:     e.TotalSize,
		Downloaded:    e.Downloaded,
		Indeterminate: e.TotalSize <= 0,
		Status:        e.Status,
		Error:         e.Error,
		AddedAt:       e.CreatedAt,
	}
	if e.TotalSize > 0 {
		st.Progress = float64(e.Downloaded) * 100 / float64(e.TotalSize)
	}
	if e.Status == types.StatusSucceeded.String() {
		st.Progress = 100
	}
	if e.TimeTaken > 0 {
		st.Speed = float64(e.Downloaded) / (float64(e.TimeTaken) / 1000)
	}
	return st
}
