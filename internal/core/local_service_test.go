package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomefetch/tomefetch/internal/engine/events"
	"github.com/tomefetch/tomefetch/internal/engine/state"
	"github.com/tomefetch/tomefetch/internal/engine/types"
	"github.com/tomefetch/tomefetch/internal/testutil"
)

func newLocalService(t *testing.T) (*LocalDownloadService, *state.Store, string) {
	t.Helper()
	store, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	dir := t.TempDir()
	svc := NewLocalDownloadService(store, &types.RuntimeConfig{ChunkSize: 16 * types.KB}, dir)
	t.Cleanup(func() { _ = svc.Shutdown() })
	return svc, store, dir
}

// waitFor drains ch until a terminal message for id arrives.
func waitFor(t *testing.T, ch <-chan any, id string) any {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case msg, ok := <-ch:
			require.True(t, ok, "event stream closed early")
			if events.DownloadID(msg) == id && events.IsTerminal(msg) {
				return msg
			}
		case <-timeout:
			t.Fatalf("no terminal event for %s", id)
		}
	}
}

func TestLocalService_AddCompletesAndRecords(t *testing.T) {
	server := testutil.NewMockServerT(t,
		testutil.WithFileSize(100*1024),
		testutil.WithFilename("walden.epub"),
	)
	svc, store, dir := newLocalService(t)

	ch, stop, err := svc.StreamEvents(context.Background())
	require.NoError(t, err)
	defer stop()

	id, err := svc.Add(server.URL(), "", "", nil)
	require.NoError(t, err)

	msg := waitFor(t, ch, id)
	complete, ok := msg.(events.DownloadCompleteMsg)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, filepath.Join(dir, "walden.epub"), complete.DestPath)

	require.Eventually(t, func() bool {
		e, err := store.Get(id)
		return err == nil && e.Status == types.StatusSucceeded.String()
	}, 5*time.Second, 10*time.Millisecond)

	status, err := svc.GetStatus(id)
	require.NoError(t, err)
	assert.Equal(t, "completed", status.Status)
	assert.Equal(t, 100.0, status.Progress)
	assert.Equal(t, int64(100*1024), status.Downloaded)

	list, err := svc.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	history, err := svc.History()
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestLocalService_DeleteFinishedKeepsFile(t *testing.T) {
	server := testutil.NewMockServerT(t, testutil.WithFileSize(4096))
	svc, _, dir := newLocalService(t)

	ch, stop, err := svc.StreamEvents(context.Background())
	require.NoError(t, err)
	defer stop()

	id, err := svc.Add(server.URL(), dir, "kept.bin", nil)
	require.NoError(t, err)
	waitFor(t, ch, id)

	require.Eventually(t, func() bool {
		st, err := svc.GetStatus(id)
		return err == nil && st.Status == "completed"
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, svc.Delete(id))

	_, err = svc.GetStatus(id)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = os.Stat(filepath.Join(dir, "kept.bin"))
	assert.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(id), ErrNotFound)
}

func TestLocalService_CancelActive(t *testing.T) {
	server := testutil.NewMockServerT(t,
		testutil.WithFileSize(2*types.MB),
		testutil.WithChunkLatency(20*time.Millisecond),
	)
	svc, store, _ := newLocalService(t)

	ch, stop, err := svc.StreamEvents(context.Background())
	require.NoError(t, err)
	defer stop()

	id, err := svc.Add(server.URL(), "", "slow.bin", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, err := svc.GetStatus(id)
		return err == nil && st.Downloaded > 0
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, svc.Pause(id))
	require.NoError(t, svc.Delete(id))

	msg := waitFor(t, ch, id)
	assert.IsType(t, events.DownloadCancelledMsg{}, msg)

	require.Eventually(t, func() bool {
		e, err := store.Get(id)
		return err == nil && e.Status == "cancelled"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestLocalService_UnknownID(t *testing.T) {
	svc, _, _ := newLocalService(t)

	assert.ErrorIs(t, svc.Pause("nope"), ErrNotFound)
	assert.ErrorIs(t, svc.Resume("nope"), ErrNotFound)
	assert.ErrorIs(t, svc.Delete("nope"), ErrNotFound)
	_, err := svc.GetStatus("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalService_WithoutStore(t *testing.T) {
	svc := NewLocalDownloadService(nil, nil, t.TempDir())
	defer func() { _ = svc.Shutdown() }()

	history, err := svc.History()
	require.NoError(t, err)
	assert.Empty(t, history)

	list, err := svc.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLocalService_StreamEndsOnContext(t *testing.T) {
	svc, _, _ := newLocalService(t)

	ctx, cancel := context.WithCancel(context.Background())
	ch, stop, err := svc.StreamEvents(ctx)
	require.NoError(t, err)
	defer stop()

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed after context cancel")
	}
}

func TestLocalService_ShutdownIdempotent(t *testing.T) {
	svc, _, _ := newLocalService(t)
	assert.NoError(t, svc.Shutdown())
	assert.NoError(t, svc.Shutdown())
}

func TestEntryStatus(t *testing.T) {
	st := entryStatus(types.DownloadEntry{
		ID:         "a",
		Status:     "error",
		TotalSize:  200,
		Downloaded: 50,
		TimeTaken:  500,
	})
	assert.Equal(t, 25.0, st.Progress)
	assert.Equal(t, 100.0, st.Speed)
	assert.False(t, st.Indeterminate)

	st = entryStatus(types.DownloadEntry{ID: "b", Status: "completed", Downloaded: 10})
	assert.True(t, st.Indeterminate)
	assert.Equal(t, 100.0, st.Progress)
}
