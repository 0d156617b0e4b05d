package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tomefetch/tomefetch/internal/engine/events"
	"github.com/tomefetch/tomefetch/internal/engine/types"
)

type fakeService struct {
	mu     sync.Mutex
	calls  []string
	list   []types.DownloadStatus
	err    error
	events chan any
}

func newFakeService() *fakeService {
	return &fakeService{events: make(chan any, 16)}
}

func (f *fakeService) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeService) List() ([]types.DownloadStatus, error) { return f.list, nil }
func (f *fakeService) History() ([]types.DownloadEntry, error) { return nil, nil }
func (f *fakeService) Pause(id string) error { return f.record("pause " + id) }
func (f *fakeService) Resume(id string) error { return f.record("resume " + id) }
func (f *fakeService) Delete(id string) error { return f.record("delete " + id) }
func (f *fakeService) Shutdown() error { return nil }
func (f *fakeService) GetStatus(string) (*types.DownloadStatus, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeService) Add(url, path, filename string, _ map[string]string) (string, error) {
	return "new-id", f.record("add " + url + " " + path + " " + filename)
}

func (f *fakeService) StreamEvents(context.Context) (<-chan any, func(), error) {
	return f.events, func() {}, nil
}

func (f *fakeService) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func update(t *testing.T, m RootModel, msg tea.Msg) (RootModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	rm, ok := next.(RootModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return rm, cmd
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestUpdate_EventLifecycle(t *testing.T) {
	m := InitialRootModel(newFakeService(), "/books")

	m, _ = update(t, m, events.DownloadQueuedMsg{DownloadID: "a", URL: "http://x/a.pdf"})
	if len(m.downloads) != 1 || m.downloads[0].Status != types.StatusQueued {
		t.Fatalf("queued download not added: %+v", m.downloads)
	}

	m, _ = update(t, m, events.DownloadStartedMsg{DownloadID: "a", Filename: "a.pdf", Total: 1000, DestPath: "/books/a.pdf"})
	d := m.downloads[0]
	if d.Status != "downloading" || d.Filename != "a.pdf" || d.Indeterminate {
		t.Errorf("started not applied: %+v", d)
	}

	m, _ = update(t, m, events.ProgressMsg{DownloadID: "a", Downloaded: 500, Total: 1000, Percent: 50, Speed: 2 * Megabyte})
	if d.Downloaded != 500 || d.Percent != 50 {
		t.Errorf("progress not applied: %+v", d)
	}
	if got := m.calcTotalSpeed(); got != 2 {
		t.Errorf("calcTotalSpeed() = %v, want 2", got)
	}

	// Stale progress must not move the counter backwards.
	m, _ = update(t, m, events.ProgressMsg{DownloadID: "a", Downloaded: 100, Total: 1000, Percent: 10})
	if d.Downloaded != 500 {
		t.Errorf("Downloaded went backwards to %d", d.Downloaded)
	}

	m, _ = update(t, m, events.DownloadPausedMsg{DownloadID: "a", Downloaded: 600})
	if d.Status != "paused" || d.Speed != 0 {
		t.Errorf("pause not applied: %+v", d)
	}

	m, _ = update(t, m, events.DownloadResumedMsg{DownloadID: "a"})
	if d.Status != "downloading" {
		t.Errorf("resume not applied: %+v", d)
	}

	m, _ = update(t, m, events.DownloadCompleteMsg{DownloadID: "a", Total: 1000, DestPath: "/books/a.pdf"})
	if d.Status != "completed" || d.Downloaded != 1000 || d.Percent != 100 {
		t.Errorf("complete not applied: %+v", d)
	}

	// Progress after the terminal message is ignored.
	_, _ = update(t, m, events.ProgressMsg{DownloadID: "a", Downloaded: 2000})
	if d.Downloaded != 1000 {
		t.Errorf("progress applied after completion: %d", d.Downloaded)
	}

	active, queued, done := m.CalculateStats()
	if active != 0 || queued != 0 || done != 1 {
		t.Errorf("stats = %d/%d/%d", active, queued, done)
	}
}

func TestUpdate_ErrorAndRemoved(t *testing.T) {
	m := InitialRootModel(newFakeService(), "")
	m, _ = update(t, m, events.DownloadQueuedMsg{DownloadID: "a"})
	m, _ = update(t, m, events.DownloadQueuedMsg{DownloadID: "b"})
	m, _ = update(t, m, events.DownloadErrorMsg{DownloadID: "a", Err: errors.New("unexpected status code: 404")})

	if m.downloads[0].Status != "error" || m.downloads[0].err == nil {
		t.Errorf("error not applied: %+v", m.downloads[0])
	}

	m.cursor = 1
	m, _ = update(t, m, events.DownloadRemovedMsg{DownloadID: "b"})
	if len(m.downloads) != 1 {
		t.Fatalf("removed download still listed")
	}
	if m.cursor != 0 {
		t.Errorf("cursor = %d, want 0", m.cursor)
	}
}

func TestUpdate_ListLoaded(t *testing.T) {
	m := InitialRootModel(newFakeService(), "")
	m, _ = update(t, m, events.DownloadQueuedMsg{DownloadID: "a"})
	m, _ = update(t, m, listLoadedMsg{statuses: []types.DownloadStatus{
		{ID: "a", Status: "queued"},
		{ID: "old", Status: "completed", Progress: 100, TotalSize: 10, Downloaded: 10},
	}})

	if len(m.downloads) != 2 {
		t.Fatalf("got %d downloads, want 2", len(m.downloads))
	}
	if !m.downloads[1].done() {
		t.Error("history entry should be done")
	}
}

func TestUpdate_KeysCallService(t *testing.T) {
	svc := newFakeService()
	m := InitialRootModel(svc, "")
	m, _ = update(t, m, events.DownloadStartedMsg{DownloadID: "a", Total: 10})
	m, _ = update(t, m, events.DownloadStartedMsg{DownloadID: "b", Total: 10})
	m, _ = update(t, m, events.DownloadPausedMsg{DownloadID: "b"})

	m, cmd := update(t, m, keyMsg("p"))
	if cmd == nil {
		t.Fatal("pause on a running download should issue a command")
	}
	cmd()

	// Resume on a running download does nothing.
	m, cmd = update(t, m, keyMsg("r"))
	if cmd != nil {
		t.Error("resume on a running download should be ignored")
	}

	m, _ = update(t, m, keyMsg("down"))
	if m.cursor != 1 {
		t.Fatalf("cursor = %d, want 1", m.cursor)
	}
	m, cmd = update(t, m, keyMsg("r"))
	if cmd == nil {
		t.Fatal("resume on a paused download should issue a command")
	}
	cmd()

	m, cmd = update(t, m, keyMsg("c"))
	if cmd == nil {
		t.Fatal("cancel should issue a command")
	}
	cmd()

	want := []string{"pause a", "resume b", "delete b"}
	got := svc.Calls()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", got, want)
	}

	_, cmd = update(t, m, keyMsg("q"))
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should return tea.Quit")
	}
}

func TestUpdate_ServiceErrorIsShown(t *testing.T) {
	svc := newFakeService()
	svc.err = errors.New("download not found")
	m := InitialRootModel(svc, "")
	m, _ = update(t, m, events.DownloadStartedMsg{DownloadID: "a"})

	_, cmd := update(t, m, keyMsg("p"))
	msg := cmd()
	m, _ = update(t, m, msg)
	if m.notification != "download not found" {
		t.Errorf("notification = %q", m.notification)
	}
}

func TestUpdate_AddDialog(t *testing.T) {
	svc := newFakeService()
	m := InitialRootModel(svc, "/books")

	m, _ = update(t, m, keyMsg("a"))
	if m.state != InputState {
		t.Fatal("a should open the add dialog")
	}

	// Enter with an empty URL keeps the dialog on the URL field.
	m, _ = update(t, m, keyMsg("enter"))
	m, _ = update(t, m, keyMsg("enter"))
	m, _ = update(t, m, keyMsg("enter"))
	if m.state != InputState || m.focusedInput != 0 {
		t.Fatalf("empty URL should not submit (state %v, field %d)", m.state, m.focusedInput)
	}

	m.inputs[0].SetValue("https://example.com/a.epub")
	m, _ = update(t, m, keyMsg("enter"))
	m.inputs[1].SetValue("/tmp/books")
	m, _ = update(t, m, keyMsg("enter"))
	m, cmd := update(t, m, keyMsg("enter"))
	if m.state != DashboardState {
		t.Fatal("submit should return to the dashboard")
	}
	if _, ok := cmd().(addedMsg); !ok {
		t.Fatal("add should report addedMsg")
	}

	calls := svc.Calls()
	if len(calls) != 1 || calls[0] != "add https://example.com/a.epub /tmp/books " {
		t.Errorf("calls = %q", calls)
	}

	m, _ = update(t, m, keyMsg("a"))
	m, _ = update(t, m, keyMsg("esc"))
	if m.state != DashboardState {
		t.Error("esc should close the dialog")
	}
}

func TestUpdate_TickKeepsBoundedHistory(t *testing.T) {
	m := InitialRootModel(nil, "")
	for i := 0; i < SpeedHistoryLen+10; i++ {
		m, _ = update(t, m, tickMsg{})
	}
	if len(m.SpeedHistory) != SpeedHistoryLen {
		t.Errorf("history length = %d, want %d", len(m.SpeedHistory), SpeedHistoryLen)
	}
}

func TestListenForActivity_Closed(t *testing.T) {
	ch := make(chan any)
	close(ch)
	if _, ok := listenForActivity(ch)().(eventsClosedMsg); !ok {
		t.Error("closed channel should yield eventsClosedMsg")
	}
	if listenForActivity(nil) != nil {
		t.Error("nil channel should yield no command")
	}
}

func TestView(t *testing.T) {
	m := InitialRootModel(newFakeService(), "")
	if m.View() != "Loading..." {
		t.Error("view before the first resize should be a placeholder")
	}

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	if !strings.Contains(m.View(), "No downloads") {
		t.Error("empty dashboard should say so")
	}

	m, _ = update(t, m, events.DownloadStartedMsg{DownloadID: "a", Filename: "moby-dick.epub", Total: 0})
	m, _ = update(t, m, events.ProgressMsg{DownloadID: "a", Downloaded: 2048, Indeterminate: true})
	view := m.View()
	if !strings.Contains(view, "moby-dick.epub") {
		t.Error("view should list the filename")
	}
	if !strings.Contains(view, "Downloading") {
		t.Error("view should show the status")
	}

	m, _ = update(t, m, keyMsg("a"))
	if !strings.Contains(m.View(), "Add Download") {
		t.Error("add dialog should render")
	}
}

func TestRenderMultiLineGraph(t *testing.T) {
	out := renderMultiLineGraph([]float64{0, 5, 10}, 8, 3, 10, ColorNeonPink)
	if lines := strings.Split(out, "\n"); len(lines) != 3 {
		t.Errorf("got %d lines, want 3", len(lines))
	}
	if renderMultiLineGraph(nil, 0, 3, 10, ColorNeonPink) != "" {
		t.Error("zero width should render nothing")
	}
}
