package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tomefetch/tomefetch/internal/core"
	"github.com/tomefetch/tomefetch/internal/engine/types"
)

type UIState int

const (
	DashboardState UIState = iota
	InputState
)

// DownloadModel is the dashboard view of one download.
type DownloadModel struct {
	ID            string
	URL           string
	Filename      string
	DestPath      string
	Total         int64
	Downloaded    int64
	Speed         float64
	Percent       float64
	Indeterminate bool
	Status        string
	Elapsed       time.Duration
	err           error

	progress progress.Model
}

func newDownloadModel(id, url, filename string) *DownloadModel {
	return &DownloadModel{
		ID:            id,
		URL:           url,
		Filename:      filename,
		Status:        types.StatusQueued,
		Indeterminate: true,
		progress:      progress.New(progress.WithDefaultGradient()),
	}
}

func downloadFromStatus(st types.DownloadStatus) *DownloadModel {
	d := newDownloadModel(st.ID, st.URL, st.Filename)
	d.DestPath = st.DestPath
	d.Total = st.TotalSize
	d.Downloaded = st.Downloaded
	d.Speed = st.Speed
	d.Percent = st.Progress
	d.Indeterminate = st.Indeterminate
	d.Status = st.Status
	if st.Error != "" {
		d.err = errorString(st.Error)
	}
	return d
}

func (d *DownloadModel) done() bool {
	switch d.Status {
	case "completed", "error", "cancelled":
		return true
	}
	return false
}

type errorString string

func (e errorString) Error() string { return string(e) }

// RootModel is the bubbletea model of the download dashboard. It only
// reacts to service events and never waits on a download itself.
type RootModel struct {
	Service core.DownloadService

	downloads []*DownloadModel
	cursor    int
	width     int
	height    int
	state     UIState

	inputs       []textinput.Model
	focusedInput int
	defaultDir   string

	events     <-chan any
	stopEvents func()
	spinner    spinner.Model
	help       help.Model

	SpeedHistory []float64 // total MB/s per tick

	notification   string
	notificationAt time.Time
}

// InitialRootModel subscribes to service events and prepares the dashboard.
func InitialRootModel(service core.DownloadService, defaultDir string) RootModel {
	urlInput := textinput.New()
	urlInput.Placeholder = "https://example.com/book.epub"
	urlInput.Focus()
	urlInput.Width = InputWidth
	urlInput.Prompt = ""

	pathInput := textinput.New()
	pathInput.Placeholder = defaultDir
	pathInput.Width = InputWidth
	pathInput.Prompt = ""

	filenameInput := textinput.New()
	filenameInput.Placeholder = "(auto-detect)"
	filenameInput.Width = InputWidth
	filenameInput.Prompt = ""

	m := RootModel{
		Service:    service,
		inputs:     []textinput.Model{urlInput, pathInput, filenameInput},
		state:      DashboardState,
		defaultDir: defaultDir,
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:       help.New(),
	}

	if service != nil {
		ch, stop, err := service.StreamEvents(context.Background())
		if err == nil {
			m.events = ch
			m.stopEvents = stop
		}
	}
	return m
}

// listLoadedMsg carries the initial download list.
type listLoadedMsg struct {
	statuses []types.DownloadStatus
	err      error
}

// eventsClosedMsg is delivered once the service event stream ends.
type eventsClosedMsg struct{}

type tickMsg time.Time

// actionErrMsg reports a failed pause/resume/cancel/add.
type actionErrMsg struct{ err error }

// addedMsg reports a download queued from the add dialog.
type addedMsg struct{ id string }

func (m RootModel) Init() tea.Cmd {
	return tea.Batch(
		listenForActivity(m.events),
		loadList(m.Service),
		tickCmd(),
		m.spinner.Tick,
	)
}

func listenForActivity(sub <-chan any) tea.Cmd {
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-sub
		if !ok {
			return eventsClosedMsg{}
		}
		return msg
	}
}

func loadList(service core.DownloadService) tea.Cmd {
	if service == nil {
		return nil
	}
	return func() tea.Msg {
		statuses, err := service.List()
		return listLoadedMsg{statuses: statuses, err: err}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(TickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Close ends the event subscription.
func (m RootModel) Close() {
	if m.stopEvents != nil {
		m.stopEvents()
	}
}

func (m *RootModel) find(id string) *DownloadModel {
	for _, d := range m.downloads {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// GetSelectedDownload returns the download under the cursor.
func (m RootModel) GetSelectedDownload() *DownloadModel {
	if m.cursor < 0 || m.cursor >= len(m.downloads) {
		return nil
	}
	return m.downloads[m.cursor]
}

// CalculateStats counts downloads per state group.
func (m RootModel) CalculateStats() (active, queued, done int) {
	for _, d := range m.downloads {
		switch {
		case d.done():
			done++
		case d.Status == types.StatusQueued:
			queued++
		default:
			active++
		}
	}
	return
}
