package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tomefetch/tomefetch/internal/engine/events"
	"github.com/tomefetch/tomefetch/internal/utils"
)

// Update handles messages and updates the model
func (m RootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case listLoadedMsg:
		if msg.err != nil {
			m.notify("Failed to load downloads: " + msg.err.Error())
			return m, nil
		}
		for _, st := range msg.statuses {
			if m.find(st.ID) == nil {
				m.downloads = append(m.downloads, downloadFromStatus(st))
			}
		}
		return m, nil

	case eventsClosedMsg:
		m.events = nil
		return m, nil

	case events.DownloadQueuedMsg:
		if m.find(msg.DownloadID) == nil {
			m.downloads = append(m.downloads, newDownloadModel(msg.DownloadID, msg.URL, msg.Filename))
		}
		cmds = append(cmds, listenForActivity(m.events))

	case events.DownloadStartedMsg:
		d := m.find(msg.DownloadID)
		if d == nil {
			d = newDownloadModel(msg.DownloadID, msg.URL, msg.Filename)
			m.downloads = append(m.downloads, d)
		}
		d.Filename = msg.Filename
		d.DestPath = msg.DestPath
		d.Total = msg.Total
		d.Indeterminate = msg.Total <= 0
		d.Status = "downloading"
		cmds = append(cmds, listenForActivity(m.events))

	case events.ProgressMsg:
		if d := m.find(msg.DownloadID); d != nil && !d.done() {
			if msg.Downloaded >= d.Downloaded {
				d.Downloaded = msg.Downloaded
			}
			d.Total = msg.Total
			d.Speed = msg.Speed
			d.Elapsed = msg.Elapsed
			d.Indeterminate = msg.Indeterminate
			if !msg.Indeterminate {
				d.Percent = msg.Percent
				cmds = append(cmds, d.progress.SetPercent(msg.Percent/100))
			}
		}
		cmds = append(cmds, listenForActivity(m.events))

	case events.DownloadPausedMsg:
		if d := m.find(msg.DownloadID); d != nil {
			d.Status = "paused"
			d.Speed = 0
			d.Downloaded = msg.Downloaded
		}
		cmds = append(cmds, listenForActivity(m.events))

	case events.DownloadResumedMsg:
		if d := m.find(msg.DownloadID); d != nil {
			d.Status = "downloading"
		}
		cmds = append(cmds, listenForActivity(m.events))

	case events.DownloadCompleteMsg:
		if d := m.find(msg.DownloadID); d != nil {
			d.Status = "completed"
			d.DestPath = msg.DestPath
			d.Elapsed = msg.Elapsed
			d.Speed = 0
			if msg.Total > 0 {
				d.Total = msg.Total
				d.Downloaded = msg.Total
			}
			d.Percent = 100
			cmds = append(cmds, d.progress.SetPercent(1.0))
		}
		cmds = append(cmds, listenForActivity(m.events))

	case events.DownloadErrorMsg:
		if d := m.find(msg.DownloadID); d != nil {
			d.Status = "error"
			d.err = msg.Err
			d.Speed = 0
		}
		cmds = append(cmds, listenForActivity(m.events))

	case events.DownloadCancelledMsg:
		if d := m.find(msg.DownloadID); d != nil {
			d.Status = "cancelled"
			d.Speed = 0
		}
		cmds = append(cmds, listenForActivity(m.events))

	case events.DownloadRemovedMsg:
		m.remove(msg.DownloadID)
		cmds = append(cmds, listenForActivity(m.events))

	case addedMsg:
		utils.Debug("TUI queued %s", msg.id)
		return m, nil

	case actionErrMsg:
		m.notify(msg.err.Error())
		return m, nil

	case tickMsg:
		m.SpeedHistory = append(m.SpeedHistory, m.calcTotalSpeed())
		if len(m.SpeedHistory) > SpeedHistoryLen {
			m.SpeedHistory = m.SpeedHistory[len(m.SpeedHistory)-SpeedHistoryLen:]
		}
		if m.notification != "" && time.Since(m.notificationAt) > NotificationTTL {
			m.notification = ""
		}
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case DashboardState:
			return m.updateDashboard(msg)
		case InputState:
			return m.updateInput(msg)
		}
	}

	// Propagate messages to progress bars
	for _, d := range m.downloads {
		newModel, cmd := d.progress.Update(msg)
		if p, ok := newModel.(progress.Model); ok {
			d.progress = p
		}
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m RootModel) updateDashboard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, Keys.Quit):
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, Keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, Keys.Down):
		if m.cursor < len(m.downloads)-1 {
			m.cursor++
		}

	case key.Matches(msg, Keys.Add):
		m.state = InputState
		m.focusedInput = 0
		for i := range m.inputs {
			m.inputs[i].SetValue("")
			m.inputs[i].Blur()
		}
		m.inputs[0].Focus()

	case key.Matches(msg, Keys.Pause):
		if d := m.GetSelectedDownload(); d != nil && d.Status == "downloading" {
			return m, m.serviceCall(m.Service.Pause, d.ID)
		}

	case key.Matches(msg, Keys.Resume):
		if d := m.GetSelectedDownload(); d != nil && d.Status == "paused" {
			return m, m.serviceCall(m.Service.Resume, d.ID)
		}

	case key.Matches(msg, Keys.Cancel):
		if d := m.GetSelectedDownload(); d != nil && !d.done() {
			return m, m.serviceCall(m.Service.Delete, d.ID)
		}
	}
	return m, nil
}

func (m RootModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, InputKeys.Back):
		m.state = DashboardState
		return m, nil

	case key.Matches(msg, InputKeys.Submit):
		// Navigate through inputs: URL -> Path -> Filename -> Start
		if m.focusedInput < len(m.inputs)-1 {
			m.focusInput(m.focusedInput + 1)
			return m, nil
		}
		url := strings.TrimSpace(m.inputs[0].Value())
		if url == "" {
			m.focusInput(0)
			return m, nil
		}
		path := strings.TrimSpace(m.inputs[1].Value())
		filename := strings.TrimSpace(m.inputs[2].Value())
		m.state = DashboardState
		return m, m.addCmd(url, path, filename)

	case key.Matches(msg, InputKeys.Next):
		if m.focusedInput < len(m.inputs)-1 {
			m.focusInput(m.focusedInput + 1)
		}
		return m, nil

	case key.Matches(msg, InputKeys.Prev):
		if m.focusedInput > 0 {
			m.focusInput(m.focusedInput - 1)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focusedInput], cmd = m.inputs[m.focusedInput].Update(msg)
	return m, cmd
}

func (m *RootModel) focusInput(i int) {
	m.inputs[m.focusedInput].Blur()
	m.focusedInput = i
	m.inputs[i].Focus()
}

func (m RootModel) serviceCall(fn func(string) error, id string) tea.Cmd {
	if m.Service == nil {
		return nil
	}
	return func() tea.Msg {
		if err := fn(id); err != nil {
			return actionErrMsg{err: err}
		}
		return nil
	}
}

func (m RootModel) addCmd(url, path, filename string) tea.Cmd {
	if m.Service == nil {
		return nil
	}
	service := m.Service
	return func() tea.Msg {
		id, err := service.Add(url, path, filename, nil)
		if err != nil {
			return actionErrMsg{err: err}
		}
		return addedMsg{id: id}
	}
}

func (m *RootModel) remove(id string) {
	for i, d := range m.downloads {
		if d.ID == id {
			m.downloads = append(m.downloads[:i], m.downloads[i+1:]...)
			break
		}
	}
	if m.cursor >= len(m.downloads) && m.cursor > 0 {
		m.cursor = len(m.downloads) - 1
	}
}

func (m *RootModel) notify(text string) {
	m.notification = text
	m.notificationAt = time.Now()
}

// calcTotalSpeed returns the combined speed of running downloads in MB/s.
func (m RootModel) calcTotalSpeed() float64 {
	total := 0.0
	for _, d := range m.downloads {
		if d.Status != "downloading" {
			continue
		}
		total += d.Speed
	}
	return total / Megabyte
}
