// Package tui provides a Bubble Tea terminal user interface for gogdl.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cmykflutterby/GogDownloader/internal/auth"
	"github.com/cmykflutterby/GogDownloader/internal/catalog"
	"github.com/cmykflutterby/GogDownloader/internal/config"
	"github.com/cmykflutterby/GogDownloader/internal/download"
	format "github.com/cmykflutterby/GogDownloader/internal/progress"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#B388FF")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)
)

// State represents the current UI state.
type State int

const (
	StateLoading State = iota
	StateReady
	StateDownloading
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   download.ProgressLevel
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state    State
	spinner  spinner.Model
	progress progress.Model
	settings *config.Settings
	logs     []LogEntry
	err      error

	// Run context
	ctx    context.Context
	cancel context.CancelFunc

	// Catalog summary shown on the ready screen
	catalogGames int
	catalogFiles int
	catalogBytes int64

	manager *download.Manager
	db      *catalog.DB
	events  chan download.ProgressEvent

	// Run progress
	completedFiles int32
	skippedFiles   int32
	failedFiles    int32
	totalFiles     int32
	receivedBytes  int64

	// Options toggled on the ready screen
	dryRun  bool
	verbose bool

	width  int
	height int
}

// NewModel creates a new TUI model.
func NewModel(settings *config.Settings) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#B388FF"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:    StateLoading,
		spinner:  sp,
		progress: prog,
		settings: settings,
		logs:     make([]LogEntry, 0),
		verbose:  settings.Verbose,
		dryRun:   settings.DryRun,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.openCatalog(), m.spinner.Tick)
}

// Message types
type (
	// ProgressMsg carries one orchestrator event into the log pane.
	ProgressMsg struct {
		Event download.ProgressEvent
	}

	// CatalogMsg is sent when the catalog has been opened.
	CatalogMsg struct {
		DB    *catalog.DB
		Games int
		Files int
		Bytes int64
		Err   error
	}

	// DownloadDoneMsg is sent when the run finishes.
	DownloadDoneMsg struct {
		Err error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 20
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		if m.progress.Width < 20 {
			m.progress.Width = 20
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			m.closeDB()
			return m, tea.Quit

		case "esc":
			if m.state == StateLoading || m.state == StateReady {
				m.closeDB()
				return m, tea.Quit
			}
			if m.state == StateDownloading {
				m.cancel()
				m.state = StateError
				m.err = fmt.Errorf("cancelled by user")
			}

		case "enter":
			if m.state == StateReady {
				m.settings.DryRun = m.dryRun
				m.state = StateDownloading
				return m, tea.Batch(m.startDownload(), m.waitEvent(), m.tickProgress())
			}

		case "d":
			if m.state == StateReady {
				m.dryRun = !m.dryRun
			}

		case "v":
			if m.state == StateReady {
				m.verbose = !m.verbose
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				m.closeDB()
				return m, tea.Quit
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case CatalogMsg:
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
		} else {
			m.db = msg.DB
			m.catalogGames = msg.Games
			m.catalogFiles = msg.Files
			m.catalogBytes = msg.Bytes
			m.state = StateReady
		}

	case ProgressMsg:
		if msg.Event.Level != download.LevelVerbose || m.verbose {
			m.logs = append(m.logs, LogEntry{
				Message: msg.Event.Message,
				Level:   msg.Event.Level,
			})
			// Keep only last 10 logs
			if len(m.logs) > 10 {
				m.logs = m.logs[len(m.logs)-10:]
			}
		}
		cmds = append(cmds, m.waitEvent())

	case DownloadDoneMsg:
		m.syncProgress()
		if msg.Err != nil && m.ctx.Err() == nil {
			m.state = StateError
			m.err = msg.Err
		} else if m.ctx.Err() != nil {
			m.state = StateError
			m.err = fmt.Errorf("cancelled by user")
		} else {
			m.state = StateComplete
		}

	case TickMsg:
		if m.manager != nil && m.state == StateDownloading {
			m.syncProgress()

			done := m.completedFiles + m.skippedFiles + m.failedFiles
			percent := format.Percent(int64(done), int64(m.totalFiles)) / 100
			cmds = append(cmds, m.progress.SetPercent(percent), m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) syncProgress() {
	if m.manager == nil {
		return
	}
	received, completed, skipped, failed, total := m.manager.GetProgress()
	m.receivedBytes = received
	m.completedFiles = completed
	m.skippedFiles = skipped
	m.failedFiles = failed
	m.totalFiles = total
}

func (m *Model) closeDB() {
	if m.db != nil {
		m.db.Close()
	}
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// waitEvent delivers the next orchestrator event, if any.
func (m Model) waitEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-m.events
		if !ok {
			return nil
		}
		return ProgressMsg{Event: event}
	}
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("GOG Downloader"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Mirror your library to local disk"))
	b.WriteString("\n\n")

	switch m.state {
	case StateLoading:
		b.WriteString(m.viewLoading())
	case StateReady:
		b.WriteString(m.viewReady())
	case StateDownloading:
		b.WriteString(m.viewDownloading())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) viewLoading() string {
	return m.spinner.View() + " " + subtitleStyle.Render("Opening catalog...") + "\n"
}

func (m Model) viewReady() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render(fmt.Sprintf(
		"Catalog: %d games, %d files, %s",
		m.catalogGames, m.catalogFiles, format.FormatBytes(m.catalogBytes),
	)))
	b.WriteString("\n\n")

	dryRunCheck := "[ ]"
	if m.dryRun {
		dryRunCheck = "[x]"
	}
	verboseCheck := "[ ]"
	if m.verbose {
		verboseCheck = "[x]"
	}

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Dry run (d)\n", dryRunCheck))
	b.WriteString(fmt.Sprintf("  %s Verbose output (v)\n", verboseCheck))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Download path: %s", m.settings.DownloadsPath)))
	if m.settings.Language != "" {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("Language: %s", m.settings.Language)))
	}
	if m.settings.Platform != "" {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("Platform: %s", m.settings.Platform)))
	}
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	done := m.completedFiles + m.skippedFiles + m.failedFiles
	percent := format.Percent(int64(done), int64(m.totalFiles)) / 100
	b.WriteString(m.progress.ViewAs(percent))
	b.WriteString("\n")

	b.WriteString(infoStyle.Render(fmt.Sprintf(
		"Files: %d/%d | Skipped: %d | Failed: %d | Received: %s",
		m.completedFiles,
		m.totalFiles,
		m.skippedFiles,
		m.failedFiles,
		format.FormatBytes(m.receivedBytes),
	)))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	return boxStyle.Render(fmt.Sprintf(
		"Download Complete!\n\n"+
			"Downloaded: %d\n"+
			"Skipped: %d\n"+
			"Failed: %d\n"+
			"Received: %s",
		m.completedFiles,
		m.skippedFiles,
		m.failedFiles,
		format.FormatBytes(m.receivedBytes),
	))
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "*"
		switch log.Level {
		case download.LevelError:
			style = errorStyle
			prefix = "x"
		case download.LevelWarning:
			style = warningStyle
			prefix = "!"
		case download.LevelSuccess:
			style = successStyle
			prefix = "+"
		case download.LevelInfo:
			style = infoStyle
			prefix = ">"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateLoading:
		return "esc: quit"
	case StateReady:
		return "enter: start * d: dry run * v: verbose * esc: quit"
	case StateDownloading:
		return "esc: cancel"
	case StateComplete, StateError:
		return "q: quit"
	}
	return ""
}

// openCatalog opens the local database and reads its summary.
func (m *Model) openCatalog() tea.Cmd {
	return func() tea.Msg {
		db, err := catalog.Open(m.settings.DatabasePath)
		if err != nil {
			return CatalogMsg{Err: err}
		}
		games, files, bytes, err := db.Stats(m.ctx)
		if err != nil {
			db.Close()
			return CatalogMsg{Err: err}
		}
		if games == 0 {
			db.Close()
			return CatalogMsg{Err: fmt.Errorf("catalog is empty: run \"gogdl refresh\" first")}
		}
		return CatalogMsg{DB: db, Games: games, Files: files, Bytes: bytes}
	}
}

// startDownload builds the manager and runs it in the background,
// streaming its events through the model's channel.
func (m *Model) startDownload() tea.Cmd {
	events := make(chan download.ProgressEvent, 64)
	m.events = events

	session := auth.NewSession(m.settings.TokenPath)
	manager, err := download.NewManager(m.settings, session, func(event download.ProgressEvent) {
		select {
		case events <- event:
		default: // UI is behind; drop rather than stall the transfer
		}
	})
	if err != nil {
		m.events = nil
		close(events)
		return func() tea.Msg { return DownloadDoneMsg{Err: err} }
	}
	m.manager = manager

	ctx := m.ctx
	db := m.db
	return func() tea.Msg {
		err := manager.Run(ctx, db)
		close(events)
		return DownloadDoneMsg{Err: err}
	}
}

// Run starts the TUI application.
func Run(settings *config.Settings) error {
	p := tea.NewProgram(NewModel(settings), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
