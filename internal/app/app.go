package app

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"

	"github.com/nhle/kanban/internal/board"
	"github.com/nhle/kanban/internal/gateway"
	"github.com/nhle/kanban/internal/keys"
	"github.com/nhle/kanban/internal/model"
	appsync "github.com/nhle/kanban/internal/sync"
	"github.com/nhle/kanban/internal/ui"
	"github.com/nhle/kanban/internal/ui/boardview"
	"github.com/nhle/kanban/internal/ui/createform"
	"github.com/nhle/kanban/internal/ui/detail"
	"github.com/nhle/kanban/internal/ui/filterbar"
	helpview "github.com/nhle/kanban/internal/ui/help"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewBoard ViewState = iota
	ViewDetail
	ViewCreate
	ViewHelp
)

type connState int

const (
	connConnecting connState = iota
	connLive
	connOffline
)

// Config wires the root model to a backend.
type Config struct {
	Gateway         gateway.Gateway
	Backend         string
	TasksCollection string
	UsersCollection string
	WriteTimeout    time.Duration
	Logger          log.FieldLogger
}

// Model is the root Bubble Tea model. It owns the board, the live query and
// the active selection, and routes messages between the views.
type Model struct {
	currentView ViewState
	layout      ui.Layout
	keys        *keys.KeyMap
	backend     string
	logger      log.FieldLogger

	board *board.Board
	live  *appsync.LiveQuery
	sel   *board.Selection
	users []model.User

	boardView  boardview.Model
	filterBar  filterbar.Model
	detail     detail.Model
	createForm createform.Model
	helpView   helpview.Model

	conn    connState
	errText string
	ready   bool
}

// New creates the root model. Nothing touches the backend until Init.
func New(cfg Config) Model {
	if cfg.Logger == nil {
		cfg.Logger = log.StandardLogger()
	}
	if cfg.TasksCollection == "" {
		cfg.TasksCollection = "tasks"
	}
	km := keys.DefaultKeyMap()
	b := board.New(cfg.Gateway, board.Config{
		TasksCollection: cfg.TasksCollection,
		UsersCollection: cfg.UsersCollection,
		WriteTimeout:    cfg.WriteTimeout,
		Logger:          cfg.Logger,
	})
	sel := &board.Selection{}

	return Model{
		currentView: ViewBoard,
		keys:        km,
		backend:     cfg.Backend,
		logger:      cfg.Logger.WithField("component", "app"),
		board:       b,
		live:        appsync.NewLiveQuery(cfg.Gateway, cfg.TasksCollection, model.FieldOrder, cfg.Logger),
		sel:         sel,
		boardView:   boardview.New(km, b.Store(), 80, 24),
		filterBar:   filterbar.New(km),
		detail:      detail.New(sel, km, 80, 24),
		createForm:  createform.New(80, 24),
		helpView:    helpview.New(km, 80, 24),
	}
}

// Board exposes the board for the CLI and tests.
func (m Model) Board() *board.Board {
	return m.board
}

// CurrentView returns the active view.
func (m Model) CurrentView() ViewState {
	return m.currentView
}

// Selection returns the active selection.
func (m Model) Selection() *board.Selection {
	return m.sel
}

// Filters returns the active filters.
func (m Model) Filters() model.FilterSet {
	return m.filterBar.Filters()
}

// StatusError returns the error shown in the status bar, if any.
func (m Model) StatusError() string {
	return m.errText
}

// Init subscribes to the task collection and loads the users.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.live.Start(),
		m.board.LoadUsers(),
	)
}

// Shutdown releases the live query. It is safe to call more than once.
func (m Model) Shutdown() {
	m.live.Stop()
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.boardView.SetSize(w, h)
		m.filterBar.SetWidth(w)
		m.detail.SetSize(w, h)
		m.createForm.SetSize(w, h)
		m.helpView.SetSize(w, h)
		return m.updateActiveView(msg)

	case appsync.SnapshotMsg:
		m.board.Store().Replace(msg.Tasks)
		m.conn = connLive
		m.sel.Sync(m.board.Store())
		categories := board.Categories(m.board.Store().Tasks())
		m.filterBar.SetCategories(categories)
		m.createForm.SetOptions(m.users, categories)
		return m, tea.Batch(m.boardView.Refresh(), m.live.WaitForNextSnapshot())

	case appsync.SubscriptionErrorMsg:
		m.conn = connOffline
		m.errText = msg.Err.Error()
		m.logger.WithError(msg.Err).Warn("live query reported an error")
		return m, m.live.WaitForNextSnapshot()

	case board.UsersLoadedMsg:
		if msg.Err != nil {
			m.errText = msg.Err.Error()
			return m, nil
		}
		m.users = msg.Users
		m.boardView.SetUsers(msg.Users)
		m.filterBar.SetUsers(msg.Users)
		m.detail.SetUsers(msg.Users)
		m.createForm.SetOptions(msg.Users, board.Categories(m.board.Store().Tasks()))
		return m, nil

	case boardview.DropMsg:
		cmd := m.board.Move(msg.Result)
		m.boardView.Follow(msg.Result.TaskID)
		return m, cmd

	case board.WriteSettledMsg:
		m.board.HandleSettled(msg)
		if msg.Err != nil {
			m.errText = msg.Err.Error()
		}
		m.sel.Sync(m.board.Store())
		return m, m.boardView.Refresh()

	case boardview.OpenTaskMsg:
		m.sel.Open(msg.Task)
		m.currentView = ViewDetail
		return m, m.detail.Start()

	case boardview.NewTaskMsg:
		m.currentView = ViewCreate
		m.createForm.SetOptions(m.users, board.Categories(m.board.Store().Tasks()))
		return m, m.createForm.Start()

	case createform.CreateRequestMsg:
		t := m.board.NewTask(msg.Title, msg.Description, msg.Type, msg.Priority, msg.Category, msg.AssigneeID)
		return m, m.board.Create(t)

	case createform.CancelMsg:
		m.currentView = ViewBoard
		return m, nil

	case board.TaskCreatedMsg:
		cmd := m.createForm.Done(msg.Err)
		if msg.Err != nil {
			m.errText = msg.Err.Error()
			return m, cmd
		}
		if m.currentView == ViewCreate {
			m.currentView = ViewBoard
		}
		return m, cmd

	case detail.SaveRequestMsg:
		return m, m.board.Update(msg.ID, msg.Patch)

	case detail.DeleteRequestMsg:
		return m, m.board.Delete(msg.ID)

	case board.TaskUpdatedMsg:
		return m.closeDetailAfter(msg.ID, msg.Err)

	case board.TaskDeletedMsg:
		return m.closeDetailAfter(msg.ID, msg.Err)

	case detail.BackMsg:
		m.sel.Close()
		m.currentView = ViewBoard
		return m, nil

	case tea.KeyMsg:
		m.errText = ""
		if msg.String() == "ctrl+c" {
			m.live.Stop()
			return m, tea.Quit
		}

		switch m.currentView {
		case ViewBoard:
			if m.boardView.Grabbing() {
				break
			}
			switch {
			case key.Matches(msg, m.keys.Quit):
				m.live.Stop()
				return m, tea.Quit
			case key.Matches(msg, m.keys.Help):
				m.currentView = ViewHelp
				return m, nil
			}
			var changed bool
			if m.filterBar, changed = m.filterBar.Update(msg); changed {
				m.boardView.SetFilters(m.filterBar.Filters())
				return m, nil
			}
		case ViewCreate:
			if key.Matches(msg, m.keys.Cancel) && !m.createForm.Saving() {
				m.currentView = ViewBoard
				return m, nil
			}
		case ViewHelp:
			if key.Matches(msg, m.keys.Help) || key.Matches(msg, m.keys.Cancel) {
				m.currentView = ViewBoard
				return m, nil
			}
			if key.Matches(msg, m.keys.Quit) {
				m.live.Stop()
				return m, tea.Quit
			}
		}
	}

	return m.updateActiveView(msg)
}

// closeDetailAfter ends the detail view once its save or delete succeeded.
func (m Model) closeDetailAfter(id string, err error) (tea.Model, tea.Cmd) {
	if m.sel.ID() != id {
		if err != nil {
			m.errText = err.Error()
		}
		return m, nil
	}
	if err != nil {
		m.errText = err.Error()
		return m, m.detail.Done(err)
	}
	m.sel.Close()
	if m.currentView == ViewDetail {
		m.currentView = ViewBoard
	}
	return m, nil
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewBoard:
		m.boardView, cmd = m.boardView.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewCreate:
		m.createForm, cmd = m.createForm.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := "Kanban"
	if m.board.Store().Loaded() {
		title = fmt.Sprintf("Kanban [%d tasks]", m.board.Store().Len())
	}
	header := m.layout.RenderHeader(title, m.connStatus())
	statusBar := m.layout.RenderStatusBar(m.keyHints(), m.errText)

	return m.layout.RenderWithFrame(header, m.filterBar.View(), m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewBoard:
		return m.boardView.View()
	case ViewDetail:
		return m.detail.View()
	case ViewCreate:
		return m.createForm.View()
	case ViewHelp:
		return m.helpView.View()
	default:
		return ""
	}
}

func (m Model) connStatus() string {
	var s string
	switch m.conn {
	case connLive:
		s = "● live"
	case connOffline:
		s = "○ offline"
	default:
		s = "connecting..."
	}
	if m.backend != "" {
		s = m.backend + " " + s
	}
	return s
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewDetail:
		return "tab next field | ctrl+s save | ctrl+d delete | esc close"
	case ViewCreate:
		return "enter next/submit | esc cancel"
	default:
		if m.boardView.Grabbing() {
			return "h/l column | j/k position | space drop | esc cancel"
		}
		return m.helpView.ShortView()
	}
}
