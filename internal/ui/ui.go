package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/usher/internal/models"
	"github.com/desertthunder/usher/internal/repositories"
	"github.com/desertthunder/usher/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	InvitationListView ViewState = iota
	DetailView
	ConfirmView
	RedeemView
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	engine       tasks.Orchestrator
	invitations  *repositories.InvitationRepository
	servers      *repositories.MediaServerRepository
	username     string
	email        string
	width        int
	height       int
	inviteList   list.Model
	selected     *models.Invitation
	targets      []*models.MediaServer
	progressChan chan tasks.ProgressUpdate
	done         chan redeemCompleteMsg
	progress     tasks.ProgressUpdate
	result       *tasks.RedeemResult
	err          error
	help         help.Model
	keys         keyMap
}

type invitationsFetchedMsg struct {
	invitations []*models.Invitation
	err         error
}

type detailFetchedMsg struct {
	servers []*models.MediaServer
	err     error
}

type progressUpdateMsg tasks.ProgressUpdate

type redeemCompleteMsg struct {
	result *tasks.RedeemResult
	err    error
}

// NewModel creates a new TUI model with the provided dependencies. The
// username and email identify who the redemption is for; they come from the
// tui command's flags.
func NewModel(ctx context.Context, engine tasks.Orchestrator, invitations *repositories.InvitationRepository, servers *repositories.MediaServerRepository, username, email string) *Model {
	return &Model{
		ctx:         ctx,
		view:        InvitationListView,
		engine:      engine,
		invitations: invitations,
		servers:     servers,
		username:    username,
		email:       email,
		help:        help.New(),
		keys:        newKeyMap(),
	}
}

// Init initializes the TUI by fetching redeemable invitations.
func (m *Model) Init() tea.Cmd {
	return m.fetchInvitations()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.inviteList.Width() == 0 {
			m.inviteList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case InvitationListView:
			return m.handleInvitationListKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case invitationsFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		items := make([]list.Item, len(msg.invitations))
		for i, invitation := range msg.invitations {
			items[i] = invitationItem{invitation: invitation}
		}
		m.inviteList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.inviteList.Title = "Invitations"
		m.inviteList.SetSize(m.width-4, m.height-8)
		return m, nil

	case detailFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.view = InvitationListView
			return m, nil
		}
		m.targets = msg.servers
		m.view = DetailView
		return m, nil

	case progressUpdateMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case redeemCompleteMsg:
		m.result = msg.result
		m.err = msg.err
		m.view = ResultView
		m.progressChan = nil
		return m, nil
	}

	return m.updateList(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case InvitationListView:
		return m.renderInvitationList()
	case DetailView:
		return m.renderDetail()
	case ConfirmView:
		return m.renderConfirm()
	case RedeemView:
		return m.renderRedeem()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleInvitationListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		selected := m.inviteList.SelectedItem()
		if selected != nil {
			if item, ok := selected.(invitationItem); ok {
				m.selected = item.invitation
				return m, m.fetchDetail(item.invitation)
			}
		}
	}

	var cmd tea.Cmd
	m.inviteList, cmd = m.inviteList.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = InvitationListView
		return m, nil
	case "enter":
		m.view = ConfirmView
		return m, nil
	}
	return m, nil
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "n":
		m.view = DetailView
		return m, nil
	case "y":
		m.view = RedeemView
		return m, m.startRedeem()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.view = InvitationListView
		m.selected = nil
		m.targets = nil
		m.result = nil
		m.err = nil
		return m, m.fetchInvitations()
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.view == InvitationListView {
		m.inviteList, cmd = m.inviteList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchInvitations() tea.Cmd {
	return func() tea.Msg {
		invitations, err := m.invitations.List(map[string]any{})
		return invitationsFetchedMsg{invitations: invitations, err: err}
	}
}

func (m *Model) fetchDetail(invitation *models.Invitation) tea.Cmd {
	return func() tea.Msg {
		servers := make([]*models.MediaServer, 0, len(invitation.ServerIDs()))
		for _, serverID := range invitation.ServerIDs() {
			server, err := m.servers.Get(serverID)
			if err != nil {
				return detailFetchedMsg{err: err}
			}
			servers = append(servers, server)
		}
		return detailFetchedMsg{servers: servers}
	}
}

func (m *Model) startRedeem() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	done := make(chan redeemCompleteMsg, 1)

	progressChan := m.progressChan
	go func() {
		result, err := m.engine.Redeem(m.ctx, progressChan, tasks.RedeemRequest{
			Code:     m.selected.Code(),
			Username: m.username,
			Email:    m.email,
		})
		done <- redeemCompleteMsg{result: result, err: err}
		close(progressChan)
	}()

	m.done = done
	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		if m.progressChan == nil {
			return redeemCompleteMsg{result: m.result, err: m.err}
		}

		update, ok := <-m.progressChan
		if !ok {
			return <-m.done
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderInvitationList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.inviteList.View(), helpView)
}

func (m *Model) renderDetail() string {
	title := styles.title.Render(fmt.Sprintf("Invitation '%s'", m.selected.Code()))

	var info strings.Builder
	uses := "unlimited"
	if max := m.selected.MaxUses(); max != nil {
		uses = fmt.Sprintf("%d/%d", m.selected.UseCount(), *max)
	}
	info.WriteString(fmt.Sprintf("\nUses: %s\n", uses))
	if days := m.selected.DurationDays(); days != nil {
		info.WriteString(fmt.Sprintf("Membership: %d days\n", *days))
	}

	info.WriteString("\nServers:\n")
	for _, server := range m.targets {
		item := serverItem{server: server}
		info.WriteString(fmt.Sprintf("  • %s (%s)\n", item.Title(), server.ServerType()))
	}

	if libraryIDs := m.selected.LibraryIDs(); len(libraryIDs) > 0 {
		info.WriteString(fmt.Sprintf("\nLibraries: %s\n", strings.Join(libraryIDs, ", ")))
	} else {
		info.WriteString("\nLibraries: all\n")
	}

	redeemKey := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "redeem"))
	helpKeys := []key.Binding{redeemKey, m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info.String(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Redeem '%s' as %s?", m.selected.Code(), m.username))
	info := fmt.Sprintf("\nAccounts will be created on %d servers.\n", len(m.targets))

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderRedeem() string {
	title := styles.title.Render("Redeeming Invitation")

	var phase string
	switch m.progress.Phase {
	case tasks.Validating:
		phase = "Validating invitation..."
	case tasks.Provisioning:
		phase = fmt.Sprintf("Provisioning accounts (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.Finalizing:
		phase = "Recording memberships..."
	case tasks.RollingBack:
		phase = styles.warn.Render(fmt.Sprintf("Rolling back (%d/%d)", m.progress.Step, m.progress.Total))
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Redemption failed: %v\n\nPress r to start over, q to quit", m.err))
	}

	if m.result == nil {
		return styles.err.Render("No result available\n\nPress r to start over, q to quit")
	}

	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	if !m.result.Success {
		title := styles.err.Render("✗ Redemption Failed")
		info := fmt.Sprintf("\nServer: %s\nReason: %s\n", m.result.FailedServer, m.result.Message)

		var rollback string
		if len(m.result.RollbackErrors) > 0 {
			rollback = fmt.Sprintf("\n%s", styles.warn.Render("Some accounts could not be removed:"))
			for _, rollbackErr := range m.result.RollbackErrors {
				rollback += fmt.Sprintf("\n  • %s", rollbackErr)
			}
			rollback += "\n"
		}

		return fmt.Sprintf("%s\n%s%s\n%s", title, info, rollback, helpView)
	}

	title := styles.ok.Render("✓ Redemption Complete!")
	var info strings.Builder
	info.WriteString(fmt.Sprintf("\nIdentity: %s\nAccounts created: %d\n", m.result.IdentityID, len(m.result.UsersCreated)))
	for _, user := range m.result.UsersCreated {
		info.WriteString(fmt.Sprintf("  • %s (%s)\n", user.Username, user.ExternalID))
	}

	return fmt.Sprintf("%s\n%s\n%s", title, info.String(), helpView)
}
