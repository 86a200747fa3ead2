package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/setshare/internal/models"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	CollectionListView ViewState = iota
	SongListView
)

// CollectionLister provides the collections shown in the browser.
type CollectionLister interface {
	ListByOwner(ownerID string) ([]models.Collection, error)
}

// collectionsFetchedMsg carries the result of a collection fetch.
type collectionsFetchedMsg struct {
	collections []models.Collection
	err         error
}

// Model represents the TUI application state.
type Model struct {
	ctx            context.Context
	view           ViewState
	store          CollectionLister
	ownerID        string
	width          int
	height         int
	collectionList list.Model
	collections    []models.Collection
	songList       list.Model
	selected       *models.Collection
	err            error
	help           help.Model
	keys           keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, store CollectionLister, ownerID string) *Model {
	return &Model{
		ctx:     ctx,
		view:    CollectionListView,
		store:   store,
		ownerID: ownerID,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init initializes the TUI by fetching the caller's collections.
func (m *Model) Init() tea.Cmd {
	return m.fetchCollections()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.collectionList.Width() == 0 {
			m.collectionList.SetSize(msg.Width-4, msg.Height-8)
		}
		if m.songList.Width() == 0 {
			m.songList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case CollectionListView:
			return m.handleCollectionListKeys(msg)
		case SongListView:
			return m.handleSongListKeys(msg)
		}

	case collectionsFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.collections = msg.collections
		items := make([]list.Item, len(msg.collections))
		for i, c := range msg.collections {
			items[i] = collectionItem{collection: c}
		}
		m.collectionList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.collectionList.Title = "Your Sets"
		m.collectionList.SetSize(m.width-4, m.height-8)
		return m, nil
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case CollectionListView:
		return m.renderCollectionList()
	case SongListView:
		return m.renderSongList()
	default:
		return ""
	}
}

func (m *Model) handleCollectionListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		return m, m.fetchCollections()
	case "enter":
		selected := m.collectionList.SelectedItem()
		if selected != nil {
			if c, ok := selected.(collectionItem); ok {
				m.openCollection(c.collection)
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	m.collectionList, cmd = m.collectionList.Update(msg)
	return m, cmd
}

func (m *Model) handleSongListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = CollectionListView
		m.selected = nil
		return m, nil
	}

	var cmd tea.Cmd
	m.songList, cmd = m.songList.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case CollectionListView:
		m.collectionList, cmd = m.collectionList.Update(msg)
	case SongListView:
		m.songList, cmd = m.songList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchCollections() tea.Cmd {
	return func() tea.Msg {
		collections, err := m.store.ListByOwner(m.ownerID)
		return collectionsFetchedMsg{collections: collections, err: err}
	}
}

// openCollection switches to the song list for the given collection.
//
// Songs are embedded in the collection record so no fetch is needed.
func (m *Model) openCollection(collection models.Collection) {
	m.selected = &collection
	items := make([]list.Item, len(collection.Songs))
	for i, song := range collection.Songs {
		items[i] = songItem{song: song}
	}
	m.songList = list.New(items, list.NewDefaultDelegate(), 0, 0)
	m.songList.Title = fmt.Sprintf("Songs in '%s'", collection.Name)
	m.songList.SetSize(m.width-4, m.height-8)
	m.view = SongListView
}

func (m *Model) renderCollectionList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.refresh, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.collectionList.View(), helpView)
}

func (m *Model) renderSongList() string {
	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.songList.View(), helpView)
}
