package prompt

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type item string

func (i item) Title() string       { return string(i) }
func (i item) Description() string { return "" }
func (i item) FilterValue() string { return string(i) }

type choiceModel struct {
	list      list.Model
	chosen    string
	cancelled bool
}

func newChoiceModel(title string, options []string) choiceModel {
	items := make([]list.Item, len(options))
	for i, o := range options {
		items[i] = item(o)
	}
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	delegate.SetSpacing(0)

	height := len(options) + 6
	if height > 20 {
		height = 20
	}
	l := list.New(items, delegate, 60, height)
	l.Title = title
	l.Styles.Title = titleStyle
	l.SetShowStatusBar(false)
	return choiceModel{list: l}
}

func (m choiceModel) Init() tea.Cmd { return nil }

func (m choiceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width)
		return m, nil
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "enter":
			if it, ok := m.list.SelectedItem().(item); ok {
				m.chosen = string(it)
				return m, tea.Quit
			}
		case "esc", "ctrl+c":
			m.cancelled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m choiceModel) View() string {
	if m.chosen != "" || m.cancelled {
		return ""
	}
	return m.list.View()
}

type inputModel struct {
	label     string
	input     textinput.Model
	done      bool
	cancelled bool
}

func newInputModel(label, initial string, secret bool) inputModel {
	ti := textinput.New()
	ti.SetValue(initial)
	ti.CharLimit = 512
	ti.Width = 50
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '*'
	}
	ti.Focus()
	return inputModel{label: label, input: ti}
}

func (m inputModel) Init() tea.Cmd { return textinput.Blink }

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			m.done = true
			return m, tea.Quit
		case "esc", "ctrl+c":
			m.cancelled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	return titleStyle.Render(m.label+"?") + "\n" + m.input.View() + "\n" + hintStyle.Render("enter to confirm, esc to skip") + "\n"
}
