package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasm-gasmeter/gasmeter"
	"github.com/wippyai/wasm-gasmeter/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	pointsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))
)

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

// interactiveModel drives a live dashboard over a single gas-metered
// instance: it loads the module once, then lets the user call exports
// repeatedly while watching the points budget drain.
type interactiveModel struct {
	err      error
	rt       *runtime.Runtime
	module   *runtime.Module
	instance *runtime.Instance
	bar      progress.Model
	filename string
	result   string
	funcs    []string
	argsIn   textinput.Model
	selected int
	limit    int64
	state    modelState
}

func newInteractiveModel(filename string, limit int64) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "comma-separated uint64 args, e.g. 3,4"
	ti.Prompt = "args: "
	ti.Width = 48

	return &interactiveModel{
		filename: filename,
		limit:    limit,
		state:    stateSelectFunc,
		argsIn:   ti,
		bar:      progress.New(progress.WithDefaultGradient()),
	}
}

type loadedMsg struct {
	err    error
	rt     *runtime.Runtime
	module *runtime.Module
	funcs  []string
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadModule
}

func (m *interactiveModel) loadModule() tea.Msg {
	ctx := context.Background()

	data, err := os.ReadFile(m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}

	rt, err := runtime.New(ctx)
	if err != nil {
		return loadedMsg{err: err}
	}

	mod, err := rt.LoadModule(ctx, data)
	if err != nil {
		rt.Close(ctx)
		return loadedMsg{err: err}
	}

	var funcs []string
	for _, e := range mod.Exports() {
		if strings.HasPrefix(e.Name, "gasmeter_") {
			continue
		}
		funcs = append(funcs, e.Name)
	}
	sort.Strings(funcs)

	return loadedMsg{funcs: funcs, rt: rt, module: mod}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			ctx := context.Background()
			if m.instance != nil {
				m.instance.Close(ctx)
			}
			if m.rt != nil {
				m.rt.Close(ctx)
			}
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.funcs) == 0 {
					return m, nil
				}
				m.argsIn.SetValue("")
				m.argsIn.Focus()
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.callFunction

			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectFunc
			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.funcs = msg.funcs
		m.rt = msg.rt
		m.module = msg.module

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmd tea.Cmd
		m.argsIn, cmd = m.argsIn.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *interactiveModel) callFunction() tea.Msg {
	ctx := context.Background()

	if m.instance == nil {
		if m.module == nil {
			return callResultMsg{err: fmt.Errorf("module not loaded")}
		}
		inst, err := m.module.Instantiate(ctx, m.limit)
		if err != nil {
			return callResultMsg{err: err}
		}
		m.instance = inst
	}

	args, err := parseArgs(m.argsIn.Value())
	if err != nil {
		return callResultMsg{err: err}
	}

	name := m.funcs[m.selected]
	results, err := m.instance.Call(ctx, name, args...)
	if err != nil {
		var limitErr gasmeter.ExecutionLimitExceededError
		if errors.As(err, &limitErr) {
			return callResultMsg{err: fmt.Errorf("%s: points budget exhausted", name)}
		}
		return callResultMsg{err: err}
	}

	return callResultMsg{result: fmt.Sprintf("%v", results)}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if len(m.funcs) == 0 && m.module == nil {
		return "Loading module..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Gas Meter"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	if m.instance != nil {
		b.WriteString(m.renderPoints())
		b.WriteString("\n\n")
	}

	switch m.state {
	case stateSelectFunc:
		if len(m.funcs) == 0 {
			b.WriteString("(no exported functions besides the metering globals)\n")
			break
		}
		b.WriteString("Select a function to call:\n\n")
		for i, name := range m.funcs {
			cursor := "  "
			if i == m.selected {
				cursor = "> "
				b.WriteString(selectedStyle.Render(cursor + funcStyle.Render(name)))
			} else {
				b.WriteString(cursor + funcStyle.Render(name))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		name := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(name)))
		b.WriteString(m.argsIn.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter call • esc back"))

	case stateShowResult:
		name := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) renderPoints() string {
	used := m.instance.PointsUsed()
	limit := m.instance.PointsLimit()

	ratio := 0.0
	if limit > 0 {
		ratio = float64(used) / float64(limit)
		if ratio > 1 {
			ratio = 1
		}
	}

	label := pointsStyle.Render(fmt.Sprintf("points %d / %d", used, limit))
	return label + "\n" + m.bar.ViewAs(ratio)
}

func runInteractive(filename string, limit int64) error {
	p := tea.NewProgram(newInteractiveModel(filename, limit), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
