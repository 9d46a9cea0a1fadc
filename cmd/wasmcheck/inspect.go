package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-gate/compat"
	"github.com/wippyai/wasm-gate/symbols"
)

type rowStatus int

const (
	statusSupported rowStatus = iota
	statusUnsupported
	statusRequired
	statusExtra
	statusMissing
	statusUnchecked
)

func (s rowStatus) String() string {
	switch s {
	case statusSupported:
		return "supported"
	case statusUnsupported:
		return "unsupported"
	case statusRequired:
		return "required"
	case statusExtra:
		return "extra"
	case statusMissing:
		return "missing"
	case statusUnchecked:
		return "not checked"
	default:
		return "?"
	}
}

func (s rowStatus) problem() bool {
	return s == statusUnsupported || s == statusMissing
}

type inspectRow struct {
	kind   symbols.Kind
	label  string
	status rowStatus
}

// inspectRows pairs each public symbol with its standing under contract.
// Only functions are checked; other extern kinds are listed as not checked.
// Required exports the module lacks are appended as missing rows.
func inspectRows(syms symbols.Symbols, contract compat.Contract) []inspectRow {
	supported := make(map[string]bool, len(contract.SupportedImports))
	for _, name := range contract.SupportedImports {
		supported[name] = true
	}
	required := make(map[string]bool, len(contract.RequiredExports))
	for _, name := range contract.RequiredExports {
		required[name] = true
	}

	var rows []inspectRow
	exported := make(map[string]bool)
	for _, s := range syms {
		if s.Extern != symbols.ExternFunc {
			var label string
			if s.Kind == symbols.KindImport {
				label = fmt.Sprintf("%s.%s (%s)", s.Module, s.Name, s.Extern)
			} else {
				label = fmt.Sprintf("%s (%s)", s.Name, s.Extern)
			}
			rows = append(rows, inspectRow{kind: s.Kind, label: label, status: statusUnchecked})
			continue
		}
		switch s.Kind {
		case symbols.KindImport:
			st := statusUnsupported
			if supported[s.Name] {
				st = statusSupported
			}
			rows = append(rows, inspectRow{kind: s.Kind, label: fmt.Sprintf("%s.%s (%s)", s.Module, s.Name, s.Extern), status: st})
		case symbols.KindExport:
			exported[s.Name] = true
			st := statusExtra
			if required[s.Name] {
				st = statusRequired
			}
			rows = append(rows, inspectRow{kind: s.Kind, label: fmt.Sprintf("%s (%s)", s.Name, s.Extern), status: st})
		}
	}
	for _, name := range contract.RequiredExports {
		if !exported[name] {
			rows = append(rows, inspectRow{kind: symbols.KindExport, label: name, status: statusMissing})
		}
	}
	return rows
}

type inspectKeys struct {
	Up       key.Binding
	Down     key.Binding
	Problems key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func (k inspectKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Problems, k.Help, k.Quit}
}

func (k inspectKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down}, {k.Problems, k.Help, k.Quit}}
}

var defaultInspectKeys = inspectKeys{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Problems: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "problems only")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
}

type inspectModel struct {
	filename     string
	contract     string
	verdict      error
	rows         []inspectRow
	selected     int
	problemsOnly bool
	keys         inspectKeys
	help         help.Model
	styles       styles
}

func newInspectModel(filename string, checker *compat.Checker, syms symbols.Symbols, st styles) *inspectModel {
	return &inspectModel{
		filename: filename,
		contract: checker.Version(),
		verdict:  checker.CheckSymbols(syms),
		rows:     inspectRows(syms, checker.Contract()),
		keys:     defaultInspectKeys,
		help:     help.New(),
		styles:   st,
	}
}

func (m *inspectModel) visible() []inspectRow {
	if !m.problemsOnly {
		return m.rows
	}
	var rows []inspectRow
	for _, r := range m.rows {
		if r.status.problem() {
			rows = append(rows, r)
		}
	}
	return rows
}

func (m *inspectModel) Init() tea.Cmd {
	return nil
}

func (m *inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.selected > 0 {
				m.selected--
			}
		case key.Matches(msg, m.keys.Down):
			if m.selected < len(m.visible())-1 {
				m.selected++
			}
		case key.Matches(msg, m.keys.Problems):
			m.problemsOnly = !m.problemsOnly
			m.selected = 0
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
	}
	return m, nil
}

func (m *inspectModel) View() string {
	var b strings.Builder

	b.WriteString(m.styles.title.Render(fmt.Sprintf("%s  contract %s", m.filename, m.contract)))
	b.WriteString("\n\n")

	if m.verdict == nil {
		b.WriteString(m.styles.pass.Render("PASS"))
	} else {
		b.WriteString(m.styles.fail.Render("FAIL " + m.verdict.Error()))
	}
	b.WriteString("\n\n")

	rows := m.visible()
	if len(rows) == 0 {
		b.WriteString(m.styles.dim.Render("  no symbols"))
		b.WriteString("\n")
	}
	for i, r := range rows {
		cursor := "  "
		if i == m.selected {
			cursor = "> "
		}
		status := r.status.String()
		switch {
		case r.status.problem():
			status = m.styles.fail.Render(status)
		case r.status == statusExtra, r.status == statusUnchecked:
			status = m.styles.dim.Render(status)
		default:
			status = m.styles.pass.Render(status)
		}
		fmt.Fprintf(&b, "%s%-7s %s  %s\n", cursor, r.kind, m.styles.name.Render(r.label), status)
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func newInspectCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Browse a module's imports and exports against the contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			syms, err := c.checker.Extract(code)
			if err != nil {
				return err
			}

			m := newInspectModel(args[0], c.checker, syms, c.styles)
			p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithOutput(cmd.OutOrStdout()))
			_, err = p.Run()
			return err
		},
	}
}
