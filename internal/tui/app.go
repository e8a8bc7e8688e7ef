// Package tui is a terminal front-end for the entry form.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tracker/internal/core"
	"tracker/internal/form"
)

type field int

const (
	fieldType field = iota
	fieldDescription
	fieldAmount
	fieldCount
)

// dateLine is the cursor row of the shared date input above the rows.
const dateLine = -1

// App is the bubbletea model. It renders from the form on every frame, so
// rows edited by a submission in flight show up on the next message.
type App struct {
	ctx    context.Context
	form   *form.Form
	row    int
	field  field
	status string
}

func New(ctx context.Context, f *form.Form) *App {
	a := &App{ctx: ctx, form: f}
	if f.Len() == 0 {
		a.row = dateLine
	}
	a.field = fieldDescription
	return a
}

type submittedMsg struct {
	outcome form.Outcome
	err     error
}

func (a *App) Init() tea.Cmd {
	return nil
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(m)
	case submittedMsg:
		// Failure details are logged by the form; the status line shows
		// the form's own message.
		a.status = ""
		if m.outcome == form.OutcomeSucceeded {
			a.row, a.field = 0, fieldDescription
		}
		a.clamp()
	}
	return a, nil
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "ctrl+c", "ctrl+q":
		return a, tea.Quit
	case "esc":
		a.form.Dismiss()
		a.status = ""
		return a, nil
	case "up":
		a.row--
		a.clamp()
		return a, nil
	case "down":
		a.row++
		a.clamp()
		return a, nil
	case "left":
		if a.field > fieldType {
			a.field--
		}
		return a, nil
	case "right", "enter":
		if a.field < fieldCount-1 {
			a.field++
		}
		return a, nil
	case "ctrl+n":
		a.form.Dismiss()
		a.form.AddRow()
		a.row = a.form.Len() - 1
		a.field = fieldDescription
		return a, nil
	case "ctrl+d":
		if r, ok := a.focused(); ok {
			a.form.Dismiss()
			r.Remove()
			a.clamp()
		}
		return a, nil
	case "tab":
		if r, ok := a.focused(); ok {
			r.SetFlowType(nextFlowType(r.Values().FlowType))
		}
		return a, nil
	case "ctrl+s":
		a.status = "sending..."
		return a, a.submitCmd()
	}

	switch m.Type {
	case tea.KeyBackspace, tea.KeyCtrlH, tea.KeyDelete:
		a.edit(func(s string) string {
			if s == "" {
				return s
			}
			r := []rune(s)
			return string(r[:len(r)-1])
		})
	case tea.KeySpace:
		a.edit(func(s string) string { return s + " " })
	case tea.KeyRunes:
		a.edit(func(s string) string { return s + string(m.Runes) })
	}
	return a, nil
}

// submitCmd runs the submission off the update loop; the form stays
// editable until submittedMsg arrives.
func (a *App) submitCmd() tea.Cmd {
	f, ctx := a.form, a.ctx
	return func() tea.Msg {
		outcome, err := f.Submit(ctx)
		return submittedMsg{outcome: outcome, err: err}
	}
}

func (a *App) focused() (*form.Row, bool) {
	if a.row == dateLine {
		return nil, false
	}
	return a.form.RowAt(a.row)
}

func (a *App) edit(fn func(string) string) {
	if a.row == dateLine {
		a.form.SetDate(fn(a.form.Date()))
		return
	}
	r, ok := a.focused()
	if !ok {
		return
	}
	v := r.Values()
	switch a.field {
	case fieldDescription:
		r.SetDescription(fn(v.Description))
	case fieldAmount:
		r.SetAmount(fn(v.Amount))
	}
}

func (a *App) clamp() {
	n := a.form.Len()
	if a.row >= n {
		a.row = n - 1
	}
	if a.row < dateLine {
		a.row = dateLine
	}
}

func nextFlowType(ft core.FlowType) core.FlowType {
	types := core.FlowTypes()
	for i, t := range types {
		if t == ft {
			return types[(i+1)%len(types)]
		}
	}
	return types[0]
}

// styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	focusStyle   = lipgloss.NewStyle().Reverse(true)
	mutedStyle   = lipgloss.NewStyle().Faint(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

func (a *App) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Daily Finance Entries"))
	b.WriteString("\n\n")

	b.WriteString("Date: ")
	b.WriteString(a.cell(dateLine, -1, a.form.Date(), "YYYY-MM-DD"))
	b.WriteString("\n\n")

	rows := a.form.Rows()
	if len(rows) == 0 {
		b.WriteString(mutedStyle.Render("No rows. Press ctrl+n to add one."))
		b.WriteString("\n")
	}
	for i, r := range rows {
		fmt.Fprintf(&b, "%2d. %s  %s  %s\n", i+1,
			a.cell(i, fieldType, r.FlowType.Label(), ""),
			a.cell(i, fieldDescription, r.Description, "description"),
			a.cell(i, fieldAmount, r.Amount, "amount"),
		)
	}

	b.WriteString("\n")
	b.WriteString(a.statusLine())
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("[↑↓←→] move  [tab] type  [ctrl+n] add  [ctrl+d] remove  [ctrl+s] submit  [esc] dismiss  [ctrl+c] quit"))
	return b.String()
}

func (a *App) cell(row int, f field, value, placeholder string) string {
	text := value
	if text == "" {
		text = mutedStyle.Render(placeholder)
	}
	if row == a.row && (row == dateLine || f == a.field) {
		return focusStyle.Render("[" + value + "]")
	}
	return text
}

func (a *App) statusLine() string {
	if n := a.form.InFlight(); n > 0 {
		return mutedStyle.Render(fmt.Sprintf("Submitting %d batch(es)...", n))
	}
	st := a.form.State()
	switch st.Status {
	case form.StatusSuccess:
		return successStyle.Render(st.Message)
	case form.StatusError:
		return errorStyle.Render(st.Message)
	}
	if a.status != "" {
		return mutedStyle.Render(a.status)
	}
	return ""
}
