// Package form implements the repeated-row entry form: an ordered list of
// editable entry rows and the submitter that sends the valid ones to the
// backend as a single batch.
//
// A Form is safe for use by multiple goroutines. Front-ends (htmx pages, the
// terminal UI, the CLI) own one Form per user and render from Rows and State.
package form

import (
	"log/slog"
	"slices"
	"sync"

	"tracker/internal/core"
)

// Values are the user-editable fields of a row.
type Values struct {
	FlowType    core.FlowType
	Description string
	Amount      string
}

// Row is one entry row. Its identity is the handle itself, never its
// position in the list.
type Row struct {
	form   *Form
	ref    string
	values Values
}

// RowView is a point-in-time copy of a row used for rendering.
type RowView struct {
	Ref string
	Values
}

// Form owns the row list, the shared date and the UI state.
type Form struct {
	mu       sync.Mutex
	date     string
	rows     []*Row
	state    UIState
	inFlight int

	sender BatchSender
	logger *slog.Logger
}

// Option configures a Form.
type Option func(*Form)

// WithDate sets the initial shared date (YYYY-MM-DD).
func WithDate(date string) Option {
	return func(f *Form) { f.date = date }
}

// WithLogger sets the logger used for diagnostic output.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Form) { f.logger = logger }
}

// New creates a form with exactly one starter row.
func New(sender BatchSender, opts ...Option) *Form {
	f := &Form{
		sender: sender,
		date:   core.Today().String(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.AddRow()
	return f
}

// AddRow appends an empty inflow row at the end of the list.
func (f *Form) AddRow() *Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addRowLocked()
}

func (f *Form) addRowLocked() *Row {
	r := &Row{
		form:   f,
		ref:    newRef(),
		values: Values{FlowType: core.Inflow},
	}
	f.rows = append(f.rows, r)
	return r
}

// RemoveRow deletes r from the list. It reports false when r is not (or no
// longer) part of this form.
func (f *Form) RemoveRow(r *Row) bool {
	if r == nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := slices.Index(f.rows, r)
	if i < 0 {
		return false
	}
	f.rows = slices.Delete(f.rows, i, i+1)
	return true
}

// Row looks a row up by its ref.
func (f *Form) Row(ref string) (*Row, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ref == ref {
			return r, true
		}
	}
	return nil, false
}

// RowAt returns the row displayed at position i.
func (f *Form) RowAt(i int) (*Row, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.rows) {
		return nil, false
	}
	return f.rows[i], true
}

// Rows returns a copy of the rows in display order.
func (f *Form) Rows() []RowView {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RowView, len(f.rows))
	for i, r := range f.rows {
		out[i] = RowView{Ref: r.ref, Values: r.values}
	}
	return out
}

// Len returns the number of rows.
func (f *Form) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

// Date returns the shared batch date.
func (f *Form) Date() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.date
}

// SetDate sets the shared batch date.
func (f *Form) SetDate(date string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.date = date
}

// State returns the current UI state.
func (f *Form) State() UIState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Dismiss resets the UI state to idle.
func (f *Form) Dismiss() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = UIState{}
}

// InFlight returns the number of submissions waiting for a response.
func (f *Form) InFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

// Ref returns the row's stable handle.
func (r *Row) Ref() string {
	return r.ref
}

// Values returns the current field values.
func (r *Row) Values() Values {
	r.form.mu.Lock()
	defer r.form.mu.Unlock()
	return r.values
}

// Set replaces all field values.
func (r *Row) Set(v Values) {
	r.form.mu.Lock()
	defer r.form.mu.Unlock()
	r.values = v
}

// SetFlowType changes the flow type.
func (r *Row) SetFlowType(t core.FlowType) {
	r.form.mu.Lock()
	defer r.form.mu.Unlock()
	r.values.FlowType = t
}

// SetDescription changes the description.
func (r *Row) SetDescription(s string) {
	r.form.mu.Lock()
	defer r.form.mu.Unlock()
	r.values.Description = s
}

// SetAmount changes the amount text.
func (r *Row) SetAmount(s string) {
	r.form.mu.Lock()
	defer r.form.mu.Unlock()
	r.values.Amount = s
}

// Remove is the row's own remove handler.
func (r *Row) Remove() bool {
	return r.form.RemoveRow(r)
}
