package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"tracker/internal/core"
	"tracker/internal/form"
	"tracker/internal/log"
	"tracker/internal/services"
)

const rpcUserHeader = "X-Tracker-User"

type rowsData struct {
	Date      string
	Rows      []form.RowView
	State     form.UIState
	FlowTypes []core.FlowType
}

type indexData struct {
	Form  rowsData
	Year  int
	Month int
}

type entriesData struct {
	Title   string
	Prev    MonthParams
	Next    MonthParams
	Days    []core.DayTotals
	Inflow  int64
	Outflow int64
	Net     int64
	Error   string
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/my/finance-tracker", http.StatusSeeOther)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	_, f := s.sessions.get(w, r)

	now := time.Now()
	data := indexData{
		Form:  snapshot(f),
		Year:  now.Year(),
		Month: int(now.Month()),
	}
	// A status message is shown once.
	f.Dismiss()

	body, err := s.render("index.html", data)
	if err != nil {
		s.renderFailed(w, r, "index.html", err)
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}

func (s *Server) handleAddRow(w http.ResponseWriter, r *http.Request) {
	_, f, ok := s.syncedForm(w, r)
	if !ok {
		return
	}
	f.Dismiss()
	row := f.AddRow()

	log.FromContext(r.Context()).DebugContext(r.Context(), "Row added",
		log.FieldOperation, log.OpAddRow,
		log.FieldRowRef, row.Ref(),
		log.FieldRowCount, f.Len())

	s.writeRows(w, r, f, NewHTMXResponse())
}

func (s *Server) handleRemoveRow(w http.ResponseWriter, r *http.Request) {
	_, f, ok := s.syncedForm(w, r)
	if !ok {
		return
	}
	f.Dismiss()

	ref := r.PathValue("ref")
	resp := NewHTMXResponse()
	row, found := f.Row(ref)
	if !found || !f.RemoveRow(row) {
		// Already gone, e.g. a double click.
		log.FromContext(r.Context()).WarnContext(r.Context(), "Remove of unknown row",
			log.FieldOperation, log.OpRemoveRow,
			log.FieldRowRef, ref)
	} else {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Row removed",
			log.FieldOperation, log.OpRemoveRow,
			log.FieldRowRef, ref,
			log.FieldRowCount, f.Len())
	}

	s.writeRows(w, r, f, resp)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sessionID, f, ok := s.syncedForm(w, r)
	if !ok {
		return
	}

	count, cents := batchStats(f)
	ctx := services.ContextWithUser(r.Context(), sessionID)
	outcome, err := f.Submit(ctx)

	resp := NewHTMXResponse()
	state := f.State()
	switch outcome {
	case form.OutcomeSucceeded:
		s.events.LogBatchSubmitted(r.Context(), count, cents, outcome.String())
		d, _ := core.ParseDate(f.Date())
		if d.IsZero() {
			d = core.Today()
		}
		resp.TriggerSuccessNotification(state.Message).
			TriggerEntriesRefresh(d.Year(), int(d.Month()))
	case form.OutcomeBlocked:
		resp.TriggerWarningNotification(state.Message)
	default:
		s.events.LogError(r.Context(), "Entry batch submit failed", err, log.ComponentForm, log.OpSubmit,
			log.NewFields().WithBatch(count, cents))
		resp.TriggerErrorNotification(state.Message)
	}

	s.writeRows(w, r, f, resp)
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	p := ParseMonthParams(r.URL.Query())
	data := entriesData{
		Title: p.Title(),
		Prev:  p.Prev(),
		Next:  p.Next(),
	}

	if s.entries != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
		defer cancel()
		days, err := s.entries.Month(ctx, p.Year, p.Month)
		if err != nil {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Month listing failed",
				log.FieldError, err,
				log.FieldYear, p.Year,
				log.FieldMonth, p.Month)
			data.Error = "Could not load entries."
		}
		data.Days = days
		for _, d := range days {
			data.Inflow += d.Inflow.Cents
			data.Outflow += d.Outflow.Cents
		}
		data.Net = data.Inflow - data.Outflow
	}

	body, err := s.render("entries", data)
	if err != nil {
		s.renderFailed(w, r, "entries", err)
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}

// syncedForm loads the session form and copies the posted field values into
// it, so typed text survives add, remove and submit.
func (s *Server) syncedForm(w http.ResponseWriter, r *http.Request) (string, *form.Form, bool) {
	sessionID, f := s.sessions.get(w, r)

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Invalid form body",
			log.FieldOperation, log.OpParse,
			log.FieldError, err)
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		ErrorResponse(status, "Invalid request format").Write(w)
		return "", nil, false
	}

	syncForm(f, p)
	return sessionID, f, true
}

func syncForm(f *form.Form, p *RequestBodyParser) {
	if date := p.Get("date"); date != "" {
		f.SetDate(date)
	}
	for _, ref := range p.Values("row") {
		row, ok := f.Row(ref)
		if !ok {
			continue
		}
		v := row.Values()
		if ft, err := core.ParseFlowType(p.Get("type_" + ref)); err == nil {
			v.FlowType = ft
		}
		v.Description = p.Get("description_" + ref)
		v.Amount = p.Get("amount_" + ref)
		row.Set(v)
	}
}

// batchStats counts what Submit would send, for logging.
func batchStats(f *form.Form) (count int, cents int64) {
	for e := range f.Collect() {
		count++
		if c, err := core.ParseDecimalToCents(e.Amount); err == nil {
			cents += c
		}
	}
	return count, cents
}

func snapshot(f *form.Form) rowsData {
	return rowsData{
		Date:      f.Date(),
		Rows:      f.Rows(),
		State:     f.State(),
		FlowTypes: core.FlowTypes(),
	}
}

func (s *Server) writeRows(w http.ResponseWriter, r *http.Request, f *form.Form, resp *HTMXResponseBuilder) {
	body, err := s.render("rows", snapshot(f))
	if err != nil {
		s.renderFailed(w, r, "rows", err)
		return
	}
	resp.BodyHTML(body).Write(w)
}

func (s *Server) render(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Server) renderFailed(w http.ResponseWriter, r *http.Request, name string, err error) {
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
		log.FieldOperation, log.OpRender,
		log.FieldError, err,
		"template", name)
	InternalServerError("Something went wrong").Write(w)
}

// withRPCUser attributes JSON-RPC batches to the caller named in the
// X-Tracker-User header.
func withRPCUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := sanitizeInput(r.Header.Get(rpcUserHeader))
		if user == "" {
			user = "rpc"
		}
		next.ServeHTTP(w, r.WithContext(services.ContextWithUser(r.Context(), user)))
	})
}
