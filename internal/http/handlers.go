package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"orcamento/internal/core"
	"orcamento/internal/entries"
	"orcamento/internal/events"
	"orcamento/internal/log"
)

const (
	msgNeedEntries  = "Adicione lançamentos para receber conselhos."
	msgRateLimited  = "Muitas solicitações. Aguarde um instante e tente novamente."
	msgSaveFailed   = "Erro ao salvar. Tente novamente."
	msgNotFound     = "Lançamento não encontrado."
	msgNotExpense   = "Apenas despesas podem ser marcadas como pagas."
	msgRenderFailed = "Erro ao exibir o orçamento."
	msgInvalidEntry = "Dados inválidos."
)

// pageFor builds the page model for month from the current store contents.
func (s *Server) pageFor(month core.MonthKey) pageData {
	now := s.now()
	state := core.NewViewState(now).WithMonth(month)
	return newPageData(state, s.store.MonthView(month), core.MonthKeyOf(now))
}

// writePage renders the month view fragment for htmx requests and the full
// page otherwise.
func (s *Server) writePage(w http.ResponseWriter, r *http.Request, status int, data pageData, b *HTMXResponseBuilder) {
	name := "index.html"
	if isHTMX(r) {
		name = "month_view"
	}
	body, err := s.render(name, data)
	if err != nil {
		log.FromContext(r.Context()).Failure(r.Context(), "Template execution failed", err,
			log.FieldOperation, log.OpRender, log.FieldMonth, data.State.Month.String())
		InternalServerError(msgRenderFailed).Write(w)
		return
	}
	if b == nil {
		b = NewHTMXResponse()
	}
	w.Header().Add("Vary", "HX-Request")
	b.Status(status).BodyHTML(body).Write(w)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	month := ParseMonth(r.URL.Query(), s.now())
	s.writePage(w, r, http.StatusOK, s.pageFor(month), nil)
}

// afterMutation answers a successful change: htmx gets the refreshed month
// view, plain forms get redirected back to the month.
func (s *Server) afterMutation(w http.ResponseWriter, r *http.Request, month core.MonthKey, op events.Op, notice string) {
	if !isHTMX(r) {
		http.Redirect(w, r, "/?month="+url.QueryEscape(month.String()), http.StatusSeeOther)
		return
	}
	b := NewHTMXResponse().TriggerEntriesChanged(string(op), month)
	if notice != "" {
		b.TriggerSuccessNotification(notice)
	}
	s.writePage(w, r, http.StatusOK, s.pageFor(month), b)
}

// writeStoreError maps entry store errors to responses.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, op, id string, err error) {
	logger := log.FromContext(r.Context())
	switch {
	case errors.Is(err, entries.ErrNotFound):
		logger.Warn("Entry not found", log.FieldOperation, op, log.FieldEntryID, id)
		NotFoundError(msgNotFound).Write(w)
	case errors.Is(err, entries.ErrNotExpense):
		UnprocessableEntityError(msgNotExpense).Write(w)
	case errors.Is(err, core.ErrDescriptionTooLong), errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrInvalidCategory):
		UnprocessableEntityError(msgInvalidEntry).Write(w)
	default:
		logger.Failure(r.Context(), "Entry store operation failed", err, log.FieldOperation, op, log.FieldEntryID, id)
		InternalServerError(msgSaveFailed).Write(w)
	}
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	form := EntryFormFromValues(r.PostForm)
	month := ParseMonth(r.PostForm, s.now())
	if form.Month == "" {
		form.Month = month.String()
	}

	draft, err := form.Draft()
	if err == nil {
		_, err = s.store.Add(r.Context(), draft)
	}
	if err != nil {
		var fe *FormError
		message := ""
		switch {
		case errors.As(err, &fe):
			message = fe.Message
		case errors.Is(err, core.ErrDescriptionTooLong):
			message = fieldMessages["Description"]
		case errors.Is(err, core.ErrEmptyDescription), errors.Is(err, core.ErrInvalidAmount),
			errors.Is(err, core.ErrInvalidCategory), errors.Is(err, core.ErrInvalidType):
			message = msgInvalidEntry
		default:
			s.writeStoreError(w, r, log.OpCreate, "", err)
			return
		}
		data := s.pageFor(month)
		data.Form = entryForm{
			Description: form.Description,
			Amount:      form.Amount,
			Type:        core.EntryType(form.Type),
			Category:    core.Category(form.Category),
			Error:       message,
		}
		s.writePage(w, r, http.StatusUnprocessableEntity, data, nil)
		return
	}

	s.afterMutation(w, r, month, events.OpCreated, "Lançamento adicionado.")
}

// handleSetAmount is the inline amount edit. Input that is not an amount is
// ignored and the unchanged view is returned.
func (s *Server) handleSetAmount(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	id := r.PathValue("id")
	month := ParseMonth(r.PostForm, s.now())

	_, err := s.store.SetAmount(r.Context(), id, r.PostForm.Get("amount"))
	switch {
	case err == nil:
		s.afterMutation(w, r, month, events.OpUpdated, "")
	case errors.Is(err, core.ErrInvalidAmount):
		log.FromContext(r.Context()).Debug("Ignoring invalid amount edit", log.FieldEntryID, id)
		if !isHTMX(r) {
			http.Redirect(w, r, "/?month="+url.QueryEscape(month.String()), http.StatusSeeOther)
			return
		}
		s.writePage(w, r, http.StatusOK, s.pageFor(month),
			NewHTMXResponse().TriggerWarningNotification("Valor inválido, nada foi alterado."))
	default:
		s.writeStoreError(w, r, log.OpUpdate, id, err)
	}
}

func (s *Server) handleTogglePaid(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	id := r.PathValue("id")
	if _, err := s.store.TogglePaid(r.Context(), id); err != nil {
		s.writeStoreError(w, r, log.OpTogglePaid, id, err)
		return
	}
	s.afterMutation(w, r, ParseMonth(r.PostForm, s.now()), events.OpUpdated, "")
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	id := r.PathValue("id")
	if _, err := s.store.Remove(r.Context(), id); err != nil {
		s.writeStoreError(w, r, log.OpDelete, id, err)
		return
	}
	// DELETE carries the month in the query string, POST in the body.
	s.afterMutation(w, r, ParseMonth(r.Form, s.now()), events.OpDeleted, "Lançamento removido.")
}

// writeAdvice renders the advice panel, or the full page for plain forms.
func (s *Server) writeAdvice(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	name := "index.html"
	if isHTMX(r) {
		name = "advice"
	}
	body, err := s.render(name, data)
	if err != nil {
		log.FromContext(r.Context()).Failure(r.Context(), "Template execution failed", err,
			log.FieldOperation, log.OpRender)
		InternalServerError(msgRenderFailed).Write(w)
		return
	}
	NewHTMXResponse().Status(status).BodyHTML(body).Write(w)
}

func (s *Server) handleAdvice(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	data := s.pageFor(ParseMonth(r.PostForm, s.now()))
	if !data.CanAdvise() {
		data.AdviceError = msgNeedEntries
		s.writeAdvice(w, r, http.StatusUnprocessableEntity, data)
		return
	}

	text := s.advisor.Advise(r.Context(), data.View.Entries, data.View.Summary)
	data.State = data.State.WithAdvice(text)
	s.writeAdvice(w, r, http.StatusOK, data)
}

func (s *Server) handleAdviceLimited(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	log.FromContext(r.Context()).Warn("Advice rate limit exceeded",
		log.FieldClientIP, s.detector.ClientIP(r))
	data := s.pageFor(ParseMonth(r.PostForm, s.now()))
	data.AdviceError = msgRateLimited
	s.writeAdvice(w, r, http.StatusTooManyRequests, data)
}

// monthResponse is the JSON shape of GET /api/months/{month}.
type monthResponse struct {
	core.MonthView
	Title string `json:"title"`
}

func (s *Server) handleMonthAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	month, err := core.ParseMonthKey(r.PathValue("month"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	resp := monthResponse{MonthView: s.store.MonthView(month), Title: month.Title()}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.FromContext(r.Context()).Failure(r.Context(), "Encode month response failed", err,
			log.FieldMonth, month.String())
	}
}
