package web

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/yuripa07/itemsmith/internal/config"
	"github.com/yuripa07/itemsmith/internal/errors"
	"github.com/yuripa07/itemsmith/internal/generate"
	"github.com/yuripa07/itemsmith/internal/prefs"
	"github.com/yuripa07/itemsmith/internal/session"
	"github.com/yuripa07/itemsmith/internal/tracker"
	"github.com/yuripa07/itemsmith/internal/workitem"
)

// Generator runs one text-to-records transduction.
type Generator interface {
	Generate(ctx context.Context, input generate.Input) ([]workitem.Record, error)
}

// Submitter creates one remote work item from one record.
type Submitter interface {
	Create(ctx context.Context, creds tracker.Credentials, rec workitem.Record) (*tracker.CreatedItem, error)
}

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	cfg       *config.Config
	store     *prefs.Store
	session   *session.Session
	generator Generator
	submitter Submitter
	renderer  *Renderer
}

// HandleBoard handles GET /board: the settings panel, generation form,
// and generated card list.
func (h *Handlers) HandleBoard(w http.ResponseWriter, r *http.Request) {
	h.renderBoard(w, r, http.StatusOK, "")
}

// HandleSaveCredentials handles POST /settings/credentials. Every change
// is written through to the preference store in full.
func (h *Handlers) HandleSaveCredentials(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderBoard(w, r, http.StatusBadRequest, "could not read the submitted form")
		return
	}

	creds := tracker.Credentials{
		Organization: r.PostFormValue("organization"),
		Project:      r.PostFormValue("project"),
		PAT:          r.PostFormValue("pat"),
	}
	if err := h.store.SetCredentials(creds); err != nil {
		log.Error().Err(err).Msg("failed to persist credentials")
		h.renderer.renderError(w, r, err)
		return
	}

	http.Redirect(w, r, "/board", http.StatusSeeOther)
}

// HandleSaveTemplate handles POST /settings/template.
func (h *Handlers) HandleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderBoard(w, r, http.StatusBadRequest, "could not read the submitted form")
		return
	}

	if err := h.store.SetInstructionTemplate(r.PostFormValue("template")); err != nil {
		log.Error().Err(err).Msg("failed to persist instruction template")
		h.renderer.renderError(w, r, err)
		return
	}

	http.Redirect(w, r, "/board", http.StatusSeeOther)
}

// HandleGenerate handles POST /generate. Input validation happens before
// any backend call; a run in flight refuses a second one rather than
// racing two results. A successful run replaces the whole working set.
func (h *Handlers) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderBoard(w, r, http.StatusBadRequest, "could not read the submitted form")
		return
	}

	input := generate.Input{
		Notes: r.PostFormValue("notes"),
		Kind:  r.PostFormValue("kind"),
	}
	h.session.SetInput(input.Notes, input.Kind)

	template, err := h.store.InstructionTemplate()
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	input.Instructions = template

	if err := h.session.BeginGeneration(); err != nil {
		h.renderBoardErr(w, r, err)
		return
	}

	records, err := h.generator.Generate(r.Context(), input)
	if err != nil {
		h.session.FailGeneration()
		if iErr, ok := err.(*errors.ItemsmithError); ok && iErr.Details != nil {
			log.Error().Interface("details", iErr.Details).Str("code", string(iErr.Code)).Msg("generation failed")
		}
		h.renderBoardErr(w, r, err)
		return
	}

	h.session.FinishGeneration(records)
	log.Info().Int("records", len(records)).Msg("generation run completed")
	http.Redirect(w, r, "/board", http.StatusSeeOther)
}

// HandleSubmit handles POST /records/{id}/submit. Credentials are read
// once at call start; a concurrent settings edit does not affect a call
// already in flight. Other records are never touched.
func (h *Handlers) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	creds, err := h.store.Credentials()
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if !creds.Configured() {
		h.renderBoardErr(w, r, errors.NewNotConfigured())
		return
	}

	rec, err := h.session.BeginSubmit(id)
	if err != nil {
		h.renderBoardErr(w, r, err)
		return
	}

	created, err := h.submitter.Create(r.Context(), creds, rec)
	if err != nil {
		msg := "an unknown error occurred"
		if iErr, ok := err.(*errors.ItemsmithError); ok {
			msg = iErr.Message
		}
		h.session.FailSubmit(id, msg)
		log.Warn().Str("record", id).Err(err).Msg("submission failed")
		h.renderBoard(w, r, http.StatusOK, "")
		return
	}

	h.session.CompleteSubmit(id, created.Link)
	log.Info().Str("record", id).Str("link", created.Link).Msg("work item created")
	http.Redirect(w, r, "/board", http.StatusSeeOther)
}

// HandleEdit handles POST /records/{id}/edit: a full field replace that
// resets the record's submission state to idle.
func (h *Handlers) HandleEdit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderBoard(w, r, http.StatusBadRequest, "could not read the submitted form")
		return
	}

	rec := workitem.Record{
		ID:          r.PathValue("id"),
		Title:       r.PostFormValue("title"),
		Kind:        r.PostFormValue("kind"),
		Description: r.PostFormValue("description"),
		Tags:        workitem.ParseTags(r.PostFormValue("tags")),
	}

	if err := h.session.UpdateRecord(rec); err != nil {
		h.renderBoardErr(w, r, err)
		return
	}

	http.Redirect(w, r, "/board", http.StatusSeeOther)
}

// renderBoardErr renders the board with the error's message and status.
func (h *Handlers) renderBoardErr(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "an unknown error occurred"
	if iErr, ok := err.(*errors.ItemsmithError); ok {
		status = iErr.Status
		msg = iErr.Message
	}
	h.renderBoard(w, r, status, msg)
}

// renderBoard renders the full board page from current state.
func (h *Handlers) renderBoard(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	creds, err := h.store.Credentials()
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	template, err := h.store.InstructionTemplate()
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	notes, kind := h.session.Input()
	if kind == "" {
		kind = workitem.KindTask
	}

	h.renderer.renderPageStatus(w, status, "board", BoardPageData{
		PageData: PageData{
			Title:   "Itemsmith",
			Version: h.renderer.version,
		},
		Credentials: creds,
		Configured:  creds.Configured(),
		Template:    template,
		Kinds:       workitem.CanonicalKinds,
		Kind:        kind,
		Notes:       notes,
		Model:       h.cfg.Model,
		Generating:  h.session.Generating(),
		Cards:       h.renderer.cards(h.session.Entries()),
		Error:       errMsg,
	})
}
