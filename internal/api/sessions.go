package api

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/xmledit/internal/ai"
	"github.com/starford/xmledit/internal/apperr"
	"github.com/starford/xmledit/internal/revision"
)

const maxImportBytes = 50 << 20 // 50 MB

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// ListSessions handles GET /api/sessions.
//
//	@Summary		List open editing sessions
//	@Tags			sessions
//	@Produce		json
//	@Success		200	{object}	SessionListResponse
//	@Security		BearerAuth
//	@Router			/sessions [get]
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := h.sessions.List(r.Context())
	if err != nil {
		h.fail(w, "list sessions", err)
		return
	}
	items := make([]SessionListItem, 0, len(list))
	for _, s := range list {
		items = append(items, SessionListItem{
			ID:        s.ID,
			Name:      s.Name,
			Number:    s.Number,
			Revisions: len(s.Revisions),
			UpdatedAt: s.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, SessionListResponse{Sessions: items})
}

// OpenSession handles POST /api/sessions.
//
//	@Summary		Open a session on inline XML
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenSessionRequest	true	"Document"
//	@Success		201		{object}	session.Session
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions [post]
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, err := h.sessions.Open(r.Context(), req.Name, req.XML)
	if err != nil {
		h.fail(w, "open session", err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// ImportSession handles POST /api/sessions/import (multipart/form-data with
// field "file", or a raw XML body named by the "name" query parameter).
//
//	@Summary		Open a session on an uploaded file
//	@Tags			sessions
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	false	"XML file"
//	@Param			name	query		string	false	"Name for a raw body"
//	@Success		201		{object}	session.Session
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/import [post]
func (h *Handler) ImportSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	name := r.URL.Query().Get("name")
	var data []byte
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxImportBytes); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
			return
		}
		defer file.Close()
		if data, err = io.ReadAll(file); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
			return
		}
		name = path.Base(strings.ReplaceAll(header.Filename, `\`, "/"))
	} else {
		var err error
		if data, err = io.ReadAll(r.Body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
			return
		}
	}
	if len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("file is empty"))
		return
	}

	s, err := h.sessions.Import(r.Context(), name, data)
	if err != nil {
		h.fail(w, "import session", err, slog.String("name", name))
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// SessionFromDocument handles POST /api/sessions/from-document.
//
//	@Summary		Open a session on a stored document
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		FromDocumentRequest	true	"Document path"
//	@Success		201		{object}	session.Session
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/from-document [post]
func (h *Handler) SessionFromDocument(w http.ResponseWriter, r *http.Request) {
	var req FromDocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, err := h.docs.OpenSession(r.Context(), req.Path)
	if err != nil {
		h.fail(w, "open session from document", err, slog.String("path", req.Path))
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// GetSession handles GET /api/sessions/{id}.
//
//	@Summary		Get a session
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	session.Session
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id} [get]
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(r.Context(), sessionID(r))
	if err != nil {
		h.fail(w, "get session", err, slog.String("id", sessionID(r)))
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// CloseSession handles DELETE /api/sessions/{id}.
//
//	@Summary		Close a session
//	@Tags			sessions
//	@Param			id	path	string	true	"Session ID"
//	@Success		204	"Session closed"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id} [delete]
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(r.Context(), sessionID(r)); err != nil {
		h.fail(w, "close session", err, slog.String("id", sessionID(r)))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetContent handles PUT /api/sessions/{id}/content.
//
//	@Summary		Replace the session's XML
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Session ID"
//	@Param			body	body		XMLRequest	true	"Document"
//	@Success		200		{object}	ContentResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/content [put]
func (h *Handler) SetContent(w http.ResponseWriter, r *http.Request) {
	var req XMLRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, v, err := h.sessions.SetContent(r.Context(), sessionID(r), req.XML)
	if err != nil {
		h.fail(w, "set content", err, slog.String("id", sessionID(r)))
		return
	}
	writeJSON(w, http.StatusOK, ContentResponse{Session: s, Validation: v})
}

// GetMarkup handles GET /api/sessions/{id}/markup.
//
//	@Summary		Render the session's document as editor markup
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	markup.Result
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/markup [get]
func (h *Handler) GetMarkup(w http.ResponseWriter, r *http.Request) {
	res, err := h.sessions.Markup(r.Context(), sessionID(r))
	if err != nil {
		h.fail(w, "get markup", err, slog.String("id", sessionID(r)))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SetMarkup handles PUT /api/sessions/{id}/markup.
//
//	@Summary		Replace the session's document from editor markup
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Session ID"
//	@Param			body	body		MarkupRequest	true	"Markup"
//	@Success		200		{object}	MarkupResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/markup [put]
func (h *Handler) SetMarkup(w http.ResponseWriter, r *http.Request) {
	var req MarkupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, res, err := h.sessions.SetMarkup(r.Context(), sessionID(r), h.incomingMarkup(req.Markup))
	if err != nil {
		h.fail(w, "set markup", err, slog.String("id", sessionID(r)))
		return
	}
	writeJSON(w, http.StatusOK, MarkupResponse{Session: s, Result: res})
}

// ValidateSession handles POST /api/sessions/{id}/validate.
//
//	@Summary		Check the session's document for well-formedness
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	xmldoc.Validation
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/validate [post]
func (h *Handler) ValidateSession(w http.ResponseWriter, r *http.Request) {
	v, err := h.sessions.Validate(r.Context(), sessionID(r))
	if err != nil {
		h.fail(w, "validate session", err, slog.String("id", sessionID(r)))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Analyze handles POST /api/sessions/{id}/analysis.
//
//	@Summary		Describe what changed since the last revision
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	session.Analysis
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/analysis [post]
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	a, err := h.sessions.Analyze(r.Context(), sessionID(r))
	if err != nil {
		h.fail(w, "analyze session", err, slog.String("id", sessionID(r)))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// PrepareRevision handles POST /api/sessions/{id}/revision/draft.
//
//	@Summary		Propose the next revision record
//	@Tags			revisions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	session.Draft
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/revision/draft [post]
func (h *Handler) PrepareRevision(w http.ResponseWriter, r *http.Request) {
	d, err := h.sessions.PrepareRevision(r.Context(), sessionID(r))
	if err != nil {
		h.fail(w, "prepare revision", err, slog.String("id", sessionID(r)))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// FinalizeRevision handles POST /api/sessions/{id}/revision.
//
//	@Summary		Insert a revision record and reset the change baseline
//	@Tags			revisions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Session ID"
//	@Param			body	body		RevisionRequest	true	"Revision record"
//	@Success		201		{object}	session.Finalized
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/revision [post]
func (h *Handler) FinalizeRevision(w http.ResponseWriter, r *http.Request) {
	var req RevisionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	f, err := h.sessions.FinalizeRevision(r.Context(), sessionID(r), req)
	if err != nil {
		h.fail(w, "finalize revision", err, slog.String("id", sessionID(r)))
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// Revisions handles GET /api/sessions/{id}/revisions.
//
//	@Summary		List the revision records stored in the document
//	@Tags			revisions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	RevisionsResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/revisions [get]
func (h *Handler) Revisions(w http.ResponseWriter, r *http.Request) {
	recs, err := h.sessions.RefreshRevisions(r.Context(), sessionID(r))
	if err != nil {
		h.fail(w, "list revisions", err, slog.String("id", sessionID(r)))
		return
	}
	if recs == nil {
		recs = []revision.Record{}
	}
	writeJSON(w, http.StatusOK, RevisionsResponse{Revisions: recs})
}

// History handles GET /api/sessions/{id}/history.
//
//	@Summary		List archived revisions of the session's document
//	@Tags			revisions
//	@Produce		json
//	@Param			id		path		string	true	"Session ID"
//	@Success		200		{object}	HistoryResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody(apperr.ErrNotConfigured.Error()))
		return
	}
	s, err := h.sessions.Get(r.Context(), sessionID(r))
	if err != nil {
		h.fail(w, "history", err, slog.String("id", sessionID(r)))
		return
	}
	commits, err := h.archive.History(s.Name, 0)
	if err != nil {
		h.fail(w, "history", err, slog.String("name", s.Name))
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Commits: commits})
}

// Export handles GET /api/sessions/{id}/export.
//
//	@Summary		Download the session's document
//	@Tags			sessions
//	@Produce		xml
//	@Param			id	path	string	true	"Session ID"
//	@Success		200	{string}	string	"XML document"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	name, content, err := h.sessions.Export(r.Context(), sessionID(r))
	if err != nil {
		h.fail(w, "export", err, slog.String("id", sessionID(r)))
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, content)
}

// ApplyEdits handles POST /api/sessions/{id}/edits.
//
//	@Summary		Let the model rewrite the document
//	@Tags			ai
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Session ID"
//	@Param			body	body		EditsRequest	true	"Instructions"
//	@Success		200		{object}	session.Session
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/edits [post]
func (h *Handler) ApplyEdits(w http.ResponseWriter, r *http.Request) {
	var req EditsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, err := h.sessions.ApplyEdits(r.Context(), sessionID(r), req.Instructions)
	if err != nil {
		h.fail(w, "apply edits", err, slog.String("id", sessionID(r)))
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Ask handles POST /api/sessions/{id}/ask.
//
//	@Summary		Run a task over the session's document
//	@Tags			ai
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Session ID"
//	@Param			body	body		AskRequest	true	"Task and prompt"
//	@Success		200		{object}	AIResponse
//	@Failure		503		{object}	AIResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/ask [post]
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	task, _ := ai.ParseTask(req.Task)
	resp, err := h.sessions.Ask(r.Context(), sessionID(r), task, req.Prompt)
	if err != nil && statusFor(err) == http.StatusNotFound {
		h.fail(w, "ask", err, slog.String("id", sessionID(r)))
		return
	}
	h.writeAI(w, resp, err)
}
