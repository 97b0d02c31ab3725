package api

import (
	"net/http"
	"time"

	"github.com/starford/xmledit/internal/changes"
	"github.com/starford/xmledit/internal/markup"
	"github.com/starford/xmledit/internal/revision"
	"github.com/starford/xmledit/internal/xmldoc"
)

// incomingMarkup applies the sanitizer when configured.
func (h *Handler) incomingMarkup(m string) string {
	if h.sanitize {
		return markup.Sanitize(m)
	}
	return m
}

// ValidateXML handles POST /api/xml/validate.
//
//	@Summary		Check a document for well-formedness
//	@Tags			xml
//	@Accept			json
//	@Produce		json
//	@Param			body	body		XMLRequest	true	"Document"
//	@Success		200		{object}	xmldoc.Validation
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/xml/validate [post]
func (h *Handler) ValidateXML(w http.ResponseWriter, r *http.Request) {
	var req XMLRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, xmldoc.Validate(req.XML))
}

// ToMarkup handles POST /api/xml/to-markup.
//
//	@Summary		Render a document as editor markup
//	@Tags			xml
//	@Accept			json
//	@Produce		json
//	@Param			body	body		XMLRequest	true	"Document"
//	@Success		200		{object}	markup.Result
//	@Security		BearerAuth
//	@Router			/xml/to-markup [post]
func (h *Handler) ToMarkup(w http.ResponseWriter, r *http.Request) {
	var req XMLRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.tc.XMLToMarkup(req.XML))
}

// ToXML handles POST /api/xml/to-xml.
//
//	@Summary		Convert editor markup back to XML
//	@Tags			xml
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MarkupRequest	true	"Markup"
//	@Success		200		{object}	markup.Result
//	@Security		BearerAuth
//	@Router			/xml/to-xml [post]
func (h *Handler) ToXML(w http.ResponseWriter, r *http.Request) {
	var req MarkupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.tc.MarkupToXML(h.incomingMarkup(req.Markup)))
}

// DetectChanges handles POST /api/xml/changes.
//
//	@Summary		Compare two snapshots of a document
//	@Tags			xml
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ChangesRequest	true	"Snapshots"
//	@Success		200		{object}	ChangesResponse
//	@Security		BearerAuth
//	@Router			/xml/changes [post]
func (h *Handler) DetectChanges(w http.ResponseWriter, r *http.Request) {
	var req ChangesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c := changes.Detect(req.Original, req.Current)
	writeJSON(w, http.StatusOK, ChangesResponse{Changes: c, Description: changes.Describe(c)})
}

// InsertRevision handles POST /api/xml/revision.
//
//	@Summary		Insert a revision record into a document
//	@Tags			xml
//	@Accept			json
//	@Produce		json
//	@Param			body	body		InsertRevisionRequest	true	"Document and record"
//	@Success		200		{object}	revision.Result
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/xml/revision [post]
func (h *Handler) InsertRevision(w http.ResponseWriter, r *http.Request) {
	var req InsertRevisionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rec := revision.Record{Number: req.Number, Date: req.Date, Comment: req.Comment, Timestamp: time.Now().UTC()}
	if rec.Date == "" {
		rec.Date = revision.Today(time.Now)
	}
	writeJSON(w, http.StatusOK, revision.Insert(req.XML, rec))
}
