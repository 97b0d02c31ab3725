package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/xmledit/internal/ai"
	"github.com/starford/xmledit/internal/archive"
	"github.com/starford/xmledit/internal/docservice"
	"github.com/starford/xmledit/internal/markup"
	"github.com/starford/xmledit/internal/session"
)

// Deps are the services behind the API. Docs is required; nil optional
// services leave their routes unmounted or answering 503.
type Deps struct {
	Docs       *docservice.Service
	Sessions   *session.Manager
	Gateway    *ai.Gateway
	Transcoder *markup.Transcoder
	Archive    *archive.Archive
	// Events, if non-nil, is mounted at GET /events.
	Events http.Handler
	// Sanitize runs incoming editor markup through the sanitizer.
	Sanitize bool
	Logger   *slog.Logger
}

// Handler holds API route handlers.
type Handler struct {
	docs     *docservice.Service
	sessions *session.Manager
	gateway  *ai.Gateway
	tc       *markup.Transcoder
	archive  *archive.Archive
	sanitize bool
	logger   *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		docs:     d.Docs,
		sessions: d.Sessions,
		gateway:  d.Gateway,
		tc:       d.Transcoder,
		archive:  d.Archive,
		sanitize: d.Sanitize,
		logger:   d.Logger,
	}
	if h.tc == nil {
		h.tc = markup.New()
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(d Deps, authEnabled bool, token string) chi.Router {
	h := NewHandler(d)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// AI gateway.
	r.Post("/ai", h.Complete)
	r.Get("/ai/info", h.AIInfo)

	// Stateless XML operations.
	r.Route("/xml", func(r chi.Router) {
		r.Post("/validate", h.ValidateXML)
		r.Post("/to-markup", h.ToMarkup)
		r.Post("/to-xml", h.ToXML)
		r.Post("/changes", h.DetectChanges)
		r.Post("/revision", h.InsertRevision)
	})

	// Samples catalog.
	r.Get("/documents", h.ListDocuments)
	r.Post("/documents", h.CreateDocument)
	r.Post("/documents/refresh", h.RefreshDocuments)
	r.Post("/documents/move", h.MoveDocument)
	r.Get("/documents/*", h.GetDocument)
	r.Put("/documents/*", h.UpdateDocument)
	r.Delete("/documents/*", h.DeleteDocument)
	r.Get("/search", h.Search)

	// Editing sessions.
	if d.Sessions != nil {
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.ListSessions)
			r.Post("/", h.OpenSession)
			r.Post("/import", h.ImportSession)
			r.Post("/from-document", h.SessionFromDocument)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Delete("/", h.CloseSession)
				r.Put("/content", h.SetContent)
				r.Get("/markup", h.GetMarkup)
				r.Put("/markup", h.SetMarkup)
				r.Post("/validate", h.ValidateSession)
				r.Post("/analysis", h.Analyze)
				r.Post("/revision/draft", h.PrepareRevision)
				r.Post("/revision", h.FinalizeRevision)
				r.Get("/revisions", h.Revisions)
				r.Get("/history", h.History)
				r.Get("/export", h.Export)
				r.Post("/edits", h.ApplyEdits)
				r.Post("/ask", h.Ask)
			})
		})
	}

	// SSE endpoint (protected by same auth middleware).
	if d.Events != nil {
		r.Get("/events", d.Events.ServeHTTP)
	}

	return r
}
