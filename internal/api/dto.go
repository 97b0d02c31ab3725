package api

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/xmledit/internal/ai"
	"github.com/starford/xmledit/internal/archive"
	"github.com/starford/xmledit/internal/catalog"
	"github.com/starford/xmledit/internal/changes"
	"github.com/starford/xmledit/internal/docservice"
	"github.com/starford/xmledit/internal/markup"
	"github.com/starford/xmledit/internal/revision"
	"github.com/starford/xmledit/internal/session"
	"github.com/starford/xmledit/internal/xmldoc"
)

// CreateDocumentRequest is the request body for creating a document.
type CreateDocumentRequest struct {
	Path    string `json:"path" example:"manual/topic-1.xml" validate:"required"`
	Content string `json:"content" example:"<topic><title>Intro</title></topic>" validate:"required"`
}

func (r CreateDocumentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required),
		validation.Field(&r.Content, validation.Required),
	)
}

// UpdateDocumentRequest is the request body for updating a document.
type UpdateDocumentRequest struct {
	Content string `json:"content" example:"<topic><title>Intro</title></topic>" validate:"required"`
}

func (r UpdateDocumentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.Required),
	)
}

// MoveDocumentRequest is the request body for renaming a document.
type MoveDocumentRequest struct {
	From string `json:"from" example:"manual/topic-1.xml" validate:"required"`
	To   string `json:"to" example:"manual/start.xml" validate:"required"`
}

func (r MoveDocumentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.From, validation.Required),
		validation.Field(&r.To, validation.Required, validation.NotIn(r.From).Error("must differ from from")),
	)
}

// DocumentDetail is the full document response type (aliased from the domain layer).
type DocumentDetail = docservice.DocumentDetail

// DocumentListResponse wraps catalog listings.
type DocumentListResponse struct {
	Documents []catalog.Document `json:"documents" validate:"required"`
	Total     int                `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []catalog.SearchResult `json:"results" validate:"required"`
}

// XMLRequest carries a document for the stateless XML endpoints.
type XMLRequest struct {
	XML string `json:"xml" example:"<topic><title>Intro</title></topic>" validate:"required"`
}

func (r XMLRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.XML, validation.Required),
	)
}

// MarkupRequest carries editor markup.
type MarkupRequest struct {
	Markup string `json:"markup" example:"<div class=\"topic\"><h1>Intro</h1></div>" validate:"required"`
}

func (r MarkupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Markup, validation.Required),
	)
}

// ChangesRequest carries two snapshots to compare.
type ChangesRequest struct {
	Original string `json:"original" validate:"required"`
	Current  string `json:"current" validate:"required"`
}

func (r ChangesRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Original, validation.Required),
		validation.Field(&r.Current, validation.Required),
	)
}

// ChangesResponse is the detected change set with its text rendering.
type ChangesResponse struct {
	changes.Changes
	Description string `json:"description" example:"No significant changes detected."`
}

// InsertRevisionRequest inserts one revision record into a document.
// Date defaults to today.
type InsertRevisionRequest struct {
	XML     string `json:"xml" validate:"required"`
	Number  string `json:"number" example:"1.1" validate:"required"`
	Date    string `json:"date" example:"2025-01-31"`
	Comment string `json:"comment" example:"Added safety warnings." validate:"required"`
}

func (r InsertRevisionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.XML, validation.Required),
		validation.Field(&r.Number, validation.Required),
		validation.Field(&r.Comment, validation.Required),
	)
}

// RevisionRequest finalizes a revision on a session.
type RevisionRequest = session.RecordInput

// OpenSessionRequest opens a session on inline content.
type OpenSessionRequest struct {
	Name string `json:"name" example:"engine.xml"`
	XML  string `json:"xml" validate:"required"`
}

func (r OpenSessionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.XML, validation.Required),
	)
}

// FromDocumentRequest opens a session on a stored document.
type FromDocumentRequest struct {
	Path string `json:"path" example:"manual/topic-1.xml" validate:"required"`
}

func (r FromDocumentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required),
	)
}

// SessionListItem is a lightweight item in a session listing.
type SessionListItem struct {
	ID        string    `json:"id" example:"0b6c3c1e-4f5c-4f7a-9a57-3f0d2c8f1e11"`
	Name      string    `json:"name" example:"engine.xml"`
	Number    string    `json:"number" example:"1.2"`
	Revisions int       `json:"revisions" example:"2"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionListResponse wraps session listings.
type SessionListResponse struct {
	Sessions []SessionListItem `json:"sessions" validate:"required"`
}

// ContentResponse is returned after replacing a session's XML.
type ContentResponse struct {
	Session    *session.Session  `json:"session"`
	Validation xmldoc.Validation `json:"validation"`
}

// MarkupResponse is returned after replacing a session's content from markup.
type MarkupResponse struct {
	Session *session.Session `json:"session"`
	markup.Result
}

// RevisionsResponse lists the revision records found in a document.
type RevisionsResponse struct {
	Revisions []revision.Record `json:"revisions" validate:"required"`
}

// EditsRequest asks the model to rewrite a session's document.
type EditsRequest struct {
	Instructions string `json:"instructions" example:"Add a safety warning before step 2." validate:"required"`
}

func (r EditsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Instructions, validation.Required),
	)
}

// AskRequest runs a task over a session's document. Unknown tasks fall
// back to xml_expert.
type AskRequest struct {
	Task   string `json:"task" example:"xml_analysis"`
	Prompt string `json:"prompt"`
}

// HistoryResponse lists archive commits for a document.
type HistoryResponse struct {
	Commits []archive.CommitInfo `json:"commits" validate:"required"`
}

// AIRequest is the body of POST /api/ai. Prompt is a task keyword.
type AIRequest struct {
	Prompt      string   `json:"prompt" example:"xml_expert"`
	Context     string   `json:"context"`
	MaxTokens   int      `json:"maxTokens" example:"1000"`
	Temperature *float64 `json:"temperature" example:"0.7"`
}

func (r AIRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.MaxTokens, validation.Min(0), validation.Max(100000)),
		validation.Field(&r.Temperature, validation.Min(0.0), validation.Max(2.0)),
	)
}

// AIResponse is the body returned by the AI endpoints.
type AIResponse struct {
	Success  bool      `json:"success"`
	Response string    `json:"response,omitempty"`
	Model    string    `json:"model,omitempty"`
	Usage    *ai.Usage `json:"usage,omitempty"`
	Error    string    `json:"error,omitempty"`
}
