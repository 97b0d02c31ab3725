// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes xmledit tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/xmledit/internal/catalog"
	"github.com/starford/xmledit/internal/changes"
	"github.com/starford/xmledit/internal/markup"
	"github.com/starford/xmledit/internal/parser"
	"github.com/starford/xmledit/internal/revision"
	"github.com/starford/xmledit/internal/storage"
	"github.com/starford/xmledit/internal/xmldoc"
)

const dialectURI = "xmledit://dialect"

// Server wraps the MCP server with xmledit tools.
type Server struct {
	mcp   *server.MCPServer
	store storage.Provider
	db    catalog.Index
	tc    *markup.Transcoder
	clock func() time.Time
}

// New creates a new MCP server with all xmledit tools registered.
func New(store storage.Provider, db catalog.Index, tc *markup.Transcoder) *Server {
	if tc == nil {
		tc = markup.New()
	}
	s := &Server{store: store, db: db, tc: tc, clock: time.Now}

	s.mcp = server.NewMCPServer(
		"xmledit",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List catalog documents in display order: indexes, topics, sections, errors, unknown."),
		mcp.WithString("kind", mcp.Description("Optional kind filter: index, topic, section, error or unknown")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the raw XML of a document in the samples directory."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the document (e.g. manual/topic.xml)")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Full-text search through document titles and text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("validate_xml",
		mcp.WithDescription("Check an XML document for well-formedness. Returns valid, error and line."),
		mcp.WithString("xml", mcp.Required(), mcp.Description("XML document")),
	), s.validateXML)

	s.mcp.AddTool(mcp.NewTool("xml_to_markup",
		mcp.WithDescription("Render an XML document as the HTML markup used by the rich-text editor."),
		mcp.WithString("xml", mcp.Required(), mcp.Description("XML document")),
	), s.xmlToMarkup)

	s.mcp.AddTool(mcp.NewTool("markup_to_xml",
		mcp.WithDescription("Convert rich-text editor markup back to XML. The result reports its fidelity: exact, heuristic or fallback."),
		mcp.WithString("markup", mcp.Required(), mcp.Description("Editor markup")),
	), s.markupToXML)

	s.mcp.AddTool(mcp.NewTool("detect_changes",
		mcp.WithDescription("Compare two snapshots of a document and list additions, modifications and deletions."),
		mcp.WithString("original", mcp.Required(), mcp.Description("Original XML")),
		mcp.WithString("current", mcp.Required(), mcp.Description("Current XML")),
	), s.detectChanges)

	s.mcp.AddTool(mcp.NewTool("insert_revision",
		mcp.WithDescription("Append a revision record to the document's Revisions container, creating it when missing."),
		mcp.WithString("xml", mcp.Required(), mcp.Description("XML document")),
		mcp.WithString("number", mcp.Required(), mcp.Description("Revision number, e.g. 1.1")),
		mcp.WithString("comment", mcp.Required(), mcp.Description("Revision comment")),
		mcp.WithString("date", mcp.Description("Revision date YYYY-MM-DD (default today)")),
	), s.insertRevision)

	s.mcp.AddTool(mcp.NewTool("get_referencing",
		mcp.WithDescription("Find all documents that reference the specified document through topicRef or sectionRef."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the referenced document")),
	), s.getReferencing)

	s.mcp.AddTool(mcp.NewTool("import_document",
		mcp.WithDescription("Download an XML document from an http(s) or data: URL into the samples directory and index it."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http, https or data: URL")),
		mcp.WithString("path", mcp.Description("Target path (default: file name from the URL)")),
	), s.importDocument)

	s.mcp.AddTool(mcp.NewTool("get_dialect_contract",
		mcp.WithDescription("Returns the XML dialect contract. "+
			"Call this before producing or editing documents to ensure correct structure."),
	), s.getDialectContract)

	// Resource: dialect contract.
	s.mcp.AddResource(
		mcp.NewResource(dialectURI, "XML Dialect Contract",
			mcp.WithResourceDescription("Element vocabulary and revision rules of xmledit documents."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDialectResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := parser.Kind(strings.ToLower(strings.TrimSpace(req.GetString("kind", ""))))
	docs, err := s.db.ListDocuments(kind)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(docs)
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.store.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.db.Search(query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) validateXML(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := req.RequireString("xml")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(xmldoc.Validate(doc))
}

func (s *Server) xmlToMarkup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := req.RequireString("xml")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.tc.XMLToMarkup(doc))
}

func (s *Server) markupToXML(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, err := req.RequireString("markup")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.tc.MarkupToXML(markup.Sanitize(m)))
}

func (s *Server) detectChanges(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	original, err := req.RequireString("original")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	current, err := req.RequireString("current")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c := changes.Detect(original, current)
	return jsonResult(struct {
		changes.Changes
		Description string `json:"description"`
	}{c, changes.Describe(c)})
}

func (s *Server) insertRevision(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := req.RequireString("xml")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	number, err := req.RequireString("number")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	comment, err := req.RequireString("comment")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(number) == "" || strings.TrimSpace(comment) == "" {
		return mcp.NewToolResultError("number and comment must not be empty"), nil
	}
	date := req.GetString("date", "")
	if date == "" {
		date = revision.Today(s.clock)
	}
	rec := revision.Record{Number: number, Date: date, Comment: comment, Timestamp: s.clock().UTC()}
	return jsonResult(revision.Insert(doc, rec))
}

func (s *Server) getReferencing(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	refs, err := s.db.Referencing(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(refs) == 0 {
		return mcp.NewToolResultText("no referencing documents found"), nil
	}
	return mcp.NewToolResultText(strings.Join(refs, "\n")), nil
}

func (s *Server) getDialectContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DialectContract), nil
}

func (s *Server) readDialectResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      dialectURI,
			MIMEType: "text/markdown",
			Text:     DialectContract,
		},
	}, nil
}
