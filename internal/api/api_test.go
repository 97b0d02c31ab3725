package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/xmledit/internal/ai"
	"github.com/starford/xmledit/internal/apperr"
	"github.com/starford/xmledit/internal/archive"
	"github.com/starford/xmledit/internal/catalog"
	"github.com/starford/xmledit/internal/docservice"
	"github.com/starford/xmledit/internal/markup"
	"github.com/starford/xmledit/internal/revision"
	"github.com/starford/xmledit/internal/session"
	"github.com/starford/xmledit/internal/testutil"
)

type testOptions struct {
	token    string
	gateway  *ai.Gateway
	archive  bool
	sanitize bool
	events   http.Handler
}

type env struct {
	router   http.Handler
	docs     *docservice.Service
	sessions *session.Manager
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv sets up a seeded samples directory, SQLite catalog, session
// manager and router. An empty token means auth is disabled.
func testEnv(t *testing.T, o testOptions) *env {
	t.Helper()
	logger := quietLogger()

	_, store := testutil.TestSamples(t)
	testutil.SeedSamples(t, store)
	db := testutil.TestDB(t)
	if err := catalog.Sync(db, store, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	gw := o.gateway
	if gw == nil {
		gw = ai.NewGateway("mock", ai.Mock{}, ai.WithGatewayLogger(logger))
	}
	tc := markup.New(markup.WithLogger(logger))

	var arch *archive.Archive
	opts := []session.Option{session.WithGateway(gw), session.WithTranscoder(tc), session.WithLogger(logger)}
	if o.archive {
		var err error
		arch, err = archive.Open(t.TempDir(), logger)
		if err != nil {
			t.Fatalf("archive.Open: %v", err)
		}
		opts = append(opts, session.OnRevision(func(ctx context.Context, f *session.Finalized) {
			if _, err := arch.Commit(ctx, f.Session.Name, f.Session.Current, f.Record); err != nil {
				t.Errorf("Commit: %v", err)
			}
		}))
	}
	mgr := session.NewManager(session.NewMemoryStore(), opts...)
	docs := docservice.NewService(store, db, mgr, logger)

	router := NewRouter(Deps{
		Docs:       docs,
		Sessions:   mgr,
		Gateway:    gw,
		Transcoder: tc,
		Archive:    arch,
		Events:     o.events,
		Sanitize:   o.sanitize,
		Logger:     logger,
	}, o.token != "", o.token)
	return &env{router: router, docs: docs, sessions: mgr}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestCreateAndGetDocument(t *testing.T) {
	e := testEnv(t, testOptions{})

	w := e.do(t, http.MethodPost, "/documents", CreateDocumentRequest{
		Path:    "manual/new.xml",
		Content: `<section type="warning"><para>Hot surface.</para></section>`,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodGet, "/documents/manual%2Fnew.xml", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	doc := decode[DocumentDetail](t, w)
	if doc.Path != "manual/new.xml" || doc.Title != "Hot surface." || doc.Subtype != "warning" {
		t.Errorf("document = %+v", doc.Document)
	}
	if got := w.Header().Get("ETag"); got != `"`+doc.Checksum+`"` {
		t.Errorf("ETag = %q, checksum = %q", got, doc.Checksum)
	}
}

func TestCreateDocument_Validation(t *testing.T) {
	e := testEnv(t, testOptions{})

	w := e.do(t, http.MethodPost, "/documents", CreateDocumentRequest{Content: "<a/>"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing path = %d, want 400", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON = %d, want 400", rec.Code)
	}

	w = e.do(t, http.MethodPost, "/documents", CreateDocumentRequest{Path: "notes.txt", Content: "<a/>"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-xml path = %d, want 400", w.Code)
	}
}

func TestCreateDuplicate(t *testing.T) {
	e := testEnv(t, testOptions{})

	w := e.do(t, http.MethodPost, "/documents", CreateDocumentRequest{Path: "topic.xml", Content: "<topic/>"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	e := testEnv(t, testOptions{})

	doc := decode[DocumentDetail](t, e.do(t, http.MethodGet, "/documents/section.xml", nil))

	body, _ := json.Marshal(UpdateDocumentRequest{Content: `<section><para>Changed</para></section>`})
	req := httptest.NewRequest(http.MethodPut, "/documents/section.xml", bytes.NewReader(body))
	req.Header.Set("If-Match", `"stale"`)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("stale update = %d, want 409", w.Code)
	}

	req = httptest.NewRequest(http.MethodPut, "/documents/section.xml", bytes.NewReader(body))
	req.Header.Set("If-Match", `"`+doc.Checksum+`"`)
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode[DocumentDetail](t, w); got.Title != "Changed" {
		t.Errorf("title = %q, want Changed", got.Title)
	}
}

func TestUpdateDocument_NotFound(t *testing.T) {
	e := testEnv(t, testOptions{})
	w := e.do(t, http.MethodPut, "/documents/missing.xml", UpdateDocumentRequest{Content: "<a/>"})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestDeleteDocument(t *testing.T) {
	e := testEnv(t, testOptions{})

	if w := e.do(t, http.MethodDelete, "/documents/section.xml", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/documents/section.xml", nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/documents/section.xml", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestMoveDocument(t *testing.T) {
	e := testEnv(t, testOptions{})

	w := e.do(t, http.MethodPost, "/documents/move", MoveDocumentRequest{From: "section.xml", To: "manual/oil.xml"})
	if w.Code != http.StatusOK {
		t.Fatalf("move = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode[DocumentDetail](t, w); got.Path != "manual/oil.xml" || got.Content != testutil.SectionXML {
		t.Errorf("moved = %+v", got.Document)
	}
	if w := e.do(t, http.MethodGet, "/documents/section.xml", nil); w.Code != http.StatusNotFound {
		t.Errorf("get old path = %d, want 404", w.Code)
	}

	for _, tc := range []struct {
		req  MoveDocumentRequest
		want int
	}{
		{MoveDocumentRequest{From: "section.xml", To: "other.xml"}, http.StatusNotFound},
		{MoveDocumentRequest{From: "topic.xml", To: "index.xml"}, http.StatusConflict},
		{MoveDocumentRequest{From: "topic.xml", To: "topic.xml"}, http.StatusBadRequest},
		{MoveDocumentRequest{From: "topic.xml"}, http.StatusBadRequest},
	} {
		if w := e.do(t, http.MethodPost, "/documents/move", tc.req); w.Code != tc.want {
			t.Errorf("move %+v = %d, want %d", tc.req, w.Code, tc.want)
		}
	}
}

func TestListDocuments(t *testing.T) {
	e := testEnv(t, testOptions{})

	list := decode[DocumentListResponse](t, e.do(t, http.MethodGet, "/documents", nil))
	if list.Total != 3 {
		t.Fatalf("total = %d, want 3", list.Total)
	}
	want := []string{"index.xml", "topic.xml", "section.xml"}
	for i, d := range list.Documents {
		if d.Path != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, d.Path, want[i])
		}
	}

	topics := decode[DocumentListResponse](t, e.do(t, http.MethodGet, "/documents?kind=topic", nil))
	if topics.Total != 1 || topics.Documents[0].Path != "topic.xml" {
		t.Errorf("topics = %+v", topics)
	}
}

func TestRefreshDocuments(t *testing.T) {
	e := testEnv(t, testOptions{})
	w := e.do(t, http.MethodPost, "/documents/refresh", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh = %d", w.Code)
	}
	if list := decode[DocumentListResponse](t, w); list.Total != 3 {
		t.Errorf("total after refresh = %d", list.Total)
	}
}

func TestSearchEndpoint(t *testing.T) {
	e := testEnv(t, testOptions{})

	res := decode[SearchResponse](t, e.do(t, http.MethodGet, "/search?q=oil", nil))
	if len(res.Results) != 1 || res.Results[0].Path != "section.xml" {
		t.Errorf("results = %+v", res.Results)
	}
	if w := e.do(t, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing query = %d, want 400", w.Code)
	}
}

func TestValidateXML(t *testing.T) {
	e := testEnv(t, testOptions{})

	v := decode[struct {
		Valid bool   `json:"valid"`
		Error string `json:"error"`
	}](t, e.do(t, http.MethodPost, "/xml/validate", XMLRequest{XML: "<topic><title>x</topic>"}))
	if v.Valid || v.Error == "" {
		t.Errorf("validation = %+v, want invalid with message", v)
	}
}

func TestTranscodeRoundTrip(t *testing.T) {
	e := testEnv(t, testOptions{})

	m := decode[markup.Result](t, e.do(t, http.MethodPost, "/xml/to-markup", XMLRequest{XML: testutil.TopicXML}))
	if m.Mode != markup.ModeTree || !strings.Contains(m.Output, "<h1>Starting</h1>") {
		t.Fatalf("markup = %+v", m)
	}
	x := decode[markup.Result](t, e.do(t, http.MethodPost, "/xml/to-xml", MarkupRequest{Markup: m.Output}))
	if x.Output != testutil.TopicXML {
		t.Errorf("round trip:\n got %s\nwant %s", x.Output, testutil.TopicXML)
	}
	if x.Fidelity.String() != "exact" {
		t.Errorf("fidelity = %s", x.Fidelity)
	}
}

func TestToXML_Sanitizes(t *testing.T) {
	e := testEnv(t, testOptions{sanitize: true})
	x := decode[markup.Result](t, e.do(t, http.MethodPost, "/xml/to-xml", MarkupRequest{
		Markup: `<div class="section"><p onclick="x()">Hi<script>alert(1)</script></p></div>`,
	}))
	if strings.Contains(x.Output, "script") || strings.Contains(x.Output, "onclick") {
		t.Errorf("unsanitized output: %s", x.Output)
	}
}

func TestDetectChanges(t *testing.T) {
	e := testEnv(t, testOptions{})
	res := decode[ChangesResponse](t, e.do(t, http.MethodPost, "/xml/changes", ChangesRequest{
		Original: `<topic><para id="1">Old</para></topic>`,
		Current:  `<topic><para id="1">New</para><para>Extra</para></topic>`,
	}))
	if len(res.Modifications) != 1 || len(res.Additions) != 1 || len(res.Deletions) != 0 {
		t.Errorf("changes = %+v", res.Changes)
	}
	if !strings.Contains(res.Description, "Modified: para content changed") {
		t.Errorf("description = %q", res.Description)
	}
}

func TestInsertRevision(t *testing.T) {
	e := testEnv(t, testOptions{})
	res := decode[revision.Result](t, e.do(t, http.MethodPost, "/xml/revision", InsertRevisionRequest{
		XML:     testutil.SectionXML,
		Number:  "1.1",
		Date:    "2025-01-31",
		Comment: "Checked.",
	}))
	if !strings.Contains(res.XML, "<RevisionNumber>1.1</RevisionNumber>") {
		t.Errorf("xml = %s", res.XML)
	}
	if res.Fidelity.String() != "exact" {
		t.Errorf("fidelity = %s", res.Fidelity)
	}

	w := e.do(t, http.MethodPost, "/xml/revision", InsertRevisionRequest{XML: testutil.SectionXML, Number: "1.1"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing comment = %d, want 400", w.Code)
	}
}

func TestAIEndpoint(t *testing.T) {
	e := testEnv(t, testOptions{})

	w := e.do(t, http.MethodPost, "/ai", AIRequest{Prompt: "xml_validation", Context: "<a/>"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	res := decode[AIResponse](t, w)
	if !res.Success || res.Model != ai.MockModel || res.Response == "" {
		t.Errorf("response = %+v", res)
	}
	if res.Usage == nil || res.Usage.TotalTokens == 0 {
		t.Errorf("usage = %+v", res.Usage)
	}

	// Unknown keywords fall back to the default template.
	if w := e.do(t, http.MethodPost, "/ai", AIRequest{Prompt: "bogus"}); w.Code != http.StatusOK {
		t.Errorf("unknown task = %d, want 200", w.Code)
	}

	bad := 5.0
	if w := e.do(t, http.MethodPost, "/ai", AIRequest{Temperature: &bad}); w.Code != http.StatusBadRequest {
		t.Errorf("temperature 5 = %d, want 400", w.Code)
	}
}

func TestAIEndpoint_NotConfigured(t *testing.T) {
	gw := ai.NewGateway("openai", ai.NewOpenAI(ai.OpenAIConfig{}), ai.WithGatewayLogger(quietLogger()))
	e := testEnv(t, testOptions{gateway: gw})

	w := e.do(t, http.MethodPost, "/ai", AIRequest{Prompt: "xml_expert"})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if res := decode[AIResponse](t, w); res.Success || res.Error == "" {
		t.Errorf("response = %+v", res)
	}

	info := decode[ai.Info](t, e.do(t, http.MethodGet, "/ai/info", nil))
	if info.Provider != "openai" || info.Configured {
		t.Errorf("info = %+v", info)
	}
}

func TestSessionLifecycle(t *testing.T) {
	e := testEnv(t, testOptions{})

	w := e.do(t, http.MethodPost, "/sessions/from-document", FromDocumentRequest{Path: "topic.xml"})
	if w.Code != http.StatusCreated {
		t.Fatalf("open = %d, body = %s", w.Code, w.Body.String())
	}
	s := decode[session.Session](t, w)
	base := "/sessions/" + s.ID

	edited := strings.Replace(testutil.TopicXML, "Turn the key.", "Turn the key slowly.", 1)
	content := decode[ContentResponse](t, e.do(t, http.MethodPut, base+"/content", XMLRequest{XML: edited}))
	if !content.Validation.Valid || content.Session.Current != edited {
		t.Fatalf("content = %+v", content)
	}

	m := decode[markup.Result](t, e.do(t, http.MethodGet, base+"/markup", nil))
	if !strings.Contains(m.Output, "Turn the key slowly.") {
		t.Errorf("markup = %s", m.Output)
	}

	a := decode[session.Analysis](t, e.do(t, http.MethodPost, base+"/analysis", nil))
	if a.Source != session.SourceAI || len(a.Changes.Modifications) != 1 {
		t.Errorf("analysis = %+v", a)
	}

	d := decode[session.Draft](t, e.do(t, http.MethodPost, base+"/revision/draft", nil))
	if d.Number != "1.1" || d.Comment == "" {
		t.Errorf("draft = %+v", d)
	}

	w = e.do(t, http.MethodPost, base+"/revision", RevisionRequest{Number: d.Number, Date: "2025-01-31", Comment: "Clarified start."})
	if w.Code != http.StatusCreated {
		t.Fatalf("finalize = %d, body = %s", w.Code, w.Body.String())
	}
	if f := decode[session.Finalized](t, w); f.Fidelity.String() != "exact" {
		t.Errorf("fidelity = %s", f.Fidelity)
	}

	revs := decode[RevisionsResponse](t, e.do(t, http.MethodGet, base+"/revisions", nil))
	if len(revs.Revisions) != 1 || revs.Revisions[0].Comment != "Clarified start." {
		t.Errorf("revisions = %+v", revs.Revisions)
	}

	w = e.do(t, http.MethodGet, base+"/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment; filename=document_") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.Contains(w.Body.String(), "<Revisions>") {
		t.Errorf("export body = %s", w.Body.String())
	}

	list := decode[SessionListResponse](t, e.do(t, http.MethodGet, "/sessions", nil))
	if len(list.Sessions) != 1 || list.Sessions[0].Revisions != 1 {
		t.Errorf("sessions = %+v", list.Sessions)
	}

	if w := e.do(t, http.MethodDelete, base, nil); w.Code != http.StatusNoContent {
		t.Fatalf("close = %d", w.Code)
	}
	if w := e.do(t, http.MethodGet, base, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after close = %d, want 404", w.Code)
	}
}

func TestFinalizeRevision_MissingFields(t *testing.T) {
	e := testEnv(t, testOptions{})
	s := decode[session.Session](t, e.do(t, http.MethodPost, "/sessions", OpenSessionRequest{Name: "a.xml", XML: testutil.SectionXML}))

	w := e.do(t, http.MethodPost, "/sessions/"+s.ID+"/revision", RevisionRequest{Number: "1.1"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSetMarkup(t *testing.T) {
	e := testEnv(t, testOptions{})
	s := decode[session.Session](t, e.do(t, http.MethodPost, "/sessions", OpenSessionRequest{Name: "a.xml", XML: testutil.SectionXML}))

	res := decode[MarkupResponse](t, e.do(t, http.MethodPut, "/sessions/"+s.ID+"/markup", MarkupRequest{
		Markup: `<div class="section"><p>Replaced</p></div>`,
	}))
	if res.Session == nil || !strings.Contains(res.Session.Current, "<para>Replaced</para>") {
		t.Errorf("response = %+v", res)
	}
}

func TestValidateSession(t *testing.T) {
	e := testEnv(t, testOptions{})
	s := decode[session.Session](t, e.do(t, http.MethodPost, "/sessions", OpenSessionRequest{XML: "<topic>"}))

	v := decode[struct {
		Valid bool `json:"valid"`
	}](t, e.do(t, http.MethodPost, "/sessions/"+s.ID+"/validate", nil))
	if v.Valid {
		t.Error("unclosed root should be invalid")
	}
	if w := e.do(t, http.MethodPost, "/sessions/missing/validate", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing session = %d, want 404", w.Code)
	}
}

func TestImportSession_Multipart(t *testing.T) {
	e := testEnv(t, testOptions{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "uploaded.xml")
	_, _ = part.Write(append([]byte("\ufeff"), testutil.SectionXML...))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/sessions/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("import = %d, body = %s", w.Code, w.Body.String())
	}
	s := decode[session.Session](t, w)
	if s.Name != "uploaded.xml" || s.Current != testutil.SectionXML {
		t.Errorf("session = %+v", s)
	}
}

func TestImportSession_RawBody(t *testing.T) {
	e := testEnv(t, testOptions{})

	req := httptest.NewRequest(http.MethodPost, "/sessions/import?name=raw.xml", strings.NewReader(testutil.IndexXML))
	req.Header.Set("Content-Type", "application/xml")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("import = %d", w.Code)
	}
	if s := decode[session.Session](t, w); s.Name != "raw.xml" {
		t.Errorf("name = %q", s.Name)
	}

	req = httptest.NewRequest(http.MethodPost, "/sessions/import", strings.NewReader(""))
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty import = %d, want 400", w.Code)
	}
}

func TestImportSession_MissingFileField(t *testing.T) {
	e := testEnv(t, testOptions{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("other", "x")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/sessions/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestApplyEditsAndAsk(t *testing.T) {
	e := testEnv(t, testOptions{})
	s := decode[session.Session](t, e.do(t, http.MethodPost, "/sessions", OpenSessionRequest{Name: "t.xml", XML: testutil.TopicXML}))
	base := "/sessions/" + s.ID

	w := e.do(t, http.MethodPost, base+"/edits", EditsRequest{Instructions: "Keep everything."})
	if w.Code != http.StatusOK {
		t.Fatalf("edits = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode[session.Session](t, w); got.Current != testutil.TopicXML {
		t.Errorf("current = %s", got.Current)
	}
	if w := e.do(t, http.MethodPost, base+"/edits", EditsRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("blank instructions = %d, want 400", w.Code)
	}

	res := decode[AIResponse](t, e.do(t, http.MethodPost, base+"/ask", AskRequest{Task: "xml_analysis", Prompt: "please validate"}))
	if !res.Success || !strings.Contains(res.Response, "Validation") {
		t.Errorf("ask = %+v", res)
	}
	if w := e.do(t, http.MethodPost, "/sessions/missing/ask", AskRequest{}); w.Code != http.StatusNotFound {
		t.Errorf("missing session = %d, want 404", w.Code)
	}
}

func TestHistory(t *testing.T) {
	e := testEnv(t, testOptions{archive: true})
	s := decode[session.Session](t, e.do(t, http.MethodPost, "/sessions", OpenSessionRequest{Name: "engine.xml", XML: testutil.TopicXML}))
	base := "/sessions/" + s.ID

	w := e.do(t, http.MethodPost, base+"/revision", RevisionRequest{Number: "1.1", Date: "2025-01-31", Comment: "First pass."})
	if w.Code != http.StatusCreated {
		t.Fatalf("finalize = %d", w.Code)
	}
	h := decode[HistoryResponse](t, e.do(t, http.MethodGet, base+"/history", nil))
	if len(h.Commits) != 1 || h.Commits[0].Message != "Revision 1.1: First pass." {
		t.Errorf("commits = %+v", h.Commits)
	}

	noArchive := testEnv(t, testOptions{})
	s = decode[session.Session](t, noArchive.do(t, http.MethodPost, "/sessions", OpenSessionRequest{XML: "<a/>"}))
	if w := noArchive.do(t, http.MethodGet, "/sessions/"+s.ID+"/history", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("history without archive = %d, want 503", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	e := testEnv(t, testOptions{token: "secret123"})

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	e := testEnv(t, testOptions{token: "secret123"})

	w := e.do(t, http.MethodGet, "/documents", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	e := testEnv(t, testOptions{token: "secret123"})

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	e := testEnv(t, testOptions{})

	w := e.do(t, http.MethodGet, "/documents", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	events := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	e := testEnv(t, testOptions{token: "tok", events: events})

	w := e.do(t, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status with token = %d, want 200", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	r := chi.NewRouter()
	ready := true
	MountHealth(r, map[string]Check{
		"catalog": func(context.Context) error {
			if !ready {
				return errors.New("closed")
			}
			return nil
		},
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	body := decode[map[string]string](t, w)
	if body["status"] != "healthy" {
		t.Errorf("status = %q", body["status"])
	}
	if _, err := time.Parse(time.RFC3339Nano, body["timestamp"]); err != nil {
		t.Errorf("timestamp %q: %v", body["timestamp"], err)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusOK {
		t.Errorf("ready = %d", w.Code)
	}

	ready = false
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("ready with failing check = %d, want 503", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", apperr.ErrNotFound), http.StatusNotFound},
		{apperr.ErrConflict, http.StatusConflict},
		{apperr.ErrAlreadyExists, http.StatusConflict},
		{apperr.ErrInvalid, http.StatusBadRequest},
		{apperr.ErrMalformed, http.StatusUnprocessableEntity},
		{apperr.ErrNotConfigured, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
