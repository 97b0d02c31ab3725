package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/xmledit/internal/ai"
	"github.com/starford/xmledit/internal/apperr"
	"github.com/starford/xmledit/internal/changes"
	"github.com/starford/xmledit/internal/fidelity"
	"github.com/starford/xmledit/internal/markup"
	"github.com/starford/xmledit/internal/revision"
	"github.com/starford/xmledit/internal/xmldoc"
)

// InitialNumber is the revision number of a document without revisions.
const InitialNumber = "1.0"

// Analysis sources.
const (
	SourceAI    = "ai"
	SourceBasic = "basic"
)

const (
	refreshAttempts = 5
	refreshDelay    = 100 * time.Millisecond
)

// Analysis describes what changed since the session's original snapshot.
type Analysis struct {
	Text    string          `json:"text"`
	Source  string          `json:"source"`
	Changes changes.Changes `json:"changes"`
}

// Draft is a proposed revision record.
type Draft struct {
	Number        string   `json:"number"`
	Date          string   `json:"date"`
	Analysis      Analysis `json:"analysis"`
	Comment       string   `json:"comment"`
	CommentSource string   `json:"comment_source"`
}

// RecordInput carries the fields of a revision to finalize.
type RecordInput struct {
	Number  string `json:"number"`
	Date    string `json:"date"`
	Comment string `json:"comment"`
}

// Finalized is the outcome of FinalizeRevision.
type Finalized struct {
	Session  *Session        `json:"session"`
	Record   revision.Record `json:"record"`
	Fidelity fidelity.Level  `json:"fidelity"`
}

// RevisionHook runs after a revision has been saved.
type RevisionHook func(ctx context.Context, f *Finalized)

// Manager runs document operations against sessions held in a Store.
type Manager struct {
	store      Store
	transcoder *markup.Transcoder
	gateway    *ai.Gateway
	hooks      []RevisionHook
	clock      func() time.Time
	logger     *slog.Logger

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithGateway enables AI analysis, comments and edits.
func WithGateway(g *ai.Gateway) Option {
	return func(m *Manager) { m.gateway = g }
}

// WithTranscoder replaces the default transcoder.
func WithTranscoder(t *markup.Transcoder) Option {
	return func(m *Manager) { m.transcoder = t }
}

// OnRevision registers a hook run after each finalized revision.
func OnRevision(h RevisionHook) Option {
	return func(m *Manager) { m.hooks = append(m.hooks, h) }
}

// WithClock sets the time source.
func WithClock(c func() time.Time) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		clock:  time.Now,
		logger: slog.Default(),
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.transcoder == nil {
		m.transcoder = markup.New(markup.WithLogger(m.logger))
	}
	return m
}

func (m *Manager) sessionLock(id string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

// update loads a session under its lock, applies fn and saves the result
// when fn succeeds.
func (m *Manager) update(ctx context.Context, id string, fn func(s *Session) error) (*Session, error) {
	l := m.sessionLock(id)
	l.Lock()
	defer l.Unlock()

	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	s.UpdatedAt = m.clock().UTC()
	if err := m.store.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Open starts a session for xml. The document does not have to be well
// formed. The next revision number continues from the last revision
// recorded in the document.
func (m *Manager) Open(ctx context.Context, name, xml string) (*Session, error) {
	now := m.clock().UTC()
	s := &Session{
		ID:        uuid.NewString(),
		Name:      name,
		Original:  xml,
		Current:   xml,
		Number:    InitialNumber,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if recs, err := revision.Extract(xml); err == nil && len(recs) > 0 {
		if n := recs[len(recs)-1].Number; n != "" {
			s.Number = n
		}
	}
	if err := m.store.Save(ctx, s); err != nil {
		return nil, err
	}
	m.logger.Info("session: opened", slog.String("id", s.ID), slog.String("name", name))
	return s, nil
}

// Import decodes raw file bytes and opens a session for them.
func (m *Manager) Import(ctx context.Context, name string, data []byte) (*Session, error) {
	xml, err := xmldoc.Decode(data)
	if err != nil {
		return nil, err
	}
	return m.Open(ctx, name, xml)
}

func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	return m.store.Get(ctx, id)
}

func (m *Manager) List(ctx context.Context) ([]*Session, error) {
	return m.store.List(ctx)
}

// Close discards a session. It waits for a pending update of the same
// session to finish.
func (m *Manager) Close(ctx context.Context, id string) error {
	l := m.sessionLock(id)
	l.Lock()
	defer l.Unlock()

	if _, err := m.store.Get(ctx, id); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.lockMu.Lock()
	delete(m.locks, id)
	m.lockMu.Unlock()
	m.logger.Info("session: closed", slog.String("id", id))
	return nil
}

// SetContent replaces the current document. Malformed content is stored;
// the returned Validation reports the problem.
func (m *Manager) SetContent(ctx context.Context, id, xml string) (*Session, xmldoc.Validation, error) {
	s, err := m.update(ctx, id, func(s *Session) error {
		s.Current = xml
		return nil
	})
	if err != nil {
		return nil, xmldoc.Validation{}, err
	}
	return s, xmldoc.Validate(xml), nil
}

// SetMarkup converts edited markup back to XML and stores it.
func (m *Manager) SetMarkup(ctx context.Context, id, html string) (*Session, markup.Result, error) {
	res := m.transcoder.MarkupToXML(html)
	s, err := m.update(ctx, id, func(s *Session) error {
		s.Current = res.Output
		return nil
	})
	if err != nil {
		return nil, markup.Result{}, err
	}
	return s, res, nil
}

// Markup renders the current document for the visual editor.
func (m *Manager) Markup(ctx context.Context, id string) (markup.Result, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return markup.Result{}, err
	}
	return m.transcoder.XMLToMarkup(s.Current), nil
}

func (m *Manager) Validate(ctx context.Context, id string) (xmldoc.Validation, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return xmldoc.Validation{}, err
	}
	return xmldoc.Validate(s.Current), nil
}

func (m *Manager) aiEnabled() bool {
	return m.gateway != nil && m.gateway.Configured()
}

// Analyze compares the current document with the original snapshot.
func (m *Manager) Analyze(ctx context.Context, id string) (Analysis, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return Analysis{}, err
	}
	return m.analyze(ctx, s), nil
}

func (m *Manager) analyze(ctx context.Context, s *Session) Analysis {
	c := changes.Detect(s.Original, s.Current)
	if m.aiEnabled() {
		temp := 0.3
		resp, err := m.gateway.Complete(ctx, ai.Request{
			Task:        ai.TaskChangeAnalysis,
			Prompt:      ai.ChangeAnalysisPrompt(s.Original, s.Current),
			MaxTokens:   500,
			Temperature: &temp,
		})
		if err == nil && strings.TrimSpace(resp.Text) != "" {
			return Analysis{Text: strings.TrimSpace(resp.Text), Source: SourceAI, Changes: c}
		}
		if err != nil {
			m.logger.Warn("session: ai analysis failed, using basic detection",
				slog.String("id", s.ID), slog.String("error", err.Error()))
		}
	}
	return Analysis{Text: changes.Describe(c), Source: SourceBasic, Changes: c}
}

// SuggestComment proposes a revision comment for an analysis text.
func (m *Manager) SuggestComment(ctx context.Context, analysis string) (comment, source string) {
	if m.aiEnabled() {
		temp := 0.2
		resp, err := m.gateway.Complete(ctx, ai.Request{
			Task:        ai.TaskRevisionComment,
			Prompt:      ai.CommentPrompt(analysis),
			MaxTokens:   100,
			Temperature: &temp,
		})
		if err == nil {
			return changes.CleanComment(resp.Text), SourceAI
		}
		m.logger.Warn("session: ai comment failed, using keyword rules", slog.String("error", err.Error()))
	}
	return changes.FallbackComment(analysis), SourceBasic
}

// PrepareRevision advances the session's revision number and proposes a
// record for it. Every call advances the number, finalized or not.
func (m *Manager) PrepareRevision(ctx context.Context, id string) (Draft, error) {
	s, err := m.update(ctx, id, func(s *Session) error {
		s.Number = revision.NextNumber(s.Number)
		return nil
	})
	if err != nil {
		return Draft{}, err
	}
	a := m.analyze(ctx, s)
	comment, source := m.SuggestComment(ctx, a.Text)
	return Draft{
		Number:        s.Number,
		Date:          revision.Today(m.clock),
		Analysis:      a,
		Comment:       comment,
		CommentSource: source,
	}, nil
}

// FinalizeRevision inserts a revision record into the current document and
// makes the result the new original snapshot.
func (m *Manager) FinalizeRevision(ctx context.Context, id string, in RecordInput) (*Finalized, error) {
	rec := revision.Record{
		Number:  strings.TrimSpace(in.Number),
		Date:    strings.TrimSpace(in.Date),
		Comment: strings.TrimSpace(in.Comment),
	}
	if rec.Number == "" || rec.Date == "" || rec.Comment == "" {
		return nil, fmt.Errorf("session: revision number, date and comment are required: %w", apperr.ErrInvalid)
	}

	var lvl fidelity.Level
	s, err := m.update(ctx, id, func(s *Session) error {
		rec.Timestamp = m.clock().UTC()
		res := revision.Insert(s.Current, rec)
		lvl = res.Fidelity
		s.Current = res.XML
		s.Original = res.XML
		s.Number = rec.Number
		s.Revisions = append(s.Revisions, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("session: revision finalized",
		slog.String("id", id),
		slog.String("number", rec.Number),
		slog.String("fidelity", lvl.String()))
	f := &Finalized{Session: s, Record: rec, Fidelity: lvl}
	for _, h := range m.hooks {
		h(ctx, f)
	}
	return f, nil
}

// Export returns a download name and the current document.
func (m *Manager) Export(ctx context.Context, id string) (name, content string, err error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return "", "", err
	}
	return "document_" + revision.Today(m.clock) + ".xml", s.Current, nil
}

// ApplyEdits asks the model to rewrite the current document following
// instructions. The rewrite replaces the document only when it is well
// formed.
func (m *Manager) ApplyEdits(ctx context.Context, id, instructions string) (*Session, error) {
	if !m.aiEnabled() {
		return nil, fmt.Errorf("session: apply edits: %w", apperr.ErrNotConfigured)
	}
	if strings.TrimSpace(instructions) == "" {
		return nil, fmt.Errorf("session: instructions are required: %w", apperr.ErrInvalid)
	}
	return m.update(ctx, id, func(s *Session) error {
		resp, err := m.gateway.Complete(ctx, ai.Request{
			Task:    ai.TaskProduceEdits,
			Context: instructions + "\n" + s.Current,
		})
		if err != nil {
			return err
		}
		doc, ok := ai.ExtractXML(resp.Text)
		if !ok {
			return fmt.Errorf("session: model reply holds no XML: %w", apperr.ErrInvalid)
		}
		if v := xmldoc.Validate(doc); !v.Valid {
			return fmt.Errorf("session: model reply is not well formed (line %d: %s): %w", v.Line, v.Error, apperr.ErrInvalid)
		}
		s.Current = doc
		return nil
	})
}

// Ask runs task over the current document with a user prompt.
func (m *Manager) Ask(ctx context.Context, id string, task ai.Task, prompt string) (*ai.Response, error) {
	if m.gateway == nil {
		return nil, fmt.Errorf("session: ask: %w", apperr.ErrNotConfigured)
	}
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	input := s.Current
	if p := strings.TrimSpace(prompt); p != "" {
		input = p + "\n" + s.Current
	}
	return m.gateway.Complete(ctx, ai.Request{Task: task, Context: input})
}

// RefreshRevisions reads the revision records stored in the current
// document. It waits briefly for content to appear and returns nothing,
// without an error, when the document stays empty or cannot be parsed.
func (m *Manager) RefreshRevisions(ctx context.Context, id string) ([]revision.Record, error) {
	var s *Session
	for attempt := 0; ; attempt++ {
		var err error
		s, err = m.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(s.Current) != "" {
			break
		}
		if attempt == refreshAttempts-1 {
			m.logger.Debug("session: no content to read revisions from", slog.String("id", id))
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(refreshDelay):
		}
	}

	recs, err := revision.Extract(s.Current)
	if err != nil {
		if errors.Is(err, apperr.ErrMalformed) {
			m.logger.Debug("session: revisions unreadable", slog.String("id", id), slog.String("error", err.Error()))
			return nil, nil
		}
		return nil, err
	}
	return recs, nil
}
