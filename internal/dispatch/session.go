// Package dispatch runs the side effects around the workspace reducer: sends,
// sockets, schema fetches and AI analysis. Every state change goes through
// Session.Dispatch.
package dispatch

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/patchcat/internal/ai"
	"github.com/unkn0wn-root/patchcat/internal/errdef"
	"github.com/unkn0wn-root/patchcat/internal/httpclient"
	"github.com/unkn0wn-root/patchcat/internal/merge"
	"github.com/unkn0wn-root/patchcat/internal/model"
	"github.com/unkn0wn-root/patchcat/internal/nettrace"
	"github.com/unkn0wn-root/patchcat/internal/workspace"
)

var (
	ErrBusy         = errdef.New(errdef.CodeValidation, "a request is already in flight for this tab")
	ErrUnknownTab   = errdef.New(errdef.CodeValidation, "unknown tab")
	ErrNotConnected = errdef.New(errdef.CodeValidation, "websocket is not connected")
)

type Transport interface {
	Send(ctx context.Context, out httpclient.Outbound) (*httpclient.Raw, error)
	DialWebSocket(ctx context.Context, url string, headers []merge.Pair, h httpclient.Handlers) (*httpclient.WSConn, error)
}

type Assistant interface {
	Analyze(ctx context.Context, req model.Request, resp model.Response, history []model.Request, credential, extra string) ai.Result
	Chat(ctx context.Context, prompt, credential string) (string, error)
}

type Persister interface {
	Save(ctx context.Context, s workspace.State) error
}

type Options struct {
	Transport Transport
	Assistant Assistant
	Persister Persister
	Logf      func(format string, args ...any)
	Now       func() time.Time
}

type Session struct {
	mu     sync.Mutex
	notify sync.Mutex
	state  *workspace.State

	transport Transport
	assistant Assistant
	persister Persister
	logf      func(string, ...any)
	now       func() time.Time

	listeners   []func(workspace.State)
	inflight    map[string]context.CancelFunc
	sockets     map[string]*httpclient.WSConn
	attachments map[string]map[string]httpclient.Attachment
	timelines   map[string]*nettrace.Timeline

	schemas singleflight.Group
	wg      sync.WaitGroup
}

// New wraps state. The session owns state from here on; callers read it
// through State.
func New(state *workspace.State, opts Options) *Session {
	if state == nil {
		initial := workspace.InitialState()
		state = &initial
	}
	logf := opts.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Session{
		state:       state,
		transport:   opts.Transport,
		assistant:   opts.Assistant,
		persister:   opts.Persister,
		logf:        logf,
		now:         now,
		inflight:    make(map[string]context.CancelFunc),
		sockets:     make(map[string]*httpclient.WSConn),
		attachments: make(map[string]map[string]httpclient.Attachment),
		timelines:   make(map[string]*nettrace.Timeline),
	}
}

// OnChange registers fn to run after every dispatched action, in dispatch
// order. fn must not call Dispatch.
func (s *Session) OnChange(fn func(workspace.State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Dispatch applies a to the state and persists the result unless a is a
// LoadWorkspace.
func (s *Session) Dispatch(a workspace.Action) workspace.State {
	s.mu.Lock()
	next := workspace.Reduce(*s.state, a)
	*s.state = next
	listeners := slices.Clone(s.listeners)
	s.notify.Lock()
	s.mu.Unlock()
	defer s.notify.Unlock()

	if _, loading := a.(workspace.LoadWorkspace); !loading {
		s.save(next)
	}
	for _, fn := range listeners {
		fn(next)
	}
	return next
}

func (s *Session) save(state workspace.State) {
	if s.persister == nil {
		return
	}
	if err := s.persister.Save(context.Background(), state); err != nil {
		s.logf("snapshot save error: %v", err)
	}
}

// Persist writes the current state without dispatching.
func (s *Session) Persist() {
	s.notify.Lock()
	defer s.notify.Unlock()
	s.save(s.State())
}

func (s *Session) State() workspace.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

func (s *Session) tab(id string) (model.Tab, model.Settings, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tab, ok := s.state.Tab(id)
	return tab, s.state.Settings.Clone(), ok
}

// Wait blocks until every send, analysis and background schema fetch has finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Attach stores file content for a form-data field or, with fieldID
// BinaryField, for a binary body. Attachments live only in memory.
func (s *Session) Attach(tabID, fieldID string, att httpclient.Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := s.attachments[tabID]
	if files == nil {
		files = make(map[string]httpclient.Attachment)
		s.attachments[tabID] = files
	}
	files[fieldID] = att
}

// BinaryField is the attachment key for a binary body.
const BinaryField = "binary_file"

func (s *Session) attachmentsFor(tabID string) map[string]httpclient.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := s.attachments[tabID]
	if len(files) == 0 {
		return nil
	}
	out := make(map[string]httpclient.Attachment, len(files))
	for k, v := range files {
		out[k] = v
	}
	return out
}

// CloseTab tears down the tab's socket, in-flight send and attachments before
// removing it.
func (s *Session) CloseTab(tabID string) workspace.State {
	s.mu.Lock()
	cancel := s.inflight[tabID]
	delete(s.inflight, tabID)
	conn := s.sockets[tabID]
	delete(s.sockets, tabID)
	delete(s.attachments, tabID)
	delete(s.timelines, tabID)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	return s.Dispatch(workspace.NewCloseTab(tabID))
}

// UpdateRequest applies a partial edit. Leaving WebSocket closes the socket
// first and a GraphQL URL change starts a background schema fetch.
func (s *Session) UpdateRequest(tabID string, partial model.PartialRequest) workspace.State {
	prev, _, ok := s.tab(tabID)
	if ok && prev.Request.Protocol == model.ProtocolWebSocket &&
		partial.Protocol != nil && *partial.Protocol != model.ProtocolWebSocket {
		s.DisconnectWS(tabID)
	}
	next := s.Dispatch(workspace.UpdateRequest{TabID: tabID, Request: partial})
	if !ok {
		return next
	}
	nextTab, found := next.Tab(tabID)
	if !found {
		return next
	}
	if workspace.NeedsSchemaFetch(prev, nextTab) {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.FetchSchema(context.Background(), tabID); err != nil {
				s.logf("schema fetch error: %v", err)
			}
		}()
	}
	return next
}

// Load replaces the workspace. Sockets and sends belonging to the old
// workspace are torn down first.
func (s *Session) Load(snapshot workspace.State) workspace.State {
	s.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(s.inflight))
	for _, c := range s.inflight {
		cancels = append(cancels, c)
	}
	conns := make([]*httpclient.WSConn, 0, len(s.sockets))
	for _, c := range s.sockets {
		conns = append(conns, c)
	}
	s.inflight = make(map[string]context.CancelFunc)
	s.sockets = make(map[string]*httpclient.WSConn)
	s.attachments = make(map[string]map[string]httpclient.Attachment)
	s.timelines = make(map[string]*nettrace.Timeline)
	s.mu.Unlock()

	for _, c := range cancels {
		c()
	}
	for _, c := range conns {
		_ = c.Close()
	}
	return s.Dispatch(workspace.NewLoadWorkspace(snapshot))
}

// Close disconnects every socket and cancels in-flight sends, then waits for
// background work.
func (s *Session) Close() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sockets))
	for id := range s.sockets {
		ids = append(ids, id)
	}
	for _, c := range s.inflight {
		c()
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.DisconnectWS(id)
	}
	s.Wait()
}
