package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/unkn0wn-root/patchcat/internal/ai"
	"github.com/unkn0wn-root/patchcat/internal/httpclient"
	"github.com/unkn0wn-root/patchcat/internal/model"
	"github.com/unkn0wn-root/patchcat/internal/workspace"
)

type fakeAssistant struct {
	mu       sync.Mutex
	result   ai.Result
	reply    string
	chatErr  error
	analyzed int
	extras   []string
	prompts  []string
}

func (f *fakeAssistant) Analyze(_ context.Context, _ model.Request, _ model.Response, _ []model.Request, _ string, extra string) ai.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyzed++
	f.extras = append(f.extras, extra)
	return f.result
}

func (f *fakeAssistant) Chat(_ context.Context, prompt, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.chatErr
}

func (f *fakeAssistant) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.analyzed
}

type fakePersister struct {
	mu    sync.Mutex
	saves int
	err   error
}

func (p *fakePersister) Save(context.Context, workspace.State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	return p.err
}

func (p *fakePersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}

// newSession returns a session holding a single tab built from partial.
func newSession(t *testing.T, protocol model.Protocol, partial model.PartialRequest, opts Options) (*Session, string) {
	t.Helper()
	state := workspace.InitialState()
	first := state.ActiveTabID
	add := workspace.NewAddTab(protocol, &partial, true)
	state = workspace.Reduce(state, add)
	state = workspace.Reduce(state, workspace.NewCloseTab(first))
	if opts.Transport == nil {
		opts.Transport = httpclient.NewClient(httpclient.Options{Timeout: 5 * time.Second})
	}
	s := New(&state, opts)
	t.Cleanup(s.Close)
	return s, add.TabID
}

func mustTab(t *testing.T, s *Session, id string) model.Tab {
	t.Helper()
	tab, ok := s.State().Tab(id)
	if !ok {
		t.Fatalf("expected tab %s to exist", id)
	}
	return tab
}

func waitFor(t *testing.T, s *Session, what string, cond func(workspace.State) bool) workspace.State {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		st := s.State()
		if cond(st) {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func lastAI(st workspace.State) model.AIMessage {
	if len(st.AIMessages) == 0 {
		return model.AIMessage{}
	}
	return st.AIMessages[len(st.AIMessages)-1]
}

func jsonServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSendStoresResponseHistoryAndSuggestions(t *testing.T) {
	t.Parallel()
	srv := jsonServer(t, `{"id":1}`)
	assistant := &fakeAssistant{result: ai.Result{
		Kind: ai.Suggestions,
		Suggestions: []model.Suggestion{{
			SuggestionText: "Fetch the next item",
			APIRequest:     model.PartialRequest{URL: model.Ptr(srv.URL + "/2")},
		}},
	}}
	s, id := newSession(t, model.ProtocolREST, model.PartialRequest{URL: model.Ptr(srv.URL)}, Options{Assistant: assistant})

	if err := s.Send(context.Background(), id); err != nil {
		t.Fatalf("send: %v", err)
	}
	s.Wait()

	st := s.State()
	tab, _ := st.Tab(id)
	if tab.IsLoading {
		t.Fatalf("expected loading to be cleared")
	}
	if tab.Response == nil || tab.Response.Status != http.StatusOK {
		t.Fatalf("expected 200 response, got %+v", tab.Response)
	}
	if tab.Response.Data.Kind != model.DataJSON {
		t.Fatalf("expected json data, got %v", tab.Response.Data.Kind)
	}
	if tab.Response.Headers["content-type"] != "application/json" {
		t.Fatalf("expected lowercased content-type header, got %v", tab.Response.Headers)
	}
	if len(st.History) != 1 || st.History[0].URL != srv.URL {
		t.Fatalf("expected one history entry, got %+v", st.History)
	}
	if len(st.AnalyzedRequestsCache) != 1 {
		t.Fatalf("expected analysis cache entry, got %v", st.AnalyzedRequestsCache)
	}
	msg := lastAI(st)
	if msg.Type != model.AISuggestion || msg.Content != MsgSuggestions || len(msg.Suggestions) != 1 {
		t.Fatalf("expected suggestion message, got %+v", msg)
	}
	for _, m := range st.AIMessages {
		if m.Type == model.AIThinking {
			t.Fatalf("expected thinking message to be replaced, got %+v", st.AIMessages)
		}
	}
}

func TestSendSkipsAnalysisWhenDisabled(t *testing.T) {
	t.Parallel()
	srv := jsonServer(t, `{}`)
	assistant := &fakeAssistant{}
	s, id := newSession(t, model.ProtocolREST, model.PartialRequest{URL: model.Ptr(srv.URL)}, Options{Assistant: assistant})
	s.Dispatch(workspace.UpdateSettings{Settings: workspace.PartialSettings{AIEnabled: model.Ptr(false)}})

	if err := s.Send(context.Background(), id); err != nil {
		t.Fatalf("send: %v", err)
	}
	s.Wait()
	if assistant.calls() != 0 {
		t.Fatalf("expected no analysis, got %d calls", assistant.calls())
	}
	if len(s.State().AnalyzedRequestsCache) != 0 {
		t.Fatalf("expected empty analysis cache")
	}
}

func TestSendCacheHitReportsAlreadyAnalyzed(t *testing.T) {
	t.Parallel()
	srv := jsonServer(t, `{"ok":true}`)
	assistant := &fakeAssistant{result: ai.Result{Kind: ai.Suggestions, Suggestions: []model.Suggestion{}}}
	s, id := newSession(t, model.ProtocolREST, model.PartialRequest{URL: model.Ptr(srv.URL)}, Options{Assistant: assistant})

	for i := 0; i < 2; i++ {
		if err := s.Send(context.Background(), id); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		s.Wait()
	}
	if assistant.calls() != 1 {
		t.Fatalf("expected one analysis, got %d", assistant.calls())
	}
	st := s.State()
	if got := lastAI(st).Content; got != MsgAlreadyAnalyzed {
		t.Fatalf("expected %q, got %q", MsgAlreadyAnalyzed, got)
	}
	reqID := mustTab(t, s, id).Request.ID
	if len(st.History) != 1 || st.History[0].ID != reqID {
		t.Fatalf("expected one history entry for %q, got %+v", reqID, st.History)
	}
	found := false
	for _, m := range st.AIMessages {
		if m.Content == MsgNoSuggestions {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected no-suggestions message from first analysis, got %+v", st.AIMessages)
	}
}

func TestSendSkippedLargeAndFailedAnalysis(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		result ai.Result
		kind   model.AIMessageType
		want   string
	}{
		{"skipped", ai.Result{Kind: ai.SkippedLarge}, model.AIInfo, MsgSkippedLarge},
		{"failed", ai.Result{Kind: ai.Failed, Err: errors.New("quota")}, model.AIError, MsgAnalysisFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := jsonServer(t, `{"n":1}`)
			assistant := &fakeAssistant{result: tc.result}
			var logged []string
			var mu sync.Mutex
			logf := func(format string, args ...any) {
				mu.Lock()
				logged = append(logged, format)
				mu.Unlock()
			}
			s, id := newSession(t, model.ProtocolREST, model.PartialRequest{URL: model.Ptr(srv.URL)}, Options{Assistant: assistant, Logf: logf})
			if err := s.Send(context.Background(), id); err != nil {
				t.Fatalf("send: %v", err)
			}
			s.Wait()
			msg := lastAI(s.State())
			if msg.Type != tc.kind || msg.Content != tc.want {
				t.Fatalf("expected %s %q, got %+v", tc.kind, tc.want, msg)
			}
			mu.Lock()
			defer mu.Unlock()
			if tc.result.Err != nil && len(logged) == 0 {
				t.Fatalf("expected analysis error to be logged")
			}
		})
	}
}

func TestSendBusyAndCancel(t *testing.T) {
	t.Parallel()
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	s, id := newSession(t, model.ProtocolREST, model.PartialRequest{URL: model.Ptr(srv.URL)}, Options{})
	if err := s.Send(context.Background(), id); err != nil {
		t.Fatalf("send: %v", err)
	}
	<-started
	if !mustTab(t, s, id).IsLoading {
		t.Fatalf("expected tab to be loading")
	}
	if err := s.Send(context.Background(), id); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if !s.Cancel(id) {
		t.Fatalf("expected cancel to find the send")
	}
	s.Wait()

	tab := mustTab(t, s, id)
	if tab.IsLoading || tab.Response == nil {
		t.Fatalf("expected a response after cancel, got %+v", tab)
	}
	if tab.Response.Status != 0 || tab.Response.StatusText != StatusCancelled {
		t.Fatalf("expected cancelled response, got %+v", tab.Response)
	}
	if s.InFlight(id) {
		t.Fatalf("expected no send in flight")
	}
	if len(s.State().History) != 0 {
		t.Fatalf("expected cancelled send to stay out of history")
	}
	if s.Cancel(id) {
		t.Fatalf("expected second cancel to be a no-op")
	}
}

func TestSendNetworkError(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	s, id := newSession(t, model.ProtocolREST, model.PartialRequest{URL: model.Ptr("http://" + addr)}, Options{Assistant: &fakeAssistant{}})
	if err := s.Send(context.Background(), id); err != nil {
		t.Fatalf("send: %v", err)
	}
	s.Wait()

	tab := mustTab(t, s, id)
	if tab.Response == nil || tab.Response.Status != 0 || tab.Response.StatusText != StatusNetworkError {
		t.Fatalf("expected network error response, got %+v", tab.Response)
	}
	msg := lastAI(s.State())
	if msg.Type != model.AIError || !strings.HasPrefix(msg.Content, "Network request failed: ") {
		t.Fatalf("expected network failure message, got %+v", msg)
	}
}

func TestSendInvalidURL(t *testing.T) {
	t.Parallel()
	s, id := newSession(t, model.ProtocolREST, model.PartialRequest{URL: model.Ptr("not a url")}, Options{})
	if err := s.Send(context.Background(), id); err != nil {
		t.Fatalf("send: %v", err)
	}
	s.Wait()
	tab := mustTab(t, s, id)
	if tab.Response == nil || tab.Response.StatusText != StatusInvalidRequest {
		t.Fatalf("expected invalid request response, got %+v", tab.Response)
	}
}

func TestSendRejectsUnknownAndWebSocketTabs(t *testing.T) {
	t.Parallel()
	s, id := newSession(t, model.ProtocolWebSocket, model.PartialRequest{}, Options{})
	if err := s.Send(context.Background(), "missing"); !errors.Is(err, ErrUnknownTab) {
		t.Fatalf("expected ErrUnknownTab, got %v", err)
	}
	if err := s.Send(context.Background(), id); err == nil {
		t.Fatalf("expected websocket tab to be rejected")
	}
}

func TestSendGraphQLPayload(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	var got map[string]any
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"data":{"todo":{"id":"7"}}}`)
	}))
	t.Cleanup(srv.Close)

	s, id := newSession(t, model.ProtocolGraphQL, model.PartialRequest{
		URL:           model.Ptr(srv.URL),
		OperationName: model.Ptr("GetTodo"),
		Headers:       []model.KeyValue{{ID: "h", Key: "Content-Type", Value: "text/plain", Enabled: true}},
	}, Options{})
	s.Dispatch(workspace.UpdateGQLVariables{TabID: id, Variables: `{"id": 7}`})

	if err := s.Send(context.Background(), id); err != nil {
		t.Fatalf("send: %v", err)
	}
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	if contentType != "application/json" {
		t.Fatalf("expected application/json, got %q", contentType)
	}
	if got["query"] != workspace.DefaultGraphQLQuery {
		t.Fatalf("expected default query, got %v", got["query"])
	}
	if got["operationName"] != "GetTodo" {
		t.Fatalf("expected operation name, got %v", got["operationName"])
	}
	vars, ok := got["variables"].(map[string]any)
	if !ok || vars["id"] != float64(7) {
		t.Fatalf("expected variables {id: 7}, got %v", got["variables"])
	}
	if tab := mustTab(t, s, id); tab.Response == nil || tab.Response.Status != http.StatusOK {
		t.Fatalf("expected 200 response, got %+v", tab.Response)
	}
}

func TestSendGraphQLBadVariables(t *testing.T) {
	t.Parallel()
	hit := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))
	t.Cleanup(srv.Close)

	s, id := newSession(t, model.ProtocolGraphQL, model.PartialRequest{URL: model.Ptr(srv.URL)}, Options{})
	s.Dispatch(workspace.UpdateGQLVariables{TabID: id, Variables: `{"id":`})
	if err := s.Send(context.Background(), id); err != nil {
		t.Fatalf("send: %v", err)
	}
	s.Wait()
	if hit {
		t.Fatalf("expected no request for invalid variables")
	}
	tab := mustTab(t, s, id)
	if tab.Response == nil || tab.Response.Status != 0 || tab.Response.StatusText != StatusInvalidRequest {
		t.Fatalf("expected invalid request response, got %+v", tab.Response)
	}
}

func TestSendFormDataWithAttachment(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	var fileBody, note string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		note = r.FormValue("note")
		f, _, err := r.FormFile("upload")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		fileBody = string(data)
	}))
	t.Cleanup(srv.Close)

	body := model.FormBody(
		model.FormDataField{ID: "f1", Key: "note", Value: "hi", Type: model.FieldText, Enabled: true},
		model.FormDataField{ID: "f2", Key: "upload", Type: model.FieldFile, Enabled: true},
	)
	s, id := newSession(t, model.ProtocolREST, model.PartialRequest{
		URL:    model.Ptr(srv.URL),
		Method: model.Ptr(model.MethodPost),
		Body:   &body,
	}, Options{})
	s.Attach(id, "f2", httpclient.Attachment{Name: "a.txt", ContentType: "text/plain", Data: []byte("file data")})

	if err := s.Send(context.Background(), id); err != nil {
		t.Fatalf("send: %v", err)
	}
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	if note != "hi" || fileBody != "file data" {
		t.Fatalf("expected multipart fields, got note=%q file=%q", note, fileBody)
	}
}

func TestPersistsEveryActionExceptLoad(t *testing.T) {
	t.Parallel()
	p := &fakePersister{}
	s, id := newSession(t, model.ProtocolREST, model.PartialRequest{}, Options{Persister: p})

	s.Dispatch(workspace.UpdateTabName{TabID: id, Name: "renamed"})
	s.Dispatch(workspace.ClearHistory{})
	if got := p.count(); got != 2 {
		t.Fatalf("expected 2 saves, got %d", got)
	}
	s.Load(workspace.InitialState())
	if got := p.count(); got != 2 {
		t.Fatalf("expected load not to persist, got %d saves", got)
	}
	s.Persist()
	if got := p.count(); got != 3 {
		t.Fatalf("expected explicit persist, got %d saves", got)
	}
}

func TestPersistErrorIsLogged(t *testing.T) {
	t.Parallel()
	p := &fakePersister{err: errors.New("disk full")}
	var mu sync.Mutex
	var logged []string
	s, _ := newSession(t, model.ProtocolREST, model.PartialRequest{}, Options{
		Persister: p,
		Logf: func(format string, args ...any) {
			mu.Lock()
			logged = append(logged, format)
			mu.Unlock()
		},
	})
	s.Dispatch(workspace.ClearHistory{})
	mu.Lock()
	defer mu.Unlock()
	if len(logged) != 1 {
		t.Fatalf("expected one logged save error, got %v", logged)
	}
}

func TestOnChangeSeesEveryAction(t *testing.T) {
	t.Parallel()
	s, id := newSession(t, model.ProtocolREST, model.PartialRequest{}, Options{})
	var names []string
	s.OnChange(func(st workspace.State) {
		tab, _ := st.Tab(id)
		names = append(names, tab.Name)
	})
	s.Dispatch(workspace.UpdateTabName{TabID: id, Name: "a"})
	s.Dispatch(workspace.UpdateTabName{TabID: id, Name: "b"})
	if strings.Join(names, ",") != "a,b" {
		t.Fatalf("expected a,b got %v", names)
	}
}

func TestCloseTabCancelsSend(t *testing.T) {
	t.Parallel()
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	s, id := newSession(t, model.ProtocolREST, model.PartialRequest{URL: model.Ptr(srv.URL)}, Options{})
	if err := s.Send(context.Background(), id); err != nil {
		t.Fatalf("send: %v", err)
	}
	<-started
	st := s.CloseTab(id)
	s.Wait()
	if _, ok := st.Tab(id); ok {
		t.Fatalf("expected tab to be removed")
	}
	if len(s.State().Tabs) != 1 {
		t.Fatalf("expected a fallback tab, got %d", len(s.State().Tabs))
	}
	if s.InFlight(id) {
		t.Fatalf("expected send to be released")
	}
}

func startEchoServer(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			t.Errorf("websocket accept failed: %v", err)
			return
		}
		defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
		ctx := r.Context()
		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if err := conn.Write(ctx, typ, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func wsContents(tab model.Tab, dir model.WSDirection) []string {
	var out []string
	for _, m := range tab.WSMessages {
		if m.Direction == dir {
			out = append(out, m.Content)
		}
	}
	return out
}

func TestWebSocketLifecycle(t *testing.T) {
	t.Parallel()
	target := startEchoServer(t)
	s, id := newSession(t, model.ProtocolWebSocket, model.PartialRequest{URL: model.Ptr(target)}, Options{})

	if err := s.SendWS(context.Background(), id, "early"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := s.ConnectWS(context.Background(), id); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if got := mustTab(t, s, id).WSStatus; got != model.WSConnected {
		t.Fatalf("expected connected, got %q", got)
	}
	if err := s.ConnectWS(context.Background(), id); err != nil {
		t.Fatalf("second connect: %v", err)
	}
	if err := s.SendWS(context.Background(), id, ""); err != nil {
		t.Fatalf("empty send: %v", err)
	}
	if err := s.SendWS(context.Background(), id, "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	waitFor(t, s, "echo", func(st workspace.State) bool {
		tab, _ := st.Tab(id)
		return len(wsContents(tab, model.WSReceived)) == 1
	})

	s.DisconnectWS(id)
	s.DisconnectWS(id)

	tab := mustTab(t, s, id)
	if tab.WSStatus != model.WSDisconnected {
		t.Fatalf("expected disconnected, got %q", tab.WSStatus)
	}
	system := wsContents(tab, model.WSSystem)
	want := []string{
		"Connecting to " + target + "...",
		MsgWSEstablished,
		"Connection closed. Code: 1000. Reason: No reason specified",
	}
	if strings.Join(system, "|") != strings.Join(want, "|") {
		t.Fatalf("expected system messages %q, got %q", want, system)
	}
	if sent := wsContents(tab, model.WSSent); len(sent) != 1 || sent[0] != "hello" {
		t.Fatalf("expected one sent message, got %q", sent)
	}
	if got := wsContents(tab, model.WSReceived); got[0] != "hello" {
		t.Fatalf("expected echo, got %q", got)
	}
	if err := s.SendWS(context.Background(), id, "late"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected after disconnect, got %v", err)
	}
}

func TestAbandonedSocketReadsDisconnected(t *testing.T) {
	t.Parallel()
	s, id := newSession(t, model.ProtocolWebSocket, model.PartialRequest{URL: model.Ptr("ws://127.0.0.1:1")}, Options{})
	stuck := &httpclient.WSConn{}
	s.mu.Lock()
	s.sockets[id] = stuck
	s.mu.Unlock()
	s.Dispatch(workspace.SetWSStatus{TabID: id, Status: model.WSConnected})

	s.abandon(id, stuck)

	if got := mustTab(t, s, id).WSStatus; got != model.WSDisconnected {
		t.Fatalf("expected %q, got %q", model.WSDisconnected, got)
	}
	if s.liveSocket(id) != nil {
		t.Fatal("expected abandoned socket to be dropped")
	}
	if err := s.SendWS(context.Background(), id, "late"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestWebSocketInvalidURL(t *testing.T) {
	t.Parallel()
	s, id := newSession(t, model.ProtocolWebSocket, model.PartialRequest{URL: model.Ptr("http://example.com")}, Options{})
	if err := s.ConnectWS(context.Background(), id); err != nil {
		t.Fatalf("connect: %v", err)
	}
	tab := mustTab(t, s, id)
	if tab.WSStatus != model.WSDisconnected {
		t.Fatalf("expected disconnected, got %q", tab.WSStatus)
	}
	if got := wsContents(tab, model.WSSystem); len(got) != 1 || got[0] != MsgInvalidWSURL {
		t.Fatalf("expected invalid url message, got %q", got)
	}
}

func TestWebSocketDialFailure(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	s, id := newSession(t, model.ProtocolWebSocket, model.PartialRequest{URL: model.Ptr("ws://" + addr)}, Options{})
	if err := s.ConnectWS(context.Background(), id); err != nil {
		t.Fatalf("connect: %v", err)
	}
	tab := mustTab(t, s, id)
	if tab.WSStatus != model.WSDisconnected {
		t.Fatalf("expected disconnected, got %q", tab.WSStatus)
	}
	system := wsContents(tab, model.WSSystem)
	if len(system) != 3 || system[1] != MsgWSError || system[2] != "Connection closed. Code: 1006. Reason: No reason specified" {
		t.Fatalf("unexpected system messages %q", system)
	}
}

func TestLeavingWebSocketDisconnects(t *testing.T) {
	t.Parallel()
	target := startEchoServer(t)
	s, id := newSession(t, model.ProtocolWebSocket, model.PartialRequest{URL: model.Ptr(target)}, Options{})
	if err := s.ConnectWS(context.Background(), id); err != nil {
		t.Fatalf("connect: %v", err)
	}
	s.UpdateRequest(id, model.PartialRequest{Protocol: model.Ptr(model.ProtocolREST)})
	waitFor(t, s, "socket teardown", func(workspace.State) bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.sockets[id] == nil
	})
	tab := mustTab(t, s, id)
	if tab.Request.Protocol != model.ProtocolREST || len(tab.WSMessages) != 0 {
		t.Fatalf("expected a rest tab without ws state, got %+v", tab)
	}
}

func introspectionServer(t *testing.T, hits *int, mu *sync.Mutex) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		*hits++
		mu.Unlock()
		if r.Header.Get("X-Token") != "abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"data":{"__schema":{"queryType":{"name":"Query"},"types":[{"kind":"OBJECT","name":"Query","fields":[{"name":"todo","args":[],"type":{"kind":"OBJECT","name":"Todo"}}]}]}}}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchSchema(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	hits := 0
	srv := introspectionServer(t, &hits, &mu)

	s, id := newSession(t, model.ProtocolGraphQL, model.PartialRequest{
		URL:     model.Ptr(srv.URL),
		Headers: []model.KeyValue{{ID: "h", Key: "X-Token", Value: "abc", Enabled: true}},
	}, Options{})
	if err := s.FetchSchema(context.Background(), id); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	tab := mustTab(t, s, id)
	if tab.GQLSchemaLoading || tab.GQLSchemaError != "" {
		t.Fatalf("expected loaded schema state, got %+v", tab)
	}
	if tab.GQLSchema == nil || tab.GQLSchema.TypeByName("Query") == nil {
		t.Fatalf("expected schema with Query type, got %+v", tab.GQLSchema)
	}
}

func TestFetchSchemaFailureAndPlaceholder(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	hits := 0
	srv := introspectionServer(t, &hits, &mu)

	s, id := newSession(t, model.ProtocolGraphQL, model.PartialRequest{URL: model.Ptr(srv.URL)}, Options{})
	if err := s.FetchSchema(context.Background(), id); err == nil {
		t.Fatalf("expected error for unauthorized introspection")
	}
	tab := mustTab(t, s, id)
	if tab.GQLSchemaLoading || tab.GQLSchemaError == "" {
		t.Fatalf("expected error state, got %+v", tab)
	}

	s2, id2 := newSession(t, model.ProtocolGraphQL, model.PartialRequest{URL: model.Ptr(workspace.GraphQLPlaceholder)}, Options{})
	if err := s2.FetchSchema(context.Background(), id2); err != nil {
		t.Fatalf("expected placeholder url to be skipped, got %v", err)
	}
	if mustTab(t, s2, id2).GQLSchemaLoading {
		t.Fatalf("expected placeholder url not to start loading")
	}
}

func TestUpdateRequestFetchesSchemaOnURLChange(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	hits := 0
	srv := introspectionServer(t, &hits, &mu)

	s, id := newSession(t, model.ProtocolGraphQL, model.PartialRequest{
		URL:     model.Ptr(workspace.GraphQLPlaceholder),
		Headers: []model.KeyValue{{ID: "h", Key: "X-Token", Value: "abc", Enabled: true}},
	}, Options{})
	s.UpdateRequest(id, model.PartialRequest{URL: model.Ptr(srv.URL)})
	s.Wait()
	if tab := mustTab(t, s, id); tab.GQLSchema == nil {
		t.Fatalf("expected schema after url change, got %+v", tab)
	}
	s.UpdateRequest(id, model.PartialRequest{Name: model.Ptr("renamed")})
	s.Wait()
	mu.Lock()
	defer mu.Unlock()
	if hits != 1 {
		t.Fatalf("expected one introspection request, got %d", hits)
	}
}

func suggestionState(t *testing.T, s *Session) string {
	t.Helper()
	headers := []model.KeyValue{{Key: "Accept", Value: "application/json", Enabled: true}}
	body := model.FormBody()
	a := workspace.NewAIMessage(model.AISuggestion, MsgSuggestions,
		model.Suggestion{SuggestionText: "one", APIRequest: model.PartialRequest{
			ID:      model.Ptr("generated"),
			Name:    model.Ptr("Get todo 2"),
			URL:     model.Ptr("https://example.com/todos/2"),
			Method:  model.Ptr(model.MethodGet),
			Headers: headers,
		}},
		model.Suggestion{SuggestionText: "two", APIRequest: model.PartialRequest{
			Name: model.Ptr("Create todo"),
			Body: &body,
		}},
	)
	s.Dispatch(a)
	return a.Message.ID
}

func TestAcceptSuggestion(t *testing.T) {
	t.Parallel()
	s, _ := newSession(t, model.ProtocolREST, model.PartialRequest{}, Options{})
	msgID := suggestionState(t, s)

	tabID, err := s.AcceptSuggestion(msgID, 0)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	st := s.State()
	if st.ActiveTabID != tabID {
		t.Fatalf("expected new tab to be active")
	}
	tab, _ := st.Tab(tabID)
	if tab.Request.ID == "generated" || tab.Request.ID == "" {
		t.Fatalf("expected fresh request id, got %q", tab.Request.ID)
	}
	if !tab.Request.IsAIGenerated || tab.Name != "Get todo 2" {
		t.Fatalf("unexpected request %+v", tab.Request)
	}
	if tab.Request.Body.Kind != model.BodyRaw || tab.Request.Body.Content != "" {
		t.Fatalf("expected empty raw body, got %+v", tab.Request.Body)
	}
	if len(tab.Request.Headers) != 1 || tab.Request.Headers[0].ID == "" {
		t.Fatalf("expected header with id, got %+v", tab.Request.Headers)
	}

	if _, err := s.AcceptSuggestion(msgID, 5); err == nil {
		t.Fatalf("expected out of range error")
	}
	if _, err := s.AcceptSuggestion("missing", 0); err == nil {
		t.Fatalf("expected unknown message error")
	}
}

func TestAcceptAllSuggestions(t *testing.T) {
	t.Parallel()
	s, original := newSession(t, model.ProtocolREST, model.PartialRequest{}, Options{})
	msgID := suggestionState(t, s)

	ids, err := s.AcceptAllSuggestions(msgID)
	if err != nil {
		t.Fatalf("accept all: %v", err)
	}
	st := s.State()
	if len(ids) != 2 || len(st.Tabs) != 3 {
		t.Fatalf("expected two new tabs, got ids=%v tabs=%d", ids, len(st.Tabs))
	}
	if st.ActiveTabID != ids[0] || st.ActiveTabID == original {
		t.Fatalf("expected first suggestion to be active")
	}
	second, _ := st.Tab(ids[1])
	if second.Request.Body.Kind != model.BodyRaw {
		t.Fatalf("expected form body to be coerced to raw, got %q", second.Request.Body.Kind)
	}
}

func TestChat(t *testing.T) {
	t.Parallel()
	assistant := &fakeAssistant{reply: "Try a 404 case."}
	s, _ := newSession(t, model.ProtocolREST, model.PartialRequest{}, Options{Assistant: assistant})

	if err := s.Chat(context.Background(), "  what next?  "); err != nil {
		t.Fatalf("chat: %v", err)
	}
	st := s.State()
	n := len(st.AIMessages)
	if n < 2 {
		t.Fatalf("expected user and reply messages, got %+v", st.AIMessages)
	}
	user, reply := st.AIMessages[n-2], st.AIMessages[n-1]
	if user.Type != model.AIUser || user.Content != "what next?" {
		t.Fatalf("unexpected user message %+v", user)
	}
	if reply.Type != model.AIInfo || reply.Content != "Try a 404 case." {
		t.Fatalf("unexpected reply %+v", reply)
	}

	assistant.chatErr = errors.New("boom")
	if err := s.Chat(context.Background(), "again"); err == nil {
		t.Fatalf("expected chat error")
	}
	if msg := lastAI(s.State()); msg.Type != model.AIError || msg.Content != MsgChatError {
		t.Fatalf("expected chat error message, got %+v", msg)
	}
}

func TestCacheKeyStable(t *testing.T) {
	t.Parallel()
	req := model.Request{Method: "GET", URL: "https://a", Body: model.RawBody("")}
	resp := model.Response{Status: 200, Data: model.TextData("ok")}
	if CacheKey(req, resp) != CacheKey(req, resp) {
		t.Fatalf("expected cache key to be deterministic")
	}
	other := resp
	other.Status = 201
	if CacheKey(req, resp) == CacheKey(req, other) {
		t.Fatalf("expected status to change the key")
	}
	resp.Time = 999
	if CacheKey(req, resp) != CacheKey(req, model.Response{Status: 200, Data: model.TextData("ok")}) {
		t.Fatalf("expected timing not to change the key")
	}
}
