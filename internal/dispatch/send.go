package dispatch

import (
	"context"
	"errors"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/unkn0wn-root/patchcat/internal/ai"
	"github.com/unkn0wn-root/patchcat/internal/errdef"
	"github.com/unkn0wn-root/patchcat/internal/gql"
	"github.com/unkn0wn-root/patchcat/internal/httpclient"
	"github.com/unkn0wn-root/patchcat/internal/merge"
	"github.com/unkn0wn-root/patchcat/internal/model"
	"github.com/unkn0wn-root/patchcat/internal/nettrace"
	"github.com/unkn0wn-root/patchcat/internal/vars"
	"github.com/unkn0wn-root/patchcat/internal/workspace"
)

const (
	StatusNetworkError   = "Network Error"
	StatusCancelled      = "Request Cancelled"
	StatusInvalidRequest = "Invalid Request"

	MsgAnalyzing       = "Analyzing response..."
	MsgAlreadyAnalyzed = "This response has already been analyzed."
	MsgSuggestions     = "Here are some suggestions for your next test:"
	MsgNoSuggestions   = "Looks good! I don't have any specific suggestions right now."
	MsgAnalysisFailed  = "Sorry, I couldn't analyze the response."
	MsgSkippedLarge    = "This response is larger than 100KB, so I skipped the analysis."
)

type sendJob struct {
	tab      model.Tab
	settings model.Settings
	history  []model.Request
	files    map[string]httpclient.Attachment
}

// Send starts the tab's request in the background. It fails only when the tab
// is unknown, is a WebSocket tab, or already has a send in flight; every other
// failure ends as a response on the tab.
func (s *Session) Send(ctx context.Context, tabID string) error {
	s.mu.Lock()
	tab, ok := s.state.Tab(tabID)
	if !ok {
		s.mu.Unlock()
		return ErrUnknownTab
	}
	if tab.Request.Protocol == model.ProtocolWebSocket {
		s.mu.Unlock()
		return errdef.New(errdef.CodeValidation, "websocket tabs connect instead of send")
	}
	if _, busy := s.inflight[tabID]; busy {
		s.mu.Unlock()
		return ErrBusy
	}
	sendCtx, cancel := context.WithCancel(ctx)
	s.inflight[tabID] = cancel
	job := sendJob{
		tab:      tab,
		settings: s.state.Settings.Clone(),
		history:  slices.Clone(s.state.History),
	}
	s.mu.Unlock()
	job.files = s.attachmentsFor(tabID)

	s.Dispatch(workspace.SetLoading{TabID: tabID, Loading: true})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runSend(sendCtx, cancel, job)
	}()
	return nil
}

// Cancel aborts the tab's in-flight send; the tab ends with a cancelled response.
func (s *Session) Cancel(tabID string) bool {
	s.mu.Lock()
	cancel, ok := s.inflight[tabID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// InFlight reports whether tabID has a send running.
func (s *Session) InFlight(tabID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[tabID]
	return ok
}

func (s *Session) release(tabID string, cancel context.CancelFunc) {
	s.mu.Lock()
	delete(s.inflight, tabID)
	s.mu.Unlock()
	cancel()
}

// Timeline returns the network phases of the tab's last successful send. It is
// kept in memory only.
func (s *Session) Timeline(tabID string) *nettrace.Timeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timelines[tabID].Clone()
}

func (s *Session) runSend(ctx context.Context, cancel context.CancelFunc, job sendJob) {
	tabID := job.tab.ID
	start := s.now()
	elapsed := func() int64 { return s.now().Sub(start).Milliseconds() }

	out, used, err := s.buildOutbound(job)
	if err != nil {
		s.release(tabID, cancel)
		s.Dispatch(workspace.SetResponse{
			TabID:    tabID,
			Response: model.NetworkError(StatusInvalidRequest, errdef.Message(err), elapsed()),
		})
		return
	}

	if s.transport == nil {
		err = errdef.New(errdef.CodeHTTP, "transport unavailable")
	}
	var raw *httpclient.Raw
	if err == nil {
		raw, err = s.transport.Send(ctx, out)
	}
	if err != nil {
		cancelled := errors.Is(ctx.Err(), context.Canceled)
		s.release(tabID, cancel)
		if cancelled {
			s.Dispatch(workspace.SetResponse{
				TabID:    tabID,
				Response: model.NetworkError(StatusCancelled, "The request was cancelled.", elapsed()),
			})
			return
		}
		msg := errdef.Message(err)
		s.Dispatch(workspace.SetResponse{
			TabID:    tabID,
			Response: model.NetworkError(StatusNetworkError, msg, elapsed()),
		})
		if job.settings.AIEnabled {
			s.Dispatch(workspace.NewAIMessage(model.AIError, "Network request failed: "+msg))
		}
		return
	}

	resp := httpclient.ToResponse(raw)
	s.mu.Lock()
	s.timelines[tabID] = raw.Timeline
	s.mu.Unlock()
	s.release(tabID, cancel)
	s.Dispatch(workspace.SetResponse{TabID: tabID, Response: resp})
	s.Dispatch(workspace.AddHistory{Request: job.tab.Request})

	if job.settings.AIEnabled {
		s.analyze(context.WithoutCancel(ctx), job, resp, used)
	}
}

// buildOutbound resolves the tab's request. GraphQL tabs send the query, the
// operation name and the resolved variables as a JSON payload.
func (s *Session) buildOutbound(job sendJob) (httpclient.Outbound, map[string]string, error) {
	req := job.tab.Request
	eff, err := merge.Build(req, job.settings)
	if err != nil {
		return httpclient.Outbound{}, nil, err
	}
	out := httpclient.FromEffective(req.Name, eff)
	used := eff.UsedVariables()
	if used == nil {
		used = map[string]string{}
	}

	switch {
	case req.Protocol == model.ProtocolGraphQL:
		r := vars.NewResolver(job.settings.ActiveEnvironment())
		variables := r.Resolve(job.tab.GQLVariables)
		maps.Copy(used, r.Used())
		if err := applyGraphQL(&out, eff, req.OperationName, variables); err != nil {
			return httpclient.Outbound{}, nil, err
		}
	case eff.Body.Kind == model.BodyFormData:
		out.Files = job.files
	case eff.Body.Kind == model.BodyBinary:
		if att, ok := job.files[BinaryField]; ok {
			out.Binary = &att
		}
	}
	out.Used = used
	return out, used, nil
}

func applyGraphQL(out *httpclient.Outbound, eff merge.Effective, operationName, variables string) error {
	query := ""
	if eff.Body.Kind == model.BodyRaw {
		query = eff.Body.Content
	}
	if !eff.HasBody {
		if _, err := gql.ParseVariables(variables); err != nil {
			return err
		}
		u, err := url.Parse(out.URL)
		if err != nil {
			return errdef.Wrap(errdef.CodeValidation, err, "invalid URL %q", out.URL)
		}
		q := u.Query()
		q.Set("query", query)
		if operationName != "" {
			q.Set("operationName", operationName)
		}
		if strings.TrimSpace(variables) != "" {
			q.Set("variables", strings.TrimSpace(variables))
		}
		u.RawQuery = q.Encode()
		out.URL = u.String()
		return nil
	}

	payload, err := gql.Payload(query, operationName, variables)
	if err != nil {
		return err
	}
	out.Body = model.RawBody(string(payload))
	headers := make([]merge.Pair, 0, len(out.Headers)+1)
	for _, h := range out.Headers {
		if !strings.EqualFold(h.Key, "Content-Type") {
			headers = append(headers, h)
		}
	}
	out.Headers = append(headers, merge.Pair{Key: "Content-Type", Value: "application/json"})
	return nil
}

func (s *Session) analyze(ctx context.Context, job sendJob, resp model.Response, used map[string]string) {
	key := CacheKey(job.tab.Request, resp)
	s.mu.Lock()
	cached := s.state.AnalysisCached(key)
	s.mu.Unlock()
	if cached {
		s.Dispatch(workspace.NewAIMessage(model.AIInfo, MsgAlreadyAnalyzed))
		return
	}

	s.Dispatch(workspace.AddToAnalysisCache{Key: key})
	s.Dispatch(workspace.NewAIMessage(model.AIThinking, MsgAnalyzing))

	if s.assistant == nil {
		s.Dispatch(workspace.NewAIMessage(model.AIError, MsgAnalysisFailed))
		return
	}
	res := s.assistant.Analyze(ctx, job.tab.Request, resp, job.history, job.settings.AICredential, analysisContext(used))
	switch res.Kind {
	case ai.Suggestions:
		if len(res.Suggestions) == 0 {
			s.Dispatch(workspace.NewAIMessage(model.AIInfo, MsgNoSuggestions))
			return
		}
		s.Dispatch(workspace.NewAIMessage(model.AISuggestion, MsgSuggestions, res.Suggestions...))
	case ai.SkippedLarge:
		s.Dispatch(workspace.NewAIMessage(model.AIInfo, MsgSkippedLarge))
	default:
		if res.Err != nil {
			s.logf("ai analysis error: %v", res.Err)
		}
		s.Dispatch(workspace.NewAIMessage(model.AIError, MsgAnalysisFailed))
	}
}

// analysisContext names the substituted variables without their values.
func analysisContext(used map[string]string) string {
	if len(used) == 0 {
		return ""
	}
	keys := slices.Sorted(maps.Keys(used))
	return "The URL, headers and body contain environment placeholders in [key] form. Substituted keys: " +
		strings.Join(keys, ", ") + "."
}
