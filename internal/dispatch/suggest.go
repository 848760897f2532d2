package dispatch

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/patchcat/internal/errdef"
	"github.com/unkn0wn-root/patchcat/internal/model"
	"github.com/unkn0wn-root/patchcat/internal/workspace"
)

const (
	MsgThinking  = "Thinking..."
	MsgChatError = "Sorry, I couldn't answer that."
)

func (s *Session) suggestions(msgID string) ([]model.Suggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.state.AIMessages {
		if m.ID != msgID {
			continue
		}
		if len(m.Suggestions) == 0 {
			return nil, errdef.New(errdef.CodeValidation, "message %s has no suggestions", msgID)
		}
		out := make([]model.Suggestion, len(m.Suggestions))
		for i, sg := range m.Suggestions {
			out[i] = model.Suggestion{
				SuggestionText: sg.SuggestionText,
				APIRequest:     sg.APIRequest.Clone(),
			}
		}
		return out, nil
	}
	return nil, errdef.New(errdef.CodeValidation, "unknown ai message %s", msgID)
}

// AcceptSuggestion opens suggestion index of message msgID as a new active
// tab and returns its id.
func (s *Session) AcceptSuggestion(msgID string, index int) (string, error) {
	list, err := s.suggestions(msgID)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(list) {
		return "", errdef.New(errdef.CodeValidation, "suggestion %d out of range", index)
	}
	return s.openSuggestion(list[index], true), nil
}

// AcceptAllSuggestions opens every suggestion of msgID in order. Only the
// first becomes active.
func (s *Session) AcceptAllSuggestions(msgID string) ([]string, error) {
	list, err := s.suggestions(msgID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(list))
	for i, sg := range list {
		ids = append(ids, s.openSuggestion(sg, i == 0))
	}
	return ids, nil
}

func (s *Session) openSuggestion(sg model.Suggestion, active bool) string {
	partial := suggestedRequest(sg.APIRequest)
	protocol := model.ProtocolREST
	if partial.Protocol != nil && partial.Protocol.Valid() {
		protocol = *partial.Protocol
	}
	a := workspace.NewAddTab(protocol, &partial, active)
	s.Dispatch(a)
	return a.TabID
}

// suggestedRequest prepares a generated request for a tab: the id is dropped
// so the tab gets a fresh one, and the body always becomes raw.
func suggestedRequest(p model.PartialRequest) model.PartialRequest {
	out := p.Clone()
	out.ID = nil
	out.IsAIGenerated = model.Ptr(true)

	body := model.RawBody("")
	if p.Body != nil {
		body = model.RawBody(p.Body.Content)
	}
	out.Body = &body

	for i := range out.Headers {
		if out.Headers[i].ID == "" {
			out.Headers[i].ID = uuid.NewString()
		}
	}
	for i := range out.QueryParams {
		if out.QueryParams[i].ID == "" {
			out.QueryParams[i].ID = uuid.NewString()
		}
	}
	return out
}

// Chat posts prompt to the assistant. The exchange is recorded in the AI log;
// the returned error is the assistant failure, if any.
func (s *Session) Chat(ctx context.Context, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil
	}
	s.Dispatch(workspace.NewAIMessage(model.AIUser, prompt))
	s.Dispatch(workspace.NewAIMessage(model.AIThinking, MsgThinking))

	settings := s.State().Settings
	if s.assistant == nil {
		err := errdef.New(errdef.CodeAI, "assistant unavailable")
		s.Dispatch(workspace.NewAIMessage(model.AIError, MsgChatError))
		return err
	}
	reply, err := s.assistant.Chat(ctx, prompt, settings.AICredential)
	if err != nil {
		s.logf("ai chat error: %v", err)
		s.Dispatch(workspace.NewAIMessage(model.AIError, MsgChatError))
		return err
	}
	s.Dispatch(workspace.NewAIMessage(model.AIInfo, reply))
	return nil
}
