package model

func cloneKeyValues(in []KeyValue) []KeyValue {
	if in == nil {
		return nil
	}
	return append([]KeyValue(nil), in...)
}

func (r Request) Clone() Request {
	out := r
	out.Headers = cloneKeyValues(r.Headers)
	out.QueryParams = cloneKeyValues(r.QueryParams)
	out.Body = r.Body.Clone()
	return out
}

func (t Tab) Clone() Tab {
	out := t
	out.Request = t.Request.Clone()
	if t.Response != nil {
		resp := t.Response.Clone()
		out.Response = &resp
	}
	if t.WSMessages != nil {
		out.WSMessages = append([]WSMessage(nil), t.WSMessages...)
	}
	return out
}

func (e Environment) Clone() Environment {
	out := e
	out.Variables = cloneKeyValues(e.Variables)
	return out
}

func (s Settings) Clone() Settings {
	out := s
	out.GlobalHeaders = cloneKeyValues(s.GlobalHeaders)
	out.GlobalQueryParams = cloneKeyValues(s.GlobalQueryParams)
	if s.Environments != nil {
		out.Environments = make([]Environment, len(s.Environments))
		for i, env := range s.Environments {
			out.Environments[i] = env.Clone()
		}
	}
	return out
}

func (m AIMessage) Clone() AIMessage {
	out := m
	if m.Suggestions != nil {
		out.Suggestions = make([]Suggestion, len(m.Suggestions))
		for i, s := range m.Suggestions {
			out.Suggestions[i] = Suggestion{
				SuggestionText: s.SuggestionText,
				APIRequest:     s.APIRequest.Clone(),
			}
		}
	}
	return out
}
