package model

// PartialRequest is a sparse Request: nil fields are left untouched by Apply.
// A nil slice means "unset"; pass an empty slice to clear headers or params.
type PartialRequest struct {
	ID            *string    `json:"id,omitempty"`
	Name          *string    `json:"name,omitempty"`
	Protocol      *Protocol  `json:"protocol,omitempty"`
	URL           *string    `json:"url,omitempty"`
	Method        *string    `json:"method,omitempty"`
	Headers       []KeyValue `json:"headers,omitempty"`
	QueryParams   []KeyValue `json:"queryParams,omitempty"`
	Body          *Body      `json:"body,omitempty"`
	Auth          *Auth      `json:"auth,omitempty"`
	IsAIGenerated *bool      `json:"isAiGenerated,omitempty"`
	Status        *int       `json:"status,omitempty"`
	OperationName *string    `json:"operationName,omitempty"`
}

func Ptr[T any](v T) *T {
	return &v
}

// Apply returns r with every set field of p copied over it.
func (p PartialRequest) Apply(r Request) Request {
	out := r.Clone()
	if p.ID != nil {
		out.ID = *p.ID
	}
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Protocol != nil {
		out.Protocol = *p.Protocol
	}
	if p.URL != nil {
		out.URL = *p.URL
	}
	if p.Method != nil {
		out.Method = *p.Method
	}
	if p.Headers != nil {
		out.Headers = cloneKeyValues(p.Headers)
	}
	if p.QueryParams != nil {
		out.QueryParams = cloneKeyValues(p.QueryParams)
	}
	if p.Body != nil {
		out.Body = p.Body.Clone()
	}
	if p.Auth != nil {
		out.Auth = *p.Auth
	}
	if p.IsAIGenerated != nil {
		out.IsAIGenerated = *p.IsAIGenerated
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.OperationName != nil {
		out.OperationName = *p.OperationName
	}
	return out
}

func (p PartialRequest) Clone() PartialRequest {
	out := p
	if p.Headers != nil {
		out.Headers = cloneKeyValues(p.Headers)
	}
	if p.QueryParams != nil {
		out.QueryParams = cloneKeyValues(p.QueryParams)
	}
	if p.Body != nil {
		body := p.Body.Clone()
		out.Body = &body
	}
	return out
}

// PartialOf converts a full request into a partial with every field set.
func PartialOf(r Request) PartialRequest {
	body := r.Body.Clone()
	auth := r.Auth
	return PartialRequest{
		ID:            Ptr(r.ID),
		Name:          Ptr(r.Name),
		Protocol:      Ptr(r.Protocol),
		URL:           Ptr(r.URL),
		Method:        Ptr(r.Method),
		Headers:       nonNilKeyValues(r.Headers),
		QueryParams:   nonNilKeyValues(r.QueryParams),
		Body:          &body,
		Auth:          &auth,
		IsAIGenerated: Ptr(r.IsAIGenerated),
		Status:        Ptr(r.Status),
		OperationName: Ptr(r.OperationName),
	}
}

func nonNilKeyValues(in []KeyValue) []KeyValue {
	if in == nil {
		return []KeyValue{}
	}
	return cloneKeyValues(in)
}
