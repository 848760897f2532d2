// Package merge combines a request with the workspace-wide settings and the
// active environment into the request that actually goes on the wire.
package merge

import (
	"encoding/json"
	"maps"
	"net/url"
	"strings"

	"github.com/unkn0wn-root/patchcat/internal/errdef"
	"github.com/unkn0wn-root/patchcat/internal/model"
	"github.com/unkn0wn-root/patchcat/internal/vars"
)

const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
)

type Pair struct {
	Key   string
	Value string
}

// Effective is a fully resolved request. Headers already include the bearer
// Authorization header and any inferred Content-Type.
type Effective struct {
	Method      string
	URL         string
	Headers     []Pair
	QueryParams []Pair
	Auth        model.Auth
	Body        model.Body
	HasBody     bool
	Used        map[string]string
}

// ResolveAuth returns global when req is absent or inherits, otherwise req.
// An explicit none on the request suppresses global auth.
func ResolveAuth(req *model.Auth, global model.Auth) model.Auth {
	if req == nil || req.Inherits() {
		return global
	}
	return *req
}

// ResolveHeaders concatenates global then request headers, keeping only enabled
// entries with a key. Duplicate keys are kept in order.
func ResolveHeaders(req, global []model.KeyValue) []Pair {
	return enabledPairs(global, req)
}

func ResolveQueryParams(req, global []model.KeyValue) []Pair {
	return enabledPairs(global, req)
}

func enabledPairs(lists ...[]model.KeyValue) []Pair {
	out := []Pair{}
	for _, list := range lists {
		for _, item := range list {
			if !item.Enabled || item.Key == "" {
				continue
			}
			out = append(out, Pair{Key: item.Key, Value: item.Value})
		}
	}
	return out
}

// ContentTypeFor infers a content type for a raw body.
func ContentTypeFor(raw string) string {
	if json.Valid([]byte(raw)) {
		return "application/json"
	}
	return "text/plain"
}

// MethodAllowsBody reports whether a body is sent for method.
func MethodAllowsBody(method string) bool {
	switch strings.ToUpper(method) {
	case model.MethodGet, model.MethodHead:
		return false
	}
	return true
}

// Build resolves req against settings and the active environment.
// It fails only when the resolved URL is not absolute.
func Build(req model.Request, settings model.Settings) (Effective, error) {
	r := vars.NewResolver(settings.ActiveEnvironment())

	auth := ResolveAuth(&req.Auth, settings.GlobalAuth)
	if auth.Type == model.AuthBearer {
		auth.Token = r.Resolve(auth.Token)
	}

	headers := ResolveHeaders(req.Headers, settings.GlobalHeaders)
	for i := range headers {
		headers[i].Value = r.Resolve(headers[i].Value)
	}
	params := ResolveQueryParams(req.QueryParams, settings.GlobalQueryParams)
	for i := range params {
		params[i].Value = r.Resolve(params[i].Value)
	}

	target, err := buildURL(r.Resolve(req.URL), params)
	if err != nil {
		return Effective{}, err
	}

	if auth.Type == model.AuthBearer && auth.Token != "" {
		headers = append(headers, Pair{Key: headerAuthorization, Value: "Bearer " + auth.Token})
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = model.MethodGet
	}
	eff := Effective{
		Method:      method,
		URL:         target,
		Headers:     headers,
		QueryParams: params,
		Auth:        auth,
		HasBody:     MethodAllowsBody(method),
	}
	if eff.HasBody {
		eff.Body = resolveBody(req.Body, r)
		if eff.Body.Kind == model.BodyRaw && eff.Body.Content != "" && !HasHeader(headers, headerContentType) {
			eff.Headers = append(eff.Headers, Pair{Key: headerContentType, Value: ContentTypeFor(eff.Body.Content)})
		}
	}
	eff.Used = r.Used()
	return eff, nil
}

func resolveBody(body model.Body, r *vars.Resolver) model.Body {
	out := body.Clone()
	switch out.Kind {
	case model.BodyRaw:
		out.Content = r.Resolve(out.Content)
	case model.BodyFormData:
		for i := range out.Fields {
			if out.Fields[i].Type == model.FieldText {
				out.Fields[i].Value = r.Resolve(out.Fields[i].Value)
			}
		}
	}
	return out
}

func buildURL(raw string, params []Pair) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", errdef.Wrap(errdef.CodeValidation, err, "invalid URL %q", raw)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errdef.New(errdef.CodeValidation, "invalid URL %q", raw)
	}
	if len(params) == 0 {
		return u.String(), nil
	}
	var b strings.Builder
	b.WriteString(u.RawQuery)
	for _, p := range params {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	u.RawQuery = b.String()
	return u.String(), nil
}

func HasHeader(headers []Pair, name string) bool {
	for _, h := range headers {
		if strings.EqualFold(h.Key, name) {
			return true
		}
	}
	return false
}

// Header returns the first value for name.
func (e Effective) Header(name string) (string, bool) {
	for _, h := range e.Headers {
		if strings.EqualFold(h.Key, name) {
			return h.Value, true
		}
	}
	return "", false
}

// UsedVariables returns a copy safe for callers to keep.
func (e Effective) UsedVariables() map[string]string {
	return maps.Clone(e.Used)
}
