// Package openapi imports the operations of an OpenAPI 3 document as
// workspace requests. Server URLs, path parameters and credentials become
// [name] placeholders backed by an environment.
package openapi

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"

	"github.com/unkn0wn-root/patchcat/internal/errdef"
	"github.com/unkn0wn-root/patchcat/internal/model"
	"github.com/unkn0wn-root/patchcat/internal/workspace"
)

const (
	BaseURLVariable = "baseUrl"

	tokenVariable  = "token"
	basicVariable  = "basicAuth"
	apiKeyVariable = "apiKey"

	placeholderToken  = "replace-with-token"
	placeholderBasic  = "replace-with-base64-credentials"
	placeholderAPIKey = "replace-with-api-key"

	mimeJSON       = "application/json"
	mimeURLEncoded = "application/x-www-form-urlencoded"
	mimeMultipart  = "multipart/form-data"
)

type Options struct {
	// ServerIndex selects the document level server used for [baseUrl].
	ServerIndex         int
	IncludeDeprecated   bool
	Tags                []string
	ResolveExternalRefs bool
}

type Request struct {
	Name    string
	Request model.PartialRequest
}

type Import struct {
	Title     string
	Version   string
	Variables []model.KeyValue
	Requests  []Request
	Warnings  []string
}

// Environment returns the placeholder values as a new environment.
func (imp Import) Environment() model.Environment {
	name := imp.Title
	if name == "" {
		name = "openapi"
	}
	return workspace.NewEnvironment(name, imp.Variables...)
}

func LoadFile(ctx context.Context, path string, opts Options) (Import, error) {
	doc, err := newLoader(ctx, opts).LoadFromFile(path)
	if err != nil {
		return Import{}, errdef.Wrap(errdef.CodeParse, err, "load OpenAPI document %s", path)
	}
	return build(ctx, doc, opts)
}

func Load(ctx context.Context, data []byte, opts Options) (Import, error) {
	doc, err := newLoader(ctx, opts).LoadFromData(data)
	if err != nil {
		return Import{}, errdef.Wrap(errdef.CodeParse, err, "load OpenAPI document")
	}
	return build(ctx, doc, opts)
}

func newLoader(ctx context.Context, opts Options) *openapi3.Loader {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	loader.IsExternalRefsAllowed = opts.ResolveExternalRefs
	return loader
}

func build(ctx context.Context, doc *openapi3.T, opts Options) (Import, error) {
	if err := doc.Validate(ctx); err != nil {
		return Import{}, errdef.Wrap(errdef.CodeValidation, err, "validate OpenAPI document")
	}
	b := &builder{doc: doc, opts: opts, index: map[string]int{}, warned: map[string]bool{}}
	if doc.Info != nil {
		b.out.Title = doc.Info.Title
		b.out.Version = doc.Info.Version
	}
	b.base = b.baseURL()

	skipped := 0
	for _, path := range slices.Sorted(maps.Keys(doc.Paths.Map())) {
		item := doc.Paths.Value(path)
		if item == nil {
			continue
		}
		for _, entry := range operations(item) {
			if err := ctx.Err(); err != nil {
				return Import{}, err
			}
			if entry.op.Deprecated && !opts.IncludeDeprecated {
				skipped++
				continue
			}
			if !b.tagged(entry.op) {
				continue
			}
			b.out.Requests = append(b.out.Requests, b.request(path, entry.method, item, entry.op))
		}
	}
	if skipped > 0 {
		b.warn(fmt.Sprintf("skipped %d deprecated operation(s)", skipped))
	}
	return b.out, nil
}

type methodOp struct {
	method string
	op     *openapi3.Operation
}

func operations(item *openapi3.PathItem) []methodOp {
	all := []methodOp{
		{http.MethodGet, item.Get},
		{http.MethodPut, item.Put},
		{http.MethodPost, item.Post},
		{http.MethodDelete, item.Delete},
		{http.MethodOptions, item.Options},
		{http.MethodHead, item.Head},
		{http.MethodPatch, item.Patch},
		{http.MethodTrace, item.Trace},
	}
	out := all[:0]
	for _, entry := range all {
		if entry.op != nil {
			out = append(out, entry)
		}
	}
	return out
}

type builder struct {
	doc    *openapi3.T
	opts   Options
	out    Import
	base   string
	index  map[string]int
	warned map[string]bool
}

func (b *builder) warn(msg string) {
	if b.warned[msg] {
		return
	}
	b.warned[msg] = true
	b.out.Warnings = append(b.out.Warnings, msg)
}

// variable registers name with value unless it already exists and returns
// its placeholder. The first registration wins.
func (b *builder) variable(name, value string) string {
	if _, ok := b.index[name]; !ok {
		b.index[name] = len(b.out.Variables)
		b.out.Variables = append(b.out.Variables, workspace.NewKeyValue(name, value))
	}
	return "[" + name + "]"
}

func (b *builder) baseURL() string {
	servers := b.doc.Servers
	if len(servers) == 0 {
		b.warn("document declares no servers; URLs are relative")
		return ""
	}
	idx := b.opts.ServerIndex
	if idx < 0 || idx >= len(servers) {
		b.warn(fmt.Sprintf("server index %d out of range, using 0", idx))
		idx = 0
	}
	return b.variable(BaseURLVariable, strings.TrimSuffix(resolveServerURL(servers[idx]), "/"))
}

func (b *builder) tagged(op *openapi3.Operation) bool {
	if len(b.opts.Tags) == 0 {
		return true
	}
	for _, tag := range op.Tags {
		for _, want := range b.opts.Tags {
			if strings.EqualFold(tag, want) {
				return true
			}
		}
	}
	return false
}

// serverFor prefers operation servers, then path servers, then the document
// base.
func (b *builder) serverFor(item *openapi3.PathItem, op *openapi3.Operation) string {
	if op.Servers != nil && len(*op.Servers) > 0 {
		return strings.TrimSuffix(resolveServerURL((*op.Servers)[0]), "/")
	}
	if len(item.Servers) > 0 {
		return strings.TrimSuffix(resolveServerURL(item.Servers[0]), "/")
	}
	return b.base
}

func resolveServerURL(server *openapi3.Server) string {
	if server == nil {
		return ""
	}
	resolved := server.URL
	for name, variable := range server.Variables {
		if variable == nil {
			continue
		}
		replacement := variable.Default
		if replacement == "" && len(variable.Enum) > 0 {
			replacement = variable.Enum[0]
		}
		resolved = strings.ReplaceAll(resolved, "{"+name+"}", replacement)
	}
	return resolved
}

func requestName(method, path string, op *openapi3.Operation) string {
	switch {
	case op.OperationID != "":
		return op.OperationID
	case op.Summary != "":
		return op.Summary
	}
	return method + " " + path
}

func (b *builder) request(path, method string, item *openapi3.PathItem, op *openapi3.Operation) Request {
	name := requestName(method, path, op)
	target := b.serverFor(item, op) + path
	req := model.PartialRequest{
		Name:        &name,
		Method:      &method,
		Headers:     []model.KeyValue{},
		QueryParams: []model.KeyValue{},
	}

	var cookies []string
	for _, p := range mergeParameters(item.Parameters, op.Parameters) {
		value := parameterSample(p)
		switch p.In {
		case openapi3.ParameterInPath:
			target = strings.ReplaceAll(target, "{"+p.Name+"}", b.variable(p.Name, value))
		case openapi3.ParameterInQuery:
			req.QueryParams = append(req.QueryParams, row(p.Name, value, p.Required))
		case openapi3.ParameterInHeader:
			req.Headers = append(req.Headers, row(p.Name, value, p.Required))
		case openapi3.ParameterInCookie:
			cookies = append(cookies, p.Name+"="+value)
		}
	}
	if len(cookies) > 0 {
		req.Headers = append(req.Headers, workspace.NewKeyValue("Cookie", strings.Join(cookies, "; ")))
	}

	b.applyBody(&req, name, op.RequestBody)
	if accept := responseType(op.Responses); accept != "" {
		req.Headers = append(req.Headers, workspace.NewKeyValue("Accept", accept))
	}
	b.applySecurity(&req, op)
	req.URL = &target
	return Request{Name: name, Request: req}
}

// row returns an enabled row for required parameters and a disabled one for
// optional parameters.
func row(key, value string, required bool) model.KeyValue {
	kv := workspace.NewKeyValue(key, value)
	kv.Enabled = required
	return kv
}

// mergeParameters overrides path level parameters with operation ones and
// orders the result by location and name.
func mergeParameters(base, own openapi3.Parameters) []*openapi3.Parameter {
	combined := map[string]*openapi3.Parameter{}
	for _, refs := range []openapi3.Parameters{base, own} {
		for _, ref := range refs {
			if ref == nil || ref.Value == nil {
				continue
			}
			combined[ref.Value.In+":"+ref.Value.Name] = ref.Value
		}
	}
	out := make([]*openapi3.Parameter, 0, len(combined))
	for _, key := range slices.Sorted(maps.Keys(combined)) {
		out = append(out, combined[key])
	}
	return out
}

func parameterSample(p *openapi3.Parameter) string {
	if p.Example != nil {
		return formatValue(p.Example)
	}
	if v, ok := firstExample(p.Examples); ok {
		return formatValue(v)
	}
	if v, ok := sample(p.Schema); ok {
		return formatValue(v)
	}
	return ""
}

func firstExample(examples openapi3.Examples) (any, bool) {
	for _, key := range slices.Sorted(maps.Keys(examples)) {
		if ref := examples[key]; ref != nil && ref.Value != nil {
			return ref.Value.Value, true
		}
	}
	return nil, false
}

func mediaSample(mt *openapi3.MediaType) (any, bool) {
	if mt.Example != nil {
		return mt.Example, true
	}
	if v, ok := firstExample(mt.Examples); ok {
		return v, true
	}
	return sample(mt.Schema)
}

func isJSON(contentType string) bool {
	return contentType == mimeJSON || strings.HasSuffix(contentType, "+json")
}

// pickMediaType prefers JSON, then the form encodings, then the first type
// in name order.
func pickMediaType(content openapi3.Content) string {
	types := slices.Sorted(maps.Keys(content))
	for _, ct := range types {
		if isJSON(ct) {
			return ct
		}
	}
	for _, want := range []string{mimeURLEncoded, mimeMultipart} {
		if slices.Contains(types, want) {
			return want
		}
	}
	if len(types) == 0 {
		return ""
	}
	return types[0]
}

func (b *builder) applyBody(req *model.PartialRequest, name string, ref *openapi3.RequestBodyRef) {
	if ref == nil || ref.Value == nil || len(ref.Value.Content) == 0 {
		return
	}
	ct := pickMediaType(ref.Value.Content)
	mt := ref.Value.Content[ct]
	if mt == nil {
		return
	}
	var body model.Body
	switch {
	case isJSON(ct):
		content := ""
		if v, ok := mediaSample(mt); ok {
			data, err := json.MarshalIndent(v, "", "  ")
			if err == nil {
				content = string(data)
			}
		}
		body = model.RawBody(content)
	case ct == mimeMultipart:
		body = model.FormBody(formFields(mt.Schema)...)
	case ct == mimeURLEncoded:
		values := url.Values{}
		for _, f := range formFields(mt.Schema) {
			values.Set(f.Key, f.Value)
		}
		body = model.RawBody(values.Encode())
	default:
		v, _ := mediaSample(mt)
		text, ok := v.(string)
		if !ok {
			b.warn(fmt.Sprintf("%s: no sample for %s body", name, ct))
		}
		body = model.RawBody(text)
	}
	req.Body = &body
	if ct != mimeMultipart {
		req.Headers = append(req.Headers, workspace.NewKeyValue("Content-Type", ct))
	}
}

func formFields(ref *openapi3.SchemaRef) []model.FormDataField {
	if ref == nil || ref.Value == nil {
		return nil
	}
	var fields []model.FormDataField
	for _, key := range slices.Sorted(maps.Keys(ref.Value.Properties)) {
		prop := ref.Value.Properties[key]
		field := model.FormDataField{ID: uuid.NewString(), Key: key, Type: model.FieldText, Enabled: true}
		if prop != nil && prop.Value != nil && strings.EqualFold(prop.Value.Format, "binary") {
			field.Type = model.FieldFile
		} else if v, ok := sample(prop); ok {
			field.Value = formatValue(v)
		}
		fields = append(fields, field)
	}
	return fields
}

// responseType returns the preferred media type of the first success
// response that declares content.
func responseType(responses *openapi3.Responses) string {
	if responses == nil {
		return ""
	}
	all := responses.Map()
	for _, code := range slices.Sorted(maps.Keys(all)) {
		ref := all[code]
		if !strings.HasPrefix(code, "2") || ref == nil || ref.Value == nil {
			continue
		}
		if ct := pickMediaType(ref.Value.Content); ct != "" {
			return ct
		}
	}
	return ""
}

func (b *builder) applySecurity(req *model.PartialRequest, op *openapi3.Operation) {
	requirements := b.doc.Security
	if op.Security != nil {
		requirements = *op.Security
	}
	for _, requirement := range requirements {
		for _, name := range slices.Sorted(maps.Keys(requirement)) {
			ref := b.doc.Components.SecuritySchemes[name]
			if ref == nil || ref.Value == nil {
				continue
			}
			if b.applyScheme(req, name, ref.Value) {
				return
			}
		}
	}
}

func (b *builder) applyScheme(req *model.PartialRequest, name string, s *openapi3.SecurityScheme) bool {
	switch strings.ToLower(s.Type) {
	case "http":
		switch strings.ToLower(s.Scheme) {
		case "bearer":
			req.Auth = &model.Auth{Type: model.AuthBearer, Token: b.variable(tokenVariable, placeholderToken)}
		case "basic":
			value := "Basic " + b.variable(basicVariable, placeholderBasic)
			req.Headers = append(req.Headers, workspace.NewKeyValue("Authorization", value))
		default:
			b.warn(fmt.Sprintf("security scheme %s: http %q is not supported", name, s.Scheme))
			return false
		}
	case "apikey":
		value := b.variable(apiKeyVariable, placeholderAPIKey)
		switch s.In {
		case openapi3.ParameterInHeader:
			req.Headers = append(req.Headers, workspace.NewKeyValue(s.Name, value))
		case openapi3.ParameterInQuery:
			req.QueryParams = append(req.QueryParams, workspace.NewKeyValue(s.Name, value))
		case openapi3.ParameterInCookie:
			req.Headers = append(req.Headers, workspace.NewKeyValue("Cookie", s.Name+"="+value))
		default:
			return false
		}
	case "oauth2", "openidconnect":
		req.Auth = &model.Auth{Type: model.AuthBearer, Token: b.variable(tokenVariable, placeholderToken)}
		b.warn(fmt.Sprintf("security scheme %s imported as a bearer token placeholder", name))
	default:
		return false
	}
	return true
}
