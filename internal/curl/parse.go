// Package curl converts between curl command lines and workspace requests.
package curl

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/patchcat/internal/errdef"
	"github.com/unkn0wn-root/patchcat/internal/model"
	"github.com/unkn0wn-root/patchcat/internal/workspace"
)

const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerAccept        = "Accept"
	mimeJSON            = "application/json"
	bearerPrefix        = "Bearer "
)

var promptPrefixes = []string{"$", "%", ">"}

// Import is a parsed curl command. Warnings name the options that have no
// request equivalent and were dropped.
type Import struct {
	Request  model.PartialRequest
	Warnings []string
}

type parsed struct {
	method   string
	url      string
	headers  []model.KeyValue
	data     []string
	form     []model.FormDataField
	json     bool
	get      bool
	head     bool
	auth     *model.Auth
	binary   bool
	warnings []string
}

type optKind int

const (
	optFlag optKind = iota
	optValue
)

type option struct {
	kind optKind
	fn   func(p *parsed, v string)
}

// options maps long names to handlers. Short forms resolve through shortNames.
// A nil handler drops the option with a warning; noop drops it silently.
var options = map[string]option{
	"request":        {optValue, func(p *parsed, v string) { p.method = strings.ToUpper(v) }},
	"header":         {optValue, (*parsed).addHeader},
	"url":            {optValue, func(p *parsed, v string) { p.url = v }},
	"data":           {optValue, (*parsed).addData},
	"data-ascii":     {optValue, (*parsed).addData},
	"data-raw":       {optValue, func(p *parsed, v string) { p.data = append(p.data, v) }},
	"data-binary":    {optValue, (*parsed).addData},
	"data-urlencode": {optValue, (*parsed).addURLEncoded},
	"json":           {optValue, func(p *parsed, v string) { p.json = true; p.addData(v) }},
	"form":           {optValue, (*parsed).addForm},
	"form-string":    {optValue, func(p *parsed, v string) { p.addFormText(v) }},
	"user":           {optValue, (*parsed).basicAuth},
	"oauth2-bearer":  {optValue, func(p *parsed, v string) { p.auth = &model.Auth{Type: model.AuthBearer, Token: v} }},
	"user-agent":     {optValue, func(p *parsed, v string) { p.setHeader("User-Agent", v) }},
	"referer":        {optValue, func(p *parsed, v string) { p.setHeader("Referer", v) }},
	"cookie":         {optValue, func(p *parsed, v string) { p.setHeader("Cookie", v) }},
	"get":            {optFlag, func(p *parsed, _ string) { p.get = true }},
	"head":           {optFlag, func(p *parsed, _ string) { p.head = true }},

	"compressed":      {optFlag, noop},
	"silent":          {optFlag, noop},
	"show-error":      {optFlag, noop},
	"verbose":         {optFlag, noop},
	"include":         {optFlag, noop},
	"fail":            {optFlag, noop},
	"location":        {optFlag, nil},
	"insecure":        {optFlag, nil},
	"output":          {optValue, nil},
	"max-time":        {optValue, nil},
	"proxy":           {optValue, nil},
	"max-redirs":      {optValue, nil},
	"retry":           {optValue, nil},
	"connect-timeout": {optValue, nil},
}

var shortNames = map[byte]string{
	'X': "request",
	'H': "header",
	'd': "data",
	'F': "form",
	'u': "user",
	'A': "user-agent",
	'e': "referer",
	'b': "cookie",
	'G': "get",
	'I': "head",
	'L': "location",
	'k': "insecure",
	's': "silent",
	'S': "show-error",
	'v': "verbose",
	'i': "include",
	'f': "fail",
	'o': "output",
	'm': "max-time",
	'x': "proxy",
}

// Parse reads a single curl command line. Leading shell prompts and wrappers
// such as sudo are skipped.
func Parse(command string) (Import, error) {
	tokens, err := splitTokens(command)
	if err != nil {
		return Import{}, err
	}
	return ParseArgs(tokens)
}

// ParseArgs is Parse for a command line the shell has already split.
func ParseArgs(tokens []string) (Import, error) {
	start := -1
	for i, tok := range tokens {
		tok = stripPrompt(tok)
		if strings.EqualFold(tok, "curl") {
			start = i + 1
			break
		}
		switch strings.ToLower(tok) {
		case "", "sudo", "env", "command", "time", "noglob":
			continue
		}
		break
	}
	if start < 0 {
		return Import{}, errdef.New(errdef.CodeParse, "not a curl command")
	}

	p := &parsed{}
	if err := p.scan(tokens[start:]); err != nil {
		return Import{}, err
	}
	return p.build()
}

func stripPrompt(tok string) string {
	tok = strings.TrimSpace(tok)
	for _, prefix := range promptPrefixes {
		tok = strings.TrimSpace(strings.TrimPrefix(tok, prefix))
	}
	return tok
}

func (p *parsed) scan(tokens []string) error {
	positional := false
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case positional || tok == "-" || !strings.HasPrefix(tok, "-"):
			if p.url == "" {
				p.url = tok
			} else {
				p.warn("extra argument " + tok)
			}
		case tok == "--":
			positional = true
		case strings.HasPrefix(tok, "--"):
			name, value, inline := strings.Cut(tok[2:], "=")
			if err := p.apply(name, "--"+name, value, inline, tokens, &i); err != nil {
				return err
			}
		default:
			if err := p.applyShort(tok, tokens, &i); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyShort handles bundled flags like -sSL and attached values like -XPOST.
func (p *parsed) applyShort(tok string, tokens []string, i *int) error {
	for j := 1; j < len(tok); j++ {
		name, ok := shortNames[tok[j]]
		if !ok {
			p.warn("unsupported option -" + string(tok[j]))
			continue
		}
		if options[name].kind == optValue {
			rest := tok[j+1:]
			return p.apply(name, "-"+string(tok[j]), rest, rest != "", tokens, i)
		}
		if err := p.apply(name, "-"+string(tok[j]), "", false, tokens, i); err != nil {
			return err
		}
	}
	return nil
}

func (p *parsed) apply(name, label, value string, inline bool, tokens []string, i *int) error {
	opt, ok := options[name]
	if !ok {
		p.warn("unsupported option " + label)
		return nil
	}
	if opt.kind == optValue && !inline {
		*i++
		if *i >= len(tokens) {
			return errdef.New(errdef.CodeParse, "missing argument for %s", label)
		}
		value = tokens[*i]
	}
	if opt.fn == nil {
		p.warn("ignored option " + label)
		return nil
	}
	opt.fn(p, value)
	return nil
}

func noop(*parsed, string) {}

func (p *parsed) warn(msg string) {
	p.warnings = append(p.warnings, msg)
}

func (p *parsed) addHeader(raw string) {
	name, value, _ := strings.Cut(raw, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	value = strings.TrimSpace(value)
	if strings.EqualFold(name, headerAuthorization) && strings.HasPrefix(value, bearerPrefix) {
		p.auth = &model.Auth{Type: model.AuthBearer, Token: strings.TrimSpace(value[len(bearerPrefix):])}
		return
	}
	p.headers = append(p.headers, workspace.NewKeyValue(name, value))
}

func (p *parsed) setHeader(name, value string) {
	for i := range p.headers {
		if strings.EqualFold(p.headers[i].Key, name) {
			p.headers[i].Value = value
			return
		}
	}
	p.headers = append(p.headers, workspace.NewKeyValue(name, value))
}

func (p *parsed) hasHeader(name string) bool {
	for _, h := range p.headers {
		if strings.EqualFold(h.Key, name) {
			return true
		}
	}
	return false
}

// addData keeps @file references out of the body; the file must be attached
// at send time.
func (p *parsed) addData(v string) {
	if strings.HasPrefix(v, "@") {
		p.binary = true
		p.warn("file data " + v[1:] + " must be attached when sending")
		return
	}
	p.data = append(p.data, v)
}

func (p *parsed) addURLEncoded(v string) {
	name, value, ok := strings.Cut(v, "=")
	if !ok {
		p.data = append(p.data, url.QueryEscape(v))
		return
	}
	p.data = append(p.data, name+"="+url.QueryEscape(value))
}

func (p *parsed) addForm(v string) {
	key, value, _ := strings.Cut(v, "=")
	if path, ok := strings.CutPrefix(value, "@"); ok {
		path, _, _ = strings.Cut(path, ";")
		p.form = append(p.form, model.FormDataField{
			ID:      uuid.NewString(),
			Key:     key,
			Value:   filepath.Base(path),
			Type:    model.FieldFile,
			Enabled: true,
		})
		return
	}
	p.addFormText(v)
}

func (p *parsed) addFormText(v string) {
	key, value, _ := strings.Cut(v, "=")
	p.form = append(p.form, model.FormDataField{
		ID:      uuid.NewString(),
		Key:     key,
		Value:   value,
		Type:    model.FieldText,
		Enabled: true,
	})
}

func (p *parsed) basicAuth(creds string) {
	encoded := base64.StdEncoding.EncodeToString([]byte(creds))
	p.setHeader(headerAuthorization, "Basic "+encoded)
}

func (p *parsed) build() (Import, error) {
	if strings.TrimSpace(p.url) == "" {
		return Import{}, errdef.New(errdef.CodeParse, "curl command missing URL")
	}
	target, params := splitQuery(strings.Trim(p.url, `"'`))

	method := p.method
	if method == "" {
		switch {
		case p.head:
			method = http.MethodHead
		case p.get:
			method = http.MethodGet
		case len(p.data) > 0 || len(p.form) > 0 || p.binary:
			method = http.MethodPost
		default:
			method = http.MethodGet
		}
	}

	var body model.Body
	switch {
	case p.get && len(p.data) > 0:
		_, extra := splitQuery("?" + strings.Join(p.data, "&"))
		params = append(params, extra...)
		body = model.RawBody("")
	case len(p.form) > 0:
		body = model.FormBody(p.form...)
	case p.binary && len(p.data) == 0:
		body = model.BinaryBody()
	default:
		body = model.RawBody(strings.Join(p.data, "&"))
	}
	if p.json {
		if !p.hasHeader(headerContentType) {
			p.headers = append(p.headers, workspace.NewKeyValue(headerContentType, mimeJSON))
		}
		if !p.hasHeader(headerAccept) {
			p.headers = append(p.headers, workspace.NewKeyValue(headerAccept, mimeJSON))
		}
	}

	req := model.PartialRequest{
		Method:      &method,
		URL:         &target,
		Headers:     nonNil(p.headers),
		QueryParams: nonNil(params),
		Body:        &body,
		Auth:        p.auth,
	}
	return Import{Request: req, Warnings: p.warnings}, nil
}

// splitQuery moves the query string of raw into ordered key/value rows.
func splitQuery(raw string) (string, []model.KeyValue) {
	base, query, ok := strings.Cut(raw, "?")
	if !ok || query == "" {
		return base, nil
	}
	query, _, _ = strings.Cut(query, "#")
	var rows []model.KeyValue
	for _, part := range strings.Split(query, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		if uk, err := url.QueryUnescape(k); err == nil {
			k = uk
		}
		if uv, err := url.QueryUnescape(v); err == nil {
			v = uv
		}
		rows = append(rows, workspace.NewKeyValue(k, v))
	}
	return base, rows
}

func nonNil(rows []model.KeyValue) []model.KeyValue {
	if rows == nil {
		return []model.KeyValue{}
	}
	return rows
}
