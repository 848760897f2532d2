package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/unkn0wn-root/patchcat/internal/errdef"
	"github.com/unkn0wn-root/patchcat/internal/merge"
	"github.com/unkn0wn-root/patchcat/internal/model"
	"github.com/unkn0wn-root/patchcat/internal/nettrace"
	"github.com/unkn0wn-root/patchcat/internal/telemetry"
	"golang.org/x/net/publicsuffix"
	"nhooyr.io/websocket"
)

type Options struct {
	Timeout            time.Duration
	FollowRedirects    bool
	InsecureSkipVerify bool
	ProxyURL           string
}

type Client struct {
	opts        Options
	jar         http.CookieJar
	httpFactory func(Options) (*http.Client, error)
	wsDial      func(context.Context, string, *websocket.DialOptions) (*websocket.Conn, *http.Response, error)
	telemetry   telemetry.Instrumenter
	now         func() time.Time
}

func NewClient(opts Options) *Client {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	c := &Client{opts: opts, jar: jar, telemetry: telemetry.Noop(), now: time.Now}
	c.httpFactory = c.buildHTTPClient
	c.wsDial = websocket.Dial
	return c
}

// SetHTTPFactory overrides how http.Client instances are created.
// Passing nil restores the default factory.
func (c *Client) SetHTTPFactory(factory func(Options) (*http.Client, error)) {
	if factory == nil {
		factory = c.buildHTTPClient
	}
	c.httpFactory = factory
}

// SetTelemetry configures the instrumenter used to emit spans. Passing nil restores the no-op implementation.
func (c *Client) SetTelemetry(instr telemetry.Instrumenter) {
	if instr == nil {
		instr = telemetry.Noop()
	}
	c.telemetry = instr
}

// Attachment is file content picked by the user at send time. It is never persisted.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Outbound is a request ready for the wire. Files maps form-data field ids to
// their attachment; Binary is the payload for a binary body.
type Outbound struct {
	Name    string
	Method  string
	URL     string
	Headers []merge.Pair
	Body    model.Body
	HasBody bool
	Files   map[string]Attachment
	Binary  *Attachment
	Used    map[string]string
}

// FromEffective copies a resolved request into an Outbound.
func FromEffective(name string, eff merge.Effective) Outbound {
	return Outbound{
		Name:    name,
		Method:  eff.Method,
		URL:     eff.URL,
		Headers: eff.Headers,
		Body:    eff.Body,
		HasBody: eff.HasBody,
		Used:    eff.UsedVariables(),
	}
}

type Raw struct {
	StatusCode int
	StatusText string
	Proto      string
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Timeline   *nettrace.Timeline
}

// Send performs one round trip. Errors are transport failures; any HTTP status,
// including 4xx and 5xx, is a successful Raw.
func (c *Client) Send(ctx context.Context, out Outbound) (raw *Raw, err error) {
	factory := c.httpFactory
	if factory == nil {
		return nil, errdef.New(errdef.CodeHTTP, "http client factory unavailable")
	}
	client, err := factory(c.opts)
	if err != nil {
		return nil, err
	}

	ctx, span := c.instrumenter().Start(ctx, telemetry.RequestStart{
		Kind:   "http",
		Name:   out.Name,
		Method: out.Method,
		URL:    out.URL,
		Used:   out.Used,
	})
	defer func() {
		result := telemetry.RequestResult{Err: err}
		if raw != nil {
			result.StatusCode = raw.StatusCode
			result.Size = int64(len(raw.Body))
		}
		span.End(result)
	}()

	body, contentType, err := c.prepareBody(out)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, out.Method, out.URL, body)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeHTTP, err, "build request")
	}
	for _, h := range out.Headers {
		req.Header.Add(h.Key, h.Value)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	trace := newTraceSession(c.now)
	req = trace.bind(req)

	start := c.now()
	resp, err := client.Do(req)
	if err != nil {
		trace.complete(err)
		return nil, errdef.Wrap(errdef.CodeHTTP, err, "perform request")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	timeline := trace.complete(err)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeHTTP, err, "read response body")
	}
	span.Event("response.read", map[string]string{"proto": resp.Proto})

	return &Raw{
		StatusCode: resp.StatusCode,
		StatusText: statusText(resp),
		Proto:      resp.Proto,
		Headers:    resp.Header.Clone(),
		Body:       data,
		Duration:   c.now().Sub(start),
		Timeline:   timeline,
	}, nil
}

func (c *Client) instrumenter() telemetry.Instrumenter {
	if c.telemetry == nil {
		return telemetry.Noop()
	}
	return c.telemetry
}

// statusText strips the numeric prefix from resp.Status.
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(resp.Status)
	text = strings.TrimSpace(strings.TrimPrefix(text, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

// ToResponse converts a round trip to the stored form: header names are
// lowercased, repeated headers joined with ", ", and the body parsed as JSON
// when possible.
func ToResponse(raw *Raw) model.Response {
	if raw == nil {
		return model.Response{Headers: map[string]string{}}
	}
	headers := make(map[string]string, len(raw.Headers))
	names := make([]string, 0, len(raw.Headers))
	for name := range raw.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		key := strings.ToLower(name)
		value := strings.Join(raw.Headers[name], ", ")
		if prev, ok := headers[key]; ok {
			value = prev + ", " + value
		}
		headers[key] = value
	}
	return model.Response{
		Status:     raw.StatusCode,
		StatusText: raw.StatusText,
		Time:       raw.Duration.Milliseconds(),
		Size:       int64(len(raw.Body)),
		Data:       model.ParseResponseData(raw.Body),
		Headers:    headers,
	}
}
