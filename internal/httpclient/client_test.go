package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/unkn0wn-root/patchcat/internal/merge"
	"github.com/unkn0wn-root/patchcat/internal/model"
	"github.com/unkn0wn-root/patchcat/internal/nettrace"
	"github.com/unkn0wn-root/patchcat/internal/telemetry"
)

func TestSendRawBodyAndHeaders(t *testing.T) {
	t.Parallel()
	var gotBody, gotType, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Add("X-Trace", "a")
		w.Header().Add("X-Trace", "b")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":7}`))
	}))
	defer srv.Close()

	client := NewClient(Options{Timeout: 5 * time.Second})
	raw, err := client.Send(context.Background(), Outbound{
		Method: http.MethodPost,
		URL:    srv.URL + "/items",
		Headers: []merge.Pair{
			{Key: "Content-Type", Value: "application/json"},
			{Key: "Authorization", Value: "Bearer t"},
		},
		Body:    model.RawBody(`{"name":"x"}`),
		HasBody: true,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotBody != `{"name":"x"}` {
		t.Fatalf("expected body to be forwarded, got %q", gotBody)
	}
	if gotType != "application/json" || gotAuth != "Bearer t" {
		t.Fatalf("unexpected headers %q %q", gotType, gotAuth)
	}
	if raw.StatusCode != http.StatusCreated || raw.StatusText != "Created" {
		t.Fatalf("expected 201 Created, got %d %q", raw.StatusCode, raw.StatusText)
	}

	resp := ToResponse(raw)
	if resp.Headers["x-trace"] != "a, b" {
		t.Fatalf("expected joined header, got %q", resp.Headers["x-trace"])
	}
	if resp.Size != int64(len(`{"id":7}`)) {
		t.Fatalf("expected size %d, got %d", len(`{"id":7}`), resp.Size)
	}
	if resp.Data.Kind != model.DataJSON {
		t.Fatalf("expected json data, got %v", resp.Data.Kind)
	}
}

func TestSendSkipsBodyWhenMethodHasNone(t *testing.T) {
	t.Parallel()
	var length int64 = -2
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		length = r.ContentLength
		_, _ = w.Write([]byte("plain"))
	}))
	defer srv.Close()

	raw, err := NewClient(Options{}).Send(context.Background(), Outbound{
		Method: http.MethodGet,
		URL:    srv.URL,
		Body:   model.RawBody("ignored"),
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if length != 0 {
		t.Fatalf("expected no body, got content length %d", length)
	}
	if got := ToResponse(raw).Data; got.Kind != model.DataText || got.Text != "plain" {
		t.Fatalf("expected text data, got %+v", got)
	}
}

func TestSendMultipartForm(t *testing.T) {
	t.Parallel()
	type part struct{ name, file, value string }
	var parts []part
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mr, err := r.MultipartReader()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for {
			p, err := mr.NextPart()
			if err != nil {
				break
			}
			data, _ := io.ReadAll(p)
			parts = append(parts, part{name: p.FormName(), file: p.FileName(), value: string(data)})
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	body := model.FormBody(
		model.FormDataField{ID: "1", Key: "title", Value: "hello", Type: model.FieldText, Enabled: true},
		model.FormDataField{ID: "2", Key: "skip", Value: "x", Type: model.FieldText, Enabled: false},
		model.FormDataField{ID: "3", Key: "", Value: "x", Type: model.FieldText, Enabled: true},
		model.FormDataField{ID: "4", Key: "upload", Type: model.FieldFile, Enabled: true},
		model.FormDataField{ID: "5", Key: "missing", Type: model.FieldFile, Enabled: true},
	)
	raw, err := NewClient(Options{}).Send(context.Background(), Outbound{
		Method:  http.MethodPost,
		URL:     srv.URL,
		Body:    body,
		HasBody: true,
		Files:   map[string]Attachment{"4": {Name: "a.txt", ContentType: "text/plain", Data: []byte("file-data")}},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if raw.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", raw.StatusCode)
	}
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %+v", parts)
	}
	if parts[0] != (part{name: "title", value: "hello"}) {
		t.Fatalf("unexpected text part %+v", parts[0])
	}
	if parts[1] != (part{name: "upload", file: "a.txt", value: "file-data"}) {
		t.Fatalf("unexpected file part %+v", parts[1])
	}
}

func TestSendBinaryBody(t *testing.T) {
	t.Parallel()
	var gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotType = r.Header.Get("Content-Type")
	}))
	defer srv.Close()

	_, err := NewClient(Options{}).Send(context.Background(), Outbound{
		Method:  http.MethodPut,
		URL:     srv.URL,
		Body:    model.BinaryBody(),
		HasBody: true,
		Binary:  &Attachment{Data: []byte{0x01, 0x02}},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotBody != "\x01\x02" {
		t.Fatalf("expected binary payload, got %q", gotBody)
	}
	if gotType != defaultBinaryType {
		t.Fatalf("expected %q, got %q", defaultBinaryType, gotType)
	}
}

func TestSendDoesNotFollowRedirectsByDefault(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/end", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte("end"))
	}))
	defer srv.Close()

	raw, err := NewClient(Options{}).Send(context.Background(), Outbound{Method: http.MethodGet, URL: srv.URL + "/start"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if raw.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", raw.StatusCode)
	}

	raw, err = NewClient(Options{FollowRedirects: true}).Send(context.Background(), Outbound{Method: http.MethodGet, URL: srv.URL + "/start"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if raw.StatusCode != http.StatusOK || string(raw.Body) != "end" {
		t.Fatalf("expected followed redirect, got %d %q", raw.StatusCode, raw.Body)
	}
}

func TestSendCancelledContext(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(Options{}).Send(ctx, Outbound{Method: http.MethodGet, URL: srv.URL})
	if err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}

func TestSendRecordsSpan(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	recorder := tracetest.NewSpanRecorder()
	instr, err := telemetry.New(telemetry.Config{}, telemetry.WithSpanProcessor(recorder))
	if err != nil {
		t.Fatalf("telemetry: %v", err)
	}
	client := NewClient(Options{})
	client.SetTelemetry(instr)
	if _, err := client.Send(context.Background(), Outbound{
		Name:   "tea",
		Method: http.MethodGet,
		URL:    srv.URL,
		Used:   map[string]string{"host": "secret"},
	}); err != nil {
		t.Fatalf("send: %v", err)
	}
	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "tea" {
		t.Fatalf("expected span name tea, got %q", spans[0].Name())
	}
	for _, kv := range spans[0].Attributes() {
		if strings.Contains(kv.Value.Emit(), "secret") {
			t.Fatalf("variable value leaked into span attribute %s", kv.Key)
		}
	}
}

func TestToResponseMergesCaseVariants(t *testing.T) {
	t.Parallel()
	raw := &Raw{
		StatusCode: 200,
		StatusText: "OK",
		Headers:    http.Header{"X-A": {"1"}, "x-a": {"2"}},
		Body:       []byte(`"quoted"`),
		Duration:   1500 * time.Millisecond,
	}
	resp := ToResponse(raw)
	if resp.Headers["x-a"] != "1, 2" {
		t.Fatalf("expected merged header, got %q", resp.Headers["x-a"])
	}
	if resp.Time != 1500 {
		t.Fatalf("expected 1500ms, got %d", resp.Time)
	}
}

func TestStatusText(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"200 OK":           "OK",
		"404 Not Found":    "Not Found",
		"299":              "",
		"":                 "",
		"418 I'm a teapot": "I'm a teapot",
	}
	for status, want := range cases {
		code := 200
		switch {
		case strings.HasPrefix(status, "404"):
			code = 404
		case strings.HasPrefix(status, "299"):
			code = 299
		case strings.HasPrefix(status, "418"):
			code = 418
		}
		if want == "" {
			want = http.StatusText(code)
		}
		got := statusText(&http.Response{Status: status, StatusCode: code})
		if got != want {
			t.Fatalf("status %q: expected %q, got %q", status, want, got)
		}
	}
}

func TestSendRecordsTimeline(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := NewClient(Options{Timeout: 5 * time.Second})
	raw, err := client.Send(context.Background(), Outbound{Method: http.MethodGet, URL: srv.URL})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if raw.Timeline == nil {
		t.Fatal("expected timeline")
	}
	seen := map[nettrace.PhaseKind]bool{}
	for _, ph := range raw.Timeline.Phases {
		seen[ph.Kind] = true
	}
	for _, kind := range []nettrace.PhaseKind{nettrace.PhaseConnect, nettrace.PhaseTTFB, nettrace.PhaseTransfer} {
		if !seen[kind] {
			t.Fatalf("expected %s phase, got %+v", kind, raw.Timeline.Phases)
		}
	}
}
