package model

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"unicode/utf8"

	"github.com/unkn0wn-root/patchcat/internal/errdef"
)

type DataKind int

const (
	DataText DataKind = iota
	DataJSON
	DataBinary
)

const binaryDataKey = "$binary"

// ResponseData is the decoded response body: a JSON value, opaque text, or bytes
// that are not valid UTF-8.
type ResponseData struct {
	Kind   DataKind
	JSON   json.RawMessage
	Text   string
	Binary []byte
}

func TextData(s string) ResponseData {
	return ResponseData{Kind: DataText, Text: s}
}

func JSONData(v any) ResponseData {
	b, err := json.Marshal(v)
	if err != nil {
		return TextData(err.Error())
	}
	return ResponseData{Kind: DataJSON, JSON: b}
}

// ParseResponseData tries a structured decode first and falls back to text.
func ParseResponseData(raw []byte) ResponseData {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return ResponseData{Kind: DataJSON, JSON: append(json.RawMessage(nil), trimmed...)}
	}
	if utf8.Valid(raw) {
		return TextData(string(raw))
	}
	return ResponseData{Kind: DataBinary, Binary: append([]byte(nil), raw...)}
}

// String renders the payload for display and prompts; JSON is indented.
func (d ResponseData) String() string {
	switch d.Kind {
	case DataJSON:
		var buf bytes.Buffer
		if err := json.Indent(&buf, d.JSON, "", "  "); err != nil {
			return string(d.JSON)
		}
		return buf.String()
	case DataBinary:
		return base64.StdEncoding.EncodeToString(d.Binary)
	default:
		return d.Text
	}
}

func (d ResponseData) Clone() ResponseData {
	out := ResponseData{Kind: d.Kind, Text: d.Text}
	if d.JSON != nil {
		out.JSON = append(json.RawMessage(nil), d.JSON...)
	}
	if d.Binary != nil {
		out.Binary = append([]byte(nil), d.Binary...)
	}
	return out
}

func (d ResponseData) MarshalJSON() ([]byte, error) {
	switch d.Kind {
	case DataJSON:
		if len(d.JSON) == 0 {
			return []byte("null"), nil
		}
		return d.JSON, nil
	case DataBinary:
		return json.Marshal(map[string]string{
			binaryDataKey: base64.StdEncoding.EncodeToString(d.Binary),
		})
	default:
		return json.Marshal(d.Text)
	}
}

// UnmarshalJSON maps a JSON string back to text, the binary envelope back to bytes,
// and anything else to a JSON value.
func (d *ResponseData) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return errdef.Wrap(errdef.CodeParse, err, "decode response text")
		}
		*d = TextData(s)
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err == nil && len(envelope) == 1 {
			if encoded, ok := envelope[binaryDataKey]; ok {
				var s string
				if err := json.Unmarshal(encoded, &s); err == nil {
					if payload, err := base64.StdEncoding.DecodeString(s); err == nil {
						*d = ResponseData{Kind: DataBinary, Binary: payload}
						return nil
					}
				}
			}
		}
	}
	if !json.Valid(trimmed) {
		return errdef.New(errdef.CodeParse, "invalid response data")
	}
	*d = ResponseData{Kind: DataJSON, JSON: append(json.RawMessage(nil), trimmed...)}
	return nil
}

// NetworkError builds the synthetic status-0 response used for transport failures,
// cancellations and validation errors.
func NetworkError(statusText, message string, elapsedMS int64) Response {
	return Response{
		Status:     0,
		StatusText: statusText,
		Time:       elapsedMS,
		Size:       0,
		Data:       JSONData(map[string]string{"error": message}),
		Headers:    map[string]string{},
	}
}

func (r Response) Clone() Response {
	out := r
	out.Data = r.Data.Clone()
	if r.Headers != nil {
		out.Headers = make(map[string]string, len(r.Headers))
		for k, v := range r.Headers {
			out.Headers[k] = v
		}
	}
	return out
}
