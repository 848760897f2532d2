package model

import (
	"bytes"
	"encoding/json"

	"github.com/unkn0wn-root/patchcat/internal/errdef"
)

type BodyKind string

const (
	BodyRaw      BodyKind = "raw"
	BodyFormData BodyKind = "form-data"
	BodyBinary   BodyKind = "binary"
)

type FieldType string

const (
	FieldText FieldType = "text"
	FieldFile FieldType = "file"
)

// FormDataField keeps only the text side of a field. File contents live with the
// dispatcher as transient attachments keyed by field id.
type FormDataField struct {
	ID      string    `json:"id"`
	Key     string    `json:"key"`
	Value   string    `json:"value"`
	Type    FieldType `json:"type"`
	Enabled bool      `json:"enabled"`
}

// Body is a tagged variant. Content is meaningful only for BodyRaw and Fields only
// for BodyFormData; BodyBinary carries no serializable payload.
type Body struct {
	Kind    BodyKind
	Content string
	Fields  []FormDataField
}

func RawBody(content string) Body {
	return Body{Kind: BodyRaw, Content: content}
}

func FormBody(fields ...FormDataField) Body {
	if fields == nil {
		fields = []FormDataField{}
	}
	return Body{Kind: BodyFormData, Fields: fields}
}

func BinaryBody() Body {
	return Body{Kind: BodyBinary}
}

func (b Body) Clone() Body {
	out := Body{Kind: b.Kind, Content: b.Content}
	if b.Fields != nil {
		out.Fields = append([]FormDataField(nil), b.Fields...)
	}
	return out
}

type rawBodyJSON struct {
	Type    BodyKind         `json:"type"`
	Content *string          `json:"content,omitempty"`
	Fields  *[]FormDataField `json:"fields,omitempty"`
}

func (b Body) MarshalJSON() ([]byte, error) {
	switch b.Kind {
	case BodyFormData:
		fields := b.Fields
		if fields == nil {
			fields = []FormDataField{}
		}
		return json.Marshal(rawBodyJSON{Type: BodyFormData, Fields: &fields})
	case BodyBinary:
		return json.Marshal(rawBodyJSON{Type: BodyBinary})
	default:
		content := b.Content
		return json.Marshal(rawBodyJSON{Type: BodyRaw, Content: &content})
	}
}

// UnmarshalJSON accepts the tagged object form and a bare string. Generated
// suggestions describe bodies as plain strings, which become raw bodies.
func (b *Body) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*b = RawBody("")
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return errdef.Wrap(errdef.CodeParse, err, "decode body string")
		}
		*b = RawBody(s)
		return nil
	}

	var raw rawBodyJSON
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return errdef.Wrap(errdef.CodeParse, err, "decode body")
	}
	switch raw.Type {
	case BodyFormData:
		fields := []FormDataField{}
		if raw.Fields != nil {
			fields = *raw.Fields
		}
		*b = FormBody(fields...)
	case BodyBinary:
		*b = BinaryBody()
	case BodyRaw, "":
		content := ""
		if raw.Content != nil {
			content = *raw.Content
		}
		*b = RawBody(content)
	default:
		return errdef.New(errdef.CodeParse, "unknown body type %q", raw.Type)
	}
	return nil
}
