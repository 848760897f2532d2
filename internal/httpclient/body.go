package httpclient

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/textproto"

	"github.com/unkn0wn-root/patchcat/internal/errdef"
	"github.com/unkn0wn-root/patchcat/internal/model"
)

const defaultBinaryType = "application/octet-stream"

// prepareBody returns the request body and, for multipart and binary bodies,
// the content type the body needs. Raw bodies rely on the merged headers.
func (c *Client) prepareBody(out Outbound) (io.Reader, string, error) {
	if !out.HasBody {
		return nil, "", nil
	}
	switch out.Body.Kind {
	case model.BodyFormData:
		return buildMultipart(out.Body.Fields, out.Files)
	case model.BodyBinary:
		if out.Binary == nil {
			return nil, "", nil
		}
		ct := out.Binary.ContentType
		if ct == "" {
			ct = defaultBinaryType
		}
		return bytes.NewReader(out.Binary.Data), ct, nil
	default:
		if out.Body.Content == "" {
			return nil, "", nil
		}
		return bytes.NewReader([]byte(out.Body.Content)), "", nil
	}
}

// buildMultipart writes enabled fields with a key. File fields without an
// attachment are skipped.
func buildMultipart(fields []model.FormDataField, files map[string]Attachment) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		if !f.Enabled || f.Key == "" {
			continue
		}
		if f.Type != model.FieldFile {
			if err := w.WriteField(f.Key, f.Value); err != nil {
				return nil, "", errdef.Wrap(errdef.CodeHTTP, err, "write form field %q", f.Key)
			}
			continue
		}
		att, ok := files[f.ID]
		if !ok {
			continue
		}
		part, err := w.CreatePart(filePartHeader(f.Key, att))
		if err != nil {
			return nil, "", errdef.Wrap(errdef.CodeHTTP, err, "create form file %q", f.Key)
		}
		if _, err := part.Write(att.Data); err != nil {
			return nil, "", errdef.Wrap(errdef.CodeHTTP, err, "write form file %q", f.Key)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", errdef.Wrap(errdef.CodeHTTP, err, "close multipart body")
	}
	return &buf, w.FormDataContentType(), nil
}

func filePartHeader(key string, att Attachment) textproto.MIMEHeader {
	name := att.Name
	if name == "" {
		name = key
	}
	ct := att.ContentType
	if ct == "" {
		ct = defaultBinaryType
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", multipart.FileContentDisposition(key, name))
	h.Set("Content-Type", ct)
	return h
}
