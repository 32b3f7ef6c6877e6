package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"sync/atomic"

	"github.com/valyala/fasthttp"
)

// ProgressFunc observes upload progress in bytes.
type ProgressFunc func(sent, total int64)

// File is one file part of a multipart body.
type File struct {
	Field       string
	Name        string
	ContentType string
	Content     io.Reader
}

// Multipart is a form body. Its content type, including the boundary, is
// generated during encoding and never taken from caller headers.
type Multipart struct {
	Fields map[string]string
	Files  []File
}

// AddField sets a plain form field.
func (m *Multipart) AddField(name, value string) *Multipart {
	if m.Fields == nil {
		m.Fields = make(map[string]string)
	}
	m.Fields[name] = value
	return m
}

// AddFile appends a file part.
func (m *Multipart) AddFile(field, name, contentType string, content io.Reader) *Multipart {
	m.Files = append(m.Files, File{Field: field, Name: name, ContentType: contentType, Content: content})
	return m
}

func encodeBody(req *fasthttp.Request, body any, progress ProgressFunc) error {
	var (
		payload     []byte
		contentType string
	)
	switch b := body.(type) {
	case nil:
		return nil
	case *Multipart:
		var err error
		payload, contentType, err = b.encode()
		if err != nil {
			return err
		}
	default:
		var err error
		payload, err = json.Marshal(b)
		if err != nil {
			return err
		}
		contentType = mimeJSON
	}

	req.Header.SetContentType(contentType)
	if progress == nil {
		req.SetBody(payload)
		return nil
	}
	total := int64(len(payload))
	req.SetBodyStream(&progressReader{r: bytes.NewReader(payload), total: total, fn: progress}, len(payload))
	return nil
}

func (m *Multipart) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range m.Fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}
	for _, f := range m.Files {
		if f.Field == "" || f.Content == nil {
			return nil, "", fmt.Errorf("multipart file %q: missing field or content", f.Name)
		}
		part, err := w.CreatePart(filePartHeader(f))
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, "", fmt.Errorf("multipart file %q: %w", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func filePartHeader(f File) textproto.MIMEHeader {
	name := f.Name
	if name == "" {
		name = f.Field
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, name))
	h.Set("Content-Type", contentType)
	return h
}

type progressReader struct {
	r     io.Reader
	total int64
	sent  atomic.Int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.fn(p.sent.Add(int64(n)), p.total)
	}
	return n, err
}
