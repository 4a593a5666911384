package external

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"sort"
	"time"
)

// mimeMessage is the input to buildMIME.
type mimeMessage struct {
	From      string
	To        string
	Subject   string
	MessageID string
	Date      time.Time
	Text      string
	HTML      string
	Files     []Attachment
}

// buildMIME renders an RFC 5322 message. Text and HTML become a
// multipart/alternative part; attachments wrap it in multipart/mixed.
func buildMIME(m mimeMessage) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", m.From)
	fmt.Fprintf(&buf, "To: %s\r\n", m.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	if m.MessageID != "" {
		fmt.Fprintf(&buf, "Message-ID: <%s>\r\n", m.MessageID)
	}
	fmt.Fprintf(&buf, "Date: %s\r\n", m.Date.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")

	header, content, err := bodyPart(m.Text, m.HTML)
	if err != nil {
		return nil, err
	}

	if len(m.Files) == 0 {
		writeMIMEHeader(&buf, header)
		buf.WriteString("\r\n")
		buf.Write(content)
		return buf.Bytes(), nil
	}

	mixed := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", mixed.Boundary())

	part, err := mixed.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}

	for _, f := range m.Files {
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		part, err := mixed.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {contentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": f.Filename})},
		})
		if err != nil {
			return nil, err
		}
		if err := writeBase64Lines(part, f.Content); err != nil {
			return nil, err
		}
	}
	if err := mixed.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// bodyPart encodes the text and html bodies. With both present it returns
// a multipart/alternative entity.
func bodyPart(text, html string) (textproto.MIMEHeader, []byte, error) {
	if text == "" || html == "" {
		contentType, content := "text/plain; charset=utf-8", text
		if text == "" {
			contentType, content = "text/html; charset=utf-8", html
		}
		encoded, err := quotedPrintable(content)
		if err != nil {
			return nil, nil, err
		}
		return textproto.MIMEHeader{
			"Content-Type":              {contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		}, encoded, nil
	}

	var buf bytes.Buffer
	alt := multipart.NewWriter(&buf)
	for _, p := range []struct{ contentType, content string }{
		{"text/plain; charset=utf-8", text},
		{"text/html; charset=utf-8", html},
	} {
		part, err := alt.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, nil, err
		}
		encoded, err := quotedPrintable(p.content)
		if err != nil {
			return nil, nil, err
		}
		if _, err := part.Write(encoded); err != nil {
			return nil, nil, err
		}
	}
	if err := alt.Close(); err != nil {
		return nil, nil, err
	}
	return textproto.MIMEHeader{
		"Content-Type": {"multipart/alternative; boundary=" + alt.Boundary()},
	}, buf.Bytes(), nil
}

func quotedPrintable(content string) ([]byte, error) {
	var buf bytes.Buffer
	qp := quotedprintable.NewWriter(&buf)
	if _, err := qp.Write([]byte(content)); err != nil {
		return nil, err
	}
	if err := qp.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeMIMEHeader(buf *bytes.Buffer, h textproto.MIMEHeader) {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range h[k] {
			fmt.Fprintf(buf, "%s: %s\r\n", k, v)
		}
	}
}

// writeBase64Lines wraps base64 output at 76 columns.
func writeBase64Lines(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		if _, err := io.WriteString(w, encoded[:76]+"\r\n"); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err := io.WriteString(w, encoded+"\r\n")
	return err
}
