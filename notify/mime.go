package notify

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"
	"time"
)

// BuildMIME renders msg as a multipart/mixed RFC 5322 message: an alternative
// text/HTML body followed by base64 attachments.
func BuildMIME(from string, to []string, msg Message, date time.Time) ([]byte, error) {
	var buf bytes.Buffer
	mixed := multipart.NewWriter(&buf)

	header := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }
	header("From", from)
	header("To", strings.Join(to, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", date.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", fmt.Sprintf("multipart/mixed; boundary=%q", mixed.Boundary()))
	buf.WriteString("\r\n")

	var alt bytes.Buffer
	altWriter := multipart.NewWriter(&alt)
	if err := writePart(altWriter, "text/plain; charset=utf-8", msg.Text); err != nil {
		return nil, err
	}
	if msg.HTML != "" {
		if err := writePart(altWriter, "text/html; charset=utf-8", msg.HTML); err != nil {
			return nil, err
		}
	}
	if err := altWriter.Close(); err != nil {
		return nil, fmt.Errorf("mime: close alternative: %w", err)
	}

	body, err := mixed.CreatePart(textproto.MIMEHeader{
		"Content-Type": {fmt.Sprintf("multipart/alternative; boundary=%q", altWriter.Boundary())},
	})
	if err != nil {
		return nil, fmt.Errorf("mime: body part: %w", err)
	}
	if _, err := body.Write(alt.Bytes()); err != nil {
		return nil, fmt.Errorf("mime: write body: %w", err)
	}

	for _, a := range msg.Attachments {
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		part, err := mixed.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {ct},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename})},
		})
		if err != nil {
			return nil, fmt.Errorf("mime: attachment %s: %w", a.Filename, err)
		}
		if _, err := part.Write(wrapBase64(a.Data)); err != nil {
			return nil, fmt.Errorf("mime: write attachment %s: %w", a.Filename, err)
		}
	}

	if err := mixed.Close(); err != nil {
		return nil, fmt.Errorf("mime: close: %w", err)
	}
	return buf.Bytes(), nil
}

func writePart(w *multipart.Writer, contentType, content string) error {
	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return fmt.Errorf("mime: %s part: %w", contentType, err)
	}
	_, err = part.Write(wrapBase64([]byte(content)))
	return err
}

// wrapBase64 encodes data with 76-character lines.
func wrapBase64(data []byte) []byte {
	enc := base64.StdEncoding.EncodeToString(data)
	var b bytes.Buffer
	for len(enc) > 76 {
		b.WriteString(enc[:76])
		b.WriteString("\r\n")
		enc = enc[76:]
	}
	b.WriteString(enc)
	b.WriteString("\r\n")
	return b.Bytes()
}
