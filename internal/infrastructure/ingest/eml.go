package ingest

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
)

var headerDecoder = new(mime.WordDecoder)

type emlParts struct {
	plain       strings.Builder
	html        strings.Builder
	attachments []domain.AttachmentText
}

func parseEML(raw []byte) (domain.Document, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return domain.Document{}, fmt.Errorf("read message: %w", err)
	}

	var parts emlParts
	if err := walkPart(msg.Header, msg.Body, &parts); err != nil {
		return domain.Document{}, err
	}

	body := parts.plain.String()
	if strings.TrimSpace(body) == "" && parts.html.Len() > 0 {
		text, err := htmlText(strings.NewReader(parts.html.String()))
		if err != nil {
			return domain.Document{}, fmt.Errorf("convert html body: %w", err)
		}
		body = text
	}

	return domain.Document{
		Subject:     decodeHeader(msg.Header.Get("Subject")),
		Sender:      decodeHeader(msg.Header.Get("From")),
		Recipient:   decodeHeader(msg.Header.Get("To")),
		SentAt:      strings.TrimSpace(msg.Header.Get("Date")),
		BodyText:    body,
		Attachments: parts.attachments,
	}, nil
}

// partHeader is satisfied by both mail.Header and textproto.MIMEHeader.
type partHeader interface {
	Get(key string) string
}

func walkPart(header partHeader, body io.Reader, out *emlParts) error {
	mediaType, params, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil {
		mediaType, params = "text/plain", map[string]string{}
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return fmt.Errorf("multipart part without boundary")
		}
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read multipart: %w", err)
			}
			if err := walkPart(part.Header, part, out); err != nil {
				return err
			}
		}
	}

	payload, err := io.ReadAll(decodeTransfer(header.Get("Content-Transfer-Encoding"), body))
	if err != nil {
		return fmt.Errorf("decode %s part: %w", mediaType, err)
	}

	filename := partFilename(header, params)
	switch {
	case filename != "" && isAttachment(header):
		out.attachments = append(out.attachments, attachmentText(filename, payload))
	case mediaType == "text/plain":
		out.plain.WriteString(toValidText(payload))
	case mediaType == "text/html":
		out.html.WriteString(toValidText(payload))
	case filename != "":
		out.attachments = append(out.attachments, attachmentText(filename, payload))
	}
	return nil
}

func decodeTransfer(encoding string, body io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, body)
	case "quoted-printable":
		return quotedprintable.NewReader(body)
	default:
		return body
	}
}

func partFilename(header partHeader, ctParams map[string]string) string {
	if _, params, err := mime.ParseMediaType(header.Get("Content-Disposition")); err == nil {
		if name := params["filename"]; name != "" {
			return decodeHeader(name)
		}
	}
	return decodeHeader(ctParams["name"])
}

func isAttachment(header partHeader) bool {
	disposition, _, err := mime.ParseMediaType(header.Get("Content-Disposition"))
	if err != nil {
		return false
	}
	return disposition == "attachment" || disposition == "inline"
}

func decodeHeader(value string) string {
	decoded, err := headerDecoder.DecodeHeader(value)
	if err != nil {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(decoded)
}
