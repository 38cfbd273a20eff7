package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
)

const maxDocumentBytes = 25 << 20

const unknownHeader = "unknown"

// SupportedExtensions are the top-level document formats a Parser accepts.
var SupportedExtensions = []string{".eml", ".txt", ".docx", ".pdf"}

// Parser turns raw files into Documents. The document id is the file name
// without its extension.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(ctx context.Context, filename string, body io.Reader) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}
	base := filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(base))
	id := strings.TrimSuffix(base, filepath.Ext(base))
	if id == "" || id == "." {
		return domain.Document{}, domain.WrapError(domain.ErrInvalidInput, "parse document", fmt.Errorf("cannot derive id from %q", filename))
	}

	raw, err := io.ReadAll(io.LimitReader(body, maxDocumentBytes+1))
	if err != nil {
		return domain.Document{}, domain.WrapError(domain.ErrParse, "read "+base, err)
	}
	if len(raw) > maxDocumentBytes {
		return domain.Document{}, domain.WrapError(domain.ErrParse, "read "+base, errors.New("document exceeds 25MB limit"))
	}

	switch ext {
	case ".eml":
		doc, err := parseEML(raw)
		if err != nil {
			return domain.Document{}, domain.WrapError(domain.ErrParse, "parse eml "+base, err)
		}
		doc.ID = id
		return doc, nil
	case ".txt":
		return plainDocument(id, toValidText(raw)), nil
	case ".docx":
		text, err := docxText(raw)
		if err != nil {
			return domain.Document{}, domain.WrapError(domain.ErrParse, "parse docx "+base, err)
		}
		return plainDocument(id, text), nil
	case ".pdf":
		text, err := pdfText(raw)
		if err != nil {
			return domain.Document{}, domain.WrapError(domain.ErrParse, "parse pdf "+base, err)
		}
		return plainDocument(id, text), nil
	default:
		return domain.Document{}, domain.WrapError(domain.ErrInvalidInput, "parse document", fmt.Errorf("unsupported file type %q", ext))
	}
}

// plainDocument wraps a headerless file: the subject is the file stem and the
// envelope fields are unknown.
func plainDocument(id, text string) domain.Document {
	return domain.Document{
		ID:        id,
		Subject:   id,
		Sender:    unknownHeader,
		Recipient: unknownHeader,
		SentAt:    unknownHeader,
		BodyText:  text,
	}
}

// attachmentText extracts readable text from an attachment by extension.
// Anything unreadable becomes the unsupported placeholder.
func attachmentText(filename string, raw []byte) domain.AttachmentText {
	ext := strings.ToLower(filepath.Ext(filename))
	var (
		text string
		err  error
	)
	switch ext {
	case ".pdf":
		text, err = pdfText(raw)
	case ".docx":
		text, err = docxText(raw)
	case ".xlsx":
		text, err = xlsxText(raw)
	case ".txt", ".csv":
		text = toValidText(raw)
	case ".html", ".htm":
		text, err = htmlText(bytes.NewReader(raw))
	default:
		return unsupportedAttachment(filename)
	}
	if err != nil {
		slog.Warn("attachment_extract_failed", "filename", filename, "error", err)
		return unsupportedAttachment(filename)
	}
	return domain.AttachmentText{
		Filename:      filename,
		ExtractedText: strings.TrimSpace(text),
		Status:        domain.AttachmentOK,
	}
}

func unsupportedAttachment(filename string) domain.AttachmentText {
	return domain.AttachmentText{
		Filename:      filename,
		ExtractedText: domain.UnsupportedAttachmentText,
		Status:        domain.AttachmentUnsupported,
	}
}

func toValidText(raw []byte) string {
	return strings.ToValidUTF8(string(raw), "")
}
