package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
)

func buildDocx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	body.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := w.Write([]byte(body.String())); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func buildXLSX(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	_ = f.SetCellValue("Sheet1", "A1", "Lender")
	_ = f.SetCellValue("Sheet1", "B1", "Share")
	_ = f.SetCellValue("Sheet1", "A2", "Wells Fargo Bank")
	_ = f.SetCellValue("Sheet1", "B2", "USD 1,250,000.00")
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}
	return buf.Bytes()
}

func wrapBase64(raw []byte) string {
	enc := base64.StdEncoding.EncodeToString(raw)
	var b strings.Builder
	for len(enc) > 76 {
		b.WriteString(enc[:76] + "\r\n")
		enc = enc[76:]
	}
	b.WriteString(enc)
	return b.String()
}

func multipartEML(t *testing.T) string {
	t.Helper()
	docx := wrapBase64(buildDocx(t, "Facility CUSIP 12345ABC6", "Final allocation attached"))
	xlsx := wrapBase64(buildXLSX(t))
	return strings.Join([]string{
		"From: Agent Bank <agent@bank.com>",
		"To: ops@lender.com",
		"Subject: =?UTF-8?Q?Drawdown_Notice_=E2=80=93_Acme?=",
		"Date: Mon, 4 Mar 2024 10:00:00 +0000",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="outer"`,
		"",
		"--outer",
		`Content-Type: multipart/alternative; boundary="inner"`,
		"",
		"--inner",
		"Content-Type: text/plain; charset=utf-8",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"Please fund USD 5,000,000.00 on 15-Mar-2024.=",
		"",
		"--inner",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>Please fund <b>USD 5,000,000.00</b></p>",
		"--inner--",
		"",
		"--outer",
		"Content-Type: application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		`Content-Disposition: attachment; filename="notice.docx"`,
		"Content-Transfer-Encoding: base64",
		"",
		docx,
		"--outer",
		"Content-Type: application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		`Content-Disposition: attachment; filename="allocations.xlsx"`,
		"Content-Transfer-Encoding: base64",
		"",
		xlsx,
		"--outer",
		"Content-Type: image/png",
		`Content-Disposition: attachment; filename="scan.png"`,
		"Content-Transfer-Encoding: base64",
		"",
		"iVBORw0KGgo=",
		"--outer--",
		"",
	}, "\r\n")
}

func TestParseMultipartEML(t *testing.T) {
	doc, err := NewParser().Parse(context.Background(), "inbox/email_42.eml", strings.NewReader(multipartEML(t)))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if doc.ID != "email_42" {
		t.Fatalf("unexpected id %q", doc.ID)
	}
	if doc.Subject != "Drawdown Notice – Acme" {
		t.Fatalf("unexpected subject %q", doc.Subject)
	}
	if doc.Sender != "Agent Bank <agent@bank.com>" || doc.Recipient != "ops@lender.com" {
		t.Fatalf("unexpected envelope %q -> %q", doc.Sender, doc.Recipient)
	}
	if doc.SentAt != "Mon, 4 Mar 2024 10:00:00 +0000" {
		t.Fatalf("unexpected date %q", doc.SentAt)
	}
	if !strings.Contains(doc.BodyText, "Please fund USD 5,000,000.00 on 15-Mar-2024.") {
		t.Fatalf("plain body expected, got %q", doc.BodyText)
	}
	if strings.Contains(doc.BodyText, "<p>") {
		t.Fatalf("html part must not leak into plain body")
	}

	if len(doc.Attachments) != 3 {
		t.Fatalf("expected 3 attachments, got %+v", doc.Attachments)
	}
	docx, xlsx, png := doc.Attachments[0], doc.Attachments[1], doc.Attachments[2]
	if docx.Status != domain.AttachmentOK || docx.ExtractedText != "Facility CUSIP 12345ABC6\nFinal allocation attached" {
		t.Fatalf("unexpected docx attachment %+v", docx)
	}
	if xlsx.Status != domain.AttachmentOK || !strings.Contains(xlsx.ExtractedText, "Wells Fargo Bank\tUSD 1,250,000.00") {
		t.Fatalf("unexpected xlsx attachment %+v", xlsx)
	}
	if png.Status != domain.AttachmentUnsupported || png.ExtractedText != domain.UnsupportedAttachmentText {
		t.Fatalf("unexpected image attachment %+v", png)
	}
}

func TestParseHTMLOnlyEML(t *testing.T) {
	raw := strings.Join([]string{
		"From: a@b.com",
		"Subject: Fee",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<html><head><style>p{}</style></head><body><p>Amendment fee</p><p>USD 10,000</p></body></html>",
	}, "\r\n")

	doc, err := NewParser().Parse(context.Background(), "fee.eml", strings.NewReader(raw))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if doc.BodyText != "Amendment fee\nUSD 10,000" {
		t.Fatalf("unexpected html body %q", doc.BodyText)
	}
}

func TestParsePlainFormatsUseStemAsSubject(t *testing.T) {
	p := NewParser()

	txt, err := p.Parse(context.Background(), "notice_7.txt", strings.NewReader("Repayment due"))
	if err != nil {
		t.Fatalf("Parse(txt) error = %v", err)
	}
	if txt.ID != "notice_7" || txt.Subject != "notice_7" || txt.Sender != "unknown" || txt.BodyText != "Repayment due" {
		t.Fatalf("unexpected txt document %+v", txt)
	}

	docx, err := p.Parse(context.Background(), "memo.docx", bytes.NewReader(buildDocx(t, "Commitment increase", "")))
	if err != nil {
		t.Fatalf("Parse(docx) error = %v", err)
	}
	if docx.BodyText != "Commitment increase" {
		t.Fatalf("unexpected docx body %q", docx.BodyText)
	}
}

func TestParseErrorsAreTyped(t *testing.T) {
	p := NewParser()

	_, err := p.Parse(context.Background(), "broken.pdf", strings.NewReader("not a pdf"))
	if !domain.IsKind(err, domain.ErrParse) {
		t.Fatalf("expected ErrParse for broken pdf, got %v", err)
	}
	_, err = p.Parse(context.Background(), "broken.docx", strings.NewReader("not a zip"))
	if !domain.IsKind(err, domain.ErrParse) {
		t.Fatalf("expected ErrParse for broken docx, got %v", err)
	}
	_, err = p.Parse(context.Background(), "image.png", strings.NewReader("x"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unsupported type, got %v", err)
	}
}

func TestBrokenAttachmentBecomesUnsupported(t *testing.T) {
	att := attachmentText("statement.pdf", []byte("garbage"))
	if att.Status != domain.AttachmentUnsupported || att.ExtractedText != domain.UnsupportedAttachmentText {
		t.Fatalf("unexpected attachment %+v", att)
	}
}

func TestDirectoryListsSupportedFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"b.txt":       "second",
		"a.eml":       "Subject: first\r\n\r\nbody",
		"c.png":       "skip",
		".hidden.txt": "skip",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.txt"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	src := NewDirectory(dir, nil)
	refs, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(refs) != 2 || refs[0].ID != "a" || refs[1].ID != "b" {
		t.Fatalf("unexpected refs %+v", refs)
	}

	doc, err := src.Load(context.Background(), refs[0])
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if doc.Subject != "first" || doc.BodyText != "body" {
		t.Fatalf("unexpected document %+v", doc)
	}
}
