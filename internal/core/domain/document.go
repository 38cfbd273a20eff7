package domain

import "strings"

type AttachmentStatus string

const (
	AttachmentOK          AttachmentStatus = "ok"
	AttachmentUnsupported AttachmentStatus = "unsupported_type"
)

const UnsupportedAttachmentText = "[UNSUPPORTED ATTACHMENT TYPE]"

// Document is one ingested piece of correspondence. It is not mutated after
// ingestion; every pipeline stage derives new values from it.
type Document struct {
	ID          string           `json:"id"`
	Subject     string           `json:"subject"`
	Sender      string           `json:"from"`
	Recipient   string           `json:"to"`
	SentAt      string           `json:"date"`
	BodyText    string           `json:"body"`
	Attachments []AttachmentText `json:"attachments,omitempty"`
}

type AttachmentText struct {
	Filename      string           `json:"filename"`
	ExtractedText string           `json:"content"`
	Status        AttachmentStatus `json:"status,omitempty"`
}

// Readable reports whether the attachment carries text worth extracting.
// Payloads without a status are readable unless they hold the unsupported
// placeholder.
func (a AttachmentText) Readable() bool {
	if a.ExtractedText == "" {
		return false
	}
	switch a.Status {
	case AttachmentOK:
		return true
	case "":
		return a.ExtractedText != UnsupportedAttachmentText
	default:
		return false
	}
}

// CombinedText normalizes the body and every readable attachment on their
// own and joins the results with blank lines. Each part is normalized
// separately so a signature cut in the body cannot drop attachment text.
func (d Document) CombinedText(normalize func(string) string) string {
	parts := make([]string, 0, len(d.Attachments)+1)
	if body := normalize(d.BodyText); body != "" {
		parts = append(parts, body)
	}
	for _, att := range d.Attachments {
		if !att.Readable() {
			continue
		}
		if text := normalize(att.ExtractedText); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// DateOrUnknown returns the send date as given, or "unknown" when absent.
func (d Document) DateOrUnknown() string {
	if d.SentAt == "" {
		return "unknown"
	}
	return d.SentAt
}

// SourceRef points at a not-yet-parsed document in a DocumentSource.
type SourceRef struct {
	ID       string `json:"id"`
	Location string `json:"location"`
}
