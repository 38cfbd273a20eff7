// Package mailbox reads unseen messages from an IMAP inbox as documents.
package mailbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/emersion/go-imap/v2"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
	"github.com/kirillkom/servicing-triage/internal/core/ports"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Mailbox  string
	TLS      bool
	// SaveDir keeps a copy of every fetched message as email_<uid>.eml.
	// Empty disables saving.
	SaveDir string
}

type session interface {
	Unseen(ctx context.Context) ([]imap.UID, error)
	Fetch(ctx context.Context, uid imap.UID) ([]byte, error)
	MarkSeen(ctx context.Context, uid imap.UID) error
	Close() error
}

var errMessageGone = errors.New("message no longer in mailbox")

const uidMarker = ";UID="

// Source keeps one IMAP session open between polls and reconnects after a
// failed call.
type Source struct {
	cfg    Config
	parser ports.DocumentParser
	dial   func(context.Context, Config) (session, error)

	mu   sync.Mutex
	sess session
}

func New(cfg Config, parser ports.DocumentParser) (*Source, error) {
	if strings.TrimSpace(cfg.Host) == "" || strings.TrimSpace(cfg.Username) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "configure mailbox", errors.New("EMAIL_HOST and EMAIL_USER are required"))
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.Port <= 0 {
		cfg.Port = 993
	}
	return &Source{cfg: cfg, parser: parser, dial: dialIMAP}, nil
}

// List returns the unseen messages in UID order.
func (s *Source) List(ctx context.Context) ([]domain.SourceRef, error) {
	var uids []imap.UID
	err := s.withSession(ctx, func(sess session) error {
		var err error
		uids, err = sess.Unseen(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(uids)
	refs := make([]domain.SourceRef, 0, len(uids))
	for _, uid := range uids {
		refs = append(refs, domain.SourceRef{ID: messageID(uid), Location: s.location(uid)})
	}
	return refs, nil
}

func (s *Source) Load(ctx context.Context, ref domain.SourceRef) (domain.Document, error) {
	uid, err := parseUID(ref)
	if err != nil {
		return domain.Document{}, err
	}

	var raw []byte
	err = s.withSession(ctx, func(sess session) error {
		var err error
		raw, err = sess.Fetch(ctx, uid)
		return err
	})
	if errors.Is(err, errMessageGone) {
		return domain.Document{}, domain.WrapError(domain.ErrNotFound, "load "+ref.ID, err)
	}
	if err != nil {
		return domain.Document{}, err
	}

	filename := ref.ID + ".eml"
	if s.cfg.SaveDir != "" {
		if err := saveMessage(s.cfg.SaveDir, filename, raw); err != nil {
			slog.Warn("mailbox_save_failed", "email_id", ref.ID, "dir", s.cfg.SaveDir, "error", err)
		}
	}
	return s.parser.Parse(ctx, filename, bytes.NewReader(raw))
}

func (s *Source) MarkSeen(ctx context.Context, ref domain.SourceRef) error {
	uid, err := parseUID(ref)
	if err != nil {
		return err
	}
	return s.withSession(ctx, func(sess session) error {
		return sess.MarkSeen(ctx, uid)
	})
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return nil
	}
	err := s.sess.Close()
	s.sess = nil
	return err
}

// withSession runs fn on the open session, dialing first if needed. A
// failure other than a vanished message drops the session so the next call
// starts from a fresh login.
func (s *Source) withSession(ctx context.Context, fn func(session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil {
		sess, err := s.dial(ctx, s.cfg)
		if err != nil {
			return domain.WrapError(domain.ErrTemporary, "connect mailbox", err)
		}
		s.sess = sess
	}

	err := fn(s.sess)
	if err != nil && !errors.Is(err, errMessageGone) {
		_ = s.sess.Close()
		s.sess = nil
		return domain.WrapError(domain.ErrTemporary, "mailbox "+s.cfg.Mailbox, err)
	}
	return err
}

func (s *Source) location(uid imap.UID) string {
	return fmt.Sprintf("imap://%s/%s%s%d", s.cfg.Host, s.cfg.Mailbox, uidMarker, uid)
}

func messageID(uid imap.UID) string {
	return fmt.Sprintf("email_%d", uid)
}

func parseUID(ref domain.SourceRef) (imap.UID, error) {
	i := strings.LastIndex(ref.Location, uidMarker)
	if i < 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "mailbox ref", fmt.Errorf("no uid in %q", ref.Location))
	}
	n, err := strconv.ParseUint(ref.Location[i+len(uidMarker):], 10, 32)
	if err != nil || n == 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "mailbox ref", fmt.Errorf("bad uid in %q", ref.Location))
	}
	return imap.UID(n), nil
}

func saveMessage(dir, filename string, raw []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create save dir: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, filename), raw, 0o644)
}
