package mailbox

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// imapSession is one logged-in connection with the mailbox selected.
type imapSession struct {
	client *imapclient.Client
}

func dialIMAP(_ context.Context, cfg Config) (session, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	var (
		client *imapclient.Client
		err    error
	)
	if cfg.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialInsecure(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("dial imap %s: %w", addr, err)
	}

	if err := client.Login(cfg.Username, cfg.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("imap login %s: %w", cfg.Username, err)
	}
	if _, err := client.Select(cfg.Mailbox, nil).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("imap select %s: %w", cfg.Mailbox, err)
	}
	return &imapSession{client: client}, nil
}

func (s *imapSession) Unseen(_ context.Context) ([]imap.UID, error) {
	criteria := &imap.SearchCriteria{NotFlag: []imap.Flag{imap.FlagSeen}}
	data, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap search unseen: %w", err)
	}
	return data.AllUIDs(), nil
}

// Fetch reads the full RFC 822 message without setting \Seen; the flag is
// only added once the message has been processed.
func (s *imapSession) Fetch(_ context.Context, uid imap.UID) ([]byte, error) {
	section := &imap.FetchItemBodySection{Peek: true}
	options := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	}
	msgs, err := s.client.Fetch(imap.UIDSetNum(uid), options).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap fetch uid %d: %w", uid, err)
	}
	if len(msgs) == 0 {
		return nil, errMessageGone
	}
	raw := msgs[0].FindBodySection(section)
	if raw == nil {
		return nil, errMessageGone
	}
	return raw, nil
}

func (s *imapSession) MarkSeen(_ context.Context, uid imap.UID) error {
	flags := &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}
	if err := s.client.Store(imap.UIDSetNum(uid), flags, nil).Close(); err != nil {
		return fmt.Errorf("imap store seen uid %d: %w", uid, err)
	}
	return nil
}

func (s *imapSession) Close() error {
	_ = s.client.Logout().Wait()
	return s.client.Close()
}
