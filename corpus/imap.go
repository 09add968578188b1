package corpus

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/dhcgn/mail-graph/model"
)

type IMAPOptions struct {
	Host               string
	Port               int
	Username           string
	Password           string
	UseTLS             bool
	InsecureSkipVerify bool
	Folder             string
}

// IMAP yields every message of a mailbox folder. The folder is opened read
// only and bodies are fetched with PEEK, so the \Seen flags stay untouched.
// Document paths have the form "imap://<host>/<folder>/<uid>".
type IMAP struct {
	opts   IMAPOptions
	logger *slog.Logger
}

func NewIMAP(opts IMAPOptions, logger *slog.Logger) (*IMAP, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("imap host is empty")
	}
	if opts.Port <= 0 {
		return nil, fmt.Errorf("imap port must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IMAP{opts: opts, logger: logger}, nil
}

func (s *IMAP) Walk(ctx context.Context, fn func(model.Envelope) error) error {
	client, cleanup, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	folder := s.folder()
	selected, err := client.Select(folder, &imapv2.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		return fmt.Errorf("examine mailbox %s: %w", folder, err)
	}
	s.logger.Info("imap mailbox opened", "mailbox", folder, "messages", selected.NumMessages)
	if selected.NumMessages == 0 {
		return nil
	}

	var seqSet imapv2.SeqSet
	seqSet.AddRange(1, selected.NumMessages)
	section := &imapv2.FetchItemBodySection{Peek: true}
	fetch := client.Fetch(seqSet, &imapv2.FetchOptions{
		UID:         true,
		BodySection: []*imapv2.FetchItemBodySection{section},
	})

	for {
		if err := ctx.Err(); err != nil {
			_ = fetch.Close()
			return err
		}

		data := fetch.Next()
		if data == nil {
			break
		}

		buf, err := data.Collect()
		if err != nil {
			_ = fetch.Close()
			return fmt.Errorf("fetch message: %w", err)
		}

		path := fmt.Sprintf("imap://%s/%s/%d", s.opts.Host, folder, buf.UID)
		raw := buf.FindBodySection(section)
		env := envelope(path, raw)
		if raw == nil {
			env = failed(path, fmt.Errorf("message %d: server returned no body", buf.SeqNum))
		}

		if err := fn(env); err != nil {
			_ = fetch.Close()
			return err
		}
	}

	if err := fetch.Close(); err != nil {
		return fmt.Errorf("fetch mailbox %s: %w", folder, err)
	}
	return nil
}

func (s *IMAP) dial(ctx context.Context) (*imapclient.Client, func(), error) {
	address := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	options := &imapclient.Options{}

	if s.opts.UseTLS {
		options.TLSConfig = &tls.Config{
			ServerName:         s.opts.Host,
			InsecureSkipVerify: s.opts.InsecureSkipVerify,
		}
	}

	var (
		client *imapclient.Client
		err    error
	)

	if s.opts.UseTLS {
		client, err = imapclient.DialTLS(address, options)
	} else {
		client, err = imapclient.DialInsecure(address, options)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("dial imap %s: %w", address, err)
	}

	if err := client.Login(s.opts.Username, s.opts.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("imap login failed: %w", err)
	}

	s.logger.Debug("imap connection established", "address", address, "user", s.opts.Username, "tls", s.opts.UseTLS)

	stopClose := context.AfterFunc(ctx, func() {
		_ = client.Close()
	})

	cleanup := func() {
		stopClose()
		if ctx.Err() == nil {
			if err := client.Logout().Wait(); err != nil {
				s.logger.Warn("imap logout failed", "err", err)
			}
		}
		if err := client.Close(); err != nil {
			s.logger.Debug("imap connection closed", "err", err)
		}
	}

	return client, cleanup, nil
}

func (s *IMAP) folder() string {
	if s.opts.Folder == "" {
		return "INBOX"
	}
	return s.opts.Folder
}
