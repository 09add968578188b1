// Package corpus yields the message documents of a mail corpus, one at a
// time, from a maildir tree, an mbox archive or an IMAP folder.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/dhcgn/mail-graph/config"
	"github.com/dhcgn/mail-graph/model"
)

// ErrInvalidUTF8 marks documents whose bytes are not valid UTF-8 text.
var ErrInvalidUTF8 = errors.New("content is not valid UTF-8")

// Source walks a corpus. Documents that cannot be read are passed to fn as
// envelopes carrying Err; only failures that stop the traversal are returned.
// Walk stops early and returns the error when fn fails.
type Source interface {
	Walk(ctx context.Context, fn func(model.Envelope) error) error
}

// Counter is implemented by sources that can cheaply report how many
// documents a walk will yield.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Open returns the source selected by cfg.
func Open(cfg config.Config, logger *slog.Logger) (Source, error) {
	switch cfg.Source() {
	case config.SourceMbox:
		return NewMbox(cfg.MboxPath, logger)
	case config.SourceIMAP:
		return NewIMAP(IMAPOptions{
			Host:               cfg.IMAPHost,
			Port:               cfg.IMAPPort,
			Username:           cfg.IMAPUser,
			Password:           cfg.IMAPPass,
			UseTLS:             cfg.UseTLS,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			Folder:             cfg.IMAPFolder,
		}, logger)
	default:
		return NewDir(cfg.RootDir, logger)
	}
}

func envelope(path string, raw []byte) model.Envelope {
	if !utf8.Valid(raw) {
		return model.Envelope{
			Document: model.Document{Path: path},
			Err:      fmt.Errorf("decode %s: %w", path, ErrInvalidUTF8),
		}
	}
	return model.Envelope{Document: model.Document{Path: path, Text: string(raw)}}
}

func failed(path string, err error) model.Envelope {
	return model.Envelope{Document: model.Document{Path: path}, Err: err}
}
