package corpus

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	mboxlib "github.com/emersion/go-mbox"

	"github.com/dhcgn/mail-graph/model"
)

// Mbox yields every message of an mbox archive as one document. Document
// paths have the form "<archive>#<index>".
type Mbox struct {
	path   string
	logger *slog.Logger
}

func NewMbox(path string, logger *slog.Logger) (*Mbox, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("mbox path is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mbox{path: path, logger: logger}, nil
}

func (m *Mbox) Walk(ctx context.Context, fn func(model.Envelope) error) error {
	file, err := os.Open(m.path)
	if err != nil {
		return fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	return walkMbox(ctx, m.path, file, fn)
}

// Count counts the messages in the archive without decoding them.
func (m *Mbox) Count(ctx context.Context) (int, error) {
	file, err := os.Open(m.path)
	if err != nil {
		return 0, fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	reader := mboxlib.NewReader(file)
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return count, nil
			}
			return 0, err
		}

		if _, err := io.Copy(io.Discard, msgReader); err != nil {
			m.logger.Debug("count could not read message", "path", m.path, "index", count, "err", err)
		}
		count++
	}
}

// go-mbox hands out every message line terminated by CRLF. The extractor
// counts line positions, so LF archives get their LF endings back.
func walkMbox(ctx context.Context, name string, r io.Reader, fn func(model.Envelope) error) error {
	br := bufio.NewReaderSize(r, 64*1024)
	crlf := usesCRLF(br)
	reader := mboxlib.NewReader(br)

	for idx := 0; ; idx++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("message %d: %w", idx, err)
		}

		path := fmt.Sprintf("%s#%d", name, idx)
		raw, err := io.ReadAll(msgReader)
		if !crlf {
			raw = bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
		}
		env := envelope(path, raw)
		if err != nil {
			env = failed(path, fmt.Errorf("message %d read: %w", idx, err))
		}

		if err := fn(env); err != nil {
			return err
		}
	}
}

// usesCRLF reports whether the first line of the archive ends with CRLF. An
// archive without a newline in its first 4 KiB is treated as LF.
func usesCRLF(br *bufio.Reader) bool {
	head, _ := br.Peek(4096)
	idx := bytes.IndexByte(head, '\n')
	return idx > 0 && head[idx-1] == '\r'
}
