package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhcgn/mail-graph/model"
)

// Dir yields every regular file below a root directory. Files carry no
// extension in a maildir corpus, so no name filtering is applied.
type Dir struct {
	root   string
	logger *slog.Logger
}

func NewDir(root string, logger *slog.Logger) (*Dir, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("corpus root is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dir{root: root, logger: logger}, nil
}

func (d *Dir) Walk(ctx context.Context, fn func(model.Envelope) error) error {
	if err := d.checkRoot(); err != nil {
		return err
	}

	return filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == d.root {
				return fmt.Errorf("walk corpus root: %w", err)
			}
			return fn(failed(path, fmt.Errorf("access %s: %w", path, err)))
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return fn(failed(path, fmt.Errorf("read file: %w", err)))
		}
		return fn(envelope(path, raw))
	})
}

// Count returns the number of regular files below the root.
func (d *Dir) Count(ctx context.Context) (int, error) {
	if err := d.checkRoot(); err != nil {
		return 0, err
	}

	count := 0
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == d.root {
				return err
			}
			d.logger.Debug("count skipped unreadable entry", "path", path, "err", err)
			return nil
		}
		if entry.Type().IsRegular() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count corpus files: %w", err)
	}
	return count, nil
}

func (d *Dir) checkRoot() error {
	info, err := os.Stat(d.root)
	if err != nil {
		return fmt.Errorf("open corpus root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("corpus root %s is not a directory", d.root)
	}
	return nil
}
