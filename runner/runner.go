package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dhcgn/mail-graph/corpus"
	"github.com/dhcgn/mail-graph/filter"
	"github.com/dhcgn/mail-graph/graph"
	"github.com/dhcgn/mail-graph/header"
	"github.com/dhcgn/mail-graph/model"
	"github.com/dhcgn/mail-graph/stats"
)

// Runner folds corpus documents into a graph store, one document at a time.
// Malformed or unreadable documents are logged and skipped.
type Runner struct {
	store     *graph.Store
	filter    *filter.Filter
	logger    *slog.Logger
	collector *stats.Collector
	observers []func(stats.Event)
}

func New(store *graph.Store, f *filter.Filter, logger *slog.Logger) (*Runner, error) {
	if store == nil {
		return nil, fmt.Errorf("graph store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:     store,
		filter:    f,
		logger:    logger,
		collector: stats.NewCollector(),
	}, nil
}

func (r *Runner) Store() *graph.Store {
	return r.store
}

// Observe registers fn to receive every event after the runner has counted it.
func (r *Runner) Observe(fn func(stats.Event)) {
	r.observers = append(r.observers, fn)
}

func (r *Runner) Summary() stats.Summary {
	return r.collector.Snapshot()
}

// Run walks src and processes every document it yields. Only traversal
// failures are returned; per-document failures are skipped.
func (r *Runner) Run(ctx context.Context, src corpus.Source) error {
	return src.Walk(ctx, func(env model.Envelope) error {
		r.ProcessFile(env)
		return nil
	})
}

// RunScan processes envs in order.
func (r *Runner) RunScan(envs []model.Envelope) {
	for _, env := range envs {
		r.ProcessFile(env)
	}
}

// ProcessFile extracts the addressing of one document and adds an edge from
// the sender to every recipient, labelled with the message identifier. The
// store is left untouched when the document cannot be read or parsed.
func (r *Runner) ProcessFile(env model.Envelope) {
	path := env.Document.Path
	r.emit(stats.Event{Type: stats.EventTypeScanned, Path: path})

	if env.Err != nil {
		r.logger.Error("error reading file", "path", path, "err", env.Err)
		r.emit(stats.Event{Type: stats.EventTypeReadError, Path: path, Err: env.Err})
		return
	}

	if !r.filter.Allows(env.Document.Text) {
		r.logger.Debug("skipping filtered file", "path", path)
		r.emit(stats.Event{Type: stats.EventTypeFiltered, Path: path})
		return
	}

	msg, err := header.Extract(env.Document.Text)
	if err != nil {
		reason := header.Reason(err)
		r.logger.Warn("skipping file", "path", path, "reason", reason, "err", err)
		r.emit(stats.Event{Type: stats.EventTypeSkipped, Path: path, Reason: reason, Err: err})
		return
	}

	added := 0
	for _, recipient := range msg.Recipients {
		if r.store.AddEdge(msg.From, recipient, msg.MessageID) {
			added++
			continue
		}
		r.emit(stats.Event{Type: stats.EventTypeSelfLoop, Path: path, MessageID: msg.MessageID})
	}

	r.logger.Debug("processed file", "path", path, "messageID", msg.MessageID, "edges", added)
	r.emit(stats.Event{Type: stats.EventTypeParsed, Path: path, MessageID: msg.MessageID, Edges: added})
}

func (r *Runner) emit(evt stats.Event) {
	r.collector.Record(evt)
	for _, fn := range r.observers {
		fn(evt)
	}
}
