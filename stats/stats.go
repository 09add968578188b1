package stats

import (
	"fmt"
	"io"
	"sort"
)

type EventType string

const (
	EventTypeScanned   EventType = "scanned"
	EventTypeParsed    EventType = "parsed"
	EventTypeFiltered  EventType = "filtered"
	EventTypeSkipped   EventType = "skipped"
	EventTypeReadError EventType = "read_error"
	EventTypeSelfLoop  EventType = "self_loop"
)

// Event describes what happened to one corpus document.
type Event struct {
	Type      EventType
	Path      string
	MessageID string
	Reason    string
	Edges     int
	Err       error
}

type Summary struct {
	Scanned    int
	Parsed     int
	Filtered   int
	Skipped    map[string]int
	ReadErrors int
	Edges      int
	SelfLoops  int
	LastError  error
}

// SkippedTotal sums the skips over every reason.
func (s Summary) SkippedTotal() int {
	total := 0
	for _, n := range s.Skipped {
		total += n
	}
	return total
}

func (s Summary) LogAttrs() []any {
	attrs := []any{
		"scanned", s.Scanned,
		"parsed", s.Parsed,
		"filtered", s.Filtered,
		"skipped", s.SkippedTotal(),
		"readErrors", s.ReadErrors,
		"edges", s.Edges,
		"selfLoops", s.SelfLoops,
	}
	reasons := make([]string, 0, len(s.Skipped))
	for reason := range s.Skipped {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		attrs = append(attrs, "skipped."+reason, s.Skipped[reason])
	}
	if s.LastError != nil {
		attrs = append(attrs, "lastError", s.LastError.Error())
	}
	return attrs
}

// Collector folds events into a Summary. It is not safe for concurrent use.
type Collector struct {
	summary Summary
}

func NewCollector() *Collector {
	return &Collector{summary: Summary{Skipped: make(map[string]int)}}
}

func (c *Collector) Record(evt Event) {
	switch evt.Type {
	case EventTypeScanned:
		c.summary.Scanned++
	case EventTypeParsed:
		c.summary.Parsed++
		c.summary.Edges += evt.Edges
	case EventTypeFiltered:
		c.summary.Filtered++
	case EventTypeSkipped:
		c.summary.Skipped[evt.Reason]++
	case EventTypeReadError:
		c.summary.ReadErrors++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	case EventTypeSelfLoop:
		c.summary.SelfLoops++
	}
}

// Snapshot returns a copy of the current summary.
func (c *Collector) Snapshot() Summary {
	summary := c.summary
	summary.Skipped = make(map[string]int, len(c.summary.Skipped))
	for k, v := range c.summary.Skipped {
		summary.Skipped[k] = v
	}
	return summary
}

// Count is one key of a frequency table.
type Count struct {
	Key   string
	Value int
}

// Top sorts m by value descending, ties broken by key, and returns at most
// limit entries. A negative limit returns everything.
func Top(m map[string]int, limit int) []Count {
	pairs := make([]Count, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, Count{k, v})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Value != pairs[j].Value {
			return pairs[i].Value > pairs[j].Value
		}
		return pairs[i].Key < pairs[j].Key
	})

	if limit >= 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

// PrettyPrintTop prints the top N most frequent items in a map.
func PrettyPrintTop(w io.Writer, m map[string]int, limit int) {
	for i, p := range Top(m, limit) {
		fmt.Fprintf(w, "%d. %s (%d)\n", i+1, p.Key, p.Value)
	}
}
