// Package header locates the message identifier, sender and recipients of a
// raw message file.
//
// Extraction is positional rather than a real RFC 5322 parse: header lines
// are found by prefix, folded recipient lines are recognised only by leading
// whitespace, and only every second line is consulted while following them.
// The thresholds and stride match the fixed layout of the corpus this tool
// was written for and must not be tuned.
package header

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dhcgn/mail-graph/graph"
)

const (
	// MaxToIndex is the exclusive upper bound for the line index of the To field.
	MaxToIndex = 10
	// MaxCcIndex is the exclusive upper bound used by the second recipient walk.
	MaxCcIndex = 16

	messageIDPrefixLen = len("Message-ID: ")
	fromPrefixLen      = len("From: ")
	toPrefixLen        = len("To: ")

	recipientSeparator = ", "
	continuationStride = 2
)

var (
	ErrMissingMessageID = errors.New("no Message-ID line")
	ErrMissingFrom      = errors.New("no From: line")
	ErrMissingTo        = errors.New("no To: line")
)

// Message is the addressing information extracted from one file.
type Message struct {
	MessageID  string
	From       graph.Identity
	Recipients []graph.Identity
}

// Extract parses text and returns the sender, the cleaned recipient list and
// the message identifier. It fails with ErrMissingMessageID, ErrMissingFrom or
// ErrMissingTo, checked in that order.
func Extract(text string) (Message, error) {
	lines := SplitLines(text)
	if len(lines) == 0 {
		return Message{}, ErrMissingMessageID
	}

	fromIdx := indexWithPrefix(lines, "From:")
	if fromIdx < 0 {
		return Message{}, ErrMissingFrom
	}

	toIdx := indexWithPrefix(lines, "To:")
	if toIdx < 0 || toIdx >= MaxToIndex {
		return Message{}, ErrMissingTo
	}

	messageID := strings.TrimSpace(dropRunes(lines[0], messageIDPrefixLen))
	from := strings.TrimSpace(dropRunes(lines[fromIdx], fromPrefixLen))

	tokens := strings.Split(strings.TrimSpace(dropRunes(lines[toIdx], toPrefixLen)), recipientSeparator)
	tokens = appendContinuation(tokens, lines, toIdx)

	// The second walk looks for "To:" again, not "Cc:". A folded To field is
	// therefore collected twice.
	if ccIdx := indexWithPrefix(lines, "To:"); ccIdx >= 0 && ccIdx < MaxCcIndex {
		tokens = appendContinuation(tokens, lines, ccIdx)
	}

	recipients := make([]graph.Identity, 0, len(tokens))
	for _, token := range tokens {
		id := Clean(token)
		if id == "" {
			continue
		}
		recipients = append(recipients, id)
	}

	return Message{
		MessageID:  messageID,
		From:       Clean(from),
		Recipients: recipients,
	}, nil
}

// Clean strips leading and trailing punctuation and removes all quote
// characters from an address token.
func Clean(token string) graph.Identity {
	token = strings.TrimFunc(token, unicode.IsPunct)
	token = strings.ReplaceAll(token, `"`, "")
	token = strings.ReplaceAll(token, `'`, "")
	return graph.NewIdentity(token)
}

// Reason returns a short stable name for an extraction error, suitable for
// log attributes and counters.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMissingMessageID):
		return "missing_message_id"
	case errors.Is(err, ErrMissingFrom):
		return "missing_from"
	case errors.Is(err, ErrMissingTo):
		return "missing_to"
	default:
		return "unknown"
	}
}

// SplitLines splits text at every newline character. Each of \r and \n is a
// separator on its own, so CRLF text yields an empty line between content
// lines. Empty text has no lines.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	var lines []string
	start := 0
	for i, r := range text {
		if isNewline(r) {
			lines = append(lines, text[start:i])
			start = i + utf8.RuneLen(r)
		}
	}
	return append(lines, text[start:])
}

func appendContinuation(tokens, lines []string, idx int) []string {
	for i := idx + continuationStride; i < len(lines) && startsWithSpace(lines[i]); i += continuationStride {
		tokens = append(tokens, strings.Split(strings.TrimSpace(lines[i]), recipientSeparator)...)
	}
	return tokens
}

func indexWithPrefix(lines []string, prefix string) int {
	for i, line := range lines {
		if strings.HasPrefix(line, prefix) {
			return i
		}
	}
	return -1
}

func startsWithSpace(line string) bool {
	for _, r := range line {
		return unicode.IsSpace(r)
	}
	return false
}

func dropRunes(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[i:]
		}
		n--
	}
	return ""
}

func isNewline(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}
