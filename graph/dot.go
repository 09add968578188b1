package graph

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const listingSeparator = "--------------------------------------"

// Serialize renders the edges of s as a DOT digraph. Identities and labels are
// written verbatim; nodes without edges do not appear.
func Serialize(s *Store) string {
	var sb strings.Builder
	_ = WriteDOT(&sb, s)
	return sb.String()
}

// WriteDOT streams the same bytes Serialize returns.
func WriteDOT(w io.Writer, s *Store) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("digraph G {\n"); err != nil {
		return err
	}
	for _, e := range s.edges {
		if _, err := fmt.Fprintf(bw, "    \"%s\" -> \"%s\" [ label = \"%s\" ];\n", e.From, e.To, e.Label); err != nil {
			return err
		}
	}
	if _, err := bw.WriteString("}\n"); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteListing prints every node, a separator line and then every edge as
// "from -> to".
func WriteListing(w io.Writer, s *Store) error {
	bw := bufio.NewWriter(w)
	for _, n := range s.nodes {
		if _, err := fmt.Fprintln(bw, n.Identity); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(bw, listingSeparator); err != nil {
		return err
	}
	for _, e := range s.edges {
		if _, err := fmt.Fprintf(bw, "%s -> %s\n", e.From, e.To); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes the DOT rendering of s to path. The content goes to a
// temporary file in the same directory which is renamed over path, so readers
// never observe a partial graph.
func WriteFile(path string, s *Store) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if err := WriteDOT(tmp, s); err != nil {
		cleanup()
		return fmt.Errorf("write graph: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync graph: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close graph: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod graph: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename graph: %w", err)
	}
	return nil
}
