package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dhcgn/mail-graph/config"
	"github.com/dhcgn/mail-graph/filter"
	"github.com/dhcgn/mail-graph/graph"
	"github.com/dhcgn/mail-graph/stats"
)

const reportRowLimit = 1000

var reportCategories = []string{"senders", "recipients", "pairs"}

func newStatsCommand() *cobra.Command {
	var (
		reportDir string
		topN      int
	)

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Scan the corpus and report the most active senders, recipients and pairs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if topN < 0 {
				return fmt.Errorf("--top must not be negative")
			}

			logger, cleanup, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()
			slog.SetDefault(logger)

			result, err := buildGraph(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			counter := countEdges(result.store)
			printStats(out, result, counter, topN)

			if err := saveCSVReports(counter, reportDir, reportRowLimit); err != nil {
				return fmt.Errorf("error saving CSV reports: %w", err)
			}
			fmt.Fprintf(out, "\nReports saved to directory: %s\n", reportDir)

			return nil
		},
	}

	statsCmd.Flags().StringVarP(&reportDir, "report-dir", "r", ".", "Output directory for CSV reports")
	statsCmd.Flags().IntVarP(&topN, "top", "t", 10, "Number of top items to display in statistics")

	return statsCmd
}

// countEdges tallies out degree per sender, in degree per recipient and the
// number of messages per directed pair.
func countEdges(store *graph.Store) map[string]map[string]int {
	counter := make(map[string]map[string]int, len(reportCategories))
	for _, c := range reportCategories {
		counter[c] = make(map[string]int)
	}
	for _, e := range store.Edges() {
		counter["senders"][string(e.From)]++
		counter["recipients"][string(e.To)]++
		counter["pairs"][fmt.Sprintf("%s -> %s", e.From, e.To)]++
	}
	return counter
}

func printStats(w io.Writer, result *scanResult, counter map[string]map[string]int, topN int) {
	s := result.summary
	fmt.Fprintf(w, "Scanned %d files: %d parsed, %d skipped, %d filtered, %d unreadable\n",
		s.Scanned, s.Parsed, s.SkippedTotal(), s.Filtered, s.ReadErrors)
	fmt.Fprintf(w, "Graph has %d identities and %d edges\n\n", result.store.NodeCount(), result.store.EdgeCount())

	printFilterStats(w, result.filter.GetStats())

	for _, c := range reportCategories {
		fmt.Fprintf(w, "Top %d %s:\n", topN, c)
		stats.PrettyPrintTop(w, counter[c], topN)
		fmt.Fprintln(w)
	}
}

func printFilterStats(w io.Writer, fs filter.Stats) {
	groups := []struct {
		title    string
		patterns []string
	}{
		{"Include Header Filters", fs.IncludeHeaderPatterns},
		{"Include Body Filters", fs.IncludeBodyPatterns},
		{"Exclude Header Filters", fs.ExcludeHeaderPatterns},
		{"Exclude Body Filters", fs.ExcludeBodyPatterns},
	}

	printed := false
	for _, g := range groups {
		if len(g.patterns) == 0 {
			continue
		}
		printed = true
		fmt.Fprintf(w, "%s:\n", g.title)
		printFilterHits(w, g.patterns, fs.Hits)
		fmt.Fprintln(w)
	}
	if printed {
		fmt.Fprint(w, "---\n\n")
	}
}

func printFilterHits(w io.Writer, patterns []string, hits map[string]int) {
	sorted := make([]string, len(patterns))
	copy(sorted, patterns)
	sort.Slice(sorted, func(i, j int) bool {
		if hits[sorted[i]] != hits[sorted[j]] {
			return hits[sorted[i]] > hits[sorted[j]]
		}
		return sorted[i] < sorted[j]
	})

	for _, p := range sorted {
		fmt.Fprintf(w, "  %s: %d hits\n", p, hits[p])
	}
}

func saveCSVReports(counter map[string]map[string]int, dir string, limit int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for _, category := range reportCategories {
		filePath := filepath.Join(dir, fmt.Sprintf("report_%s.csv", category))
		if err := writeCSVReport(filePath, stats.Top(counter[category], limit)); err != nil {
			return fmt.Errorf("%s: %w", filePath, err)
		}
	}

	return nil
}

func writeCSVReport(path string, rows []stats.Count) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"Value", "Count"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{row.Key, strconv.Itoa(row.Value)}); err != nil {
			return err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return file.Close()
}
