package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/genericsim/tribectl/internal/journal"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List journaled policy submissions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if !cfg.Journal.Enabled {
			return eris.New("history: the journal is disabled (journal.enabled=false)")
		}

		st, err := openJournal(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		tribe, _ := cmd.Flags().GetInt64("tribe")
		outcome, _ := cmd.Flags().GetString("outcome")
		limit, _ := cmd.Flags().GetInt("limit")

		entries, err := st.List(ctx, journal.Filter{
			TribeID: tribe,
			Outcome: journal.Outcome(outcome),
			Limit:   limit,
		})
		if err != nil {
			return eris.Wrap(err, "history")
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No policy changes recorded.")
			return nil
		}
		formatHistory(os.Stdout, entries)
		return nil
	},
}

func init() {
	historyCmd.Flags().Int64("tribe", 0, "only show changes for this tribe")
	historyCmd.Flags().String("outcome", "", "filter by outcome (updated, rejected, failed)")
	historyCmd.Flags().Int("limit", 20, "max entries to show")
	rootCmd.AddCommand(historyCmd)
}

// formatHistory writes a tabular journal listing to out.
func formatHistory(out io.Writer, entries []journal.Entry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTRIBE\tWHEN\tMODE\tOUTCOME\tCHANGED\tMESSAGE")
	_, _ = fmt.Fprintln(w, "--\t-----\t----\t----\t-------\t-------\t-------")
	for _, e := range entries {
		id := e.ID
		if len(id) > 8 {
			id = id[:8]
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			id,
			e.TribeID,
			e.CreatedAt.Format("2006-01-02 15:04"),
			e.Mode,
			e.Outcome,
			strings.Join(e.Changed, ","),
			truncate(e.Message, 60),
		)
	}
	_ = w.Flush()
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
