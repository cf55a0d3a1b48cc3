package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/genericsim/tribectl/internal/model"
	"github.com/genericsim/tribectl/pkg/tribeapi"
)

var tribesCmd = &cobra.Command{
	Use:   "tribes",
	Short: "Inspect tribes",
}

// -- tribes list --

var tribesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tribes known to the Tribe Service",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := validateClientConfig(); err != nil {
			return err
		}
		withStats, _ := cmd.Flags().GetBool("stats")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		rows, err := listTribes(cmd.Context(), newClient(cfg), withStats, concurrency)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Fprintln(os.Stderr, "No tribes found.")
			return nil
		}
		formatTribes(os.Stdout, rows, withStats)
		return nil
	},
}

// -- tribes show --

var tribesShowCmd = &cobra.Command{
	Use:   "show <tribe-id>",
	Short: "Show the full state of a tribe",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateClientConfig(); err != nil {
			return err
		}
		id, err := parseTribeID(args[0])
		if err != nil {
			return err
		}

		st, err := newClient(cfg).GetTribeState(cmd.Context(), id)
		if err != nil {
			return eris.Wrap(err, "tribes show")
		}
		return writeJSON(os.Stdout, st)
	},
}

func init() {
	tribesListCmd.Flags().Bool("stats", false, "include population and resource status per tribe")
	tribesListCmd.Flags().Int("concurrency", 4, "max concurrent statistics requests")

	tribesCmd.AddCommand(tribesListCmd, tribesShowCmd)
	rootCmd.AddCommand(tribesCmd)
}

// tribeRow is one line of `tribes list`.
type tribeRow struct {
	Tribe model.Tribe
	Stats *model.TribeStatistics
}

// listTribes fetches the tribe list and, when withStats is set, each tribe's
// statistics concurrently. A failed statistics call leaves that row without
// stats rather than failing the listing.
func listTribes(ctx context.Context, client tribeapi.Client, withStats bool, concurrency int) ([]tribeRow, error) {
	tribes, err := client.ListTribes(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "tribes list")
	}

	rows := make([]tribeRow, len(tribes))
	for i, t := range tribes {
		rows[i].Tribe = t
	}
	if !withStats {
		return rows, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for i := range rows {
		g.Go(func() error {
			stats, err := client.GetStatistics(gctx, rows[i].Tribe.ID)
			if err != nil {
				zap.L().Warn("tribes list: statistics unavailable",
					zap.Int64("tribe_id", rows[i].Tribe.ID),
					zap.Error(err),
				)
				return nil
			}
			rows[i].Stats = stats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "tribes list: statistics")
	}
	return rows, nil
}

// formatTribes writes a tabular tribe listing to out.
func formatTribes(out io.Writer, rows []tribeRow, withStats bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if withStats {
		_, _ = fmt.Fprintln(w, "ID\tNAME\tDAY\tPOPULATION\tHEALTHY\tRESOURCES")
		_, _ = fmt.Fprintln(w, "--\t----\t---\t----------\t-------\t---------")
	} else {
		_, _ = fmt.Fprintln(w, "ID\tNAME\tDAY")
		_, _ = fmt.Fprintln(w, "--\t----\t---")
	}

	for _, r := range rows {
		if !withStats {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%d\n", r.Tribe.ID, r.Tribe.Name, r.Tribe.CurrentTick)
			continue
		}
		pop, healthy, status := "-", "-", "-"
		if r.Stats != nil {
			pop = strconv.Itoa(r.Stats.TotalPopulation)
			healthy = strconv.Itoa(r.Stats.HealthStats.HealthyMembers)
			status = string(r.Stats.ResourceStats.ResourceStatus)
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\n",
			r.Tribe.ID, r.Tribe.Name, r.Tribe.CurrentTick, pop, healthy, status)
	}
	_ = w.Flush()
}

func parseTribeID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, eris.Errorf("invalid tribe id %q", s)
	}
	return id, nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
