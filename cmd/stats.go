package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/genericsim/tribectl/internal/model"
)

var statsCmd = &cobra.Command{
	Use:   "stats <tribe-id>",
	Short: "Show population, health and resource statistics for a tribe",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateClientConfig(); err != nil {
			return err
		}
		id, err := parseTribeID(args[0])
		if err != nil {
			return err
		}

		stats, err := newClient(cfg).GetStatistics(cmd.Context(), id)
		if err != nil {
			return eris.Wrap(err, "stats")
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(os.Stdout, stats)
		}
		formatStatistics(os.Stdout, *stats)
		return nil
	},
}

func init() {
	statsCmd.Flags().Bool("json", false, "print the statistics as JSON")
	rootCmd.AddCommand(statsCmd)
}

// formatStatistics writes a statistics report to out.
func formatStatistics(out io.Writer, s model.TribeStatistics) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Tribe\t%s (%d)\n", s.Name, s.ID)
	_, _ = fmt.Fprintf(w, "Day\t%d\n", s.CurrentTick)
	_, _ = fmt.Fprintf(w, "Population\t%d\n", s.TotalPopulation)
	_, _ = fmt.Fprintf(w, "  Hunters\t%d\n", s.RoleBreakdown.Hunters)
	_, _ = fmt.Fprintf(w, "  Gatherers\t%d\n", s.RoleBreakdown.Gatherers)
	_, _ = fmt.Fprintf(w, "  Children\t%d\n", s.RoleBreakdown.Children)
	_, _ = fmt.Fprintf(w, "  Elders\t%d\n", s.RoleBreakdown.Elders)
	_, _ = fmt.Fprintf(w, "Health\tavg %d  min %d  max %d  healthy %d\n",
		s.HealthStats.AverageHealth, s.HealthStats.MinHealth, s.HealthStats.MaxHealth, s.HealthStats.HealthyMembers)
	_, _ = fmt.Fprintf(w, "Resources\tfood %d  water %d\n", s.ResourceStats.Food, s.ResourceStats.Water)
	_, _ = fmt.Fprintf(w, "Status\t%s (%s)\n", s.ResourceStats.ResourceStatus, s.ResourceStats.ResourceStatus.Description())
	if p := s.PolicySummary; p != nil {
		_, _ = fmt.Fprintf(w, "Policy\tfood tax %d%%  water tax %d%%  hunting %d  gathering %d\n",
			p.FoodTaxRate, p.WaterTaxRate, p.HuntingIncentive, p.GatheringIncentive)
	}
	_ = w.Flush()
}
