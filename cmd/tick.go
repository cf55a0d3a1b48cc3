package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var tickCmd = &cobra.Command{
	Use:   "tick <tribe-id>",
	Short: "Advance a tribe's simulation by one day",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateClientConfig(); err != nil {
			return err
		}
		id, err := parseTribeID(args[0])
		if err != nil {
			return err
		}
		days, _ := cmd.Flags().GetInt("days")
		if days < 1 {
			return eris.Errorf("--days must be at least 1, got %d", days)
		}

		client := newClient(cfg)
		for i := 0; i < days; i++ {
			st, err := client.AdvanceTick(cmd.Context(), id)
			if err != nil {
				return eris.Wrapf(err, "tick: day %d of %d", i+1, days)
			}
			zap.L().Debug("tick advanced", zap.Int64("tribe_id", id), zap.Int64("day", st.CurrentTick))
			if i == days-1 {
				fmt.Fprintf(os.Stdout, "%s is now on day %d\n", st.Name, st.CurrentTick)
			}
		}
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the Tribe Service is reachable",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := validateClientConfig(); err != nil {
			return err
		}
		h, err := newClient(cfg).Health(cmd.Context())
		if err != nil {
			return eris.Wrapf(err, "health: %s", cfg.API.BaseURL)
		}
		fmt.Fprintf(os.Stdout, "%s: %s\n", cfg.API.BaseURL, h.Status)
		return nil
	},
}

func init() {
	tickCmd.Flags().Int("days", 1, "number of days to advance")
	rootCmd.AddCommand(tickCmd, healthCmd)
}
