package main

import (
	"github.com/spf13/cobra"

	"github.com/genericsim/tribectl/internal/policysync"
	"github.com/genericsim/tribectl/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Edit tribe policies interactively",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := validateClientConfig(); err != nil {
			return err
		}
		ctx := cmd.Context()

		var rec policysync.Recorder
		st, err := openJournal(ctx, cfg)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
			rec = st
		}

		mode, _ := cmd.Flags().GetString("mode")
		ctrl, err := newController(cfg, newClient(cfg), rec, mode)
		if err != nil {
			return err
		}
		err = tui.Run(ctx, ctrl)
		ctrl.Wait()
		return err
	},
}

func init() {
	tuiCmd.Flags().String("mode", "", "update payload: full or diff (default from config)")
	rootCmd.AddCommand(tuiCmd)
}
