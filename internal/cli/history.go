package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"smugsync/internal/config"
	"smugsync/internal/database"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent sync runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.NewBoltDB(config.ExpandPath(a.cfg.System.JournalPath))
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.List(limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}
			now := time.Now()
			for _, r := range runs {
				printRun(out, r, now)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show (0 for all)")
	return cmd
}
