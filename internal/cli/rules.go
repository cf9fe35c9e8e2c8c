package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"smugsync/internal/config"
)

// newRuleCmd ignore / include: 向忽略列表末尾追加规则
func newRuleCmd(a *app, include bool) *cobra.Command {
	use, short, verb := "ignore", "Exclude paths (glob patterns) from future syncs", "ignore"
	if include {
		use, short, verb = "include", "Re-include paths excluded by an earlier ignore rule", "include"
	}

	return &cobra.Command{
		Use:   use + " <path>...",
		Short: short,
		Long: `Patterns are matched against paths relative to the sync root, starting with
the source directory name (for example "Photos/2019/*"). Rules are evaluated
in the order they were added and the last matching rule wins.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.AppendRules(a.cfgPath, include, args); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d %s rule(s) to %s.\n", len(args), verb, a.cfgPath)
			return nil
		},
	}
}
