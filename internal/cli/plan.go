package cli

import (
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan [bundle ...]",
	Short: "Show what apply would change, without writing",
	Long: `Diffs the named bundles (or all of them) against the live zone and
prints the writes apply would issue. No remote mutation is performed,
including the placeholder seeding for missing rule containers.`,
	RunE:         runPlan,
	SilenceUsage: true,
}

var planAllFlag bool

func init() {
	planCmd.Flags().BoolVar(&planAllFlag, "all", false, "Plan every bundle in catalog order")
}

// GetPlanCmd export
func GetPlanCmd() *cobra.Command {
	return planCmd
}

func runPlan(cmd *cobra.Command, args []string) error {
	return runDeployment(cmd, args, planAllFlag, true)
}
