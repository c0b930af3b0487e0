package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zoneguard/zoneguard/internal/catalog"
	"github.com/zoneguard/zoneguard/internal/lint"
)

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate the catalog without touching the zone",
	Long: `Loads every bundle and checks the structural and CEL invariants the
deploy commands enforce before running. Useful after editing bundle data.`,
	RunE:         runLint,
	SilenceUsage: true,
}

// GetLintCmd export
func GetLintCmd() *cobra.Command {
	return lintCmd
}

func runLint(cmd *cobra.Command, args []string) error {
	bundles, err := catalog.Bundles()
	if err != nil {
		return err
	}

	linter, err := lint.NewLinter()
	if err != nil {
		return err
	}

	issues := linter.Catalog(bundles)
	if len(issues) == 0 {
		fmt.Printf("%s✓ catalog valid%s (%d bundles)\n", colorGreen, colorReset, len(bundles))
		return nil
	}

	for _, i := range issues {
		fmt.Printf("%s✗%s %s\n", colorRed, colorReset, i.String())
	}
	return fmt.Errorf("%w: %d issue(s)", catalog.ErrInvalid, len(issues))
}
