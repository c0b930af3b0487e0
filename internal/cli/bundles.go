package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zoneguard/zoneguard/internal/catalog"
)

var bundlesCmd = &cobra.Command{
	Use:   "bundles",
	Short: "List the baseline bundles",
	RunE:  runBundles,
}

// GetBundlesCmd export
func GetBundlesCmd() *cobra.Command {
	return bundlesCmd
}

func runBundles(cmd *cobra.Command, args []string) error {
	bundles, err := catalog.Bundles()
	if err != nil {
		return err
	}

	fmt.Printf("%sBundles:%s\n", colorBold, colorReset)
	fmt.Println(strings.Repeat("-", 50))
	for _, b := range bundles {
		parts := []string{}
		if n := len(b.Settings); n > 0 {
			parts = append(parts, fmt.Sprintf("%d setting(s)", n))
		}
		if n := len(b.Rules); n > 0 {
			parts = append(parts, fmt.Sprintf("%d rule(s) in %s", n, b.Phase))
		}
		fmt.Printf("%s%-20s%s %s — %s\n", colorBold, b.Name, colorReset, b.Description, strings.Join(parts, ", "))
	}
	return nil
}
