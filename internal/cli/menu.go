package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zoneguard/zoneguard/internal/catalog"
)

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Interactive bundle selection",
	Long: `Prompts for a bundle to apply, repeatedly, until "quit". Selection is
case-sensitive against the bundle names plus "all". Anything else
re-prompts without side effects.`,
	RunE:         runMenu,
	SilenceUsage: true,
}

// GetMenuCmd export
func GetMenuCmd() *cobra.Command {
	return menuCmd
}

func runMenu(cmd *cobra.Command, args []string) error {
	// Credentials fail fast, before the first prompt.
	if _, err := loadConfig(); err != nil {
		return err
	}

	names := catalog.Names()
	scanner := bufio.NewScanner(cmd.InOrStdin())

	for {
		fmt.Printf("\n%sSelect a bundle%s [%s], %sall%s, or %squit%s: ",
			colorBold, colorReset, strings.Join(names, ", "), colorBold, colorReset, colorBold, colorReset)

		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		choice := strings.TrimSpace(scanner.Text())

		switch {
		case choice == "quit":
			return nil
		case choice == "all":
			if err := runDeployment(cmd, nil, true, false); err != nil {
				return err
			}
		case containsExact(names, choice):
			if err := runDeployment(cmd, []string{choice}, false, false); err != nil {
				return err
			}
		default:
			fmt.Printf("%sUnrecognized selection %q%s\n", colorYellow, choice, colorReset)
		}
	}
}

func containsExact(names []string, s string) bool {
	for _, n := range names {
		if n == s {
			return true
		}
	}
	return false
}
