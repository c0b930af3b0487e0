package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/zoneguard/zoneguard/internal/catalog"
	"github.com/zoneguard/zoneguard/internal/cfapi"
	"github.com/zoneguard/zoneguard/internal/lint"
	"github.com/zoneguard/zoneguard/internal/models"
	"github.com/zoneguard/zoneguard/internal/observability"
	"github.com/zoneguard/zoneguard/internal/observability/logging"
	otelobs "github.com/zoneguard/zoneguard/internal/observability/otel"
	"github.com/zoneguard/zoneguard/internal/observability/receipt"
	"github.com/zoneguard/zoneguard/internal/reconcile"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var applyCmd = &cobra.Command{
	Use:   "apply [bundle ...]",
	Short: "Apply baseline bundles to the zone",
	Long: `Reconciles the named bundles (or all of them) against the live zone,
issuing only the writes needed. A failed bundle is reported and the run
continues with the next one; partial failure does not change the exit code.

Examples:
  zoneguard apply --all
  zoneguard apply dns-tls speed
  zoneguard apply waf-custom --receipt runs.jsonl`,
	RunE:         runApply,
	SilenceUsage: true,
}

var applyAllFlag bool

func init() {
	applyCmd.Flags().BoolVar(&applyAllFlag, "all", false, "Apply every bundle in catalog order")
}

// GetApplyCmd export
func GetApplyCmd() *cobra.Command {
	return applyCmd
}

func runApply(cmd *cobra.Command, args []string) error {
	return runDeployment(cmd, args, applyAllFlag, false)
}

// runDeployment is the shared body of apply and plan.
func runDeployment(cmd *cobra.Command, args []string, all, dryRun bool) (err error) {
	ctx := cmd.Context()
	name := "apply"
	if dryRun {
		name = "plan"
	}
	sess := receipt.Start(ctx, "zoneguard "+name, os.Args[1:])
	var summary *models.RunSummary
	var zoneID string

	defer func() {
		_ = sess.Finish(err, receipt.WithZone(zoneID), receipt.WithRun(summary, dryRun))
	}()

	log := logging.From(ctx)
	start := time.Now()

	bundles, err := selectBundles(args, all)
	if err != nil {
		return err
	}

	// Catalog invariants are fatal before anything remote happens.
	if err := lintCatalog(bundles); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	zoneID = cfg.ZoneID

	if h := otelobs.From(ctx); h != nil {
		var span trace.Span
		ctx, span = h.Tracer.Start(ctx, "zoneguard."+name,
			trace.WithAttributes(
				attribute.String("zoneguard.op_id", observability.OpID(ctx)),
				attribute.String("zoneguard.zone", cfg.ZoneID),
				attribute.Int("zoneguard.bundles", len(bundles)),
			))
		defer func() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed")
			} else {
				span.SetStatus(codes.Ok, "success")
			}
			span.End()
		}()
	}

	log.Event(ctx, name+".start", map[string]any{"zone": cfg.ZoneID, "bundles": bundleNames(bundles)})

	client := cfapi.NewClient(cfg.Token, cfg.ZoneID)
	runner := reconcile.NewRunner(client, dryRun)

	mode := "Applying"
	if dryRun {
		mode = "Planning"
	}
	fmt.Printf("%s%s %d bundle(s) for zone %s%s\n", colorBold, mode, len(bundles), cfg.ZoneID, colorReset)

	summary = runner.Run(ctx, bundles)
	printSummary(summary, dryRun)

	log.Event(ctx, name+".complete", map[string]any{
		"duration_ms": time.Since(start).Milliseconds(),
		"created":     summary.Created,
		"updated":     summary.Updated,
		"skipped":     summary.Skipped,
		"failed":      summary.Failed,
	})

	// Partial bundle failure is reported, not escalated to exit status.
	return nil
}

// selectBundles resolves the requested names, case-sensitively, in
// catalog order for --all and operator order otherwise.
func selectBundles(names []string, all bool) ([]models.Bundle, error) {
	if all {
		if len(names) > 0 {
			return nil, fmt.Errorf("--all cannot be combined with bundle names")
		}
		return catalog.Bundles()
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no bundles selected; name one of %s or use --all",
			strings.Join(catalog.Names(), ", "))
	}

	bundles := make([]models.Bundle, 0, len(names))
	for _, n := range names {
		b, err := catalog.Get(n)
		if err != nil {
			return nil, fmt.Errorf("%w (available: %s)", err, strings.Join(catalog.Names(), ", "))
		}
		bundles = append(bundles, *b)
	}
	return bundles, nil
}

// lintCatalog runs the CEL invariants over the selected bundles and turns
// any issue into a fatal catalog error.
func lintCatalog(bundles []models.Bundle) error {
	linter, err := lint.NewLinter()
	if err != nil {
		return err
	}
	issues := linter.Catalog(bundles)
	if len(issues) == 0 {
		return nil
	}
	lines := make([]string, 0, len(issues))
	for _, i := range issues {
		lines = append(lines, i.String())
	}
	return fmt.Errorf("%w:\n  %s", catalog.ErrInvalid, strings.Join(lines, "\n  "))
}

func bundleNames(bundles []models.Bundle) []string {
	names := make([]string, 0, len(bundles))
	for _, b := range bundles {
		names = append(names, b.Name)
	}
	return names
}

func printSummary(summary *models.RunSummary, dryRun bool) {
	for _, br := range summary.Bundles {
		fmt.Printf("\n%s%s%s\n", colorBold, br.Bundle, colorReset)
		fmt.Println(strings.Repeat("-", 50))

		if br.ErrorKind != "" {
			fmt.Printf("%s✗ bundle failed (%s)%s\n  %s→ %s%s\n",
				colorRed, br.ErrorKind, colorReset, colorRed, br.Error, colorReset)
		}

		for _, r := range br.Results {
			switch r.Action {
			case models.ActionCreated:
				fmt.Printf("%s✓%s [created] %s\n", colorGreen, colorReset, r.Target)
			case models.ActionUpdated:
				fmt.Printf("%s✓%s [updated] %s\n", colorYellow, colorReset, r.Target)
			case models.ActionSkipped:
				fmt.Printf("- [skipped] %s\n", r.Target)
			case models.ActionFailed:
				fmt.Printf("%s✗%s [failed]  %s\n", colorRed, colorReset, r.Target)
				if r.Detail != "" {
					fmt.Printf("  %s→ %s%s\n", colorRed, r.Detail, colorReset)
				}
			}
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("-", 50))
	verb := ""
	if dryRun {
		verb = " (dry run)"
	}
	fmt.Printf("%sSummary%s:%s %d created, %d updated, %d skipped, %d failed\n",
		colorBold, verb, colorReset, summary.Created, summary.Updated, summary.Skipped, summary.Failed)

	if failed := summary.FailedBundles(); len(failed) > 0 {
		names := make([]string, 0, len(failed))
		for _, b := range failed {
			names = append(names, b.Bundle)
		}
		fmt.Printf("%s✗ bundles with failures: %s%s\n", colorRed, strings.Join(names, ", "), colorReset)
	} else if summary.Created == 0 && summary.Updated == 0 {
		fmt.Printf("%s✓ zone already matches the baseline%s\n", colorGreen, colorReset)
	} else {
		fmt.Printf("%s✓ baseline applied%s\n", colorGreen, colorReset)
	}
}
