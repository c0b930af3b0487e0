package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zoneguard/zoneguard/internal/catalog"
	"github.com/zoneguard/zoneguard/internal/config"
	"github.com/zoneguard/zoneguard/internal/observability"
	"github.com/zoneguard/zoneguard/internal/observability/logging"
	otelobs "github.com/zoneguard/zoneguard/internal/observability/otel"
	"github.com/zoneguard/zoneguard/internal/observability/receipt"
	"github.com/zoneguard/zoneguard/internal/version"
)

// ANSI modifiers for terminal output.
const (
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorReset  = "\033[0m"
)

var rootCmd = &cobra.Command{
	Use:   "zoneguard",
	Short: "Declarative security baseline for a Cloudflare zone",
	Long: `zoneguard reconciles a zone's live configuration against a built-in
security/performance baseline, issuing only the remote writes needed to
reach the desired state.`,
	Version:           version.BuildVersion(),
	PersistentPreRunE: setupContext,
	PersistentPostRun: teardownContext,
}

var (
	tokenFlag  string
	zoneFlag   string
	configFlag string

	logFormatFlag string
	logLevelFlag  string
	logOutputFlag string

	otelFlag         bool
	otelEndpointFlag string
	otelProtocolFlag string
	otelInsecureFlag bool

	receiptFlag     string
	receiptModeFlag string
)

// closers torn down after the command finishes.
var (
	activeLogger  logging.Logger
	activeHandle  *otelobs.Handle
	activeReceipt receipt.Writer
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&tokenFlag, "token", "", "Cloudflare API token (or env "+config.EnvToken+")")
	pf.StringVar(&zoneFlag, "zone", "", "Target zone ID (or env "+config.EnvZone+")")
	pf.StringVar(&configFlag, "config", "", "Path to YAML credentials file")

	pf.StringVar(&logFormatFlag, "log-format", "pretty", "Log format: pretty or jsonl")
	pf.StringVar(&logLevelFlag, "log-level", "info", "Log level: debug, info, warn, error")
	pf.StringVar(&logOutputFlag, "log-output", "stderr", "Log destination: stderr or a file path")

	pf.BoolVar(&otelFlag, "otel", false, "Enable OpenTelemetry tracing")
	pf.StringVar(&otelEndpointFlag, "otel-endpoint", "", "OTLP endpoint (default from OTEL_EXPORTER_OTLP_ENDPOINT)")
	pf.StringVar(&otelProtocolFlag, "otel-protocol", otelobs.ProtocolHTTP, "OTLP protocol: otlphttp or otlpgrpc")
	pf.BoolVar(&otelInsecureFlag, "otel-insecure", false, "Allow insecure OTLP connections")

	pf.StringVar(&receiptFlag, "receipt", "", "Write a JSON run receipt to this path")
	pf.StringVar(&receiptModeFlag, "receipt-mode", string(receipt.ModeAppend), "Receipt write mode: overwrite or append")

	rootCmd.AddCommand(GetApplyCmd())
	rootCmd.AddCommand(GetPlanCmd())
	rootCmd.AddCommand(GetBundlesCmd())
	rootCmd.AddCommand(GetLintCmd())
	rootCmd.AddCommand(GetMenuCmd())
}

func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	if errors.Is(err, config.ErrInvalid) || errors.Is(err, catalog.ErrInvalid) {
		os.Exit(2)
	}
	os.Exit(1)
}

// setupContext wires op id, logger, optional tracing, and the receipt
// writer into the command context before any subcommand runs.
func setupContext(cmd *cobra.Command, args []string) error {
	ctx := observability.WithOpID(cmd.Context())

	logger, err := logging.NewLogger(logging.Config{
		Format: logFormatFlag,
		Level:  logLevelFlag,
		Output: logOutputFlag,
	})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	activeLogger = logger
	ctx = logging.WithLogger(ctx, logger)

	if otelFlag {
		cfg := otelobs.DefaultConfig()
		cfg.Enabled = true
		cfg.Endpoint = otelEndpointFlag
		cfg.Protocol = otelProtocolFlag
		cfg.Insecure = otelInsecureFlag
		handle, err := otelobs.Init(ctx, cfg)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		activeHandle = handle
		ctx = otelobs.WithHandle(ctx, handle)
	}

	if receiptFlag != "" {
		w, err := receipt.NewWriter(receiptFlag, receiptModeFlag)
		if err != nil {
			return err
		}
		activeReceipt = w
		ctx = receipt.WithWriter(ctx, w)
	}

	cmd.SetContext(ctx)
	return nil
}

func teardownContext(cmd *cobra.Command, args []string) {
	if activeHandle != nil {
		_ = activeHandle.Shutdown(context.Background())
		activeHandle = nil
	}
	if activeReceipt != nil {
		_ = activeReceipt.Close()
		activeReceipt = nil
	}
	if activeLogger != nil {
		_ = activeLogger.Close()
		activeLogger = nil
	}
}

// loadConfig resolves credentials from flags, env, and the optional file.
func loadConfig() (config.Config, error) {
	return config.Load(tokenFlag, zoneFlag, configFlag)
}
