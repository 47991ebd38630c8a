// Package cli provides the ledgersync command line interface.
package cli

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driving"
	"github.com/custodia-labs/ledgersync/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Global flags.
var (
	verbose   bool
	noBrowser bool
)

// RunHistory lists past sync runs.
type RunHistory interface {
	ListRuns(ctx context.Context, limit int) ([]domain.SyncResult, error)
}

// SecretWriter stores client credentials.
type SecretWriter interface {
	SetSecret(ctx context.Context, name, value string) error
}

// Services are the core services the commands drive.
type Services struct {
	Tokens  driving.TokenLifecycle
	Sync    driving.SyncOrchestrator
	History RunHistory
	Secrets SecretWriter
	// Close releases resources once the command has finished. Optional.
	Close func() error
}

// Options are the invocation settings a Builder needs.
type Options struct {
	// DryRun keeps imported records and run history in memory.
	DryRun bool
	// SkipBrowser prints the authorization URL instead of opening a browser.
	SkipBrowser bool
}

// Builder constructs services for one invocation.
type Builder func(ctx context.Context, opts Options) (*Services, error)

// Services used by commands. Tests replace them directly.
var (
	tokenLifecycle   driving.TokenLifecycle
	syncOrchestrator driving.SyncOrchestrator
	runHistory       RunHistory
	secretWriter     SecretWriter

	builder       Builder
	closeServices func() error
	isTerminal    = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
)

var rootCmd = &cobra.Command{
	Use:   "ledgersync",
	Short: "Sync financial records from an OAuth2 accounting service",
	Long: `ledgersync imports accounts, customers, vendors, invoices, journal entries
and budgets from a QuickBooks Online company into a local store.

Get started:
  ledgersync auth configure     # store the OAuth app's client id and secret
  ledgersync auth login         # authorize access to a company
  ledgersync sync               # import every entity type`,
	SilenceUsage:      true,
	PersistentPreRunE: prepare,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug output")
	rootCmd.PersistentFlags().BoolVar(&noBrowser, "no-browser", false, "Print the authorization URL instead of opening a browser")
}

// SetServices installs the services used by commands.
func SetServices(s Services) {
	tokenLifecycle = s.Tokens
	syncOrchestrator = s.Sync
	runHistory = s.History
	secretWriter = s.Secrets
	closeServices = s.Close
}

// SetBuilder installs a builder that constructs services lazily, once flags are parsed.
func SetBuilder(b Builder) {
	builder = b
}

// SetVersion overrides the reported version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if closeServices != nil {
		err = errors.Join(err, closeServices())
		closeServices = nil
	}
	return err
}

// prepare applies global flags and builds services for commands that need them.
func prepare(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if builder == nil || !needsServices(cmd) {
		return nil
	}

	// Only sync defines --dry-run; the lookup fails harmlessly elsewhere.
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	svcs, err := builder(cmd.Context(), Options{
		DryRun:      dryRun,
		SkipBrowser: noBrowser || !isTerminal(),
	})
	if err != nil {
		return err
	}
	SetServices(*svcs)
	return nil
}

// annotationServices marks commands that drive core services.
const annotationServices = "ledgersync/services"

var withServices = map[string]string{annotationServices: "true"}

func needsServices(cmd *cobra.Command) bool {
	return cmd.Annotations[annotationServices] == "true"
}
