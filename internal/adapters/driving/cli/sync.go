package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driving"
)

// progressInterval is how often a running sync is polled for progress.
var progressInterval = 500 * time.Millisecond

var syncDryRun bool

var syncCmd = &cobra.Command{
	Use:   "sync [entity-type]",
	Short: "Synchronise records from the accounting service",
	Long: `Imports records from the accounting service into the local store.
If an entity type is provided, only that type is synchronised.
Otherwise, all types are synchronised in order:
  customers, invoices, accounts, vendors, journal_entries, budgets`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: withServices,
	RunE:        runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Keep imported records in memory instead of the local store")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if syncOrchestrator == nil {
		return errors.New("sync service not configured")
	}
	ctx := cmd.Context()

	var run func(context.Context) (domain.SyncResult, error)
	if len(args) > 0 {
		entity, err := domain.ParseEntityType(args[0])
		if err != nil {
			return err
		}
		cmd.Printf("Synchronising %s...\n", entity)
		run = func(ctx context.Context) (domain.SyncResult, error) {
			return syncOrchestrator.SyncEntityType(ctx, entity)
		}
	} else {
		cmd.Println("Synchronising all entity types...")
		run = syncOrchestrator.SyncAll
	}

	result, err := syncWithProgress(ctx, cmd, syncOrchestrator, run)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	printResult(cmd, result)

	switch {
	case result.Cancelled():
		return errors.New("sync cancelled")
	case !result.Success:
		return fmt.Errorf("sync failed: %s", result.ErrorMessage)
	}
	return nil
}

// syncWithProgress runs sync while displaying progress updates.
func syncWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	syncOrch driving.SyncOrchestrator,
	run func(context.Context) (domain.SyncResult, error),
) (domain.SyncResult, error) {
	type outcome struct {
		result domain.SyncResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := run(ctx)
		done <- outcome{result, err}
	}()

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	var last domain.EntityType
	for {
		select {
		case o := <-done:
			return o.result, o.err
		case <-ticker.C:
			// Best effort; status errors are ignored.
			status, err := syncOrch.Status(ctx)
			if err == nil && status != nil && status.Running && status.Current != last {
				cmd.Printf("Processing %s... (%d records so far)\n", status.Current, status.RecordsSynced)
				last = status.Current
			}
		}
	}
}

func printResult(cmd *cobra.Command, result domain.SyncResult) {
	for _, o := range result.Outcomes {
		switch {
		case o.Skipped:
			cmd.Printf("  %-16s skipped (%s)\n", o.EntityType, o.Error)
		case o.Error != "":
			cmd.Printf("  %-16s FAILED: %s\n", o.EntityType, o.Error)
		case o.Malformed > 0:
			cmd.Printf("  %-16s %d (%d malformed rows dropped)\n", o.EntityType, o.Records, o.Malformed)
		default:
			cmd.Printf("  %-16s %d\n", o.EntityType, o.Records)
		}
	}
	cmd.Printf("Synced %d records in %s (run %s)\n",
		result.RecordsSynced, result.Duration.Round(time.Millisecond), result.RunID)
}
