package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/totegamma/caselaw-dupcheck/internal/domain"
)

var (
	reconcileScope string
	reconcileUnits []string
)

func init() {
	reconcileCmd.Flags().StringVar(&reconcileScope, "scope", "changed", "cycle scope: full, changed or units")
	reconcileCmd.Flags().StringSliceVar(&reconcileUnits, "unit", nil, "unit id to reconcile (repeatable, implies --scope=units)")
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reconciliation cycle in this process and exit",
	Long: `Run one reconciliation cycle against the configured database and exit.

Examples:
  # Reconcile units changed since the last successful run
  dupcheck reconcile

  # Rebuild the whole relation table
  dupcheck reconcile --scope=full

  # Reconcile two units
  dupcheck reconcile --unit=3f0c... --unit=9a1d...`,
	RunE: runReconcile,
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kind := reconcileScope
	if len(reconcileUnits) > 0 && !cmd.Flags().Changed("scope") {
		kind = string(domain.ScopeUnits)
	}
	scope, err := domain.ParseScope(kind, reconcileUnits)
	if err != nil {
		return err
	}

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := a.scheduler.Trigger(ctx, scope, domain.TriggerCLI)
	if err != nil {
		return err
	}
	a.scheduler.Drain(ctx)

	// the scheduler may have retried under a new run id
	runs, err := a.reconciler.ListRuns(ctx, 1)
	if err == nil && len(runs) > 0 {
		run = &runs[0]
	}

	printRun(cmd, run.Report())
	if run.Result != domain.RunResultSucceeded {
		return fmt.Errorf("cycle %s: %s", run.Result, run.Error)
	}
	return nil
}
