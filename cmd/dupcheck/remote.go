package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/totegamma/caselaw-dupcheck"
	"github.com/totegamma/caselaw-dupcheck/client"
)

var (
	triggerScope  string
	triggerUnits  []string
	statusLimit   int
	duplicatesAll bool
	jsonOutput    bool
)

func init() {
	triggerCmd.Flags().StringVar(&triggerScope, "scope", "", "cycle scope: full, changed or units (default changed)")
	triggerCmd.Flags().StringSliceVar(&triggerUnits, "unit", nil, "unit id to reconcile (repeatable)")
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "number of runs to list")
	duplicatesCmd.Flags().BoolVar(&duplicatesAll, "all", false, "include ignored relations")

	for _, c := range []*cobra.Command{triggerCmd, statusCmd, duplicatesCmd} {
		c.Flags().BoolVar(&jsonOutput, "json", false, "print raw json")
	}
}

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Ask a running server to queue a reconciliation cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := dupcheck.TriggerRequest{Scope: triggerScope, UnitIDs: triggerUnits}
		if len(triggerUnits) > 0 && req.Scope == "" {
			req.Scope = dupcheck.ScopeUnits
		}
		report, err := client.New(serverURL).Trigger(cmd.Context(), req)
		if err != nil {
			return err
		}
		printRun(cmd, report)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show one run or the most recent runs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(serverURL)
		if len(args) == 1 {
			report, err := c.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printRun(cmd, report)
			return nil
		}

		reports, err := c.Runs(cmd.Context(), statusLimit)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, reports)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSCOPE\tTRIGGER\tRESULT\tCANDIDATES\tINSERTED\tDELETED\tDOWNGRADED")
		for _, r := range reports {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n", r.ID, r.Scope, r.Trigger, r.Result, r.Candidates, r.Inserted, r.Deleted, r.Downgraded)
		}
		return w.Flush()
	},
}

var duplicatesCmd = &cobra.Command{
	Use:   "duplicates <unit-id>",
	Short: "List duplicate relations of a unit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var statuses []dupcheck.RelationStatus
		if duplicatesAll {
			statuses = []dupcheck.RelationStatus{dupcheck.RelationStatusPending, dupcheck.RelationStatusIgnored}
		}
		relations, err := client.New(serverURL).Duplicates(cmd.Context(), args[0], statuses...)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, relations)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DUPLICATE\tSTATUS\tREASONS")
		for _, rel := range relations {
			other := rel.HigherID
			if other == args[0] {
				other = rel.LowerID
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", other, rel.Status, strings.Join(rel.Reasons, ","))
		}
		return w.Flush()
	},
}

func printRun(cmd *cobra.Command, r dupcheck.RunReport) {
	if jsonOutput {
		_ = printJSON(cmd, r)
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s (%s, %s): %s\n", r.ID, r.Scope, r.Trigger, r.Result)
	if r.StartedAt != nil {
		fmt.Fprintf(out, "  candidates %d, inserted %d, deleted %d, downgraded %d, dropped %d\n",
			r.Candidates, r.Inserted, r.Deleted, r.Downgraded, r.Dropped)
	}
	if r.Digest != "" {
		fmt.Fprintf(out, "  digest %s\n", r.Digest)
	}
	if r.Error != "" {
		fmt.Fprintf(out, "  error: %s\n", r.Error)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
