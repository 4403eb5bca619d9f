package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	goRBAC "github.com/MrEthical07/goRBAC"
)

func newValidateCmd(g *globalFlags) *cobra.Command {
	var (
		dumpState  string
		failOnWarn bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load a policy, build an engine from it and print a report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := g.engine(cmd, nil)
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := engine.EvaluateAllRoles(); err != nil {
				return fmt.Errorf("resolve lazy roles: %w", err)
			}

			report := engine.PolicyReport()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Mode:\t%s\n", report.Mode)
			fmt.Fprintf(w, "Wildcards:\t%t\n", report.WildcardsEnabled)
			fmt.Fprintf(w, "Strict:\t%t\n", report.StrictMode)
			fmt.Fprintf(w, "Permissions:\t%d\n", report.Permissions)
			if report.RemainingCapacity >= 0 {
				fmt.Fprintf(w, "Free bits:\t%d\n", report.RemainingCapacity)
			}
			fmt.Fprintf(w, "Roles:\t%d\n", report.Roles)
			fmt.Fprintf(w, "Ranked roles:\t%d\n", report.RankedRoles)
			fmt.Fprintf(w, "Cache:\t%t (ttl %s)\n", report.CacheEnabled, report.CacheTTL)
			w.Flush()

			for _, role := range engine.ListRoles() {
				perms, _ := engine.GetRolePermissions(role)
				fmt.Fprintf(cmd.OutOrStdout(), "role %s level=%d permissions=%v\n", role, engine.GetRoleLevel(role), perms)
			}

			cfg := engine.Config()
			warnings := cfg.Lint()
			for _, lw := range warnings {
				fmt.Fprintf(cmd.OutOrStdout(), "lint %s %s: %s\n", lw.Severity, lw.Code, lw.Message)
			}

			if dumpState != "" {
				data, err := engine.MarshalState()
				if err != nil {
					return fmt.Errorf("marshal state: %w", err)
				}
				if err := os.WriteFile(dumpState, data, 0o644); err != nil {
					return fmt.Errorf("write state: %w", err)
				}
			}

			if failOnWarn && len(warnings.BySeverity(goRBAC.LintWarn)) > 0 {
				return fmt.Errorf("policy has %d lint warnings", len(warnings.BySeverity(goRBAC.LintWarn)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dumpState, "dump-state", "", "write the built engine state as JSON to this file")
	cmd.Flags().BoolVar(&failOnWarn, "fail-on-warn", false, "exit non-zero when lint reports warnings")
	return cmd
}
