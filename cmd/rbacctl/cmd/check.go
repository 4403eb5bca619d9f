package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	goRBAC "github.com/MrEthical07/goRBAC"
)

func newCheckCmd(g *globalFlags) *cobra.Command {
	var (
		userID string
		roles  []string
		perms  []string
		denies []string
		mask   uint32
		audit  bool
	)

	cmd := &cobra.Command{
		Use:   "check [permission...]",
		Short: "Authorize a user against one or more permissions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := g.engine(cmd, func(b *goRBAC.Builder) {
				if audit {
					b.WithAuditSink(goRBAC.NewConsoleSink(cmd.ErrOrStderr()))
				}
			})
			if err != nil {
				return err
			}
			defer engine.Close()

			for _, d := range denies {
				if err := engine.DenyPermission(userID, d); err != nil {
					return fmt.Errorf("deny %q: %w", d, err)
				}
			}

			user := goRBAC.User{ID: userID, Roles: roles, Permissions: perms, PermissionMask: mask}
			if g.strict {
				if err := engine.ValidateUser(user); err != nil {
					return err
				}
			}

			denied := false
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, perm := range args {
				res := engine.Authorize(user, perm)
				verdict := "ALLOW"
				if !res.Allowed {
					verdict = "DENY"
					denied = true
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", perm, verdict, res.Reason)
			}
			w.Flush()

			if denied {
				return errDenied
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "cli", "user id")
	cmd.Flags().StringSliceVarP(&roles, "role", "r", nil, "role assigned to the user (repeatable)")
	cmd.Flags().StringSliceVar(&perms, "perm", nil, "direct permission or pattern (repeatable)")
	cmd.Flags().StringSliceVar(&denies, "deny", nil, "permission pattern denied for the user (repeatable)")
	cmd.Flags().Uint32Var(&mask, "mask", 0, "direct permission mask")
	cmd.Flags().BoolVar(&audit, "audit", false, "print audit events to stderr")
	return cmd
}
