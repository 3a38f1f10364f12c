package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/sitemgmt/pkg/directory"
	"github.com/platinummonkey/sitemgmt/pkg/notify"
	"github.com/platinummonkey/sitemgmt/pkg/observability"
)

// logNotifier reports deactivations in the CLI log. Operators running the
// CLI are the audience; the server's publisher is not configured here.
type logNotifier struct {
	logger *logrus.Logger
}

func (n *logNotifier) AdminDeactivated(_ context.Context, email string) {
	n.logger.WithField("email", email).Info(notify.DeactivationMessage(email))
}

func newAddCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "add <email>",
		Short: "Add an admin or reactivate a deactivated one",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDirectory(ctx, env, func(dir *directory.Directory) error {
				result, admin, err := dir.CreateOrReactivate(ctx, args[0])
				if err != nil {
					return err
				}
				env.Logger.WithFields(logrus.Fields{"id": admin.ID, "result": result.String()}).Debug("Admin saved")
				fmt.Fprintln(cmd.OutOrStdout(), result.Message())
				return nil
			})
		},
	}
}

func newDeactivateCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <email>",
		Short: "Deactivate an admin",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDirectory(ctx, env, func(dir *directory.Directory) error {
				result, err := dir.Deactivate(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), result.Message())
				return nil
			})
		},
	}
}

func newUpdateCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "update <old-email> [new-email]",
		Short: "Change an admin's email; without a new email, reactivate it",
		Args:  rangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			oldEmail, newEmail := args[0], ""
			if len(args) == 2 {
				newEmail = args[1]
			}
			return withDirectory(ctx, env, func(dir *directory.Directory) error {
				result, err := dir.UpdateEmail(ctx, oldEmail, newEmail)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), result.Message())
				return nil
			})
		},
	}
}

func newListCommand(env *Env) *cobra.Command {
	var asJSON, all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List admins",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDirectory(ctx, env, func(dir *directory.Directory) error {
				admins, err := dir.List(ctx)
				if err != nil {
					return err
				}

				shown := make([]*directory.Admin, 0, len(admins))
				for _, admin := range admins {
					if all || admin.Active() {
						shown = append(shown, admin)
					}
				}

				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(shown)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tEMAIL\tACTIVE\tUPDATED")
				for _, admin := range shown {
					fmt.Fprintf(tw, "%d\t%s\t%t\t%s\n", admin.ID, admin.Email, admin.Active(), admin.UpdatedAt.UTC().Format("2006-01-02 15:04:05"))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print admins as JSON")
	cmd.Flags().BoolVar(&all, "all", false, "Include deactivated admins")
	return cmd
}

func newMigrateCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			backend, err := env.Open(ctx)
			if err != nil {
				return err
			}
			defer backend.Close()

			if backend.DB == nil {
				return errors.New("migrate requires a postgres or sqlite3 store")
			}
			if err := directory.Migrate(ctx, backend.DB, backend.Dialect, observability.NewNopLogger()); err != nil {
				return err
			}
			env.Logger.WithField("dialect", string(backend.Dialect)).Info("Schema is up to date")
			return nil
		},
	}
}
