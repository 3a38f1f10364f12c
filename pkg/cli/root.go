package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/sitemgmt/pkg/directory"
)

// ErrUsage is returned when a command is invoked with bad arguments
var ErrUsage = errors.New("invalid usage")

// Backend is an opened admin store. DB is nil for the memory store.
type Backend struct {
	Store   directory.Store
	DB      *sql.DB
	Dialect directory.Dialect
}

// Close releases the database connection
func (b *Backend) Close() error {
	if b.DB == nil {
		return nil
	}
	return b.DB.Close()
}

// Env is what commands need from the outside world
type Env struct {
	Out    io.Writer
	Logger *logrus.Logger
	Open   func(ctx context.Context) (*Backend, error)
}

// NewRootCommand creates the sitemgmtctl command tree
func NewRootCommand(env *Env) *cobra.Command {
	root := &cobra.Command{
		Use:   "sitemgmtctl",
		Short: "sitemgmtctl - manage site administrators",
		Long: `sitemgmtctl edits the administrator roster directly in the admin store.
It applies the same email rules as the web console.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return ErrUsage
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(env.Out)
	root.SetErr(env.Out)

	root.AddCommand(
		newAddCommand(env),
		newDeactivateCommand(env),
		newUpdateCommand(env),
		newListCommand(env),
		newMigrateCommand(env),
	)
	return root
}

// exactArgs is cobra.ExactArgs reporting ErrUsage
func exactArgs(n int) cobra.PositionalArgs {
	return rangeArgs(n, n)
}

// rangeArgs is cobra.RangeArgs reporting ErrUsage
func rangeArgs(min, max int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < min || len(args) > max {
			return fmt.Errorf("%w: %s", ErrUsage, cmd.UseLine())
		}
		return nil
	}
}

// withDirectory opens the backend and runs fn against a Directory over it
func withDirectory(ctx context.Context, env *Env, fn func(dir *directory.Directory) error) error {
	backend, err := env.Open(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	return fn(directory.New(backend.Store, directory.WithNotifier(&logNotifier{logger: env.Logger})))
}
