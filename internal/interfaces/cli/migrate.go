package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/pkasolver/internal/infrastructure/database/postgres"
	"github.com/turtacn/pkasolver/pkg/errors"
)

// migrationStatus is the output of migrate status.
type migrationStatus struct {
	Version   uint     `json:"version"`
	Dirty     bool     `json:"dirty"`
	Available []string `json:"available"`
}

func (s *migrationStatus) String() string {
	state := "clean"
	if s.Dirty {
		state = "dirty"
	}
	return fmt.Sprintf("Schema version %d (%s), %d migration(s) available\n", s.Version, state, len(s.Available))
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the profile database schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDSN(cmd, func(dsn string) error {
					if err := postgres.RunMigrations(dsn); err != nil {
						return err
					}
					return PrintSuccess(cmd, "migrations applied")
				})
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back the last migrations (default 1)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n <= 0 {
						return errors.NewValidationError(errors.ErrCodeBadRequest, fmt.Sprintf("invalid step count %q", args[0]))
					}
					steps = n
				}
				return withDSN(cmd, func(dsn string) error {
					if err := postgres.RollbackMigration(dsn, steps); err != nil {
						return err
					}
					return PrintSuccess(cmd, fmt.Sprintf("rolled back %d migration(s)", steps))
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDSN(cmd, func(dsn string) error {
					version, dirty, err := postgres.MigrationStatus(dsn)
					if err != nil {
						return err
					}
					available, err := postgres.AvailableMigrations()
					if err != nil {
						return err
					}
					return PrintResult(cmd, &migrationStatus{Version: version, Dirty: dirty, Available: available})
				})
			},
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Mark a version as applied and clear the dirty flag",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil || v < -1 {
					return errors.NewValidationError(errors.ErrCodeBadRequest, fmt.Sprintf("invalid version %q", args[0]))
				}
				return withDSN(cmd, func(dsn string) error {
					if err := postgres.ForceMigrationVersion(dsn, v); err != nil {
						return err
					}
					return PrintSuccess(cmd, fmt.Sprintf("schema version forced to %d", v))
				})
			},
		},
		newMigrateResetCmd(),
	)
	return cmd
}

func newMigrateResetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-create the schema (destroys all stored profiles)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.NewValidationError(errors.ErrCodeBadRequest, "reset destroys all stored profiles; pass --yes to confirm")
			}
			return withDSN(cmd, func(dsn string) error {
				if err := postgres.ResetDatabase(dsn); err != nil {
					return err
				}
				return PrintSuccess(cmd, "schema reset")
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

func withDSN(cmd *cobra.Command, fn func(dsn string) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	pc := cliCtx.Config.Postgres
	if pc.Host == "" || pc.DBName == "" {
		return errors.NewValidationError(errors.ErrCodeBadRequest, "postgres.host and postgres.db_name are required")
	}
	if err := fn(pc.DSN()); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "migration failed")
	}
	return nil
}

//Personal.AI order the ending
