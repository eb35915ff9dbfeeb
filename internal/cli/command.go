// Package cli is the condoaccess command line: the server and the one-shot
// maintenance jobs the scheduler otherwise runs.
package cli

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/tech-arch1tect/condoaccess/app"
	"github.com/tech-arch1tect/condoaccess/config"
)

type options struct {
	// newBuilder is swapped in tests to supply a config without touching
	// the environment.
	newBuilder func() *app.AppBuilder
}

func defaultBuilder() *app.AppBuilder {
	return app.NewApp().WithAutoConfig()
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(&options{newBuilder: defaultBuilder})
}

func newRootCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "condoaccess",
		Short:        "Resident session and login security service",
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newServeCommand(opts),
		newSnapshotCommand(opts),
		newPruneCommand(opts),
		newUserCommand(opts),
	)
	return cmd
}

func newServeCommand(opts *options) *cobra.Command {
	var noScheduler bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run periodic snapshots and pruning",
		RunE: func(cmd *cobra.Command, args []string) error {
			b := opts.newBuilder().WithHTTP().WithMail()
			if !noScheduler {
				b = b.WithScheduler()
			}
			a, err := b.Build()
			if err != nil {
				return err
			}
			return a.Run()
		},
	}
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "do not run periodic snapshot and prune jobs")
	return cmd
}

// withApp starts a headless app for the duration of fn.
func withApp(ctx context.Context, b *app.AppBuilder, fn func(context.Context, *app.App) error) (err error) {
	a, err := b.Build()
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if stopErr := a.Stop(); err == nil {
			err = stopErr
		}
	}()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// flagNumber reads an optional numeric flag; unset means NaN so the service
// applies its configured default.
func flagNumber(cmd *cobra.Command, name string) float64 {
	if !cmd.Flags().Changed(name) {
		return math.NaN()
	}
	raw, _ := cmd.Flags().GetString(name)
	return config.ParseNumber(raw)
}

func newSnapshotCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Compute and store one security metric snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			windowHours, topN := flagNumber(cmd, "window-hours"), flagNumber(cmd, "top-n")
			return withApp(cmd.Context(), opts.newBuilder().WithMail(), func(ctx context.Context, a *app.App) error {
				snapshot, err := a.Telemetry().CreateSnapshot(ctx, windowHours, topN)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), snapshot)
			})
		},
	}
	cmd.Flags().String("window-hours", "", "window length in hours (default from METRICS_WINDOW_HOURS)")
	cmd.Flags().String("top-n", "", "ranking size (default from METRICS_TOP_N)")
	return cmd
}

func newPruneCommand(opts *options) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete audit events and snapshots past their retention",
		RunE: func(cmd *cobra.Command, args []string) error {
			if target != "all" && target != "audit" && target != "snapshots" {
				return fmt.Errorf("invalid --target %q: expected all, audit or snapshots", target)
			}
			auditDays, snapshotDays := flagNumber(cmd, "audit-retention-days"), flagNumber(cmd, "snapshot-retention-days")

			return withApp(cmd.Context(), opts.newBuilder(), func(ctx context.Context, a *app.App) error {
				telemetry := a.Telemetry()
				if target != "snapshots" {
					res, err := telemetry.PruneAuditEvents(ctx, auditDays)
					if err != nil {
						return err
					}
					if err := printJSON(cmd.OutOrStdout(), res); err != nil {
						return err
					}
				}
				if target != "audit" {
					res, err := telemetry.PruneSnapshots(ctx, snapshotDays)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), res)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&target, "target", "all", "tables to prune: all, audit or snapshots")
	cmd.Flags().String("audit-retention-days", "", "audit retention (default from AUDIT_RETENTION_DAYS)")
	cmd.Flags().String("snapshot-retention-days", "", "snapshot retention (default from SNAPSHOT_RETENTION_DAYS)")
	return cmd
}

func newUserCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage portal accounts"}

	var email, password, role string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a resident or admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts.newBuilder(), func(ctx context.Context, a *app.App) error {
				user, err := a.Users().CreateUser(ctx, email, password, role)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), user)
			})
		},
	}
	create.Flags().StringVar(&email, "email", "", "account email")
	create.Flags().StringVar(&password, "password", "", "account password")
	create.Flags().StringVar(&role, "role", "resident", "resident or admin")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")

	cmd.AddCommand(create)
	return cmd
}
