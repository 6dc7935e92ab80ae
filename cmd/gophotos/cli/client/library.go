package client

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/mwantia/gophotos/internal/agent"
	"github.com/mwantia/gophotos/internal/library"
	"github.com/mwantia/gophotos/pkg/log"
	"github.com/spf13/cobra"

	config "github.com/mwantia/gophotos/internal/config/server"
)

func NewLibraryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Inspect and maintain the local photo library",
		Long:  "Run a mirror sync, show library metadata, select photo ranges, inspect or reset the local databases without starting the agent.",
	}

	cmd.AddCommand(NewLibrarySyncCommand())
	cmd.AddCommand(NewLibraryShowCommand())
	cmd.AddCommand(NewLibraryRangeCommand())
	cmd.AddCommand(NewLibraryResetCommand())
	cmd.AddCommand(NewLibraryStatusCommand())
	cmd.AddCommand(NewLibraryRollbackCommand())

	return cmd
}

// withComponents wires the core, runs fn and flushes pending library
// changes before returning.
func withComponents(cmd *cobra.Command, fn func(ctx context.Context, c *agent.Components) error) error {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load server configuration: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	c, err := agent.NewComponents(ctx, cfg, log.NewLoggerService("cli", cfg.Log))
	if err != nil {
		return err
	}

	err = fn(ctx, c)
	if cerr := c.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func NewLibrarySyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the local mirror with the remote drive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, func(ctx context.Context, c *agent.Components) error {
				if err := c.Engine.Sync(ctx, c.Drive); err != nil {
					return err
				}

				count, err := c.Mirror.CountHeaders(ctx, c.Drive.Key())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Mirror of %s holds %d photos\n", c.Drive.Key(), count)
				return nil
			})
		},
	}
}

func NewLibraryShowCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show [type]",
		Short: "Show the photo count per month of a library",
		Long:  "Show the photo count per month of a library (photos, archive, bin, apps, favorites).",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := library.TypePhotos
			if len(args) > 0 {
				parsed, err := library.ParseType(args[0])
				if err != nil {
					return err
				}
				t = parsed
			}

			return withComponents(cmd, func(ctx context.Context, c *agent.Components) error {
				md, err := c.Library.Get(ctx, c.Drive, t)
				if err != nil {
					return err
				}

				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(md)
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "MONTH\tPHOTOS")
				for _, ref := range md.FlatMonths() {
					fmt.Fprintf(w, "%04d-%02d\t%d\n", ref.Year, ref.Month, ref.Count)
				}
				fmt.Fprintf(w, "TOTAL\t%d\n", md.TotalNumberOfPhotos)
				return w.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw library metadata")

	return cmd
}

func NewLibraryRangeCommand() *cobra.Command {
	var typ string

	cmd := &cobra.Command{
		Use:   "range <from-file-id> <to-file-id>",
		Short: "List every photo between two photos",
		Long:  "List every photo between two photos, inclusive. The first photo must not be older than the second one.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := library.ParseType(typ)
			if err != nil {
				return err
			}

			return withComponents(cmd, func(ctx context.Context, c *agent.Components) error {
				ids, err := c.Selector.SelectRange(ctx, c.Drive, t, args[0], args[1])
				if err != nil {
					return err
				}

				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&typ, "type", "t", string(library.TypePhotos), "library type")

	return cmd
}

func NewLibraryResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Drop the local mirror and its sync cursor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, func(ctx context.Context, c *agent.Components) error {
				if err := c.Engine.Reset(ctx, c.Drive); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset mirror of %s\n", c.Drive.Key())
				return nil
			})
		},
	}
}

func NewLibraryStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the sync state and the migrations of the local databases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, func(ctx context.Context, c *agent.Components) error {
				have, err := c.Engine.HaveData(ctx, c.Drive)
				if err != nil {
					return err
				}
				cursor, err := c.State.GetCursor(ctx, c.Drive.Key())
				if err != nil {
					return err
				}
				count, err := c.Mirror.CountHeaders(ctx, c.Drive.Key())
				if err != nil {
					return err
				}

				mirror, err := c.Mirror.Migrations(ctx)
				if err != nil {
					return err
				}
				state, err := c.State.Migrations(ctx)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "Drive:\t%s\n", c.Drive.Key())
				fmt.Fprintf(w, "Synced:\t%t\n", have)
				fmt.Fprintf(w, "Headers:\t%d\n", count)
				fmt.Fprintf(w, "Batch cursor:\t%s\n", cursor.LastQueryBatchCursor)
				fmt.Fprintf(w, "Modified since:\t%d\n", cursor.MostRecentQueryModifiedTime)
				fmt.Fprintln(w)

				fmt.Fprintln(w, "DATABASE\tVERSION\tAPPLIED\tDESCRIPTION")
				for _, m := range mirror {
					fmt.Fprintf(w, "mirror\t%d\t%t\t%s\n", m.Version, m.Applied, m.Description)
				}
				for _, m := range state {
					fmt.Fprintf(w, "state\t%d\t%t\t%s\n", m.Version, m.Applied, m.Description)
				}
				return w.Flush()
			})
		},
	}
}

func NewLibraryRollbackCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "rollback <mirror|state>",
		Short:     "Revert the last applied migration of a local database",
		Long:      "Revert the last applied migration of a local database. The agent applies it again on its next start.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"mirror", "state"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, func(ctx context.Context, c *agent.Components) error {
				var err error
				switch args[0] {
				case "mirror":
					err = c.Mirror.Rollback(ctx)
				case "state":
					err = c.State.Rollback(ctx)
				default:
					return fmt.Errorf("unknown database '%s'", args[0])
				}
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Rolled back last %s migration\n", args[0])
				return nil
			})
		},
	}
}
