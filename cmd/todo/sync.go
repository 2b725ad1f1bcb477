package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"todo-overlay/internal/remote"
	"todo-overlay/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the storage mode and sync state",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := mustApp(ctx)
		defer a.close()

		fmt.Printf("Mode:   %s\n", a.provider.Mode())
		fmt.Printf("Status: %s\n", a.provider.SyncStatus())
		if user := a.provider.CurrentUser(); user != nil {
			fmt.Printf("User:   %s\n", user.Email)
		}
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Load the latest cloud snapshot",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := mustApp(ctx)
		defer a.close()
		a.requireCloud()

		snap, err := a.provider.Load(ctx)
		if err != nil {
			if storage.NeedsReauth(err) {
				fatal(fmt.Errorf("%w (run `todo login`)", err))
			}
			fatal(err)
		}
		fmt.Printf("Pulled %d tasks, %d lists, %d labels\n",
			len(snap.Tasks), len(snap.Settings.Lists), len(snap.Settings.Labels))
	},
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Save the current snapshot to the cloud",
	Long: `Save re-uploads the last loaded snapshot, stamping every row with
this device's id so other devices apply the change and this one ignores
its own echo.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := mustApp(ctx)
		defer a.close()
		a.requireCloud()

		snap, err := a.provider.Load(ctx)
		if err != nil {
			fatal(err)
		}
		if err := a.provider.Save(ctx, snap); err != nil {
			fatal(err)
		}
		fmt.Println("Pushed")
	},
}

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the cloud schema, triggers and change feed",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := mustApp(ctx)
		defer a.close()
		a.requireCloud()

		store, err := remote.Open(a.cfg.Cloud.DSN)
		if err != nil {
			fatal(err)
		}
		defer store.Close()

		if err := store.InitSchema(ctx); err != nil {
			fatal(err)
		}
		fmt.Println("Schema initialized")
	},
}

func init() {
	rootCmd.AddCommand(statusCmd, pullCmd, pushCmd, initDBCmd)
}
