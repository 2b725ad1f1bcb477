package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"todo-overlay/internal/localstate"
	"todo-overlay/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate to-cloud|to-local",
	Short: "Copy all data between local and cloud storage",
	Long: `Migrate copies the full state in one direction.

to-cloud pushes the local file state into the signed-in cloud account in
one bulk save. to-local replays every cloud task through the local command
layer so all the usual validation applies. Neither direction deletes the
source data.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(migrate.ToCloud), string(migrate.ToLocal)},
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		// Migration always needs both backends, whatever the configured
		// mode: force cloud for the provider and open the local store
		// alongside it.
		modeFlag = "cloud"
		a := mustApp(ctx)
		defer a.close()
		cloudProvider := a.requireCloud()

		localStore, err := localstate.Open(a.cfg.DataDir, a.logger)
		if err != nil {
			fatal(err)
		}

		lastShown := -1
		err = migrate.Run(ctx, migrate.Direction(args[0]), migrate.Config{
			Cloud:  cloudProvider,
			Local:  localStore,
			Logger: a.logger,
			OnProgress: func(percent int) {
				// Print at 10% steps to keep the output readable.
				if percent == 100 || percent/10 > lastShown/10 {
					fmt.Printf("  %3d%%\n", percent)
					lastShown = percent
				}
			},
		})
		if err != nil {
			fatal(err)
		}
		fmt.Println("Migration complete")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
