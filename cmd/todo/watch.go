package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"todo-overlay/internal/model"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch for changes and print the updated task count",
	Long: `Watch blocks until interrupted. In cloud mode it subscribes to the
realtime change feed; changes made on this device are filtered out. In
local mode it watches the state file for edits by other processes.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a := mustApp(ctx)
		defer a.close()

		if a.localStore != nil {
			watchLocal(ctx, a)
			return
		}
		watchCloud(ctx, a)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func watchLocal(ctx context.Context, a *app) {
	fmt.Println("Watching local state file (Ctrl-C to stop)")
	err := a.localStore.Watch(ctx, 200*time.Millisecond, func() {
		snap := a.localStore.LoadState()
		report(snap)
	})
	if err != nil && ctx.Err() == nil {
		fatal(err)
	}
}

func watchCloud(ctx context.Context, a *app) {
	provider := a.requireCloud()

	if _, err := provider.Load(ctx); err != nil {
		fatal(err)
	}

	unsubscribe, err := provider.Subscribe(func(snap *model.Snapshot) {
		report(snap)
	})
	if err != nil {
		fatal(err)
	}
	defer unsubscribe()

	fmt.Println("Watching cloud changes (Ctrl-C to stop)")
	<-ctx.Done()
}

func report(snap *model.Snapshot) {
	open := 0
	for _, t := range snap.Tasks {
		if !t.Completed() {
			open++
		}
	}
	fmt.Printf("[%s] %d tasks (%d open)\n", time.Now().Format("15:04:05"), len(snap.Tasks), open)
}
