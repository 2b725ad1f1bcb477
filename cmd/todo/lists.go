package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"todo-overlay/internal/model"
)

var listsCmd = &cobra.Command{
	Use:   "lists",
	Short: "Show all lists",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := mustApp(ctx)
		defer a.close()

		snap, err := a.provider.Load(ctx)
		if err != nil {
			fatal(err)
		}
		for _, l := range snap.Settings.Lists {
			marker := " "
			if l.ID == snap.Settings.ActiveListID {
				marker = "*"
			}
			fmt.Printf("%s %s  %s\n", marker, l.ID, l.Name)
		}
	},
}

var listsCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a list",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := mustApp(ctx)
		defer a.close()

		if a.localStore != nil {
			if _, err := a.localStore.CreateList(args[0]); err != nil {
				fatal(err)
			}
		} else {
			_, err := cloudMutate(ctx, a, func(snap *model.Snapshot) error {
				snap.Settings.Lists = append(snap.Settings.Lists, model.List{
					ID:        uuid.NewString(),
					Name:      args[0],
					CreatedAt: model.NowMillis(),
				})
				return nil
			})
			if err != nil {
				fatal(err)
			}
		}
		fmt.Printf("Created list %q\n", args[0])
	},
}

var listsUseCmd = &cobra.Command{
	Use:   "use ID",
	Short: "Set the active list",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := mustApp(ctx)
		defer a.close()

		if a.localStore != nil {
			if _, err := a.localStore.SetActiveList(args[0]); err != nil {
				fatal(err)
			}
		} else {
			_, err := cloudMutate(ctx, a, func(snap *model.Snapshot) error {
				if !hasList(snap, args[0]) {
					return fmt.Errorf("list %s not found", args[0])
				}
				snap.Settings.ActiveListID = args[0]
				return nil
			})
			if err != nil {
				fatal(err)
			}
		}
		fmt.Printf("Active list: %s\n", args[0])
	},
}

func init() {
	listsCmd.AddCommand(listsCreateCmd, listsUseCmd)
	rootCmd.AddCommand(listsCmd)
}
