package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"todo-overlay/internal/model"
)

var (
	addDetails string
	addList    string
	addParent  string
	addRemind  string

	listAll       bool
	listCompleted bool
)

var addCmd = &cobra.Command{
	Use:   "add TITLE...",
	Short: "Add a task",
	Long: `Add a task to the active list (or --list). The reminder accepts
natural language, e.g. --remind "tomorrow at 9am" or --remind "in 2 hours".`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := mustApp(ctx)
		defer a.close()

		title := strings.Join(args, " ")

		var reminderAt *int64
		if addRemind != "" {
			ts, err := parseReminder(addRemind)
			if err != nil {
				fatal(err)
			}
			reminderAt = &ts
		}

		if a.localStore != nil {
			snap, err := a.localStore.CreateTask(title, addDetails, reminderAt, addParent, addList)
			if err != nil {
				fatal(err)
			}
			fmt.Printf("Added %q (%d tasks)\n", title, len(snap.Tasks))
			return
		}

		snap, err := a.provider.Load(ctx)
		if err != nil {
			fatal(err)
		}
		task, err := appendTask(snap, title, addDetails, reminderAt, addParent, addList)
		if err != nil {
			fatal(err)
		}
		if err := a.provider.Save(ctx, snap); err != nil {
			fatal(err)
		}
		fmt.Printf("Added %q (%s)\n", task.Title, task.ID)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks in the active list",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := mustApp(ctx)
		defer a.close()

		snap, err := a.provider.Load(ctx)
		if err != nil {
			fatal(err)
		}
		printTasks(snap)
	},
}

var doneCmd = &cobra.Command{
	Use:   "done ID",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mutateTask(args[0], "Completed", func(ctx context.Context, a *app, id string) (*model.Snapshot, error) {
			if a.localStore != nil {
				return a.localStore.SetCompleted(id, true)
			}
			return cloudMutate(ctx, a, func(snap *model.Snapshot) error {
				return markCompleted(snap, id, true)
			})
		})
	},
}

var starCmd = &cobra.Command{
	Use:   "star ID",
	Short: "Star a task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mutateTask(args[0], "Starred", func(ctx context.Context, a *app, id string) (*model.Snapshot, error) {
			if a.localStore != nil {
				return a.localStore.SetStarred(id, true)
			}
			return cloudMutate(ctx, a, func(snap *model.Snapshot) error {
				return markStarred(snap, id, true)
			})
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a task and its subtasks",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mutateTask(args[0], "Deleted", func(ctx context.Context, a *app, id string) (*model.Snapshot, error) {
			if a.localStore != nil {
				return a.localStore.DeleteTask(id)
			}
			if err := a.requireCloud().DeleteTask(ctx, id); err != nil {
				return nil, err
			}
			return nil, nil
		})
	},
}

func init() {
	addCmd.Flags().StringVar(&addDetails, "details", "", "task details")
	addCmd.Flags().StringVar(&addList, "list", "", "target list id (default: active list)")
	addCmd.Flags().StringVar(&addParent, "parent", "", "parent task id")
	addCmd.Flags().StringVar(&addRemind, "remind", "", "reminder time in natural language")

	listCmd.Flags().BoolVar(&listAll, "all", false, "show tasks from every list")
	listCmd.Flags().BoolVar(&listCompleted, "completed", false, "include completed tasks")

	rootCmd.AddCommand(addCmd, listCmd, doneCmd, starCmd, rmCmd)
}

// mutateTask runs one id-addressed mutation and prints the result.
func mutateTask(id, verb string, fn func(context.Context, *app, string) (*model.Snapshot, error)) {
	ctx := context.Background()
	a := mustApp(ctx)
	defer a.close()

	if _, err := fn(ctx, a, id); err != nil {
		fatal(err)
	}
	fmt.Printf("%s %s\n", verb, id)
}

// cloudMutate applies one snapshot edit through the load/save protocol.
func cloudMutate(ctx context.Context, a *app, edit func(*model.Snapshot) error) (*model.Snapshot, error) {
	snap, err := a.provider.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := edit(snap); err != nil {
		return nil, err
	}
	if err := a.provider.Save(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func parseReminder(text string) (int64, error) {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(text, time.Now())
	if err != nil {
		return 0, fmt.Errorf("parsing reminder %q: %w", text, err)
	}
	if r == nil {
		return 0, fmt.Errorf("could not understand reminder %q", text)
	}
	return r.Time.UnixMilli(), nil
}

func printTasks(snap *model.Snapshot) {
	listNames := make(map[string]string, len(snap.Settings.Lists))
	for _, l := range snap.Settings.Lists {
		listNames[l.ID] = l.Name
	}

	shown := 0
	for _, t := range snap.Tasks {
		if !listAll && t.ListID != "" && t.ListID != snap.Settings.ActiveListID {
			continue
		}
		if t.Completed() && !listCompleted {
			continue
		}
		marker := "[ ]"
		if t.Completed() {
			marker = "[x]"
		}
		star := " "
		if t.Starred {
			star = "*"
		}
		line := fmt.Sprintf("%s%s %s  %s", marker, star, t.ID, t.Title)
		if listAll {
			if name := listNames[t.ListID]; name != "" {
				line += fmt.Sprintf("  (%s)", name)
			}
		}
		if t.ReminderAt != nil {
			line += fmt.Sprintf("  @%s", time.UnixMilli(*t.ReminderAt).Format("2006-01-02 15:04"))
		}
		fmt.Fprintln(os.Stdout, line)
		shown++
	}
	if shown == 0 {
		fmt.Println("No tasks.")
	}
}
