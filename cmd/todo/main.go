// Command todo is the CLI front end for the task manager: task and list
// operations against the local file store, plus account, sync and
// migration operations against the cloud backend.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd.CompletionOptions = cobra.CompletionOptions{DisableDefaultCmd: true}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
