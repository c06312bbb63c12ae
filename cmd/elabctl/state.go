package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"elabctl/internal/state"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Work with cached state snapshots",
}

var statePullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Download the managed objects into a state file",
	Long: `Pull every object elabctl manages from the server and write the
snapshot to a JSON file. plan, apply and destroy accept the file via
--state-file, which avoids a full pull per run.

With --all the snapshot also includes objects elabctl does not manage.
Such a snapshot is useful for inspection but plan still ignores the
unmanaged entries.`,
	Run: func(cmd *cobra.Command, args []string) {
		out, _ := cmd.Flags().GetString("out")
		all, _ := cmd.Flags().GetBool("all")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		logger := newLogger()
		client, err := newClient(logger)
		if err != nil {
			fatal(err)
		}
		snapshot, err := state.Pull(ctx, client, !all, logger)
		if err != nil {
			fatal(err)
		}
		if err := snapshot.WriteFile(out); err != nil {
			fatal(err)
		}
		fmt.Printf("Wrote %d objects to %s\n", snapshot.Len(), out)
	},
}

var stateShowCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Summarize a state file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		snapshot, err := state.ReadFile(args[0], warnLogger())
		if err != nil {
			fatal(err)
		}
		for _, obj := range snapshot.All() {
			marker := " "
			if !obj.Tracked() {
				marker = "*"
			}
			fmt.Printf("%s %-22s %6d  %s\n", marker, obj.Kind, obj.ID(), obj.Name())
		}
		fmt.Printf("%d objects (* = not managed by elabctl)\n", snapshot.Len())
	},
}

func init() {
	statePullCmd.Flags().String("out", "state.json", "Destination file")
	statePullCmd.Flags().Bool("all", false, "Include objects elabctl does not manage")

	stateCmd.AddCommand(statePullCmd)
	stateCmd.AddCommand(stateShowCmd)
	rootCmd.AddCommand(stateCmd)
}
