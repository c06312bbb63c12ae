package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"elabctl/internal/manifest"
	"elabctl/internal/plan"
	"elabctl/internal/ui"
)

var destroyCmd = &cobra.Command{
	Use:   "destroy [dir]",
	Short: "Delete every object the manifests declare",
	Long: `Delete the managed objects the manifests declare, in reverse
declaration order so nothing is removed before its dependents. Objects
that no longer exist on the server are skipped with a warning.

Objects not created by elabctl are never deleted, even when a manifest
name happens to match.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		stateFile, _ := cmd.Flags().GetString("state-file")
		autoApprove, _ := cmd.Flags().GetBool("auto-approve")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		logger := newLogger()
		client, err := newClient(logger)
		if err != nil {
			fatal(err)
		}
		index, err := manifest.ParseIndex(dir, logger)
		if err != nil {
			fatal(err)
		}
		snapshot, err := loadSnapshot(ctx, client, stateFile, warnLogger())
		if err != nil {
			fatal(err)
		}
		p, err := plan.NewEvaluator(index, snapshot, "", warnLogger()).EvaluateDestroy()
		if err != nil {
			fatal(err)
		}

		renderer := ui.NewRenderer()
		if p.IsEmpty() {
			fmt.Println("No changes. None of the declared objects exist on the server.")
			return
		}
		fmt.Print(renderer.RenderPlan(p))
		if dryRun {
			return
		}
		if !autoApprove {
			ok, err := confirm("Destroy these objects?")
			if err != nil {
				fatal(err)
			}
			if !ok {
				fmt.Println("Destroy cancelled.")
				return
			}
		}

		if err := p.Execute(ctx, client); err != nil {
			fatal(err)
		}
		_, _, deletes := p.Counts()
		fmt.Printf("Destroy complete: %d destroyed.\n", deletes)

		if err := refreshStateFile(ctx, client, stateFile); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not refresh %s: %v\n", stateFile, err)
		}
	},
}

func init() {
	destroyCmd.Flags().String("state-file", "", "Read and refresh a cached state file instead of pulling twice")
	destroyCmd.Flags().Bool("auto-approve", false, "Skip the interactive confirmation")
	destroyCmd.Flags().Bool("dry-run", false, "Show the plan and exit without touching the server")
	rootCmd.AddCommand(destroyCmd)
}
