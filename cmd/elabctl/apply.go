package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"elabctl/internal/api"
	"elabctl/internal/manifest"
	"elabctl/internal/plan"
	"elabctl/internal/state"
	"elabctl/internal/ui"
)

var applyCmd = &cobra.Command{
	Use:   "apply [dir]",
	Short: "Create, update and delete objects until they match the manifests",
	Long: `Compute the plan and execute it against the server. The plan is shown
first and a confirmation is asked for unless --auto-approve is set.
--dry-run stops after the preview, exactly like plan.

Operations run strictly in declaration order: an items type is created
before the items inside it, and ids learned from creations feed the
operations that follow. The first failure aborts the run.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		stateFile, _ := cmd.Flags().GetString("state-file")
		release, _ := cmd.Flags().GetString("release")
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
		p, err := plan.NewEvaluator(index, snapshot, release, warnLogger()).EvaluateApply()
		if err != nil {
			fatal(err)
		}

		renderer := ui.NewRenderer()
		if p.IsEmpty() {
			fmt.Println("No changes. The managed objects match the manifests.")
			return
		}
		fmt.Print(renderer.RenderPlan(p))
		if dryRun {
			return
		}
		if !autoApprove {
			ok, err := confirm("Apply these changes?")
			if err != nil {
				fatal(err)
			}
			if !ok {
				fmt.Println("Apply cancelled.")
				return
			}
		}

		if err := p.Execute(ctx, client); err != nil {
			fatal(err)
		}
		creates, updates, deletes := p.Counts()
		fmt.Printf("Apply complete: %d added, %d changed, %d destroyed.\n", creates, updates, deletes)

		if err := refreshStateFile(ctx, client, stateFile); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not refresh %s: %v\n", stateFile, err)
		}
	},
}

func confirm(title string) (bool, error) {
	ok := false
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(title).Value(&ok),
	))
	if err := form.Run(); err != nil {
		return false, err
	}
	return ok, nil
}

// refreshStateFile re-pulls the live state into the cache file after a
// successful run, so the next offline plan sees the new ids.
func refreshStateFile(ctx context.Context, client *api.Client, stateFile string) error {
	if stateFile == "" {
		return nil
	}
	snapshot, err := state.Pull(ctx, client, true, nil)
	if err != nil {
		return err
	}
	return snapshot.WriteFile(stateFile)
}

func init() {
	applyCmd.Flags().String("state-file", "", "Read and refresh a cached state file instead of pulling twice")
	applyCmd.Flags().String("release", "", "Version stamp written into the control metadata")
	applyCmd.Flags().Bool("auto-approve", false, "Skip the interactive confirmation")
	applyCmd.Flags().Bool("dry-run", false, "Show the plan and exit without touching the server")
	rootCmd.AddCommand(applyCmd)
}
