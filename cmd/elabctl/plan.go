package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"elabctl/internal/manifest"
	"elabctl/internal/plan"
	"elabctl/internal/state"
	"elabctl/internal/ui"
)

var planCmd = &cobra.Command{
	Use:   "plan [dir]",
	Short: "Preview the changes apply would make",
	Long: `Parse the manifests, compare them against the managed objects on the
server and print the ordered operations apply would run. Nothing is
changed.

With --state-file the comparison runs against a cached snapshot instead
of the live server, which needs no connection at all. With --watch the
plan is recomputed whenever a manifest file changes.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		stateFile, _ := cmd.Flags().GetString("state-file")
		release, _ := cmd.Flags().GetString("release")
		watch, _ := cmd.Flags().GetBool("watch")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		logger := newLogger()
		if !watch {
			if err := runPlan(ctx, dir, stateFile, release, logger); err != nil {
				fatal(err)
			}
			return
		}
		if err := watchPlan(ctx, dir, stateFile, release, logger); err != nil {
			fatal(err)
		}
	},
}

func evaluateApply(ctx context.Context, dir, stateFile, release string, logger *log.Logger) (*plan.Plan, error) {
	index, err := manifest.ParseIndex(dir, logger)
	if err != nil {
		return nil, err
	}
	var snapshot *state.State
	if stateFile != "" {
		snapshot, err = state.ReadFile(stateFile, warnLogger())
	} else {
		client, cErr := newClient(logger)
		if cErr != nil {
			return nil, cErr
		}
		snapshot, err = state.Pull(ctx, client, true, logger)
	}
	if err != nil {
		return nil, err
	}
	return plan.NewEvaluator(index, snapshot, release, warnLogger()).EvaluateApply()
}

func runPlan(ctx context.Context, dir, stateFile, release string, logger *log.Logger) error {
	p, err := evaluateApply(ctx, dir, stateFile, release, logger)
	if err != nil {
		return err
	}
	renderer := ui.NewRenderer()
	if p.IsEmpty() {
		fmt.Println("No changes. The managed objects match the manifests.")
		return nil
	}
	fmt.Print(renderer.RenderPlan(p))
	return nil
}

// watchPlan re-plans after every burst of manifest changes until the
// context is cancelled.
func watchPlan(ctx context.Context, dir, stateFile, release string, logger *log.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return err
	}

	replan := func() {
		fmt.Printf("\n--- %s ---\n", time.Now().Format(time.TimeOnly))
		if err := runPlan(ctx, dir, stateFile, release, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	replan()

	// Editors fire several events per save; a short timer folds each
	// burst into one re-plan.
	var debounce *time.Timer
	pending := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isManifestFile(event.Name) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(250*time.Millisecond, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})
		case <-pending:
			replan()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Warning: watcher: %v\n", err)
		}
	}
}

func isManifestFile(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func init() {
	planCmd.Flags().String("state-file", "", "Compare against a cached state file instead of the server")
	planCmd.Flags().String("release", "", "Version stamp the control metadata would carry")
	planCmd.Flags().Bool("watch", false, "Re-plan whenever a manifest file changes")
	rootCmd.AddCommand(planCmd)
}
