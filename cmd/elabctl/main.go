// elabctl reconciles declarative YAML manifests against an eLabFTW
// instance: plan the changes, apply or destroy them, and export the
// resulting objects.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"elabctl/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "elabctl",
	Short: "Declarative management of eLabFTW resources",
	Long: `elabctl keeps an eLabFTW instance in sync with YAML manifests.

Manifests declare items, experiments, items types and experiment
templates by name. elabctl compares them against the objects it manages
on the server and computes an ordered set of create, update and delete
operations.

Typical workflow:
  elabctl config set                # store host and API key
  elabctl plan ./manifests          # preview the changes
  elabctl apply ./manifests         # apply them
  elabctl get item --format csv     # export what is on the server

Only objects created by elabctl are ever touched: everything else on
the instance is invisible to plan, apply and destroy.`,
}

func init() {
	rootCmd.PersistentFlags().String("profile", config.DefaultProfile, "Connection profile to use")
	rootCmd.PersistentFlags().String("config", "", "Profile file (default ~/.config/elabctl/profiles.toml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Print progress while talking to the server")
	rootCmd.PersistentFlags().String("log-file", "", "Mirror log output into a rotated file")

	viper.SetEnvPrefix("ELABCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.BindPFlag("profile", rootCmd.PersistentFlags().Lookup("profile"))
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log-file", rootCmd.PersistentFlags().Lookup("log-file"))
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
