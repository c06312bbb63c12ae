package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"elabctl/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage connection profiles",
}

var configSetCmd = &cobra.Command{
	Use:   "set [name]",
	Short: "Create or update a connection profile",
	Long: `Store the host URL and API key of an eLabFTW instance under a profile
name. Without a name the "default" profile is written. The API key is
read from the terminal without echo when not passed via --api-key.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := viper.GetString("profile")
		if len(args) == 1 {
			name = args[0]
		}

		hostURL, _ := cmd.Flags().GetString("host-url")
		apiKey, _ := cmd.Flags().GetString("api-key")
		verifySSL, _ := cmd.Flags().GetBool("verify-ssl")

		reader := bufio.NewReader(os.Stdin)
		if hostURL == "" {
			fmt.Print("Host URL (e.g. https://elab.example.org/api/v2): ")
			line, err := reader.ReadString('\n')
			if err != nil {
				fatal(err)
			}
			hostURL = strings.TrimSpace(line)
		}
		if apiKey == "" {
			key, err := promptAPIKey(reader)
			if err != nil {
				fatal(err)
			}
			apiKey = key
		}
		if hostURL == "" || apiKey == "" {
			fatal(fmt.Errorf("both a host URL and an API key are required"))
		}

		path := configPath()
		f, err := config.Load(path)
		if err != nil {
			fatal(err)
		}
		f.Set(name, config.Profile{HostURL: hostURL, APIKey: apiKey, VerifySSL: verifySSL})
		if err := f.Save(path); err != nil {
			fatal(err)
		}
		fmt.Printf("Profile %q written to %s\n", name, path)
	},
}

func promptAPIKey(reader *bufio.Reader) (string, error) {
	fmt.Print("API key: ")
	if term.IsTerminal(int(os.Stdin.Fd())) {
		key, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(key)), nil
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured profiles",
	Run: func(cmd *cobra.Command, args []string) {
		showKeys, _ := cmd.Flags().GetBool("show-keys")
		f, err := config.Load(configPath())
		if err != nil {
			fatal(err)
		}
		if len(f.Profiles) == 0 {
			fmt.Println("No profiles configured. Run 'elabctl config set' first.")
			return
		}
		for _, name := range f.Names() {
			profile, _ := f.Get(name)
			key := maskKey(profile.APIKey)
			if showKeys {
				key = profile.APIKey
			}
			fmt.Printf("%s\t%s\t%s\n", name, profile.HostURL, key)
		}
	},
}

// maskKey keeps the first four characters so profiles stay tellable
// apart without exposing the key.
func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + strings.Repeat("*", len(key)-4)
}

var configDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove a profile",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := configPath()
		f, err := config.Load(path)
		if err != nil {
			fatal(err)
		}
		if !f.Delete(args[0]) {
			fatal(fmt.Errorf("profile %q does not exist", args[0]))
		}
		if err := f.Save(path); err != nil {
			fatal(err)
		}
		fmt.Printf("Profile %q removed\n", args[0])
	},
}

func init() {
	configSetCmd.Flags().String("host-url", "", "API root of the instance")
	configSetCmd.Flags().String("api-key", "", "API key (prompted for when omitted)")
	configSetCmd.Flags().Bool("verify-ssl", true, "Verify the server certificate")
	configListCmd.Flags().Bool("show-keys", false, "Print API keys instead of masking them")

	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configDeleteCmd)
	rootCmd.AddCommand(configCmd)
}
