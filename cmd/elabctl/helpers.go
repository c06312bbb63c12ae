package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/viper"

	"elabctl/internal/api"
	"elabctl/internal/config"
	"elabctl/internal/logging"
	"elabctl/internal/state"
	"elabctl/internal/types"
)

func configPath() string {
	if path := viper.GetString("config"); path != "" {
		return path
	}
	return config.DefaultPath()
}

func newLogger() *log.Logger {
	opts := logging.Options{
		Verbose: viper.GetBool("verbose"),
		File:    viper.GetString("log-file"),
	}
	if opts.Verbose {
		return logging.New(opts)
	}
	return logging.Quiet(opts)
}

// warnLogger always reaches stderr, regardless of --verbose.
func warnLogger() *log.Logger {
	return logging.New(logging.Options{File: viper.GetString("log-file")})
}

func newClient(logger *log.Logger) (*api.Client, error) {
	profile, err := config.Resolve(configPath(), viper.GetString("profile"))
	if err != nil {
		return nil, err
	}
	return api.New(api.Config{
		HostURL:       profile.HostURL,
		APIKey:        profile.APIKey,
		SkipSSLVerify: !profile.VerifySSL,
		Logger:        logger,
	}), nil
}

// loadSnapshot reads the cached state file when one is given, otherwise
// pulls the live state from the server.
func loadSnapshot(ctx context.Context, client *api.Client, stateFile string, logger *log.Logger) (*state.State, error) {
	if stateFile != "" {
		return state.ReadFile(stateFile, logger)
	}
	return state.Pull(ctx, client, true, logger)
}

func kindFromArg(arg string) (types.EntityKind, error) {
	switch arg {
	case "item", "items":
		return types.KindItem, nil
	case "experiment", "experiments":
		return types.KindExperiment, nil
	case "items_type", "items_types":
		return types.KindItemsType, nil
	case "experiments_template", "experiments_templates", "template", "templates":
		return types.KindExperimentsTemplate, nil
	}
	return "", fmt.Errorf(
		"unknown kind %q, expected item, experiment, items_type or experiments_template", arg)
}
