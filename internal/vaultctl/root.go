// Package vaultctl implements the vault's administrative command line. It
// works directly on the configured storage, so it needs the same settings
// as the server but no running server.
package vaultctl

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/config"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophvault/internal/server/services"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	envFile    string
	storage    string
	dataDir    string
	dsn        string
	logLevel   string
}

// openStore is a seam so tests can count or replace backend opens.
var openStore = repomanager.New

// NewRootCommand builds the vaultctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "vaultctl",
		Short: "Administer a password vault directly on its storage",
		Long: `vaultctl enrolls users, checks TOTP codes and reads or writes stored
passwords using the same configuration as the vault server.

Settings come from defaults, then --config (JSON or YAML), then VAULT_*
environment variables (optionally from --env), then the flags below.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configFile, "config", "c", "", "config file (.json, .yaml)")
	pf.StringVar(&opts.envFile, "env", "", "dotenv file with VAULT_* variables")
	pf.StringVarP(&opts.storage, "storage", "s", "", "storage backend: file, sqlite, postgres, s3")
	pf.StringVar(&opts.dataDir, "dir", "", "data directory of the file backend")
	pf.StringVarP(&opts.dsn, "dsn", "d", "", "database DSN or sqlite file")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")

	root.AddCommand(
		newEnrollCommand(opts),
		newVerifyCommand(opts),
		newAddCommand(opts),
		newGetCommand(opts),
		newPingCommand(),
	)
	return root
}

// Execute runs vaultctl and returns the process exit code.
func Execute() int {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, uiError.Sprint("✗")+" "+err.Error())
		fmt.Fprintln(os.Stderr, uiInfo.Sprint("→")+" Run "+uiCode.Sprint("vaultctl help")+" for usage")
		return 1
	}
	return 0
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg := &config.Config{}
	cfg.LoadDefaults()

	if o.configFile != "" {
		if err := cfg.LoadFile(o.configFile); err != nil {
			return nil, err
		}
	}
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if o.storage != "" {
		cfg.Storage = o.storage
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	if o.dsn != "" {
		cfg.DatabaseDSN = o.dsn
	}
	cfg.LogLevel = o.logLevel

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withVault opens the configured storage, runs fn and closes the storage.
func (o *rootOptions) withVault(cmd *cobra.Command, fn func(ctx context.Context, v *services.VaultService) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	log := logging.NewJSONLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	stop := startSpinner(cmd.ErrOrStderr(), "Opening "+cfg.Storage+" storage...")
	store, err := openStore(ctx, cfg, log)
	stop()
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(ctx, services.NewVaultService(store, cfg, log))
}
