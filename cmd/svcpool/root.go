package main

import (
	"fmt"
	"os"

	"svcpool/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const Version = "0.3.0"

var (
	v      = config.NewViper()
	conf   *config.Config
	logger = zap.NewNop()

	rootCmd = &cobra.Command{
		Use:   "svcpool",
		Short: "shared connection pool for remote sub-services",
		Long: fmt.Sprintf(`svcpool (v%s)

Runs a service host and calls its sub-services through a single shared
connection that is established lazily and re-established when the host
goes away. Every flag can also be set through the environment as
SVCPOOL_<FLAG> (e.g. SVCPOOL_LOG_LEVEL=debug) or in .env / .env.local.`, Version),
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of svcpool",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("svcpool v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(config.LoadEnvFiles)
	config.SetupCommonFlags(rootCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(addCmd, encryptCmd, decryptCmd, demoCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig binds the flags of the command being run and builds the logger.
func loadConfig(cmd *cobra.Command, _ []string) error {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	var err error
	if conf, err = config.Load(v); err != nil {
		return err
	}
	if logger, err = config.NewLogger(conf.LogLevel, conf.LogFormat); err != nil {
		return err
	}
	return nil
}

// Execute runs the root command. Called once by main.
func Execute() {
	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
