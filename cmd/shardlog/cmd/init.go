/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/shardlog/pkg/config"
)

var initForce bool

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration and create the data directory",
	Long: `Write a default configuration file and create the data directory it points to.

Example:
  shardlog init --data-dir /var/lib/shardlog`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.GetDefaultConfigPath()
		}
		_, err := initializeConfig(cmd.OutOrStdout(), path, appConfig.DataDir, initForce)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing configuration file")
}

// initializeConfig bootstraps the configuration at configPath
func initializeConfig(out io.Writer, configPath, dataDir string, force bool) (*config.Config, error) {
	if config.ConfigExists(configPath) && !force {
		return nil, fmt.Errorf("configuration already exists at %s (use --force to overwrite)", configPath)
	}

	cfg, err := config.BootstrapConfig(configPath, dataDir)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	fmt.Fprintf(out, "%v Wrote configuration to %s\n", progressMessage, configPath)
	fmt.Fprintf(out, "%v Data directory: %s\n", progressMessage, cfg.DataDir)
	return cfg, nil
}
