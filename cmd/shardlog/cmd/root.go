/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"

	"github.com/ssargent/shardlog/pkg/config"
	"github.com/ssargent/shardlog/pkg/di"
	"github.com/ssargent/shardlog/pkg/logging"
)

const envPrefix = "SHARDLOG"

var (
	container *di.Container
	cfgFile   string
	appConfig *config.Config

	// v resolves flag, environment and config file values for every command
	v = viper.New()

	progressMessage = color.GreenString("==>")
)

// SetContainer injects the dependency container
func SetContainer(c *di.Container) {
	container = c
}

func getContainer() *di.Container {
	if container == nil {
		container = di.NewContainer()
	}
	return container
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shardlog",
	Short: "shardlog - sharded record log files",
	Long: `shardlog writes opaque records into a set of checksummed shard files
and reads them back in parallel, sequentially or in random shard order.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cfgFile)
		if err != nil {
			return err
		}

		level, err := logging.ParseLevel(cfg.Logging.Level)
		if err != nil {
			return err
		}
		getContainer().Logger().SetLevel(level)

		appConfig = cfg
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		getContainer().Logger().Flush()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true

	fs := rootCmd.PersistentFlags()
	fs.StringVarP(&cfgFile, "config", "C", "", "Read configuration from the specified `FILE` (default "+config.GetDefaultConfigPath()+")")
	fs.StringP("data-dir", "d", "", "Directory holding the shard files")
	fs.String("prefix", "", "Shard file name prefix")
	fs.String("log-level", "", "Log level (debug, info, warn, error)")

	_ = v.BindPFlag("data_dir", fs.Lookup("data-dir"))
	_ = v.BindPFlag("prefix", fs.Lookup("prefix"))
	_ = v.BindPFlag("logging.level", fs.Lookup("log-level"))

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	goFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(goFlags)
	fs.AddGoFlagSet(goFlags)
}

// loadConfig reads the config file, when there is one, and applies flag and
// environment overrides on top of it
func loadConfig(path string) (*config.Config, error) {
	cfg := config.DefaultConfig()

	switch {
	case path != "":
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case config.ConfigExists(config.GetDefaultConfigPath()):
		loaded, err := config.LoadConfig(config.GetDefaultConfigPath())
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if s := v.GetString("data_dir"); s != "" {
		cfg.DataDir = s
	}
	if s := v.GetString("prefix"); s != "" {
		cfg.Prefix = s
	}
	if s := v.GetString("logging.level"); s != "" {
		cfg.Logging.Level = s
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
