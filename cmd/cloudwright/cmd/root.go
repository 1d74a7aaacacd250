// Package cmd provides the CLI commands for cloudwright.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "cloudwright/clouds/aws"
	_ "cloudwright/clouds/azure"
	_ "cloudwright/clouds/gcp"
	"cloudwright/internal/config"
	"cloudwright/internal/logging"
)

const version = "0.3.0"

var (
	cfgFile     string
	logLevel    string
	catalogPath string
	jsonOut     bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "cloudwright",
	Short: "Design, price, and critique cloud architectures",
	Long: `cloudwright turns architecture specs into priced, validated designs.

It estimates monthly cost, checks compliance frameworks, compares the
same design across aws, gcp, and azure, and grades the result.

Examples:
  cloudwright estimate arch.yaml
  cloudwright compare arch.yaml --target gcp --target azure
  cloudwright import ./infrastructure > arch.yaml
  cloudwright export arch.yaml --format terraform`,
	SilenceUsage: true,
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.cloudwright/config.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "pricing catalog path (default is $HOME/.cloudwright/catalog.db)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "emit JSON instead of human output")

	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(hardenCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	cfg := config.Get()
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if catalogPath != "" {
		cfg.Catalog.Path = catalogPath
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	config.Set(cfg)

	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
	}
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cloudwright version %s\n", version)
	},
}
