package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mdtune/mdtune/sim"
)

var (
	logLevel      string // Log verbosity level
	runConfigPath string // YAML file with run settings
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "mdtune",
	Short: "Auto-tuning particle simulation engine",
}

// setLogLevel parses --log and applies it.
func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// runCmd runs a drifting Lennard-Jones system through the auto-tuner
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a particle simulation with online configuration tuning",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		v, err := newRunViper(cmd.Flags(), runConfigPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		cfg := readRunConfig(v)
		if err := runSimulation(cfg, os.Stdout); err != nil {
			logrus.Fatalf("Run failed: %v", err)
		}
		logrus.Info("Run complete.")
	},
}

// searchSpaceCmd lists the configurations a tuning config allows
var searchSpaceCmd = &cobra.Command{
	Use:   "search-space",
	Short: "List the configurations a tuning config allows",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		path, _ := cmd.Flags().GetString("tuning-config")
		bundle, err := loadBundle(path, "")
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		space, err := sim.PopulateSearchSpace(bundle.SearchSpaceOptions())
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		for i, c := range space {
			fmt.Printf("%3d  %s\n", i, c)
		}
		fmt.Printf("%d configurations\n", len(space))
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().StringVar(&runConfigPath, "config", "", "YAML file with run settings (keys are the flag names)")
	registerRunFlags(runCmd.Flags())

	searchSpaceCmd.Flags().String("tuning-config", "", "YAML tuning config")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(searchSpaceCmd)
}
