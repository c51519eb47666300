// readmission builds the readmission feature table from raw hospital
// snapshots.
//
// Usage:
//
//	readmission run   [--source=<dir|url>] [--dry-run]
//	readmission serve
//	readmission vocab print|match <name>...
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/synaptica-ai/readmission/pkg/common/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	vocabulary string
}

var rootCmd = &cobra.Command{
	Use:   "readmission",
	Short: "Bronze to gold feature pipeline for 30-day readmission risk",
	Long:  "readmission cleans, deduplicates and aggregates patient, diagnosis,\nlab and medication snapshots into one feature row per patient.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		logger.Init()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.vocabulary, "vocabulary", "", "Vocabulary YAML file (default: VOCABULARY_PATH or built-in)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(vocabCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
