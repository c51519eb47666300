package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/synaptica-ai/readmission/pkg/common/config"
	"github.com/synaptica-ai/readmission/pkg/terminology"
)

var vocabCmd = &cobra.Command{
	Use:   "vocab",
	Short: "Inspect the categorical vocabulary",
}

var vocabPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the effective vocabulary as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := rootFlags.vocabulary
		if path == "" {
			path = config.Load().VocabularyPath
		}
		vocab, err := terminology.Load(path)
		if err != nil {
			return err
		}
		data, err := vocab.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var vocabMatchCmd = &cobra.Command{
	Use:   "match <name>...",
	Short: "Show the canonical form of medication names or diagnosis codes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		terms, err := loadNormalizer(config.Load())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, name := range args {
			canonical := terms.CanonicalMedication(&name)
			code := terminology.CanonicalDiagnosisCode(&name)
			fmt.Fprintf(out, "%-24s medication=%-16s code=%s conditions=%v\n", name, *canonical, code, terms.Conditions(code))
		}
		return nil
	},
}

func init() {
	vocabCmd.AddCommand(vocabPrintCmd)
	vocabCmd.AddCommand(vocabMatchCmd)
}
