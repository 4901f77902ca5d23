package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCMD().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCMD() *cobra.Command {
	opts := &pipelineOptions{}
	root := &cobra.Command{
		Use:          "resumecli",
		Short:        "Offline resume extraction and JD matching",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.lexiconFile, "lexicon", "", "lexicon YAML overriding the built-in skill list")
	root.PersistentFlags().StringVar(&opts.pdfEngine, "pdf-engine", "ledongthuc", "pdf decoder: eino or ledongthuc")
	root.PersistentFlags().IntVar(&opts.workers, "workers", 4, "max files decoded in parallel")

	root.AddCommand(extractCMD(opts), matchCMD(opts))
	return root
}
