package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var analyzeAnchored bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <document.json>",
	Short: "Detect the sections of an extracted document",
	Long: `Analyze reads an extracted document (JSON with ordered text elements),
detects its sections and prints the structure analysis result.

Use - to read the document from stdin.

Examples:
  docket analyze lease.json
  docket analyze lease.json -o json
  docket analyze lease.json --anchored   # print anchored text instead`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		doc, err := readDocument(cmd, args[0])
		if err != nil {
			return err
		}

		analyzer := a.analyzer()
		if !analyzer.CanAnalyze(doc) {
			a.logger.Warn("document is shorter than the analysis threshold",
				"document", doc.Path,
				"length", doc.TextLength(),
				"min_length", analyzer.Config().MinDocumentLength)
		}

		result := analyzer.Analyze(cmd.Context(), doc)
		if result.Failed() {
			return fmt.Errorf("analysis failed: %s", result.Metadata.Error)
		}

		if analyzeAnchored {
			out := cmd.OutOrStdout()
			for _, s := range result.Sections {
				fmt.Fprintf(out, "%s\n%s\n\n", s.Anchor, s.Content)
			}
			return nil
		}
		return a.printer.Print(result)
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeAnchored, "anchored", false, "print the anchored section text")
}
