package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	parseExpect []string
	parseStrip  bool
)

var parseCmd = &cobra.Command{
	Use:   "parse <response.txt>",
	Short: "Parse anchored provider output into sections and risks",
	Long: `Parse reads provider output containing section anchors and prints the
sections and flagged risks it contains.

Examples:
  docket parse response.txt
  docket parse response.txt --expect s1_subject,s2_payment
  docket parse response.txt --strip      # print the text without anchors`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		data, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		raw := string(data)
		proc := a.processor()

		if len(parseExpect) > 0 {
			if err := proc.Validate(raw, parseExpect); err != nil {
				return err
			}
		}

		if parseStrip {
			text, err := proc.RemoveAnchors(raw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(text))
			return nil
		}

		parsed, err := proc.Parse(raw)
		if err != nil {
			return err
		}
		return a.printer.Print(parsed)
	},
}

func init() {
	parseCmd.Flags().StringSliceVar(&parseExpect, "expect", nil, "anchor ids that must be present")
	parseCmd.Flags().BoolVar(&parseStrip, "strip", false, "print the text with anchors removed")
}
