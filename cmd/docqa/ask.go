package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var showSources bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question and exit",
	Example: `  docqa ask "What is the transaction code to create a purchase order?"
  docqa ask --sources "Which report lists open invoices?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVarP(&showSources, "sources", "s", false, "print the pages the answer was drawn from")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	app, p, err := openPipeline(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	answer, err := p.Ask(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, answer.Text)
	if showSources {
		for _, m := range answer.Sources {
			fmt.Fprintf(out, "  page %d  score %.3f\n", m.Chunk.PageNum, m.Score)
		}
	}
	return nil
}
