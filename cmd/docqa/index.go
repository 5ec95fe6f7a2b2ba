package main

import (
	"fmt"
	"time"

	"github.com/akolanti/docqa/internal/bootstrap"
	"github.com/spf13/cobra"
)

var statusOnly bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the index if needed and print its manifest",
	Args:  cobra.NoArgs,
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&statusOnly, "status", false, "only report whether the index is built")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	if statusOnly {
		state, err := bootstrap.IndexState(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s\n", cfg.Index.Collection, state)
		return nil
	}

	app, p, err := openPipeline(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	m := p.Manifest()
	fmt.Fprintf(out, "collection:  %s (%s at %s)\n", m.Collection, cfg.Index.Backend, cfg.Index.Location)
	fmt.Fprintf(out, "document:    %s\n", cfg.Document.Path)
	fmt.Fprintf(out, "chunks:      %d\n", m.Count)
	fmt.Fprintf(out, "embeddings:  %s, %d dims, %s\n", m.EmbeddingModel, m.Dimension, m.Metric)
	fmt.Fprintf(out, "built:       %s\n", m.CreatedAt.Format(time.RFC3339))
	return nil
}
