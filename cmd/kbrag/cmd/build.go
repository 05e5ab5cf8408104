package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"kbrag/internal/pdf"
	"kbrag/internal/service"
	"kbrag/internal/summarizer"
)

func newBuildCmd(opts *rootOptions) *cobra.Command {
	var dir, out string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Index the knowledge base directory into a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if dir == "" {
				dir = cfg.KnowledgeBase.Dir
			}
			if out == "" {
				out = cfg.Index.Path
			}
			reader := pdf.NewReader(
				pdf.WithPattern(cfg.KnowledgeBase.Pattern),
				pdf.WithConcurrency(cfg.KnowledgeBase.Concurrency),
				pdf.WithLogger(opts.logger),
			)
			svc := service.New(reader, summarizer.NewFrequencySummarizer(), nil, service.Options{
				MaxChars:            cfg.Chunker.MaxChars,
				SummaryMaxSentences: cfg.Summarizer.MaxSentences,
				Logger:              opts.logger,
			})

			report, err := svc.Build(cmd.Context(), dir, out)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Indexed %d documents (%d pages, %d skipped) into %d chunks, %d terms in %v\n",
				report.Documents, report.Pages, report.SkippedPages, report.Chunks, report.VocabSize,
				report.Duration.Round(1e6))
			fmt.Fprintf(w, "Snapshot saved to %s\n", out)
			if report.Summary != "" {
				fmt.Fprintf(w, "\nSummary:\n%s\n", report.Summary)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Knowledge base directory (default from config)")
	cmd.Flags().StringVar(&out, "out", "", "Snapshot output path (default from config)")
	return cmd
}
