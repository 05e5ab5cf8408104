package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"kbrag/internal/domain"
	"kbrag/internal/service"
)

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		topK    int
		asJSON  bool
		indexAt string
	)

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Query the snapshot and print the top passages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if indexAt == "" {
				indexAt = cfg.Index.Path
			}
			if topK <= 0 {
				topK = cfg.Search.TopK
			}
			svc := service.New(nil, nil, nil, service.Options{MinScore: cfg.Search.MinScore, Logger: opts.logger})
			if err := svc.Load(cmd.Context(), indexAt); err != nil {
				if errors.Is(err, domain.ErrIndexNotFound) {
					return fmt.Errorf("%w (run 'kbrag build' first)", err)
				}
				return err
			}

			results := svc.Query(strings.Join(args, " "), topK)
			w := cmd.OutOrStdout()
			if asJSON {
				if results == nil {
					results = []domain.ScoredChunk{}
				}
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			if len(results) == 0 {
				fmt.Fprintln(w, "No results.")
				return nil
			}
			for i, r := range results {
				fmt.Fprintf(w, "%d. %s p.%d  score=%.4f\n   %s\n", i+1, r.Source, r.Page, r.Score, r.Text)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of passages (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	cmd.Flags().StringVar(&indexAt, "index", "", "Snapshot path (default from config)")
	return cmd
}
