package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"kbrag/internal/service"
	"kbrag/internal/tui"
)

func newTUICmd(opts *rootOptions) *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Search the snapshot interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			holder := loadHolder(cmd.Context(), opts.logger, cfg.Index.Path)
			svc := service.New(nil, nil, holder, service.Options{MinScore: cfg.Search.MinScore, Logger: opts.logger})

			summary := "No index loaded; run 'kbrag build' first."
			if snap := holder.Current(); snap != nil {
				summary = fmt.Sprintf("%s: %d passages, %d terms", cfg.Index.Path, snap.Len(), snap.VocabSize())
			}
			_, err := tea.NewProgram(tui.New(svc, summary, topK), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", tui.DefaultTopK, "Number of passages per query")
	return cmd
}
