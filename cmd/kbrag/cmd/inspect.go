package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"kbrag/internal/index"
	"kbrag/internal/vectorstore/sqlite"
)

func newInspectCmd(opts *rootOptions) *cobra.Command {
	var terms int

	cmd := &cobra.Command{
		Use:   "inspect [snapshot]",
		Short: "Show snapshot metadata and the rarest terms",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.cfg.Index.Path
			if len(args) == 1 {
				path = args[0]
			}
			meta, err := sqlite.ReadMeta(cmd.Context(), path)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			keys := make([]string, 0, len(meta))
			for k := range meta {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(w, "%s\n", path)
			for _, k := range keys {
				fmt.Fprintf(w, "  %-16s %s\n", k, meta[k])
			}
			if terms <= 0 {
				return nil
			}

			snap, err := index.Load(cmd.Context(), path)
			if err != nil {
				return err
			}
			model := snap.Model()
			idf := model.IDF()
			cols := make([]int, len(idf))
			for i := range cols {
				cols[i] = i
			}
			sort.SliceStable(cols, func(a, b int) bool { return idf[cols[a]] > idf[cols[b]] })
			if terms > len(cols) {
				terms = len(cols)
			}
			fmt.Fprintf(w, "\nTop %d terms by idf:\n", terms)
			names := model.Terms()
			for _, c := range cols[:terms] {
				fmt.Fprintf(w, "  %-24s %.4f\n", names[c], idf[c])
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&terms, "terms", 0, "Also list the N highest-idf terms")
	return cmd
}
