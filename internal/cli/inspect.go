package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/service"
)

func newInspectCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect <index>",
		Short: "Describe an index: fields, documents, pipeline and search options",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cmd, args[0], nil)
			if err != nil {
				return err
			}
			summary, err := service.New(service.Options{Store: store}).Summary()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, summary)
			}
			cmd.Printf("path:        %s\n", summary.Path)
			cmd.Printf("version:     %s (lang %s)\n", summary.Version, summary.Lang)
			cmd.Printf("documents:   %d (ref field %q)\n", summary.Documents, summary.Ref)
			cmd.Printf("fields:      %s\n", strings.Join(summary.Fields, ", "))
			cmd.Printf("pipeline:    %s\n", strings.Join(summary.Pipeline, ", "))
			cmd.Printf("fingerprint: %s\n", summary.Fingerprint)
			cmd.Printf("teaser:      %d words, %d results max\n",
				summary.ResultsOptions.TeaserWordCount, summary.ResultsOptions.LimitResults)
			cmd.Println("searched fields:")
			for _, f := range summary.Effective {
				cmd.Printf("  %-12s boost=%g bool=%s expand=%v\n", f.Name, f.Boost, f.Bool, f.Expand)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the summary as JSON")
	return cmd
}
