package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

func newTermsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "terms <index> <field> [prefix]",
		Short: "List indexed terms of a field, optionally under a prefix",
		Long: `terms walks a field's trie and prints each indexed term with the number of
documents containing it. Terms are stored stemmed, so "managing" is found
under "manag".`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cmd, args[0], nil)
			if err != nil {
				return err
			}
			snap, err := store.Current()
			if err != nil {
				return err
			}
			field := args[1]
			if !slices.Contains(snap.Index.Fields, field) {
				return fmt.Errorf("index has no field %q (fields: %v)", field, snap.Index.Fields)
			}
			prefix := ""
			if len(args) == 3 {
				prefix = args[2]
			}
			terms := snap.Index.Terms(field, prefix, limit)
			if len(terms) == 0 {
				cmd.Println("No terms found.")
				return nil
			}
			for _, t := range terms {
				cmd.Printf("%-30s %d\n", t.Term, t.DF)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of terms (0 for all)")
	return cmd
}
