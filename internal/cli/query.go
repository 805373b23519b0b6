package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/service"
)

const maxCLIResults = 1000

func newQueryCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
		flags  searchFlags
	)
	cmd := &cobra.Command{
		Use:   "query <index> <terms...>",
		Short: "Search an index and print ranked sections",
		Example: `  docsearch query book/searchindex.js metastore
  docsearch query book/searchindex.js coming soon --limit 5 --json
  docsearch query book/searchindex.js meta --bool AND --expand=false`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cmd, args[0], &flags)
			if err != nil {
				return err
			}
			svc := service.New(service.Options{Store: store, MaxResults: maxCLIResults})
			result, _, err := svc.Search(cmd.Context(), strings.Join(args[1:], " "), limit, analytics.SourceCLI)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			if asJSON {
				return writeJSON(cmd, result)
			}
			printResults(cmd, result)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of results, capped by the index's limit_results (0 for the default of 30)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	flags.register(cmd)
	return cmd
}

func printResults(cmd *cobra.Command, result *executor.SearchResult) {
	if len(result.Results) == 0 {
		cmd.Println("No results found.")
		return
	}
	cmd.Printf("%d of %d results for %q\n\n", len(result.Results), result.TotalHits, result.Query)
	for i, hit := range result.Results {
		cmd.Printf("  [%d] %s (%.4f)\n", i+1, hit.Breadcrumbs, hit.Score)
		cmd.Printf("      %s\n", hit.URL)
		if hit.Teaser != "" {
			cmd.Printf("      %s\n", hit.Teaser)
		}
		cmd.Println()
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
