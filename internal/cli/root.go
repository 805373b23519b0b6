// Package cli implements the docsearch command: querying, inspecting and
// serving a searchindex.js from the terminal.
package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexstore"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searchindex"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

type rootOptions struct {
	logLevel  string
	logFormat string
}

// NewRootCmd builds the docsearch command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "docsearch",
		Short: "Query mdBook search indexes",
		Long: `docsearch answers queries against the searchindex.js that mdBook
generates, ranking sections the same way the book's own search box does.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger.SetupWriter(cmd.ErrOrStderr(), opts.logLevel, opts.logFormat)
		},
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format (text, json)")

	root.AddCommand(
		newQueryCmd(),
		newInspectCmd(),
		newTermsCmd(),
		newMCPCmd(),
	)
	return root
}

// searchFlags override the index's search_options for one invocation.
type searchFlags struct {
	boolMode string
	expand   bool
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.boolMode, "bool", "", "combine query words with OR or AND instead of the index setting")
	cmd.Flags().BoolVar(&f.expand, "expand", false, "override prefix expansion for every field")
}

// override returns nil when neither flag was given.
func (f *searchFlags) override(cmd *cobra.Command, idx *searchindex.Index) (*searchindex.SearchOptions, error) {
	boolSet := cmd.Flags().Changed("bool")
	expandSet := cmd.Flags().Changed("expand")
	if !boolSet && !expandSet {
		return nil, nil
	}
	opts := idx.SearchOptions
	opts.Fields = make(map[string]searchindex.FieldOptions, len(idx.SearchOptions.Fields))
	for name, fo := range idx.SearchOptions.Fields {
		opts.Fields[name] = fo
	}
	if boolSet {
		mode := strings.ToUpper(f.boolMode)
		if mode != searchindex.BoolOR && mode != searchindex.BoolAND {
			return nil, fmt.Errorf("--bool must be OR or AND, got %q", f.boolMode)
		}
		opts.Bool = mode
		for name, fo := range opts.Fields {
			fo.Bool = ""
			opts.Fields[name] = fo
		}
	}
	if expandSet {
		opts.Expand = f.expand
		for name, fo := range opts.Fields {
			fo.Expand = nil
			opts.Fields[name] = fo
		}
	}
	return &opts, nil
}

// openStore loads the index at path. When flags override the search
// options the returned store serves a fixed snapshot built with them.
func openStore(ctx context.Context, cmd *cobra.Command, path string, flags *searchFlags) (*indexstore.Store, error) {
	store := indexstore.New(indexstore.Options{Path: path, LoadAttempts: 1})
	if err := store.Load(ctx); err != nil {
		return nil, err
	}
	if flags == nil {
		return store, nil
	}
	snap, err := store.Current()
	if err != nil {
		return nil, err
	}
	override, err := flags.override(cmd, snap.Index)
	if err != nil || override == nil {
		return store, err
	}
	custom, err := indexstore.NewSnapshot(snap.Index, override)
	if err != nil {
		return nil, err
	}
	return indexstore.NewStatic(custom), nil
}
