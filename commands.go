package main

import (
	"github.com/spf13/cobra"
)

var (
	// explore
	stateFlag     string
	measureFlags  []string
	dimFlags      []string
	pivotFlags    []int
	filterFlags   []string
	skipZeroFlag  bool
	formatFlag    string
	resetFlag     bool
	maxDepthFlag  int
	applyFlag     int
	recreateFlag  bool
	createFlag    bool
	spaceFlag     string
	dimensionFlag string

	rootCmd = &cobra.Command{
		Use:   "cube",
		Short: "Serve and explore multidimensional cubes",
		Long: `cube serves aggregations over measures and dimension hierarchies stored in ClickHouse
or CSV files, and explores them by drilling into dimension values.`,
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the cube API on /mng, and Prometheus metrics on /metrics",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	ingestCmd = &cobra.Command{
		Use:   "ingest [space] [csv file]",
		Short: "Load a CSV file into the ClickHouse table of a space",
		Args:  cobra.ExactArgs(2),
		RunE:  runIngest,
	}

	indexCmd = &cobra.Command{
		Use:   "index",
		Short: "Index dimension coordinates in Elasticsearch for search",
		Args:  cobra.NoArgs,
		RunE:  runIndex,
	}

	exploreCmd = &cobra.Command{
		Use:   "explore",
		Short: "Edit the current selection and print its aggregated result",
		Long: `Starts from the current history entry (or the default selection), applies the given
flags, records the new selection in history and prints its result.

Dimension values are paths from the dimension root, with * for unset levels:
  --dim geo=EU/*     children of EU
  --dim time=2024    the year 2024
  --filter time=2024@1`,
		Args: cobra.NoArgs,
		RunE: runExplore,
	}

	backCmd = &cobra.Command{
		Use:   "back",
		Short: "Go back to the previous selection in history",
		Args:  cobra.NoArgs,
		RunE:  runBack,
	}

	forwardCmd = &cobra.Command{
		Use:   "forward",
		Short: "Go forward to the next selection in history",
		Args:  cobra.NoArgs,
		RunE:  runForward,
	}

	searchCmd = &cobra.Command{
		Use:   "search [slot] [text]",
		Short: "Search values of the dimension in a selector slot, optionally filtering by a match",
		Args:  cobra.ExactArgs(2),
		RunE:  runSearch,
	}
)

func init() {
	exploreCmd.Flags().StringVar(&stateFlag, "state", "", "encoded selection state to start from")
	exploreCmd.Flags().BoolVar(&resetFlag, "reset", false, "start from the default selection")
	exploreCmd.Flags().StringArrayVarP(&measureFlags, "measure", "m", nil, "qualified measure name (space.measure), repeatable")
	exploreCmd.Flags().StringArrayVarP(&dimFlags, "dim", "d", nil, "dimension value as name=path, repeatable")
	exploreCmd.Flags().IntSliceVar(&pivotFlags, "pivot", nil, "dimension slots to pivot into columns")
	exploreCmd.Flags().StringArrayVar(&filterFlags, "filter", nil, "filter as dimension=value@depth, repeatable")
	exploreCmd.Flags().BoolVar(&skipZeroFlag, "skip-zero", true, "leave out rows where every value is 0")

	for _, cmd := range []*cobra.Command{exploreCmd, backCmd, forwardCmd, searchCmd} {
		cmd.Flags().StringVarP(&formatFlag, "format", "f", "table", "output format: table, json or csv")
	}

	searchCmd.Flags().IntVar(&maxDepthFlag, "max-depth", 0, "deepest level to search (0 for all)")
	searchCmd.Flags().IntVar(&applyFlag, "apply", 0, "filter the slot by the n-th match (1-based)")

	ingestCmd.Flags().BoolVar(&createFlag, "create", false, "drop and create the table before inserting")

	indexCmd.Flags().BoolVar(&recreateFlag, "recreate", false, "drop and create the index first")
	indexCmd.Flags().StringVar(&spaceFlag, "space", "", "only index this space")
	indexCmd.Flags().StringVar(&dimensionFlag, "dimension", "", "only index this dimension")
	indexCmd.Flags().IntVar(&maxDepthFlag, "max-depth", 0, "deepest level to index (0 for all)")

	rootCmd.AddCommand(serveCmd, ingestCmd, indexCmd, exploreCmd, backCmd, forwardCmd, searchCmd)
}
