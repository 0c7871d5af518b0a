package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"
	"hermannm.dev/cube/config"
	"hermannm.dev/cube/cube"
	"hermannm.dev/cube/explorer"
	"hermannm.dev/cube/history"
	"hermannm.dev/cube/mng"
	"hermannm.dev/devlog/log"
	"hermannm.dev/wrap"
)

// session is a loaded explorer over the /mng API, with its history store.
type session struct {
	explorer  *explorer.Explorer
	historyDB *badger.DB
}

func openSession(ctx context.Context) (session, error) {
	conf, err := config.ReadExplorerFromEnv()
	if err != nil {
		return session{}, wrap.Error(err, "failed to read config from env")
	}
	setUpLogging(conf.LogLevel, conf.IsProduction)

	var channel history.Channel
	var historyDB *badger.DB
	if conf.HistoryDir == "" {
		log.Warn("HISTORY_DIR not set, selection history will not outlive this command")
		channel = history.NewMemory()
	} else {
		historyDB, err = history.OpenBadger(conf.HistoryDir)
		if err != nil {
			return session{}, err
		}
		channel = history.NewBadger(historyDB, conf.HistorySession)
	}

	cubeExplorer := explorer.New(
		mng.NewClient(conf.MngURL, nil),
		channel,
		explorer.Options{
			Debounce:        conf.Debounce,
			ResultCacheSize: conf.ResultCacheSize,
			DrillCacheSize:  conf.DrillCacheSize,
		},
	)

	current := session{explorer: cubeExplorer, historyDB: historyDB}
	if err := cubeExplorer.Load(ctx); err != nil {
		current.close()
		return session{}, err
	}
	return current, nil
}

func (current session) close() {
	current.explorer.Close()
	if current.historyDB != nil {
		if err := current.historyDB.Close(); err != nil {
			log.ErrorCause(err, "failed to close history store")
		}
	}
}

func runExplore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	current, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer current.close()

	var state cube.SelectionState
	switch {
	case stateFlag != "":
		var ok bool
		if state, ok = cube.Decode(stateFlag); !ok {
			return fmt.Errorf("invalid selection state '%s'", stateFlag)
		}
	case resetFlag:
		state = cube.SelectionState{SkipZero: true}
	default:
		if state, err = current.explorer.State(); err != nil {
			return err
		}
	}

	if err := applyFlags(cmd, &state); err != nil {
		return err
	}

	encoded, err := state.Encode()
	if err != nil {
		return err
	}
	if err := current.explorer.Navigate(ctx, encoded); err != nil {
		return err
	}

	return printCurrent(ctx, cmd, current.explorer)
}

// applyFlags overrides the parts of state given by explore flags.
func applyFlags(cmd *cobra.Command, state *cube.SelectionState) error {
	if len(measureFlags) > 0 {
		state.Measures = measureFlags
	}

	if len(dimFlags) > 0 {
		state.Dimensions = make([]cube.DimensionValue, 0, len(dimFlags))
		state.PivotOn = []int{}
		for _, dimFlag := range dimFlags {
			name, path, _ := strings.Cut(dimFlag, "=")
			state.Dimensions = append(
				state.Dimensions,
				cube.DimensionValue{Name: strings.TrimSpace(name), Path: cube.ParsePath(path)},
			)
		}
	}

	if cmd.Flags().Changed("pivot") {
		for _, slot := range pivotFlags {
			if slot < 0 || slot >= len(state.Dimensions) {
				return fmt.Errorf(
					"cannot pivot slot %d, there are %d dimensions", slot, len(state.Dimensions),
				)
			}
		}
		state.PivotOn = pivotFlags
	}

	if cmd.Flags().Changed("filter") {
		state.Filters = make([]cube.Filter, 0, len(filterFlags))
		for _, filterFlag := range filterFlags {
			filter, err := parseFilter(filterFlag)
			if err != nil {
				return err
			}
			state.Filters = append(state.Filters, filter)
		}
	}

	if cmd.Flags().Changed("skip-zero") {
		state.SkipZero = skipZeroFlag
	}

	return nil
}

// parseFilter parses dimension=value@depth.
func parseFilter(text string) (cube.Filter, error) {
	dimension, rest, ok := strings.Cut(text, "=")
	if !ok {
		return cube.Filter{}, fmt.Errorf("filter '%s' is not of the form dimension=value@depth", text)
	}

	at := strings.LastIndex(rest, "@")
	if at == -1 {
		return cube.Filter{}, fmt.Errorf("filter '%s' is missing @depth", text)
	}

	depth, err := strconv.Atoi(rest[at+1:])
	if err != nil {
		return cube.Filter{}, wrap.Errorf(err, "invalid depth in filter '%s'", text)
	}

	return cube.Filter{Dimension: dimension, Value: rest[:at], Depth: depth}, nil
}

func runBack(cmd *cobra.Command, args []string) error {
	return moveInHistory(cmd, (*explorer.Explorer).Back, "oldest")
}

func runForward(cmd *cobra.Command, args []string) error {
	return moveInHistory(cmd, (*explorer.Explorer).Forward, "newest")
}

func moveInHistory(
	cmd *cobra.Command,
	move func(*explorer.Explorer, context.Context) (bool, error),
	end string,
) error {
	ctx := cmd.Context()

	current, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer current.close()

	moved, err := move(current.explorer, ctx)
	if err != nil {
		return err
	}
	if !moved {
		log.Infof("Already at the %s selection in history", end)
	}

	return printCurrent(ctx, cmd, current.explorer)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	slot, err := strconv.Atoi(args[0])
	if err != nil {
		return wrap.Errorf(err, "invalid slot '%s'", args[0])
	}

	current, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer current.close()

	matches, err := current.explorer.Search(ctx, slot, args[1], maxDepthFlag)
	if err != nil {
		return err
	}

	if applyFlag == 0 {
		return printMatches(cmd.OutOrStdout(), matches)
	}

	if applyFlag < 1 || applyFlag > len(matches) {
		return fmt.Errorf("cannot apply match %d, search found %d", applyFlag, len(matches))
	}
	if err := current.explorer.ApplyFilter(ctx, slot, matches[applyFlag-1]); err != nil {
		return err
	}

	return printCurrent(ctx, cmd, current.explorer)
}
