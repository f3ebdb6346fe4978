package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/metrocollab/grouper/internal/application/command"
	"github.com/metrocollab/grouper/internal/domain/roster"
	"github.com/metrocollab/grouper/internal/domain/shared"
)

// rosterFile is the input of grouper sort: either this object or a bare
// array of students.
type rosterFile struct {
	MinSize  int                    `json:"min_size"`
	MaxSize  int                    `json:"max_size"`
	Students []roster.StudentRecord `json:"students"`
}

func newSortCmd(a *app) *cobra.Command {
	var (
		minSize   int
		maxSize   int
		overrides sorterOverrides
		useCache  bool
	)

	cmd := &cobra.Command{
		Use:   "sort [FILE]",
		Short: "Distribute students from a JSON roster",
		Long: `Read a roster as JSON from FILE (or stdin when FILE is "-" or omitted),
distribute it into groups and print the result as JSON.

The roster is either {"min_size":2,"max_size":3,"students":[...]} or a bare
array of students. Flags override the bounds in the file; bounds missing from
both come from configuration.`,
		Example: `  grouper sort class.json --min 2 --max 3
  cat class.json | grouper sort --strategy repair`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return &usageError{err: fmt.Errorf("accepts at most 1 arg, received %d", len(args))}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			in, err := readRoster(path, cmd.InOrStdin())
			if err != nil {
				return err
			}

			switch {
			case cmd.Flags().Changed("min"):
				in.MinSize = minSize
			case in.MinSize == 0:
				in.MinSize = a.cfg.Grouping.MinSize
			}
			switch {
			case cmd.Flags().Changed("max"):
				in.MaxSize = maxSize
			case in.MaxSize == 0:
				in.MaxSize = a.cfg.Grouping.MaxSize
			}
			overrides.seedSet = cmd.Flags().Changed("seed")

			sorter, err := a.newSorter(nil, overrides)
			if err != nil {
				return err
			}

			var cache command.ResultCache
			if useCache {
				cache, _ = a.groupingCache(cmd.Context())
			}

			res, err := command.NewSortRosterHandler(sorter, cache, a.log).Handle(cmd.Context(), command.SortRosterCommand{
				Students: in.Students,
				MinSize:  in.MinSize,
				MaxSize:  in.MaxSize,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd, res.Result)
		},
	}

	cmd.Flags().IntVar(&minSize, "min", 0, "minimum group size")
	cmd.Flags().IntVar(&maxSize, "max", 0, "maximum group size")
	cmd.Flags().StringVar(&overrides.strategy, "strategy", "", "assignment strategy (greedy, repair)")
	cmd.Flags().Int64Var(&overrides.seed, "seed", 0, "k-means seed")
	cmd.Flags().BoolVar(&useCache, "cache", false, "reuse results cached in Redis")
	return cmd
}

// readRoster decodes a roster file and normalizes every record's tags.
func readRoster(path string, stdin io.Reader) (*rosterFile, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}

	in := &rosterFile{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &in.Students)
	} else {
		err = json.Unmarshal(trimmed, in)
	}
	var wrongType *json.UnmarshalTypeError
	switch {
	case errors.As(err, &wrongType) && (trimmed[0] == '[' || strings.HasPrefix(wrongType.Field, "students.")):
		return nil, shared.WrapError("roster", "Decode", shared.ErrMalformedRecord,
			fmt.Sprintf("roster %s has a malformed student record", path), err)
	case err != nil:
		return nil, shared.WrapError("roster", "Decode", shared.ErrInvalidFormat,
			fmt.Sprintf("roster %s is not valid JSON", path), err)
	}

	for i := range in.Students {
		in.Students[i] = in.Students[i].Normalize()
	}
	return in, nil
}
