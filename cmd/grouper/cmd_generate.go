package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/metrocollab/grouper/internal/application/command"
	"github.com/metrocollab/grouper/internal/infrastructure/persistence/postgres"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		force     bool
		overrides sorterOverrides
	)

	cmd := &cobra.Command{
		Use:   "generate CODE",
		Short: "Generate groups for a stored class and save them",
		Long: `Load the class CODE and its submitted forms from PostgreSQL, distribute the
students using the class bounds and write every student's group number back
in one transaction.

Refuses to run until every expected student has submitted, unless --force.`,
		Example: `  grouper generate 7F3KQ2
  grouper generate 7F3KQ2 --force --strategy repair`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			overrides.seedSet = cmd.Flags().Changed("seed")

			sorter, err := a.newSorter(nil, overrides)
			if err != nil {
				return err
			}

			db, err := a.openDatabase(ctx)
			if err != nil {
				return err
			}
			cache, locker := a.groupingCache(ctx)

			if t := a.cfg.Database.QueryTimeout; t > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, t)
				defer cancel()
			}

			handler := command.NewGenerateGroupsHandler(postgres.NewRosterRepository(db), sorter, command.GenerateGroupsHandlerConfig{
				Cache:  cache,
				Locker: locker,
				Logger: a.log,
			})
			res, err := handler.Handle(ctx, command.GenerateGroupsCommand{Code: args[0], Force: force})
			if err != nil {
				return err
			}

			return writeJSON(cmd, map[string]any{
				"code":      res.Code,
				"submitted": res.Submitted,
				"expected":  res.Expected,
				"cached":    res.Cached,
				"result":    res.Result,
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "generate even if some students have not submitted")
	cmd.Flags().StringVar(&overrides.strategy, "strategy", "", "assignment strategy (greedy, repair)")
	cmd.Flags().Int64Var(&overrides.seed, "seed", 0, "k-means seed")
	return cmd
}
