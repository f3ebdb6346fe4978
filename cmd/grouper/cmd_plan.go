package main

import (
	"github.com/spf13/cobra"

	"github.com/metrocollab/grouper/internal/application/query"
)

func newPlanCmd(a *app) *cobra.Command {
	var q query.PreviewPlanQuery

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the group count and sizes for a class",
		Long: `Show how many groups a class of the given size splits into and how large
each group is, without clustering anyone. Bounds default to the configured
GROUPING_MIN_SIZE and GROUPING_MAX_SIZE.`,
		Example: `  grouper plan --students 10 --min 2 --max 3`,
		Args:    exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("min") {
				q.MinSize = a.cfg.Grouping.MinSize
			}
			if !cmd.Flags().Changed("max") {
				q.MaxSize = a.cfg.Grouping.MaxSize
			}

			view, err := query.NewPreviewPlanHandler().Handle(cmd.Context(), q)
			if err != nil {
				return err
			}
			return writeJSON(cmd, view)
		},
	}

	cmd.Flags().IntVarP(&q.Students, "students", "n", 0, "number of students")
	cmd.Flags().IntVar(&q.MinSize, "min", 0, "minimum group size")
	cmd.Flags().IntVar(&q.MaxSize, "max", 0, "maximum group size")
	_ = cmd.MarkFlagRequired("students")
	return cmd
}
