package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tgwatch/tgwatch"
)

type statsOpts struct {
	*rootOpts
	ID   int64
	Sort string
}

func newStats(parent *rootOpts) *statsOpts {
	return &statsOpts{rootOpts: parent}
}

func (opts *statsOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the statistics history of a channel.",
		Example: `  tgwatchctl stats --id 123456
  tgwatchctl stats --id 123456 --sort oldest`,
		RunE: opts.RunE,
	}
	cmd.Flags().Int64VarP(&opts.ID, "id", "i", 0, "channel ID")
	cmd.Flags().StringVar(&opts.Sort, "sort", "newest", `snapshot order: "newest" or "oldest"`)
	return cmd
}

func (opts *statsOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}
	if opts.ID == 0 {
		return newUsageError("-i, --id is required")
	}
	sort, err := tgwatch.ParseStatsSort(opts.Sort)
	if err != nil {
		return newUsageError(err.Error())
	}

	res, err := opts.API.Statistics(context.Background(), opts.ID, sort)
	if err != nil {
		return err
	}

	w := newTabwriter()
	fmt.Fprintf(w, "TIME\tSUBSCRIBERS\tVIEWS\tPOSTS\n")
	for _, item := range res.Data {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n",
			time.Unix(item.Time, 0).Format("2006-01-02 15:04"),
			item.Subscribers, item.Views, item.PostsCount)
	}
	w.Flush()
	return nil
}
