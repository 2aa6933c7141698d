package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type listOpts struct {
	*rootOpts
	IDsOnly bool
}

func newList(parent *rootOpts) *listOpts {
	return &listOpts{rootOpts: parent}
}

func (opts *listOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked channels.",
		RunE:  opts.RunE,
	}
	cmd.Flags().BoolVar(&opts.IDsOnly, "ids-only", false, "print channel IDs only, one per line")
	return cmd
}

func (opts *listOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}

	ctx := context.Background()
	ids, err := opts.API.ChannelIDs(ctx)
	if err != nil {
		return err
	}

	if opts.IDsOnly {
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	}

	w := newTabwriter()
	fmt.Fprintf(w, "ID\tLINK\tNAME\tSUBSCRIBERS\tVIEWS\tPOSTS\tUPDATED\n")
	for _, id := range ids {
		info, err := opts.API.Channel(ctx, id)
		if err != nil {
			fmt.Fprintf(w, "%d\t(error: %v)\n", id, err)
			continue
		}
		c := info.Channel
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%s\n",
			c.ID, c.Link, c.Name, c.Subscribers, c.Views24h, c.PostsCount,
			time.Unix(info.LastUpdate, 0).Format("2006-01-02 15:04"))
	}
	w.Flush()
	return nil
}
