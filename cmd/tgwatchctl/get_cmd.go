package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tgwatch/tgwatch"
)

type getOpts struct {
	*rootOpts
	ID   int64
	Link string
}

func newGet(parent *rootOpts) *getOpts {
	return &getOpts{rootOpts: parent}
}

func (opts *getOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show the stored record for a channel.",
		Example: `  tgwatchctl get --id 123456
  tgwatchctl get --link t.me/somechannel`,
		RunE: opts.RunE,
	}
	cmd.Flags().Int64VarP(&opts.ID, "id", "i", 0, "channel ID")
	cmd.Flags().StringVarP(&opts.Link, "link", "l", "", "channel link")
	return cmd
}

func (opts *getOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}
	if err := checkExactlyOne("--id or --link", opts.ID != 0, opts.Link != ""); err != nil {
		return err
	}

	var (
		info tgwatch.ChannelInfo
		err  error
	)
	if opts.ID != 0 {
		info, err = opts.API.Channel(context.Background(), opts.ID)
	} else {
		info, err = opts.API.ChannelByLink(context.Background(), opts.Link)
	}
	if err != nil {
		return err
	}

	printChannel(info.Channel, info.LastUpdate)
	return nil
}
