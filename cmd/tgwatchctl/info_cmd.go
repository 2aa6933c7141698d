package main

import (
	"context"
	"fmt"
	"io/ioutil"

	"github.com/spf13/cobra"
)

type infoOpts struct {
	*rootOpts
	Link     string
	WithLogo bool
	LogoFile string
}

func newInfo(parent *rootOpts) *infoOpts {
	return &infoOpts{rootOpts: parent}
}

func (opts *infoOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Parse a channel right now and show its statistics.",
		Example: `  tgwatchctl info --link t.me/somechannel
  tgwatchctl info --link t.me/somechannel --with-logo --logo-file logo.jpg`,
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.Link, "link", "l", "", "channel link, e.g. t.me/somechannel or an invite link")
	cmd.Flags().BoolVarP(&opts.WithLogo, "with-logo", "w", false, "also download the channel logo")
	cmd.Flags().StringVar(&opts.LogoFile, "logo-file", "", "write the downloaded logo to this file (implies --with-logo)")
	return cmd
}

func (opts *infoOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}
	if opts.Link == "" {
		return newUsageError("-l, --link is required")
	}
	if opts.LogoFile != "" {
		opts.WithLogo = true
	}

	res, err := opts.API.ChannelInfo(context.Background(), opts.Link, opts.WithLogo)
	if err != nil {
		return err
	}

	printChannel(res.Channel, 0)
	if opts.LogoFile != "" && res.Logo != nil {
		if err := ioutil.WriteFile(opts.LogoFile, res.Logo, 0644); err != nil {
			return err
		}
		fmt.Printf("Logo written to %s (%d bytes)\n", opts.LogoFile, len(res.Logo))
	}
	return nil
}
