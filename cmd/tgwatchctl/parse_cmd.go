package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type parseOpts struct {
	*rootOpts
	Link     string
	WithLogo bool
	NoWait   bool
}

func newParse(parent *rootOpts) *parseOpts {
	return &parseOpts{rootOpts: parent}
}

func (opts *parseOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Queue a background parse of a channel.",
		Example: `  tgwatchctl parse --link t.me/somechannel
  tgwatchctl parse --link t.me/somechannel --no-wait`,
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.Link, "link", "l", "", "channel link, e.g. t.me/somechannel or an invite link")
	cmd.Flags().BoolVarP(&opts.WithLogo, "with-logo", "w", false, "also download the channel logo during the parse")
	cmd.Flags().BoolVar(&opts.NoWait, "no-wait", false, "just submit the job; don't wait for it to finish")
	return cmd
}

func (opts *parseOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}
	if opts.Link == "" {
		return newUsageError("-l, --link is required")
	}

	ctx := context.Background()
	id, err := opts.API.EnqueueParse(ctx, opts.Link, opts.WithLogo)
	if err != nil {
		return err
	}
	fmt.Printf("Job queued: %s\n", id)
	if opts.NoWait {
		return nil
	}

	for {
		time.Sleep(time.Second)
		job, err := opts.API.JobStatus(ctx, id)
		if err != nil {
			return err
		}
		if !job.Done {
			fmt.Println(job.Status)
			continue
		}
		if !job.Success {
			if job.Error != nil {
				return job.Error
			}
			return fmt.Errorf("job failed: %s", job.Status)
		}
		fmt.Println(job.Status)
		return nil
	}
}
