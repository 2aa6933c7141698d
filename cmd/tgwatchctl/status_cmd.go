package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tgwatch/tgwatch/jobs"
)

type statusOpts struct {
	*rootOpts
	Job string
}

func newStatus(parent *rootOpts) *statusOpts {
	return &statusOpts{rootOpts: parent}
}

func (opts *statusOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Show the state of a queued or finished parse job.",
		Example: `  tgwatchctl status --job 01234567-89ab-cdef-0123-456789abcdef`,
		RunE:    opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.Job, "job", "j", "", "job ID, as reported by parse")
	return cmd
}

func (opts *statusOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}
	if opts.Job == "" {
		return newUsageError("-j, --job is required")
	}

	job, err := opts.API.JobStatus(context.Background(), jobs.JobID(opts.Job))
	if err != nil {
		return err
	}

	w := newTabwriter()
	fmt.Fprintf(w, "Job:\t%s\n", job.ID)
	fmt.Fprintf(w, "Method:\t%s\n", job.Method)
	fmt.Fprintf(w, "Status:\t%s\n", job.Status)
	fmt.Fprintf(w, "Done:\t%v\n", job.Done)
	if job.Done {
		fmt.Fprintf(w, "Success:\t%v\n", job.Success)
	}
	if job.Error != nil {
		fmt.Fprintf(w, "Error:\t%s\n", job.Error.Error())
	}
	w.Flush()

	if job.Done && job.Success {
		if res, ok := job.Result.(jobs.ParseChannelResult); ok {
			fmt.Println("")
			printChannel(res.Channel, 0)
			if len(res.Logo) > 0 {
				fmt.Printf("\nLogo: %d bytes (save it with \"info --link %s --logo-file FILE\")\n",
					len(res.Logo), res.Channel.Link)
			}
		}
	}
	return nil
}
