package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var version string

type versionOpts struct {
	*rootOpts
}

func newVersion(parent *rootOpts) *versionOpts {
	return &versionOpts{rootOpts: parent}
}

func (opts *versionOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Output the version of tgwatchctl and the server.",
		RunE:  opts.RunE,
	}
}

func (opts *versionOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}

	if version == "" {
		version = "unversioned"
	}
	fmt.Printf("client: %s\n", version)

	server, err := opts.API.Version(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("server: %s\n", server)
	return nil
}
