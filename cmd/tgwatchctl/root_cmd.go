package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tgwatch/tgwatch"
	"github.com/tgwatch/tgwatch/api"
	transport "github.com/tgwatch/tgwatch/http"
	"github.com/tgwatch/tgwatch/http/client"
)

const (
	EnvVariableURL   = "TGWATCH_URL"
	EnvVariableToken = "TGWATCH_TOKEN"
)

type rootOpts struct {
	URL   string
	Token string
	API   api.Service
}

func newRoot() *rootOpts {
	return &rootOpts{}
}

var rootLongHelp = strings.TrimSpace(`
tgwatchctl talks to the channel statistics daemon.

Workflow:
  tgwatchctl info --link t.me/somechannel    # Parse a channel right now.
  tgwatchctl parse --link t.me/somechannel   # Queue a background parse.
  tgwatchctl list                            # Which channels are tracked?
  tgwatchctl stats --id 123456               # Statistics history for a channel.
`)

func (opts *rootOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "tgwatchctl",
		Long:              rootLongHelp,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.PersistentPreRunE,
	}
	cmd.PersistentFlags().StringVarP(&opts.URL, "url", "u", "http://localhost:3030",
		fmt.Sprintf("base URL of the tgwatchd API server; you can also set the environment variable %s", EnvVariableURL))
	cmd.PersistentFlags().StringVarP(&opts.Token, "token", "t", "",
		fmt.Sprintf("access token to use when the API is behind an authenticating proxy; you can also set the environment variable %s", EnvVariableToken))

	cmd.AddCommand(
		newInfo(opts).Command(),
		newParse(opts).Command(),
		newStatus(opts).Command(),
		newGet(opts).Command(),
		newList(opts).Command(),
		newStats(opts).Command(),
		newVersion(opts).Command(),
	)

	return cmd
}

func (opts *rootOpts) PersistentPreRunE(cmd *cobra.Command, _ []string) error {
	url := os.Getenv(EnvVariableURL)
	if cmd.Flags().Changed("url") || url == "" {
		url = opts.URL
	}
	token := os.Getenv(EnvVariableToken)
	if cmd.Flags().Changed("token") || token == "" {
		token = opts.Token
	}

	opts.API = client.New(
		&http.Client{Timeout: 2 * time.Minute},
		transport.NewRouter(),
		url,
		tgwatch.Token(token),
	)
	return nil
}
