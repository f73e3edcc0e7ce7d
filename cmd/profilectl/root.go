package main

import (
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"profilegate/internal/platform/config"
)

type globalOptions struct {
	server  string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "profilectl",
		Short: "Command line client for the profilegate API",
		Long: `profilectl submits profiles for document reconciliation and reads
stored profiles back.

The server address defaults to $PROFILEGATE_URL, then http://localhost:8080.
.env and .env.local in the working directory are loaded first.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			config.LoadDotEnv()
			if !cmd.Flags().Changed("server") {
				if v := os.Getenv("PROFILEGATE_URL"); v != "" {
					opts.server = v
				}
			}
		},
	}
	root.PersistentFlags().StringVar(&opts.server, "server", "http://localhost:8080", "profilegate base URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "request timeout")

	root.AddCommand(newGetCmd(opts), newCreateCmd(opts))
	return root
}

func (o *globalOptions) client() *apiClient {
	return &apiClient{
		baseURL: o.server,
		http:    &http.Client{Timeout: o.timeout},
	}
}
